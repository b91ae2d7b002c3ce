package services

import (
	"testing"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func homeAddress() AddressInput {
	return AddressInput{
		Label:   models.LabelHome,
		Address: "12 MG Road",
		City:    "Bengaluru",
		Pincode: "560001",
		Phone:   "9876543210",
	}
}

func TestAddressBookKeepsOneDefault(t *testing.T) {
	f := newFixture(t)

	first := homeAddress()
	first.IsDefault = ptr(true)
	a, err := f.svc.Addresses.Create(f.ctx, f.buyer, first)
	require.NoError(t, err)
	assert.True(t, a.IsDefault)

	second := homeAddress()
	second.Label = models.LabelOther
	second.CustomLabel = "Gym"
	second.IsDefault = ptr(true)
	b, err := f.svc.Addresses.Create(f.ctx, f.buyer, second)
	require.NoError(t, err)
	assert.Equal(t, "Gym", b.CustomLabel)

	list, err := f.svc.Addresses.List(f.ctx, f.buyer, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.True(t, list[0].IsDefault)
	assert.False(t, list[1].IsDefault)

	updated, err := f.svc.Addresses.Update(f.ctx, f.buyer, a.ID, AddressInput{IsDefault: ptr(true), City: "Mysuru"})
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)
	assert.Equal(t, "Mysuru", updated.City)
	assert.Equal(t, "12 MG Road", updated.Address)

	list, err = f.svc.Addresses.List(f.ctx, f.buyer, "")
	require.NoError(t, err)
	assert.Equal(t, a.ID, list[0].ID)
	assert.False(t, list[1].IsDefault)
}

func TestAddressValidation(t *testing.T) {
	f := newFixture(t)

	bad := homeAddress()
	bad.Pincode = "5600"
	_, err := f.svc.Addresses.Create(f.ctx, f.buyer, bad)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Details, "pincode")

	bad = homeAddress()
	bad.Label = "Beach"
	_, err = f.svc.Addresses.Create(f.ctx, f.buyer, bad)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	// custom labels only stick to "Other"
	home := homeAddress()
	home.CustomLabel = "ignored"
	a, err := f.svc.Addresses.Create(f.ctx, f.buyer, home)
	require.NoError(t, err)
	assert.Empty(t, a.CustomLabel)

	_, err = f.svc.Addresses.Update(f.ctx, f.buyer, a.ID, AddressInput{Phone: "123"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.svc.Addresses.Update(f.ctx, f.buyer, "", AddressInput{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestAddressesArePrivate(t *testing.T) {
	f := newFixture(t)
	a, err := f.svc.Addresses.Create(f.ctx, f.buyer, homeAddress())
	require.NoError(t, err)

	_, err = f.svc.Addresses.Update(f.ctx, f.owner, a.ID, AddressInput{City: "Delhi"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.Is(f.svc.Addresses.Delete(f.ctx, f.owner, a.ID), apperr.KindNotFound))

	list, err := f.svc.Addresses.List(f.ctx, f.owner, f.buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, list, "non-admins cannot read another address book")

	list, err = f.svc.Addresses.List(f.ctx, f.admin, f.buyer.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.svc.Addresses.Delete(f.ctx, f.buyer, a.ID))
	list, err = f.svc.Addresses.List(f.ctx, f.buyer, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}
