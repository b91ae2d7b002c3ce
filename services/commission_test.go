package services

import (
	"testing"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paid places an order at the current fixture time and marks its payment complete
func (f *fixture) paid(t *testing.T) *models.Order {
	t.Helper()
	placed := f.place(t, f.buyer)
	require.NoError(t, f.db.Model(&models.Order{}).
		Where("id = ?", placed.Order.ID).
		Update("payment_status", models.PaymentCompleted).Error)
	return placed.Order
}

func TestCommissionReportCountsPaidOrdersOnly(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(f.clock.Now().AddDate(0, 0, -40))
	old := f.paid(t)
	f.clock.Set(f.clock.Now().AddDate(0, 0, 40))
	a := f.paid(t)
	f.paid(t)
	f.place(t, f.buyer)

	_, err := f.svc.Commission.SetStatus(f.ctx, a.ID, TargetCommission, models.SettlementPaid)
	require.NoError(t, err)

	r, err := f.svc.Commission.Report(f.ctx, CommissionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, r.Summary.TotalOrders)
	assert.Equal(t, 3000.0, r.Summary.TotalRevenue)
	assert.Equal(t, 360.0, r.Summary.TotalCommission)
	assert.Equal(t, 2640.0, r.Summary.TotalRestaurantPayout)
	assert.Equal(t, 120.0, r.Summary.PaidCommission)
	assert.Equal(t, 240.0, r.Summary.PendingCommission)
	require.Len(t, r.ByRestaurant, 1)
	assert.Equal(t, f.restaurant.ID, r.ByRestaurant[0].RestaurantID)
	assert.Equal(t, 3, r.ByRestaurant[0].OrderCount)
	require.Len(t, r.ByDate, 1, "orders older than 30 days stay out of the daily series")
	assert.Equal(t, "2026-03-10", r.ByDate[0].Date)
	assert.Equal(t, 2, r.ByDate[0].OrderCount)

	r, err = f.svc.Commission.Report(f.ctx, CommissionFilter{StartDate: "2026-03-01", EndDate: "2026-03-10"})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Summary.TotalOrders)

	r, err = f.svc.Commission.Report(f.ctx, CommissionFilter{EndDate: old.CreatedAt.Format("2006-01-02")})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Summary.TotalOrders)

	r, err = f.svc.Commission.Report(f.ctx, CommissionFilter{Status: models.SettlementPaid})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Summary.TotalOrders)

	_, err = f.svc.Commission.Report(f.ctx, CommissionFilter{StartDate: "yesterday"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSetSettlementStatus(t *testing.T) {
	f := newFixture(t)
	o := f.paid(t)

	updated, err := f.svc.Commission.SetStatus(f.ctx, o.ID, TargetPayout, models.SettlementPaid)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementPaid, updated.RestaurantPayout.Status)
	require.NotNil(t, updated.RestaurantPayout.PaidAt)
	assert.Equal(t, models.SettlementPending, updated.Commission.Status)

	updated, err = f.svc.Commission.SetStatus(f.ctx, o.ID, TargetPayout, models.SettlementRefunded)
	require.NoError(t, err)
	assert.Nil(t, updated.RestaurantPayout.PaidAt)

	_, err = f.svc.Commission.SetStatus(f.ctx, "nope", TargetPayout, models.SettlementPaid)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = f.svc.Commission.SetStatus(f.ctx, o.ID, "bonus", models.SettlementPaid)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.svc.Commission.SetStatus(f.ctx, o.ID, TargetPayout, "settled")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSetCommissionRate(t *testing.T) {
	f := newFixture(t)
	o := f.paid(t)

	updated, err := f.svc.Commission.SetRate(f.ctx, o.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 100.0, updated.Commission.Amount)
	assert.Equal(t, 900.0, updated.RestaurantPayout.Amount)

	var stored models.Order
	require.NoError(t, f.db.First(&stored, "id = ?", o.ID).Error)
	assert.Equal(t, 10.0, stored.Commission.Rate)
	assert.Equal(t, 900.0, stored.RestaurantPayout.Amount)

	_, err = f.svc.Commission.SetRate(f.ctx, o.ID, 101)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Commission.SetStatus(f.ctx, o.ID, TargetCommission, models.SettlementPaid)
	require.NoError(t, err)
	_, err = f.svc.Commission.SetRate(f.ctx, o.ID, 15)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestExportCommissionWorkbook(t *testing.T) {
	f := newFixture(t)
	f.paid(t)

	x, err := f.svc.Commission.ExportXLSX(f.ctx, CommissionFilter{})
	require.NoError(t, err)
	defer x.Close()

	assert.Equal(t, []string{"Summary", "By restaurant", "By date"}, x.GetSheetList())
	v, err := x.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	v, err = x.GetCellValue("By restaurant", "A2")
	require.NoError(t, err)
	assert.Equal(t, f.restaurant.ID, v)
	v, err = x.GetCellValue("By date", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Date", v)
}
