package services

import (
	"testing"
	"time"

	"food-marketplace-api/apperr"
	"food-marketplace-api/internal/testutil"
	"food-marketplace-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCouponQuotesWithoutConsuming(t *testing.T) {
	f := newFixture(t)
	limit := 100.0
	coupon := testutil.Coupon(t, f.db, "SAVE20", models.CouponPercentage, 20, func(c *models.Coupon) {
		c.MaxDiscountAmount = &limit
	})

	q, err := f.svc.Coupons.Validate(f.ctx, f.buyer.ID, CouponCheck{Code: " save20 ", OrderAmount: 1000})
	require.NoError(t, err)
	assert.Equal(t, coupon.ID, q.CouponID)
	assert.Equal(t, "SAVE20", q.Code)
	assert.Equal(t, 100.0, q.DiscountAmount)
	assert.Equal(t, "20% off up to ₹100", q.Description)

	q, err = f.svc.Coupons.Validate(f.ctx, f.buyer.ID, CouponCheck{Code: "SAVE20", OrderAmount: 300})
	require.NoError(t, err)
	assert.Equal(t, 60.0, q.DiscountAmount)

	var reloaded models.Coupon
	require.NoError(t, f.db.First(&reloaded, "id = ?", coupon.ID).Error)
	assert.Zero(t, reloaded.UsageCount)
}

func TestValidateCouponRejections(t *testing.T) {
	f := newFixture(t)
	testutil.Coupon(t, f.db, "FUTURE", models.CouponFixed, 50, func(c *models.Coupon) {
		c.ValidFrom = testutil.Now.Add(time.Hour)
	})
	testutil.Coupon(t, f.db, "OLD", models.CouponFixed, 50, func(c *models.Coupon) {
		c.ValidFrom = testutil.Now.AddDate(0, -2, 0)
		c.ValidUntil = testutil.Now.Add(-time.Hour)
	})
	testutil.Coupon(t, f.db, "FULL", models.CouponFixed, 50, func(c *models.Coupon) {
		c.UsageLimit = 5
		c.UsageCount = 5
	})
	testutil.Coupon(t, f.db, "BIG", models.CouponFixed, 50, func(c *models.Coupon) { c.MinOrderAmount = 500 })
	testutil.Coupon(t, f.db, "ELSEWHERE", models.CouponFixed, 50, func(c *models.Coupon) {
		c.ApplicableRestaurants = []string{"rest-999"}
	})
	testutil.Coupon(t, f.db, "DESSERT", models.CouponFixed, 50, func(c *models.Coupon) {
		c.ApplicableCategories = []string{"Desserts"}
	})
	off := testutil.Coupon(t, f.db, "OFF", models.CouponFixed, 50)
	testutil.Deactivate(t, f.db, off, "is_active")

	cases := []struct {
		check CouponCheck
		kind  apperr.Kind
		msg   string
	}{
		{CouponCheck{Code: ""}, apperr.KindValidation, "Coupon code is required"},
		{CouponCheck{Code: "NOPE", OrderAmount: 100}, apperr.KindNotFound, "Invalid coupon code"},
		{CouponCheck{Code: "OFF", OrderAmount: 100}, apperr.KindNotFound, "Invalid coupon code"},
		{CouponCheck{Code: "FUTURE", OrderAmount: 100}, apperr.KindExpired, "Coupon not yet valid"},
		{CouponCheck{Code: "OLD", OrderAmount: 100}, apperr.KindExpired, "Coupon has expired"},
		{CouponCheck{Code: "FULL", OrderAmount: 100}, apperr.KindLimitExceeded, "Coupon usage limit reached"},
		{CouponCheck{Code: "BIG", OrderAmount: 499.5}, apperr.KindValidation, "Minimum order amount is ₹500"},
		{CouponCheck{Code: "ELSEWHERE", OrderAmount: 100, RestaurantID: f.restaurant.ID}, apperr.KindValidation, "Coupon not applicable for this restaurant"},
		{CouponCheck{Code: "DESSERT", OrderAmount: 100, Categories: []string{"Main Course"}}, apperr.KindValidation, "Coupon not applicable for selected items"},
	}
	for _, tc := range cases {
		t.Run(tc.check.Code, func(t *testing.T) {
			_, err := f.svc.Coupons.Validate(f.ctx, f.buyer.ID, tc.check)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
			assert.Equal(t, tc.msg, err.Error())
		})
	}

	// carts without categories are not held to the category rule
	_, err := f.svc.Coupons.Validate(f.ctx, f.buyer.ID, CouponCheck{Code: "DESSERT", OrderAmount: 100})
	assert.NoError(t, err)
}

func TestFreeDeliveryCouponCappedAtFee(t *testing.T) {
	f := newFixture(t)
	f.svc.Orders.pricing.DeliveryFee = 40
	testutil.Coupon(t, f.db, "FREEDEL", models.CouponFreeDelivery, 60)

	placed := f.place(t, f.buyer, func(in *PlaceOrderInput) { in.CouponCode = "FREEDEL" })
	assert.Equal(t, 40.0, placed.Order.DeliveryFee)
	assert.Equal(t, 40.0, placed.Order.Coupon.DeliveryDiscount)
	assert.Equal(t, 1000.0, placed.Order.TotalAmount)
}

func TestCreateCoupon(t *testing.T) {
	f := newFixture(t)
	in := CouponInput{
		Code:       "welcome50",
		Type:       models.CouponFixed,
		Value:      50,
		ValidFrom:  testutil.Now,
		ValidUntil: testutil.Now.AddDate(0, 1, 0),
	}
	c, err := f.svc.Coupons.Create(f.ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "WELCOME50", c.Code)
	assert.Equal(t, 1000, c.UsageLimit)
	assert.Equal(t, 1, c.UserUsageLimit)

	_, err = f.svc.Coupons.Create(f.ctx, in)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	bad := in
	bad.Code = "PCT"
	bad.Type = models.CouponPercentage
	bad.Value = 120
	_, err = f.svc.Coupons.Create(f.ctx, bad)
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Details, "value")
}
