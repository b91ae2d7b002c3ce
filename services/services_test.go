package services

import (
	"context"
	"testing"

	"food-marketplace-api/config"
	"food-marketplace-api/internal/testutil"
	"food-marketplace-api/middleware"
	"food-marketplace-api/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	ctx        context.Context
	db         *gorm.DB
	cfg        *config.Config
	clock      *testutil.Clock
	svc        *Services
	restaurant *models.Restaurant
	owner      *models.User
	admin      *models.User
	buyer      *models.User
	thali      *models.MenuItem // 500, Main Course
	lassi      *models.MenuItem // 100, Beverages
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	cfg := testutil.Config()
	clock := testutil.NewClock()
	f := &fixture{
		ctx:   context.Background(),
		db:    db,
		cfg:   cfg,
		clock: clock,
		svc:   New(db, cfg, Deps{Tokens: middleware.NewTokens(cfg.JWT), Clock: clock.Now}),
	}
	f.restaurant = testutil.Restaurant(t, db, "rest-001")
	f.owner = testutil.User(t, db, models.RoleRestaurantOwner, f.restaurant.ID)
	f.admin = testutil.User(t, db, models.RoleAdmin, "")
	f.buyer = testutil.User(t, db, models.RoleCustomer, "")
	f.thali = testutil.MenuItem(t, db, f.restaurant.ID, "Veg Thali", 500, "Main Course")
	f.lassi = testutil.MenuItem(t, db, f.restaurant.ID, "Sweet Lassi", 100, "Beverages")
	return f
}

func (f *fixture) orderInput(lines ...OrderLineInput) PlaceOrderInput {
	return PlaceOrderInput{
		RestaurantID: f.restaurant.ID,
		Items:        lines,
		DeliveryAddress: &models.DeliveryAddress{
			FullAddress: "12 MG Road",
			City:        "Bengaluru",
			Pincode:     "560001",
			Phone:       "9876543210",
		},
		Platform: models.PlatformSwiggy,
	}
}

// place orders two thalis (subtotal 1000) unless mutate changes the input
func (f *fixture) place(t *testing.T, buyer *models.User, mutate ...func(*PlaceOrderInput)) *PlacedOrder {
	t.Helper()
	in := f.orderInput(OrderLineInput{MenuItemID: f.thali.ID, Quantity: 2})
	for _, m := range mutate {
		m(&in)
	}
	placed, err := f.svc.Orders.Place(f.ctx, buyer, in)
	require.NoError(t, err)
	return placed
}

func (f *fixture) tracking(t *testing.T, orderID string) *models.OrderTracking {
	t.Helper()
	var tr models.OrderTracking
	require.NoError(t, f.db.Where("order_id = ?", orderID).First(&tr).Error)
	return &tr
}
