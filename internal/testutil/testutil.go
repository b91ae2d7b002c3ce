// Package testutil provides an in-memory database and fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"food-marketplace-api/config"
	"food-marketplace-api/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Now is the fixed instant test clocks start from
var Now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// Password is the plain-text password of every seeded user
const Password = "secret123"

// Clock is a settable time source for services under test
type Clock struct{ t time.Time }

func NewClock() *Clock { return &Clock{t: Now} }

func (c *Clock) Now() time.Time          { return c.t }
func (c *Clock) Advance(d time.Duration) { c.t = c.t.Add(d) }
func (c *Clock) Set(t time.Time)         { c.t = t }

// Config returns a valid configuration pointing at no external services
func Config() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Name: "test", Environment: "test", Port: "0", Version: "test"},
		Database: config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:"},
		JWT:      config.JWTConfig{Secret: "test-secret", TokenTTL: time.Hour, Issuer: "food-marketplace-api"},
		Pricing:  config.PricingConfig{CommissionRate: 12, DeliveryFee: 0},
		Tracking: config.TrackingConfig{
			PollInterval: 20 * time.Millisecond,
			InitialETA:   40 * time.Minute,
			DispatchETA:  20 * time.Minute,
		},
		Payment:   config.PaymentConfig{Enabled: true, KeyID: "key_test", KeySecret: "pay-secret", Currency: "INR"},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit: config.RateLimitConfig{AuthPerMinute: 1000},
	}
}

// DB opens a private in-memory database migrated with every model
func DB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	db, err := config.OpenDB(config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Create inserts any model and fails the test on error
func Create(t *testing.T, db *gorm.DB, v any) {
	t.Helper()
	require.NoError(t, db.Create(v).Error)
}

// User seeds a user with the given role; owners are bound to restaurantID
func User(t *testing.T, db *gorm.DB, role models.UserRole, restaurantID string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)
	id := uuid.NewString()
	u := &models.User{
		ID:           id,
		Name:         "User " + id[:6],
		Email:        id[:8] + "@example.com",
		Phone:        fmt.Sprintf("9%09d", uuid.New().ID()%1_000_000_000),
		PasswordHash: string(hash),
		Role:         role,
		RestaurantID: restaurantID,
	}
	Create(t, db, u)
	return u
}

func Restaurant(t *testing.T, db *gorm.DB, id string) *models.Restaurant {
	t.Helper()
	r := &models.Restaurant{ID: id, Name: "Restaurant " + id, Cuisine: "North Indian", Location: "Bengaluru", Rating: 4.2, IsOpen: true}
	Create(t, db, r)
	return r
}

func MenuItem(t *testing.T, db *gorm.DB, restaurantID, name string, price float64, category string) *models.MenuItem {
	t.Helper()
	m := &models.MenuItem{
		RestaurantID:    restaurantID,
		Name:            name,
		Price:           price,
		Category:        category,
		IsAvailable:     true,
		PreparationTime: 30,
	}
	Create(t, db, m)
	return m
}

// Coupon seeds an active coupon valid around Now
func Coupon(t *testing.T, db *gorm.DB, code string, kind models.CouponType, value float64, mutate ...func(*models.Coupon)) *models.Coupon {
	t.Helper()
	c := &models.Coupon{
		Code:           code,
		Type:           kind,
		Value:          value,
		ValidFrom:      Now.AddDate(0, -1, 0),
		ValidUntil:     Now.AddDate(0, 1, 0),
		UsageLimit:     1000,
		UserUsageLimit: 1,
		IsActive:       true,
	}
	for _, m := range mutate {
		m(c)
	}
	Create(t, db, c)
	return c
}

// GiftCard seeds an active card expiring a year after Now
func GiftCard(t *testing.T, db *gorm.DB, code string, balance float64) *models.GiftCard {
	t.Helper()
	g := &models.GiftCard{
		Code:           code,
		Balance:        balance,
		OriginalAmount: balance,
		ExpiresAt:      Now.AddDate(1, 0, 0),
		IsActive:       true,
	}
	Create(t, db, g)
	return g
}

// Deactivate flips a boolean column to false, which Create skips for columns with a default
func Deactivate(t *testing.T, db *gorm.DB, model any, column string) {
	t.Helper()
	require.NoError(t, db.Model(model).Update(column, false).Error)
}
