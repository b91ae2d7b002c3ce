// Package services holds the business operations behind the HTTP handlers.
// Every service receives the database handle explicitly.
package services

import (
	"context"
	"time"

	"food-marketplace-api/config"
	"food-marketplace-api/jobs"
	"food-marketplace-api/models"
	"food-marketplace-api/notify"
	"food-marketplace-api/payment"

	"gorm.io/gorm"
)

// TokenIssuer signs bearer tokens for authenticated users
type TokenIssuer interface {
	Generate(user *models.User) (string, error)
}

// MirrorQueue retries tracking mirrors that failed inline
type MirrorQueue interface {
	EnqueueTrackingMirror(ctx context.Context, p jobs.TrackingMirrorPayload) error
}

// Deps are the optional collaborators; nil values fall back to in-process defaults
type Deps struct {
	Tokens   TokenIssuer
	Notifier notify.Notifier
	Queue    MirrorQueue
	Gateway  payment.Gateway
	Clock    func() time.Time
}

type Services struct {
	Users      *UserService
	Catalog    *CatalogService
	Addresses  *AddressService
	Favorites  *FavoriteService
	Coupons    *CouponService
	GiftCards  *GiftCardService
	Tracking   *TrackingService
	Orders     *OrderService
	Commission *CommissionService
	Analytics  *AnalyticsService
	Payments   *PaymentService
}

func New(db *gorm.DB, cfg *config.Config, deps Deps) *Services {
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLocal()
	}
	if deps.Gateway == nil {
		deps.Gateway = payment.NewLocalGateway()
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}

	coupons := NewCouponService(db, deps.Clock)
	giftCards := NewGiftCardService(db, deps.Clock)
	tracking := NewTrackingService(db, cfg.Tracking, deps.Notifier, deps.Queue, deps.Clock)
	orders := NewOrderService(db, cfg.Pricing, coupons, giftCards, tracking, deps.Clock)

	return &Services{
		Users:      NewUserService(db, deps.Tokens),
		Catalog:    NewCatalogService(db),
		Addresses:  NewAddressService(db),
		Favorites:  NewFavoriteService(db),
		Coupons:    coupons,
		GiftCards:  giftCards,
		Tracking:   tracking,
		Orders:     orders,
		Commission: NewCommissionService(db, deps.Clock),
		Analytics:  NewAnalyticsService(db, deps.Clock),
		Payments:   NewPaymentService(db, cfg.Payment, deps.Gateway, orders),
	}
}
