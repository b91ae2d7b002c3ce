package services

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"
	"food-marketplace-api/pricing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"
)

type CouponService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCouponService(db *gorm.DB, clock func() time.Time) *CouponService {
	return &CouponService{db: db, now: clock}
}

// CouponCheck is everything a coupon rule is evaluated against
type CouponCheck struct {
	Code         string   `json:"code"`
	OrderAmount  float64  `json:"orderAmount"`
	RestaurantID string   `json:"restaurantId"`
	Categories   []string `json:"categories"`
}

type CouponQuote struct {
	CouponID         string            `json:"id"`
	Code             string            `json:"code"`
	Type             models.CouponType `json:"type"`
	Value            float64           `json:"value"`
	DiscountAmount   float64           `json:"discountAmount"`
	DeliveryDiscount float64           `json:"deliveryDiscount"`
	Description      string            `json:"description"`
}

// Validate evaluates a coupon for a user without consuming it
func (s *CouponService) Validate(ctx context.Context, userID string, in CouponCheck) (*CouponQuote, error) {
	return s.quote(s.db.WithContext(ctx), userID, in)
}

// quote runs the checks in order; the first failing check wins
func (s *CouponService) quote(db *gorm.DB, userID string, in CouponCheck) (*CouponQuote, error) {
	code := normalizeCode(in.Code)
	if code == "" {
		return nil, apperr.Validation("Coupon code is required")
	}

	var coupon models.Coupon
	if err := db.Where("code = ? AND is_active = ?", code, true).First(&coupon).Error; err != nil {
		return nil, apperr.FromDB(err, "Invalid coupon code")
	}

	now := s.now()
	if now.Before(coupon.ValidFrom) {
		return nil, apperr.Expired("Coupon not yet valid")
	}
	if now.After(coupon.ValidUntil) {
		return nil, apperr.Expired("Coupon has expired")
	}
	if coupon.UsageCount >= coupon.UsageLimit {
		return nil, apperr.LimitExceeded("Coupon usage limit reached")
	}

	var used int64
	if err := db.Model(&models.CouponUsage{}).
		Where("user_id = ? AND coupon_id = ?", userID, coupon.ID).
		Count(&used).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}
	if used >= int64(coupon.UserUsageLimit) {
		return nil, apperr.LimitExceeded("You have already used this coupon")
	}

	if in.OrderAmount < coupon.MinOrderAmount {
		return nil, apperr.Validation("Minimum order amount is ₹" + formatAmount(coupon.MinOrderAmount))
	}
	if len(coupon.ApplicableRestaurants) > 0 && !slices.Contains(coupon.ApplicableRestaurants, in.RestaurantID) {
		return nil, apperr.Validation("Coupon not applicable for this restaurant")
	}
	// carts that declare no categories are checked again at placement
	if len(coupon.ApplicableCategories) > 0 && len(in.Categories) > 0 {
		matched := slices.ContainsFunc(in.Categories, func(c string) bool {
			return slices.Contains(coupon.ApplicableCategories, c)
		})
		if !matched {
			return nil, apperr.Validation("Coupon not applicable for selected items")
		}
	}

	d := pricing.CouponDiscount(coupon.Type, coupon.Value, coupon.MaxDiscountAmount, in.OrderAmount)
	return &CouponQuote{
		CouponID:         coupon.ID,
		Code:             coupon.Code,
		Type:             coupon.Type,
		Value:            coupon.Value,
		DiscountAmount:   d.Amount,
		DeliveryDiscount: d.DeliveryAmount,
		Description:      describeCoupon(&coupon),
	}, nil
}

// consume records one redemption inside the order transaction. The counter
// only moves while it is below the limit, so concurrent orders cannot overshoot.
func (s *CouponService) consume(tx *gorm.DB, q *CouponQuote, userID, orderID string) error {
	res := tx.Model(&models.Coupon{}).
		Where("id = ? AND usage_count < usage_limit", q.CouponID).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if res.Error != nil {
		return apperr.FromDB(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperr.LimitExceeded("Coupon usage limit reached")
	}
	usage := models.CouponUsage{
		UserID:         userID,
		CouponID:       q.CouponID,
		CouponCode:     q.Code,
		OrderID:        orderID,
		DiscountAmount: pricing.Round2(q.DiscountAmount + q.DeliveryDiscount),
		UsedAt:         s.now(),
	}
	if err := tx.Create(&usage).Error; err != nil {
		return apperr.FromDB(err, "")
	}
	return nil
}

type CouponInput struct {
	Code                  string            `json:"code"`
	Description           string            `json:"description"`
	Type                  models.CouponType `json:"type"`
	Value                 float64           `json:"value"`
	MinOrderAmount        float64           `json:"minOrderAmount"`
	MaxDiscountAmount     *float64          `json:"maxDiscountAmount"`
	ValidFrom             time.Time         `json:"validFrom"`
	ValidUntil            time.Time         `json:"validUntil"`
	UsageLimit            int               `json:"usageLimit"`
	UserUsageLimit        int               `json:"userUsageLimit"`
	ApplicableRestaurants []string          `json:"applicableRestaurants"`
	ApplicableCategories  []string          `json:"applicableCategories"`
}

func (in CouponInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Code, validation.Required, validation.Length(3, 32)),
		validation.Field(&in.Type, validation.Required,
			validation.In(models.CouponPercentage, models.CouponFixed, models.CouponFreeDelivery)),
		validation.Field(&in.Value, validation.Required, validation.Min(0.01),
			validation.When(in.Type == models.CouponPercentage, validation.Max(100.0))),
		validation.Field(&in.MinOrderAmount, validation.Min(0.0)),
		validation.Field(&in.ValidFrom, validation.Required),
		validation.Field(&in.ValidUntil, validation.Required,
			validation.By(func(any) error {
				if !in.ValidUntil.After(in.ValidFrom) {
					return fmt.Errorf("must be after validFrom")
				}
				return nil
			})),
		validation.Field(&in.UsageLimit, validation.Min(0)),
		validation.Field(&in.UserUsageLimit, validation.Min(0)),
	)
}

// Create issues a coupon; codes are unique case-insensitively
func (s *CouponService) Create(ctx context.Context, in CouponInput) (*models.Coupon, error) {
	in.Code = normalizeCode(in.Code)
	if err := validationError(in.Validate()); err != nil {
		return nil, err
	}
	if in.UsageLimit == 0 {
		in.UsageLimit = 1000
	}
	if in.UserUsageLimit == 0 {
		in.UserUsageLimit = 1
	}
	coupon := models.Coupon{
		Code:                  in.Code,
		Description:           in.Description,
		Type:                  in.Type,
		Value:                 in.Value,
		MinOrderAmount:        in.MinOrderAmount,
		MaxDiscountAmount:     in.MaxDiscountAmount,
		ValidFrom:             in.ValidFrom,
		ValidUntil:            in.ValidUntil,
		UsageLimit:            in.UsageLimit,
		UserUsageLimit:        in.UserUsageLimit,
		ApplicableRestaurants: in.ApplicableRestaurants,
		ApplicableCategories:  in.ApplicableCategories,
		IsActive:              true,
	}
	if err := s.db.WithContext(ctx).Create(&coupon).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, apperr.Conflict("Coupon code already exists")
		}
		return nil, apperr.FromDB(err, "")
	}
	return &coupon, nil
}

func describeCoupon(c *models.Coupon) string {
	switch c.Type {
	case models.CouponPercentage:
		desc := formatAmount(c.Value) + "% off"
		if c.MaxDiscountAmount != nil && *c.MaxDiscountAmount > 0 {
			desc += " up to ₹" + formatAmount(*c.MaxDiscountAmount)
		}
		return desc
	case models.CouponFixed:
		return "₹" + formatAmount(c.Value) + " off"
	case models.CouponFreeDelivery:
		return "Free delivery"
	}
	return ""
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
