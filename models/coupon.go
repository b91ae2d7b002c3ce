package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CouponType string

const (
	CouponPercentage   CouponType = "percentage"
	CouponFixed        CouponType = "fixed"
	CouponFreeDelivery CouponType = "free_delivery"
)

type Coupon struct {
	ID                    string     `json:"id" gorm:"primaryKey;size:36"`
	Code                  string     `json:"code" gorm:"uniqueIndex;not null"`
	Description           string     `json:"description,omitempty"`
	Type                  CouponType `json:"type" gorm:"not null"`
	Value                 float64    `json:"value" gorm:"not null"`
	MinOrderAmount        float64    `json:"minOrderAmount" gorm:"default:0"`
	MaxDiscountAmount     *float64   `json:"maxDiscountAmount"`
	ValidFrom             time.Time  `json:"validFrom" gorm:"not null"`
	ValidUntil            time.Time  `json:"validUntil" gorm:"not null"`
	UsageLimit            int        `json:"usageLimit" gorm:"default:1000"`
	UsageCount            int        `json:"usageCount" gorm:"default:0"`
	UserUsageLimit        int        `json:"userUsageLimit" gorm:"default:1"`
	ApplicableRestaurants []string   `json:"applicableRestaurants" gorm:"serializer:json"`
	ApplicableCategories  []string   `json:"applicableCategories" gorm:"serializer:json"`
	IsActive              bool       `json:"isActive" gorm:"default:true;index"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	return nil
}

// CouponUsage records one redemption and is never updated afterwards
type CouponUsage struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	UserID         string    `json:"userId" gorm:"not null;index:idx_coupon_usage_user"`
	CouponID       string    `json:"couponId" gorm:"not null;index:idx_coupon_usage_user"`
	CouponCode     string    `json:"couponCode" gorm:"not null"`
	OrderID        string    `json:"orderId" gorm:"not null;index"`
	DiscountAmount float64   `json:"discountAmount"`
	UsedAt         time.Time `json:"usedAt"`
}

func (u *CouponUsage) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.UsedAt.IsZero() {
		u.UsedAt = time.Now()
	}
	return nil
}
