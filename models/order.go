package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus represents all possible states of a marketplace order
type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

var OrderStatuses = []OrderStatus{
	StatusPending, StatusConfirmed, StatusPreparing,
	StatusOutForDelivery, StatusDelivered, StatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
)

// SettlementStatus is shared by the commission and the restaurant payout records
type SettlementStatus string

const (
	SettlementPending  SettlementStatus = "pending"
	SettlementPaid     SettlementStatus = "paid"
	SettlementRefunded SettlementStatus = "refunded"
)

func (s SettlementStatus) Valid() bool {
	return s == SettlementPending || s == SettlementPaid || s == SettlementRefunded
}

// OrderItem is a snapshot of a menu item at the time of ordering
type OrderItem struct {
	MenuItemID string   `json:"menuItemId"`
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	Quantity   int      `json:"quantity"`
	IsVeg      bool     `json:"isVeg"`
	Platform   Platform `json:"platform"`
	Category   string   `json:"category,omitempty"`
}

type AppliedCoupon struct {
	CouponID         string  `json:"couponId"`
	Code             string  `json:"code"`
	DiscountAmount   float64 `json:"discountAmount"`
	DeliveryDiscount float64 `json:"deliveryDiscount"`
}

type AppliedGiftCard struct {
	GiftCardID string  `json:"giftCardId"`
	Code       string  `json:"code"`
	AmountUsed float64 `json:"amountUsed"`
}

type DeliveryAddress struct {
	FullAddress string `json:"fullAddress" binding:"required"`
	Landmark    string `json:"landmark,omitempty"`
	City        string `json:"city" binding:"required"`
	Pincode     string `json:"pincode" binding:"required"`
	Phone       string `json:"phone" binding:"required"`
}

type PaymentDetails struct {
	GatewayOrderID   string `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID string `json:"gatewayPaymentId,omitempty"`
	GatewaySignature string `json:"gatewaySignature,omitempty"`
}

type Commission struct {
	Rate   float64          `json:"rate"`
	Amount float64          `json:"amount"`
	Status SettlementStatus `json:"status" gorm:"default:'pending'"`
	PaidAt *time.Time       `json:"paidAt"`
}

type Payout struct {
	Amount float64          `json:"amount"`
	Status SettlementStatus `json:"status" gorm:"default:'pending'"`
	PaidAt *time.Time       `json:"paidAt"`
}

type Order struct {
	ID                   string           `json:"id" gorm:"primaryKey;size:36"`
	UserID               string           `json:"userId" gorm:"not null;index"`
	RestaurantID         string           `json:"restaurantId" gorm:"not null;index"`
	RestaurantName       string           `json:"restaurantName" gorm:"not null"`
	Items                []OrderItem      `json:"items" gorm:"serializer:json;not null"`
	Subtotal             float64          `json:"subtotal"`
	DeliveryFee          float64          `json:"deliveryFee"`
	TotalAmount          float64          `json:"totalAmount" gorm:"not null"`
	Coupon               *AppliedCoupon   `json:"coupon,omitempty" gorm:"serializer:json"`
	GiftCard             *AppliedGiftCard `json:"giftCard,omitempty" gorm:"serializer:json"`
	DeliveryAddress      DeliveryAddress  `json:"deliveryAddress" gorm:"serializer:json"`
	Status               OrderStatus      `json:"status" gorm:"not null;default:'pending';index"`
	Platform             Platform         `json:"platform" gorm:"not null"`
	PaymentStatus        PaymentStatus    `json:"paymentStatus" gorm:"not null;default:'pending';index"`
	PaymentMethod        PaymentMethod    `json:"paymentMethod" gorm:"not null;default:'cod'"`
	PaymentDetails       *PaymentDetails  `json:"paymentDetails,omitempty" gorm:"serializer:json"`
	PaymentFailureReason string           `json:"paymentFailureReason,omitempty"`
	SpecialInstructions  string           `json:"specialInstructions,omitempty"`
	Commission           Commission       `json:"commission" gorm:"embedded;embeddedPrefix:commission_"`
	RestaurantPayout     Payout           `json:"restaurantPayout" gorm:"embedded;embeddedPrefix:payout_"`
	CreatedAt            time.Time        `json:"createdAt" gorm:"index"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// OrderNumber is the short human-facing reference printed on receipts
func (o *Order) OrderNumber() string {
	id := strings.ReplaceAll(o.ID, "-", "")
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return strings.ToUpper(id)
}

// Categories returns the distinct categories of the cart, in order of first appearance
func (o *Order) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range o.Items {
		if it.Category == "" || seen[it.Category] {
			continue
		}
		seen[it.Category] = true
		out = append(out, it.Category)
	}
	return out
}
