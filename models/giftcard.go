package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GiftCardTxnType string

const (
	TxnPurchase   GiftCardTxnType = "purchase"
	TxnRedemption GiftCardTxnType = "redemption"
	TxnRefund     GiftCardTxnType = "refund"
)

type GiftCard struct {
	ID             string                `json:"id" gorm:"primaryKey;size:36"`
	Code           string                `json:"code" gorm:"uniqueIndex;not null"`
	Balance        float64               `json:"balance" gorm:"not null"`
	OriginalAmount float64               `json:"originalAmount" gorm:"not null"`
	PurchasedBy    string                `json:"purchasedBy,omitempty" gorm:"index"`
	RecipientEmail string                `json:"recipientEmail,omitempty"`
	RecipientName  string                `json:"recipientName,omitempty"`
	Message        string                `json:"message,omitempty" gorm:"size:500"`
	ExpiresAt      time.Time             `json:"expiresAt" gorm:"not null"`
	IsActive       bool                  `json:"isActive" gorm:"default:true"`
	Transactions   []GiftCardTransaction `json:"transactions,omitempty" gorm:"foreignKey:GiftCardID"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

func (g *GiftCard) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.Code = strings.ToUpper(strings.TrimSpace(g.Code))
	return nil
}

// Expired reports whether the card has lapsed at the given instant
func (g *GiftCard) Expired(now time.Time) bool {
	return !g.ExpiresAt.After(now)
}

// GiftCardTransaction is a signed ledger entry; redemptions are negative
type GiftCardTransaction struct {
	ID         string          `json:"id" gorm:"primaryKey;size:36"`
	GiftCardID string          `json:"giftCardId" gorm:"not null;index"`
	Type       GiftCardTxnType `json:"type" gorm:"not null"`
	Amount     float64         `json:"amount" gorm:"not null"`
	OrderID    string          `json:"orderId,omitempty" gorm:"index"`
	UserID     string          `json:"userId,omitempty"`
	Note       string          `json:"note,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (t *GiftCardTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	return nil
}
