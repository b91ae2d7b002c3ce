// Package payment creates gateway orders and verifies gateway callbacks.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// GatewayOrder is what the browser checkout needs to start a payment
type GatewayOrder struct {
	ID        string            `json:"id"`
	Amount    int64             `json:"amount"` // minor units
	Currency  string            `json:"currency"`
	Receipt   string            `json:"receipt"`
	Status    string            `json:"status"`
	Notes     map[string]string `json:"notes,omitempty"`
	CreatedAt int64             `json:"created_at"`
}

type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error)
}

// LocalGateway issues gateway orders without a remote processor. Signatures
// it expects are computed with the same secret by the checkout simulator.
type LocalGateway struct{}

func NewLocalGateway() *LocalGateway { return &LocalGateway{} }

func (LocalGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &GatewayOrder{
		ID:        "order_" + uuid.NewString(),
		Amount:    amountMinor,
		Currency:  currency,
		Receipt:   receipt,
		Status:    "created",
		Notes:     notes,
		CreatedAt: time.Now().Unix(),
	}, nil
}

// Sign computes the hex HMAC-SHA256 of "orderId|paymentId"
func Sign(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time
func VerifySignature(secret, gatewayOrderID, gatewayPaymentID, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
