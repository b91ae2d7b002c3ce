package services

import (
	"context"
	"math"

	"food-marketplace-api/apperr"
	"food-marketplace-api/config"
	"food-marketplace-api/models"
	"food-marketplace-api/payment"
	"food-marketplace-api/statemachine"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type PaymentService struct {
	db      *gorm.DB
	cfg     config.PaymentConfig
	gateway payment.Gateway
	orders  *OrderService
}

func NewPaymentService(db *gorm.DB, cfg config.PaymentConfig, gw payment.Gateway, orders *OrderService) *PaymentService {
	return &PaymentService{db: db, cfg: cfg, gateway: gw, orders: orders}
}

type CreatePaymentInput struct {
	Amount   float64           `json:"amount"`
	Currency string            `json:"currency"`
	OrderID  string            `json:"orderId"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

type CreatedPayment struct {
	Order *payment.GatewayOrder `json:"order"`
	KeyID string                `json:"keyId"`
}

// CreateOrder opens a gateway order. When it is tied to one of our orders
// the amount charged is that order's total.
func (s *PaymentService) CreateOrder(ctx context.Context, caller *models.User, in CreatePaymentInput) (*CreatedPayment, error) {
	if !s.cfg.Enabled {
		return nil, apperr.Unavailable("Online payment is currently disabled. Please use Cash on Delivery.")
	}
	amount := in.Amount
	if in.OrderID != "" {
		order, err := s.orders.find(s.db.WithContext(ctx), in.OrderID)
		if err != nil {
			return nil, err
		}
		if order.UserID != caller.ID && !caller.IsAdmin() {
			return nil, apperr.Forbidden("You can only pay for your own orders")
		}
		if order.PaymentStatus == models.PaymentCompleted {
			return nil, apperr.Conflict("Order is already paid")
		}
		amount = order.TotalAmount
	}
	if amount <= 0 {
		return nil, apperr.Validation("Invalid amount")
	}
	currency := in.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	receipt := in.Receipt
	if receipt == "" {
		receipt = in.OrderID
	}
	notes := in.Notes
	if notes == nil {
		notes = map[string]string{"orderId": in.OrderID}
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, int64(math.Round(amount*100)), currency, receipt, notes)
	if err != nil {
		return nil, apperr.Upstream("Failed to create payment order", err)
	}
	if in.OrderID != "" {
		err := s.db.WithContext(ctx).Model(&models.Order{}).
			Where("id = ? AND payment_status = ?", in.OrderID, models.PaymentPending).
			Select("payment_status", "payment_method", "payment_details").
			Updates(&models.Order{
				PaymentStatus:  models.PaymentProcessing,
				PaymentMethod:  models.PaymentOnline,
				PaymentDetails: &models.PaymentDetails{GatewayOrderID: gwOrder.ID},
			}).Error
		if err != nil {
			return nil, apperr.FromDB(err, "")
		}
	}
	return &CreatedPayment{Order: gwOrder, KeyID: s.cfg.KeyID}, nil
}

type VerifyPaymentInput struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	GatewaySignature string `json:"gatewaySignature"`
	OrderID          string `json:"orderId"`
}

// Verify settles a gateway callback. A bad signature is terminal: the payment
// fails and a still-pending order is cancelled. The returned order reflects
// the persisted state even when an error is returned.
func (s *PaymentService) Verify(ctx context.Context, caller *models.User, in VerifyPaymentInput) (*models.Order, error) {
	if in.GatewayOrderID == "" || in.GatewayPaymentID == "" || in.GatewaySignature == "" || in.OrderID == "" {
		return nil, apperr.Validation("Missing required payment details")
	}
	order, err := s.orders.find(s.db.WithContext(ctx), in.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != caller.ID && !caller.IsAdmin() {
		return nil, apperr.Forbidden("You can only verify payments for your own orders")
	}
	if order.PaymentStatus == models.PaymentCompleted {
		if order.PaymentDetails != nil && order.PaymentDetails.GatewayPaymentID == in.GatewayPaymentID {
			return order, nil
		}
		return nil, apperr.Conflict("Order is already paid")
	}

	details := &models.PaymentDetails{
		GatewayOrderID:   in.GatewayOrderID,
		GatewayPaymentID: in.GatewayPaymentID,
		GatewaySignature: in.GatewaySignature,
	}

	if !payment.VerifySignature(s.cfg.KeySecret, in.GatewayOrderID, in.GatewayPaymentID, in.GatewaySignature) {
		log.Warn().Str("order_id", order.ID).Str("gateway_order_id", in.GatewayOrderID).Msg("Payment signature mismatch")
		setFailed := s.paymentUpdate(order.ID, &models.Order{
			PaymentStatus:        models.PaymentFailed,
			PaymentDetails:       details,
			PaymentFailureReason: "Invalid payment signature",
		})
		var updated *models.Order
		if statemachine.CanTransition(order.Status, models.StatusCancelled, statemachine.ActorSystem) == nil {
			updated, err = s.orders.transition(ctx, order, models.StatusCancelled, "Payment verification failed", "system", setFailed)
		} else {
			err = s.db.WithContext(ctx).Transaction(setFailed)
			if err == nil {
				updated, err = s.orders.find(s.db.WithContext(ctx), order.ID)
			}
		}
		if err != nil {
			return nil, err
		}
		return updated, apperr.Validation("Payment verification failed. Invalid signature.")
	}

	setPaid := s.paymentUpdate(order.ID, &models.Order{
		PaymentStatus:  models.PaymentCompleted,
		PaymentMethod:  models.PaymentOnline,
		PaymentDetails: details,
	})
	if statemachine.CanTransition(order.Status, models.StatusConfirmed, statemachine.ActorSystem) == nil {
		return s.orders.transition(ctx, order, models.StatusConfirmed, "Payment received", "system", setPaid)
	}
	if err := s.db.WithContext(ctx).Transaction(setPaid); err != nil {
		return nil, err
	}
	return s.orders.find(s.db.WithContext(ctx), order.ID)
}

func (s *PaymentService) paymentUpdate(orderID string, values *models.Order) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		cols := []string{"payment_status", "payment_details", "payment_failure_reason"}
		if values.PaymentMethod != "" {
			cols = append(cols, "payment_method")
		}
		err := tx.Model(&models.Order{}).Where("id = ?", orderID).Select(cols).Updates(values).Error
		return apperr.FromDB(err, "")
	}
}
