package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"food-marketplace-api/apperr"
	"food-marketplace-api/config"
	"food-marketplace-api/models"
	"food-marketplace-api/pricing"
	"food-marketplace-api/statemachine"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	maxLineQuantity   = 50
	orderHistoryLimit = 50
)

// defaultNotes label history entries when the caller gives no note
var defaultNotes = map[models.OrderStatus]string{
	models.StatusPending:        "Order placed successfully",
	models.StatusConfirmed:      "Order confirmed by restaurant",
	models.StatusPreparing:      "Your food is being prepared",
	models.StatusOutForDelivery: "Order is out for delivery",
	models.StatusDelivered:      "Order delivered",
	models.StatusCancelled:      "Order cancelled",
}

type OrderService struct {
	db        *gorm.DB
	pricing   config.PricingConfig
	tracking  *TrackingService
	coupons   *CouponService
	giftCards *GiftCardService
	now       func() time.Time
}

func NewOrderService(db *gorm.DB, p config.PricingConfig, coupons *CouponService, giftCards *GiftCardService, tracking *TrackingService, clock func() time.Time) *OrderService {
	return &OrderService{
		db:        db,
		pricing:   p,
		coupons:   coupons,
		giftCards: giftCards,
		tracking:  tracking,
		now:       clock,
	}
}

type OrderLineInput struct {
	MenuItemID string `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
}

type PlaceOrderInput struct {
	UserID              string                  `json:"userId"` // admins may order on behalf of a user
	RestaurantID        string                  `json:"restaurantId"`
	Items               []OrderLineInput        `json:"items"`
	DeliveryAddress     *models.DeliveryAddress `json:"deliveryAddress"`
	Platform            models.Platform         `json:"platform"`
	PaymentMethod       models.PaymentMethod    `json:"paymentMethod"`
	SpecialInstructions string                  `json:"specialInstructions"`
	CouponCode          string                  `json:"couponCode"`
	GiftCardCode        string                  `json:"giftCardCode"`
	CommissionRate      *float64                `json:"commissionRate"` // admin only
}

func (in *PlaceOrderInput) check() error {
	var missing []string
	if in.RestaurantID == "" {
		missing = append(missing, "restaurantId")
	}
	if len(in.Items) == 0 {
		missing = append(missing, "items")
	}
	if in.DeliveryAddress == nil {
		missing = append(missing, "deliveryAddress")
	} else {
		a := in.DeliveryAddress
		fields := []struct{ name, value string }{
			{"deliveryAddress.fullAddress", a.FullAddress},
			{"deliveryAddress.city", a.City},
			{"deliveryAddress.pincode", a.Pincode},
			{"deliveryAddress.phone", a.Phone},
		}
		for _, f := range fields {
			if strings.TrimSpace(f.value) == "" {
				missing = append(missing, f.name)
			}
		}
	}
	if in.Platform == "" {
		missing = append(missing, "platform")
	}
	if len(missing) > 0 {
		return apperr.Validation("Missing required fields").WithDetails(map[string]any{"missing": missing})
	}
	if !in.Platform.Valid() {
		return apperr.Validation("Invalid platform. Must be one of: swiggy, zomato, ondc")
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = models.PaymentCOD
	}
	if in.PaymentMethod != models.PaymentCOD && in.PaymentMethod != models.PaymentOnline {
		return apperr.Validation("Invalid payment method. Must be cod or online")
	}
	for _, line := range in.Items {
		if line.MenuItemID == "" {
			return apperr.Validation("Every item needs a menuItemId")
		}
		if line.Quantity < 1 || line.Quantity > maxLineQuantity {
			return apperr.Validation(fmt.Sprintf("Quantity must be between 1 and %d", maxLineQuantity))
		}
	}
	if in.CommissionRate != nil && (*in.CommissionRate < 0 || *in.CommissionRate > 100) {
		return apperr.Validation("Commission rate must be between 0 and 100")
	}
	return nil
}

type PlacedOrder struct {
	Order    *models.Order         `json:"order"`
	Tracking *models.OrderTracking `json:"tracking"`
}

// Place prices and persists an order with its coupon, gift card and tracking in one transaction
func (s *OrderService) Place(ctx context.Context, caller *models.User, in PlaceOrderInput) (*PlacedOrder, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		if in.UserID != "" && in.UserID != caller.ID {
			return nil, apperr.Forbidden("You can only place orders for yourself")
		}
		if in.CommissionRate != nil {
			return nil, apperr.Forbidden("Only admins can set a commission rate")
		}
	}
	buyerID := caller.ID
	if in.UserID != "" {
		buyerID = in.UserID
	}
	rate := s.pricing.CommissionRate
	if in.CommissionRate != nil {
		rate = *in.CommissionRate
	}

	var placed PlacedOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var buyer models.User
		if err := tx.Select("id").First(&buyer, "id = ?", buyerID).Error; err != nil {
			return validationIfMissing(err, "User not found")
		}
		var restaurant models.Restaurant
		if err := tx.First(&restaurant, "id = ?", in.RestaurantID).Error; err != nil {
			return validationIfMissing(err, "Restaurant not found")
		}
		if !restaurant.IsOpen {
			return apperr.Validation("Restaurant is currently closed")
		}

		lines, err := s.priceLines(tx, restaurant.ID, in.Platform, in.Items)
		if err != nil {
			return err
		}
		order := &models.Order{
			ID:                  uuid.NewString(),
			UserID:              buyer.ID,
			RestaurantID:        restaurant.ID,
			RestaurantName:      restaurant.Name,
			Items:               lines,
			DeliveryAddress:     *in.DeliveryAddress,
			Platform:            in.Platform,
			Status:              models.StatusPending,
			PaymentStatus:       models.PaymentPending,
			PaymentMethod:       in.PaymentMethod,
			SpecialInstructions: in.SpecialInstructions,
			DeliveryFee:         s.pricing.DeliveryFee,
			CreatedAt:           s.now(),
		}
		order.Commission.Status = models.SettlementPending
		order.RestaurantPayout.Status = models.SettlementPending

		pl := make([]pricing.Line, len(lines))
		for i, l := range lines {
			pl[i] = pricing.Line{Price: l.Price, Quantity: l.Quantity}
		}
		breakdown := pricing.Breakdown{Subtotal: pricing.Subtotal(pl), DeliveryFee: order.DeliveryFee}
		order.Subtotal = breakdown.Subtotal

		var quote *CouponQuote
		if in.CouponCode != "" {
			quote, err = s.coupons.quote(tx, buyer.ID, CouponCheck{
				Code:         in.CouponCode,
				OrderAmount:  breakdown.Subtotal,
				RestaurantID: restaurant.ID,
				Categories:   order.Categories(),
			})
			if err != nil {
				return err
			}
			breakdown.Discount = quote.DiscountAmount
			breakdown.DeliveryDiscount = quote.DeliveryDiscount
			order.Coupon = &models.AppliedCoupon{
				CouponID:         quote.CouponID,
				Code:             quote.Code,
				DiscountAmount:   quote.DiscountAmount,
				DeliveryDiscount: math.Min(quote.DeliveryDiscount, order.DeliveryFee),
			}
		}

		var card *models.GiftCard
		if in.GiftCardCode != "" {
			card, err = s.giftCards.usable(tx, in.GiftCardCode)
			if err != nil {
				return err
			}
			if card.Balance <= 0 {
				return apperr.Validation("Gift card has no balance")
			}
			breakdown.GiftCardUsed = pricing.Round2(math.Min(card.Balance, breakdown.Payable()))
			if breakdown.GiftCardUsed > 0 {
				order.GiftCard = &models.AppliedGiftCard{GiftCardID: card.ID, Code: card.Code, AmountUsed: breakdown.GiftCardUsed}
			}
		}

		order.TotalAmount = pricing.Total(breakdown)
		pricing.Commission(order.TotalAmount, rate).Apply(order)

		if err := tx.Create(order).Error; err != nil {
			return apperr.FromDB(err, "")
		}
		if quote != nil {
			if err := s.coupons.consume(tx, quote, buyer.ID, order.ID); err != nil {
				return err
			}
		}
		if order.GiftCard != nil {
			if _, err := s.giftCards.debit(tx, card, buyer.ID, order.GiftCard.AmountUsed, order.ID); err != nil {
				return err
			}
		}
		tracking, err := s.tracking.seed(tx, order, s.now())
		if err != nil {
			return err
		}
		placed = PlacedOrder{Order: order, Tracking: tracking}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", placed.Order.ID).
		Str("restaurant_id", placed.Order.RestaurantID).
		Float64("total", placed.Order.TotalAmount).
		Msg("Order placed")
	return &placed, nil
}

// priceLines snapshots each requested menu item at its price on the order's platform
func (s *OrderService) priceLines(tx *gorm.DB, restaurantID string, platform models.Platform, items []OrderLineInput) ([]models.OrderItem, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.MenuItemID)
	}
	var menu []models.MenuItem
	if err := tx.Where("restaurant_id = ? AND id IN ?", restaurantID, ids).Find(&menu).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}
	byID := make(map[string]*models.MenuItem, len(menu))
	for i := range menu {
		byID[menu[i].ID] = &menu[i]
	}

	lines := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		m, ok := byID[it.MenuItemID]
		if !ok {
			return nil, apperr.Validation("Menu item " + it.MenuItemID + " not found at this restaurant")
		}
		if !m.IsAvailable {
			return nil, apperr.Validation(m.Name + " is currently unavailable")
		}
		lines = append(lines, models.OrderItem{
			MenuItemID: m.ID,
			Name:       m.Name,
			Price:      m.PriceOn(platform),
			Quantity:   it.Quantity,
			IsVeg:      m.IsVeg,
			Platform:   platform,
			Category:   m.Category,
		})
	}
	return lines, nil
}

// validationIfMissing reports an unresolvable reference as a validation failure
func validationIfMissing(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Validation(msg)
	}
	return apperr.FromDB(err, msg)
}

// ListForUser returns a buyer's most recent orders, newest first
func (s *OrderService) ListForUser(ctx context.Context, caller *models.User, userID string) ([]models.Order, error) {
	if userID == "" {
		userID = caller.ID
	}
	if userID != caller.ID && !caller.IsAdmin() {
		return nil, apperr.Forbidden("You can only view your own orders")
	}
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(orderHistoryLimit).
		Find(&orders).Error
	if err != nil {
		return nil, apperr.FromDB(err, "")
	}
	return orders, nil
}

// Get returns an order to its buyer, the operator of its restaurant, or an admin
func (s *OrderService) Get(ctx context.Context, caller *models.User, orderID string) (*models.Order, error) {
	order, err := s.find(s.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != caller.ID && CanManageRestaurant(caller, order.RestaurantID) != nil {
		return nil, apperr.Forbidden("You do not have access to this order")
	}
	return order, nil
}

func (s *OrderService) find(db *gorm.DB, orderID string) (*models.Order, error) {
	if orderID == "" {
		return nil, apperr.Validation("orderId is required")
	}
	var order models.Order
	if err := db.First(&order, "id = ?", orderID).Error; err != nil {
		return nil, apperr.FromDB(err, "Order not found")
	}
	return &order, nil
}

type UpdateStatusInput struct {
	OrderID string             `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
	Note    string             `json:"note"`
	Force   bool               `json:"force"` // admin override of the transition table
}

// UpdateStatus moves an order along its lifecycle on behalf of its restaurant or an admin
func (s *OrderService) UpdateStatus(ctx context.Context, caller *models.User, in UpdateStatusInput) (*models.Order, error) {
	if in.OrderID == "" || in.Status == "" {
		return nil, apperr.Validation("orderId and status are required")
	}
	order, err := s.find(s.db.WithContext(ctx), in.OrderID)
	if err != nil {
		return nil, err
	}
	if err := CanManageRestaurant(caller, order.RestaurantID); err != nil {
		return nil, err
	}
	if !in.Status.Valid() {
		return nil, apperr.Validation("Invalid status")
	}

	note := in.Note
	if in.Force {
		if !caller.IsAdmin() {
			return nil, apperr.Forbidden("Only admins can force a status change")
		}
		if order.Status == in.Status {
			return nil, apperr.Conflict("Order is already " + string(in.Status))
		}
		if note == "" {
			note = defaultNotes[in.Status]
		}
		note = "[admin override] " + note
		log.Warn().
			Str("order_id", order.ID).
			Str("admin_id", caller.ID).
			Str("from", string(order.Status)).
			Str("to", string(in.Status)).
			Msg("Admin forced order status")
	} else if err := statemachine.CanTransition(order.Status, in.Status, statemachine.ActorFor(caller.Role)); err != nil {
		return nil, err
	}
	return s.transition(ctx, order, in.Status, note, caller.ID, nil)
}

// Cancel lets a buyer cancel before the kitchen starts; admins use the same path
func (s *OrderService) Cancel(ctx context.Context, caller *models.User, orderID, reason string) (*models.Order, error) {
	order, err := s.find(s.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != caller.ID && !caller.IsAdmin() {
		return nil, apperr.Forbidden("You can only cancel your own orders")
	}
	actor, note := statemachine.ActorCustomer, "Cancelled by customer"
	if caller.IsAdmin() {
		actor, note = statemachine.ActorAdmin, "Cancelled by admin"
	}
	if err := statemachine.CanTransition(order.Status, models.StatusCancelled, actor); err != nil {
		return nil, err
	}
	if reason != "" {
		note += ": " + reason
	}
	return s.transition(ctx, order, models.StatusCancelled, note, caller.ID, nil)
}

// transition writes the new status only if nobody changed it since it was
// read, refunds any gift card on cancellation, then mirrors onto tracking.
// extra runs inside the same transaction for callers that update more fields.
func (s *OrderService) transition(ctx context.Context, order *models.Order, target models.OrderStatus, note, actorID string, extra func(tx *gorm.DB) error) (*models.Order, error) {
	if note == "" {
		note = defaultNotes[target]
	}
	prev := order.Status
	at := s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, prev).
			Updates(map[string]any{"status": target, "updated_at": at})
		if res.Error != nil {
			return apperr.FromDB(res.Error, "")
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("Order status was changed by someone else, reload and retry")
		}
		if target == models.StatusCancelled && order.GiftCard != nil && order.GiftCard.AmountUsed > 0 {
			if err := s.giftCards.refund(tx, order.GiftCard.GiftCardID, order.UserID, order.GiftCard.AmountUsed, order.ID); err != nil {
				return err
			}
		}
		if extra != nil {
			return extra(tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", order.ID).
		Str("actor_id", actorID).
		Str("from", string(prev)).
		Str("to", string(target)).
		Msg("Order status updated")

	// The status is committed; a caller hanging up must not strand tracking.
	committed := context.WithoutCancel(ctx)
	s.tracking.mirrorBestEffort(committed, order.ID, target, note, at)
	return s.find(s.db.WithContext(committed), order.ID)
}
