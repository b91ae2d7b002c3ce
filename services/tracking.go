package services

import (
	"context"
	"math"
	"slices"
	"time"

	"food-marketplace-api/apperr"
	"food-marketplace-api/config"
	"food-marketplace-api/jobs"
	"food-marketplace-api/models"
	"food-marketplace-api/notify"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	placeholderCourierName  = "Delivery Partner"
	placeholderCourierPhone = "Not assigned yet"
	maxTrackingWriteRetries = 3
)

// trackingColumns are the mutable columns written by every tracking update
var trackingColumns = []string{
	"status", "status_history", "delivery_person",
	"estimated_delivery_time", "actual_delivery_time", "version", "updated_at",
}

type TrackingService struct {
	db       *gorm.DB
	cfg      config.TrackingConfig
	notifier notify.Notifier
	queue    MirrorQueue
	now      func() time.Time
}

func NewTrackingService(db *gorm.DB, cfg config.TrackingConfig, n notify.Notifier, q MirrorQueue, clock func() time.Time) *TrackingService {
	return &TrackingService{db: db, cfg: cfg, notifier: n, queue: q, now: clock}
}

// TrackingView is the buyer-facing tracking payload
type TrackingView struct {
	OrderID               string                 `json:"orderId"`
	Status                models.OrderStatus     `json:"status"`
	StatusHistory         []models.StatusEntry   `json:"statusHistory"`
	DeliveryPerson        *models.DeliveryPerson `json:"deliveryPerson"`
	EstimatedDeliveryTime *time.Time             `json:"estimatedDeliveryTime"`
	ActualDeliveryTime    *time.Time             `json:"actualDeliveryTime"`
	EtaMinutes            *int                   `json:"etaMinutes"`
}

type TrackingEvent struct {
	Type     string        `json:"type"` // initial, update
	Tracking *TrackingView `json:"tracking"`
}

func (s *TrackingService) view(t *models.OrderTracking) *TrackingView {
	v := &TrackingView{
		OrderID:               t.OrderID,
		Status:                t.Status,
		StatusHistory:         t.StatusHistory,
		DeliveryPerson:        t.DeliveryPerson,
		EstimatedDeliveryTime: t.EstimatedDeliveryTime,
		ActualDeliveryTime:    t.ActualDeliveryTime,
	}
	if v.StatusHistory == nil {
		v.StatusHistory = []models.StatusEntry{}
	}
	if t.Status == models.StatusOutForDelivery && t.EstimatedDeliveryTime != nil {
		mins := int(math.Max(0, math.Round(t.EstimatedDeliveryTime.Sub(s.now()).Minutes())))
		v.EtaMinutes = &mins
	}
	return v
}

func (s *TrackingService) load(db *gorm.DB, orderID string) (*models.OrderTracking, error) {
	var t models.OrderTracking
	if err := db.Where("order_id = ?", orderID).First(&t).Error; err != nil {
		return nil, apperr.FromDB(err, "Order tracking not found")
	}
	return &t, nil
}

// Get returns the tracking of an order to its buyer or an admin
func (s *TrackingService) Get(ctx context.Context, user *models.User, orderID string) (*TrackingView, error) {
	if orderID == "" {
		return nil, apperr.Validation("orderId is required")
	}
	t, err := s.load(s.db.WithContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() && t.UserID != user.ID {
		return nil, apperr.NotFound("Order tracking not found")
	}
	return s.view(t), nil
}

// Stream emits the tracking immediately, then on every poll tick or change
// notification, until the order reaches a terminal status or ctx ends.
// Readers see state at most one poll interval old.
func (s *TrackingService) Stream(ctx context.Context, user *models.User, orderID string, emit func(TrackingEvent) error) error {
	current, err := s.Get(ctx, user, orderID)
	if err != nil {
		return err
	}
	if err := emit(TrackingEvent{Type: "initial", Tracking: current}); err != nil {
		return err
	}
	if current.Status.Terminal() {
		return nil
	}

	wake, release := s.notifier.Subscribe(ctx, orderID)
	defer release()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-wake:
		}

		next, err := s.Get(ctx, user, orderID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("order_id", orderID).Msg("Tracking poll failed")
			continue
		}
		if err := emit(TrackingEvent{Type: "update", Tracking: next}); err != nil {
			return err
		}
		if next.Status.Terminal() {
			return nil
		}
	}
}

// seed creates the tracking paired with a freshly placed order
func (s *TrackingService) seed(tx *gorm.DB, order *models.Order, at time.Time) (*models.OrderTracking, error) {
	eta := at.Add(s.cfg.InitialETA)
	t := models.OrderTracking{
		OrderID:      order.ID,
		UserID:       order.UserID,
		RestaurantID: order.RestaurantID,
		Status:       models.StatusPending,
		StatusHistory: []models.StatusEntry{
			{Status: models.StatusPending, Timestamp: at, Note: "Order placed successfully"},
		},
		EstimatedDeliveryTime: &eta,
	}
	if err := tx.Create(&t).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, apperr.Conflict("Tracking already exists for this order")
		}
		return nil, apperr.FromDB(err, "")
	}
	return &t, nil
}

// CreateForOrder backfills tracking for an order placed without one
func (s *TrackingService) CreateForOrder(ctx context.Context, user *models.User, orderID string) (*models.OrderTracking, error) {
	if orderID == "" {
		return nil, apperr.Validation("orderId is required")
	}
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return nil, apperr.FromDB(err, "Order not found")
	}
	if !user.IsAdmin() && order.UserID != user.ID {
		return nil, apperr.Forbidden("You can only track your own orders")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.OrderTracking{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}
	if count > 0 {
		return nil, apperr.Conflict("Tracking already exists for this order")
	}
	return s.seed(s.db.WithContext(ctx), &order, s.now())
}

// applyStatus appends one history entry and derives the delivery fields.
// actualDeliveryTime is stamped only the first time the order is delivered.
func (s *TrackingService) applyStatus(t *models.OrderTracking, status models.OrderStatus, note string, at time.Time) {
	t.Status = status
	t.StatusHistory = append(t.StatusHistory, models.StatusEntry{Status: status, Timestamp: at, Note: note})

	switch status {
	case models.StatusDelivered:
		if t.ActualDeliveryTime == nil {
			delivered := at
			t.ActualDeliveryTime = &delivered
		}
	case models.StatusOutForDelivery:
		if t.DeliveryPerson == nil {
			t.DeliveryPerson = &models.DeliveryPerson{Name: placeholderCourierName, Phone: placeholderCourierPhone}
			eta := at.Add(s.cfg.DispatchETA)
			t.EstimatedDeliveryTime = &eta
		}
	}
}

// update reads, mutates and writes a tracking record under an optimistic
// version check, retrying when another writer got there first
func (s *TrackingService) update(ctx context.Context, orderID string, mutate func(*models.OrderTracking) (bool, error)) (*models.OrderTracking, error) {
	db := s.db.WithContext(ctx)
	for attempt := 0; attempt < maxTrackingWriteRetries; attempt++ {
		t, err := s.load(db, orderID)
		if err != nil {
			return nil, err
		}
		changed, err := mutate(t)
		if err != nil {
			return nil, err
		}
		if !changed {
			return t, nil
		}

		prev := t.Version
		t.Version++
		res := db.Model(t).Where("version = ?", prev).Select(trackingColumns).Updates(t)
		if res.Error != nil {
			return nil, apperr.FromDB(res.Error, "")
		}
		if res.RowsAffected == 1 {
			s.publish(ctx, orderID)
			return t, nil
		}
	}
	return nil, apperr.Conflict("Tracking was modified concurrently, please retry")
}

func (s *TrackingService) publish(ctx context.Context, orderID string) {
	if err := s.notifier.Publish(ctx, orderID); err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("Failed to publish tracking change")
	}
}

// Mirror copies an order status change onto its tracking record
func (s *TrackingService) Mirror(ctx context.Context, orderID string, status models.OrderStatus, note string, at time.Time) (*models.OrderTracking, error) {
	return s.update(ctx, orderID, func(t *models.OrderTracking) (bool, error) {
		s.applyStatus(t, status, note, at)
		return true, nil
	})
}

// ApplyMirror replays a queued mirror; a change already recorded is skipped.
// A replay older than the latest recorded change, or one arriving after a
// terminal status, only fills in the history and leaves the status alone.
func (s *TrackingService) ApplyMirror(ctx context.Context, p jobs.TrackingMirrorPayload) error {
	_, err := s.update(ctx, p.OrderID, func(t *models.OrderTracking) (bool, error) {
		if t.HasEntry(p.Status, p.At) {
			return false, nil
		}
		if t.Status.Terminal() || t.ChangedSince(p.At) {
			backfillStatus(t, p)
			return true, nil
		}
		s.applyStatus(t, p.Status, p.Note, p.At)
		return true, nil
	})
	return err
}

// backfillStatus inserts a late entry in timestamp order
func backfillStatus(t *models.OrderTracking, p jobs.TrackingMirrorPayload) {
	entry := models.StatusEntry{Status: p.Status, Timestamp: p.At, Note: p.Note}
	i := len(t.StatusHistory)
	for i > 0 && t.StatusHistory[i-1].Timestamp.After(p.At) {
		i--
	}
	t.StatusHistory = slices.Insert(t.StatusHistory, i, entry)
	if p.Status == models.StatusDelivered && t.ActualDeliveryTime == nil {
		delivered := p.At
		t.ActualDeliveryTime = &delivered
	}
}

// mirrorBestEffort never fails the caller: a failed mirror is logged and,
// when a queue is configured, handed to the worker for retry
func (s *TrackingService) mirrorBestEffort(ctx context.Context, orderID string, status models.OrderStatus, note string, at time.Time) {
	_, err := s.Mirror(ctx, orderID, status, note, at)
	if err == nil {
		return
	}
	logger := log.With().Str("order_id", orderID).Str("status", string(status)).Logger()
	logger.Error().Err(err).Msg("Failed to mirror order status onto tracking")

	if s.queue == nil {
		return
	}
	payload := jobs.TrackingMirrorPayload{OrderID: orderID, Status: status, Note: note, At: at}
	if qerr := s.queue.EnqueueTrackingMirror(context.WithoutCancel(ctx), payload); qerr != nil {
		logger.Error().Err(qerr).Msg("Failed to queue tracking mirror retry")
	}
}

type DeliveryPersonInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type TrackingPing struct {
	OrderID        string               `json:"orderId"`
	Location       *models.GeoPoint     `json:"location"`
	DeliveryPerson *DeliveryPersonInput `json:"deliveryPerson"`
}

// Ping records a courier location and/or details for an order in transit
func (s *TrackingService) Ping(ctx context.Context, user *models.User, in TrackingPing) (*models.OrderTracking, error) {
	if in.OrderID == "" {
		return nil, apperr.Validation("orderId is required")
	}
	hasLocation := in.Location != nil && (in.Location.Latitude != 0 || in.Location.Longitude != 0)
	if !hasLocation && in.DeliveryPerson == nil {
		return nil, apperr.Validation("location or deliveryPerson is required")
	}
	if hasLocation && (math.Abs(in.Location.Latitude) > 90 || math.Abs(in.Location.Longitude) > 180) {
		return nil, apperr.Validation("Invalid coordinates")
	}

	return s.update(ctx, in.OrderID, func(t *models.OrderTracking) (bool, error) {
		if err := CanManageRestaurant(user, t.RestaurantID); err != nil {
			return false, err
		}
		at := s.now()
		if t.DeliveryPerson == nil {
			t.DeliveryPerson = &models.DeliveryPerson{}
		}
		if hasLocation {
			loc := *in.Location
			t.DeliveryPerson.CurrentLocation = &loc
			t.DeliveryPerson.LocationAt = &at
			t.StatusHistory = append(t.StatusHistory, models.StatusEntry{
				Status: t.Status, Timestamp: at, Note: "Location updated", Location: &loc,
			})
		}
		if in.DeliveryPerson != nil {
			if in.DeliveryPerson.Name != "" {
				t.DeliveryPerson.Name = in.DeliveryPerson.Name
			}
			if in.DeliveryPerson.Phone != "" {
				t.DeliveryPerson.Phone = in.DeliveryPerson.Phone
			}
		}
		return true, nil
	})
}
