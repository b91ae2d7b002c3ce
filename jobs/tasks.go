// Package jobs carries the background retry queue for tracking mirrors.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"food-marketplace-api/models"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

const (
	TypeTrackingMirror = "tracking:mirror"
	QueueTracking      = "tracking"
	MaxMirrorRetry     = 10
)

// TrackingMirrorPayload replays one order status change onto its tracking record
type TrackingMirrorPayload struct {
	OrderID string             `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
	Note    string             `json:"note"`
	At      time.Time          `json:"at"`
}

func NewTrackingMirrorTask(p TrackingMirrorPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal tracking mirror payload: %w", err)
	}
	return asynq.NewTask(TypeTrackingMirror, b, asynq.MaxRetry(MaxMirrorRetry), asynq.Queue(QueueTracking)), nil
}

// Client enqueues tracking mirrors on Redis
type Client struct {
	asynq *asynq.Client
}

func NewClient(opt asynq.RedisConnOpt) *Client {
	return &Client{asynq: asynq.NewClient(opt)}
}

func (c *Client) EnqueueTrackingMirror(ctx context.Context, p TrackingMirrorPayload) error {
	task, err := NewTrackingMirrorTask(p)
	if err != nil {
		return err
	}
	info, err := c.asynq.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue tracking mirror: %w", err)
	}
	log.Info().Str("task_id", info.ID).Str("order_id", p.OrderID).Msg("Tracking mirror queued for retry")
	return nil
}

func (c *Client) Close() error { return c.asynq.Close() }

// Mirrorer re-applies a status change to a tracking record, idempotently
type Mirrorer interface {
	ApplyMirror(ctx context.Context, p TrackingMirrorPayload) error
}

type TrackingMirrorHandler struct {
	mirrorer Mirrorer
}

func NewTrackingMirrorHandler(m Mirrorer) *TrackingMirrorHandler {
	return &TrackingMirrorHandler{mirrorer: m}
}

func (h *TrackingMirrorHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var p TrackingMirrorPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal tracking mirror payload")
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if err := h.mirrorer.ApplyMirror(ctx, p); err != nil {
		return fmt.Errorf("apply tracking mirror for order %s: %w", p.OrderID, err)
	}
	log.Info().Str("order_id", p.OrderID).Str("status", string(p.Status)).Msg("Tracking mirror applied")
	return nil
}

// NewServeMux registers every task handler the worker serves
func NewServeMux(m Mirrorer) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeTrackingMirror, NewTrackingMirrorHandler(m))
	return mux
}

// NewServer builds the worker server with logging of failed attempts
func NewServer(opt asynq.RedisConnOpt, concurrency int) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueTracking: 10},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			log.Error().Err(err).
				Str("type", task.Type()).
				Int("retry", retried).
				Msg("Task failed")
		}),
	})
}
