package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatusEntry is one append-only record in a tracking history
type StatusEntry struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note,omitempty"`
	Location  *GeoPoint   `json:"location,omitempty"`
}

type DeliveryPerson struct {
	Name            string     `json:"name"`
	Phone           string     `json:"phone"`
	CurrentLocation *GeoPoint  `json:"currentLocation,omitempty"`
	LocationAt      *time.Time `json:"locationUpdatedAt,omitempty"`
}

// OrderTracking is the delivery-facing shadow of an Order
type OrderTracking struct {
	ID                    string          `json:"id" gorm:"primaryKey;size:36"`
	OrderID               string          `json:"orderId" gorm:"uniqueIndex;not null"`
	UserID                string          `json:"userId" gorm:"not null;index"`
	RestaurantID          string          `json:"restaurantId" gorm:"not null;index"`
	Status                OrderStatus     `json:"status" gorm:"not null;default:'pending'"`
	StatusHistory         []StatusEntry   `json:"statusHistory" gorm:"serializer:json"`
	DeliveryPerson        *DeliveryPerson `json:"deliveryPerson,omitempty" gorm:"serializer:json"`
	EstimatedDeliveryTime *time.Time      `json:"estimatedDeliveryTime"`
	ActualDeliveryTime    *time.Time      `json:"actualDeliveryTime"`
	Version               int             `json:"-" gorm:"not null;default:0"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

func (t *OrderTracking) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// HasEntry reports whether the history already holds the given status at the given instant
func (t *OrderTracking) HasEntry(status OrderStatus, at time.Time) bool {
	for _, e := range t.StatusHistory {
		if e.Status == status && e.Timestamp.Equal(at) {
			return true
		}
	}
	return false
}

// ChangedSince reports whether a status change was recorded after at.
// Entries that repeat the previous status, such as location updates, do not count.
func (t *OrderTracking) ChangedSince(at time.Time) bool {
	for i, e := range t.StatusHistory {
		if i == 0 || !e.Timestamp.After(at) {
			continue
		}
		if e.Status != t.StatusHistory[i-1].Status {
			return true
		}
	}
	return false
}
