package events

import (
	"time"

	"github.com/google/uuid"
)

// Topic names the event kinds this core emits for external collaborators
// (broadcast, notifications) and for its own auto-conversion listener.
type Topic string

const (
	TopicHoldAdded           Topic = "hold.added"
	TopicProductReleased     Topic = "product.released"
	TopicHoldBatchExpired    Topic = "hold.batchExpired"
	TopicReservationCreated  Topic = "reservation.created"
	TopicReservationPromoted Topic = "reservation.promoted"
)

// HoldAdded is broadcast to viewers when a buyer claims stock.
type HoldAdded struct {
	UserID    uuid.UUID `json:"user_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// ProductReleased signals that capacity for a product may have freed up.
type ProductReleased struct {
	ProductID uuid.UUID `json:"product_id"`
}

// HoldBatchExpired reports how many holds one sweep expired.
type HoldBatchExpired struct {
	Count int `json:"count"`
}

// ReservationCreated announces a new waitlist entry.
type ReservationCreated struct {
	UserID         uuid.UUID `json:"user_id"`
	ProductID      uuid.UUID `json:"product_id"`
	Quantity       int       `json:"quantity"`
	SequenceNumber int64     `json:"sequence_number"`
}

// ReservationPromoted announces a time-boxed purchase opportunity. The
// auto-conversion listener and the notification collaborator both consume it.
type ReservationPromoted struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	UserID        uuid.UUID `json:"user_id"`
	ProductID     uuid.UUID `json:"product_id"`
	Quantity      int       `json:"quantity"`
	ExpiresAt     time.Time `json:"expires_at"`
}
