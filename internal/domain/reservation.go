package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reservation statuses. EXPIRED, CANCELLED and COMPLETED are terminal;
// COMPLETED is applied by checkout, which lives outside this core.
const (
	ReservationStatusWaiting   = "WAITING"
	ReservationStatusPromoted  = "PROMOTED"
	ReservationStatusCompleted = "COMPLETED"
	ReservationStatusCancelled = "CANCELLED"
	ReservationStatusExpired   = "EXPIRED"
)

// Reservation is a waitlist entry: queued demand that could not become a
// Hold because stock was insufficient. SequenceNumber is product-scoped,
// assigned exactly once by the sequence allocator, and defines promotion
// priority. A user holds at most one WAITING/PROMOTED row per product.
type Reservation struct {
	ReservationID  uuid.UUID  `gorm:"column:reservation_id;type:uuid;primaryKey" json:"reservation_id"`
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	ProductID      uuid.UUID  `gorm:"column:product_id;type:uuid;not null;index" json:"product_id"`
	Quantity       int        `gorm:"column:quantity;not null" json:"quantity"`
	SequenceNumber int64      `gorm:"column:sequence_number;not null;index:idx_reservation_product_seq" json:"sequence_number"`
	Status         string     `gorm:"column:status;type:varchar(20);not null;default:'WAITING';index" json:"status"`
	PromotedAt     *time.Time `gorm:"column:promoted_at" json:"promoted_at"`
	ExpiresAt      *time.Time `gorm:"column:expires_at;index" json:"expires_at"`
	CreatedAt      time.Time  `gorm:"column:createdAt" json:"createdAt"`
}

func (Reservation) TableName() string {
	return "Reservations"
}

// BeforeCreate sets reservation_id if not already set.
func (r *Reservation) BeforeCreate(tx *gorm.DB) error {
	if r.ReservationID == uuid.Nil {
		r.ReservationID = uuid.New()
	}
	return nil
}

// Live reports whether the reservation still occupies the user's one-per-
// product slot.
func (r *Reservation) Live() bool {
	return r.Status == ReservationStatusWaiting || r.Status == ReservationStatusPromoted
}
