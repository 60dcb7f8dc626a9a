package promotion

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"shoplive-backend/internal/clock"
	"shoplive-backend/internal/domain"
	"shoplive-backend/internal/events"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultWindow is how long a promoted buyer has to act before the sweep
// expires the opportunity.
const DefaultWindow = 15 * time.Minute

// Engine advances the waitlist: the WAITING reservation with the smallest
// sequence number becomes PROMOTED for a fixed window.
type Engine struct {
	DB     *gorm.DB
	Bus    *events.Bus
	Clock  clock.Clock
	Window time.Duration
}

func NewEngine(db *gorm.DB, bus *events.Bus, clk clock.Clock, window time.Duration) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Engine{DB: db, Bus: bus, Clock: clk, Window: window}
}

// PromoteNext promotes the front of the queue for a product. An empty queue
// is a no-op, not an error. The promoted reservation gets promotedAt=now and
// a promotion deadline; the reservation.promoted event is emitted after the
// ledger transaction commits.
func (e *Engine) PromoteNext(ctx context.Context, productID uuid.UUID) (*domain.Reservation, error) {
	now := e.Clock.Now()
	deadline := now.Add(e.Window)

	var reservation domain.Reservation
	promoted := false
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := q.Where("product_id = ? AND status = ?", productID, domain.ReservationStatusWaiting).
			Order("sequence_number ASC").
			First(&reservation).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&reservation).Updates(map[string]interface{}{
			"status":      domain.ReservationStatusPromoted,
			"promoted_at": now,
			"expires_at":  deadline,
		}).Error; err != nil {
			return err
		}
		reservation.Status = domain.ReservationStatusPromoted
		reservation.PromotedAt = &now
		reservation.ExpiresAt = &deadline
		promoted = true

		body, err := json.Marshal(events.ReservationPromoted{
			ReservationID: reservation.ReservationID,
			UserID:        reservation.UserID,
			ProductID:     reservation.ProductID,
			Quantity:      reservation.Quantity,
			ExpiresAt:     deadline,
		})
		if err != nil {
			return err
		}
		return tx.Create(&domain.OutboxEvent{
			Topic:     string(events.TopicReservationPromoted),
			Payload:   datatypes.JSON(body),
			CreatedAt: now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	if !promoted {
		return nil, nil
	}

	e.Bus.Publish(ctx, events.TopicReservationPromoted, events.ReservationPromoted{
		ReservationID: reservation.ReservationID,
		UserID:        reservation.UserID,
		ProductID:     reservation.ProductID,
		Quantity:      reservation.Quantity,
		ExpiresAt:     deadline,
	})
	return &reservation, nil
}
