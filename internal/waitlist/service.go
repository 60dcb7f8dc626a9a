package waitlist

import (
	"context"
	"encoding/json"
	"errors"

	"shoplive-backend/internal/catalog"
	"shoplive-backend/internal/clock"
	"shoplive-backend/internal/domain"
	"shoplive-backend/internal/events"
	"shoplive-backend/internal/stock"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Sequencer mints product-scoped waitlist ordering. Only the sequence
// allocator implements it in production.
type Sequencer interface {
	Next(ctx context.Context, productID uuid.UUID) (int64, error)
}

// Promoter advances the queue for a product. Satisfied by promotion.Engine.
type Promoter interface {
	PromoteNext(ctx context.Context, productID uuid.UUID) (*domain.Reservation, error)
}

// Service is the Waitlist Ledger: FIFO queued demand per product.
type Service struct {
	DB       *gorm.DB
	Catalog  catalog.Reader
	Stock    *stock.Accountant
	Seq      Sequencer
	Bus      *events.Bus
	Clock    clock.Clock
	Promoter Promoter
}

// ReservationView is a reservation with its computed queue position.
// Position is always recomputed from the remaining WAITING rows, never
// stored; PROMOTED entries report position 0 plus the seconds left to act.
type ReservationView struct {
	domain.Reservation
	Position         int   `json:"position"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// RequestReservation queues a user for a product. A reservation is only
// valid when a hold would have failed: if derived stock actually covers the
// requested quantity the call fails with ErrStockAvailable and the caller
// should request a hold instead.
func (s *Service) RequestReservation(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.Reservation, error) {
	if quantity < domain.HoldQuantityMin || quantity > domain.HoldQuantityMax {
		return nil, domain.ErrInvalidQuantity
	}
	product, err := s.Catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	// A reservation only exists because a hold would have failed. Unlike
	// requestHold this gate does not need a transactional re-read: creating
	// a WAITING row claims nothing.
	available, err := s.Stock.Available(ctx, product)
	if err != nil {
		return nil, err
	}
	if quantity <= available {
		return nil, domain.ErrStockAvailable
	}

	var reservation domain.Reservation
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Reservation{}).
			Where("user_id = ? AND product_id = ? AND status IN ?",
				userID, productID,
				[]string{domain.ReservationStatusWaiting, domain.ReservationStatusPromoted}).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrAlreadyReserved
		}

		// Minted inside the transaction: a rollback burns the number, which
		// is fine: sequence numbers are never reused, and gaps carry no meaning.
		seq, err := s.Seq.Next(ctx, productID)
		if err != nil {
			return err
		}

		reservation = domain.Reservation{
			UserID:         userID,
			ProductID:      productID,
			Quantity:       quantity,
			SequenceNumber: seq,
			Status:         domain.ReservationStatusWaiting,
			CreatedAt:      s.Clock.Now(),
		}
		if err := tx.Create(&reservation).Error; err != nil {
			return err
		}
		return writeOutbox(tx, events.TopicReservationCreated, events.ReservationCreated{
			UserID:         userID,
			ProductID:      productID,
			Quantity:       quantity,
			SequenceNumber: seq,
		}, s.Clock)
	})
	if err != nil {
		return nil, err
	}

	s.Bus.Publish(ctx, events.TopicReservationCreated, events.ReservationCreated{
		UserID:         userID,
		ProductID:      productID,
		Quantity:       quantity,
		SequenceNumber: reservation.SequenceNumber,
	})
	return &reservation, nil
}

// CancelReservation cancels a WAITING or PROMOTED reservation owned by the
// user. Cancelling a PROMOTED reservation frees promoted capacity, so the
// queue is advanced for that product afterwards.
func (s *Service) CancelReservation(ctx context.Context, userID, reservationID uuid.UUID) error {
	var reservation domain.Reservation
	var wasPromoted bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reservation_id = ? AND user_id = ?", reservationID, userID).
			First(&reservation).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrEntityNotFound
			}
			return err
		}
		if !reservation.Live() {
			return domain.ErrEntityNotFound
		}
		wasPromoted = reservation.Status == domain.ReservationStatusPromoted
		return tx.Model(&reservation).Update("status", domain.ReservationStatusCancelled).Error
	})
	if err != nil {
		return err
	}

	if wasPromoted {
		if _, err := s.Promoter.PromoteNext(ctx, reservation.ProductID); err != nil {
			log.Error().Err(err).
				Str("product_id", reservation.ProductID.String()).
				Msg("queue advance after promoted cancellation failed")
		}
	}
	return nil
}

// ListReservations returns the user's live reservations with queue
// positions. Positions are computed with one grouped query over the
// affected products, not one query per row.
func (s *Service) ListReservations(ctx context.Context, userID uuid.UUID) ([]ReservationView, error) {
	var rows []domain.Reservation
	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID,
			[]string{domain.ReservationStatusWaiting, domain.ReservationStatusPromoted}).
		Order(`"createdAt" ASC`).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []ReservationView{}, nil
	}

	productIDs := make([]uuid.UUID, 0, len(rows))
	seen := make(map[uuid.UUID]struct{}, len(rows))
	for i := range rows {
		if _, ok := seen[rows[i].ProductID]; !ok {
			seen[rows[i].ProductID] = struct{}{}
			productIDs = append(productIDs, rows[i].ProductID)
		}
	}

	type waitingRow struct {
		ProductID      uuid.UUID `gorm:"column:product_id"`
		SequenceNumber int64     `gorm:"column:sequence_number"`
	}
	var waiting []waitingRow
	if err := s.DB.WithContext(ctx).Model(&domain.Reservation{}).
		Where("product_id IN ? AND status = ?", productIDs, domain.ReservationStatusWaiting).
		Select("product_id, sequence_number").
		Find(&waiting).Error; err != nil {
		return nil, err
	}
	waitingSeqs := make(map[uuid.UUID][]int64, len(productIDs))
	for _, w := range waiting {
		waitingSeqs[w.ProductID] = append(waitingSeqs[w.ProductID], w.SequenceNumber)
	}

	now := s.Clock.Now()
	views := make([]ReservationView, 0, len(rows))
	for i := range rows {
		v := ReservationView{Reservation: rows[i]}
		if rows[i].Status == domain.ReservationStatusPromoted {
			if rows[i].ExpiresAt != nil {
				if remaining := rows[i].ExpiresAt.Sub(now); remaining > 0 {
					v.RemainingSeconds = int64(remaining.Seconds())
				}
			}
		} else {
			v.Position = positionAmong(waitingSeqs[rows[i].ProductID], rows[i].SequenceNumber)
		}
		views = append(views, v)
	}
	return views, nil
}

// QueuePosition is the count of WAITING reservations for the product with a
// strictly smaller sequence number, plus one.
func (s *Service) QueuePosition(ctx context.Context, productID uuid.UUID, sequenceNumber int64) (int, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&domain.Reservation{}).
		Where("product_id = ? AND status = ? AND sequence_number < ?",
			productID, domain.ReservationStatusWaiting, sequenceNumber).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count) + 1, nil
}

func positionAmong(seqs []int64, seq int64) int {
	position := 1
	for _, s := range seqs {
		if s < seq {
			position++
		}
	}
	return position
}

// writeOutbox records the event in the same transaction as the ledger
// mutation so delivery can be replayed.
func writeOutbox(tx *gorm.DB, topic events.Topic, payload interface{}, clk clock.Clock) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.Create(&domain.OutboxEvent{
		Topic:     string(topic),
		Payload:   datatypes.JSON(body),
		CreatedAt: clk.Now(),
	}).Error
}
