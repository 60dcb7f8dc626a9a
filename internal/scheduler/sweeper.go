package scheduler

import (
	"context"

	"shoplive-backend/internal/clock"
	"shoplive-backend/internal/domain"
	"shoplive-backend/internal/events"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Sweeper expires stale holds and lapsed promotions on behalf of the
// scheduler. It runs unattended: failures are logged, never surfaced, and a
// failing row never aborts the rest of its batch. The sweeper itself never
// promotes; it emits product.released and the promotion advancer listens.
type Sweeper struct {
	DB    *gorm.DB
	Bus   *events.Bus
	Clock clock.Clock
}

// Sweep runs both passes once. Calling it again with no new expirations in
// between touches zero rows and emits zero events.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.sweepHolds(ctx)
	s.sweepPromotions(ctx)
}

// sweepHolds bulk-expires timed-out ACTIVE holds and emits one
// product.released per affected product, not per row.
func (s *Sweeper) sweepHolds(ctx context.Context) {
	now := s.Clock.Now()

	var expired []domain.Hold
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND timer_enabled = ? AND expires_at <= ?",
			domain.HoldStatusActive, true, now).
		Find(&expired).Error; err != nil {
		log.Error().Err(err).Msg("hold sweep: query failed")
		return
	}
	if len(expired) == 0 {
		return
	}

	ids := make([]uuid.UUID, 0, len(expired))
	productSet := make(map[uuid.UUID]struct{})
	for i := range expired {
		ids = append(ids, expired[i].HoldID)
		productSet[expired[i].ProductID] = struct{}{}
	}

	if err := s.DB.WithContext(ctx).Model(&domain.Hold{}).
		Where("hold_id IN ?", ids).
		Update("status", domain.HoldStatusExpired).Error; err != nil {
		log.Error().Err(err).Int("count", len(ids)).Msg("hold sweep: bulk expire failed")
		return
	}

	log.Info().Int("count", len(ids)).Int("products", len(productSet)).Msg("hold sweep: expired stale holds")
	for pid := range productSet {
		s.Bus.Publish(ctx, events.TopicProductReleased, events.ProductReleased{ProductID: pid})
	}
	s.Bus.Publish(ctx, events.TopicHoldBatchExpired, events.HoldBatchExpired{Count: len(ids)})
}

// sweepPromotions expires lapsed PROMOTED reservations one by one: each
// expiry cascades to the user's ACTIVE hold for the same product (a lapsed
// promotion must not leave a stray synced hold) and emits product.released,
// which advances the queue.
func (s *Sweeper) sweepPromotions(ctx context.Context) {
	now := s.Clock.Now()

	var lapsed []domain.Reservation
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", domain.ReservationStatusPromoted, now).
		Find(&lapsed).Error; err != nil {
		log.Error().Err(err).Msg("reservation sweep: query failed")
		return
	}

	for i := range lapsed {
		if err := s.expirePromotion(ctx, &lapsed[i]); err != nil {
			log.Error().Err(err).
				Str("reservation_id", lapsed[i].ReservationID.String()).
				Msg("reservation sweep: row failed, continuing")
			continue
		}

		s.Bus.Publish(ctx, events.TopicProductReleased, events.ProductReleased{ProductID: lapsed[i].ProductID})
	}
}

func (s *Sweeper) expirePromotion(ctx context.Context, r *domain.Reservation) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Reservation{}).
			Where("reservation_id = ? AND status = ?", r.ReservationID, domain.ReservationStatusPromoted).
			Update("status", domain.ReservationStatusExpired).Error; err != nil {
			return err
		}
		// Cascade: both ledgers must agree once the window lapses.
		return tx.Model(&domain.Hold{}).
			Where("user_id = ? AND product_id = ? AND status = ?",
				r.UserID, r.ProductID, domain.HoldStatusActive).
			Update("status", domain.HoldStatusExpired).Error
	})
}
