package promotion

import (
	"context"

	"shoplive-backend/internal/domain"
	"shoplive-backend/internal/events"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// HoldRequester is the slice of the Hold Ledger the converter needs.
type HoldRequester interface {
	RequestHold(ctx context.Context, userID, productID uuid.UUID, color, size *string, quantity int) (*domain.Hold, error)
}

// Converter listens for promotions and tries to turn each one into a hold
// on the buyer's behalf. Failure is an expected outcome, not an error: the
// reservation stays PROMOTED and the buyer can still act manually before the
// window closes. Promotion grants an opportunity, not a guaranteed hold.
type Converter struct {
	Holds HoldRequester
}

// Register subscribes the converter to reservation.promoted.
func (c *Converter) Register(bus *events.Bus) {
	bus.Subscribe(events.TopicReservationPromoted, c.handle)
}

func (c *Converter) handle(ctx context.Context, payload interface{}) {
	evt, ok := payload.(events.ReservationPromoted)
	if !ok {
		return
	}
	if _, err := c.Holds.RequestHold(ctx, evt.UserID, evt.ProductID, nil, nil, evt.Quantity); err != nil {
		log.Warn().Err(err).
			Str("user_id", evt.UserID.String()).
			Str("product_id", evt.ProductID.String()).
			Int("quantity", evt.Quantity).
			Msg("auto hold conversion failed; reservation stays promoted")
		return
	}
	log.Info().
		Str("user_id", evt.UserID.String()).
		Str("product_id", evt.ProductID.String()).
		Int("quantity", evt.Quantity).
		Msg("promotion auto-converted to hold")
}
