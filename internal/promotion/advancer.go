package promotion

import (
	"context"

	"shoplive-backend/internal/events"

	"github.com/rs/zerolog/log"
)

// Advancer drives the engine off product.released: whenever capacity for a
// product frees up (hold removed, hold expired, promotion lapsed), the queue
// front gets its chance.
type Advancer struct {
	Engine *Engine
}

// Register subscribes the advancer to product.released.
func (a *Advancer) Register(bus *events.Bus) {
	bus.Subscribe(events.TopicProductReleased, a.handle)
}

func (a *Advancer) handle(ctx context.Context, payload interface{}) {
	evt, ok := payload.(events.ProductReleased)
	if !ok {
		return
	}
	if _, err := a.Engine.PromoteNext(ctx, evt.ProductID); err != nil {
		log.Error().Err(err).
			Str("product_id", evt.ProductID.String()).
			Msg("queue advance on release failed")
	}
}
