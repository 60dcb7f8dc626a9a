package sequence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const seqKeyPrefix = "waitlist:seq:"

// Allocator mints per-product, strictly increasing waitlist sequence numbers.
// It is the only component allowed to do so; no caller may re-derive one
// locally. Redis INCR keeps the counter atomic across service instances.
type Allocator struct {
	Rdb *redis.Client
}

// Next returns the next sequence number for productID. When Redis is
// unreachable the error propagates and the reservation request fails; there
// is deliberately no in-process fallback counter, since a second instance
// would hand out duplicates.
func (a *Allocator) Next(ctx context.Context, productID uuid.UUID) (int64, error) {
	seq, err := a.Rdb.Incr(ctx, seqKeyPrefix+productID.String()).Result()
	if err != nil {
		return 0, fmt.Errorf("sequence allocator: %w", err)
	}
	return seq, nil
}
