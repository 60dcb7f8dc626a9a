package scheduler

import (
	"context"
	"testing"
	"time"

	"shoplive-backend/internal/clock"
	"shoplive-backend/internal/domain"
	"shoplive-backend/internal/events"
	"shoplive-backend/internal/holds"
	"shoplive-backend/internal/promotion"
	"shoplive-backend/internal/shipping"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recorded struct {
	topic   events.Topic
	payload interface{}
}

func setupSweepTest(t *testing.T) (*Sweeper, *gorm.DB, *clock.Fixed, *[]recorded) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Product{}, &domain.Hold{}, &domain.Reservation{}, &domain.OutboxEvent{},
	))

	clk := clock.NewFixed(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	bus := events.NewBus()

	var got []recorded
	for _, topic := range []events.Topic{
		events.TopicHoldAdded, events.TopicProductReleased, events.TopicHoldBatchExpired,
		events.TopicReservationCreated, events.TopicReservationPromoted,
	} {
		topic := topic
		bus.Subscribe(topic, func(ctx context.Context, payload interface{}) {
			got = append(got, recorded{topic: topic, payload: payload})
		})
	}

	engine := promotion.NewEngine(db, bus, clk, 15*time.Minute)
	holdService := &holds.Service{DB: db, Bus: bus, Clock: clk, Shipping: shipping.NewDefaultPolicy()}
	(&promotion.Converter{Holds: holdService}).Register(bus)
	(&promotion.Advancer{Engine: engine}).Register(bus)

	sweeper := &Sweeper{DB: db, Bus: bus, Clock: clk}
	return sweeper, db, clk, &got
}

func eventsOf(got []recorded, topic events.Topic) []recorded {
	var out []recorded
	for _, r := range got {
		if r.topic == topic {
			out = append(out, r)
		}
	}
	return out
}

func seedTimedProduct(t *testing.T, db *gorm.DB, quantity int) domain.Product {
	p := domain.Product{
		Name: "drop", Price: 20000, Quantity: quantity, Purchasable: true,
		TimerEnabled: true, TimerDurationMinutes: 10,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func seedTimedHold(t *testing.T, db *gorm.DB, productID uuid.UUID, quantity int, expiresAt time.Time) domain.Hold {
	h := domain.Hold{
		UserID: uuid.New(), ProductID: productID, Quantity: quantity,
		UnitPrice: 20000, TimerEnabled: true, ExpiresAt: &expiresAt,
		Status: domain.HoldStatusActive,
	}
	require.NoError(t, db.Create(&h).Error)
	return h
}

// A timed hold lapses, its stock frees up, the queue front is promoted, and
// the promotion auto-converts into a fresh hold for the waiting buyer.
func TestSweep_ExpiredHoldPromotesAndConverts(t *testing.T) {
	sweeper, db, clk, got := setupSweepTest(t)
	product := seedTimedProduct(t, db, 10)
	seedTimedHold(t, db, product.ProductID, 7, clk.Now().Add(10*time.Minute))

	waiter := uuid.New()
	require.NoError(t, db.Create(&domain.Reservation{
		UserID: waiter, ProductID: product.ProductID, Quantity: 5,
		SequenceNumber: 1, Status: domain.ReservationStatusWaiting,
	}).Error)

	clk.Advance(11 * time.Minute)
	sweeper.Sweep(context.Background())

	var holdRows []domain.Hold
	require.NoError(t, db.Where("product_id = ?", product.ProductID).Find(&holdRows).Error)
	byStatus := map[string]int{}
	for _, h := range holdRows {
		byStatus[h.Status]++
	}
	assert.Equal(t, 1, byStatus[domain.HoldStatusExpired], "original hold expired")
	assert.Equal(t, 1, byStatus[domain.HoldStatusActive], "auto-converted hold created")

	var reservation domain.Reservation
	require.NoError(t, db.Where("user_id = ?", waiter).First(&reservation).Error)
	assert.Equal(t, domain.ReservationStatusPromoted, reservation.Status)

	assert.Len(t, eventsOf(*got, events.TopicProductReleased), 1)
	assert.Len(t, eventsOf(*got, events.TopicReservationPromoted), 1)
	assert.Len(t, eventsOf(*got, events.TopicHoldAdded), 1, "conversion went through the hold ledger")
	batch := eventsOf(*got, events.TopicHoldBatchExpired)
	require.Len(t, batch, 1)
	assert.Equal(t, events.HoldBatchExpired{Count: 1}, batch[0].payload)
}

// A lapsed promotion expires both the reservation and its synced hold, then
// hands the window to the next waiter.
func TestSweep_LapsedPromotionCascades(t *testing.T) {
	sweeper, db, clk, got := setupSweepTest(t)
	product := seedTimedProduct(t, db, 10)
	buyer := uuid.New()

	deadline := clk.Now().Add(15 * time.Minute)
	promotedAt := clk.Now()
	require.NoError(t, db.Create(&domain.Reservation{
		UserID: buyer, ProductID: product.ProductID, Quantity: 5,
		SequenceNumber: 1, Status: domain.ReservationStatusPromoted,
		PromotedAt: &promotedAt, ExpiresAt: &deadline,
	}).Error)
	// The hold the converter created for the promoted buyer. No timer: it
	// lives exactly as long as the promotion window.
	require.NoError(t, db.Create(&domain.Hold{
		UserID: buyer, ProductID: product.ProductID, Quantity: 5,
		UnitPrice: 20000, Status: domain.HoldStatusActive,
	}).Error)

	next := uuid.New()
	require.NoError(t, db.Create(&domain.Reservation{
		UserID: next, ProductID: product.ProductID, Quantity: 3,
		SequenceNumber: 2, Status: domain.ReservationStatusWaiting,
	}).Error)

	clk.Advance(16 * time.Minute)
	sweeper.Sweep(context.Background())

	var lapsed domain.Reservation
	require.NoError(t, db.Where("user_id = ?", buyer).First(&lapsed).Error)
	assert.Equal(t, domain.ReservationStatusExpired, lapsed.Status)

	var cascaded domain.Hold
	require.NoError(t, db.Where("user_id = ?", buyer).First(&cascaded).Error)
	assert.Equal(t, domain.HoldStatusExpired, cascaded.Status)

	var promoted domain.Reservation
	require.NoError(t, db.Where("user_id = ?", next).First(&promoted).Error)
	assert.Equal(t, domain.ReservationStatusPromoted, promoted.Status)

	assert.Len(t, eventsOf(*got, events.TopicProductReleased), 1)
	assert.Len(t, eventsOf(*got, events.TopicReservationPromoted), 1)
}

func TestSweep_LapsedPromotionWithEmptyQueue(t *testing.T) {
	sweeper, db, clk, got := setupSweepTest(t)
	product := seedTimedProduct(t, db, 10)

	deadline := clk.Now().Add(15 * time.Minute)
	require.NoError(t, db.Create(&domain.Reservation{
		UserID: uuid.New(), ProductID: product.ProductID, Quantity: 5,
		SequenceNumber: 1, Status: domain.ReservationStatusPromoted,
		ExpiresAt: &deadline,
	}).Error)

	clk.Advance(16 * time.Minute)
	sweeper.Sweep(context.Background())

	assert.Len(t, eventsOf(*got, events.TopicProductReleased), 1)
	assert.Empty(t, eventsOf(*got, events.TopicReservationPromoted))
}

func TestSweep_SecondPassIsIdempotent(t *testing.T) {
	sweeper, db, clk, got := setupSweepTest(t)
	product := seedTimedProduct(t, db, 10)
	seedTimedHold(t, db, product.ProductID, 4, clk.Now().Add(10*time.Minute))

	clk.Advance(11 * time.Minute)
	sweeper.Sweep(context.Background())
	firstPass := len(*got)
	assert.Greater(t, firstPass, 0)

	sweeper.Sweep(context.Background())
	assert.Len(t, *got, firstPass, "nothing left to expire, so nothing emitted")
}

func TestSweep_OneReleasePerProduct(t *testing.T) {
	sweeper, db, clk, got := setupSweepTest(t)
	product := seedTimedProduct(t, db, 10)
	seedTimedHold(t, db, product.ProductID, 2, clk.Now().Add(5*time.Minute))
	seedTimedHold(t, db, product.ProductID, 3, clk.Now().Add(8*time.Minute))

	clk.Advance(9 * time.Minute)
	sweeper.Sweep(context.Background())

	assert.Len(t, eventsOf(*got, events.TopicProductReleased), 1, "releases are deduplicated per product")
	batch := eventsOf(*got, events.TopicHoldBatchExpired)
	require.Len(t, batch, 1)
	assert.Equal(t, events.HoldBatchExpired{Count: 2}, batch[0].payload)
}

func TestSweep_LeavesUntimedHoldsAlone(t *testing.T) {
	sweeper, db, clk, got := setupSweepTest(t)
	product := seedTimedProduct(t, db, 10)
	require.NoError(t, db.Create(&domain.Hold{
		UserID: uuid.New(), ProductID: product.ProductID, Quantity: 2,
		UnitPrice: 20000, Status: domain.HoldStatusActive,
	}).Error)

	clk.Advance(24 * time.Hour)
	sweeper.Sweep(context.Background())

	var h domain.Hold
	require.NoError(t, db.Where("product_id = ?", product.ProductID).First(&h).Error)
	assert.Equal(t, domain.HoldStatusActive, h.Status)
	assert.Empty(t, *got)
}
