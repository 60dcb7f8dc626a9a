package waitlist

import (
	"context"
	"testing"
	"time"

	"shoplive-backend/internal/catalog"
	"shoplive-backend/internal/clock"
	"shoplive-backend/internal/domain"
	"shoplive-backend/internal/events"
	"shoplive-backend/internal/sequence"
	"shoplive-backend/internal/stock"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type promoteCall struct {
	productID uuid.UUID
}

type fakePromoter struct {
	calls []promoteCall
}

func (f *fakePromoter) PromoteNext(ctx context.Context, productID uuid.UUID) (*domain.Reservation, error) {
	f.calls = append(f.calls, promoteCall{productID: productID})
	return nil, nil
}

func setupWaitlistTest(t *testing.T) (*Service, *gorm.DB, *clock.Fixed, *fakePromoter) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Product{}, &domain.Hold{}, &domain.Reservation{}, &domain.OutboxEvent{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	clk := clock.NewFixed(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	promoter := &fakePromoter{}
	svc := &Service{
		DB:       db,
		Catalog:  &catalog.GormReader{DB: db},
		Stock:    &stock.Accountant{DB: db},
		Seq:      &sequence.Allocator{Rdb: rdb},
		Bus:      events.NewBus(),
		Clock:    clk,
		Promoter: promoter,
	}
	return svc, db, clk, promoter
}

func seedProduct(t *testing.T, db *gorm.DB, quantity int) domain.Product {
	p := domain.Product{Name: "drop", Price: 20000, Quantity: quantity, Purchasable: true}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func seedHold(t *testing.T, db *gorm.DB, productID uuid.UUID, quantity int) {
	require.NoError(t, db.Create(&domain.Hold{
		UserID: uuid.New(), ProductID: productID, Quantity: quantity,
		UnitPrice: 20000, Status: domain.HoldStatusActive,
	}).Error)
}

func TestRequestReservation_WhenStockExhausted(t *testing.T) {
	svc, db, _, _ := setupWaitlistTest(t)
	product := seedProduct(t, db, 10)
	seedHold(t, db, product.ProductID, 7)

	// 3 available, 5 wanted: the hold path would have failed, so the
	// waitlist takes over.
	reservation, err := svc.RequestReservation(context.Background(), uuid.New(), product.ProductID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reservation.SequenceNumber)
	assert.Equal(t, domain.ReservationStatusWaiting, reservation.Status)

	var outboxCount int64
	require.NoError(t, db.Model(&domain.OutboxEvent{}).
		Where("topic = ?", string(events.TopicReservationCreated)).
		Count(&outboxCount).Error)
	assert.Equal(t, int64(1), outboxCount)
}

func TestRequestReservation_StockAvailable(t *testing.T) {
	svc, db, _, _ := setupWaitlistTest(t)
	product := seedProduct(t, db, 10)
	seedHold(t, db, product.ProductID, 7)

	_, err := svc.RequestReservation(context.Background(), uuid.New(), product.ProductID, 3)
	assert.ErrorIs(t, err, domain.ErrStockAvailable)
}

func TestRequestReservation_PromotedCountsAgainstStock(t *testing.T) {
	svc, db, _, _ := setupWaitlistTest(t)
	product := seedProduct(t, db, 10)
	seedHold(t, db, product.ProductID, 5)
	require.NoError(t, db.Create(&domain.Reservation{
		UserID: uuid.New(), ProductID: product.ProductID, Quantity: 3,
		SequenceNumber: 1, Status: domain.ReservationStatusPromoted,
	}).Error)

	// 10 - 5 held - 3 promoted = 2 available, so 3 wanted may queue.
	reservation, err := svc.RequestReservation(context.Background(), uuid.New(), product.ProductID, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusWaiting, reservation.Status)
}

func TestRequestReservation_AlreadyReserved(t *testing.T) {
	svc, db, _, _ := setupWaitlistTest(t)
	product := seedProduct(t, db, 10)
	seedHold(t, db, product.ProductID, 10)
	user := uuid.New()

	_, err := svc.RequestReservation(context.Background(), user, product.ProductID, 2)
	require.NoError(t, err)
	_, err = svc.RequestReservation(context.Background(), user, product.ProductID, 2)
	assert.ErrorIs(t, err, domain.ErrAlreadyReserved)

	// A cancelled reservation frees the slot.
	var r domain.Reservation
	require.NoError(t, db.Where("user_id = ?", user).First(&r).Error)
	require.NoError(t, svc.CancelReservation(context.Background(), user, r.ReservationID))
	_, err = svc.RequestReservation(context.Background(), user, product.ProductID, 2)
	assert.NoError(t, err)
}

func TestRequestReservation_InvalidQuantity(t *testing.T) {
	svc, db, _, _ := setupWaitlistTest(t)
	product := seedProduct(t, db, 10)

	_, err := svc.RequestReservation(context.Background(), uuid.New(), product.ProductID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = svc.RequestReservation(context.Background(), uuid.New(), product.ProductID, 11)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestRequestReservation_ProductNotFound(t *testing.T) {
	svc, _, _, _ := setupWaitlistTest(t)
	_, err := svc.RequestReservation(context.Background(), uuid.New(), uuid.New(), 2)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestRequestReservation_SequenceIsFIFO(t *testing.T) {
	svc, db, _, _ := setupWaitlistTest(t)
	product := seedProduct(t, db, 10)
	seedHold(t, db, product.ProductID, 10)

	for want := int64(1); want <= 3; want++ {
		r, err := svc.RequestReservation(context.Background(), uuid.New(), product.ProductID, 2)
		require.NoError(t, err)
		assert.Equal(t, want, r.SequenceNumber)
	}
}

func TestCancelReservation_WaitingDoesNotPromote(t *testing.T) {
	svc, db, _, promoter := setupWaitlistTest(t)
	product := seedProduct(t, db, 10)
	seedHold(t, db, product.ProductID, 10)
	user := uuid.New()

	r, err := svc.RequestReservation(context.Background(), user, product.ProductID, 2)
	require.NoError(t, err)
	require.NoError(t, svc.CancelReservation(context.Background(), user, r.ReservationID))

	var updated domain.Reservation
	require.NoError(t, db.First(&updated, "reservation_id = ?", r.ReservationID).Error)
	assert.Equal(t, domain.ReservationStatusCancelled, updated.Status)
	assert.Empty(t, promoter.calls, "cancelling WAITING frees no promoted capacity")
}

func TestCancelReservation_PromotedAdvancesQueue(t *testing.T) {
	svc, db, _, promoter := setupWaitlistTest(t)
	product := seedProduct(t, db, 10)
	user := uuid.New()
	require.NoError(t, db.Create(&domain.Reservation{
		UserID: user, ProductID: product.ProductID, Quantity: 2,
		SequenceNumber: 1, Status: domain.ReservationStatusPromoted,
	}).Error)

	var r domain.Reservation
	require.NoError(t, db.Where("user_id = ?", user).First(&r).Error)
	require.NoError(t, svc.CancelReservation(context.Background(), user, r.ReservationID))

	require.Len(t, promoter.calls, 1)
	assert.Equal(t, product.ProductID, promoter.calls[0].productID)
}

func TestCancelReservation_WrongOwnerOrTerminal(t *testing.T) {
	svc, db, _, _ := setupWaitlistTest(t)
	product := seedProduct(t, db, 10)
	user := uuid.New()
	r := domain.Reservation{
		UserID: user, ProductID: product.ProductID, Quantity: 2,
		SequenceNumber: 1, Status: domain.ReservationStatusWaiting,
	}
	require.NoError(t, db.Create(&r).Error)

	err := svc.CancelReservation(context.Background(), uuid.New(), r.ReservationID)
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)

	require.NoError(t, db.Model(&r).Update("status", domain.ReservationStatusExpired).Error)
	err = svc.CancelReservation(context.Background(), user, r.ReservationID)
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestQueuePosition(t *testing.T) {
	svc, db, _, _ := setupWaitlistTest(t)
	product := seedProduct(t, db, 10)
	seedHold(t, db, product.ProductID, 10)

	var ids []uuid.UUID
	var users []uuid.UUID
	for i := 0; i < 3; i++ {
		user := uuid.New()
		r, err := svc.RequestReservation(context.Background(), user, product.ProductID, 1)
		require.NoError(t, err)
		ids = append(ids, r.ReservationID)
		users = append(users, user)
	}

	pos, err := svc.QueuePosition(context.Background(), product.ProductID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, pos)

	// Cancelling sequence 3 leaves 1 and 2 untouched: position is always
	// recomputed from the remaining WAITING rows, never stored.
	require.NoError(t, svc.CancelReservation(context.Background(), users[2], ids[2]))
	pos, err = svc.QueuePosition(context.Background(), product.ProductID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	pos, err = svc.QueuePosition(context.Background(), product.ProductID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestListReservations(t *testing.T) {
	svc, db, clk, _ := setupWaitlistTest(t)
	product := seedProduct(t, db, 10)
	other := seedProduct(t, db, 10)
	seedHold(t, db, product.ProductID, 10)
	seedHold(t, db, other.ProductID, 10)
	user := uuid.New()

	// Someone ahead of the listed user on the first product.
	_, err := svc.RequestReservation(context.Background(), uuid.New(), product.ProductID, 1)
	require.NoError(t, err)
	_, err = svc.RequestReservation(context.Background(), user, product.ProductID, 1)
	require.NoError(t, err)

	deadline := clk.Now().Add(10 * time.Minute)
	require.NoError(t, db.Create(&domain.Reservation{
		UserID: user, ProductID: other.ProductID, Quantity: 1,
		SequenceNumber: 1, Status: domain.ReservationStatusPromoted,
		PromotedAt: ptrTime(clk.Now()), ExpiresAt: &deadline,
	}).Error)

	views, err := svc.ListReservations(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, views, 2)

	byProduct := map[uuid.UUID]ReservationView{}
	for _, v := range views {
		byProduct[v.ProductID] = v
	}
	assert.Equal(t, 2, byProduct[product.ProductID].Position)
	assert.Zero(t, byProduct[product.ProductID].RemainingSeconds)
	assert.Zero(t, byProduct[other.ProductID].Position, "PROMOTED reports position 0")
	assert.Equal(t, int64(600), byProduct[other.ProductID].RemainingSeconds)
}

func TestListReservations_Empty(t *testing.T) {
	svc, _, _, _ := setupWaitlistTest(t)
	views, err := svc.ListReservations(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, views)
}

func ptrTime(t time.Time) *time.Time { return &t }
