package stock

import (
	"context"
	"testing"

	"shoplive-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAvailable(t *testing.T) {
	assert.Equal(t, 10, Available(10, 0, 0))
	assert.Equal(t, 3, Available(10, 7, 0))
	assert.Equal(t, 2, Available(10, 3, 5))
	assert.Equal(t, 0, Available(10, 10, 0))
	// Inconsistent ledgers must clamp, never go negative.
	assert.Equal(t, 0, Available(10, 8, 5))
	assert.Equal(t, 0, Available(0, 0, 0))
}

func setupStockDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Product{}, &domain.Hold{}, &domain.Reservation{}))
	return db
}

func TestAccountant_Available(t *testing.T) {
	db := setupStockDB(t)
	product := domain.Product{Name: "vest", Price: 10000, Quantity: 10, Purchasable: true}
	require.NoError(t, db.Create(&product).Error)

	otherProduct := uuid.New()
	require.NoError(t, db.Create(&domain.Hold{
		UserID: uuid.New(), ProductID: product.ProductID, Quantity: 4,
		UnitPrice: 10000, Status: domain.HoldStatusActive,
	}).Error)
	// Expired holds and other products must not count.
	require.NoError(t, db.Create(&domain.Hold{
		UserID: uuid.New(), ProductID: product.ProductID, Quantity: 9,
		UnitPrice: 10000, Status: domain.HoldStatusExpired,
	}).Error)
	require.NoError(t, db.Create(&domain.Hold{
		UserID: uuid.New(), ProductID: otherProduct, Quantity: 9,
		UnitPrice: 10000, Status: domain.HoldStatusActive,
	}).Error)
	require.NoError(t, db.Create(&domain.Reservation{
		UserID: uuid.New(), ProductID: product.ProductID, Quantity: 2,
		SequenceNumber: 1, Status: domain.ReservationStatusPromoted,
	}).Error)
	// WAITING is queued demand, not a claim.
	require.NoError(t, db.Create(&domain.Reservation{
		UserID: uuid.New(), ProductID: product.ProductID, Quantity: 5,
		SequenceNumber: 2, Status: domain.ReservationStatusWaiting,
	}).Error)

	accountant := &Accountant{DB: db}
	available, err := accountant.Available(context.Background(), &product)
	require.NoError(t, err)
	assert.Equal(t, 4, available) // 10 - 4 held - 2 promoted
}
