package stock

import (
	"context"

	"shoplive-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Available computes sellable stock from the catalog quantity and the two
// ledgers. WAITING reservations are queued demand, not a claim, and never
// reduce availability. Clamped at zero so inconsistent ledgers can not
// produce negative availability.
func Available(catalogQty, activeHoldQty, promotedQty int) int {
	available := catalogQty - activeHoldQty - promotedQty
	if available < 0 {
		return 0
	}
	return available
}

// SumActiveHolds returns the total ACTIVE hold quantity for a product. Pass
// a transaction handle to read the aggregate inside a transactional boundary.
func SumActiveHolds(tx *gorm.DB, productID uuid.UUID) (int, error) {
	var total int64
	err := tx.Model(&domain.Hold{}).
		Where("product_id = ? AND status = ?", productID, domain.HoldStatusActive).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return int(total), err
}

// SumPromoted returns the total PROMOTED reservation quantity for a product.
func SumPromoted(tx *gorm.DB, productID uuid.UUID) (int, error) {
	var total int64
	err := tx.Model(&domain.Reservation{}).
		Where("product_id = ? AND status = ?", productID, domain.ReservationStatusPromoted).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return int(total), err
}

// Accountant is the read-only availability view over the ledgers.
type Accountant struct {
	DB *gorm.DB
}

// Available returns derived stock for a product: catalog quantity minus
// ACTIVE holds minus PROMOTED reservations.
func (a *Accountant) Available(ctx context.Context, product *domain.Product) (int, error) {
	db := a.DB.WithContext(ctx)
	held, err := SumActiveHolds(db, product.ProductID)
	if err != nil {
		return 0, err
	}
	promoted, err := SumPromoted(db, product.ProductID)
	if err != nil {
		return 0, err
	}
	return Available(product.Quantity, held, promoted), nil
}
