package catalog

import (
	"context"
	"errors"

	"shoplive-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reader is the product catalog contract this core consumes. The catalog
// itself (creation, pricing, stock edits) is owned elsewhere.
type Reader interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*domain.Product, error)
}

// GormReader reads products from the shared database.
type GormReader struct {
	DB *gorm.DB
}

func (r *GormReader) GetProduct(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	err := r.DB.WithContext(ctx).Where("product_id = ?", productID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
