package holds

import (
	"context"
	"errors"
	"time"

	"shoplive-backend/internal/clock"
	"shoplive-backend/internal/domain"
	"shoplive-backend/internal/events"
	"shoplive-backend/internal/shipping"
	"shoplive-backend/internal/stock"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service is the Hold Ledger: time-boxed cart claims on inventory.
type Service struct {
	DB       *gorm.DB
	Bus      *events.Bus
	Clock    clock.Clock
	Shipping shipping.Policy
}

// CartSummary is the read-only aggregation returned by GetCartSummary.
type CartSummary struct {
	Items       []domain.Hold `json:"items"`
	Subtotal    int64         `json:"subtotal"`
	ShippingFee int64         `json:"shipping_fee"`
	Total       int64         `json:"total"`
	ExpiresAt   *time.Time    `json:"expires_at"`
}

// RequestHold claims quantity units of a product for a user. An existing
// ACTIVE hold for the same (user, product, variant) is merged by increasing
// its quantity; otherwise a new row is created, time-boxed when the product
// has its timer enabled.
//
// The ACTIVE-hold aggregate is re-read inside the transaction immediately
// before the write. On Postgres the product row is additionally locked FOR
// UPDATE, which serializes same-product writers; the aggregate-then-write
// shape still admits a race under weak isolation without that lock.
//
// Promoted reservations do not gate cart holds: a promoted buyer must be
// able to convert their own window into a hold.
func (s *Service) RequestHold(ctx context.Context, userID, productID uuid.UUID, color, size *string, quantity int) (*domain.Hold, error) {
	if quantity < domain.HoldQuantityMin || quantity > domain.HoldQuantityMax {
		return nil, domain.ErrInvalidQuantity
	}

	var hold domain.Hold
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := lockProduct(tx, productID)
		if err != nil {
			return err
		}
		if !product.Purchasable {
			return domain.ErrProductUnavailable
		}

		held, err := stock.SumActiveHolds(tx, productID)
		if err != nil {
			return err
		}
		available := stock.Available(product.Quantity, held, 0)
		if available < quantity {
			return domain.ErrInsufficientStock
		}

		// NULL variants make SQL equality awkward across dialects; the
		// candidate set per user+product is tiny, so match in memory.
		var candidates []domain.Hold
		if err := tx.Where("user_id = ? AND product_id = ? AND status = ?",
			userID, productID, domain.HoldStatusActive).Find(&candidates).Error; err != nil {
			return err
		}
		for i := range candidates {
			if sameVariant(&candidates[i], color, size) {
				// The merged row is still one line item and stays inside the
				// per-line quantity policy.
				if candidates[i].Quantity+quantity > domain.HoldQuantityMax {
					return domain.ErrInvalidQuantity
				}
				candidates[i].Quantity += quantity
				if err := tx.Save(&candidates[i]).Error; err != nil {
					return err
				}
				hold = candidates[i]
				return nil
			}
		}

		hold = domain.Hold{
			UserID:       userID,
			ProductID:    productID,
			Color:        color,
			Size:         size,
			Quantity:     quantity,
			UnitPrice:    product.Price,
			TimerEnabled: product.TimerEnabled,
			Status:       domain.HoldStatusActive,
		}
		if product.TimerEnabled {
			expires := s.Clock.Now().Add(product.TimerDuration())
			hold.ExpiresAt = &expires
		}
		return tx.Create(&hold).Error
	})
	if err != nil {
		return nil, err
	}

	s.Bus.Publish(ctx, events.TopicHoldAdded, events.HoldAdded{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	})
	return &hold, nil
}

// UpdateHoldQuantity sets a hold to a new quantity, re-validating available
// stock net of the hold's own prior quantity.
func (s *Service) UpdateHoldQuantity(ctx context.Context, userID, holdID uuid.UUID, quantity int) (*domain.Hold, error) {
	if quantity < domain.HoldQuantityMin || quantity > domain.HoldQuantityMax {
		return nil, domain.ErrInvalidQuantity
	}

	var hold domain.Hold
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("hold_id = ? AND user_id = ? AND status = ?", holdID, userID, domain.HoldStatusActive).
			First(&hold).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrEntityNotFound
			}
			return err
		}

		product, err := lockProduct(tx, hold.ProductID)
		if err != nil {
			return err
		}

		held, err := stock.SumActiveHolds(tx, hold.ProductID)
		if err != nil {
			return err
		}
		// The hold's current quantity is part of the aggregate and comes
		// back to the pool when it changes.
		available := stock.Available(product.Quantity, held-hold.Quantity, 0)
		if available < quantity {
			return domain.ErrInsufficientStock
		}

		hold.Quantity = quantity
		return tx.Save(&hold).Error
	})
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

// RemoveHold deletes a hold owned by the user and signals freed capacity.
// Deleting an already EXPIRED row is allowed but freed nothing, so no
// release is emitted for it.
func (s *Service) RemoveHold(ctx context.Context, userID, holdID uuid.UUID) error {
	var hold domain.Hold
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("hold_id = ? AND user_id = ?", holdID, userID).First(&hold).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrEntityNotFound
			}
			return err
		}
		return tx.Delete(&hold).Error
	})
	if err != nil {
		return err
	}

	if hold.Status == domain.HoldStatusActive {
		s.Bus.Publish(ctx, events.TopicProductReleased, events.ProductReleased{ProductID: hold.ProductID})
	}
	return nil
}

// ClearHolds deletes every hold of the user and emits one release event per
// distinct product that still had an ACTIVE row; EXPIRED leftovers are
// removed silently.
func (s *Service) ClearHolds(ctx context.Context, userID uuid.UUID) error {
	var productIDs []uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Hold{}).
			Distinct("product_id").
			Where("user_id = ? AND status = ?", userID, domain.HoldStatusActive).
			Pluck("product_id", &productIDs).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&domain.Hold{}).Error
	})
	if err != nil {
		return err
	}

	for _, pid := range productIDs {
		s.Bus.Publish(ctx, events.TopicProductReleased, events.ProductReleased{ProductID: pid})
	}
	return nil
}

// GetCartSummary returns the user's ACTIVE holds with subtotal, one
// order-level shipping fee, and the earliest expiry among the items.
func (s *Service) GetCartSummary(ctx context.Context, userID uuid.UUID, destination string) (*CartSummary, error) {
	var items []domain.Hold
	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.HoldStatusActive).
		Order(`"createdAt" ASC`).
		Find(&items).Error; err != nil {
		return nil, err
	}

	summary := &CartSummary{Items: items}
	for i := range items {
		summary.Subtotal += items[i].Subtotal()
		if items[i].ExpiresAt != nil {
			if summary.ExpiresAt == nil || items[i].ExpiresAt.Before(*summary.ExpiresAt) {
				summary.ExpiresAt = items[i].ExpiresAt
			}
		}
	}
	summary.ShippingFee = s.Shipping.Fee(summary.Subtotal, destination)
	summary.Total = summary.Subtotal + summary.ShippingFee
	return summary, nil
}

func sameVariant(h *domain.Hold, color, size *string) bool {
	return strPtrEqual(h.Color, color) && strPtrEqual(h.Size, size)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// lockProduct reads the product inside the transaction, FOR UPDATE where the
// dialect supports it (SQLite in tests does not).
func lockProduct(tx *gorm.DB, productID uuid.UUID) (*domain.Product, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var product domain.Product
	if err := q.Where("product_id = ?", productID).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}
