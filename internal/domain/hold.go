package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Hold statuses.
const (
	HoldStatusActive  = "ACTIVE"
	HoldStatusExpired = "EXPIRED"
)

// Hold quantity policy bounds per line item.
const (
	HoldQuantityMin = 1
	HoldQuantityMax = 10
)

// Hold is a time-boxed claim on inventory: one row per user×product×variant.
// At most one ACTIVE row may exist per tuple; adding the same variant again
// merges into the existing row instead of creating a duplicate.
type Hold struct {
	HoldID       uuid.UUID  `gorm:"column:hold_id;type:uuid;primaryKey" json:"hold_id"`
	UserID       uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	ProductID    uuid.UUID  `gorm:"column:product_id;type:uuid;not null;index" json:"product_id"`
	Color        *string    `gorm:"column:color" json:"color"`
	Size         *string    `gorm:"column:size" json:"size"`
	Quantity     int        `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice    int64      `gorm:"column:unit_price;not null" json:"unit_price"`
	ShippingFee  int64      `gorm:"column:shipping_fee;not null;default:0" json:"shipping_fee"`
	TimerEnabled bool       `gorm:"column:timer_enabled;not null;default:false" json:"timer_enabled"`
	ExpiresAt    *time.Time `gorm:"column:expires_at;index" json:"expires_at"`
	Status       string     `gorm:"column:status;type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	CreatedAt    time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Hold) TableName() string {
	return "Holds"
}

// BeforeCreate sets hold_id if not already set (DBs without gen_random_uuid).
func (h *Hold) BeforeCreate(tx *gorm.DB) error {
	if h.HoldID == uuid.Nil {
		h.HoldID = uuid.New()
	}
	return nil
}

// Subtotal is quantity times unit price for this line.
func (h *Hold) Subtotal() int64 {
	return int64(h.Quantity) * h.UnitPrice
}
