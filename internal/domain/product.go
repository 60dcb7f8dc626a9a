package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is the catalog read model this core consumes. Quantity is the
// catalog's total stock; availability is always derived from it minus the
// ledgers, never stored.
type Product struct {
	ProductID            uuid.UUID      `gorm:"column:product_id;type:uuid;primaryKey" json:"product_id"`
	Name                 string         `gorm:"column:name;not null" json:"name"`
	Price                int64          `gorm:"column:price;not null" json:"price"`
	Quantity             int            `gorm:"column:quantity;not null;default:0" json:"quantity"`
	Purchasable          bool           `gorm:"column:purchasable;not null;default:true" json:"purchasable"`
	TimerEnabled         bool           `gorm:"column:timer_enabled;not null;default:false" json:"timer_enabled"`
	TimerDurationMinutes int            `gorm:"column:timer_duration_minutes;not null;default:0" json:"timer_duration_minutes"`
	CreatedAt            time.Time      `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt            time.Time      `gorm:"column:updatedAt" json:"updatedAt"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Product) TableName() string {
	return "Products"
}

// TimerDuration returns the hold window for this product.
func (p *Product) TimerDuration() time.Duration {
	return time.Duration(p.TimerDurationMinutes) * time.Minute
}

// BeforeCreate sets product_id if not already set (DBs without default uuid).
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ProductID == uuid.Nil {
		p.ProductID = uuid.New()
	}
	return nil
}
