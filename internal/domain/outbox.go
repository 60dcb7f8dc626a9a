package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OutboxEvent is written in the same transaction as the ledger mutation it
// describes, so notification delivery can be replayed after a crash without
// the ledger ever depending on a listener or broker being up.
type OutboxEvent struct {
	EventID     uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	Topic       string         `gorm:"column:topic;not null;index" json:"topic"`
	Payload     datatypes.JSON `gorm:"column:payload;type:json" json:"payload"`
	PublishedAt *time.Time     `gorm:"column:published_at;index" json:"published_at"`
	CreatedAt   time.Time      `gorm:"column:createdAt" json:"createdAt"`
}

func (OutboxEvent) TableName() string {
	return "OutboxEvents"
}

func (e *OutboxEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
