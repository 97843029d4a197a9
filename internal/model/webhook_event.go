package model

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is the replay ledger. (EventID, EntityID) is the primary key so a
// second insert of the same delivery fails at the store.
type WebhookEvent struct {
	EventID   string  `gorm:"primaryKey;size:128;not null"`
	EntityID  string  `gorm:"primaryKey;size:128;not null"`
	OrderID   *string `gorm:"size:36;index"`
	EventType string  `gorm:"size:64;index"`
	// raw delivery, kept for audit until pruned
	Payload     datatypes.JSON
	ProcessedAt time.Time
	CreatedAt   time.Time `gorm:"index"`
}
