package models

import (
	"time"
)

// Subscription marks a chat as allowed to receive alerts. Keyed directly by
// the chat id, no surrogate key.
type Subscription struct {
	ChatID    int64     `gorm:"primaryKey;autoIncrement:false" json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}
