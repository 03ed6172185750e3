package models

import (
	"time"
)

// AuditLog is an append-only record of privileged actions.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ActorChatID int64  `gorm:"index" json:"actor_chat_id"`
	Action      string `json:"action"`
	Details     string `gorm:"type:text" json:"details,omitempty"`
}
