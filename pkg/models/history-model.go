package models

import (
	"time"
)

// Check result status values
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// History is an append-only record of one probe result. Only the target name
// is stored in plaintext, never the host:port.
type History struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`

	CustomerChatID int64   `gorm:"index" json:"customer_chat_id"`
	TargetName     string  `json:"target_name"`
	Status         string  `json:"status"`
	Error          string  `gorm:"type:text" json:"error,omitempty"`
	ResponseTime   float64 `json:"response_time"`
}
