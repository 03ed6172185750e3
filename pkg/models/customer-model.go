package models

import (
	"time"
)

// Customer is the monitoring profile of one chat. It may exist without an
// active subscription (e.g. during setup).
type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ChatID           int64 `gorm:"uniqueIndex;not null" json:"chat_id"`
	AlertsEnabled    bool  `gorm:"default:true" json:"alerts_enabled"`
	IntervalSeconds  int   `gorm:"default:60" json:"interval_seconds"`
	FailureThreshold int   `gorm:"default:3" json:"failure_threshold"`

	// Relationships
	Targets []Target `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"targets,omitempty"`
}
