package models

import (
	"time"
)

// Target is a monitored host:port endpoint. The endpoint itself is stored
// only as AES-GCM ciphertext plus an HMAC fingerprint; the plaintext never
// touches the database. Name is unique within a customer.
type Target struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CustomerID uint     `gorm:"not null;index;uniqueIndex:idx_customer_target_name" json:"customer_id"`
	Customer   Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`

	Name string `gorm:"not null;uniqueIndex:idx_customer_target_name" json:"name"`

	// Ciphertext and fingerprint are always written together and correspond
	// to the same plaintext host:port.
	EncryptedValue []byte `gorm:"not null" json:"-"`
	Fingerprint    string `gorm:"type:char(64);not null;index" json:"-"`

	Enabled             bool      `gorm:"default:true;index" json:"enabled"`
	LastChecked         time.Time `json:"last_checked"`
	ConsecutiveFailures int       `gorm:"default:0" json:"consecutive_failures"`
}
