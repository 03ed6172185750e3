package models

import (
	"time"
)

// Network enum for benchmark targets
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// BenchmarkTarget is an external benchmark identifier tracked for a chat.
// Identity is (chat_id, fingerprint); the identifier is immutable once
// created since its fingerprint defines the row.
type BenchmarkTarget struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ChatID int64 `gorm:"not null;index" json:"chat_id"`

	EncryptedValue []byte  `gorm:"not null" json:"-"`
	Fingerprint    string  `gorm:"type:char(64);not null" json:"-"`
	Network        Network `gorm:"type:varchar(10);default:'mainnet'" json:"network"`
}
