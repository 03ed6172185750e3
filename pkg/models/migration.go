package models

import (
	"gorm.io/gorm"
)

// Database migration function
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Subscription{},
		&Customer{},
		&Target{},
		&BenchmarkTarget{},
		&History{},
		&AuditLog{},
	)
}

func CreateIndexes(db *gorm.DB) error {
	// Composite indexes for common queries
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_history_chat_timestamp ON histories(customer_chat_id, timestamp DESC)").Error; err != nil {
		return err
	}

	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_bench_chat_fingerprint ON benchmark_targets(chat_id, fingerprint)").Error; err != nil {
		return err
	}

	return nil
}
