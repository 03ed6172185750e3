// Command rotatekeys re-encrypts every stored secret under a new master key.
// The rotation runs in one transaction: either every row is re-encrypted and
// re-fingerprinted, or nothing changes.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/turlebp/SysAlertV2/pkg/config"
	"github.com/turlebp/SysAlertV2/pkg/crypto"
	"github.com/turlebp/SysAlertV2/pkg/db"
	"github.com/turlebp/SysAlertV2/pkg/log"
	"github.com/turlebp/SysAlertV2/pkg/models"
)

func main() {
	oldKey := flag.String("old-key", os.Getenv("MASTER_KEY"), "current base64 master key")
	newKey := flag.String("new-key", os.Getenv("NEW_MASTER_KEY"), "replacement base64 master key")
	flag.Parse()

	if *oldKey == "" || *newKey == "" {
		fmt.Fprintln(os.Stderr, "both --old-key and --new-key are required (or MASTER_KEY / NEW_MASTER_KEY)")
		os.Exit(2)
	}
	if *oldKey == *newKey {
		fmt.Fprintln(os.Stderr, "the new key must differ from the old key")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := log.GetLogger()

	oldCM, err := crypto.New(*oldKey)
	if err != nil {
		logger.WithError(err).Fatal("Invalid old master key")
	}
	newCM, err := crypto.New(*newKey)
	if err != nil {
		logger.WithError(err).Fatal("Invalid new master key")
	}

	database, err := db.New(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	batchID := uuid.New().String()
	var targets, benchTargets int

	err = database.Transaction(func(tx *gorm.DB) error {
		var monitored []models.Target
		if err := tx.Find(&monitored).Error; err != nil {
			return err
		}
		for i := range monitored {
			plaintext, err := oldCM.Decrypt(monitored[i].EncryptedValue)
			if err != nil {
				return fmt.Errorf("target id=%d: %w", monitored[i].ID, err)
			}
			encrypted, err := newCM.Encrypt(plaintext)
			if err != nil {
				return fmt.Errorf("target id=%d: %w", monitored[i].ID, err)
			}
			err = tx.Model(&monitored[i]).Updates(map[string]interface{}{
				"encrypted_value": encrypted,
				"fingerprint":     newCM.HashValue(plaintext),
			}).Error
			if err != nil {
				return err
			}
			targets++
		}

		var benches []models.BenchmarkTarget
		if err := tx.Find(&benches).Error; err != nil {
			return err
		}
		for i := range benches {
			plaintext, err := oldCM.Decrypt(benches[i].EncryptedValue)
			if err != nil {
				return fmt.Errorf("benchmark target id=%d: %w", benches[i].ID, err)
			}
			encrypted, err := newCM.Encrypt(plaintext)
			if err != nil {
				return fmt.Errorf("benchmark target id=%d: %w", benches[i].ID, err)
			}
			err = tx.Model(&benches[i]).Updates(map[string]interface{}{
				"encrypted_value": encrypted,
				"fingerprint":     newCM.HashValue(plaintext),
			}).Error
			if err != nil {
				return err
			}
			benchTargets++
		}

		return tx.Create(&models.AuditLog{
			Action:  "rotate_keys",
			Details: fmt.Sprintf("batch=%s targets=%d benchmark_targets=%d", batchID, targets, benchTargets),
		}).Error
	})
	if err != nil {
		logger.WithError(err).Fatal("Key rotation failed, no rows were changed")
	}

	logger.WithFields(log.Fields{
		"batch":             batchID,
		"targets":           targets,
		"benchmark_targets": benchTargets,
	}).Info("Key rotation complete")
	fmt.Printf("Rotated %d targets and %d benchmark targets (batch %s)\n", targets, benchTargets, batchID)
}
