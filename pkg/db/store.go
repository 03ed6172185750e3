package db

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/turlebp/SysAlertV2/pkg/crypto"
	"github.com/turlebp/SysAlertV2/pkg/log"
	"github.com/turlebp/SysAlertV2/pkg/models"
	"github.com/turlebp/SysAlertV2/pkg/utils"
)

// Store owns all persistent state. Every sensitive field is encrypted and
// fingerprinted on write and decrypted lazily on read; callers never see
// ciphertext. Each method is one short-lived transaction, never held across
// a network call.
type Store struct {
	db     *DB
	crypto *crypto.Manager
	logger *log.Logger
}

// BenchmarkEntry is a decrypted benchmark target returned to callers.
type BenchmarkEntry struct {
	Name    string
	Network models.Network
}

// NewStore creates a store over an open database connection.
func NewStore(db *DB, cm *crypto.Manager, logger *log.Logger) *Store {
	return &Store{db: db, crypto: cm, logger: logger}
}

func (s *Store) DB() *DB {
	return s.db
}

// === Subscriptions ===

// AddSubscription registers a chat for alerts. Idempotent.
func (s *Store) AddSubscription(chatID int64) error {
	sub := models.Subscription{ChatID: chatID}
	err := s.db.Where(models.Subscription{ChatID: chatID}).FirstOrCreate(&sub).Error
	if err != nil {
		return fmt.Errorf("add subscription: %w", err)
	}
	s.logger.WithField("chat", utils.MaskChatID(chatID)).Info("Added subscription")
	return nil
}

func (s *Store) RemoveSubscription(chatID int64) error {
	result := s.db.Delete(&models.Subscription{}, "chat_id = ?", chatID)
	if result.Error != nil {
		return fmt.Errorf("remove subscription: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.logger.WithField("chat", utils.MaskChatID(chatID)).Info("Removed subscription")
	}
	return nil
}

func (s *Store) ListSubscriptions() ([]int64, error) {
	var chatIDs []int64
	err := s.db.Model(&models.Subscription{}).Pluck("chat_id", &chatIDs).Error
	return chatIDs, err
}

func (s *Store) CountSubscriptions() (int64, error) {
	var count int64
	err := s.db.Model(&models.Subscription{}).Count(&count).Error
	return count, err
}

func (s *Store) IsSubscribed(chatID int64) (bool, error) {
	var count int64
	err := s.db.Model(&models.Subscription{}).Where("chat_id = ?", chatID).Count(&count).Error
	return count > 0, err
}

// === Customers ===

// GetCustomerByChat returns the customer profile with its targets preloaded,
// or nil when no profile exists.
func (s *Store) GetCustomerByChat(chatID int64) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.Preload("Targets").Where("chat_id = ?", chatID).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &customer, nil
}

func (s *Store) CreateCustomer(chatID int64, intervalSeconds, failureThreshold int) (*models.Customer, error) {
	customer := models.Customer{
		ChatID:           chatID,
		AlertsEnabled:    true,
		IntervalSeconds:  intervalSeconds,
		FailureThreshold: failureThreshold,
	}
	if err := s.db.Create(&customer).Error; err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return &customer, nil
}

// SetCustomerAlerts toggles alert delivery for a chat. Returns false when no
// customer profile exists.
func (s *Store) SetCustomerAlerts(chatID int64, enabled bool) (bool, error) {
	result := s.db.Model(&models.Customer{}).Where("chat_id = ?", chatID).
		Update("alerts_enabled", enabled)
	if result.Error != nil {
		return false, fmt.Errorf("set customer alerts: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SetCustomerInterval sets the per-customer check interval in seconds.
func (s *Store) SetCustomerInterval(chatID int64, intervalSeconds int) (bool, error) {
	result := s.db.Model(&models.Customer{}).Where("chat_id = ?", chatID).
		Update("interval_seconds", intervalSeconds)
	if result.Error != nil {
		return false, fmt.Errorf("set customer interval: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.logger.WithFields(log.Fields{
			"chat":     utils.MaskChatID(chatID),
			"interval": intervalSeconds,
		}).Info("Set customer interval")
	}
	return result.RowsAffected > 0, nil
}

// === Targets ===

// UpsertTarget creates or overwrites the target identified by (customer,
// name). On update the ciphertext and fingerprint are replaced together and
// the target is re-enabled; the failure counter is left untouched.
func (s *Store) UpsertTarget(customerID uint, name, host string, port int) (*models.Target, error) {
	endpoint := fmt.Sprintf("%s:%d", host, port)
	encrypted, err := s.crypto.Encrypt(endpoint)
	if err != nil {
		return nil, fmt.Errorf("upsert target: %w", err)
	}
	fingerprint := s.crypto.HashValue(endpoint)

	var target models.Target
	err = s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("customer_id = ? AND name = ?", customerID, name).First(&target)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			target = models.Target{
				CustomerID:     customerID,
				Name:           name,
				EncryptedValue: encrypted,
				Fingerprint:    fingerprint,
				Enabled:        true,
			}
			return tx.Create(&target).Error
		}
		if result.Error != nil {
			return result.Error
		}

		target.EncryptedValue = encrypted
		target.Fingerprint = fingerprint
		target.Enabled = true
		return tx.Save(&target).Error
	})
	if err != nil {
		return nil, fmt.Errorf("upsert target: %w", err)
	}

	s.logger.WithField("target", utils.SafeTargetRef(name, host, port)).Info("Upserted target")
	return &target, nil
}

func (s *Store) ListCustomerTargets(customerID uint) ([]models.Target, error) {
	var targets []models.Target
	err := s.db.Where("customer_id = ?", customerID).Find(&targets).Error
	return targets, err
}

// DecryptTarget recovers the plaintext (host, port) of a target.
func (s *Store) DecryptTarget(target *models.Target) (string, int, error) {
	endpoint, err := s.crypto.Decrypt(target.EncryptedValue)
	if err != nil {
		return "", 0, fmt.Errorf("decrypt target %q: %w", target.Name, err)
	}

	idx := strings.LastIndex(endpoint, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("decrypt target %q: malformed endpoint", target.Name)
	}
	port, err := strconv.Atoi(endpoint[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("decrypt target %q: malformed port", target.Name)
	}
	return endpoint[:idx], port, nil
}

func (s *Store) RemoveTarget(customerID uint, name string) (bool, error) {
	result := s.db.Where("customer_id = ? AND name = ?", customerID, name).
		Delete(&models.Target{})
	if result.Error != nil {
		return false, fmt.Errorf("remove target: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SetTargetMode toggles a single target's maintenance mode. Returns the
// number of rows affected (0 means not found).
func (s *Store) SetTargetMode(customerID uint, name string, enable bool) (int64, error) {
	result := s.db.Model(&models.Target{}).
		Where("customer_id = ? AND name = ?", customerID, name).
		Update("enabled", enable)
	if result.Error != nil {
		return 0, fmt.Errorf("set target mode: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// SetAllTargetsMode toggles every target of a customer. Returns the number
// of rows affected.
func (s *Store) SetAllTargetsMode(customerID uint, enable bool) (int64, error) {
	result := s.db.Model(&models.Target{}).
		Where("customer_id = ?", customerID).
		Update("enabled", enable)
	if result.Error != nil {
		return 0, fmt.Errorf("set all targets mode: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Store) CountCustomerTargets(customerID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Target{}).Where("customer_id = ?", customerID).Count(&count).Error
	return count, err
}

// UpdateTargetChecked persists a probe outcome: the last-checked timestamp
// plus the failure counter (incremented on failure, reset on success).
func (s *Store) UpdateTargetChecked(targetID uint, checkedAt time.Time, failed bool) error {
	updates := map[string]interface{}{
		"last_checked": checkedAt,
	}
	if failed {
		updates["consecutive_failures"] = gorm.Expr("consecutive_failures + 1")
	} else {
		updates["consecutive_failures"] = 0
	}

	err := s.db.Model(&models.Target{}).Where("id = ?", targetID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("update target checked: %w", err)
	}
	return nil
}

// === Benchmark targets ===

// AddBenchmarkTarget registers a benchmark identifier for a chat. Identity is
// (chat, fingerprint): re-adding an existing identifier only updates its
// network class, the ciphertext is immutable once created.
func (s *Store) AddBenchmarkTarget(chatID int64, name string, network models.Network) error {
	fingerprint := s.crypto.HashValue(name)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.BenchmarkTarget
		result := tx.Where("chat_id = ? AND fingerprint = ?", chatID, fingerprint).First(&existing)
		if result.Error == nil {
			return tx.Model(&existing).Update("network", network).Error
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}

		encrypted, err := s.crypto.Encrypt(name)
		if err != nil {
			return err
		}
		return tx.Create(&models.BenchmarkTarget{
			ChatID:         chatID,
			EncryptedValue: encrypted,
			Fingerprint:    fingerprint,
			Network:        network,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("add benchmark target: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"bench": utils.SafeBenchRef(name, string(network)),
		"chat":  utils.MaskChatID(chatID),
	}).Info("Added benchmark target")
	return nil
}

func (s *Store) RemoveBenchmarkTarget(chatID int64, name string) (bool, error) {
	fingerprint := s.crypto.HashValue(name)
	result := s.db.Where("chat_id = ? AND fingerprint = ?", chatID, fingerprint).
		Delete(&models.BenchmarkTarget{})
	if result.Error != nil {
		return false, fmt.Errorf("remove benchmark target: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListBenchmarkTargets returns the decrypted benchmark identifiers of a chat.
func (s *Store) ListBenchmarkTargets(chatID int64) ([]BenchmarkEntry, error) {
	var rows []models.BenchmarkTarget
	if err := s.db.Where("chat_id = ?", chatID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list benchmark targets: %w", err)
	}

	entries := make([]BenchmarkEntry, 0, len(rows))
	for _, row := range rows {
		name, err := s.crypto.Decrypt(row.EncryptedValue)
		if err != nil {
			return nil, fmt.Errorf("list benchmark targets: %w", err)
		}
		network := row.Network
		if network == "" {
			network = models.NetworkMainnet
		}
		entries = append(entries, BenchmarkEntry{Name: name, Network: network})
	}
	return entries, nil
}

func (s *Store) CountBenchmarkTargets(chatID int64) (int64, error) {
	var count int64
	err := s.db.Model(&models.BenchmarkTarget{}).Where("chat_id = ?", chatID).Count(&count).Error
	return count, err
}

// === History ===

func (s *Store) WriteHistory(chatID int64, targetName, status, errMsg string, responseTime float64) error {
	h := models.History{
		Timestamp:      time.Now().UTC(),
		CustomerChatID: chatID,
		TargetName:     targetName,
		Status:         status,
		Error:          errMsg,
		ResponseTime:   responseTime,
	}
	if err := s.db.Create(&h).Error; err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

func (s *Store) RecentHistory(chatID int64, limit int) ([]models.History, error) {
	var rows []models.History
	err := s.db.Where("customer_chat_id = ?", chatID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// === Audit ===

func (s *Store) Audit(actorChatID int64, action, details string) error {
	entry := models.AuditLog{
		ActorChatID: actorChatID,
		Action:      action,
		Details:     details,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	s.logger.LogAudit(utils.MaskChatID(actorChatID), action, details)
	return nil
}

// === Account deletion ===

// DeleteUserData purges everything a chat owns in one transaction: the
// customer profile with its targets, all benchmark targets, history rows and
// the subscription, then records one audit row. Idempotent: a chat with no
// data still gets the audit row.
func (s *Store) DeleteUserData(chatID int64) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		result := tx.Where("chat_id = ?", chatID).First(&customer)
		if result.Error == nil {
			if err := tx.Where("customer_id = ?", customer.ID).Delete(&models.Target{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&customer).Error; err != nil {
				return err
			}
		} else if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}

		if err := tx.Where("chat_id = ?", chatID).Delete(&models.BenchmarkTarget{}).Error; err != nil {
			return err
		}

		if err := tx.Where("customer_chat_id = ?", chatID).Delete(&models.History{}).Error; err != nil {
			return err
		}

		if err := tx.Delete(&models.Subscription{}, "chat_id = ?", chatID).Error; err != nil {
			return err
		}

		return tx.Create(&models.AuditLog{
			ActorChatID: chatID,
			Action:      "delete_account",
			Details:     "User deleted all data",
		}).Error
	})
	if err != nil {
		return fmt.Errorf("delete user data: %w", err)
	}

	s.logger.WithField("chat", utils.MaskChatID(chatID)).Info("Deleted all user data")
	return nil
}
