package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/turlebp/SysAlertV2/pkg/config"
	"github.com/turlebp/SysAlertV2/pkg/db"
	"github.com/turlebp/SysAlertV2/pkg/log"
	"github.com/turlebp/SysAlertV2/pkg/models"
	"github.com/turlebp/SysAlertV2/pkg/queue"
	"github.com/turlebp/SysAlertV2/pkg/utils"
)

// tickInterval is the scheduler's outer loop period. Per-customer intervals
// gate individual targets on top of this.
const tickInterval = 5 * time.Second

var (
	ErrNotSubscribed  = errors.New("not subscribed")
	ErrNoCustomer     = errors.New("no targets configured")
	ErrTargetNotFound = errors.New("target not found")
)

// Service schedules TCP probes for every subscribed customer and turns
// consecutive failures into DOWN/RECOVERED alerts on the delivery queue.
type Service struct {
	cfg       *config.MonitorConfig
	botName   string
	store     *db.Store
	queue     *queue.Manager
	logger    *log.Logger
	validator *utils.Validator

	sem chan struct{}
}

// NewService creates the monitoring scheduler.
func NewService(cfg *config.MonitorConfig, botName string, store *db.Store, q *queue.Manager, logger *log.Logger) *Service {
	return &Service{
		cfg:       cfg,
		botName:   botName,
		store:     store,
		queue:     q,
		logger:    logger,
		validator: utils.NewValidator(cfg.MinIntervalSeconds),
		sem:       make(chan struct{}, cfg.MaxConcurrentChecks),
	}
}

// Run executes the scheduler loop until the context is cancelled. Probes are
// fired as bounded goroutines; a slow probe never delays the next tick.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("Monitoring scheduler started")

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Monitoring scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick re-reads all state fresh from the store so that toggles and edits made
// since the last tick take effect immediately.
func (s *Service) tick(ctx context.Context) {
	subscriptions, err := s.store.ListSubscriptions()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list subscriptions")
		return
	}

	now := time.Now().UTC()
	for _, chatID := range subscriptions {
		customer, err := s.store.GetCustomerByChat(chatID)
		if err != nil {
			s.logger.WithError(err).WithField("chat", utils.MaskChatID(chatID)).
				Error("Failed to load customer")
			continue
		}
		if customer == nil || !customer.AlertsEnabled {
			continue
		}

		interval := time.Duration(customer.IntervalSeconds) * time.Second
		if interval <= 0 {
			interval = time.Duration(s.cfg.DefaultIntervalSeconds) * time.Second
		}

		for i := range customer.Targets {
			target := customer.Targets[i]
			if !target.Enabled {
				continue
			}
			if !target.LastChecked.IsZero() && now.Sub(target.LastChecked) < interval {
				continue
			}

			go func(c models.Customer, t models.Target) {
				select {
				case s.sem <- struct{}{}:
					defer func() { <-s.sem }()
				case <-ctx.Done():
					return
				}
				s.probe(ctx, &c, &t)
			}(*customer, target)
		}
	}
}

// probe runs one check cycle for a target: decrypt, dial, record, alert. The
// alert decision uses the failure counter as it was before this probe, so a
// crossing of the threshold fires exactly once per transition.
func (s *Service) probe(ctx context.Context, customer *models.Customer, target *models.Target) {
	chatRef := utils.MaskChatID(customer.ChatID)

	host, port, err := s.store.DecryptTarget(target)
	if err != nil {
		s.logger.WithError(err).WithField("chat", chatRef).Error("Failed to decrypt target")
		return
	}
	targetRef := utils.SafeTargetRef(target.Name, host, port)

	timeout := time.Duration(s.cfg.ConnectionTimeout * float64(time.Second))
	success, responseTime, reason := Check(ctx, host, port, timeout)

	status := models.StatusFailure
	if success {
		status = models.StatusSuccess
	}
	if err := s.store.WriteHistory(customer.ChatID, target.Name, status, reason, responseTime); err != nil {
		s.logger.WithError(err).WithField("target", targetRef).Error("Failed to write history")
	}

	priorFailures := target.ConsecutiveFailures

	if err := s.store.UpdateTargetChecked(target.ID, time.Now().UTC(), !success); err != nil {
		s.logger.WithError(err).WithField("target", targetRef).Error("Failed to update target")
	}

	s.logger.LogProbe(chatRef, targetRef, success, int64(responseTime*1000))

	threshold := customer.FailureThreshold
	if threshold <= 0 {
		threshold = s.cfg.FailureThreshold
	}

	if !success {
		consecutive := priorFailures + 1
		if consecutive >= threshold {
			s.queue.Enqueue(customer.ChatID, fmt.Sprintf(
				"⚠️ %s ⚠️\n"+
					"🔴 ALERT: %s is DOWN\n\n"+
					"🎯 Target: %s:%d\n"+
					"💥 Consecutive failures: %d\n"+
					"❌ Error: %s\n"+
					"⏱️ Response time: %.3fs",
				s.botName, target.Name, host, port, consecutive, reason, responseTime))
		}
		return
	}

	// Recovery fires only for targets that actually crossed the alert
	// threshold. A sub-threshold blip ending in success stays silent.
	if priorFailures >= threshold {
		s.queue.Enqueue(customer.ChatID, fmt.Sprintf(
			"⚠️ %s ⚠️\n"+
				"✅ RECOVERED: %s is UP\n\n"+
				"🎯 Target: %s:%d\n"+
				"⏱️ Response time: %.3fs",
			s.botName, target.Name, host, port, responseTime))
	}
}

// AddTarget validates and registers a monitored endpoint for a chat. Updating
// an existing name is allowed even at the quota limit; only new names count
// against it.
func (s *Service) AddTarget(chatID int64, name, host string, port int) (*models.Target, error) {
	name, err := s.validator.ValidateTargetName(name)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateHost(host); err != nil {
		return nil, err
	}
	if err := s.validator.ValidatePort(port); err != nil {
		return nil, err
	}

	customer, err := s.store.GetCustomerByChat(chatID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		customer, err = s.store.CreateCustomer(chatID, s.cfg.DefaultIntervalSeconds, s.cfg.FailureThreshold)
		if err != nil {
			return nil, err
		}
	}

	exists := false
	for _, t := range customer.Targets {
		if t.Name == name {
			exists = true
			break
		}
	}
	if !exists {
		count, err := s.store.CountCustomerTargets(customer.ID)
		if err != nil {
			return nil, err
		}
		if count >= int64(s.cfg.MaxTargetsPerUser) {
			return nil, fmt.Errorf("maximum %d targets allowed", s.cfg.MaxTargetsPerUser)
		}
	}

	return s.store.UpsertTarget(customer.ID, name, host, port)
}

// RemoveTarget deletes a target by name.
func (s *Service) RemoveTarget(chatID int64, name string) (bool, error) {
	customer, err := s.store.GetCustomerByChat(chatID)
	if err != nil {
		return false, err
	}
	if customer == nil {
		return false, nil
	}
	return s.store.RemoveTarget(customer.ID, name)
}

// SetTargetMode switches one target between active and maintenance mode.
func (s *Service) SetTargetMode(chatID int64, name string, enable bool) (bool, error) {
	customer, err := s.store.GetCustomerByChat(chatID)
	if err != nil {
		return false, err
	}
	if customer == nil {
		return false, nil
	}
	affected, err := s.store.SetTargetMode(customer.ID, name, enable)
	return affected > 0, err
}

// SetAllTargetsMode switches every target of a chat. Returns how many targets
// changed.
func (s *Service) SetAllTargetsMode(chatID int64, enable bool) (int64, error) {
	customer, err := s.store.GetCustomerByChat(chatID)
	if err != nil {
		return 0, err
	}
	if customer == nil {
		return 0, nil
	}
	return s.store.SetAllTargetsMode(customer.ID, enable)
}

// SetInterval updates the per-customer check interval after validation.
func (s *Service) SetInterval(chatID int64, seconds int) error {
	if err := s.validator.ValidateInterval(seconds); err != nil {
		return err
	}
	ok, err := s.store.SetCustomerInterval(chatID, seconds)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoCustomer
	}
	return nil
}

// CheckNow probes one target immediately and returns a formatted result. The
// probe does not touch the failure counter or history, it is a read-only
// diagnostic.
func (s *Service) CheckNow(ctx context.Context, chatID int64, name string) (string, error) {
	subscribed, err := s.store.IsSubscribed(chatID)
	if err != nil {
		return "", err
	}
	if !subscribed {
		return "", ErrNotSubscribed
	}

	customer, err := s.store.GetCustomerByChat(chatID)
	if err != nil {
		return "", err
	}
	if customer == nil {
		return "", ErrNoCustomer
	}

	var target *models.Target
	for i := range customer.Targets {
		if customer.Targets[i].Name == name {
			target = &customer.Targets[i]
			break
		}
	}
	if target == nil {
		return "", ErrTargetNotFound
	}

	host, port, err := s.store.DecryptTarget(target)
	if err != nil {
		return "", err
	}

	timeout := time.Duration(s.cfg.ConnectionTimeout * float64(time.Second))
	success, responseTime, reason := Check(ctx, host, port, timeout)

	if success {
		return fmt.Sprintf(
			"✅ %s is UP\n\n"+
				"🎯 Target: %s:%d\n"+
				"⏱️ Response time: %.3fs\n"+
				"📊 Status: Healthy",
			name, host, port, responseTime), nil
	}
	return fmt.Sprintf(
		"❌ %s is DOWN\n\n"+
			"🎯 Target: %s:%d\n"+
			"💥 Error: %s\n"+
			"⏱️ Response time: %.3fs",
		name, host, port, reason, responseTime), nil
}
