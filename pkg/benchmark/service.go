package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/turlebp/SysAlertV2/pkg/config"
	"github.com/turlebp/SysAlertV2/pkg/db"
	"github.com/turlebp/SysAlertV2/pkg/log"
	"github.com/turlebp/SysAlertV2/pkg/models"
	"github.com/turlebp/SysAlertV2/pkg/queue"
	"github.com/turlebp/SysAlertV2/pkg/utils"
)

// maxFeedBytes caps how much of a benchmark feed is read.
const maxFeedBytes = 4 << 20

var (
	ErrNotSubscribed = errors.New("not subscribed")
	ErrNoTargets     = errors.New("no benchmark targets set")
	ErrNotInFeed     = errors.New("target not found in feed")
)

// Service polls benchmark score feeds and alerts when a tracked producer's
// score exceeds the configured threshold. Unlike the TCP monitor this is a
// stateless threshold check, there is no failure counter or recovery notion.
type Service struct {
	cfg       *config.BenchmarkConfig
	botName   string
	store     *db.Store
	queue     *queue.Manager
	logger    *log.Logger
	validator *utils.Validator
	client    *http.Client
}

// NewService creates the benchmark poller.
func NewService(cfg *config.BenchmarkConfig, botName string, store *db.Store, q *queue.Manager, logger *log.Logger) *Service {
	return &Service{
		cfg:       cfg,
		botName:   botName,
		store:     store,
		queue:     q,
		logger:    logger,
		validator: utils.NewValidator(0),
		client: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout * float64(time.Second)),
		},
	}
}

// Run executes the poll loop until the context is cancelled. Returns
// immediately when polling is disabled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}

	interval := time.Duration(s.cfg.PollIntervalSeconds) * time.Second
	s.logger.WithField("interval", interval.String()).Info("Benchmark poller started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Benchmark poller stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	subscriptions, err := s.store.ListSubscriptions()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list subscriptions")
		return
	}

	for _, chatID := range subscriptions {
		targets, err := s.store.ListBenchmarkTargets(chatID)
		if err != nil {
			s.logger.WithError(err).WithField("chat", utils.MaskChatID(chatID)).
				Error("Failed to list benchmark targets")
			continue
		}

		for _, target := range targets {
			value, err := s.Fetch(ctx, target.Name, target.Network)
			if err != nil {
				s.logger.WithError(err).
					WithField("bench", utils.SafeBenchRef(target.Name, string(target.Network))).
					Warn("Benchmark check failed")
				continue
			}
			if value > s.cfg.ThresholdSeconds {
				s.queue.Enqueue(chatID, s.alertMessage(target.Name, target.Network, value))
			}
		}
	}
}

// Fetch retrieves the current score for one producer from its network's feed.
func (s *Service) Fetch(ctx context.Context, targetName string, network models.Network) (float64, error) {
	url := s.cfg.URLForNetwork(string(network))
	if url == "" {
		return 0, fmt.Errorf("no URL configured for %s", network)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch benchmark: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return 0, fmt.Errorf("read benchmark feed: %w", err)
	}

	point, ok := ParseSeries(json.RawMessage(body), targetName)
	if !ok {
		return 0, ErrNotInFeed
	}
	return point.Value, nil
}

// AddTarget validates and registers a benchmark producer for a chat.
// Re-adding a known name only switches its network class, so the quota
// applies to new names only.
func (s *Service) AddTarget(chatID int64, name, network string) error {
	name, err := s.validator.ValidateTargetName(name)
	if err != nil {
		return err
	}
	network = strings.ToLower(strings.TrimSpace(network))
	if network == "" {
		network = string(models.NetworkMainnet)
	}
	if err := s.validator.ValidateNetwork(network); err != nil {
		return err
	}

	existing, err := s.store.ListBenchmarkTargets(chatID)
	if err != nil {
		return err
	}
	known := false
	for _, entry := range existing {
		if entry.Name == name {
			known = true
			break
		}
	}
	if !known && int64(len(existing)) >= int64(s.cfg.MaxTargetsPerUser) {
		return fmt.Errorf("maximum %d benchmark targets allowed", s.cfg.MaxTargetsPerUser)
	}

	return s.store.AddBenchmarkTarget(chatID, name, models.Network(network))
}

// RemoveTarget deletes a benchmark producer by name.
func (s *Service) RemoveTarget(chatID int64, name string) (bool, error) {
	return s.store.RemoveBenchmarkTarget(chatID, name)
}

// ListTargets returns the chat's benchmark producers.
func (s *Service) ListTargets(chatID int64) ([]db.BenchmarkEntry, error) {
	return s.store.ListBenchmarkTargets(chatID)
}

// CheckAll fetches the current score of every benchmark target of a chat and
// returns a formatted report.
func (s *Service) CheckAll(ctx context.Context, chatID int64) (string, error) {
	subscribed, err := s.store.IsSubscribed(chatID)
	if err != nil {
		return "", err
	}
	if !subscribed {
		return "", ErrNotSubscribed
	}

	targets, err := s.store.ListBenchmarkTargets(chatID)
	if err != nil {
		return "", err
	}
	if len(targets) == 0 {
		return "", ErrNoTargets
	}

	var b strings.Builder
	b.WriteString("📊 CPU Benchmark Results\n\n")

	for _, target := range targets {
		icon := networkIcon(target.Network)
		value, err := s.Fetch(ctx, target.Name, target.Network)
		if err != nil {
			fmt.Fprintf(&b, "❌ %s\n   %s %s | Error: %s\n",
				target.Name, icon, strings.ToUpper(string(target.Network)), err.Error())
			continue
		}

		status := "✅ OK"
		mark := "✅"
		if value > s.cfg.ThresholdSeconds {
			status = "❌ SLOW"
			mark = "⚠️"
		}
		fmt.Fprintf(&b, "%s %s\n   %s %s | Score: %.3fs | %s\n",
			mark, target.Name, icon, strings.ToUpper(string(target.Network)), value, status)
	}

	fmt.Fprintf(&b, "\n🚨 Threshold: %gs", s.cfg.ThresholdSeconds)
	return b.String(), nil
}

func (s *Service) alertMessage(name string, network models.Network, value float64) string {
	return fmt.Sprintf(
		"⚠️ %s ⚠️\n"+
			"📊 CPU Benchmark Alert\n\n"+
			"🎯 Target: %s\n"+
			"%s Network: %s\n"+
			"📊 Score: %.3fs\n"+
			"🚨 Threshold: %gs\n"+
			"❌ Status: SLOW",
		s.botName, name, networkIcon(network), strings.ToUpper(string(network)),
		value, s.cfg.ThresholdSeconds)
}

func networkIcon(network models.Network) string {
	if network == models.NetworkTestnet {
		return "🧪"
	}
	return "🌐"
}
