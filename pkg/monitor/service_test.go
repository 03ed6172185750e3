package monitor

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turlebp/SysAlertV2/pkg/config"
	"github.com/turlebp/SysAlertV2/pkg/crypto"
	"github.com/turlebp/SysAlertV2/pkg/db"
	"github.com/turlebp/SysAlertV2/pkg/log"
	"github.com/turlebp/SysAlertV2/pkg/models"
	"github.com/turlebp/SysAlertV2/pkg/queue"
)

type capture struct {
	mu       sync.Mutex
	messages []string
}

func (c *capture) send(ctx context.Context, chatID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, text)
	return nil
}

func (c *capture) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

func newTestService(t *testing.T, threshold int) (*Service, *db.Store, *capture) {
	t.Helper()

	logger, err := log.New(&config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"})
	require.NoError(t, err)

	database, err := db.New(&config.DatabaseConfig{
		Driver:          "sqlite",
		Database:        filepath.Join(t.TempDir(), "monitor.db"),
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 300,
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	raw := make([]byte, 32)
	_, err = rand.Read(raw)
	require.NoError(t, err)
	cm, err := crypto.New(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)

	store := db.NewStore(database, cm, logger)

	col := &capture{}
	q := queue.NewManager(&config.QueueConfig{
		WorkerCount: 1,
		Capacity:    32,
		MaxAttempts: 3,
	}, col.send, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	q.Start(ctx)
	t.Cleanup(q.Stop)

	service := NewService(&config.MonitorConfig{
		MaxConcurrentChecks:    4,
		MinIntervalSeconds:     1,
		DefaultIntervalSeconds: 60,
		ConnectionTimeout:      1.0,
		FailureThreshold:       threshold,
		MaxTargetsPerUser:      3,
	}, "SysAlert", store, q, logger)

	return service, store, col
}

// closedPort returns a loopback port that nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func probeOnce(t *testing.T, s *Service, store *db.Store, chatID int64, name string) {
	t.Helper()
	customer, err := store.GetCustomerByChat(chatID)
	require.NoError(t, err)
	require.NotNil(t, customer)

	for i := range customer.Targets {
		if customer.Targets[i].Name == name {
			s.probe(context.Background(), customer, &customer.Targets[i])
			return
		}
	}
	t.Fatalf("target %s not found", name)
}

func waitForMessages(t *testing.T, col *capture, want int) []string {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(col.snapshot()) >= want
	}, 5*time.Second, 10*time.Millisecond)
	return col.snapshot()
}

func TestAlertHysteresis(t *testing.T) {
	s, store, col := newTestService(t, 3)

	require.NoError(t, store.AddSubscription(100))
	_, err := store.CreateCustomer(100, 60, 3)
	require.NoError(t, err)

	port := closedPort(t)
	_, err = s.AddTarget(100, "myserver", "127.0.0.1", port)
	require.NoError(t, err)

	// Three consecutive failures: one DOWN alert, fired on the third.
	for i := 0; i < 3; i++ {
		probeOnce(t, s, store, 100, "myserver")
	}
	messages := waitForMessages(t, col, 1)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "DOWN")
	assert.Contains(t, messages[0], "myserver")
	assert.Contains(t, messages[0], "Consecutive failures: 3")

	// Bring the endpoint up and probe again: exactly one RECOVERED alert.
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer ln.Close()

	probeOnce(t, s, store, 100, "myserver")
	messages = waitForMessages(t, col, 2)
	require.Len(t, messages, 2)
	assert.Contains(t, messages[1], "RECOVERED")
}

func TestSubThresholdBlipStaysSilent(t *testing.T) {
	s, store, col := newTestService(t, 3)

	require.NoError(t, store.AddSubscription(100))
	_, err := store.CreateCustomer(100, 60, 3)
	require.NoError(t, err)

	port := closedPort(t)
	_, err = s.AddTarget(100, "myserver", "127.0.0.1", port)
	require.NoError(t, err)

	probeOnce(t, s, store, 100, "myserver")
	probeOnce(t, s, store, 100, "myserver")

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer ln.Close()
	probeOnce(t, s, store, 100, "myserver")

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, col.snapshot())

	// All three probes still produced history rows.
	rows, err := store.RecentHistory(100, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestEndToEndClosedPortAlert(t *testing.T) {
	s, store, col := newTestService(t, 1)

	require.NoError(t, store.AddSubscription(100))
	_, err := store.CreateCustomer(100, 60, 1)
	require.NoError(t, err)

	port := closedPort(t)
	_, err = s.AddTarget(100, "edge-node", "127.0.0.1", port)
	require.NoError(t, err)

	s.tick(context.Background())

	messages := waitForMessages(t, col, 1)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "DOWN")
	assert.Contains(t, messages[0], "edge-node")

	require.Eventually(t, func() bool {
		rows, err := store.RecentHistory(100, 10)
		return err == nil && len(rows) == 1
	}, 5*time.Second, 10*time.Millisecond)

	rows, err := store.RecentHistory(100, 10)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailure, rows[0].Status)
	assert.NotEmpty(t, rows[0].Error)
}

func TestAddTargetQuota(t *testing.T) {
	s, store, _ := newTestService(t, 3)

	require.NoError(t, store.AddSubscription(100))

	for i := 0; i < 3; i++ {
		_, err := s.AddTarget(100, fmt.Sprintf("srv-%d", i), "127.0.0.1", 8000+i)
		require.NoError(t, err)
	}

	_, err := s.AddTarget(100, "one-too-many", "127.0.0.1", 9000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum")

	// Updating an existing name at the limit is allowed.
	_, err = s.AddTarget(100, "srv-0", "127.0.0.1", 9001)
	assert.NoError(t, err)
}

func TestAddTargetValidation(t *testing.T) {
	s, _, _ := newTestService(t, 3)

	_, err := s.AddTarget(100, "bad name!", "127.0.0.1", 80)
	assert.Error(t, err)

	_, err = s.AddTarget(100, "ok", "not a host", 80)
	assert.Error(t, err)

	_, err = s.AddTarget(100, "ok", "127.0.0.1", 99999)
	assert.Error(t, err)
}

func TestSetInterval(t *testing.T) {
	s, store, _ := newTestService(t, 3)

	assert.ErrorIs(t, s.SetInterval(100, 60), ErrNoCustomer)

	_, err := store.CreateCustomer(100, 60, 3)
	require.NoError(t, err)

	assert.Error(t, s.SetInterval(100, 0))
	assert.NoError(t, s.SetInterval(100, 45))

	customer, err := store.GetCustomerByChat(100)
	require.NoError(t, err)
	assert.Equal(t, 45, customer.IntervalSeconds)
}

func TestCheckNow(t *testing.T) {
	s, store, _ := newTestService(t, 3)

	_, err := s.CheckNow(context.Background(), 100, "myserver")
	assert.ErrorIs(t, err, ErrNotSubscribed)

	require.NoError(t, store.AddSubscription(100))
	_, err = s.CheckNow(context.Background(), 100, "myserver")
	assert.ErrorIs(t, err, ErrNoCustomer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	_, err = s.AddTarget(100, "myserver", "127.0.0.1", port)
	require.NoError(t, err)

	_, err = s.CheckNow(context.Background(), 100, "nosuch")
	assert.ErrorIs(t, err, ErrTargetNotFound)

	result, err := s.CheckNow(context.Background(), 100, "myserver")
	require.NoError(t, err)
	assert.True(t, strings.Contains(result, "is UP"), result)

	// Manual checks leave the failure counter and history untouched.
	rows, err := store.RecentHistory(100, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
