package benchmark

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"path/filepath"
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

func newTestService(t *testing.T, mainnetURL string) (*Service, *db.Store, *capture) {
	t.Helper()

	logger, err := log.New(&config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"})
	require.NoError(t, err)

	database, err := db.New(&config.DatabaseConfig{
		Driver:          "sqlite",
		Database:        filepath.Join(t.TempDir(), "bench.db"),
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

	service := NewService(&config.BenchmarkConfig{
		Enabled:             true,
		MainnetURL:          mainnetURL,
		ThresholdSeconds:    0.35,
		PollIntervalSeconds: 300,
		RequestTimeout:      2,
		MaxTargetsPerUser:   2,
	}, "SysAlert", store, q, logger)

	return service, store, col
}

func benchmarkFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchScore(t *testing.T) {
	srv := benchmarkFeed(t, `{"turtlebp": [[1700000000, 0.31], [1700000600, 0.42]]}`)
	s, _, _ := newTestService(t, srv.URL)

	value, err := s.Fetch(context.Background(), "turtlebp", models.NetworkMainnet)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, value, 1e-9)

	_, err = s.Fetch(context.Background(), "unknown", models.NetworkMainnet)
	assert.ErrorIs(t, err, ErrNotInFeed)

	_, err = s.Fetch(context.Background(), "turtlebp", models.NetworkTestnet)
	assert.Error(t, err) // no testnet URL configured
}

func TestFetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	s, _, _ := newTestService(t, srv.URL)

	_, err := s.Fetch(context.Background(), "turtlebp", models.NetworkMainnet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestTickAlertsAboveThreshold(t *testing.T) {
	srv := benchmarkFeed(t, `{
		"slowbp": [[1700000000, 0.90]],
		"fastbp": [[1700000000, 0.10]]
	}`)
	s, store, col := newTestService(t, srv.URL)

	require.NoError(t, store.AddSubscription(100))
	require.NoError(t, s.AddTarget(100, "slowbp", "mainnet"))
	require.NoError(t, s.AddTarget(100, "fastbp", "mainnet"))

	s.tick(context.Background())

	require.Eventually(t, func() bool {
		return len(col.snapshot()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	messages := col.snapshot()
	assert.Contains(t, messages[0], "slowbp")
	assert.Contains(t, messages[0], "SLOW")
	assert.NotContains(t, messages[0], "fastbp")
}

func TestAddTargetQuota(t *testing.T) {
	s, _, _ := newTestService(t, "http://unused.invalid")

	require.NoError(t, s.AddTarget(100, "one", "mainnet"))
	require.NoError(t, s.AddTarget(100, "two", "testnet"))

	err := s.AddTarget(100, "three", "mainnet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum")

	// Switching the network of a known name is allowed at the limit.
	assert.NoError(t, s.AddTarget(100, "one", "testnet"))

	entries, err := s.ListTargets(100)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestAddTargetValidation(t *testing.T) {
	s, _, _ := newTestService(t, "http://unused.invalid")

	assert.Error(t, s.AddTarget(100, "", "mainnet"))
	assert.Error(t, s.AddTarget(100, "ok", "devnet"))

	// Empty network defaults to mainnet.
	require.NoError(t, s.AddTarget(100, "defaulted", ""))
	entries, err := s.ListTargets(100)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.NetworkMainnet, entries[0].Network)
}

func TestCheckAllReport(t *testing.T) {
	srv := benchmarkFeed(t, `{
		"slowbp": [[1700000000, 0.90]],
		"fastbp": [[1700000000, 0.10]]
	}`)
	s, store, _ := newTestService(t, srv.URL)

	_, err := s.CheckAll(context.Background(), 100)
	assert.ErrorIs(t, err, ErrNotSubscribed)

	require.NoError(t, store.AddSubscription(100))
	_, err = s.CheckAll(context.Background(), 100)
	assert.ErrorIs(t, err, ErrNoTargets)

	require.NoError(t, s.AddTarget(100, "slowbp", "mainnet"))
	require.NoError(t, s.AddTarget(100, "fastbp", "mainnet"))

	report, err := s.CheckAll(context.Background(), 100)
	require.NoError(t, err)
	assert.Contains(t, report, "slowbp")
	assert.Contains(t, report, "SLOW")
	assert.Contains(t, report, "fastbp")
	assert.Contains(t, report, "OK")
	assert.Contains(t, report, "Threshold: 0.35s")
}
