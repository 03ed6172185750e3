package queue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/turlebp/SysAlertV2/pkg/config"
	"github.com/turlebp/SysAlertV2/pkg/log"
	"github.com/turlebp/SysAlertV2/pkg/utils"
)

// SendFunc delivers one message to a chat. Implementations must be safe for
// concurrent use.
type SendFunc func(ctx context.Context, chatID int64, text string) error

// Item is one pending delivery.
type Item struct {
	ID       string
	ChatID   int64
	Text     string
	Attempts int
}

// Stats is a point-in-time snapshot of delivery counters.
type Stats struct {
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
	Depth   int    `json:"depth"`
}

// Manager owns the outbound delivery pipeline: a bounded buffer drained by a
// fixed pool of workers, with per-chat rate limiting and exponential backoff
// on transient failures.
type Manager struct {
	cfg    *config.QueueConfig
	send   SendFunc
	logger *log.Logger

	items  chan *Item
	stopCh chan struct{}
	wg     sync.WaitGroup

	// nextSlot maps a chat to the earliest time the next message to it may
	// leave. Guarded by mu so two workers cannot claim the same slot.
	mu       sync.Mutex
	nextSlot map[int64]time.Time

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewManager creates a delivery queue. Start must be called before Enqueue
// has any effect.
func NewManager(cfg *config.QueueConfig, send SendFunc, logger *log.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		send:     send,
		logger:   logger,
		items:    make(chan *Item, cfg.Capacity),
		stopCh:   make(chan struct{}),
		nextSlot: make(map[int64]time.Time),
	}
}

// Start launches the worker pool. The workers run until Stop is called or the
// context is cancelled.
func (m *Manager) Start(ctx context.Context) {
	for i := 0; i < m.cfg.WorkerCount; i++ {
		m.wg.Add(1)
		go m.worker(ctx, i)
	}
	m.logger.WithField("workers", m.cfg.WorkerCount).Info("Delivery queue started")
}

// Stop signals the workers and waits for in-flight deliveries to settle.
func (m *Manager) Stop() {
	close(m.stopCh)
	m.wg.Wait()
	m.logger.Info("Delivery queue stopped")
}

// Enqueue accepts a message for delivery. It never blocks: when the buffer is
// full the message is dropped and counted, load on the queue must not stall
// the monitor loop.
func (m *Manager) Enqueue(chatID int64, text string) bool {
	item := &Item{
		ID:     uuid.New().String(),
		ChatID: chatID,
		Text:   text,
	}

	select {
	case m.items <- item:
		return true
	default:
		m.dropped.Add(1)
		m.logger.WithField("chat", utils.MaskChatID(chatID)).Warn("Queue full, message dropped")
		return false
	}
}

// Snapshot returns the current delivery counters and queue depth.
func (m *Manager) Snapshot() Stats {
	return Stats{
		Sent:    m.sent.Load(),
		Failed:  m.failed.Load(),
		Dropped: m.dropped.Load(),
		Depth:   len(m.items),
	}
}

// Depth returns the number of items waiting in the buffer.
func (m *Manager) Depth() int {
	return len(m.items)
}

func (m *Manager) worker(ctx context.Context, id int) {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case item := <-m.items:
			m.deliver(ctx, item)
		}
	}
}

func (m *Manager) deliver(ctx context.Context, item *Item) {
	chatRef := utils.MaskChatID(item.ChatID)

	for {
		if !m.waitForSlot(ctx, item.ChatID) {
			return
		}

		item.Attempts++
		err := m.send(ctx, item.ChatID, item.Text)
		if err == nil {
			m.sent.Add(1)
			m.logger.LogQueue(item.ID, chatRef, "sent", true, item.Attempts)
			return
		}

		if item.Attempts >= m.cfg.MaxAttempts {
			m.failed.Add(1)
			m.dropped.Add(1)
			m.logger.WithFields(log.Fields{
				"item_id":  item.ID,
				"chat":     chatRef,
				"attempts": item.Attempts,
				"error":    err.Error(),
			}).Error("Message dropped after max attempts")
			return
		}

		m.failed.Add(1)
		m.logger.LogQueue(item.ID, chatRef, "retry", false, item.Attempts)

		if !m.sleep(ctx, backoff(item.Attempts)) {
			return
		}
	}
}

// waitForSlot reserves the next send slot for a chat and sleeps until it
// arrives. Reserving under the lock before sleeping keeps messages to the
// same chat spaced even when several workers hold one each.
func (m *Manager) waitForSlot(ctx context.Context, chatID int64) bool {
	spacing := time.Duration(m.cfg.PerChatRateSeconds * float64(time.Second))

	m.mu.Lock()
	now := time.Now()
	slot := m.nextSlot[chatID]
	if slot.Before(now) {
		slot = now
	}
	m.nextSlot[chatID] = slot.Add(spacing)
	m.mu.Unlock()

	return m.sleep(ctx, time.Until(slot))
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-m.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

// backoff returns the delay before retry n (1-based): exponential with a
// small jitter, capped at one minute.
func backoff(attempts int) time.Duration {
	base := time.Duration(1<<uint(attempts-1)) * time.Second
	if base > time.Minute {
		base = time.Minute
	}
	jitter := time.Duration(rand.Float64() * 0.5 * float64(time.Second))
	d := base + jitter
	if d > time.Minute {
		d = time.Minute
	}
	return d
}

// String implements fmt.Stringer for debug output.
func (s Stats) String() string {
	return fmt.Sprintf("sent=%d failed=%d dropped=%d depth=%d", s.Sent, s.Failed, s.Dropped, s.Depth)
}
