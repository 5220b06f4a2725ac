// Package notifier provides best-effort, buffered delivery of push messages.
package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khayami66/study-support-bot/internal/metrics"
	"github.com/khayami66/study-support-bot/internal/model"
)

const pushTimeout = 10 * time.Second

// Pusher sends one push message. retryKey is the same for every attempt of one message
// so the platform can drop duplicates.
type Pusher interface {
	Push(ctx context.Context, to, text, retryKey string) error
}

// Notifier defines the interface for queueing pushes and controlling lifecycle.
type Notifier interface {
	Add(p model.Push)
	Start()
	Stop()
}

// Config controls batching and retries.
type Config struct {
	BatchSize  int
	Interval   time.Duration
	Retries    int
	RetryDelay time.Duration
}

// notifier holds queued pushes and manages periodic flushing.
type notifier struct {
	log     *zap.Logger
	cfg     Config
	pusher  Pusher
	metrics *metrics.Metrics
	queue   []model.Push
	mu      sync.Mutex
	ticker  *time.Ticker
	quit    chan struct{}
	once    sync.Once
}

// New initializes a Notifier. Pushes are delivered once BatchSize are queued or on every Interval tick.
func New(cfg Config, pusher Pusher, logger *zap.Logger, m *metrics.Metrics) Notifier {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &notifier{
		log:     logger,
		cfg:     cfg,
		pusher:  pusher,
		metrics: m,
		quit:    make(chan struct{}),
		ticker:  time.NewTicker(cfg.Interval),
	}
}

// Add queues a push. It never blocks on delivery.
func (n *notifier) Add(p model.Push) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queue = append(n.queue, p)
	if len(n.queue) >= n.cfg.BatchSize {
		go n.flush()
	}
}

// Start runs the periodic flush ticker until Stop is called.
func (n *notifier) Start() {
	for {
		select {
		case <-n.ticker.C:
			n.flush()
		case <-n.quit:
			n.flush()
			n.ticker.Stop()
			return
		}
	}
}

// Stop signals the notifier to flush and shut down.
func (n *notifier) Stop() {
	n.once.Do(func() { close(n.quit) })
}

func (n *notifier) flush() {
	n.mu.Lock()
	if len(n.queue) == 0 {
		n.mu.Unlock()
		return
	}
	batch := n.queue
	n.queue = nil
	n.mu.Unlock()

	for _, p := range batch {
		n.deliver(p)
	}
}

func (n *notifier) deliver(p model.Push) {
	retryKey := uuid.NewString()
	start := time.Now()

	var err error
	for i := 1; i <= n.cfg.Retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		err = n.pusher.Push(ctx, p.To, p.Text, retryKey)
		cancel()
		if err == nil {
			break
		}
		n.log.Warn("push failed", zap.String("to", p.To), zap.Int("attempt", i), zap.Error(err))
		if i < n.cfg.Retries {
			time.Sleep(n.cfg.RetryDelay)
		}
	}
	n.metrics.Push(err)

	if err != nil {
		n.log.Error("push dropped after retries",
			zap.String("to", p.To),
			zap.Int("attempts", n.cfg.Retries),
			zap.Error(err))
		return
	}
	n.log.Info("push delivered",
		zap.String("to", p.To),
		zap.Duration("duration", time.Since(start)))
}
