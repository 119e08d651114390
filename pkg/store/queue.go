package store

import (
	"context"
	"sync"
	"time"

	"github.com/smppware/hlrgate/internal/logger"
	"github.com/smppware/hlrgate/pkg/hlr"
	"github.com/smppware/hlrgate/pkg/metrics"
)

// AppendQueue decouples the submit path from database latency: Enqueue
// never blocks, and a small worker pool drains the queue into the store.
// When the queue is full the row is dropped and counted. Losing analytics
// rows under pressure is acceptable; stalling SMPP traffic is not.
type AppendQueue struct {
	store   *Store
	queue   chan hlr.LookupEvent
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// QueueConfig sizes the append queue.
type QueueConfig struct {
	// Depth is the queue capacity.
	Depth int `mapstructure:"depth" validate:"min=0"`

	// Workers is the number of drain goroutines.
	Workers int `mapstructure:"workers" validate:"min=0"`

	// InsertTimeout bounds each database insert.
	InsertTimeout time.Duration `mapstructure:"insert_timeout" validate:"min=0"`
}

// NewAppendQueue starts the workers. Close must be called to drain and
// stop them.
func NewAppendQueue(store *Store, cfg QueueConfig) *AppendQueue {
	if cfg.Depth <= 0 {
		cfg.Depth = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.InsertTimeout <= 0 {
		cfg.InsertTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &AppendQueue{
		store:   store,
		queue:   make(chan hlr.LookupEvent, cfg.Depth),
		ctx:     ctx,
		cancel:  cancel,
		timeout: cfg.InsertTimeout,
	}

	q.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go q.worker()
	}
	return q
}

// Enqueue hands a lookup event to the workers without blocking. After
// Close the event is dropped and counted: submit handlers force-closed
// during shutdown may still be resolving while the queue tears down, and
// a send on the closed channel would panic the process.
func (q *AppendQueue) Enqueue(ev hlr.LookupEvent) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.StoreAppendsDropped.Inc()
		logger.Warn("append queue closed, dropping lookup row",
			logger.KeyMSISDN, ev.MSISDN)
		return
	}

	select {
	case q.queue <- ev:
	default:
		metrics.StoreAppendsDropped.Inc()
		logger.Warn("append queue full, dropping lookup row",
			logger.KeyMSISDN, ev.MSISDN)
	}
}

func (q *AppendQueue) worker() {
	defer q.wg.Done()
	for ev := range q.queue {
		ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
		if err := q.store.AppendLookup(ctx, ev); err != nil {
			logger.Error("failed to persist lookup",
				logger.KeyMSISDN, ev.MSISDN, "error", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued rows to be written.
// Inserts still in flight keep their per-insert timeout. Safe to call
// more than once; events enqueued afterwards are dropped.
func (q *AppendQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.queue)
	q.mu.Unlock()

	q.wg.Wait()
	q.cancel()
}
