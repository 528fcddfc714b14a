package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/showsearch/showsearch/pkg/kafka"
	"github.com/showsearch/showsearch/pkg/metrics"
)

// Publisher ships batches of events. *kafka.Producer satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector records search events into a local Aggregator and, when a
// Publisher is configured, forwards them to Kafka in batches. Track never
// blocks the request path: events are dropped when the buffer is full or
// the collector is closed.
type Collector struct {
	aggregator    *Aggregator
	publisher     Publisher
	eventCh       chan SearchEvent
	batchSize     int
	flushInterval time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger
	done          chan struct{}

	// mu guards closed; senders hold it shared so Close can shut eventCh.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// NewCollector returns a collector. publisher and m may be nil.
func NewCollector(aggregator *Aggregator, publisher Publisher, cfg CollectorConfig, m *metrics.Metrics) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	return &Collector{
		aggregator:    aggregator,
		publisher:     publisher,
		eventCh:       make(chan SearchEvent, cfg.BufferSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		metrics:       m,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the publish loop. Without a publisher it only marks the
// collector as running so Close returns promptly.
func (c *Collector) Start(ctx context.Context) {
	if c.publisher == nil {
		close(c.done)
		return
	}
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

func (c *Collector) Track(event SearchEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.count("dropped", 1)
		c.logger.Debug("analytics event dropped (collector closed)", "query", event.Query)
		return
	}
	if c.aggregator != nil {
		c.aggregator.Record(event)
	}
	if c.publisher == nil {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.count("dropped", 1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the final flush. Later
// Track calls are dropped. Close is safe to call more than once.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.eventCh)
		c.mu.Unlock()
	})
	<-c.done
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := c.publisher.PublishBatch(ctx, batch); err != nil {
			c.count("failed", len(batch))
			c.logger.Error("analytics batch publish failed", "events", len(batch), "error", err)
		} else {
			c.count("published", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				flush(flushCtx)
				cancel()
				return
			}
			batch = append(batch, kafka.Event{Key: event.Query, Type: EventSearch, Value: event})
			if len(batch) >= c.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.drain(&batch)
			flush(flushCtx)
			cancel()
			return
		}
	}
}

func (c *Collector) drain(batch *[]kafka.Event) {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			*batch = append(*batch, kafka.Event{Key: event.Query, Type: EventSearch, Value: event})
		default:
			return
		}
	}
}

func (c *Collector) count(status string, n int) {
	if c.metrics != nil {
		c.metrics.AnalyticsEventsTotal.WithLabelValues(status).Add(float64(n))
	}
}
