package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/centinela-gamma/centinela/engine/collect"
	"github.com/centinela-gamma/centinela/engine/docstore"
	"github.com/centinela-gamma/centinela/engine/domain"
	"github.com/centinela-gamma/centinela/pkg/fn"
	"github.com/centinela-gamma/centinela/pkg/metrics"
)

// Batch defaults.
const (
	DefaultBatchSize     = 500
	DefaultFlushInterval = 30 * time.Second
)

// Sink persists a collection document.
type Sink interface {
	SaveCollection(c domain.Collection) (docstore.FileInfo, error)
}

// BatchConfig configures a Batcher.
type BatchConfig struct {
	Size    int
	Collect collect.Config
	Retry   fn.RetryOpts
}

// Batcher accumulates scored posts and writes them to a Sink as one
// collection per batch. IDs already seen by the batcher are rejected with
// domain.ErrDuplicatePost.
type Batcher struct {
	cfg     BatchConfig
	sink    Sink
	metrics *metrics.Pipeline
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	pending []domain.ScoredPost
	started time.Time
	seen    map[string]bool
}

// NewBatcher creates a Batcher writing to sink.
func NewBatcher(cfg BatchConfig, sink Sink, m *metrics.Pipeline, logger *slog.Logger) *Batcher {
	if cfg.Size <= 0 {
		cfg.Size = DefaultBatchSize
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = fn.RetryOpts{MaxAttempts: 3, InitialWait: 100 * time.Millisecond, MaxWait: 2 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{
		cfg:     cfg,
		sink:    sink,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		seen:    make(map[string]bool),
	}
}

// Add queues p and flushes when the batch is full.
func (b *Batcher) Add(ctx context.Context, p domain.ScoredPost) error {
	b.mu.Lock()
	if b.seen[p.ID] {
		b.mu.Unlock()
		return domain.NewValidationError("id", p.ID, domain.ErrDuplicatePost)
	}
	b.seen[p.ID] = true
	if len(b.pending) == 0 {
		b.started = b.now()
	}
	b.pending = append(b.pending, p)
	full := len(b.pending) >= b.cfg.Size
	b.mu.Unlock()

	if full {
		if err := b.Flush(ctx); err != nil {
			b.logger.Error("ingest: flush failed", "error", err)
		}
	}
	return nil
}

// Pending reports the number of queued posts.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush writes the queued posts. On failure they stay queued for the next
// flush.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return nil
	}
	posts := b.pending
	started := b.started
	b.pending = nil
	b.mu.Unlock()

	coll := domain.Collection{
		Metadata: collect.BuildMetadata(posts, b.cfg.Collect, collect.Run{
			ID:    uuid.NewString(),
			Start: started,
			End:   b.now(),
		}),
		Posts: posts,
	}
	res := fn.Retry(ctx, b.cfg.Retry, func(context.Context) fn.Result[docstore.FileInfo] {
		info, err := b.sink.SaveCollection(coll)
		return fn.FromPair(info, err)
	})
	info, err := res.Unwrap()
	if err != nil {
		b.mu.Lock()
		b.pending = append(posts, b.pending...)
		b.started = started
		b.mu.Unlock()
		return fmt.Errorf("save batch of %d: %w", len(posts), err)
	}
	if b.metrics != nil {
		b.metrics.BatchesFlushed.Inc()
		b.metrics.DocumentsWritten.WithLabelValues(docstore.KindCollection).Inc()
	}
	b.logger.Info("ingest: batch written", "posts", len(posts), "path", info.Path, "run_id", coll.Metadata.RunID)
	return nil
}

// Run flushes every interval until ctx is done, then flushes once more.
func (b *Batcher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := b.Flush(context.WithoutCancel(ctx)); err != nil {
				b.logger.Error("ingest: final flush failed", "error", err)
			}
			return
		case <-ticker.C:
			if err := b.Flush(ctx); err != nil {
				b.logger.Error("ingest: flush failed", "error", err)
			}
		}
	}
}
