package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/centinela-gamma/centinela/engine/collect"
	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/docstore"
	"github.com/centinela-gamma/centinela/engine/domain"
	"github.com/centinela-gamma/centinela/engine/scoring"
	"github.com/centinela-gamma/centinela/pkg/fn"
	"github.com/centinela-gamma/centinela/pkg/metrics"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type memSink struct {
	mu    sync.Mutex
	colls []domain.Collection
	fail  int
}

func (s *memSink) SaveCollection(c domain.Collection) (docstore.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return docstore.FileInfo{}, errors.New("disk full")
	}
	s.colls = append(s.colls, c)
	return docstore.FileInfo{Path: "mem"}, nil
}

func (s *memSink) saved() []domain.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Collection(nil), s.colls...)
}

func testScorer() *scoring.Scorer { return scoring.MustNew(config.Default().Scoring) }

func testBatcher(size int, sink Sink, m *metrics.Pipeline) *Batcher {
	return NewBatcher(BatchConfig{
		Size:    size,
		Collect: collect.Config{Queries: []string{"gaza"}},
		Retry:   fn.RetryOpts{MaxAttempts: 1},
	}, sink, m, quiet())
}

func scored(id, text string) domain.ScoredPost {
	return testScorer().ScorePost(domain.Post{ID: id, Text: text, QuerySource: "gaza"})
}

func TestValidateStage(t *testing.T) {
	ctx := context.Background()
	p, err := Validate(ctx, domain.Post{ID: "  1 ", Text: " airstrike "}).Unwrap()
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if p.ID != "1" {
		t.Errorf("id not normalized: %q", p.ID)
	}

	_, err = Validate(ctx, domain.Post{Text: "no id"}).Unwrap()
	if !errors.Is(err, domain.ErrMissingID) {
		t.Errorf("err = %v, want ErrMissingID", err)
	}
	_, err = Validate(ctx, domain.Post{ID: "2", Metrics: domain.Engagement{RetweetCount: -3}}).Unwrap()
	if !errors.Is(err, domain.ErrNegativeEngagement) {
		t.Errorf("err = %v, want ErrNegativeEngagement", err)
	}
}

func TestPipeline_ScoresValidPost(t *testing.T) {
	pipe := NewPipeline(testScorer(), quiet())
	sp, err := pipe(context.Background(), domain.Post{ID: "1", Text: "Israeli airstrike kills 12 civilians in Gaza"}).Unwrap()
	if err != nil {
		t.Fatal(err)
	}
	if sp.RelevanceScore != 45 || !sp.IsCritical {
		t.Errorf("scored = %+v", sp)
	}
	if res := pipe(context.Background(), domain.Post{Text: "x"}); !res.IsErr() {
		t.Error("expected error for post without id")
	}
}

func TestBatcher_FlushesWhenFull(t *testing.T) {
	sink := &memSink{}
	m := metrics.NewPipeline(prometheus.NewRegistry())
	b := testBatcher(2, sink, m)
	ctx := context.Background()

	if err := b.Add(ctx, scored("1", "airstrike")); err != nil {
		t.Fatal(err)
	}
	if len(sink.saved()) != 0 || b.Pending() != 1 {
		t.Fatalf("flushed early: saved=%d pending=%d", len(sink.saved()), b.Pending())
	}
	if err := b.Add(ctx, scored("2", "calm")); err != nil {
		t.Fatal(err)
	}
	colls := sink.saved()
	if len(colls) != 1 || len(colls[0].Posts) != 2 || b.Pending() != 0 {
		t.Fatalf("saved=%d pending=%d", len(colls), b.Pending())
	}
	meta := colls[0].Metadata
	if meta.ExtractionInfo.TotalTweets != 2 || meta.Statistics.CriticalTweets != 1 || meta.RunID == "" {
		t.Errorf("metadata = %+v", meta)
	}
	if got := meta.QueryBreakdown["gaza"].TweetCount; got != 2 {
		t.Errorf("gaza breakdown = %d", got)
	}
	if got := testutil.ToFloat64(m.BatchesFlushed); got != 1 {
		t.Errorf("batches flushed = %v", got)
	}
}

func TestBatcher_RejectsDuplicates(t *testing.T) {
	b := testBatcher(10, &memSink{}, nil)
	ctx := context.Background()
	if err := b.Add(ctx, scored("1", "a")); err != nil {
		t.Fatal(err)
	}
	err := b.Add(ctx, scored("1", "b"))
	if !errors.Is(err, domain.ErrDuplicatePost) {
		t.Fatalf("err = %v, want ErrDuplicatePost", err)
	}
	// Still a duplicate after the batch is written.
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Add(ctx, scored("1", "c")); !errors.Is(err, domain.ErrDuplicatePost) {
		t.Fatalf("err = %v after flush", err)
	}
}

func TestBatcher_FailedFlushKeepsPosts(t *testing.T) {
	sink := &memSink{fail: 1}
	b := testBatcher(10, sink, nil)
	ctx := context.Background()
	b.Add(ctx, scored("1", "a"))

	if err := b.Flush(ctx); err == nil {
		t.Fatal("expected flush error")
	}
	if b.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", b.Pending())
	}
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if len(sink.saved()) != 1 || b.Pending() != 0 {
		t.Fatalf("saved=%d pending=%d", len(sink.saved()), b.Pending())
	}
}

func TestBatcher_RunFlushesOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &memSink{}
	b := testBatcher(100, sink, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx, time.Hour)
		close(done)
	}()

	b.Add(context.Background(), scored("1", "a"))
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if len(sink.saved()) != 1 {
		t.Fatalf("saved = %d, want final flush", len(sink.saved()))
	}
}

func TestConsumerHandle_AcceptsAndDedupes(t *testing.T) {
	sink := &memSink{}
	m := metrics.NewPipeline(prometheus.NewRegistry())
	c := NewConsumer(nil, Deps{
		Scorer:  testScorer(),
		Batcher: testBatcher(10, sink, m),
		Metrics: m,
		Logger:  quiet(),
	})
	ctx := context.Background()
	c.Handle(ctx, domain.Post{ID: "1", Text: "airstrike"})
	c.Handle(ctx, domain.Post{ID: "1", Text: "airstrike"})

	if got := testutil.ToFloat64(m.Messages.WithLabelValues(OutcomeAccepted)); got != 1 {
		t.Errorf("accepted = %v", got)
	}
	if got := testutil.ToFloat64(m.Messages.WithLabelValues(OutcomeDuplicate)); got != 1 {
		t.Errorf("duplicates = %v", got)
	}
	if got := testutil.ToFloat64(m.PostsCritical); got != 1 {
		t.Errorf("critical = %v", got)
	}
}
