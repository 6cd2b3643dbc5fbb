// Package ingest consumes raw posts from NATS, validates and scores them,
// and writes them out as collection documents in batches.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/centinela-gamma/centinela/engine/domain"
	"github.com/centinela-gamma/centinela/engine/scoring"
	"github.com/centinela-gamma/centinela/pkg/fn"
	"github.com/centinela-gamma/centinela/pkg/metrics"
	"github.com/centinela-gamma/centinela/pkg/natsutil"
)

const (
	// RawSubject carries unscored posts, one per message.
	RawSubject = "centinela.posts.raw"
	// DLQSubject receives posts that failed validation or decoding.
	DLQSubject = "centinela.posts.dlq"
	// QueueGroup shares RawSubject between ingest replicas.
	QueueGroup = "centinela-ingest"
)

// Message outcomes recorded in metrics.
const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomeMalformed = "malformed"
)

// DeadLetter is published to DLQSubject for every rejected message.
type DeadLetter struct {
	Subject string       `json:"subject"`
	Error   string       `json:"error"`
	Post    *domain.Post `json:"post,omitempty"`
	Raw     string       `json:"raw,omitempty"`
	At      string       `json:"at"`
}

// Validate normalizes a post and checks it via domain validation.
var Validate fn.Stage[domain.Post, domain.Post] = func(_ context.Context, p domain.Post) fn.Result[domain.Post] {
	p = domain.Normalize(p)
	if err := domain.ValidatePost(p); err != nil {
		return fn.Err[domain.Post](err)
	}
	return fn.Ok(p)
}

// LoggedTap returns a stage that logs entry and exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline composes Validate and scoring, with a span per stage.
func NewPipeline(scorer *scoring.Scorer, log *slog.Logger) fn.Stage[domain.Post, domain.ScoredPost] {
	if log == nil {
		log = slog.Default()
	}
	validated := fn.TracedStage("ingest.validate", fn.Then(LoggedTap[domain.Post]("validate", log), Validate))
	scored := fn.TracedStage("ingest.score", fn.Then(LoggedTap[domain.Post]("score", log), scorer.Stage()))
	return fn.Then(validated, scored)
}

// Deps holds the collaborators of a Consumer.
type Deps struct {
	Scorer  *scoring.Scorer
	Batcher *Batcher
	Metrics *metrics.Pipeline
	Logger  *slog.Logger
	Now     func() time.Time
}

// Consumer runs messages from RawSubject through the pipeline into a Batcher.
type Consumer struct {
	nc       *nats.Conn
	deps     Deps
	pipeline fn.Stage[domain.Post, domain.ScoredPost]
}

// NewConsumer creates a Consumer on nc.
func NewConsumer(nc *nats.Conn, deps Deps) *Consumer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewPipeline(prometheus.NewRegistry())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Consumer{nc: nc, deps: deps, pipeline: NewPipeline(deps.Scorer, deps.Logger)}
}

// Start subscribes to RawSubject within QueueGroup.
func (c *Consumer) Start() (*nats.Subscription, error) {
	sub, err := natsutil.QueueSubscribe(c.nc, RawSubject, QueueGroup, c.Handle,
		natsutil.OnMalformed(c.malformed))
	if err != nil {
		return nil, fmt.Errorf("ingest: subscribe %s: %w", RawSubject, err)
	}
	// The subscription is live on the server once the flush round trip returns.
	if err := c.nc.Flush(); err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("ingest: flush subscription: %w", err)
	}
	return sub, nil
}

// Handle runs one post through the pipeline.
func (c *Consumer) Handle(ctx context.Context, p domain.Post) {
	log := c.deps.Logger
	sp, err := c.pipeline(ctx, p).Unwrap()
	if err != nil {
		log.Warn("ingest: rejected post", "id", p.ID, "error", err)
		c.deps.Metrics.Messages.WithLabelValues(OutcomeInvalid).Inc()
		c.deadLetter(ctx, DeadLetter{Subject: RawSubject, Error: err.Error(), Post: &p})
		return
	}
	if err := c.deps.Batcher.Add(ctx, sp); err != nil {
		log.Debug("ingest: skipping duplicate", "id", sp.ID)
		c.deps.Metrics.Messages.WithLabelValues(OutcomeDuplicate).Inc()
		return
	}
	c.deps.Metrics.Messages.WithLabelValues(OutcomeAccepted).Inc()
	c.deps.Metrics.PostsScored.Inc()
	if sp.IsCritical {
		c.deps.Metrics.PostsCritical.Inc()
	}
}

func (c *Consumer) malformed(msg *nats.Msg, err error) {
	c.deps.Logger.Warn("ingest: malformed message", "subject", msg.Subject, "error", err)
	c.deps.Metrics.Messages.WithLabelValues(OutcomeMalformed).Inc()
	c.deadLetter(context.Background(), DeadLetter{Subject: msg.Subject, Error: err.Error(), Raw: string(msg.Data)})
}

func (c *Consumer) deadLetter(ctx context.Context, dl DeadLetter) {
	dl.At = c.deps.Now().UTC().Format(time.RFC3339)
	if err := natsutil.Publish(ctx, c.nc, DLQSubject, dl); err != nil {
		c.deps.Logger.Error("ingest: DLQ publish failed", "error", err)
	}
}
