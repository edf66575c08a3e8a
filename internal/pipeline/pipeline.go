package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
)

// BatchExtractor reads up to batchSize forecast requests from the source. An
// empty batch with a nil error means the source was reached and had nothing
// new.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer turns a forecast request into a serialized forecast.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error)
}

// BatchLoader writes multiple forecasts to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

const (
	initialRetryDelay = 200 * time.Millisecond
	maxRetryDelay     = 5 * time.Second
)

// Pipeline answers forecast requests from a topic and publishes the forecasts.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
	retry       backoff
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
		retry:       backoff{initial: initialRetryDelay, max: maxRetryDelay, current: initialRetryDelay},
	}
}

// CheckReadiness returns nil once a fetch from the source topic has succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not reached the source topic yet")
	}
	return nil
}

// Run answers batches of requests until the context is cancelled. Source
// failures are retried with exponential backoff; it only returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for ctx.Err() == nil {
		err := p.answerBatch(ctx)
		if err == nil {
			p.retry.reset()
			continue
		}
		if ctx.Err() != nil {
			break
		}
		p.logger.Error("forecast batch failed", "error", err, "retry_in", p.retry.current)
		if !p.retry.wait(ctx) {
			break
		}
	}

	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// batchSummary counts what happened to one batch of requests.
type batchSummary struct {
	requests  int
	published int
	rejected  int
	byStatus  map[string]int
	bySource  map[string]int
}

// answerBatch fetches one batch, forecasts every valid request and publishes
// the results. Offsets of published forecasts are committed only after the
// publish succeeds; rejected requests are committed immediately so they are
// not redelivered.
func (p *Pipeline) answerBatch(ctx context.Context) error {
	start := time.Now()

	requests, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	p.ready.Store(true)
	if len(requests) == 0 {
		return nil
	}
	p.metrics.MessagesConsumed.Add(float64(len(requests)))
	p.metrics.BatchSize.Observe(float64(len(requests)))

	summary := batchSummary{
		requests: len(requests),
		byStatus: map[string]int{},
		bySource: map[string]int{},
	}
	forecasts := make([]domain.OutputEvent, 0, len(requests))
	answered := make([]domain.RawEvent, 0, len(requests))
	for _, raw := range requests {
		out, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.reject(ctx, raw, err)
			summary.rejected++
			continue
		}
		forecasts = append(forecasts, out)
		answered = append(answered, raw)
		summary.byStatus[out.Headers[domain.HeaderGlobalStatus]]++
		summary.bySource[out.Headers[domain.HeaderDataSource]]++
	}
	if len(forecasts) == 0 {
		p.logSummary(summary)
		return nil
	}

	if err := p.publish(ctx, forecasts); err != nil {
		return err
	}
	summary.published = len(forecasts)
	for _, raw := range answered {
		p.commit(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.logSummary(summary)
	return nil
}

// publish retries the load until it succeeds or the context ends. The batch is
// kept in memory, so a flaky sink does not drop forecasts already computed.
func (p *Pipeline) publish(ctx context.Context, forecasts []domain.OutputEvent) error {
	for {
		err := p.loader.LoadBatch(ctx, forecasts)
		if err == nil {
			p.metrics.MessagesProduced.Add(float64(len(forecasts)))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Error("publish forecasts failed", "error", err, "forecasts", len(forecasts), "retry_in", p.retry.current)
		if !p.retry.wait(ctx) {
			return ctx.Err()
		}
	}
}

func (p *Pipeline) reject(ctx context.Context, raw domain.RawEvent, err error) {
	p.logger.Warn("invalid forecast request, skipping message",
		"error", err,
		"topic", raw.Topic,
		"partition", raw.Partition,
		"offset", raw.Offset,
	)
	p.metrics.TransformErrors.Inc()
	p.commit(ctx, raw)
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func (p *Pipeline) logSummary(s batchSummary) {
	p.logger.Info("forecast batch answered",
		"requests", s.requests,
		"published", s.published,
		"rejected", s.rejected,
		"aman", s.byStatus[domain.RiskSafe.Label()],
		"siaga", s.byStatus[domain.RiskWatch.Label()],
		"bahaya", s.byStatus[domain.RiskDanger.Label()],
		"live", s.bySource[string(domain.SourceLive)],
		"degraded", s.published-s.bySource[string(domain.SourceLive)],
	)
}

// backoff doubles the delay after every failed attempt up to max.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func (b *backoff) reset() {
	b.current = b.initial
}

// wait sleeps for the current delay and doubles it. It returns false if the
// context ended first.
func (b *backoff) wait(ctx context.Context) bool {
	timer := time.NewTimer(b.current)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	b.current = min(b.current*2, b.max)
	return true
}
