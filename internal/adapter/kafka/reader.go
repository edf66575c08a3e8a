package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/config"
	"github.com/couchcryptid/flood-risk-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Reader consumes forecast requests from a Kafka topic.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader        *kafkago.Reader
	dialer        *kafkago.Dialer
	brokers       []string
	topic         string
	flushInterval time.Duration
	reached       atomic.Bool
	logger        *slog.Logger
}

// NewReader creates a consumer-group reader for the configured source topic.
// Offsets are committed explicitly through RawEvent.Commit.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaSourceTopic,
		GroupID:     cfg.KafkaGroupID,
		StartOffset: kafkago.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Reader{
		reader:        r,
		dialer:        &kafkago.Dialer{Timeout: 5 * time.Second},
		brokers:       cfg.KafkaBrokers,
		topic:         cfg.KafkaSourceTopic,
		flushInterval: cfg.BatchFlushInterval,
		logger:        logger,
	}
}

// ExtractBatch fetches up to batchSize messages. It returns early with a
// partial (possibly empty) batch once the flush interval elapses, so a quiet
// topic never stalls messages already fetched. FetchMessage blocks rather than
// failing when no broker answers, so an empty batch is only returned once the
// source topic has been confirmed reachable.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	batchCtx, cancel := context.WithTimeout(ctx, r.flushInterval)
	defer cancel()

	batch := make([]domain.RawEvent, 0, batchSize)
	for len(batch) < batchSize {
		msg, err := r.reader.FetchMessage(batchCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return batch, fmt.Errorf("fetch message: %w", err)
		}
		batch = append(batch, r.mapMessageToRawEvent(msg))
	}

	if len(batch) > 0 {
		r.reached.Store(true)
		r.logger.Debug("batch extracted", "size", len(batch), "topic", r.topic)
		return batch, nil
	}
	if !r.reached.Load() {
		if err := r.checkTopic(ctx); err != nil {
			return nil, fmt.Errorf("source topic %s unreachable: %w", r.topic, err)
		}
		r.reached.Store(true)
		r.logger.Info("source topic reachable", "topic", r.topic)
	}
	return batch, nil
}

// checkTopic asks each broker in turn for the source topic's partitions.
func (r *Reader) checkTopic(ctx context.Context) error {
	var errs []error
	for _, broker := range r.brokers {
		conn, err := r.dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		partitions, err := conn.ReadPartitions(r.topic)
		_ = conn.Close()
		switch {
		case err != nil:
			errs = append(errs, err)
		case len(partitions) == 0:
			errs = append(errs, fmt.Errorf("broker %s reports no partitions", broker))
		default:
			return nil
		}
	}
	if len(errs) == 0 {
		return errors.New("no brokers configured")
	}
	return errors.Join(errs...)
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

func (r *Reader) mapMessageToRawEvent(msg kafkago.Message) domain.RawEvent {
	raw := mapMessageToRawEvent(msg)
	raw.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return raw
}

// mapMessageToRawEvent copies a Kafka message into a RawEvent without a
// commit callback.
func mapMessageToRawEvent(msg kafkago.Message) domain.RawEvent {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawEvent{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
