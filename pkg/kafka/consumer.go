package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// PairBatchHandler scores a batch of requested pairs. Returning an error
// leaves the batch uncommitted.
type PairBatchHandler func(ctx context.Context, pairs []models.ContactPair) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	BatchSize     int
	FlushInterval time.Duration
}

// PairConsumer reads pair requests and hands them to the handler in batches
// of up to BatchSize, or whatever arrived within FlushInterval.
type PairConsumer struct {
	reader        messageReader
	logger        ectologger.Logger
	handler       PairBatchHandler
	topic         string
	batchSize     int
	flushInterval time.Duration
	wg            sync.WaitGroup
	cancel        context.CancelFunc
}

func NewPairConsumer(cfg ConsumerConfig, logger ectologger.Logger, handler PairBatchHandler) *PairConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})
	return newPairConsumer(reader, cfg, logger, handler)
}

func newPairConsumer(reader messageReader, cfg ConsumerConfig, logger ectologger.Logger, handler PairBatchHandler) *PairConsumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	return &PairConsumer{
		reader:        reader,
		logger:        logger,
		handler:       handler,
		topic:         cfg.Topic,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
	}
}

func (c *PairConsumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.WithContext(ctx).WithField("topic", c.topic).Info("Pair request consumer started")
	return nil
}

// Stop cancels the loop, waits for the batch in flight, and closes the reader.
func (c *PairConsumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

func (c *PairConsumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for ctx.Err() == nil {
		msgs, err := c.fetchBatch(ctx)
		if len(msgs) > 0 {
			c.processBatch(ctx, msgs)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			c.logger.WithContext(ctx).WithError(err).Error("Failed to fetch pair request")
		}
	}
}

// fetchBatch collects messages until the batch is full or the flush
// interval after the first message elapses.
func (c *PairConsumer) fetchBatch(ctx context.Context) ([]kafka.Message, error) {
	first, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	msgs := []kafka.Message{first}

	deadline := time.Now().Add(c.flushInterval)
	for len(msgs) < c.batchSize {
		fetchCtx, cancel := context.WithDeadline(ctx, deadline)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return msgs, nil
			}
			return msgs, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (c *PairConsumer) processBatch(ctx context.Context, msgs []kafka.Message) {
	// the batch is finished even when shutdown begins mid-way
	ctx = tracing.ExtractTraceParent(context.WithoutCancel(ctx), header(msgs[0], "traceparent"))
	ctx, span := tracing.StartSpan(ctx, "kafka.PairConsumer.processBatch")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":      c.topic,
		"batch_size": len(msgs),
	})

	pairs := make([]models.ContactPair, 0, len(msgs))
	for _, msg := range msgs {
		pair, err := DecodePairRequest(msg.Value)
		if err != nil {
			// undecodable requests are dropped
			metrics.RecordKafkaConsume(c.topic, "invalid")
			log.WithError(err).WithFields(map[string]any{
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).Warn("Dropping malformed pair request")
			continue
		}
		pairs = append(pairs, pair)
	}

	if len(pairs) > 0 {
		if err := c.handler(ctx, pairs); err != nil {
			metrics.RecordKafkaConsume(c.topic, "error")
			log.WithError(err).Error("Failed to score pair batch (not committing)")
			return
		}
		for range pairs {
			metrics.RecordKafkaConsume(c.topic, "ok")
		}
	}

	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		log.WithError(err).Error("Failed to commit pair requests")
	}
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
