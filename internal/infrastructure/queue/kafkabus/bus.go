package kafkabus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
	"github.com/kirillkom/patent-pod-intake/internal/infrastructure/resilience"
)

const (
	DefaultTopic   = "patent.applications.committed"
	DefaultGroupID = "pod-intake"

	eventTypeHeader = "event-type"
	eventType       = "application.committed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Options struct {
	GroupID            string
	WriteTimeout       time.Duration
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

// Bus publishes ApplicationCommitted events to a Kafka topic keyed by
// application id, so every event of one application lands on one partition.
type Bus struct {
	writer    messageWriter
	newReader func() messageReader
	executor  *resilience.Executor
	logger    *slog.Logger
}

func New(brokers []string, topic string, options Options) (*Bus, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	groupID := options.GroupID
	if groupID == "" {
		groupID = DefaultGroupID
	}
	writeTimeout := options.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	// Retries belong to the executor; the writer makes one attempt.
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            1,
		BatchSize:              1,
		WriteTimeout:           writeTimeout,
		AllowAutoTopicCreation: true,
	}
	newReader := func() messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MaxWait:  time.Second,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		})
	}
	return newBus(writer, newReader, options.ResilienceExecutor, options.Logger), nil
}

func newBus(writer messageWriter, newReader func() messageReader, executor *resilience.Executor, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{writer: writer, newReader: newReader, executor: executor, logger: logger}
}

func (b *Bus) Close() {
	if err := b.writer.Close(); err != nil {
		b.logger.Warn("kafka_writer_close_failed", "error", err)
	}
}

func (b *Bus) PublishApplicationCommitted(ctx context.Context, event domain.ApplicationCommitted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal committed event: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(event.ApplicationID),
		Value:   payload,
		Headers: []kafka.Header{{Key: eventTypeHeader, Value: []byte(eventType)}},
	}
	call := func(callCtx context.Context) error {
		if err := b.writer.WriteMessages(callCtx, msg); err != nil {
			return fmt.Errorf("kafka write: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "kafka.publish", call, classifyKafkaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeApplicationCommitted consumes the topic as a member of the
// configured group until ctx is done. Offsets are committed after the
// handler returns, whatever its result; undecodable payloads are skipped.
func (b *Bus) SubscribeApplicationCommitted(ctx context.Context, handler func(context.Context, domain.ApplicationCommitted) error) error {
	reader := b.newReader()
	defer func() {
		if err := reader.Close(); err != nil {
			b.logger.Warn("kafka_reader_close_failed", "error", err)
		}
	}()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}
		b.dispatch(ctx, msg, handler)
		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Warn("kafka_commit_failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, msg kafka.Message, handler func(context.Context, domain.ApplicationCommitted) error) {
	if !isCommittedEvent(msg) {
		b.logger.Debug("kafka_message_skipped", "offset", msg.Offset)
		return
	}
	var event domain.ApplicationCommitted
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		b.logger.Warn("committed_event_decode_failed", "error", err, "offset", msg.Offset, "bytes", len(msg.Value))
		return
	}
	if err := handler(ctx, event); err != nil {
		b.logger.Error("committed_event_handler_failed", "application_id", event.ApplicationID, "error", err)
	}
}

// Messages without the event-type header are accepted for producers that
// do not set headers.
func isCommittedEvent(msg kafka.Message) bool {
	for _, h := range msg.Headers {
		if h.Key == eventTypeHeader {
			return string(h.Value) == eventType
		}
	}
	return true
}
