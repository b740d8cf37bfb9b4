package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// BoostEvent is emitted after every committed boost lifecycle change
type BoostEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	BoostUUID  uuid.UUID `json:"boost_uuid"`
	OwnerID    uint      `json:"owner_id"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher delivers boost events to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, event BoostEvent) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used by the publisher
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisherConfig configures the kafka event publisher
type KafkaPublisherConfig struct {
	Brokers      []string
	Topic        string
	MaxAttempts  int
	WriteTimeout time.Duration
}

// KafkaEventPublisher writes boost events keyed by boost UUID so one boost's events stay ordered on a partition
type KafkaEventPublisher struct {
	writer      messageWriter
	topic       string
	maxAttempts int
	backoff     time.Duration
}

// NewKafkaEventPublisher constructs a publisher backed by a kafka-go writer
func NewKafkaEventPublisher(cfg KafkaPublisherConfig) (*KafkaEventPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})

	return newKafkaEventPublisher(w, cfg.Topic, cfg.MaxAttempts), nil
}

func newKafkaEventPublisher(w messageWriter, topic string, maxAttempts int) *KafkaEventPublisher {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &KafkaEventPublisher{
		writer:      w,
		topic:       topic,
		maxAttempts: maxAttempts,
		backoff:     100 * time.Millisecond,
	}
}

// Publish writes the event, retrying transient failures with exponential backoff
func (p *KafkaEventPublisher) Publish(ctx context.Context, event BoostEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.BoostUUID.String()),
		Value: value,
		Time:  event.OccurredAt,
	}

	var lastErr error
	backoff := p.backoff
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		ctxAttempt, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.writer.WriteMessages(ctxAttempt, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("publish %s to %s: %w", event.Type, p.topic, ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}

	return fmt.Errorf("publish %s to %s failed after %d attempts: %w", event.Type, p.topic, p.maxAttempts, lastErr)
}

// Close shuts down the underlying writer
func (p *KafkaEventPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// NoopEventPublisher drops every event. Used when no brokers are configured.
type NoopEventPublisher struct{}

func NewNoopEventPublisher() EventPublisher { return NoopEventPublisher{} }

func (NoopEventPublisher) Publish(context.Context, BoostEvent) error { return nil }

func (NoopEventPublisher) Close() error { return nil }
