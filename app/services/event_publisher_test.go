package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	failures int
	calls    int
	messages []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.failures > 0 {
		w.failures--
		return errors.New("broker unavailable")
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaEventPublisher_Validation(t *testing.T) {
	_, err := NewKafkaEventPublisher(KafkaPublisherConfig{Topic: "boost.events"})
	assert.Error(t, err)

	_, err = NewKafkaEventPublisher(KafkaPublisherConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}

func TestKafkaEventPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaEventPublisher(w, "boost.events", 3)
	boostUUID := uuid.New()

	err := p.Publish(context.Background(), BoostEvent{
		Type:       "boost_paid",
		BoostUUID:  boostUUID,
		OwnerID:    5,
		FromStatus: "PAUSED",
		ToStatus:   "ACTIVE",
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, boostUUID.String(), string(msg.Key))

	var decoded BoostEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.NotEmpty(t, decoded.EventID)
	assert.Equal(t, "ACTIVE", decoded.ToStatus)
	assert.False(t, decoded.OccurredAt.IsZero())
}

func TestKafkaEventPublisher_RetriesThenSucceeds(t *testing.T) {
	w := &fakeWriter{failures: 2}
	p := newKafkaEventPublisher(w, "boost.events", 3)
	p.backoff = time.Millisecond

	require.NoError(t, p.Publish(context.Background(), BoostEvent{Type: "boost_paused", BoostUUID: uuid.New()}))
	assert.Equal(t, 3, w.calls)
	assert.Len(t, w.messages, 1)
}

func TestKafkaEventPublisher_GivesUp(t *testing.T) {
	w := &fakeWriter{failures: 10}
	p := newKafkaEventPublisher(w, "boost.events", 2)
	p.backoff = time.Millisecond

	err := p.Publish(context.Background(), BoostEvent{Type: "boost_stopped", BoostUUID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
	assert.Equal(t, 2, w.calls)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNoopEventPublisher(t *testing.T) {
	p := NewNoopEventPublisher()
	assert.NoError(t, p.Publish(context.Background(), BoostEvent{}))
	assert.NoError(t, p.Close())
}
