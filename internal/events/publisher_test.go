package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vega/internal/domain/snapshot"
	"vega/pkg/errors"
)

type capturedMessage struct {
	topic string
	key   string
	event interface{}
}

type stubProducer struct {
	messages []capturedMessage
	err      error
}

func (s *stubProducer) Publish(_ context.Context, topic string, key string, event interface{}) error {
	s.messages = append(s.messages, capturedMessage{topic: topic, key: key, event: event})
	return s.err
}

func TestPublishUnusualActivity(t *testing.T) {
	producer := &stubProducer{}
	publisher := NewPublisher(producer)

	entry := snapshot.UnusualEntry{Symbol: "SPY", Strike: 450, Volume: 12000, Score: 7.5}
	publisher.PublishUnusualActivity(context.Background(), "SPY", entry)

	require.Len(t, producer.messages, 1)
	msg := producer.messages[0]
	assert.Equal(t, TopicUnusualActivity, msg.topic)
	assert.Equal(t, "SPY", msg.key)

	event, ok := msg.event.(UnusualActivityEvent)
	require.True(t, ok)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "SPY", event.Symbol)
	assert.Equal(t, entry, event.Entry)
	assert.False(t, event.Timestamp.IsZero())
}

func TestPublishSnapshotCollected(t *testing.T) {
	producer := &stubProducer{}
	publisher := NewPublisher(producer)

	snap := &snapshot.ChainSnapshot{
		Symbol:  "QQQ",
		Date:    time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Stats:   snapshot.DailyStats{ContractCount: 840},
		Unusual: []snapshot.UnusualEntry{{Symbol: "QQQ"}, {Symbol: "QQQ"}},
	}
	publisher.PublishSnapshotCollected(context.Background(), snap)

	require.Len(t, producer.messages, 1)
	event, ok := producer.messages[0].event.(SnapshotCollectedEvent)
	require.True(t, ok)
	assert.Equal(t, "QQQ", event.Symbol)
	assert.Equal(t, "2025-06-02", event.Date)
	assert.Equal(t, 840, event.Contracts)
	assert.Equal(t, 2, event.Unusual)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	producer := &stubProducer{err: errors.ErrInternal}
	publisher := NewPublisher(producer)

	assert.NotPanics(t, func() {
		publisher.PublishUnusualActivity(context.Background(), "SPY", snapshot.UnusualEntry{Symbol: "SPY"})
		publisher.PublishSnapshotCollected(context.Background(), &snapshot.ChainSnapshot{Symbol: "SPY", Date: time.Now()})
	})
	assert.Len(t, producer.messages, 2)
}
