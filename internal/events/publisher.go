// Package events publishes domain events to Kafka for downstream
// consumers (alerting, dashboards).
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vega/internal/domain/snapshot"
	"vega/internal/metrics"
	"vega/pkg/logger"
)

// Event topics
const (
	TopicUnusualActivity   = "vega.unusual.activity"
	TopicSnapshotCollected = "vega.snapshot.collected"
)

// UnusualActivityEvent is emitted for each extract entry clearing the
// alert threshold during collection
type UnusualActivityEvent struct {
	ID        string                `json:"id"`
	Symbol    string                `json:"symbol"`
	Entry     snapshot.UnusualEntry `json:"entry"`
	Timestamp time.Time             `json:"timestamp"`
}

// SnapshotCollectedEvent is emitted after a snapshot write
type SnapshotCollectedEvent struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Date      string    `json:"date"`
	Contracts int       `json:"contracts"`
	Unusual   int       `json:"unusual"`
	Timestamp time.Time `json:"timestamp"`
}

// Producer is the messaging backend
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Publisher emits domain events. Publishing is best effort: failures are
// logged and counted, never propagated to the collection path.
type Publisher struct {
	producer Producer
	log      *logger.Logger
}

// NewPublisher creates an event publisher
func NewPublisher(producer Producer) *Publisher {
	return &Publisher{
		producer: producer,
		log:      logger.Get().With("component", "events"),
	}
}

// PublishUnusualActivity emits one unusual-activity alert
func (p *Publisher) PublishUnusualActivity(ctx context.Context, symbol string, entry snapshot.UnusualEntry) {
	event := UnusualActivityEvent{
		ID:        uuid.New().String(),
		Symbol:    symbol,
		Entry:     entry,
		Timestamp: time.Now().UTC(),
	}

	err := p.producer.Publish(ctx, TopicUnusualActivity, symbol, event)
	metrics.RecordKafkaMessage(TopicUnusualActivity, err)
	if err != nil {
		p.log.Warnw("Failed to publish unusual activity event", "symbol", symbol, "error", err)
	}
}

// PublishSnapshotCollected emits a snapshot-collected notification
func (p *Publisher) PublishSnapshotCollected(ctx context.Context, snap *snapshot.ChainSnapshot) {
	event := SnapshotCollectedEvent{
		ID:        uuid.New().String(),
		Symbol:    snap.Symbol,
		Date:      snap.Date.Format("2006-01-02"),
		Contracts: snap.Stats.ContractCount,
		Unusual:   len(snap.Unusual),
		Timestamp: time.Now().UTC(),
	}

	err := p.producer.Publish(ctx, TopicSnapshotCollected, snap.Symbol, event)
	metrics.RecordKafkaMessage(TopicSnapshotCollected, err)
	if err != nil {
		p.log.Warnw("Failed to publish snapshot collected event", "symbol", snap.Symbol, "error", err)
	}
}
