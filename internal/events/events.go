// Package events announces finished ingestion work to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// Event types.
const (
	TypeTableIngested   = "table.ingested"
	TypeTableFailed     = "table.failed"
	TypeSnapshotWritten = "snapshot.written"
)

// Event is one announcement.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Table      string    `json:"table"`
	Target     string    `json:"target,omitempty"`
	Files      int       `json:"files"`
	Rows       int64     `json:"rows"`
	Location   string    `json:"location,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TableEvent describes the outcome of one table ingestion unit.
func TableEvent(r csvingest.TableResult, err error, at time.Time) Event {
	e := Event{
		ID:         uuid.NewString(),
		Type:       TypeTableIngested,
		Table:      r.Table,
		Target:     r.Target,
		Files:      len(r.Files),
		Rows:       r.RowsMerged,
		OccurredAt: at.UTC(),
	}
	if err != nil {
		e.Type = TypeTableFailed
		e.Error = err.Error()
	}
	return e
}

// SnapshotEvent describes a written snapshot.
func SnapshotEvent(table, location string, rows int64, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       TypeSnapshotWritten,
		Table:      table,
		Rows:       rows,
		Location:   location,
		OccurredAt: at.UTC(),
	}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// messageWriter is the part of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by table name.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a producer for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,

		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

// Publish sends e.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := toMessage(e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event for %s: %w", e.Type, e.Table, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func toMessage(e Event) (kafkago.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(e.Table),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "occurred_at", Value: []byte(e.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}

// New returns a KafkaPublisher when brokers are configured and a
// NopPublisher otherwise.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic)
}
