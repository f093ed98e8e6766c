// Package events publishes POS events to downstream consumers
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Event types
const (
	TypeOrderFinalized = "order.finalized"
	TypeOrderCancelled = "order.cancelled"
	TypeStockLow       = "stock.low"
)

// Event is the envelope written to the stream
type Event struct {
	Type       string      `json:"type"`
	OutletID   string      `json:"outlet_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// OrderFinalized is the payload of order.finalized
type OrderFinalized struct {
	OrderID       string          `json:"order_id"`
	Sequence      int64           `json:"sequence"`
	Type          string          `json:"type"`
	TableID       string          `json:"table_id,omitempty"`
	Lines         int             `json:"lines"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	PaymentMethod string          `json:"payment_method,omitempty"`
}

// OrderCancelled is the payload of order.cancelled
type OrderCancelled struct {
	OrderID  string `json:"order_id"`
	Sequence int64  `json:"sequence"`
	TableID  string `json:"table_id,omitempty"`
}

// StockLow is the payload of stock.low
type StockLow struct {
	IngredientID string  `json:"ingredient_id"`
	Name         string  `json:"name"`
	Stock        float64 `json:"stock"`
	MinStock     float64 `json:"min_stock"`
}

// Publisher delivers events. Implementations never make a failed publish
// fatal to the caller.
type Publisher interface {
	Publish(ctx context.Context, events ...Event)
	Close() error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Event) {}
func (NopPublisher) Close() error                      { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by outlet
type KafkaPublisher struct {
	writer messageWriter
	log    *logrus.Entry
}

// NewKafkaPublisher creates a publisher for the given brokers and topic
func NewKafkaPublisher(brokers []string, topic string, log *logrus.Entry) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaPublisher(w, log)
}

func newKafkaPublisher(w messageWriter, log *logrus.Entry) *KafkaPublisher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &KafkaPublisher{writer: w, log: log.WithField("component", "events")}
}

// Message encodes an event as a Kafka message
func Message(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode %s event: %w", e.Type, err)
	}
	return kafka.Message{
		Key:   []byte(e.OutletID),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}, nil
}

// Publish writes the events and logs failures
func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		if e.OccurredAt.IsZero() {
			e.OccurredAt = time.Now().UTC()
		}
		msg, err := Message(e)
		if err != nil {
			p.log.WithError(err).Error("Dropping event")
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.log.WithError(err).WithField("count", len(msgs)).Error("Failed to publish events")
	}
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, events ...Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of what was published
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the published events of one type
func (r *Recorder) OfType(t string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
