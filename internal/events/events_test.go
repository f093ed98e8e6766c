package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestMessage(t *testing.T) {
	at := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	msg, err := Message(Event{
		Type:       TypeOrderFinalized,
		OutletID:   "o1",
		OccurredAt: at,
		Payload:    OrderFinalized{OrderID: "ord-1", Sequence: 7, Type: "dine_in", Lines: 2, GrandTotal: decimal.RequireFromString("472.5")},
	})
	require.NoError(t, err)

	assert.Equal(t, "o1", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, TypeOrderFinalized, string(msg.Headers[0].Value))

	var decoded struct {
		Type    string `json:"type"`
		Payload struct {
			Sequence   int64  `json:"sequence"`
			GrandTotal string `json:"grand_total"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, TypeOrderFinalized, decoded.Type)
	assert.Equal(t, int64(7), decoded.Payload.Sequence)
	assert.Equal(t, "472.5", decoded.Payload.GrandTotal)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, nil)

	p.Publish(context.Background(),
		Event{Type: TypeOrderCancelled, OutletID: "o1", Payload: OrderCancelled{OrderID: "a"}},
		Event{Type: TypeStockLow, OutletID: "o1", Payload: StockLow{IngredientID: "milk", Stock: 10, MinStock: 20}},
	)

	require.Len(t, w.msgs, 2)
	assert.False(t, w.msgs[0].Time.IsZero(), "timestamp filled in")
}

func TestKafkaPublisher_FailureIsNotFatal(t *testing.T) {
	p := newKafkaPublisher(&fakeWriter{err: errors.New("no brokers")}, nil)
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), Event{Type: TypeStockLow, OutletID: "o1"})
	})
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Publish(context.Background(), Event{Type: TypeStockLow}, Event{Type: TypeOrderFinalized})
	assert.Len(t, r.Events(), 2)
	assert.Len(t, r.OfType(TypeStockLow), 1)

	var nop NopPublisher
	nop.Publish(context.Background(), Event{Type: TypeStockLow})
	assert.NoError(t, nop.Close())
}
