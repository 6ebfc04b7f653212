package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-order-service/internal/entity"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestNewOrderEvent(t *testing.T) {
	e := NewOrderEvent(TypePaid, entity.Order{ID: 17})
	_, err := uuid.Parse(e.EventID)
	assert.NoError(t, err)
	assert.Equal(t, "order.paid.17", e.Key())
	assert.False(t, e.OccurredAt.IsZero())
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)
	order := entity.Order{
		ID:          3,
		CustomerID:  9,
		Status:      entity.OrderStatusCreated,
		FinalAmount: decimal.RequireFromString("450000"),
		Items:       []entity.OrderItem{{ProductID: 5, Quantity: 2}},
	}
	e := NewOrderEvent(TypeCreated, order)

	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "order.created.3", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, e.EventID, string(msg.Headers[0].Value))

	var decoded OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, TypeCreated, decoded.Type)
	assert.EqualValues(t, 5, decoded.Order.Items[0].ProductID)
	assert.True(t, order.FinalAmount.Equal(decoded.Order.FinalAmount))
}

func TestKafkaPublisher_PropagatesWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisher(&fakeWriter{err: boom})
	err := p.Publish(context.Background(), NewOrderEvent(TypeCancelled, entity.Order{ID: 1}))
	assert.ErrorIs(t, err, boom)
}
