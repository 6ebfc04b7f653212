package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"retail-order-service/internal/entity"
)

type Type string

const (
	TypeCreated   Type = "created"
	TypePaid      Type = "paid"
	TypeCancelled Type = "cancelled"
)

// OrderEvent is the payload published on the order topic after a lifecycle
// change commits.
type OrderEvent struct {
	EventID    string       `json:"event_id"`
	Type       Type         `json:"type"`
	OccurredAt time.Time    `json:"occurred_at"`
	Order      entity.Order `json:"order"`
}

func NewOrderEvent(t Type, order entity.Order) OrderEvent {
	return OrderEvent{
		EventID:    uuid.NewString(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Order:      order,
	}
}

// Key is "order.<type>.<id>", e.g. "order.created.17".
func (e OrderEvent) Key() string {
	return fmt.Sprintf("order.%s.%d", e.Type, e.Order.ID)
}

type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(event.EventID)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }
