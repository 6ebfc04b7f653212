package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"retail-order-service/internal/events"
)

// messageReader is satisfied by *kafka.Reader.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// cacheInvalidator is satisfied by *service.ProductService.
type cacheInvalidator interface {
	InvalidateCache(ctx context.Context, ids ...int64)
}

// Consumer listens for order events and drops the cached copies of the
// products whose stock they changed, so every replica serves fresh stock.
type Consumer struct {
	products   cacheInvalidator
	reader     messageReader
	retryDelay time.Duration
}

func NewConsumer(products cacheInvalidator, reader messageReader) *Consumer {
	return &Consumer{products: products, reader: reader, retryDelay: time.Second}
}

// Run reads the order topic until ctx is cancelled, then closes the reader.
func (c *Consumer) Run(ctx context.Context) {
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Error().Msgf("Error closing order reader: %v", err)
		}
	}()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Msgf("Error reading message: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
			continue
		}

		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	var event events.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Error().Msgf("Error unmarshalling message: %v", err)
		return
	}

	// key -> "order.created.<orderID>", "order.paid.<orderID>" or "order.cancelled.<orderID>"
	eventType := event.Type
	if parts := strings.Split(string(msg.Key), "."); len(parts) == 3 {
		eventType = events.Type(parts[1])
	}

	switch eventType {
	case events.TypeCreated, events.TypeCancelled:
		ids := make([]int64, 0, len(event.Order.Items))
		for _, item := range event.Order.Items {
			ids = append(ids, item.ProductID)
		}
		c.products.InvalidateCache(ctx, ids...)
		log.Debug().Msgf("Invalidated %d cached products for order %d (%s)", len(ids), event.Order.ID, eventType)
	case events.TypePaid:
		// stock was settled when the order was created
	default:
		log.Error().Msgf("Unknown order event type: %s", eventType)
	}
}
