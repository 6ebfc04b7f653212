package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-order-service/internal/entity"
	"retail-order-service/internal/events"
)

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []int64
}

func (r *recordingInvalidator) InvalidateCache(_ context.Context, ids ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids...)
}

func (r *recordingInvalidator) invalidated() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.ids...)
}

// fakeReader replays msgs, then blocks until the context is done.
type fakeReader struct {
	msgs   chan kafka.Message
	closed bool
}

func (f *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func message(t *testing.T, typ events.Type, productIDs ...int64) kafka.Message {
	t.Helper()
	order := entity.Order{ID: 7}
	for _, id := range productIDs {
		order.Items = append(order.Items, entity.OrderItem{ProductID: id, Quantity: 1})
	}
	event := events.NewOrderEvent(typ, order)
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(event.Key()), Value: value}
}

func TestProcessMessage(t *testing.T) {
	inv := &recordingInvalidator{}
	c := NewConsumer(inv, &fakeReader{})
	ctx := context.Background()

	c.processMessage(ctx, message(t, events.TypeCreated, 1, 2))
	c.processMessage(ctx, message(t, events.TypePaid, 3))
	c.processMessage(ctx, message(t, events.TypeCancelled, 4))
	c.processMessage(ctx, kafka.Message{Key: []byte("order.created.1"), Value: []byte("{not json")})
	c.processMessage(ctx, message(t, events.Type("refunded"), 5))

	assert.Equal(t, []int64{1, 2, 4}, inv.invalidated())
}

func TestRun_StopsOnCancel(t *testing.T) {
	inv := &recordingInvalidator{}
	reader := &fakeReader{msgs: make(chan kafka.Message, 1)}
	reader.msgs <- message(t, events.TypeCreated, 9)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewConsumer(inv, reader).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(inv.invalidated()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal(errors.New("consumer did not stop"))
	}
	assert.True(t, reader.closed)
	assert.Equal(t, []int64{9}, inv.invalidated())
}

type failingReader struct {
	mu    sync.Mutex
	reads int
}

func (f *failingReader) ReadMessage(context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return kafka.Message{}, errors.New("broker unavailable")
}

func (f *failingReader) Close() error { return nil }

func (f *failingReader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func TestRun_BacksOffOnReadErrors(t *testing.T) {
	reader := &failingReader{}
	c := NewConsumer(&recordingInvalidator{}, reader)
	c.retryDelay = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	// one read up front plus one per elapsed delay
	assert.GreaterOrEqual(t, reader.count(), 1)
	assert.LessOrEqual(t, reader.count(), 4)
}
