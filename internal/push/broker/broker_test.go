package broker_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/UnknownOlympus/dispatch/internal/push"
	"github.com/UnknownOlympus/dispatch/internal/push/broker"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	closed bool
}

func (c *fakeConn) IsClosed() bool { return c.closed }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type binding struct {
	queue, key, exchange string
}

type fakeChannel struct {
	mu         sync.Mutex
	acks       chan amqp.Confirmation
	ack        bool
	silent     bool
	publishErr error
	bindErr    map[string]error
	queues     []string
	bindings   map[binding]bool
	published  []amqp.Publishing
	keys       []string
	closeOnce  sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		acks:     make(chan amqp.Confirmation, 1),
		ack:      true,
		bindErr:  make(map[string]error),
		bindings: make(map[binding]bool),
	}
}

func (c *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queues = append(c.queues, name)
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.bindErr[name]; err != nil {
		return err
	}
	c.bindings[binding{name, key, exchange}] = true
	return nil
}

func (c *fakeChannel) QueueUnbind(name, key, exchange string, _ amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bindings, binding{name, key, exchange})
	return nil
}

func (c *fakeChannel) PublishWithContext(
	_ context.Context, _, key string, _, _ bool, msg amqp.Publishing,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, msg)
	c.keys = append(c.keys, key)
	if !c.silent {
		c.acks <- amqp.Confirmation{DeliveryTag: uint64(len(c.published)), Ack: c.ack}
	}
	return nil
}

func (c *fakeChannel) Close() error {
	c.closeOnce.Do(func() { close(c.acks) })
	return nil
}

// confirm delivers a broker confirm as if it arrived late.
func (c *fakeChannel) confirm(tag uint64, ack bool) {
	c.acks <- amqp.Confirmation{DeliveryTag: tag, Ack: ack}
}

func (c *fakeChannel) configure(silent, ack bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.silent, c.ack = silent, ack
}

func newProvider(ch *fakeChannel) (*broker.Provider, *fakeConn) {
	conn := &fakeConn{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return broker.New(logger, conn, ch, ch.acks, "dispatch.orders"), conn
}

func TestProvider_Send(t *testing.T) {
	t.Parallel()

	t.Run("success - confirmed publish", func(t *testing.T) {
		t.Parallel()
		ch := newFakeChannel()
		provider, _ := newProvider(ch)

		id, err := provider.Send(t.Context(), push.Message{
			Topic: "agency_3", Title: "New order", Body: "Order #7", Data: map[string]string{"order_id": "7"},
		})

		require.NoError(t, err)
		_, err = uuid.Parse(id)
		require.NoError(t, err)

		require.Len(t, ch.published, 1)
		assert.Equal(t, "agency_3", ch.keys[0])
		assert.Equal(t, id, ch.published[0].MessageId)
		assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)

		var body map[string]any
		require.NoError(t, json.Unmarshal(ch.published[0].Body, &body))
		assert.Equal(t, "New order", body["title"])
	})

	t.Run("failure - nack", func(t *testing.T) {
		t.Parallel()
		ch := newFakeChannel()
		ch.ack = false
		provider, _ := newProvider(ch)

		_, err := provider.Send(t.Context(), push.Message{Topic: "agency_3"})

		require.ErrorIs(t, err, broker.ErrNack)
	})

	t.Run("failure - publish error", func(t *testing.T) {
		t.Parallel()
		ch := newFakeChannel()
		ch.publishErr = amqp.ErrClosed
		provider, _ := newProvider(ch)

		_, err := provider.Send(t.Context(), push.Message{Topic: "agency_3"})

		require.ErrorIs(t, err, amqp.ErrClosed)
	})

	t.Run("failure - no confirm before deadline", func(t *testing.T) {
		t.Parallel()
		ch := newFakeChannel()
		ch.silent = true
		provider, _ := newProvider(ch)

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()
		_, err := provider.Send(ctx, push.Message{Topic: "agency_3"})

		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("failure - late confirm is not taken for the next publish", func(t *testing.T) {
		t.Parallel()
		ch := newFakeChannel()
		ch.silent = true
		provider, _ := newProvider(ch)

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()
		_, err := provider.Send(ctx, push.Message{Topic: "agency_3"})
		require.ErrorIs(t, err, context.DeadlineExceeded)

		ch.confirm(1, true)
		ch.configure(false, false)

		id, err := provider.Send(t.Context(), push.Message{Topic: "agency_3"})

		require.ErrorIs(t, err, broker.ErrNack)
		assert.Empty(t, id)
	})

	t.Run("success - confirms after an abandoned publish stay matched", func(t *testing.T) {
		t.Parallel()
		ch := newFakeChannel()
		ch.silent = true
		provider, _ := newProvider(ch)

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()
		_, err := provider.Send(ctx, push.Message{Topic: "agency_3"})
		require.ErrorIs(t, err, context.DeadlineExceeded)

		ch.confirm(1, false)
		ch.configure(false, true)

		for range 3 {
			_, err = provider.Send(t.Context(), push.Message{Topic: "agency_3"})
			require.NoError(t, err)
		}
	})

	t.Run("failure - confirm channel closed", func(t *testing.T) {
		t.Parallel()
		ch := newFakeChannel()
		ch.silent = true
		provider, _ := newProvider(ch)
		require.NoError(t, ch.Close())

		_, err := provider.Send(t.Context(), push.Message{Topic: "agency_3"})

		require.ErrorIs(t, err, broker.ErrConfirmsClosed)
	})
}

func TestProvider_Topics(t *testing.T) {
	t.Parallel()

	t.Run("subscribe binds device queues", func(t *testing.T) {
		t.Parallel()
		ch := newFakeChannel()
		ch.bindErr["device.bad"] = assert.AnError
		provider, _ := newProvider(ch)

		result, err := provider.Subscribe(t.Context(), []string{"a", "bad"}, "agency_3")

		require.NoError(t, err)
		assert.Equal(t, 1, result.SuccessCount)
		assert.Equal(t, 1, result.FailureCount)
		assert.Equal(t, []string{"device.a", "device.bad"}, ch.queues)
		assert.True(t, ch.bindings[binding{"device.a", "agency_3", "dispatch.orders"}])
	})

	t.Run("unsubscribe removes the binding", func(t *testing.T) {
		t.Parallel()
		ch := newFakeChannel()
		provider, _ := newProvider(ch)
		_, err := provider.Subscribe(t.Context(), []string{"a"}, "agency_3")
		require.NoError(t, err)

		result, err := provider.Unsubscribe(t.Context(), []string{"a"}, "agency_3")

		require.NoError(t, err)
		assert.Equal(t, 1, result.SuccessCount)
		assert.Empty(t, ch.bindings)
	})

	t.Run("cancelled context stops the batch", func(t *testing.T) {
		t.Parallel()
		provider, _ := newProvider(newFakeChannel())
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := provider.Subscribe(ctx, []string{"a"}, "agency_3")

		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestProvider_Ping(t *testing.T) {
	t.Parallel()
	provider, conn := newProvider(newFakeChannel())

	require.NoError(t, provider.Ping(t.Context()))

	require.NoError(t, provider.Close())
	assert.True(t, conn.closed)
	require.Error(t, provider.Ping(t.Context()))
}

func TestQueueName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "device.tok", broker.QueueName("tok"))
}
