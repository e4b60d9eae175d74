// Package broker implements the push provider on a RabbitMQ topic exchange.
// Each device token owns a durable queue bound to the topics it joined.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/UnknownOlympus/dispatch/internal/push"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrNack is returned when the broker refuses a published message.
	ErrNack = errors.New("publish NACK from broker")
	// ErrConfirmsClosed is returned once the broker stopped delivering confirms.
	ErrConfirmsClosed = errors.New("broker confirm channel closed")
)

// Connection is the part of *amqp.Connection used by the provider.
type Connection interface {
	IsClosed() bool
	Close() error
}

// Channel is the part of *amqp.Channel used by the provider.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	QueueUnbind(name, key, exchange string, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Provider publishes notifications on a topic exchange using publisher confirms.
// Confirms are routed to their publish by delivery tag, so a confirm arriving
// after its sender gave up is dropped instead of answering a later publish.
type Provider struct {
	log      *slog.Logger
	conn     Connection
	ch       Channel
	exchange string

	mu      sync.Mutex // serialises channel operations and delivery tag numbering
	lastTag uint64

	pendingMu       sync.Mutex
	pending         map[uint64]chan amqp.Confirmation
	confirmsStopped bool
}

type payload struct {
	Topic string            `json:"topic"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Dial connects to the broker, enables publisher confirms and declares the
// durable topic exchange.
func Dial(ctx context.Context, log *slog.Logger, url, exchange string) (*Provider, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open broker channel: %w", err)
	}

	if err = ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	if err = ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	log.InfoContext(ctx, "Connected to push broker", "exchange", exchange)

	return New(log, conn, ch, acks, exchange), nil
}

// New returns a Provider over an open connection and a confirm-mode channel.
func New(log *slog.Logger, conn Connection, ch Channel, acks <-chan amqp.Confirmation, exchange string) *Provider {
	p := &Provider{
		log:      log,
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		pending:  make(map[uint64]chan amqp.Confirmation),
	}
	go p.routeConfirms(acks)

	return p
}

// routeConfirms hands every confirm to the publish waiting for its delivery tag.
// When acks closes, every waiting publish is released with ErrConfirmsClosed.
func (p *Provider) routeConfirms(acks <-chan amqp.Confirmation) {
	for conf := range acks {
		p.pendingMu.Lock()
		waiter, ok := p.pending[conf.DeliveryTag]
		delete(p.pending, conf.DeliveryTag)
		p.pendingMu.Unlock()

		if !ok {
			p.log.Debug("Dropping confirm of an abandoned publish", "delivery_tag", conf.DeliveryTag, "ack", conf.Ack)
			continue
		}
		waiter <- conf
	}

	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	p.confirmsStopped = true
	for tag, waiter := range p.pending {
		close(waiter)
		delete(p.pending, tag)
	}
}

func (p *Provider) await(tag uint64) (chan amqp.Confirmation, error) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	if p.confirmsStopped {
		return nil, ErrConfirmsClosed
	}

	waiter := make(chan amqp.Confirmation, 1)
	p.pending[tag] = waiter
	return waiter, nil
}

func (p *Provider) forget(tag uint64) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	delete(p.pending, tag)
}

// QueueName returns the queue owned by a device token.
func QueueName(token string) string {
	return "device." + token
}

// Send publishes msg with the topic as routing key and waits for the broker confirm.
func (p *Provider) Send(ctx context.Context, msg push.Message) (string, error) {
	body, err := json.Marshal(payload{Topic: msg.Topic, Title: msg.Title, Body: msg.Body, Data: msg.Data})
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	messageID := uuid.NewString()

	// delivery tags count publishes on the channel from 1
	p.mu.Lock()
	tag := p.lastTag + 1
	waiter, err := p.await(tag)
	if err != nil {
		p.mu.Unlock()
		return "", err
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, msg.Topic, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    messageID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		p.forget(tag)
		p.mu.Unlock()
		return "", fmt.Errorf("failed to publish to %s: %w", msg.Topic, err)
	}
	p.lastTag = tag
	p.mu.Unlock()

	select {
	case conf, ok := <-waiter:
		if !ok {
			return "", ErrConfirmsClosed
		}
		if !conf.Ack {
			return "", ErrNack
		}
		return messageID, nil
	case <-ctx.Done():
		p.forget(tag)
		return "", ctx.Err()
	}
}

// Subscribe binds the queue of every token to topic.
func (p *Provider) Subscribe(ctx context.Context, tokens []string, topic string) (models.TopicResult, error) {
	return p.each(ctx, "subscribe", tokens, topic, func(queue string) error {
		if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return err
		}
		return p.ch.QueueBind(queue, topic, p.exchange, false, nil)
	})
}

// Unsubscribe unbinds the queue of every token from topic.
func (p *Provider) Unsubscribe(ctx context.Context, tokens []string, topic string) (models.TopicResult, error) {
	return p.each(ctx, "unsubscribe", tokens, topic, func(queue string) error {
		return p.ch.QueueUnbind(queue, topic, p.exchange, nil)
	})
}

func (p *Provider) each(
	ctx context.Context,
	operation string,
	tokens []string,
	topic string,
	apply func(queue string) error,
) (models.TopicResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result models.TopicResult
	for _, token := range tokens {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := apply(QueueName(token)); err != nil {
			result.FailureCount++
			p.log.DebugContext(ctx, "Broker rejected token", "operation", operation, "topic", topic, "error", err)
			continue
		}
		result.SuccessCount++
	}

	return result, nil
}

// Ping reports whether the broker connection is still open.
func (p *Provider) Ping(_ context.Context) error {
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("broker connection is closed")
	}
	return nil
}

// Close closes the channel and the connection.
func (p *Provider) Close() error {
	return errors.Join(p.ch.Close(), p.conn.Close())
}
