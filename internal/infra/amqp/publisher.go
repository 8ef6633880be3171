package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"form-builder-service/internal/app"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultExchange is the topic exchange form events are published on.
const DefaultExchange = "form.events"

// Publisher implements app.EventPublisher on a RabbitMQ topic exchange. The
// event type is the routing key.
type Publisher struct {
	conn     *amqp091.Connection
	exchange string
	logger   *zap.Logger

	mu      sync.Mutex // guards channel
	channel *amqp091.Channel
}

// NewPublisher dials RabbitMQ and declares a durable topic exchange.
func NewPublisher(uri, exchange string, logger *zap.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp091.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Info("event publisher initialized", zap.String("exchange", exchange))
	return &Publisher{conn: conn, channel: channel, exchange: exchange, logger: logger}, nil
}

func (p *Publisher) Publish(ctx context.Context, event app.Event) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		event.Type, // routing key
		false,      // mandatory
		false,      // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.logger.Debug("published event", zap.String("type", event.Type))
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Close(); err != nil {
		p.logger.Warn("error closing RabbitMQ channel", zap.Error(err))
	}
	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("error closing RabbitMQ connection: %w", err)
	}
	return nil
}

func newMessage(event app.Event) (amqp091.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    event.OccurredAt,
		Body:         body,
		Headers: amqp091.Table{
			"event_type": event.Type,
		},
	}, nil
}

// DisabledPublisher is used when no broker is configured. It only logs the
// events it skips.
type DisabledPublisher struct {
	logger *zap.Logger
}

func NewDisabledPublisher(logger *zap.Logger) *DisabledPublisher {
	logger.Warn("RabbitMQ URI is empty, event publishing is disabled")
	return &DisabledPublisher{logger: logger}
}

func (d *DisabledPublisher) Publish(_ context.Context, event app.Event) error {
	d.logger.Debug("event publishing disabled, skipping event", zap.String("type", event.Type))
	return nil
}
