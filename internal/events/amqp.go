package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// Channel is the part of an AMQP channel the forwarder publishes through.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPConnection owns the broker connection and the publishing channel.
type AMQPConnection struct {
	conn *amqp.Connection
	*amqp.Channel
}

// DialAMQP connects to the broker and declares a durable topic exchange.
func DialAMQP(url, exchange string) (*AMQPConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPConnection{conn: conn, Channel: ch}, nil
}

func (c *AMQPConnection) Close() error {
	_ = c.Channel.Close()
	return c.conn.Close()
}

// AMQPForwarder relays bus events to a topic exchange with routing key
// "<prefix>.<event type>".
type AMQPForwarder struct {
	ch       Channel
	exchange string
	prefix   string
	logger   zerolog.Logger
}

func NewAMQPForwarder(ch Channel, exchange, prefix string, logger *zerolog.Logger) *AMQPForwarder {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "amqp").Logger()
	}
	return &AMQPForwarder{ch: ch, exchange: exchange, prefix: prefix, logger: l}
}

// Attach subscribes the forwarder to every published event type.
func (f *AMQPForwarder) Attach(bus *EventBus) {
	bus.Subscribe(f.Forward, AllEventTypes...)
}

// RoutingKey returns the key an event type is published under.
func (f *AMQPForwarder) RoutingKey(eventType string) string {
	if f.prefix == "" {
		return eventType
	}
	return f.prefix + "." + eventType
}

func (f *AMQPForwarder) Forward(event *Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	key := f.RoutingKey(event.Type)
	err := f.ch.PublishWithContext(ctx, f.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    event.CreatedAt,
		Type:         event.Type,
		Body:         event.Payload,
	})
	if err != nil {
		f.logger.Error().Err(err).Str("routing_key", key).Msg("failed to forward event")
		return fmt.Errorf("publish %s: %w", key, err)
	}
	f.logger.Debug().Str("routing_key", key).Msg("event forwarded")
	return nil
}

func (f *AMQPForwarder) Close() error {
	return f.ch.Close()
}
