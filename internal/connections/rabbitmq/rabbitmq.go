package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"time"

	"salon-service/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RevisionExchange = "revisiones_fanout"
	TicketExchange   = "comandas_topic"
	RevisionQueue    = "revisiones.q"
	TicketQueue      = "comandas.q"
)

// Client wraps one connection and one channel with publisher confirms enabled.
// Publish is serialized with a mutex because confirms arrive on a single
// channel-wide stream.
type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	acks <-chan amqp.Confirmation
	mu   sync.Mutex
}

func Dial(cfg config.RabbitMQConfig) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	return &Client{conn: conn, ch: ch, acks: acks}, nil
}

func (c *Client) Channel() *amqp.Channel { return c.ch }

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) Ping() error {
	if c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// DeclareTopology declares the exchanges and queues the engine uses. Safe to
// call from every process; declarations are idempotent.
func (c *Client) DeclareTopology() error {
	if err := c.ch.ExchangeDeclare(RevisionExchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.ExchangeDeclare(TicketExchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(RevisionQueue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.QueueBind(RevisionQueue, "", RevisionExchange, false, nil); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(TicketQueue, true, false, false, false, nil); err != nil {
		return err
	}
	return c.ch.QueueBind(TicketQueue, "comanda.#", TicketExchange, false, nil)
}

// Publish sends one message and waits for the broker's ack or the context.
func (c *Client) Publish(ctx context.Context, exchange, key, messageID, correlationID string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		MessageId:     messageID,
		CorrelationId: correlationID,
		Timestamp:     time.Now().UTC(),
		Body:          body,
	}); err != nil {
		return err
	}

	select {
	case conf := <-c.acks:
		if conf.Ack {
			return nil
		}
		return errors.New("publish NACK from broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume subscribes to a queue with manual acks and the given prefetch.
func (c *Client) Consume(queue, consumerTag string, prefetch int) (<-chan amqp.Delivery, error) {
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}
	return c.ch.Consume(queue, consumerTag, false, false, false, false, nil)
}
