// Package rabbitmq carries work-order tracking events between the dispatch
// side and the connection gateway. One fanout exchange acts as the shared
// channel; every subscriber gets its own exclusive queue bound to it.
//
// The broker is strictly best-effort: a failed or absent connection turns
// Publish into a logged no-op. Business writes must never wait on, or fail
// because of, tracking continuity.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"aaron-services/internal/domain/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Variable so tests can shrink the wait.
var reconnectInterval = 3 * time.Second

type Bus struct {
	url     string
	channel string
	log     *zap.SugaredLogger

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	handlers []func(models.Envelope)
	closed   bool
}

func NewBus(url, channel string, log *zap.SugaredLogger) *Bus {
	return &Bus{url: url, channel: channel, log: log}
}

// Connect dials the broker and declares the shared exchange. The caller may
// ignore the error and keep the Bus: an unconnected Bus stays usable as a
// no-op publisher, and a background redial keeps trying until the broker
// accepts or the bus is closed.
func (b *Bus) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.connectLocked()
	if err != nil {
		go b.redial()
	}
	return err
}

func (b *Bus) connectLocked() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		b.channel, // name
		"fanout",  // type
		true,      // durable
		false,     // auto-deleted
		false,     // internal
		false,     // no-wait
		nil,       // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", b.channel, err)
	}

	b.conn = conn
	b.ch = ch
	b.log.Infow("connected to RabbitMQ", "exchange", b.channel)

	for _, handler := range b.handlers {
		if err := b.consumeLocked(handler); err != nil {
			b.log.Errorw("failed to restart consumer", "error", err)
		}
	}

	go b.watchConnection(conn)
	return nil
}

// watchConnection redials after the broker drops the connection and binds
// every registered handler to the same exchange again.
func (b *Bus) watchConnection(conn *amqp.Connection) {
	errCh := conn.NotifyClose(make(chan *amqp.Error, 1))
	closeErr, ok := <-errCh
	if !ok {
		return // clean shutdown
	}
	b.log.Warnw("RabbitMQ connection lost", "error", closeErr)
	b.redial()
}

// redial retries the connection until the broker accepts or the bus is
// closed. connectLocked binds every registered handler again on success.
func (b *Bus) redial() {
	for {
		time.Sleep(reconnectInterval)

		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return
		}
		err := b.connectLocked()
		b.mu.Unlock()
		if err == nil {
			return
		}
		b.log.Warnw("RabbitMQ reconnect failed, retrying", "error", err, "retry_in", reconnectInterval)
	}
}

// Publish sends one envelope on the shared channel. When the broker is
// unreachable the event is dropped with a warning; the business write that
// produced it has already been committed.
func (b *Bus) Publish(ctx context.Context, env models.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ch == nil || b.conn == nil || b.conn.IsClosed() {
		b.log.Warnw("bus unavailable, dropping event", "type", env.Type)
		return nil
	}

	err = b.ch.PublishWithContext(ctx,
		b.channel, // exchange
		"",        // routing key (fanout)
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		})
	if err != nil {
		b.log.Warnw("failed to publish event", "type", env.Type, "error", err)
		return nil
	}
	return nil
}

// Subscribe registers a handler for every envelope on the channel. Handlers
// run on the consumer goroutine and must not block. Registration survives
// reconnects.
func (b *Bus) Subscribe(handler func(models.Envelope)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = append(b.handlers, handler)
	if b.ch == nil {
		b.log.Warnw("bus unavailable, subscription deferred until reconnect")
		return
	}
	if err := b.consumeLocked(handler); err != nil {
		b.log.Errorw("failed to start consumer", "error", err)
	}
}

func (b *Bus) consumeLocked(handler func(models.Envelope)) error {
	q, err := b.ch.QueueDeclare(
		"",    // name (server generated)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := b.ch.QueueBind(q.Name, "", b.channel, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", q.Name, err)
	}

	msgs, err := b.ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for msg := range msgs {
			env, err := models.ParseEnvelope(msg.Body)
			if err != nil {
				b.log.Warnw("dropping unparseable bus message", "error", err)
				continue
			}
			handler(env)
		}
	}()
	return nil
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.ch != nil {
		b.ch.Close()
		b.ch = nil
	}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}
