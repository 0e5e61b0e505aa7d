package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultExchange is the fanout exchange shared by every gateway instance
const DefaultExchange = "dispatch.events"

const (
	publishTimeout   = 5 * time.Second
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
)

// channel is the subset of *amqp.Channel the relay uses
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// relayMessage is the body exchanged between instances
type relayMessage struct {
	Origin string          `json:"origin"`
	Topics []string        `json:"topics,omitempty"`
	All    bool            `json:"all,omitempty"`
	Event  json.RawMessage `json:"event"`
}

// dialFunc opens a fresh channel and the connection that owns it
type dialFunc func() (channel, io.Closer, error)

// Relay is a Publisher that delivers locally and forwards every event to the
// other gateway instances through a RabbitMQ fanout exchange. When the broker
// goes away Run reconnects with backoff.
type Relay struct {
	local    *Hub
	dial     dialFunc
	exchange string
	origin   string
	backoff  time.Duration

	mu   sync.RWMutex
	ch   channel
	conn io.Closer
}

// DialRelay connects to RabbitMQ and declares the fanout exchange
func DialRelay(url string, local *Hub) (*Relay, error) {
	dial := func() (channel, io.Closer, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("open channel: %w", err)
		}
		return ch, conn, nil
	}
	ch, conn, err := dial()
	if err != nil {
		return nil, err
	}
	r, err := newRelay(local, ch, DefaultExchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	r.conn = conn
	r.dial = dial
	return r, nil
}

func newRelay(local *Hub, ch channel, exchange string) (*Relay, error) {
	if err := declareExchange(ch, exchange); err != nil {
		return nil, err
	}
	return &Relay{
		local:    local,
		ch:       ch,
		exchange: exchange,
		origin:   uuid.New().String(),
		backoff:  reconnectBackoff,
	}, nil
}

func declareExchange(ch channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

func (r *Relay) channel() channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ch
}

// Publish delivers ev locally, then forwards it to the other instances
func (r *Relay) Publish(ev Event, topics ...string) {
	r.local.Publish(ev, topics...)
	r.forward(relayMessage{Topics: topics}, ev)
}

// PublishAll delivers ev to every local connection, then forwards it
func (r *Relay) PublishAll(ev Event) {
	r.local.PublishAll(ev)
	r.forward(relayMessage{All: true}, ev)
}

func (r *Relay) forward(msg relayMessage, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		zap.S().Errorw("failed to marshal relayed event", "event", ev.Name, "error", err)
		return
	}
	msg.Origin = r.origin
	msg.Event = payload
	body, err := json.Marshal(msg)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err = r.channel().PublishWithContext(ctx, r.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   time.Now(),
	})
	if err != nil {
		zap.S().Errorw("failed to relay event", "event", ev.Name, "error", err)
	}
}

// Run consumes events published by other instances until ctx is done. A lost
// broker connection is dialled again; only ctx ends the loop.
func (r *Relay) Run(ctx context.Context) error {
	for {
		err := r.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.dial == nil {
			return err
		}
		zap.S().Warnw("event relay interrupted", "exchange", r.exchange, "error", err)
		if err := r.reconnect(ctx); err != nil {
			return err
		}
	}
}

// reconnect dials until it succeeds or ctx is done, doubling the wait
// between attempts up to maxBackoff.
func (r *Relay) reconnect(ctx context.Context) error {
	wait := r.backoff
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		ch, conn, err := r.dial()
		if err == nil {
			err = declareExchange(ch, r.exchange)
			if err != nil && conn != nil {
				_ = conn.Close()
			}
		}
		if err == nil {
			r.mu.Lock()
			oldCh, oldConn := r.ch, r.conn
			r.ch, r.conn = ch, conn
			r.mu.Unlock()
			_ = oldCh.Close()
			if oldConn != nil {
				_ = oldConn.Close()
			}
			zap.S().Infow("event relay reconnected", "exchange", r.exchange)
			return nil
		}

		zap.S().Warnw("failed to reconnect event relay", "error", err, "retry", wait.String())
		wait = min(wait*2, maxBackoff)
	}
}

func (r *Relay) consume(ctx context.Context) error {
	ch := r.channel()
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, "", r.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	msgs, err := ch.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	zap.S().Infow("event relay started", "exchange", r.exchange, "queue", queue.Name, "origin", r.origin)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("relay channel closed")
			}
			r.deliver(d.Body)
		}
	}
}

func (r *Relay) deliver(body []byte) {
	var msg relayMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		zap.S().Warnw("discarding malformed relayed event", "error", err)
		return
	}
	if msg.Origin == r.origin {
		return
	}
	var ev struct {
		Name      string          `json:"event"`
		Data      json.RawMessage `json:"data"`
		Timestamp time.Time       `json:"timestamp"`
	}
	if err := json.Unmarshal(msg.Event, &ev); err != nil {
		zap.S().Warnw("discarding malformed relayed event", "error", err)
		return
	}
	local := Event{Name: ev.Name, Data: ev.Data, Timestamp: ev.Timestamp}
	if msg.All {
		r.local.PublishAll(local)
		return
	}
	r.local.Publish(local, msg.Topics...)
}

// Close releases the channel and connection
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.ch.Close()
	if r.conn != nil {
		if cerr := r.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
