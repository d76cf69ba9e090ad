package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	QueueBookingCreated = "booking.created"
	QueueTicketReleased = "ticket.released"
	QueueTicketUsed     = "ticket.used"
)

var ErrClosed = errors.New("publisher closed")

type Config struct {
	URL    string
	Queues []string
}

// Publisher sends persistent JSON messages to durable queues through the
// default exchange. It redials once when the broker dropped the connection.
type Publisher struct {
	cfg Config
	log *slog.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

func New(ctx context.Context, cfg Config, log *slog.Logger) (*Publisher, error) {
	const op = "rabbitmq.New"

	if len(cfg.Queues) == 0 {
		cfg.Queues = []string{QueueBookingCreated, QueueTicketReleased, QueueTicketUsed}
	}

	p := &Publisher{cfg: cfg, log: log}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connect(ctx); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return p, nil
}

// connect must be called with mu held.
func (p *Publisher) connect(ctx context.Context) error {
	conn, err := amqp.DialConfig(p.cfg.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Dial:      amqp.DefaultDial(5 * time.Second),
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("channel: %w", err)
	}

	for _, q := range p.cfg.Queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return fmt.Errorf("declare %s: %w", q, err)
		}
	}

	if err := ctx.Err(); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	p.conn = conn
	p.ch = ch

	return nil
}

// Publish marshals v and sends it to the queue named by routingKey.
func (p *Publisher) Publish(ctx context.Context, routingKey string, v any) error {
	const op = "rabbitmq.Publisher.Publish"

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("%s:%w", op, ErrClosed)
	}

	if p.ch == nil || p.ch.IsClosed() {
		p.log.Warn("rabbitmq channel closed, reconnecting")
		p.release()
		if err := p.connect(ctx); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
	}

	if err := p.ch.PublishWithContext(ctx, "", routingKey, false, false, msg); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// release must be called with mu held.
func (p *Publisher) release() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.release()

	return nil
}
