package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/warp/recognition-engine/generic"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a channel with the queue declared.
type dialFunc func(url, queue string) (channel, func() error, error)

// Publisher sends rendered notifications to a durable RabbitMQ queue. The
// connection is opened lazily and reopened after a failed publish.
type Publisher struct {
	url   string
	queue string
	log   *zap.Logger
	clock generic.Clock
	dial  dialFunc

	mu        sync.Mutex
	ch        channel
	closeConn func() error
}

func NewPublisher(url, queue string, log *zap.Logger, clock generic.Clock) *Publisher {
	return newPublisher(url, queue, log, clock, dialAMQP)
}

func newPublisher(url, queue string, log *zap.Logger, clock generic.Clock, dial dialFunc) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Publisher{url: url, queue: queue, log: log.Named("amqp"), clock: clock, dial: dial}
}

func dialAMQP(url, queue string) (channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel open failed: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq queue declare failed: %w", err)
	}
	return ch, conn.Close, nil
}

func (p *Publisher) Notify(ctx context.Context, n generic.Notification) error {
	m := Render(n, p.clock.Now())
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		if p.ch, p.closeConn, err = p.dial(p.url, p.queue); err != nil {
			return err
		}
	}
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    m.SentAt,
		Type:         string(m.Purpose),
		Body:         body,
	})
	if err != nil {
		p.resetLocked()
		return fmt.Errorf("rabbitmq publish failed: %w", err)
	}
	p.log.Debug("notification published", zap.String("queue", p.queue), zap.Int64("entry_id", int64(m.EntryID)))
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resetLocked()
}

func (p *Publisher) resetLocked() error {
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.closeConn != nil {
		if cerr := p.closeConn(); err == nil {
			err = cerr
		}
	}
	p.ch, p.closeConn = nil, nil
	return err
}

var _ generic.Notifier = (*Publisher)(nil)
