package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"

	"github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// AMQPPublisher publishes change events to a topic exchange.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	exchange string
	log      *logging.Logger
	now      func() time.Time

	mu sync.Mutex // amqp091 channels are not safe for concurrent publishing
	ch channel
}

func NewAMQPPublisher(url, exchange string, log *logging.Logger) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	p := newAMQPPublisher(ch, exchange, log)
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch channel, exchange string, log *logging.Logger) *AMQPPublisher {
	if log == nil {
		log = logging.Nop()
	}
	return &AMQPPublisher{
		ch:       ch,
		exchange: exchange,
		log:      log.WithComponent(logging.ComponentNotify),
		now:      time.Now,
	}
}

func (p *AMQPPublisher) Publish(ctx context.Context, userID int64, kind models.EventKind) error {
	event := NewEvent(userID, kind, p.now())
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	err = p.ch.PublishWithContext(
		ctx,
		p.exchange,         // exchange
		event.RoutingKey(), // routing key
		false,              // mandatory
		false,              // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			MessageId:   event.ID,
			Timestamp:   event.OccurredAt,
			Body:        body,
		},
	)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}

	p.log.DebugContext(ctx, "Published change event",
		logging.FieldUserID, userID,
		logging.FieldEventKind, string(kind),
		"event_id", event.ID)
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
