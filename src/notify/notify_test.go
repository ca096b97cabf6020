package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	exchange string
	key      string
	msgs     []amqp091.Publishing
	err      error
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.exchange = exchange
	c.key = key
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func TestAMQPPublisherPublishesEvent(t *testing.T) {
	ch := &fakeChannel{}
	p := newAMQPPublisher(ch, "budgee.events", nil)
	p.now = func() time.Time { return time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC) }

	require.NoError(t, p.Publish(context.Background(), 42, models.EventEnvelopesChanged))

	assert.Equal(t, "budgee.events", ch.exchange)
	assert.Equal(t, "user.42.envelopes-changed", ch.key)
	require.Len(t, ch.msgs, 1)
	msg := ch.msgs[0]
	assert.Equal(t, "application/json", msg.ContentType)

	event, err := EventFromJSON(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, int64(42), event.UserID)
	assert.Equal(t, models.EventEnvelopesChanged, event.Kind)
	assert.Equal(t, msg.MessageId, event.ID)
	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err)
	assert.True(t, event.OccurredAt.Equal(p.now()))
}

func TestAMQPPublisherWrapsErrors(t *testing.T) {
	broker := errors.New("channel closed")
	p := newAMQPPublisher(&fakeChannel{err: broker}, "budgee.events", nil)
	err := p.Publish(context.Background(), 1, models.EventAccountsChanged)
	assert.ErrorIs(t, err, broker)
}

func TestEventIDsAreUnique(t *testing.T) {
	now := time.Now()
	a := NewEvent(1, models.EventTransactionsChanged, now)
	b := NewEvent(1, models.EventTransactionsChanged, now)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "user.1.transactions-changed", a.RoutingKey())
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Config{Output: &buf, Format: "json"})
	require.NoError(t, NewLogPublisher(log).Publish(context.Background(), 9, models.EventAccountsChanged))
	assert.Contains(t, buf.String(), `"event_kind":"accounts-changed"`)
	assert.Contains(t, buf.String(), `"component":"notify"`)

	assert.NoError(t, Nop{}.Publish(context.Background(), 9, models.EventAccountsChanged))
}
