package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"banklink/internal/relay"
)

// relayRoutingKey routes sealed relay envelopes on the shared exchange.
const relayRoutingKey = "relay.envelope"

// Relay is a relay.Channel across processes. Envelopes are signed JWTs so the
// origin a subscriber checks is the one the sender proved.
type Relay struct {
	client *Client
	secret []byte
	now    func() time.Time
}

func NewRelay(client *Client, secret string) *Relay {
	return &Relay{client: client, secret: []byte(secret), now: time.Now}
}

func (r *Relay) Send(ctx context.Context, m relay.Message) error {
	sealed, err := relay.Seal(r.secret, m, r.now())
	if err != nil {
		return err
	}
	if err := r.client.publish(ctx, relayRoutingKey, "application/jwt", []byte(sealed)); err != nil {
		return fmt.Errorf("send relay message: %w", err)
	}
	return nil
}

// Subscribe binds a private auto-delete queue; closing the subscription drops it.
func (r *Relay) Subscribe(ctx context.Context, f relay.Filter) (relay.Subscription, error) {
	if f.Origin == "" {
		return nil, relay.ErrNoOrigin
	}
	ch, err := r.client.openChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("open relay channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare relay queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, relayRoutingKey, r.client.exchangeName, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("bind relay queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consume relay queue: %w", err)
	}

	return &relaySub{
		ch:         ch,
		deliveries: deliveries,
		filter:     f,
		secret:     r.secret,
		done:       make(chan struct{}),
	}, nil
}

type relaySub struct {
	ch         *amqp091.Channel
	deliveries <-chan amqp091.Delivery
	filter     relay.Filter
	secret     []byte
	done       chan struct{}
	once       sync.Once
}

func (s *relaySub) Wait(ctx context.Context) (relay.Message, error) {
	defer s.Close()
	for {
		select {
		case <-ctx.Done():
			return relay.Message{}, ctx.Err()
		case <-s.done:
			return relay.Message{}, relay.ErrClosed
		case d, ok := <-s.deliveries:
			if !ok {
				return relay.Message{}, relay.ErrClosed
			}
			m, err := relay.Open(s.secret, string(d.Body))
			if err != nil {
				slog.WarnContext(ctx, "Discarding relay envelope", "error", err)
				continue
			}
			if !s.filter.Accepts(m) {
				slog.WarnContext(ctx, "Discarding relay message from unexpected origin",
					"origin", m.Origin,
					"type", m.Type)
				continue
			}
			return m, nil
		}
	}
}

func (s *relaySub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ch.Close()
	})
	return err
}
