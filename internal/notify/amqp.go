package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shoplive-backend/internal/events"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Publisher bridges reservation events onto a durable queue for the
// notification collaborator. Delivery here is best effort: the ledger has
// already committed (and an outbox row written) before this code runs, so a
// broker outage loses a push, never ledger consistency.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

// Envelope is the wire shape the notification consumer receives.
type Envelope struct {
	Topic     string      `json:"topic"`
	Payload   interface{} `json:"payload"`
	EmittedAt time.Time   `json:"emitted_at"`
}

// NewPublisher connects and declares the durable queue.
func NewPublisher(url, queueName string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	q, err := channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}
	return &Publisher{conn: conn, channel: channel, queue: q}, nil
}

// Register subscribes the publisher to the events the notification
// collaborator cares about.
func (p *Publisher) Register(bus *events.Bus) {
	forward := func(topic events.Topic) events.Handler {
		return func(ctx context.Context, payload interface{}) {
			p.publish(ctx, topic, payload)
		}
	}
	bus.Subscribe(events.TopicReservationCreated, forward(events.TopicReservationCreated))
	bus.Subscribe(events.TopicReservationPromoted, forward(events.TopicReservationPromoted))
	bus.Subscribe(events.TopicHoldAdded, forward(events.TopicHoldAdded))
}

func (p *Publisher) publish(ctx context.Context, topic events.Topic, payload interface{}) {
	body, err := json.Marshal(Envelope{
		Topic:     string(topic),
		Payload:   payload,
		EmittedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("topic", string(topic)).Msg("notify: marshal failed")
		return
	}
	err = p.channel.PublishWithContext(
		ctx,
		"",           // exchange
		p.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		log.Error().Err(err).Str("topic", string(topic)).Msg("notify: publish failed")
	}
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
