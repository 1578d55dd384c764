package queue

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/quizhive/api/domain"
)

const badgeQueueName = "badge_events"

// BadgePublisher delivers earned-badge events to a RabbitMQ queue for the
// rewards pipeline. Delivery is at-least-once; consumers dedupe on
// (userId, badgeId, sequenceId).
type BadgePublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewBadgePublisher(amqpURL string) (*BadgePublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	_, err = channel.QueueDeclare(badgeQueueName, true, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &BadgePublisher{conn: conn, channel: channel}, nil
}

func (p *BadgePublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}

func (p *BadgePublisher) IssueBadge(ctx context.Context, event domain.BadgeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.channel.PublishWithContext(ctx, "", badgeQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}
