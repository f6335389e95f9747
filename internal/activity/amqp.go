package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// AMQP publishes events to a durable RabbitMQ queue.
type AMQP struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     *logrus.Logger
}

var _ Publisher = (*AMQP)(nil)

func NewAMQP(url, queue string, log *logrus.Logger) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return &AMQP{conn: conn, channel: channel, queue: queue, log: log}, nil
}

func (p *AMQP) Publish(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).Error("failed to encode activity event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Time,
		Body:         body,
	})
	if err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"project_id": event.ProjectID,
			"action":     event.Action,
		}).Error("failed to publish activity event")
	}
}

func (p *AMQP) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
