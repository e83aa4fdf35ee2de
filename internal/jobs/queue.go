package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/google/uuid"
)

const (
	ExchangeName = "cor.delayed"
	QueueName    = "alert.delivery"
	RoutingKey   = "alert.delivery"
)

// DeliveryJob is the wire format of one queued delivery.
type DeliveryJob struct {
	JobID   string `json:"job_id"`
	AlertID string `json:"alert_id"`
	Attempt int    `json:"attempt"`
}

// Publisher enqueues delivery jobs through a delayed-message exchange so
// retries can be scheduled with a per-message delay header.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, channel: ch}, nil
}

func declareTopology(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		ExchangeName,
		"x-delayed-message",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		amqp.Table{"x-delayed-type": "direct"},
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		QueueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// EnqueueDelivery publishes a fresh delivery job and returns its ID.
func (p *Publisher) EnqueueDelivery(ctx context.Context, alertID string) (string, error) {
	job := DeliveryJob{
		JobID:   uuid.NewString(),
		AlertID: alertID,
		Attempt: 1,
	}
	if err := p.publish(ctx, job, 0); err != nil {
		return "", err
	}
	return job.JobID, nil
}

// Requeue schedules another attempt of a failed job after the given delay.
func (p *Publisher) Requeue(ctx context.Context, job DeliveryJob, delay time.Duration) error {
	job.Attempt++
	return p.publish(ctx, job, delay)
}

func (p *Publisher) publish(ctx context.Context, job DeliveryJob, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	headers := amqp.Table{}
	if delay > 0 {
		headers["x-delay"] = delay.Milliseconds()
	}

	err = p.channel.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.JobID,
			Timestamp:    time.Now(),
			Headers:      headers,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish delivery job %s: %w", job.JobID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
