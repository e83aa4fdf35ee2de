package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/OpsCenterRio/COR-Backend/internal/observability"
)

// Handler executes one delivery job.
type Handler func(ctx context.Context, alertID string) error

// Worker consumes delivery jobs with manual acks. A failed job under the
// attempt limit is republished with a delay; the original message is always
// acked so the broker never redelivers on its own.
type Worker struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	publisher   *Publisher
	handler     Handler
	maxAttempts int
	retryDelay  time.Duration
	metrics     *observability.Metrics
}

func NewWorker(url string, publisher *Publisher, handler Handler, maxAttempts int, retryDelay time.Duration, metrics *observability.Metrics) (*Worker, error) {
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

	// One job at a time; delivery jobs fan out to hundreds of pushes each.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Worker{
		conn:        conn,
		channel:     ch,
		publisher:   publisher,
		handler:     handler,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		metrics:     metrics,
	}, nil
}

// Run consumes until the context is canceled or the channel closes.
func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.channel.Consume(
		QueueName,
		"delivery-worker",
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	log.Printf("[worker] consuming from %s", QueueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			w.process(ctx, msg)
		}
	}
}

func (w *Worker) process(ctx context.Context, msg amqp.Delivery) {
	var job DeliveryJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		log.Printf("[worker] dropping malformed job: %v", err)
		_ = msg.Ack(false)
		return
	}

	log.Printf("[worker] job %s alert %s attempt %d/%d", job.JobID, job.AlertID, job.Attempt, w.maxAttempts)

	err := w.handler(ctx, job.AlertID)
	if err == nil {
		_ = msg.Ack(false)
		return
	}

	log.Printf("[worker] job %s failed: %v", job.JobID, err)

	if job.Attempt < w.maxAttempts {
		if w.metrics != nil {
			w.metrics.JobRetries.Inc()
		}
		// Backoff grows linearly with the attempt number.
		delay := w.retryDelay * time.Duration(job.Attempt)
		if reqErr := w.publisher.Requeue(ctx, job, delay); reqErr != nil {
			log.Printf("[worker] requeue of job %s failed: %v", job.JobID, reqErr)
		}
	} else {
		log.Printf("[worker] job %s exhausted %d attempts, giving up", job.JobID, w.maxAttempts)
	}

	_ = msg.Ack(false)
}

func (w *Worker) Close() error {
	if err := w.channel.Close(); err != nil {
		w.conn.Close()
		return err
	}
	return w.conn.Close()
}
