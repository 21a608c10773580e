package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"drawing-trainer/core/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrMalformedMessage marks a delivery that cannot be dispatched to a handler
var ErrMalformedMessage = errors.New("malformed job message")

// JobMessage is the payload delivered for one training job
type JobMessage struct {
	JobID  string                `json:"jobId"`
	Config models.TrainingConfig `json:"config"`
}

// ParseJobMessage decodes and validates a delivery body
func ParseJobMessage(body []byte) (JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return JobMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.JobID == "" {
		return JobMessage{}, fmt.Errorf("%w: missing jobId", ErrMalformedMessage)
	}
	return msg, nil
}

// Handler processes one job message. A nil return acknowledges the delivery;
// any error rejects it without requeue.
type Handler func(ctx context.Context, msg JobMessage) error

// Consumer delivers training job messages one at a time
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewConsumer connects to the broker, declares the durable job queue and
// limits delivery to one unacknowledged message at a time
func NewConsumer(url, queueName string) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	// Only process one job at a time
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	return &Consumer{conn: conn, channel: ch, queue: queueName}, nil
}

// Consume blocks delivering messages to handler until ctx is done or the
// delivery channel closes
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	log.Println("Waiting for training jobs...")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handleDelivery(ctx, d, handler)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler) {
	msg, err := ParseJobMessage(d.Body)
	if err != nil {
		log.Printf("Rejecting message: %v", err)
		if err := d.Nack(false, false); err != nil {
			log.Printf("Failed to reject message: %v", err)
		}
		return
	}

	// Process shutdown ends the delivery wait, not a job already accepted;
	// an accepted job stops at its own cancellation probe or runs to
	// completion so its status row and message stay consistent.
	if err := handler(context.WithoutCancel(ctx), msg); err != nil {
		log.Printf("Error processing job %s: %v", msg.JobID, err)
		// Failed jobs are not requeued; resubmission is an operator decision
		if err := d.Nack(false, false); err != nil {
			log.Printf("Failed to reject job %s: %v", msg.JobID, err)
		}
		return
	}

	if err := d.Ack(false); err != nil {
		log.Printf("Failed to acknowledge job %s: %v", msg.JobID, err)
	}
}

// Close releases the channel and connection
func (c *Consumer) Close() error {
	c.channel.Close()
	return c.conn.Close()
}
