// Package queue wraps hibiken/asynq with the two named queues the gateway
// dispatches work through: payments and webhooks. Every task is enqueued
// with a caller-supplied TaskID so a redelivered job (e.g. a retried HTTP
// request that re-triggers enqueue) is deduplicated by asynq itself rather
// than by application code.
package queue

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueuePayments carries ProcessPayment tasks.
	QueuePayments = "payments"
	// QueueWebhooks carries DeliverWebhook tasks.
	QueueWebhooks = "webhooks"

	// TypeProcessPayment is the asynq task type for resolving a pending payment.
	TypeProcessPayment = "payment:process"
	// TypeDeliverWebhook is the asynq task type for delivering one webhook event.
	TypeDeliverWebhook = "webhook:deliver"
)

// ProcessPaymentPayload is the JSON body of a TypeProcessPayment task.
type ProcessPaymentPayload struct {
	PaymentID string `json:"payment_id"`
}

// DeliverWebhookPayload is the JSON body of a TypeDeliverWebhook task.
type DeliverWebhookPayload struct {
	EventID string `json:"event_id"`
}

// Client enqueues payment and webhook tasks onto their respective queues.
type Client struct {
	asynq *asynq.Client
}

// NewClient builds a Client backed by the given Redis connection options.
func NewClient(redisOpt asynq.RedisConnOpt) *Client {
	return &Client{asynq: asynq.NewClient(redisOpt)}
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	return c.asynq.Close()
}

// EnqueueProcessPayment schedules a payment for processing, deduplicated by
// payment id: re-enqueuing the same payment id before the task has been
// archived or completed is a no-op.
func (c *Client) EnqueueProcessPayment(paymentID string) (*asynq.TaskInfo, error) {
	task, err := newTask(TypeProcessPayment, ProcessPaymentPayload{PaymentID: paymentID})
	if err != nil {
		return nil, err
	}
	info, err := c.asynq.Enqueue(task,
		asynq.Queue(QueuePayments),
		asynq.TaskID(paymentID),
		asynq.MaxRetry(3),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil, nil
	}
	return info, err
}

// EnqueueDeliverWebhook schedules a webhook event for delivery, deduplicated
// by event id. processAt, when non-zero, delays the task until that time
// (used to schedule a retry's backoff without busy-polling).
func (c *Client) EnqueueDeliverWebhook(eventID string, processAt time.Time) (*asynq.TaskInfo, error) {
	task, err := newTask(TypeDeliverWebhook, DeliverWebhookPayload{EventID: eventID})
	if err != nil {
		return nil, err
	}

	opts := []asynq.Option{
		asynq.Queue(QueueWebhooks),
		asynq.TaskID(eventID),
		asynq.MaxRetry(0), // retries are modeled explicitly via webhook_events, not asynq's own retry
	}
	if !processAt.IsZero() {
		opts = append(opts, asynq.ProcessAt(processAt))
	}
	info, err := c.asynq.Enqueue(task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil, nil
	}
	return info, err
}

func newTask(taskType string, payload interface{}) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, b), nil
}
