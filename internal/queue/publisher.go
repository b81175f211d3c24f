// Package queue connects order settlement to the scanning workers over
// RabbitMQ: scan jobs go out on one durable queue and scan results come back
// on another.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/MrJamesThe3rd/labelhub/internal/order"
)

const publishTimeout = 5 * time.Second

func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	return conn, nil
}

func declare(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return nil
}

// Publisher sends scan jobs as persistent JSON messages.
type Publisher struct {
	mu    sync.Mutex
	ch    *amqp.Channel
	queue string
}

func NewPublisher(conn *amqp.Connection, queue string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declare(ch, queue); err != nil {
		ch.Close()
		return nil, err
	}

	return &Publisher{ch: ch, queue: queue}, nil
}

func (p *Publisher) PublishScanJob(ctx context.Context, job order.ScanJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding scan job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.JobID.String(),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publishing scan job %s: %w", job.JobID, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.Close()
}

// LogPublisher stands in for the queue when RabbitMQ is not configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishScanJob(ctx context.Context, job order.ScanJob) error {
	p.logger.InfoContext(ctx, "scan job queued",
		"job_id", job.JobID,
		"order_id", job.OrderID,
		"user_id", job.UserID,
		"carrier", job.Carrier,
		"tracking_code", job.TrackingCode,
	)

	return nil
}
