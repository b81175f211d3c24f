package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/MrJamesThe3rd/labelhub/internal/metrics"
	"github.com/MrJamesThe3rd/labelhub/internal/order"
)

const handleTimeout = 30 * time.Second

var ErrMalformedResult = errors.New("malformed scan result")

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailure ResultStatus = "failure"
)

// ScanResult is the message a scanning worker sends back for a job.
type ScanResult struct {
	JobID     uuid.UUID    `json:"job_id"`
	OrderID   uuid.UUID    `json:"order_id"`
	Status    ResultStatus `json:"status"`
	ResultURL string       `json:"result_url,omitempty"`
	Reason    string       `json:"reason,omitempty"`
}

//go:generate mockgen -source=consumer.go -destination=consumer_mock.go -package=queue
type ResultHandler interface {
	MarkScanSuccess(ctx context.Context, orderID uuid.UUID, resultURL string) (*order.Order, error)
	MarkScanFailure(ctx context.Context, orderID uuid.UUID, reason string) (*order.FailResult, error)
}

func decodeResult(body []byte) (ScanResult, error) {
	var res ScanResult
	if err := json.Unmarshal(body, &res); err != nil {
		return ScanResult{}, fmt.Errorf("%w: %w", ErrMalformedResult, err)
	}

	if res.OrderID == uuid.Nil {
		return ScanResult{}, fmt.Errorf("%w: missing order_id", ErrMalformedResult)
	}

	res.Status = ResultStatus(strings.ToLower(strings.TrimSpace(string(res.Status))))

	switch res.Status {
	case ResultSuccess:
	case ResultFailure:
		if strings.TrimSpace(res.Reason) == "" {
			res.Reason = "unspecified"
		}
	default:
		return ScanResult{}, fmt.Errorf("%w: unknown status %q", ErrMalformedResult, res.Status)
	}

	return res, nil
}

type disposition int

const (
	dispositionAck disposition = iota
	dispositionReject
	dispositionRequeue
)

type ConsumerConfig struct {
	Queue    string
	Workers  int
	Prefetch int
}

// Consumer applies scan results to their orders. Results for unknown orders or
// orders in the wrong state are dropped; anything else is retried.
type Consumer struct {
	ch      *amqp.Channel
	cfg     ConsumerConfig
	handler ResultHandler
	logger  *slog.Logger
}

func NewConsumer(conn *amqp.Connection, cfg ConsumerConfig, handler ResultHandler, logger *slog.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declare(ch, cfg.Queue); err != nil {
		ch.Close()
		return nil, err
	}

	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &Consumer{ch: ch, cfg: cfg, handler: handler, logger: logger}, nil
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.ch.Consume(
		c.cfg.Queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("starting result consumer", "queue", c.cfg.Queue, "workers", c.cfg.Workers)

	var wg sync.WaitGroup

	for id := range c.cfg.Workers {
		wg.Go(func() {
			c.worker(ctx, msgs, id)
		})
	}

	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}

	return errors.New("result channel closed")
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}

func (c *Consumer) worker(ctx context.Context, msgs <-chan amqp.Delivery, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("result channel closed", "worker_id", id)
				return
			}

			c.settle(msg, c.handle(ctx, msg.Body))
		}
	}
}

func (c *Consumer) settle(msg amqp.Delivery, d disposition) {
	var err error

	switch d {
	case dispositionAck:
		err = msg.Ack(false)
	case dispositionReject:
		err = msg.Nack(false, false)
	case dispositionRequeue:
		err = msg.Nack(false, true)
	}

	if err != nil {
		c.logger.Warn("failed to settle delivery", "delivery_tag", msg.DeliveryTag, "error", err)
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) disposition {
	res, err := decodeResult(body)
	if err != nil {
		metrics.ScanResults.WithLabelValues("rejected").Inc()
		c.logger.Error("dropping scan result", "error", err, "body", string(body))

		return dispositionReject
	}

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	switch res.Status {
	case ResultSuccess:
		_, err = c.handler.MarkScanSuccess(ctx, res.OrderID, res.ResultURL)
	case ResultFailure:
		_, err = c.handler.MarkScanFailure(ctx, res.OrderID, res.Reason)
	}

	switch {
	case err == nil:
		metrics.ScanResults.WithLabelValues(string(res.Status)).Inc()
		c.logger.Info("scan result applied", "order_id", res.OrderID, "job_id", res.JobID, "status", res.Status)

		return dispositionAck
	case errors.Is(err, order.ErrNotFound), errors.Is(err, order.ErrInvalidTransition), errors.Is(err, order.ErrInvalidInput):
		metrics.ScanResults.WithLabelValues("rejected").Inc()
		c.logger.Warn("scan result does not apply", "order_id", res.OrderID, "job_id", res.JobID, "error", err)

		return dispositionReject
	default:
		metrics.ScanResults.WithLabelValues("requeued").Inc()
		c.logger.Error("failed to apply scan result", "order_id", res.OrderID, "job_id", res.JobID, "error", err)

		return dispositionRequeue
	}
}
