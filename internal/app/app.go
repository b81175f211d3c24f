// Package app assembles the services from configuration. The API server and
// the operator console share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/MrJamesThe3rd/labelhub/internal/audit"
	"github.com/MrJamesThe3rd/labelhub/internal/config"
	"github.com/MrJamesThe3rd/labelhub/internal/credit"
	"github.com/MrJamesThe3rd/labelhub/internal/database"
	"github.com/MrJamesThe3rd/labelhub/internal/label"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
	"github.com/MrJamesThe3rd/labelhub/internal/order"
	"github.com/MrJamesThe3rd/labelhub/internal/pricing"
	"github.com/MrJamesThe3rd/labelhub/internal/queue"
	"github.com/MrJamesThe3rd/labelhub/internal/store"
	"github.com/MrJamesThe3rd/labelhub/internal/store/memory"
	"github.com/MrJamesThe3rd/labelhub/internal/store/postgres"
)

type App struct {
	Ledger  *ledger.Service
	Credits *credit.Service
	Orders  *order.Service
	Audit   *audit.Service
	Labels  *label.Service

	cfg     *config.Config
	logger  *slog.Logger
	conn    *amqp.Connection
	closers []func()
}

// New opens storage and the queue and builds the services. Close releases
// whatever New opened, even when it fails halfway.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	backend, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	prices, err := a.loadPrices(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	policy, err := order.ParseRefundPolicy(cfg.Settlement.RefundPolicy)
	if err != nil {
		a.Close()
		return nil, err
	}

	publisher, err := a.openPublisher()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Ledger = ledger.NewService(backend)
	a.Credits = credit.NewService(a.Ledger, prices, backend)
	a.Orders = order.NewService(backend, a.Credits, publisher,
		order.WithLogger(logger),
		order.WithRefundPolicy(policy),
	)
	a.Audit = audit.NewService(backend)
	a.Labels = label.NewService(a.Orders, logger)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for _, fn := range slices.Backward(a.closers) {
		fn()
	}

	a.closers = nil
}

// RunConsumer applies scan results from RabbitMQ until ctx ends. Without a
// queue configured it returns immediately.
func (a *App) RunConsumer(ctx context.Context) error {
	if a.conn == nil {
		return nil
	}

	consumer, err := queue.NewConsumer(a.conn, queue.ConsumerConfig{
		Queue:    a.cfg.RabbitMQ.ResultsQueue,
		Workers:  a.cfg.RabbitMQ.Workers,
		Prefetch: a.cfg.RabbitMQ.Prefetch,
	}, a.Orders, a.logger)
	if err != nil {
		return err
	}

	return consumer.Run(ctx)
}

func (a *App) openStore(ctx context.Context) (store.Backend, error) {
	if a.cfg.DB.Driver == config.DriverMemory {
		a.logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil
	}

	db, err := database.New(ctx, a.cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a.closers = append(a.closers, func() { _ = db.Close() })

	pg := postgres.New(db)
	if err := pg.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return pg, nil
}

// loadPrices returns the built-in table, or the configured file reloaded on SIGHUP.
func (a *App) loadPrices(ctx context.Context) (pricing.Provider, error) {
	path := a.cfg.Pricing.File
	if path == "" {
		return pricing.NewTable(pricing.Defaults()), nil
	}

	file, err := pricing.LoadFile(path)
	if err != nil {
		return nil, err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	go func() {
		defer signal.Stop(hup)

		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := file.Reload(); err != nil {
					a.logger.Error("pricing reload failed, keeping previous prices", "error", err)
					continue
				}

				a.logger.Info("pricing reloaded", "file", path)
			}
		}
	}()

	return file, nil
}

func (a *App) openPublisher() (order.Publisher, error) {
	if a.cfg.RabbitMQ.URL == "" {
		a.logger.Warn("RABBITMQ_URL not set; scan jobs are only logged")
		return queue.NewLogPublisher(a.logger), nil
	}

	conn, err := queue.Dial(a.cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	a.conn = conn
	a.closers = append(a.closers, func() { _ = conn.Close() })

	publisher, err := queue.NewPublisher(conn, a.cfg.RabbitMQ.JobsQueue)
	if err != nil {
		return nil, err
	}

	a.closers = append(a.closers, func() { _ = publisher.Close() })

	return publisher, nil
}
