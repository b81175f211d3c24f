package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/labelhub/internal/app"
	"github.com/MrJamesThe3rd/labelhub/internal/auth"
	"github.com/MrJamesThe3rd/labelhub/internal/config"
	labelhubHttp "github.com/MrJamesThe3rd/labelhub/internal/http"
	accountHandler "github.com/MrJamesThe3rd/labelhub/internal/http/account"
	orderHandler "github.com/MrJamesThe3rd/labelhub/internal/http/order"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	go func() {
		if err := svc.RunConsumer(ctx); err != nil {
			logger.Error("result consumer stopped", "error", err)
		}
	}()

	var (
		accountH = accountHandler.NewHandler(svc.Ledger, svc.Credits, svc.Audit)
		orderH   = orderHandler.NewHandler(svc.Orders, svc.Labels)
	)

	router := labelhubHttp.New(auth.New(cfg.JWT.Secret, cfg.JWT.TTL), accountH, orderH, labelhubHttp.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("starting server", "app", cfg.App.Name, "addr", srv.Addr, "driver", cfg.DB.Driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
