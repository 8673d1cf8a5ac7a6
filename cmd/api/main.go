package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"controlroom.busops.org/internal/app"
	"controlroom.busops.org/internal/appconf"
	"controlroom.busops.org/internal/logging"
	"controlroom.busops.org/internal/restapi"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is normal; real environment variables are not overridden.
	envFileErr := godotenv.Load()

	cfg, err := loadConfig(os.Args[1:], os.LookupEnv, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := logging.NewStructuredLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)
	if envFileErr != nil {
		logger.Debug("no .env file loaded", slog.String("error", envFileErr.Error()))
	}

	if err := run(cfg, logger); err != nil {
		logging.LogError(logger, "control room stopped with error", err)
		os.Exit(1)
	}
}

func run(cfg appconf.Config, logger *slog.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer logging.HandleDeferredError(&err, application.Shutdown, logger, "application_shutdown")

	if err := application.Start(ctx); err != nil {
		return err
	}

	api := restapi.NewRestAPI(application)
	defer api.Close()

	// Marker streams only end when their request context does.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.Handler(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelRequests)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			slog.String("addr", srv.Addr),
			slog.String("env", cfg.Env.String()),
			slog.String("mode", string(cfg.Mode)),
			slog.String("store", string(cfg.StoreBackend)))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
