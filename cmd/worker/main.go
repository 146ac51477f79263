package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/appointment-api/internal/config"
	"github.com/jwalitptl/appointment-api/internal/email"
	"github.com/jwalitptl/appointment-api/internal/service/event"
	"github.com/jwalitptl/appointment-api/internal/worker"
	"github.com/jwalitptl/appointment-api/pkg/logger"
	"github.com/jwalitptl/appointment-api/pkg/messaging/redis"
	"github.com/jwalitptl/appointment-api/pkg/metrics"
)

// The worker turns broker events into participant emails.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	l := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Service: "appointment-worker"})
	logger.SetGlobal(l)

	if cfg.Redis.URL == "" {
		log.Fatal().Msg("redis.url is required for the notification worker")
	}
	if !cfg.SMTP.Enabled() {
		log.Fatal().Msg("smtp.host is required for the notification worker")
	}

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, logger.Component(l, "broker"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Redis broker")
	}
	defer broker.Close()

	mailer := email.NewSMTPService(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	m := metrics.NewMetrics("appointment_worker")
	notifier := worker.NewNotifier(broker, worker.NotifierConfig{}, logger.Component(l, "notifier"), m, event.NewEmailSink(mailer))

	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", m.HTTPHandler())
	health := &http.Server{Addr: ":8081", Handler: mux}
	go func() {
		if err := health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := notifier.Start(ctx); err != nil {
		log.Error().Err(err).Msg("notifier stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = health.Shutdown(shutdownCtx)
	log.Info().Msg("worker exited")
}
