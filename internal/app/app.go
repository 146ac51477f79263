// Package app assembles the API process from configuration: storage, event
// delivery, services, middleware and routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/appointment-api/internal/config"
	"github.com/jwalitptl/appointment-api/internal/email"
	"github.com/jwalitptl/appointment-api/internal/handler"
	appointmentHandler "github.com/jwalitptl/appointment-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/appointment-api/internal/handler/auth"
	doctorHandler "github.com/jwalitptl/appointment-api/internal/handler/doctor"
	"github.com/jwalitptl/appointment-api/internal/handler/health"
	"github.com/jwalitptl/appointment-api/internal/middleware"
	"github.com/jwalitptl/appointment-api/internal/repository"
	"github.com/jwalitptl/appointment-api/internal/repository/memory"
	"github.com/jwalitptl/appointment-api/internal/repository/postgres"
	"github.com/jwalitptl/appointment-api/internal/router"
	appointmentService "github.com/jwalitptl/appointment-api/internal/service/appointment"
	authService "github.com/jwalitptl/appointment-api/internal/service/auth"
	availabilityService "github.com/jwalitptl/appointment-api/internal/service/availability"
	"github.com/jwalitptl/appointment-api/internal/service/event"
	userService "github.com/jwalitptl/appointment-api/internal/service/user"
	"github.com/jwalitptl/appointment-api/pkg/auth"
	"github.com/jwalitptl/appointment-api/pkg/logger"
	"github.com/jwalitptl/appointment-api/pkg/messaging"
	"github.com/jwalitptl/appointment-api/pkg/messaging/redis"
	"github.com/jwalitptl/appointment-api/pkg/metrics"
	"github.com/jwalitptl/appointment-api/pkg/security"
	"github.com/jwalitptl/appointment-api/pkg/validator"
)

// App is a fully wired API process.
type App struct {
	Engine  *gin.Engine
	Metrics *metrics.Metrics

	logger  zerolog.Logger
	closers []func() error
}

type options struct {
	now        func() time.Time
	broker     messaging.Broker
	mailer     email.Service
	syncEvents bool
}

type Option func(*options)

// WithClock replaces the wall clock used for booking rules.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithBroker uses b instead of dialing redis.url.
func WithBroker(b messaging.Broker) Option {
	return func(o *options) { o.broker = b }
}

// WithMailer uses m instead of the SMTP settings.
func WithMailer(m email.Service) Option {
	return func(o *options) { o.mailer = m }
}

// WithSyncEvents delivers events before the request returns.
func WithSyncEvents() Option {
	return func(o *options) { o.syncEvents = true }
}

type stores struct {
	users        repository.UserRepository
	availability repository.AvailabilityRepository
	appointments repository.AppointmentRepository
	pinger       repository.Pinger
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	if err := validator.RegisterGin(); err != nil {
		return nil, err
	}

	hours, err := cfg.Scheduling.OperatingHours()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Scheduling.Location()
	if err != nil {
		return nil, fmt.Errorf("scheduling.timezone: %w", err)
	}

	a := &App{logger: log, Metrics: metrics.NewMetrics("appointment_api")}

	st, err := a.openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	checks := map[string]repository.Pinger{"storage": st.pinger}

	broker := o.broker
	if broker == nil && cfg.Redis.URL != "" {
		broker, err = redis.NewRedisBroker(redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, logger.Component(log, "broker"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, broker.Close)
	}
	if p, ok := broker.(repository.Pinger); ok {
		checks["broker"] = p
	}

	mailer := o.mailer
	if mailer == nil && cfg.SMTP.Enabled() {
		mailer = email.NewSMTPService(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	// With a broker, email goes out from the notifier worker.
	var sinks []event.Sink
	switch {
	case broker != nil:
		sinks = append(sinks, event.NewBrokerSink(broker))
	case mailer != nil:
		sinks = append(sinks, event.NewEmailSink(mailer))
	default:
		log.Warn().Msg("no broker or SMTP configured, appointment events are dropped")
	}
	dispatcher := event.NewDispatcher(logger.Component(log, "events"), a.Metrics, sinks...)
	if o.syncEvents {
		dispatcher.Sync()
	}

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	authSvc := authService.NewService(st.users, jwtSvc, security.NewBcryptHasher(cfg.Security.BcryptCost))
	userSvc := userService.NewService(st.users)
	availabilitySvc := availabilityService.NewService(st.availability, st.users, hours)
	appointmentSvc := appointmentService.NewService(
		st.appointments,
		st.users,
		availabilitySvc,
		hours,
		appointmentService.WithClock(o.now),
		appointmentService.WithLocation(loc),
		appointmentService.WithPublisher(dispatcher),
		appointmentService.WithMetrics(a.Metrics),
	)

	authMiddleware := middleware.NewAuthMiddleware(authSvc)

	r := router.NewRouter(authMiddleware, router.Handlers{
		Health: health.NewHandler(checks),
		Public: []handler.Handler{
			authHandler.NewHandler(authSvc, authMiddleware.Authenticate()),
		},
		Secured: []handler.Handler{
			doctorHandler.NewHandler(userSvc, availabilitySvc, appointmentSvc),
			appointmentHandler.NewHandler(appointmentSvc),
		},
	}, a.Metrics, router.RouterConfig{
		RateLimit:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:      cfg.RateLimit.Burst,
		RateLimitOff:   !cfg.RateLimit.Enabled,
		CORSConfig:     middleware.DefaultCORSConfig(cfg.Security.AllowedOrigins...),
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         *logger.Component(log, "http"),
	})
	a.Engine = r.Setup()

	return a, nil
}

func (a *App) openStorage(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Storage.Driver {
	case "memory":
		a.logger.Warn().Msg("using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &stores{
			users:        store.Users(),
			availability: store.Availability(),
			appointments: store.Appointments(),
			pinger:       store,
		}, nil
	case "postgres":
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			a.Close()
			return nil, err
		}
		base := postgres.NewBaseRepository(db)
		return &stores{
			users:        postgres.NewUserRepository(base),
			availability: postgres.NewAvailabilityRepository(base),
			appointments: postgres.NewAppointmentRepository(base),
			pinger:       &base,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage.driver %q", cfg.Storage.Driver)
	}
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
