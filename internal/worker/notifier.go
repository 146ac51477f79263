package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/appointment-api/internal/service/event"
	"github.com/jwalitptl/appointment-api/pkg/messaging"
	"github.com/jwalitptl/appointment-api/pkg/metrics"
	"github.com/jwalitptl/appointment-api/pkg/retry"
)

type NotifierConfig struct {
	Channel string
	// Policy governs redelivery to a sink that fails.
	Policy retry.Policy
}

// Notifier consumes appointment events from the broker and hands each one to
// the configured sinks.
type Notifier struct {
	broker  messaging.Broker
	sinks   []event.Sink
	config  NotifierConfig
	logger  *zerolog.Logger
	metrics *metrics.Metrics
}

func NewNotifier(broker messaging.Broker, config NotifierConfig, logger *zerolog.Logger, m *metrics.Metrics, sinks ...event.Sink) *Notifier {
	if config.Channel == "" {
		config.Channel = event.Channel
	}
	if config.Policy.MaxAttempts == 0 {
		config.Policy = retry.Policy{
			MaxAttempts:     3,
			InitialInterval: time.Second,
			MaxInterval:     10 * time.Second,
			Retryable:       func(error) bool { return true },
		}
	}
	return &Notifier{broker: broker, sinks: sinks, config: config, logger: logger, metrics: m}
}

// Start blocks until ctx is cancelled or the subscription ends.
func (n *Notifier) Start(ctx context.Context) error {
	messages, err := n.broker.Subscribe(ctx, n.config.Channel)
	if err != nil {
		return err
	}

	n.logger.Info().Str("channel", n.config.Channel).Int("sinks", len(n.sinks)).Msg("notifier started")
	for {
		select {
		case <-ctx.Done():
			n.logger.Info().Msg("notifier shutting down")
			return nil
		case raw, ok := <-messages:
			if !ok {
				return fmt.Errorf("subscription to %s closed", n.config.Channel)
			}
			n.Handle(ctx, raw)
		}
	}
}

type envelope struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    event.Event `json:"payload"`
}

// Handle decodes one broker payload and delivers it. Undecodable payloads are
// logged and skipped.
func (n *Notifier) Handle(ctx context.Context, raw []byte) {
	var msg envelope
	if err := json.Unmarshal(raw, &msg); err != nil {
		n.logger.Error().Err(err).Msg("discarding undecodable event")
		return
	}
	e := msg.Payload
	if e.Appointment == nil {
		n.logger.Warn().Str("event_type", msg.Type).Msg("event without appointment, skipping")
		return
	}

	for _, sink := range n.sinks {
		err := n.config.Policy.Do(ctx, func(ctx context.Context) error {
			return sink.Deliver(ctx, e)
		})
		n.metrics.EventPublished(string(e.Type), sink.Name(), err)
		if err != nil {
			n.logger.Error().Err(err).
				Str("sink", sink.Name()).
				Str("event_type", string(e.Type)).
				Str("appointment_id", e.Appointment.ID.String()).
				Msg("notification failed")
			continue
		}
		n.logger.Debug().
			Str("sink", sink.Name()).
			Str("event_type", string(e.Type)).
			Str("appointment_id", e.Appointment.ID.String()).
			Msg("notification delivered")
	}
}
