package event

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/appointment-api/pkg/metrics"
)

const deliveryTimeout = 5 * time.Second

// Dispatcher fans events out to every sink on a background goroutine.
type Dispatcher struct {
	sinks   []Sink
	logger  *zerolog.Logger
	metrics *metrics.Metrics
	async   bool
}

func NewDispatcher(logger *zerolog.Logger, m *metrics.Metrics, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, logger: logger, metrics: m, async: true}
}

// Sync makes Publish deliver inline.
func (d *Dispatcher) Sync() *Dispatcher {
	d.async = false
	return d
}

func (d *Dispatcher) Publish(ctx context.Context, e Event) {
	if len(d.sinks) == 0 {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if !d.async {
		d.deliver(context.WithoutCancel(ctx), e)
		return
	}
	// The request context ends with the response; delivery must not.
	go d.deliver(context.WithoutCancel(ctx), e)
}

func (d *Dispatcher) deliver(ctx context.Context, e Event) {
	for _, sink := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		err := sink.Deliver(sctx, e)
		cancel()

		d.metrics.EventPublished(string(e.Type), sink.Name(), err)
		if err != nil {
			d.logger.Error().Err(err).
				Str("sink", sink.Name()).
				Str("event_type", string(e.Type)).
				Str("appointment_id", e.Appointment.ID.String()).
				Msg("event delivery failed")
		}
	}
}
