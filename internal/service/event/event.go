package event

import (
	"context"
	"time"

	"github.com/jwalitptl/appointment-api/internal/model"
)

type EventType string

const (
	AppointmentCreated       EventType = "appointment.created"
	AppointmentStatusChanged EventType = "appointment.status_changed"
)

// Channel is the pub/sub channel appointment events are written to.
const Channel = "appointments"

// Event is emitted after a committed appointment change.
type Event struct {
	Type        EventType               `json:"type"`
	OccurredAt  time.Time               `json:"occurred_at"`
	Appointment *model.Appointment      `json:"appointment"`
	From        model.AppointmentStatus `json:"from,omitempty"`
	To          model.AppointmentStatus `json:"to,omitempty"`
}

// Publisher is what services depend on. Publishing is best effort: it never
// fails the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
