package event

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/appointment-api/internal/email"
	"github.com/jwalitptl/appointment-api/internal/model"
	"github.com/jwalitptl/appointment-api/pkg/messaging"
)

// BrokerSink publishes events on the appointments channel.
type BrokerSink struct {
	broker messaging.Broker
}

func NewBrokerSink(broker messaging.Broker) *BrokerSink {
	return &BrokerSink{broker: broker}
}

func (s *BrokerSink) Name() string { return "broker" }

func (s *BrokerSink) Deliver(ctx context.Context, e Event) error {
	return s.broker.Publish(ctx, Channel, messaging.Message{
		Type:       string(e.Type),
		OccurredAt: e.OccurredAt,
		Payload:    e,
	})
}

// sentTTL bounds how long a delivered recipient is remembered for redelivery
// of the same event.
const sentTTL = time.Hour

// EmailSink notifies the participants of an appointment by email. A recipient
// that already received an event is skipped when the event is delivered again,
// so retrying after a partial failure only mails the ones that missed it.
type EmailSink struct {
	mailer email.Service
	sent   *cache.Cache
}

func NewEmailSink(mailer email.Service) *EmailSink {
	return &EmailSink{mailer: mailer, sent: cache.New(sentTTL, 2*sentTTL)}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(ctx context.Context, e Event) error {
	apt := e.Appointment
	subject, body := render(e)

	var errs []string
	for _, ref := range []model.UserRef{apt.Patient, apt.Doctor} {
		who, ok := ref.Snapshot()
		if !ok || who.Email == "" {
			continue
		}
		key := deliveryKey(e, who.Email)
		if _, done := s.sent.Get(key); done {
			continue
		}
		if err := s.mailer.SendCustom(ctx, who.Email, subject, body); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		s.sent.SetDefault(key, struct{}{})
	}
	if len(errs) > 0 {
		return fmt.Errorf("email delivery: %s", strings.Join(errs, "; "))
	}
	return nil
}

func deliveryKey(e Event, to string) string {
	return fmt.Sprintf("%s|%s|%s|%d|%s", e.Appointment.ID, e.Type, e.To, e.OccurredAt.UnixNano(), to)
}

func render(e Event) (string, string) {
	apt := e.Appointment
	doctor := apt.Doctor.ID()
	if snap, ok := apt.Doctor.Snapshot(); ok && snap.Name != "" {
		doctor = snap.Name
	}

	switch e.Type {
	case AppointmentCreated:
		return "Appointment requested",
			fmt.Sprintf("An appointment with %s on %s at %s has been requested.\nReason: %s\n",
				doctor, apt.Date, apt.Time, apt.Reason)
	default:
		return fmt.Sprintf("Appointment %s", e.To),
			fmt.Sprintf("The appointment with %s on %s at %s changed from %s to %s.\n",
				doctor, apt.Date, apt.Time, e.From, e.To)
	}
}
