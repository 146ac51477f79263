package appointment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/appointment-api/internal/model"
	"github.com/jwalitptl/appointment-api/internal/repository"
	"github.com/jwalitptl/appointment-api/internal/service/event"
	apperrors "github.com/jwalitptl/appointment-api/pkg/errors"
	"github.com/jwalitptl/appointment-api/pkg/metrics"
)

// AvailabilityReader supplies a doctor's weekly windows.
type AvailabilityReader interface {
	Get(ctx context.Context, doctorID uuid.UUID) ([]*model.Availability, error)
}

type Service struct {
	repo         repository.AppointmentRepository
	users        repository.UserRepository
	availability AvailabilityReader
	events       event.Publisher
	metrics      *metrics.Metrics
	hours        model.OperatingHours
	loc          *time.Location
	now          func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone appointment dates and times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithPublisher(p event.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(
	repo repository.AppointmentRepository,
	users repository.UserRepository,
	availability AvailabilityReader,
	hours model.OperatingHours,
	opts ...Option,
) *Service {
	s := &Service{
		repo:         repo,
		users:        users,
		availability: availability,
		events:       event.Nop{},
		hours:        hours,
		loc:          time.Local,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create books a pending appointment. Patients book for themselves; doctors
// book into their own calendar on a patient's behalf.
func (s *Service) Create(ctx context.Context, actor model.Actor, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return nil, apperrors.Validation("invalid doctor_id %q", req.DoctorID)
	}

	var patientID uuid.UUID
	switch actor.Role {
	case model.RolePatient:
		patientID = actor.ID
		if req.PatientID != "" && req.PatientID != actor.ID.String() {
			return nil, apperrors.Forbidden("patients may only book for themselves")
		}
	case model.RoleDoctor:
		if doctorID != actor.ID {
			return nil, apperrors.Forbidden("doctors may only book into their own calendar")
		}
		if patientID, err = uuid.Parse(req.PatientID); err != nil {
			return nil, apperrors.Validation("patient_id is required when a doctor books")
		}
	default:
		return nil, apperrors.Forbidden("unknown role")
	}

	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, apperrors.Validation("invalid date %q", req.Date)
	}
	at, err := model.ParseClock(req.Time)
	if err != nil {
		return nil, apperrors.Validation("invalid time %q", req.Time)
	}
	reason := strings.TrimSpace(req.Reason)
	if err := validateReason(reason); err != nil {
		return nil, err
	}
	if !at.OnGrid(s.hours.SlotStep) {
		return nil, apperrors.Validation("time %s is not on the %s grid", at, s.hours.SlotStep)
	}
	if !date.At(at, s.loc).After(s.now()) {
		return nil, apperrors.Validation("appointment %s %s is in the past", date, at)
	}

	doctor, err := s.userWithRole(ctx, doctorID, model.RoleDoctor)
	if err != nil {
		return nil, err
	}
	patient, err := s.userWithRole(ctx, patientID, model.RolePatient)
	if err != nil {
		return nil, err
	}

	entries, err := s.availability.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !containsSlot(GenerateSlots(windowFor(entries, date.Weekday()), s.hours), at) {
		return nil, apperrors.Validation("doctor is not available on %s at %s", date.Weekday(), at)
	}

	apt := &model.Appointment{
		Doctor:  model.ResolvedRef(doctor.Summary()),
		Patient: model.ResolvedRef(patient.Summary()),
		Date:    date,
		Time:    at,
		Reason:  reason,
		Status:  model.AppointmentStatusPending,
		Notes:   req.Notes,
	}

	if err := s.repo.Create(ctx, apt); err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotTaken):
			s.metrics.SlotConflict()
			return nil, apperrors.SlotConflict(date.String(), at.String())
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("doctor or patient", err)
		}
		return nil, apperrors.Internal(err)
	}

	s.metrics.AppointmentCreated(string(apt.Status))
	s.events.Publish(ctx, event.Event{Type: event.AppointmentCreated, Appointment: apt})
	return apt, nil
}

// Get returns the appointment if the actor takes part in it.
func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !apt.IsParticipant(actor.ID) {
		return nil, apperrors.Forbidden("not a participant of this appointment")
	}
	return apt, nil
}

// List scopes the query to the actor: patients see their own appointments,
// doctors their own calendar.
func (s *Service) List(ctx context.Context, actor model.Actor, filters model.AppointmentFilters) ([]*model.Appointment, error) {
	switch actor.Role {
	case model.RolePatient:
		if filters.PatientID != uuid.Nil && filters.PatientID != actor.ID {
			return nil, apperrors.Forbidden("patients may only list their own appointments")
		}
		filters.PatientID = actor.ID
	case model.RoleDoctor:
		if filters.DoctorID != uuid.Nil && filters.DoctorID != actor.ID {
			return nil, apperrors.Forbidden("doctors may only list their own appointments")
		}
		filters.DoctorID = actor.ID
	default:
		return nil, apperrors.Forbidden("unknown role")
	}
	if filters.From != "" && filters.To != "" && filters.To.Before(filters.From) {
		return nil, apperrors.Validation("to must not be before from")
	}

	apts, err := s.repo.List(ctx, &filters)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if apts == nil {
		apts = []*model.Appointment{}
	}
	return apts, nil
}

// UpdateStatus applies a lifecycle transition. Legality is checked before who
// is asking, so an illegal pair is always InvalidTransition.
func (s *Service) UpdateStatus(ctx context.Context, actor model.Actor, id uuid.UUID, to model.AppointmentStatus) (*model.Appointment, error) {
	apt, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	from := apt.Status

	if err := Transition(from, to); err != nil {
		s.metrics.Transition(string(from), string(to), err)
		return nil, err
	}
	if err := authorize(apt, actor, to); err != nil {
		return nil, err
	}
	if to == model.AppointmentStatusCompleted || to == model.AppointmentStatusNoShow {
		if apt.StartsAt(s.loc).After(s.now()) {
			return nil, apperrors.Validation("appointment has not started yet")
		}
	}

	// Archiving an archived appointment changes nothing.
	if from == to {
		return apt, nil
	}

	if err := s.repo.UpdateStatus(ctx, id, from, to); err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusChanged):
			current, lerr := s.load(ctx, id)
			if lerr != nil {
				return nil, lerr
			}
			s.metrics.Transition(string(current.Status), string(to), err)
			if current.Status == to && to == model.AppointmentStatusArchived {
				return current, nil
			}
			return nil, apperrors.InvalidTransition(string(current.Status), string(to))
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, apperrors.Internal(err)
	}
	s.metrics.Transition(string(from), string(to), nil)

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, event.Event{
		Type:        event.AppointmentStatusChanged,
		Appointment: updated,
		From:        from,
		To:          to,
	})
	return updated, nil
}

func (s *Service) Confirm(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	return s.UpdateStatus(ctx, actor, id, model.AppointmentStatusConfirmed)
}

func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	return s.UpdateStatus(ctx, actor, id, model.AppointmentStatusCancelled)
}

func (s *Service) Complete(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	return s.UpdateStatus(ctx, actor, id, model.AppointmentStatusCompleted)
}

func (s *Service) MarkNoShow(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	return s.UpdateStatus(ctx, actor, id, model.AppointmentStatusNoShow)
}

// Archive is idempotent.
func (s *Service) Archive(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	return s.UpdateStatus(ctx, actor, id, model.AppointmentStatusArchived)
}

// Update edits reason and notes while the appointment is still open.
func (s *Service) Update(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	apt, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if apt.Status != model.AppointmentStatusPending && apt.Status != model.AppointmentStatusConfirmed {
		return nil, apperrors.Validation("%s appointments can no longer be edited", apt.Status)
	}

	if req.Reason != nil {
		reason := strings.TrimSpace(*req.Reason)
		if err := validateReason(reason); err != nil {
			return nil, err
		}
		apt.Reason = reason
	}
	if req.Notes != nil {
		apt.Notes = req.Notes
	}

	if err := s.repo.UpdateDetails(ctx, apt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, apperrors.Internal(err)
	}
	return apt, nil
}

// AvailableSlots returns the free slots of a doctor on a date.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date model.Date) (*model.SlotList, error) {
	entries, err := s.availability.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	list := &model.SlotList{DoctorID: doctorID, Date: date, Day: date.Weekday()}
	slots := GenerateSlots(windowFor(entries, list.Day), s.hours)
	if len(slots) > 0 {
		booked, err := s.repo.ListForDoctorOnDate(ctx, doctorID, date)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		slots = FilterBooked(slots, date, doctorID.String(), booked)
	}

	list.Slots = slots
	s.metrics.SlotsReturned(len(slots))
	return list, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, apperrors.Internal(err)
	}
	return apt, nil
}

func (s *Service) userWithRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(string(role), err)
		}
		return nil, apperrors.Internal(err)
	}
	if u.Role != role {
		return nil, apperrors.NotFound(string(role), nil)
	}
	return u, nil
}

func validateReason(reason string) error {
	n := len([]rune(reason))
	if n < model.MinReasonLength || n > model.MaxReasonLength {
		return apperrors.Validation("reason must be between %d and %d characters", model.MinReasonLength, model.MaxReasonLength)
	}
	return nil
}
