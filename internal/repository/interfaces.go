package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/appointment-api/internal/model"
)

// Sentinel errors shared by every storage backend. Services translate them
// into application errors.
var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique attribute such as an email is taken.
	ErrDuplicate = errors.New("duplicate record")
	// ErrSlotTaken is returned when another slot-holding appointment already
	// occupies the same doctor, date and time.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrStatusChanged is returned when a conditional status update finds the
	// row in a different status than expected.
	ErrStatusChanged = errors.New("status changed concurrently")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		List(ctx context.Context, filters *model.UserFilters) ([]*model.User, error)
	}

	AvailabilityRepository interface {
		// Replace swaps the doctor's whole weekly schedule atomically.
		Replace(ctx context.Context, doctorID uuid.UUID, entries []*model.Availability) error
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Availability, error)
	}

	AppointmentRepository interface {
		// Create inserts the appointment or fails with ErrSlotTaken. The check
		// and the insert are atomic with respect to other creates.
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		ListForDoctorOnDate(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]*model.Appointment, error)
		// UpdateStatus moves the row from -> to only if it is still in from,
		// otherwise it returns ErrStatusChanged.
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) error
		// UpdateDetails rewrites reason and notes.
		UpdateDetails(ctx context.Context, appointment *model.Appointment) error
	}

	// Pinger reports storage health for readiness probes.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
