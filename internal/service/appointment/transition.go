package appointment

import (
	"github.com/jwalitptl/appointment-api/internal/model"
	apperrors "github.com/jwalitptl/appointment-api/pkg/errors"
)

// transitions is the full lifecycle table. archived -> archived is listed so
// that archiving twice is a no-op rather than an error.
var transitions = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.AppointmentStatusPending: {
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusCancelled,
	},
	model.AppointmentStatusConfirmed: {
		model.AppointmentStatusCompleted,
		model.AppointmentStatusNoShow,
		model.AppointmentStatusCancelled,
	},
	model.AppointmentStatusCompleted: {model.AppointmentStatusArchived},
	model.AppointmentStatusCancelled: {model.AppointmentStatusArchived},
	model.AppointmentStatusNoShow:    {model.AppointmentStatusArchived},
	model.AppointmentStatusArchived:  {model.AppointmentStatusArchived},
}

// CanTransition reports whether from -> to is in the lifecycle table.
func CanTransition(from, to model.AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to. It checks legality only; who may request
// the change is decided by the caller.
func Transition(from, to model.AppointmentStatus) error {
	if !CanTransition(from, to) {
		return apperrors.InvalidTransition(string(from), string(to))
	}
	return nil
}

// NextStatuses returns the statuses reachable from s in one step.
func NextStatuses(s model.AppointmentStatus) []model.AppointmentStatus {
	next := transitions[s]
	out := make([]model.AppointmentStatus, len(next))
	copy(out, next)
	return out
}

// authorize enforces who may request a given target status. It runs after
// the transition itself has been found legal.
func authorize(apt *model.Appointment, actor model.Actor, to model.AppointmentStatus) error {
	isDoctor := actor.Role == model.RoleDoctor && apt.Doctor.Refers(actor.ID.String())
	isPatient := actor.Role == model.RolePatient && apt.Patient.Refers(actor.ID.String())

	switch to {
	case model.AppointmentStatusCancelled:
		if isDoctor || isPatient {
			return nil
		}
		return apperrors.Forbidden("only the patient or the doctor may cancel this appointment")
	case model.AppointmentStatusConfirmed:
		if isDoctor {
			return nil
		}
		return apperrors.Forbidden("only the doctor may confirm this appointment")
	case model.AppointmentStatusCompleted, model.AppointmentStatusNoShow:
		if isDoctor {
			return nil
		}
		return apperrors.Forbidden("only the doctor may close this appointment")
	case model.AppointmentStatusArchived:
		if isDoctor {
			return nil
		}
		return apperrors.Forbidden("only the doctor may archive this appointment")
	default:
		return apperrors.Forbidden("status change not permitted")
	}
}
