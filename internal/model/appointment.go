package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusNoShow    AppointmentStatus = "no-show"
	AppointmentStatusArchived  AppointmentStatus = "archived"
)

// AppointmentStatuses lists every status in lifecycle order.
var AppointmentStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusCancelled,
	AppointmentStatusCompleted,
	AppointmentStatusNoShow,
	AppointmentStatusArchived,
}

func (s AppointmentStatus) Valid() bool {
	for _, v := range AppointmentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

const (
	MinReasonLength = 10
	MaxReasonLength = 500
)

type Appointment struct {
	Base
	Doctor       UserRef            `json:"doctor"`
	Patient      UserRef            `json:"patient"`
	Date         Date               `json:"date"`
	Time         ClockTime          `json:"time"`
	Reason       string             `json:"reason"`
	Status       AppointmentStatus  `json:"status"`
	Notes        *string            `json:"notes,omitempty"`
	IsArchived   bool               `json:"is_archived"`
	ArchivedFrom *AppointmentStatus `json:"archived_from,omitempty"`
}

// HoldsSlot reports whether the appointment keeps its slot off the market.
// Cancelled appointments release it, including ones archived after cancelling.
func (a *Appointment) HoldsSlot() bool {
	if a.Status == AppointmentStatusCancelled {
		return false
	}
	if a.Status == AppointmentStatusArchived && a.ArchivedFrom != nil && *a.ArchivedFrom == AppointmentStatusCancelled {
		return false
	}
	return true
}

// StartsAt returns the appointment start in loc.
func (a *Appointment) StartsAt(loc *time.Location) time.Time {
	return a.Date.At(a.Time, loc)
}

// IsParticipant reports whether the user is the doctor or the patient.
func (a *Appointment) IsParticipant(userID uuid.UUID) bool {
	id := userID.String()
	return a.Doctor.Refers(id) || a.Patient.Refers(id)
}

type CreateAppointmentRequest struct {
	DoctorID  string  `json:"doctor_id" binding:"required,uuid"`
	PatientID string  `json:"patient_id" binding:"omitempty,uuid"`
	Date      string  `json:"date" binding:"required,isodate"`
	Time      string  `json:"time" binding:"required,clock"`
	Reason    string  `json:"reason" binding:"required,min=10,max=500"`
	Notes     *string `json:"notes" binding:"omitempty,max=1000"`
}

type UpdateAppointmentRequest struct {
	Reason *string `json:"reason" binding:"omitempty,min=10,max=500"`
	Notes  *string `json:"notes" binding:"omitempty,max=1000"`
}

type UpdateStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required,appointment_status"`
}

type AppointmentFilters struct {
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	From            Date
	To              Date
	IncludeArchived bool
}

// Actor is the authenticated caller performing an operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}
