package model

import (
	"time"

	"github.com/google/uuid"
)

// Availability is a recurring weekly window during which a doctor accepts bookings.
type Availability struct {
	DoctorID  uuid.UUID `json:"-" db:"doctor_id"`
	Day       Weekday   `json:"day" db:"day"`
	StartTime ClockTime `json:"start_time" db:"start_time"`
	EndTime   ClockTime `json:"end_time" db:"end_time"`
}

// Contains reports whether c falls inside [StartTime, EndTime).
func (a Availability) Contains(c ClockTime) bool {
	return c >= a.StartTime && c < a.EndTime
}

type AvailabilityInput struct {
	Day       string `json:"day" binding:"required,weekday"`
	StartTime string `json:"start_time" binding:"required,clock"`
	EndTime   string `json:"end_time" binding:"required,clock"`
}

type SetAvailabilityRequest struct {
	Entries []AvailabilityInput `json:"entries" binding:"max=7,dive"`
}

// SlotList is the response for a slot lookup.
type SlotList struct {
	DoctorID uuid.UUID   `json:"doctor_id"`
	Date     Date        `json:"date"`
	Day      Weekday     `json:"day"`
	Slots    []ClockTime `json:"slots"`
}

// OperatingHours bounds every bookable slot and sets the slot length.
type OperatingHours struct {
	Open     ClockTime
	Close    ClockTime
	SlotStep time.Duration
}

func DefaultOperatingHours() OperatingHours {
	return OperatingHours{
		Open:     MustParseClock("08:00"),
		Close:    MustParseClock("17:00"),
		SlotStep: 30 * time.Minute,
	}
}

// Within reports whether [start, end) lies inside the operating window.
func (h OperatingHours) Within(start, end ClockTime) bool {
	return start >= h.Open && end <= h.Close
}
