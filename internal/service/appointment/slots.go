package appointment

import (
	"time"

	"github.com/jwalitptl/appointment-api/internal/model"
)

// GenerateSlots enumerates slot start times for one availability window:
// start, start+step, ... while the slot starts before the window's end.
// Slots outside the operating hours are skipped. A nil window or a step
// shorter than a minute yields no slots.
func GenerateSlots(a *model.Availability, hours model.OperatingHours) []model.ClockTime {
	slots := []model.ClockTime{}
	if a == nil || hours.SlotStep < time.Minute || a.StartTime >= a.EndTime {
		return slots
	}
	for t := a.StartTime; t < a.EndTime; t = t.Add(hours.SlotStep) {
		if t < hours.Open || t >= hours.Close {
			continue
		}
		slots = append(slots, t)
	}
	return slots
}

// FilterBooked drops every slot already held by an appointment for the same
// doctor on the same date. Doctor identity is compared through the reference
// accessor so bare and resolved references behave alike.
func FilterBooked(slots []model.ClockTime, date model.Date, doctorID string, appointments []*model.Appointment) []model.ClockTime {
	taken := make(map[model.ClockTime]struct{})
	for _, apt := range appointments {
		if apt == nil || apt.Date != date || !apt.Doctor.Refers(doctorID) || !apt.HoldsSlot() {
			continue
		}
		taken[apt.Time] = struct{}{}
	}

	free := make([]model.ClockTime, 0, len(slots))
	for _, s := range slots {
		if _, ok := taken[s]; !ok {
			free = append(free, s)
		}
	}
	return free
}

// windowFor returns the doctor's window for the given weekday, if any.
func windowFor(entries []*model.Availability, day model.Weekday) *model.Availability {
	for _, e := range entries {
		if e.Day == day {
			return e
		}
	}
	return nil
}

func containsSlot(slots []model.ClockTime, c model.ClockTime) bool {
	for _, s := range slots {
		if s == c {
			return true
		}
	}
	return false
}
