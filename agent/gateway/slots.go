package gateway

import (
	"sort"
	"time"
)

// slotStepMin is the grid step for bookable start times.
const slotStepMin = 30

// FreeSlots computes the bookable slots for an accountant inside a query
// window. Both gateway implementations build availability answers from this
// one function so their semantics cannot drift.
//
// A slot starts on the 30-minute grid, fits entirely inside working hours
// on a working day that is not a holiday, lies inside [window.From,
// window.To) and does not overlap any non-cancelled appointment. Slots are
// returned in ascending start order.
func FreeSlots(acc *Accountant, existing []Appointment, window Window, durationMin int) []TimeSlot {
	if acc == nil || durationMin <= 0 || !window.To.After(window.From) {
		return nil
	}

	active := existing[:0:0]
	for _, appt := range existing {
		if appt.Status != AppointmentCancelled && appt.AccountantID == acc.ID {
			active = append(active, appt)
		}
	}

	var slots []TimeSlot
	loc := window.From.Location()
	day := time.Date(window.From.Year(), window.From.Month(), window.From.Day(), 0, 0, 0, 0, loc)
	for !day.After(window.To) {
		if acc.Hours.worksOn(day.Weekday()) && !acc.onHoliday(day) {
			dayStart := day.Add(time.Duration(acc.Hours.StartHour) * time.Hour)
			dayEnd := day.Add(time.Duration(acc.Hours.EndHour) * time.Hour)
			for start := dayStart; ; start = start.Add(slotStepMin * time.Minute) {
				end := start.Add(time.Duration(durationMin) * time.Minute)
				if end.After(dayEnd) {
					break
				}
				if start.Before(window.From) || end.After(window.To) {
					continue
				}
				if overlapsAny(active, start, durationMin) {
					continue
				}
				slots = append(slots, TimeSlot{Start: start, DurationMin: durationMin})
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots
}

func overlapsAny(appointments []Appointment, start time.Time, durationMin int) bool {
	for _, appt := range appointments {
		if appt.Overlaps(start, durationMin) {
			return true
		}
	}
	return false
}

// DayWindow is the full-day query window containing t, in t's location.
func DayWindow(t time.Time) Window {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return Window{From: start, To: start.AddDate(0, 0, 1)}
}
