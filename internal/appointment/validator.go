package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/belle-designer/AppointmentSystem/internal/slots"
)

const DefaultDailyCapacity = 5

// Candidate is a proposed slot. ExcludeID leaves one existing appointment out of the
// daily capacity count only; its own (date, time) still reads as taken.
type Candidate struct {
	Date      Date
	Time      string
	ExcludeID uuid.UUID
}

// Validator decides whether a slot is bookable against a snapshot of appointments.
// It never mutates what it is given.
type Validator struct {
	catalog  *slots.Catalog
	capacity int
	now      func() time.Time
}

func NewValidator(catalog *slots.Catalog, capacity int, now func() time.Time) *Validator {
	if capacity <= 0 {
		capacity = DefaultDailyCapacity
	}
	if now == nil {
		now = time.Now
	}
	return &Validator{
		catalog:  catalog,
		capacity: capacity,
		now:      now,
	}
}

func (v *Validator) Catalog() *slots.Catalog {
	return v.catalog
}

func (v *Validator) Capacity() int {
	return v.capacity
}

func (v *Validator) Today() Date {
	return DateOf(v.now())
}

// Validate runs the booking rules in order and returns the first failure as a
// *ValidationError, or nil when the slot is bookable.
func (v *Validator) Validate(c Candidate, existing []Appointment) error {
	reject := func(r Reason) error {
		return &ValidationError{Reason: r, Date: c.Date, Time: c.Time}
	}

	if c.Date.Before(v.Today()) {
		return reject(ReasonPastDate)
	}
	if v.catalog.IsHoliday(c.Date.String()) {
		return reject(ReasonHoliday)
	}

	onDate := 0
	taken := false
	for _, a := range existing {
		if !a.Holds() || a.Date != c.Date {
			continue
		}
		if a.Time == c.Time {
			taken = true
		}
		if c.ExcludeID != uuid.Nil && a.ID == c.ExcludeID {
			continue
		}
		onDate++
	}

	if onDate >= v.capacity {
		return reject(ReasonCapacityExceeded)
	}
	if taken {
		return reject(ReasonSlotTaken)
	}
	if !v.catalog.IsTime(c.Time) {
		return reject(ReasonUnknownTime)
	}
	return nil
}

type SlotAvailability struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
	Reason    Reason `json:"reason,omitempty"`
}

// Availability evaluates every catalog time on date.
func (v *Validator) Availability(date Date, existing []Appointment) []SlotAvailability {
	times := v.catalog.Times()
	out := make([]SlotAvailability, 0, len(times))
	for _, t := range times {
		sa := SlotAvailability{Time: t, Available: true}
		if verr, ok := AsValidationError(v.Validate(Candidate{Date: date, Time: t}, existing)); ok {
			sa.Available = false
			sa.Reason = verr.Reason
		}
		out = append(out, sa)
	}
	return out
}
