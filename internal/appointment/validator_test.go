package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/belle-designer/AppointmentSystem/internal/slots"
)

var fixedNow = time.Date(2025, time.November, 20, 10, 0, 0, 0, time.UTC)

func newTestValidator() *Validator {
	return NewValidator(slots.Default(), 5, func() time.Time { return fixedNow })
}

func appt(date Date, t string, status AppointmentStatus) Appointment {
	return Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		Date:      date,
		Time:      t,
		Status:    status,
	}
}

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	verr, ok := AsValidationError(err)
	require.True(t, ok, "expected *ValidationError, got %v", err)
	return verr.Reason
}

func TestValidateRules(t *testing.T) {
	dec1 := NewDate(2025, time.December, 1)
	times := slots.DefaultTimes

	full := []Appointment{
		appt(dec1, times[0], StatusPending),
		appt(dec1, times[1], StatusConfirmed),
		appt(dec1, times[2], StatusDeclined),
		appt(dec1, times[3], StatusPending),
		appt(dec1, times[4], StatusPending),
	}

	tests := []struct {
		name     string
		cand     Candidate
		existing []Appointment
		want     Reason
	}{
		{
			name: "past date",
			cand: Candidate{Date: NewDate(2025, time.November, 19), Time: "09:00 AM"},
			want: ReasonPastDate,
		},
		{
			name: "holiday",
			cand: Candidate{Date: NewDate(2025, time.December, 25), Time: "09:00 AM"},
			want: ReasonHoliday,
		},
		{
			name: "past date wins over holiday",
			cand: Candidate{Date: NewDate(2025, time.January, 1), Time: "09:00 AM"},
			want: ReasonPastDate,
		},
		{
			name:     "capacity",
			cand:     Candidate{Date: dec1, Time: times[10]},
			existing: full,
			want:     ReasonCapacityExceeded,
		},
		{
			name:     "capacity wins over slot taken",
			cand:     Candidate{Date: dec1, Time: times[0]},
			existing: full,
			want:     ReasonCapacityExceeded,
		},
		{
			name:     "slot taken",
			cand:     Candidate{Date: dec1, Time: times[0]},
			existing: full[:1],
			want:     ReasonSlotTaken,
		},
		{
			name:     "slot taken across doctors",
			cand:     Candidate{Date: dec1, Time: times[2]},
			existing: []Appointment{appt(dec1, times[2], StatusDeclined)},
			want:     ReasonSlotTaken,
		},
		{
			name: "unknown time",
			cand: Candidate{Date: dec1, Time: "09:30 AM"},
			want: ReasonUnknownTime,
		},
	}

	v := newTestValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reasonOf(t, v.Validate(tt.cand, tt.existing)))
		})
	}
}

func TestValidateOk(t *testing.T) {
	v := newTestValidator()
	dec1 := NewDate(2025, time.December, 1)

	t.Run("today is bookable", func(t *testing.T) {
		assert.NoError(t, v.Validate(Candidate{Date: DateOf(fixedNow), Time: "08:00 PM"}, nil))
	})

	t.Run("cancelled appointments free the slot and the capacity", func(t *testing.T) {
		var existing []Appointment
		for _, tm := range slots.DefaultTimes[:5] {
			existing = append(existing, appt(dec1, tm, StatusCancelled))
		}
		assert.NoError(t, v.Validate(Candidate{Date: dec1, Time: slots.DefaultTimes[0]}, existing))
	})

	t.Run("other dates do not count", func(t *testing.T) {
		dec2 := NewDate(2025, time.December, 2)
		var existing []Appointment
		for _, tm := range slots.DefaultTimes[:5] {
			existing = append(existing, appt(dec2, tm, StatusPending))
		}
		assert.NoError(t, v.Validate(Candidate{Date: dec1, Time: slots.DefaultTimes[0]}, existing))
	})

	t.Run("excluded appointment frees a unit of capacity", func(t *testing.T) {
		var full []Appointment
		for _, tm := range slots.DefaultTimes[:5] {
			full = append(full, appt(dec1, tm, StatusPending))
		}
		c := Candidate{Date: dec1, Time: slots.DefaultTimes[10], ExcludeID: full[0].ID}
		assert.NoError(t, v.Validate(c, full))
	})
}

func TestValidateExcludedAppointmentStillHoldsItsSlot(t *testing.T) {
	v := newTestValidator()
	dec1 := NewDate(2025, time.December, 1)
	own := appt(dec1, "09:00 AM", StatusPending)

	err := v.Validate(Candidate{Date: dec1, Time: "09:00 AM", ExcludeID: own.ID}, []Appointment{own})
	assert.Equal(t, ReasonSlotTaken, reasonOf(t, err))
}

func TestValidateHolidayRegardlessOfTimeOrCapacity(t *testing.T) {
	v := newTestValidator()
	xmas := NewDate(2025, time.December, 25)

	var full []Appointment
	for _, tm := range slots.DefaultTimes[:5] {
		full = append(full, appt(xmas, tm, StatusPending))
	}

	for _, tm := range append(slots.DefaultTimes, "bogus") {
		assert.Equal(t, ReasonHoliday, reasonOf(t, v.Validate(Candidate{Date: xmas, Time: tm}, full)))
	}
}

func TestValidateIsRepeatable(t *testing.T) {
	v := newTestValidator()
	dec1 := NewDate(2025, time.December, 1)
	existing := []Appointment{appt(dec1, "09:00 AM", StatusPending)}
	snapshot := append([]Appointment(nil), existing...)

	c := Candidate{Date: dec1, Time: "09:00 AM"}
	first := v.Validate(c, existing)
	second := v.Validate(c, existing)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, existing)
}

func TestAvailability(t *testing.T) {
	v := newTestValidator()
	dec1 := NewDate(2025, time.December, 1)
	existing := []Appointment{appt(dec1, "09:00 AM", StatusPending)}

	got := v.Availability(dec1, existing)
	require.Len(t, got, 14)
	for _, sa := range got {
		if sa.Time == "09:00 AM" {
			assert.False(t, sa.Available)
			assert.Equal(t, ReasonSlotTaken, sa.Reason)
			continue
		}
		assert.True(t, sa.Available, sa.Time)
	}

	for _, sa := range v.Availability(NewDate(2025, time.January, 1), nil) {
		assert.Equal(t, ReasonPastDate, sa.Reason)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Reason: ReasonSlotTaken}
	assert.Equal(t, "This time slot is already booked. Please choose another.", err.Message())
	assert.Contains(t, err.Error(), "slot_taken")
}
