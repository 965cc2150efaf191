package appointment

import (
	"time"

	"github.com/belle-designer/AppointmentSystem/internal/slots"
)

// transitions lists every status edge. Confirmed, Declined and Cancelled have none.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending: {StatusConfirmed, StatusDeclined, StatusCancelled},
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanReschedule reports whether a new booking may be spawned from a.
func CanReschedule(a Appointment) bool {
	return a.Status == StatusDeclined
}

type Timing string

const (
	TimingUpcoming Timing = "upcoming"
	TimingDone     Timing = "done"
)

// TimingAt labels a confirmed appointment relative to now, in now's location.
// Other statuses get no label.
func TimingAt(a Appointment, now time.Time) Timing {
	if a.Status != StatusConfirmed {
		return ""
	}
	start := a.Date.In(now.Location())
	if offset, err := slots.ParseTime(a.Time); err == nil {
		start = start.Add(offset)
	}
	if start.Before(now) {
		return TimingDone
	}
	return TimingUpcoming
}
