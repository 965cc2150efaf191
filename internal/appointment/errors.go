package appointment

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrSlotBeingBooked         = errors.New("date is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrNotOwner                = errors.New("appointment belongs to another actor")
)

// Reason names the first booking rule a candidate slot failed.
type Reason string

const (
	ReasonPastDate         Reason = "past_date"
	ReasonHoliday          Reason = "holiday"
	ReasonCapacityExceeded Reason = "capacity_exceeded"
	ReasonSlotTaken        Reason = "slot_taken"
	ReasonUnknownTime      Reason = "unknown_time"
)

var reasonMessages = map[Reason]string{
	ReasonPastDate:         "You cannot select a past date.",
	ReasonHoliday:          "Selected date is a holiday. Please choose another date.",
	ReasonCapacityExceeded: "Maximum appointments reached for this date.",
	ReasonSlotTaken:        "This time slot is already booked. Please choose another.",
	ReasonUnknownTime:      "Selected time is not an available slot.",
}

// ValidationError is a user-correctable booking rejection.
type ValidationError struct {
	Reason Reason
	Date   Date
	Time   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("slot %s %s rejected: %s", e.Date, e.Time, e.Reason)
}

// Message is the text shown to the person booking.
func (e *ValidationError) Message() string {
	if msg, ok := reasonMessages[e.Reason]; ok {
		return msg
	}
	return string(e.Reason)
}

// InvalidTransitionError reports a status change with no edge in the state table.
type InvalidTransitionError struct {
	ID   uuid.UUID
	From AppointmentStatus
	To   AppointmentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("appointment %s: cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidStatusTransition
}

// AsValidationError unwraps err to a *ValidationError if it carries one.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
