package triage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/belle-designer/AppointmentSystem/internal/appointment"
)

type Action string

const (
	Confirm Action = "confirm"
	Decline Action = "decline"
)

func (a Action) target() (appointment.AppointmentStatus, bool) {
	switch a {
	case Confirm:
		return appointment.StatusConfirmed, true
	case Decline:
		return appointment.StatusDeclined, true
	}
	return "", false
}

var (
	ErrUnknownAction = errors.New("unknown triage action")
	ErrNotQueued     = errors.New("appointment is not in the pending queue")
)

// Store is the slice of the appointment service triage works against.
type Store interface {
	ListAppointments(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	TransitionAppointment(ctx context.Context, id uuid.UUID, to appointment.AppointmentStatus) (*appointment.Appointment, error)
}

// Prompt asks the doctor to confirm an action before it is applied.
type Prompt struct {
	Action      Action                  `json:"action"`
	Appointment appointment.Appointment `json:"appointment"`
	Question    string                  `json:"question"`
}

// Workflow is one doctor's view of the pending requests addressed to them.
type Workflow struct {
	doctorID uuid.UUID
	store    Store
	log      *zap.Logger

	mu      sync.Mutex
	pending []appointment.Appointment
}

func NewWorkflow(doctorID uuid.UUID, store Store, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{doctorID: doctorID, store: store, log: logger}
}

// Load refreshes the pending queue, oldest date first.
func (w *Workflow) Load(ctx context.Context) ([]appointment.Appointment, error) {
	appts, err := w.store.ListAppointments(ctx, appointment.Filter{
		DoctorID: w.doctorID,
		Status:   appointment.StatusPending,
		Sort:     appointment.SortAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("load pending for doctor %s: %w", w.doctorID, err)
	}

	w.mu.Lock()
	w.pending = appts
	w.mu.Unlock()

	return w.Pending(), nil
}

// Pending returns a copy of the last loaded queue.
func (w *Workflow) Pending() []appointment.Appointment {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]appointment.Appointment, len(w.pending))
	copy(out, w.pending)
	return out
}

// Request builds the confirmation prompt for an action on one of this doctor's appointments.
func (w *Workflow) Request(ctx context.Context, id uuid.UUID, action Action) (*Prompt, error) {
	if _, ok := action.target(); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	appt, err := w.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != w.doctorID {
		return nil, appointment.ErrNotOwner
	}
	if appt.Status != appointment.StatusPending {
		return nil, fmt.Errorf("appointment %s is %s: %w", id, appt.Status, ErrNotQueued)
	}

	return &Prompt{
		Action:      action,
		Appointment: *appt,
		Question:    fmt.Sprintf("%s the appointment on %s at %s?", verb(action), appt.Date, appt.Time),
	}, nil
}

// Resolve applies the prompt when accepted. A rejected prompt changes nothing.
// If the appointment moved in the meantime the queue is reloaded and the error returned.
func (w *Workflow) Resolve(ctx context.Context, p Prompt, accepted bool) (*appointment.Appointment, error) {
	if !accepted {
		return nil, nil
	}
	if p.Appointment.DoctorID != w.doctorID {
		return nil, appointment.ErrNotOwner
	}
	to, ok := p.Action.target()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, p.Action)
	}

	updated, err := w.store.TransitionAppointment(ctx, p.Appointment.ID, to)
	if err != nil {
		if errors.Is(err, appointment.ErrInvalidStatusTransition) {
			if _, loadErr := w.Load(ctx); loadErr != nil {
				w.log.Warn("failed to reload triage queue",
					zap.String("doctor_id", w.doctorID.String()),
					zap.Error(loadErr),
				)
			}
		}
		return nil, err
	}

	w.replace(*updated)
	return updated, nil
}

// replace swaps the local copy for the authoritative record; non-pending records leave the queue.
func (w *Workflow) replace(a appointment.Appointment) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.pending {
		if w.pending[i].ID != a.ID {
			continue
		}
		if a.Status == appointment.StatusPending {
			w.pending[i] = a
		} else {
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
		}
		return
	}
}

func verb(a Action) string {
	if a == Confirm {
		return "Confirm"
	}
	return "Decline"
}
