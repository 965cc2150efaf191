package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/belle-designer/AppointmentSystem/internal/appointment"
	"github.com/belle-designer/AppointmentSystem/internal/booking"
)

// Store is the part of the appointment service a patient's own actions need.
type Store interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

// Actions are what a patient can do with an appointment they already made.
type Actions struct {
	store     Store
	directory booking.Directory
	booker    booking.Booker
	log       *zap.Logger
}

func NewActions(store Store, directory booking.Directory, booker booking.Booker, logger *zap.Logger) *Actions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Actions{store: store, directory: directory, booker: booker, log: logger}
}

// Cancel withdraws a pending request.
func (a *Actions) Cancel(ctx context.Context, patientID, id uuid.UUID) (*appointment.Appointment, error) {
	appt, err := a.owned(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != appointment.StatusPending {
		return nil, &appointment.InvalidTransitionError{ID: id, From: appt.Status, To: appointment.StatusCancelled}
	}
	return a.store.CancelAppointment(ctx, id)
}

// Reschedule opens a booking wizard with the same doctor for a declined appointment.
// The declined appointment itself is left as it is.
func (a *Actions) Reschedule(ctx context.Context, patientID, id uuid.UUID) (*booking.Wizard, error) {
	appt, err := a.owned(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	if !appointment.CanReschedule(*appt) {
		return nil, &appointment.InvalidTransitionError{ID: id, From: appt.Status, To: appointment.StatusPending}
	}

	doc, err := a.directory.ResolveDoctor(ctx, appt.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor for reschedule: %w", err)
	}

	a.log.Info("reschedule started",
		zap.String("appointment_id", id.String()),
		zap.String("doctor_id", doc.ID.String()),
	)
	return booking.Reschedule(patientID, *doc, a.directory, a.booker), nil
}

func (a *Actions) owned(ctx context.Context, patientID, id uuid.UUID) (*appointment.Appointment, error) {
	appt, err := a.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != patientID {
		return nil, appointment.ErrNotOwner
	}
	return appt, nil
}
