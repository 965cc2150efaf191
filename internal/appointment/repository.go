package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Directory resolves the people an appointment refers to. It is read-only.
type Directory interface {
	ResolvePatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	ResolveDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
}

// Query narrows a repository listing. Zero fields match everything.
type Query struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Status    AppointmentStatus
}

func (q Query) Matches(a Appointment) bool {
	if q.PatientID != uuid.Nil && a.PatientID != q.PatientID {
		return false
	}
	if q.DoctorID != uuid.Nil && a.DoctorID != q.DoctorID {
		return false
	}
	if q.Status != "" && a.Status != q.Status {
		return false
	}
	return true
}

// Repository contains all storage interactions needed by the service.
// Implementations return copies; callers never share a record with the store.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Snapshot used by the validator
	ListAppointmentsByDate(ctx context.Context, date Date) ([]Appointment, error)

	// Ordered by date, then creation time
	ListAppointments(ctx context.Context, q Query) ([]Appointment, error)

	// Creation and updates
	CreatePendingAppointment(ctx context.Context, in NewAppointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
