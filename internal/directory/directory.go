// Package directory provides read-only lookups of doctors and patients.
package directory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/belle-designer/AppointmentSystem/internal/appointment"
)

// Directory is the full lookup surface used by the booking and appointment packages.
type Directory interface {
	appointment.Directory
	Specializations(ctx context.Context) ([]string, error)
	DoctorsBySpecialization(ctx context.Context, specialization string) ([]appointment.Doctor, error)
}

// Memory is a fixed directory held in memory.
type Memory struct {
	doctors  map[uuid.UUID]appointment.Doctor
	patients map[uuid.UUID]appointment.Patient
}

func NewMemory(doctors []appointment.Doctor, patients []appointment.Patient) *Memory {
	m := &Memory{
		doctors:  make(map[uuid.UUID]appointment.Doctor, len(doctors)),
		patients: make(map[uuid.UUID]appointment.Patient, len(patients)),
	}
	for _, d := range doctors {
		m.doctors[d.ID] = d
	}
	for _, p := range patients {
		m.patients[p.ID] = p
	}
	return m
}

func (m *Memory) ResolvePatient(ctx context.Context, id uuid.UUID) (*appointment.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, appointment.ErrPatientNotFound
	}
	return &p, nil
}

func (m *Memory) ResolveDoctor(ctx context.Context, id uuid.UUID) (*appointment.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, appointment.ErrDoctorNotFound
	}
	return &d, nil
}

func (m *Memory) Specializations(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range m.doctors {
		if _, ok := seen[d.Specialization]; ok {
			continue
		}
		seen[d.Specialization] = struct{}{}
		out = append(out, d.Specialization)
	}
	sort.Strings(out)
	return out, nil
}

// DoctorsBySpecialization lists doctors by name; an empty specialization lists everyone.
func (m *Memory) DoctorsBySpecialization(ctx context.Context, specialization string) ([]appointment.Doctor, error) {
	var out []appointment.Doctor
	for _, d := range m.doctors {
		if specialization == "" || strings.EqualFold(d.Specialization, specialization) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Doctors returns every doctor, sorted by name.
func (m *Memory) Doctors() []appointment.Doctor {
	out, _ := m.DoctorsBySpecialization(context.Background(), "")
	return out
}

// Patients returns every patient, sorted by name.
func (m *Memory) Patients() []appointment.Patient {
	out := make([]appointment.Patient, 0, len(m.patients))
	for _, p := range m.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
