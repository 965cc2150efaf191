package directory

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/belle-designer/AppointmentSystem/internal/appointment"
)

var Specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

// FakeDoctor builds a doctor with a random name and specialty from f.
func FakeDoctor(f *gofakeit.Faker) appointment.Doctor {
	now := time.Now()
	return appointment.Doctor{
		ID:             uuid.MustParse(f.UUID()),
		Name:           "Dr. " + f.Name(),
		Specialization: Specialties[f.Number(0, len(Specialties)-1)],
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func FakePatient(f *gofakeit.Faker) appointment.Patient {
	now := time.Now()
	email := f.Email()
	return appointment.Patient{
		ID:        uuid.MustParse(f.UUID()),
		Name:      f.Name(),
		Email:     &email,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Demo set used when no database is configured. Load drivers rebuild the same set from these.
const (
	DemoSeed     uint64 = 1
	DemoDoctors         = 12
	DemoPatients        = 50
)

// Demo builds a deterministic in-memory directory for local runs without Postgres.
func Demo(seed uint64, doctors, patients int) *Memory {
	f := gofakeit.New(seed)

	ds := make([]appointment.Doctor, 0, doctors)
	for i := 0; i < doctors; i++ {
		ds = append(ds, FakeDoctor(f))
	}
	ps := make([]appointment.Patient, 0, patients)
	for i := 0; i < patients; i++ {
		ps = append(ps, FakePatient(f))
	}
	return NewMemory(ds, ps)
}
