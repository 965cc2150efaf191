package directory

import (
	"context"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/belle-designer/AppointmentSystem/internal/appointment"
)

// Cached keeps recently resolved doctors and patients in LRU caches.
// Listings always go to the underlying directory.
type Cached struct {
	next     Directory
	doctors  *lru.Cache[uuid.UUID, appointment.Doctor]
	patients *lru.Cache[uuid.UUID, appointment.Patient]
	log      *zap.Logger
}

func NewCached(next Directory, size int, logger *zap.Logger) (*Cached, error) {
	if size <= 0 {
		size = 256
	}
	doctors, err := lru.New[uuid.UUID, appointment.Doctor](size)
	if err != nil {
		return nil, err
	}
	patients, err := lru.New[uuid.UUID, appointment.Patient](size)
	if err != nil {
		return nil, err
	}
	return &Cached{
		next:     next,
		doctors:  doctors,
		patients: patients,
		log:      logger,
	}, nil
}

func (c *Cached) ResolveDoctor(ctx context.Context, id uuid.UUID) (*appointment.Doctor, error) {
	if d, ok := c.doctors.Get(id); ok {
		return &d, nil
	}
	c.log.Debug("directory cache miss", zap.String("doctor_id", id.String()))

	d, err := c.next.ResolveDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	c.doctors.Add(id, *d)
	return d, nil
}

func (c *Cached) ResolvePatient(ctx context.Context, id uuid.UUID) (*appointment.Patient, error) {
	if p, ok := c.patients.Get(id); ok {
		return &p, nil
	}
	c.log.Debug("directory cache miss", zap.String("patient_id", id.String()))

	p, err := c.next.ResolvePatient(ctx, id)
	if err != nil {
		return nil, err
	}
	c.patients.Add(id, *p)
	return p, nil
}

func (c *Cached) Specializations(ctx context.Context) ([]string, error) {
	return c.next.Specializations(ctx)
}

func (c *Cached) DoctorsBySpecialization(ctx context.Context, specialization string) ([]appointment.Doctor, error) {
	return c.next.DoctorsBySpecialization(ctx, specialization)
}

// Purge drops every cached entry.
func (c *Cached) Purge() {
	c.doctors.Purge()
	c.patients.Purge()
}
