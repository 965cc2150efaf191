package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps appointments for the lifetime of one process or session.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*memoryRecord
	events       []EventLog
	seq          int64
}

type memoryRecord struct {
	appt Appointment
	seq  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[uuid.UUID]*memoryRecord),
	}
}

func (r *MemoryRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a := rec.appt
	return &a, nil
}

func (r *MemoryRepository) ListAppointmentsByDate(ctx context.Context, date Date) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(a Appointment) bool { return a.Date == date }), nil
}

func (r *MemoryRepository) ListAppointments(ctx context.Context, q Query) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(q.Matches), nil
}

func (r *MemoryRepository) CreatePendingAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.seq++
	rec := &memoryRecord{
		seq: r.seq,
		appt: Appointment{
			ID:        uuid.New(),
			PatientID: in.PatientID,
			DoctorID:  in.DoctorID,
			Date:      in.Date,
			Time:      in.Time,
			Notes:     in.Notes,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	r.appointments[rec.appt.ID] = rec

	a := rec.appt
	return &a, nil
}

// UpdateAppointmentStatus changes the status only if it is still from.
// A record in any other status reads as not found, like a conditional UPDATE.
func (r *MemoryRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.appointments[id]
	if !ok || rec.appt.Status != from {
		return nil, ErrAppointmentNotFound
	}
	rec.appt.Status = to
	rec.appt.UpdatedAt = time.Now()

	a := rec.appt
	return &a, nil
}

func (r *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns the event log in insertion order.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

func (r *MemoryRepository) collect(keep func(Appointment) bool) []Appointment {
	recs := make([]*memoryRecord, 0, len(r.appointments))
	for _, rec := range r.appointments {
		if keep(rec.appt) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i].appt.Date, recs[j].appt.Date
		if a != b {
			return a.Before(b)
		}
		return recs[i].seq < recs[j].seq
	})

	out := make([]Appointment, len(recs))
	for i, rec := range recs {
		out[i] = rec.appt
	}
	return out
}
