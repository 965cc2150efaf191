package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/belle-designer/AppointmentSystem/internal/redis"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentDeclined  = "APPOINTMENT_DECLINED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

var transitionEvents = map[AppointmentStatus]string{
	StatusConfirmed: EventAppointmentConfirmed,
	StatusDeclined:  EventAppointmentDeclined,
	StatusCancelled: EventAppointmentCancelled,
}

// Event is handed to the Publisher after every successful mutation.
type Event struct {
	Type        string      `json:"type"`
	Appointment Appointment `json:"appointment"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// Publisher receives mutation events, e.g. to persist or fan them out.
// A failing publisher never undoes the mutation.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Option func(*Service)

// WithLocker adds a cross-process lock per booking date on top of the in-process mutex.
func WithLocker(l redisclient.Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// Service is the appointment store: the only way appointments are created or change status.
type Service struct {
	repo      Repository
	directory Directory
	validator *Validator
	locker    redisclient.Locker
	publisher Publisher
	log       *zap.Logger

	// create and transition run one at a time
	mu sync.Mutex
}

func NewService(repo Repository, directory Directory, validator *Validator, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		directory: directory,
		validator: validator,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Validator() *Validator {
	return s.validator
}

// CreateAppointment books a slot for a patient with a doctor. The snapshot, the rule check
// and the insert happen under the same lock so two writers cannot both pass the check.
func (s *Service) CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	in.Time = strings.TrimSpace(in.Time)
	in.Notes = strings.TrimSpace(in.Notes)

	if _, err := s.directory.ResolvePatient(ctx, in.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.directory.ResolveDoctor(ctx, in.DoctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	var (
		created *Appointment
		event   Event
	)

	err := s.serialize(ctx, in.Date, func(lockCtx context.Context) error {
		existing, err := s.repo.ListAppointmentsByDate(lockCtx, in.Date)
		if err != nil {
			return fmt.Errorf("load appointments for %s: %w", in.Date, err)
		}

		if err := s.validator.Validate(Candidate{Date: in.Date, Time: in.Time}, existing); err != nil {
			return err
		}

		appt, err := s.repo.CreatePendingAppointment(lockCtx, in)
		if err != nil {
			if _, ok := AsValidationError(err); ok {
				return err
			}
			return fmt.Errorf("create pending appointment: %w", err)
		}

		created = appt
		event = s.recordEvent(lockCtx, EventAppointmentCreated, *appt, map[string]any{
			"patient_id": in.PatientID.String(),
			"doctor_id":  in.DoctorID.String(),
			"date":       in.Date.String(),
			"time":       in.Time,
		})
		return nil
	})
	if err != nil {
		if verr, ok := AsValidationError(err); ok {
			s.log.Info("appointment rejected",
				zap.String("date", in.Date.String()),
				zap.String("time", in.Time),
				zap.String("reason", string(verr.Reason)),
			)
		}
		return nil, err
	}
	s.publish(ctx, event)

	s.log.Info("appointment created",
		zap.String("appointment_id", created.ID.String()),
		zap.String("date", created.Date.String()),
		zap.String("time", created.Time),
	)
	return created, nil
}

// TransitionAppointment moves an appointment along one edge of the state table.
func (s *Service) TransitionAppointment(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !CanTransition(appt.Status, to) {
		return nil, &InvalidTransitionError{ID: id, From: appt.Status, To: to}
	}

	var (
		updated *Appointment
		event   Event
	)

	err = s.serialize(ctx, appt.Date, func(lockCtx context.Context) error {
		u, err := s.repo.UpdateAppointmentStatus(lockCtx, id, appt.Status, to)
		if errors.Is(err, ErrAppointmentNotFound) {
			// someone else moved it since we read it
			current, getErr := s.repo.GetAppointmentByID(lockCtx, id)
			if getErr != nil {
				return fmt.Errorf("reload appointment: %w", getErr)
			}
			return &InvalidTransitionError{ID: id, From: current.Status, To: to}
		}
		if err != nil {
			return fmt.Errorf("update appointment status: %w", err)
		}

		updated = u
		event = s.recordEvent(lockCtx, transitionEvents[to], *u, map[string]any{
			"from": string(appt.Status),
			"to":   string(to),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, event)

	s.log.Info("appointment transitioned",
		zap.String("appointment_id", id.String()),
		zap.String("from", string(appt.Status)),
		zap.String("to", string(to)),
	)
	return updated, nil
}

func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.TransitionAppointment(ctx, id, StatusConfirmed)
}

func (s *Service) DeclineAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.TransitionAppointment(ctx, id, StatusDeclined)
}

func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.TransitionAppointment(ctx, id, StatusCancelled)
}

// Validate checks a candidate against the current store without changing it.
func (s *Service) Validate(ctx context.Context, c Candidate) error {
	existing, err := s.repo.ListAppointmentsByDate(ctx, c.Date)
	if err != nil {
		return fmt.Errorf("load appointments for %s: %w", c.Date, err)
	}
	return s.validator.Validate(c, existing)
}

func (s *Service) Availability(ctx context.Context, date Date) ([]SlotAvailability, error) {
	existing, err := s.repo.ListAppointmentsByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load appointments for %s: %w", date, err)
	}
	return s.validator.Availability(date, existing), nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListAppointments is the read-only projection behind patient and doctor views.
func (s *Service) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	appts, err := s.repo.ListAppointments(ctx, f.query())
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	if needle := strings.ToLower(strings.TrimSpace(f.Search)); needle != "" {
		matched := appts[:0:0]
		for _, a := range appts {
			if s.matchesSearch(ctx, a, f, needle) {
				matched = append(matched, a)
			}
		}
		appts = matched
	}

	sortByDate(appts, f.Sort)
	return paginate(appts, f.Limit, f.Offset), nil
}

// Hydrate attaches people and the display timing to appointments. Unknown people are left nil.
func (s *Service) Hydrate(ctx context.Context, appts []Appointment, now time.Time) []AppointmentDetail {
	out := make([]AppointmentDetail, 0, len(appts))
	for _, a := range appts {
		d := AppointmentDetail{Appointment: a, Timing: TimingAt(a, now)}
		if p, err := s.directory.ResolvePatient(ctx, a.PatientID); err == nil {
			d.Patient = p
		}
		if doc, err := s.directory.ResolveDoctor(ctx, a.DoctorID); err == nil {
			d.Doctor = doc
		}
		out = append(out, d)
	}
	return out
}

func (s *Service) matchesSearch(ctx context.Context, a Appointment, f Filter, needle string) bool {
	if strings.Contains(a.Date.String(), needle) {
		return true
	}
	if f.PatientID == uuid.Nil {
		if p, err := s.directory.ResolvePatient(ctx, a.PatientID); err == nil && containsFold(p.Name, needle) {
			return true
		}
	}
	if f.DoctorID == uuid.Nil {
		if d, err := s.directory.ResolveDoctor(ctx, a.DoctorID); err == nil && containsFold(d.Name, needle) {
			return true
		}
	}
	return false
}

func (s *Service) serialize(ctx context.Context, date Date, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locker == nil {
		return fn(ctx)
	}

	err := s.locker.WithLock(ctx, "date:"+date.String(), fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSlotBeingBooked
	}
	return err
}

// recordEvent writes the event log row inside the critical section and returns the event to publish.
func (s *Service) recordEvent(ctx context.Context, eventType string, appt Appointment, payload map[string]any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	now := time.Now()
	apptID := appt.ID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     now,
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("failed to insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", apptID.String()),
			zap.Error(err),
		)
	}

	return Event{Type: eventType, Appointment: appt, OccurredAt: now}
}

// publish must be called outside serialize: Publish may block on broker acks.
func (s *Service) publish(ctx context.Context, ev Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn("failed to publish event",
			zap.String("event", ev.Type),
			zap.String("appointment_id", ev.Appointment.ID.String()),
			zap.Error(err),
		)
	}
}
