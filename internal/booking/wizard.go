package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/belle-designer/AppointmentSystem/internal/appointment"
)

type Stage int

const (
	StageProvider Stage = iota + 1
	StageSlot
	StageNotes
)

func (s Stage) String() string {
	switch s {
	case StageProvider:
		return "provider"
	case StageSlot:
		return "slot"
	case StageNotes:
		return "notes"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

const (
	msgProviderMissing = "Please select a specialization and doctor."
	msgSlotMissing     = "Please select date and time."
	msgNotBooked       = "Appointment not booked."
	msgBooked          = "Appointment booked."
)

var (
	ErrIncomplete             = errors.New("current stage is incomplete")
	ErrWrongStage             = errors.New("action not available at this stage")
	ErrSpecializationMismatch = errors.New("doctor does not offer the selected specialization")
	ErrSessionNotFound        = errors.New("booking session not found")
)

// Directory is what the wizard needs to know about doctors.
type Directory interface {
	ResolveDoctor(ctx context.Context, id uuid.UUID) (*appointment.Doctor, error)
}

// Booker validates and creates appointments, normally *appointment.Service.
type Booker interface {
	Validate(ctx context.Context, c appointment.Candidate) error
	CreateAppointment(ctx context.Context, in appointment.NewAppointment) (*appointment.Appointment, error)
}

type Draft struct {
	Specialization string           `json:"specialization,omitempty"`
	DoctorID       uuid.UUID        `json:"doctor_id"`
	DoctorName     string           `json:"doctor_name,omitempty"`
	Date           appointment.Date `json:"date"`
	Time           string           `json:"time,omitempty"`
	Notes          string           `json:"notes,omitempty"`
}

// Session is the persisted state of one wizard.
type Session struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	Stage     Stage     `json:"stage"`
	Draft     Draft     `json:"draft"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is shown to the patient before the booking is placed.
type Summary struct {
	DoctorName     string           `json:"doctor_name"`
	Specialization string           `json:"specialization"`
	Date           appointment.Date `json:"date"`
	Time           string           `json:"time"`
	Notes          string           `json:"notes,omitempty"`
}

type Outcome string

const (
	OutcomeBooked    Outcome = "booked"
	OutcomeNotBooked Outcome = "not_booked"
)

type Result struct {
	Outcome     Outcome                  `json:"outcome"`
	Appointment *appointment.Appointment `json:"appointment,omitempty"`
	Summary     Summary                  `json:"summary"`
}

// Wizard walks a patient through provider, slot and notes before a booking is placed.
type Wizard struct {
	s         Session
	directory Directory
	booker    Booker
}

func New(patientID uuid.UUID, directory Directory, booker Booker) *Wizard {
	return &Wizard{
		s: Session{
			ID:        uuid.New(),
			PatientID: patientID,
			Stage:     StageProvider,
			UpdatedAt: time.Now(),
		},
		directory: directory,
		booker:    booker,
	}
}

// Resume rebuilds a wizard from a stored session.
func Resume(s Session, directory Directory, booker Booker) *Wizard {
	if s.Stage < StageProvider || s.Stage > StageNotes {
		s.Stage = StageProvider
	}
	return &Wizard{s: s, directory: directory, booker: booker}
}

// Reschedule starts a wizard at the slot stage with the doctor of a declined appointment.
func Reschedule(patientID uuid.UUID, doctor appointment.Doctor, directory Directory, booker Booker) *Wizard {
	w := New(patientID, directory, booker)
	w.s.Draft.Specialization = doctor.Specialization
	w.s.Draft.DoctorID = doctor.ID
	w.s.Draft.DoctorName = doctor.Name
	w.s.Stage = StageSlot
	return w
}

func (w *Wizard) Session() Session {
	return w.s
}

func (w *Wizard) ID() uuid.UUID {
	return w.s.ID
}

func (w *Wizard) Stage() Stage {
	return w.s.Stage
}

func (w *Wizard) Draft() Draft {
	return w.s.Draft
}

func (w *Wizard) Message() string {
	return w.s.Message
}

// SetSpecialization clears the chosen doctor when the specialization changes.
func (w *Wizard) SetSpecialization(specialization string) {
	specialization = strings.TrimSpace(specialization)
	if !strings.EqualFold(specialization, w.s.Draft.Specialization) {
		w.s.Draft.DoctorID = uuid.Nil
		w.s.Draft.DoctorName = ""
	}
	w.s.Draft.Specialization = specialization
	w.touch()
}

func (w *Wizard) SelectDoctor(ctx context.Context, id uuid.UUID) error {
	doc, err := w.directory.ResolveDoctor(ctx, id)
	if err != nil {
		return err
	}

	switch {
	case w.s.Draft.Specialization == "":
		w.s.Draft.Specialization = doc.Specialization
	case !strings.EqualFold(doc.Specialization, w.s.Draft.Specialization):
		return fmt.Errorf("%s offers %s: %w", doc.Name, doc.Specialization, ErrSpecializationMismatch)
	}

	w.s.Draft.DoctorID = doc.ID
	w.s.Draft.DoctorName = doc.Name
	w.touch()
	return nil
}

func (w *Wizard) SetSlot(date appointment.Date, t string) {
	w.s.Draft.Date = date
	w.s.Draft.Time = strings.TrimSpace(t)
	w.touch()
}

func (w *Wizard) SetNotes(notes string) {
	w.s.Draft.Notes = strings.TrimSpace(notes)
	w.touch()
}

// CanAdvance reports whether the current stage has everything it needs.
func (w *Wizard) CanAdvance() bool {
	return stageComplete(w.s.Stage, w.s.Draft)
}

func stageComplete(stage Stage, d Draft) bool {
	switch stage {
	case StageProvider:
		return d.Specialization != "" && d.DoctorID != uuid.Nil
	case StageSlot:
		return !d.Date.IsZero() && d.Time != ""
	case StageNotes:
		return true
	}
	return false
}

func (w *Wizard) Next() error {
	if w.s.Stage == StageNotes {
		return ErrWrongStage
	}
	if !w.CanAdvance() {
		if w.s.Stage == StageProvider {
			w.s.Message = msgProviderMissing
		} else {
			w.s.Message = msgSlotMissing
		}
		w.s.UpdatedAt = time.Now()
		return ErrIncomplete
	}
	w.s.Stage++
	w.touch()
	return nil
}

func (w *Wizard) Back() error {
	if w.s.Stage == StageProvider {
		return ErrWrongStage
	}
	w.s.Stage--
	w.touch()
	return nil
}

// Review checks the slot against the current store and returns the confirmation summary.
// A rejected slot sends the wizard back to the slot stage.
func (w *Wizard) Review(ctx context.Context) (Summary, error) {
	if err := w.readyToBook(); err != nil {
		return Summary{}, err
	}

	err := w.booker.Validate(ctx, appointment.Candidate{Date: w.s.Draft.Date, Time: w.s.Draft.Time})
	if err != nil {
		w.reject(err)
		return Summary{}, err
	}
	return w.summary(), nil
}

// Submit places the booking when confirmed. An unconfirmed submit leaves the form as it is.
func (w *Wizard) Submit(ctx context.Context, confirmed bool) (*Result, error) {
	if err := w.readyToBook(); err != nil {
		return nil, err
	}

	summary := w.summary()
	if !confirmed {
		w.s.Message = msgNotBooked
		w.s.UpdatedAt = time.Now()
		return &Result{Outcome: OutcomeNotBooked, Summary: summary}, nil
	}

	appt, err := w.booker.CreateAppointment(ctx, appointment.NewAppointment{
		PatientID: w.s.PatientID,
		DoctorID:  w.s.Draft.DoctorID,
		Date:      w.s.Draft.Date,
		Time:      w.s.Draft.Time,
		Notes:     w.s.Draft.Notes,
	})
	if err != nil {
		w.reject(err)
		return nil, err
	}

	w.s.Stage = StageProvider
	w.s.Draft = Draft{}
	w.s.Message = msgBooked
	w.s.UpdatedAt = time.Now()
	return &Result{Outcome: OutcomeBooked, Appointment: appt, Summary: summary}, nil
}

func (w *Wizard) readyToBook() error {
	if w.s.Stage != StageNotes {
		return ErrWrongStage
	}
	if !stageComplete(StageProvider, w.s.Draft) || !stageComplete(StageSlot, w.s.Draft) {
		return ErrIncomplete
	}
	return nil
}

func (w *Wizard) reject(err error) {
	verr, ok := appointment.AsValidationError(err)
	if !ok {
		return
	}
	w.s.Stage = StageSlot
	w.s.Message = verr.Message()
	w.s.UpdatedAt = time.Now()
}

func (w *Wizard) summary() Summary {
	return Summary{
		DoctorName:     w.s.Draft.DoctorName,
		Specialization: w.s.Draft.Specialization,
		Date:           w.s.Draft.Date,
		Time:           w.s.Draft.Time,
		Notes:          w.s.Draft.Notes,
	}
}

// touch records an edit; any edit clears the previous message.
func (w *Wizard) touch() {
	w.s.Message = ""
	w.s.UpdatedAt = time.Now()
}
