package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/belle-designer/AppointmentSystem/internal/slots"
)

type stubDirectory struct {
	patients map[uuid.UUID]Patient
	doctors  map[uuid.UUID]Doctor
}

func (d *stubDirectory) ResolvePatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := d.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (d *stubDirectory) ResolveDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	doc, ok := d.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &doc, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	svc  *Service
	repo *MemoryRepository
	pub  *recordingPublisher

	p1, p2 Patient
	d1, d2 Doctor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo: NewMemoryRepository(),
		pub:  &recordingPublisher{},
		p1:   Patient{ID: uuid.New(), Name: "Ana Santos"},
		p2:   Patient{ID: uuid.New(), Name: "Ben Dizon"},
		d1:   Doctor{ID: uuid.New(), Name: "Dr. Reyes", Specialization: "Cardiology"},
		d2:   Doctor{ID: uuid.New(), Name: "Dr. Cruz", Specialization: "Pediatrics"},
	}
	dir := &stubDirectory{
		patients: map[uuid.UUID]Patient{f.p1.ID: f.p1, f.p2.ID: f.p2},
		doctors:  map[uuid.UUID]Doctor{f.d1.ID: f.d1, f.d2.ID: f.d2},
	}
	f.svc = NewService(f.repo, dir, newTestValidator(), WithPublisher(f.pub))
	return f
}

func (f *fixture) book(t *testing.T, p Patient, d Doctor, date Date, tm string) (*Appointment, error) {
	t.Helper()
	return f.svc.CreateAppointment(context.Background(), NewAppointment{
		PatientID: p.ID,
		DoctorID:  d.ID,
		Date:      date,
		Time:      tm,
	})
}

var dec1 = NewDate(2025, time.December, 1)

func TestScenarioCreateSucceedsAsPending(t *testing.T) {
	f := newFixture(t)

	a, err := f.book(t, f.p1, f.d1, dec1, "09:00 AM")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, f.p1.ID, a.PatientID)
	assert.Equal(t, f.d1.ID, a.DoctorID)
	assert.NotEqual(t, uuid.Nil, a.ID)

	assert.Equal(t, []string{EventAppointmentCreated}, f.pub.types())
	require.Len(t, f.repo.Events(), 1)
	assert.Equal(t, EventAppointmentCreated, f.repo.Events()[0].EventType)
}

func TestScenarioSlotTakenAcrossDoctors(t *testing.T) {
	f := newFixture(t)

	_, err := f.book(t, f.p1, f.d1, dec1, "09:00 AM")
	require.NoError(t, err)

	_, err = f.book(t, f.p2, f.d2, dec1, "09:00 AM")
	assert.Equal(t, ReasonSlotTaken, reasonOf(t, err))
}

func TestScenarioCapacityExceeded(t *testing.T) {
	f := newFixture(t)

	for _, tm := range slots.DefaultTimes[:5] {
		_, err := f.book(t, f.p1, f.d1, dec1, tm)
		require.NoError(t, err)
	}

	for _, tm := range slots.DefaultTimes[5:] {
		_, err := f.book(t, f.p2, f.d2, dec1, tm)
		assert.Equal(t, ReasonCapacityExceeded, reasonOf(t, err), tm)
	}
}

func TestScenarioConfirmedCannotBeCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.book(t, f.p1, f.d1, dec1, "09:00 AM")
	require.NoError(t, err)

	confirmed, err := f.svc.ConfirmAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	_, err = f.svc.CancelAppointment(ctx, a.ID)
	var terr *InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StatusConfirmed, terr.From)
	assert.Equal(t, StatusCancelled, terr.To)

	got, err := f.svc.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
}

func TestScenarioHolidayBlocksBooking(t *testing.T) {
	f := newFixture(t)
	xmas := NewDate(2025, time.December, 25)

	for _, tm := range slots.DefaultTimes {
		_, err := f.book(t, f.p1, f.d1, xmas, tm)
		assert.Equal(t, ReasonHoliday, reasonOf(t, err))
	}
	assert.Empty(t, f.repo.Events())
}

func TestCreateRejectsPastDateWithoutInsert(t *testing.T) {
	f := newFixture(t)

	_, err := f.book(t, f.p1, f.d1, NewDate(2025, time.November, 1), "09:00 AM")
	assert.Equal(t, ReasonPastDate, reasonOf(t, err))

	all, err := f.svc.ListAppointments(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.pub.types())
}

func TestCreateUnknownPeople(t *testing.T) {
	f := newFixture(t)

	_, err := f.book(t, Patient{ID: uuid.New()}, f.d1, dec1, "09:00 AM")
	assert.ErrorIs(t, err, ErrPatientNotFound)

	_, err = f.book(t, f.p1, Doctor{ID: uuid.New()}, dec1, "09:00 AM")
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestCancelledSlotCanBeRebooked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.book(t, f.p1, f.d1, dec1, "09:00 AM")
	require.NoError(t, err)
	_, err = f.svc.CancelAppointment(ctx, a.ID)
	require.NoError(t, err)

	_, err = f.book(t, f.p2, f.d2, dec1, "09:00 AM")
	assert.NoError(t, err)
}

func TestDeclinedKeepsHoldingSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.book(t, f.p1, f.d1, dec1, "09:00 AM")
	require.NoError(t, err)
	_, err = f.svc.DeclineAppointment(ctx, a.ID)
	require.NoError(t, err)

	_, err = f.book(t, f.p2, f.d2, dec1, "09:00 AM")
	assert.Equal(t, ReasonSlotTaken, reasonOf(t, err))
}

func TestTransitionUnknownAppointment(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ConfirmAppointment(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestTransitionTerminalStatesRejectEverything(t *testing.T) {
	ctx := context.Background()

	for _, terminal := range []AppointmentStatus{StatusConfirmed, StatusDeclined, StatusCancelled} {
		f := newFixture(t)
		a, err := f.book(t, f.p1, f.d1, dec1, "09:00 AM")
		require.NoError(t, err)
		_, err = f.svc.TransitionAppointment(ctx, a.ID, terminal)
		require.NoError(t, err)

		for _, to := range []AppointmentStatus{StatusPending, StatusConfirmed, StatusDeclined, StatusCancelled} {
			_, err := f.svc.TransitionAppointment(ctx, a.ID, to)
			assert.ErrorIs(t, err, ErrInvalidStatusTransition, "%s -> %s", terminal, to)
		}
	}
}

func TestConcurrentTransitionsOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.book(t, f.p1, f.d1, dec1, "09:00 AM")
	require.NoError(t, err)

	targets := []AppointmentStatus{StatusConfirmed, StatusDeclined, StatusCancelled}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []AppointmentStatus
	)
	for i := 0; i < 30; i++ {
		to := targets[i%len(targets)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.TransitionAppointment(ctx, a.ID, to); err == nil {
				mu.Lock()
				wins = append(wins, to)
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrInvalidStatusTransition)
			}
		}()
	}
	wg.Wait()

	require.Len(t, wins, 1)
	got, err := f.svc.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, wins[0], got.Status)
}

func TestConcurrentCreatesKeepUniquenessAndCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dates := []Date{dec1, NewDate(2025, time.December, 2)}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		date := dates[i%len(dates)]
		tm := slots.DefaultTimes[i%7]
		p, d := f.p1, f.d1
		if i%3 == 0 {
			p, d = f.p2, f.d2
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.book(t, p, d, date, tm)
			if err != nil {
				_, ok := AsValidationError(err)
				assert.True(t, ok, "unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	all, err := f.svc.ListAppointments(ctx, Filter{})
	require.NoError(t, err)

	perDate := map[Date]int{}
	perSlot := map[string]int{}
	for _, a := range all {
		if !a.Holds() {
			continue
		}
		perDate[a.Date]++
		perSlot[a.Date.String()+" "+a.Time]++
	}
	for date, n := range perDate {
		assert.LessOrEqual(t, n, DefaultDailyCapacity, date.String())
	}
	for slot, n := range perSlot {
		assert.Equal(t, 1, n, slot)
	}
	assert.Len(t, all, 2*DefaultDailyCapacity)
}

func TestPublisherFailureDoesNotUndoMutation(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	a, err := f.book(t, f.p1, f.d1, dec1, "09:00 AM")
	require.NoError(t, err)

	_, err = f.svc.ConfirmAppointment(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{EventAppointmentCreated, EventAppointmentConfirmed}, f.pub.types())
}

type blockingPublisher struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

// Publish parks the first call until release is closed.
func (p *blockingPublisher) Publish(ctx context.Context, ev Event) error {
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.entered)
		<-p.release
	}
	return nil
}

func TestSlowPublisherDoesNotHoldTheDateLock(t *testing.T) {
	f := newFixture(t)
	pub := &blockingPublisher{entered: make(chan struct{}), release: make(chan struct{})}
	f.svc = NewService(f.repo, f.svc.directory, newTestValidator(), WithPublisher(pub))

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.book(t, f.p1, f.d1, dec1, "09:00 AM")
		firstDone <- err
	}()

	select {
	case <-pub.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher was never called")
	}
	require.Len(t, f.repo.Events(), 1, "event log row is written before publishing")

	secondDone := make(chan error, 1)
	go func() {
		_, err := f.book(t, f.p2, f.d2, dec1, "10:00 AM")
		secondDone <- err
	}()

	select {
	case err := <-secondDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second booking on the same date waited for the publisher")
	}

	close(pub.release)
	require.NoError(t, <-firstDone)
	assert.Len(t, f.repo.Events(), 2)
}

func TestServiceValidateDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.book(t, f.p1, f.d1, dec1, "09:00 AM")
	require.NoError(t, err)

	c := Candidate{Date: dec1, Time: "09:00 AM"}
	first := f.svc.Validate(ctx, c)
	second := f.svc.Validate(ctx, c)
	assert.Equal(t, first, second)
	assert.Equal(t, ReasonSlotTaken, reasonOf(t, first))
	assert.Len(t, f.repo.Events(), 1)

	assert.NoError(t, f.svc.Validate(ctx, Candidate{Date: dec1, Time: "10:00 AM"}))
}

func TestListAppointmentsProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dec3 := NewDate(2025, time.December, 3)
	dec2 := NewDate(2025, time.December, 2)

	_, err := f.book(t, f.p1, f.d1, dec3, "09:00 AM")
	require.NoError(t, err)
	_, err = f.book(t, f.p1, f.d2, dec1, "09:00 AM")
	require.NoError(t, err)
	b, err := f.book(t, f.p2, f.d1, dec2, "09:00 AM")
	require.NoError(t, err)
	_, err = f.svc.ConfirmAppointment(ctx, b.ID)
	require.NoError(t, err)

	t.Run("patient view sorted ascending", func(t *testing.T) {
		got, err := f.svc.ListAppointments(ctx, Filter{PatientID: f.p1.ID})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, dec1, got[0].Date)
		assert.Equal(t, dec3, got[1].Date)
	})

	t.Run("descending", func(t *testing.T) {
		got, err := f.svc.ListAppointments(ctx, Filter{Sort: SortDesc})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, dec3, got[0].Date)
	})

	t.Run("search by doctor name from patient view", func(t *testing.T) {
		got, err := f.svc.ListAppointments(ctx, Filter{PatientID: f.p1.ID, Search: "cruz"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, f.d2.ID, got[0].DoctorID)
	})

	t.Run("search by patient name from doctor view", func(t *testing.T) {
		got, err := f.svc.ListAppointments(ctx, Filter{DoctorID: f.d1.ID, Search: "BEN"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, f.p2.ID, got[0].PatientID)
	})

	t.Run("search by date substring", func(t *testing.T) {
		got, err := f.svc.ListAppointments(ctx, Filter{Search: "12-02"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, dec2, got[0].Date)
	})

	t.Run("status filter", func(t *testing.T) {
		got, err := f.svc.ListAppointments(ctx, Filter{Status: StatusConfirmed})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, b.ID, got[0].ID)
	})

	t.Run("pagination", func(t *testing.T) {
		got, err := f.svc.ListAppointments(ctx, Filter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, dec2, got[0].Date)

		got, err = f.svc.ListAppointments(ctx, Filter{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestHydrate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.book(t, f.p1, f.d1, dec1, "09:00 AM")
	require.NoError(t, err)
	c, err := f.svc.ConfirmAppointment(ctx, a.ID)
	require.NoError(t, err)

	stranger := Appointment{ID: uuid.New(), PatientID: uuid.New(), DoctorID: uuid.New(), Date: dec1, Time: "10:00 AM", Status: StatusPending}

	now := time.Date(2025, time.December, 1, 12, 0, 0, 0, time.UTC)
	got := f.svc.Hydrate(ctx, []Appointment{*c, stranger}, now)
	require.Len(t, got, 2)

	require.NotNil(t, got[0].Patient)
	require.NotNil(t, got[0].Doctor)
	assert.Equal(t, "Ana Santos", got[0].Patient.Name)
	assert.Equal(t, TimingDone, got[0].Timing)

	assert.Nil(t, got[1].Patient)
	assert.Nil(t, got[1].Doctor)
	assert.Equal(t, Timing(""), got[1].Timing)
}
