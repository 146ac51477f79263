package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/appointment-api/internal/model"
	"github.com/jwalitptl/appointment-api/internal/repository/memory"
	"github.com/jwalitptl/appointment-api/internal/service/availability"
	"github.com/jwalitptl/appointment-api/internal/service/event"
	apperrors "github.com/jwalitptl/appointment-api/pkg/errors"
)

const monday = "2030-01-07"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []event.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc       *Service
	clock     *fakeClock
	events    *recordingPublisher
	doctor    model.Actor
	patient   model.Actor
	stranger  model.Actor
	otherDoc  model.Actor
	doctorID  uuid.UUID
	patientID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	users := store.Users()

	mkUser := func(name string, role model.Role) model.Actor {
		u := &model.User{Email: name + "@example.com", Name: name, Role: role, PasswordHash: "x"}
		require.NoError(t, users.Create(ctx, u))
		return model.Actor{ID: u.ID, Role: role}
	}

	f := &fixture{
		clock:  &fakeClock{t: time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)},
		events: &recordingPublisher{},
	}
	f.doctor = mkUser("grey", model.RoleDoctor)
	f.otherDoc = mkUser("house", model.RoleDoctor)
	f.patient = mkUser("pat", model.RolePatient)
	f.stranger = mkUser("sam", model.RolePatient)
	f.doctorID = f.doctor.ID
	f.patientID = f.patient.ID

	hours := model.DefaultOperatingHours()
	avail := availability.NewService(store.Availability(), users, hours)
	_, err := avail.Set(ctx, f.doctor, f.doctorID, &model.SetAvailabilityRequest{
		Entries: []model.AvailabilityInput{{Day: "monday", StartTime: "08:00", EndTime: "10:00"}},
	})
	require.NoError(t, err)

	f.svc = NewService(store.Appointments(), users, avail, hours,
		WithClock(f.clock.Now),
		WithLocation(time.UTC),
		WithPublisher(f.events),
	)
	return f
}

func (f *fixture) request(at string) *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		DoctorID: f.doctorID.String(),
		Date:     monday,
		Time:     at,
		Reason:   "persistent headache for a week",
	}
}

func (f *fixture) book(t *testing.T, at string) *model.Appointment {
	t.Helper()
	apt, err := f.svc.Create(context.Background(), f.patient, f.request(at))
	require.NoError(t, err)
	return apt
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.CodeOf(err), "got %v", err)
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	apt := f.book(t, "09:00")

	assert.NotEqual(t, uuid.Nil, apt.ID)
	assert.Equal(t, model.AppointmentStatusPending, apt.Status)
	assert.Equal(t, f.doctorID.String(), apt.Doctor.ID())
	assert.Equal(t, f.patientID.String(), apt.Patient.ID())
	assert.True(t, apt.Doctor.IsResolved())
	assert.False(t, apt.IsArchived)
	assert.Equal(t, []event.EventType{event.AppointmentCreated}, f.events.types())
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(r *model.CreateAppointmentRequest)
		code   apperrors.ErrorCode
	}{
		{"reason too short", func(r *model.CreateAppointmentRequest) { r.Reason = "  short   " }, apperrors.ErrValidation},
		{"off grid", func(r *model.CreateAppointmentRequest) { r.Time = "09:15" }, apperrors.ErrValidation},
		{"outside window", func(r *model.CreateAppointmentRequest) { r.Time = "10:00" }, apperrors.ErrValidation},
		{"no availability that day", func(r *model.CreateAppointmentRequest) { r.Date = "2030-01-08" }, apperrors.ErrValidation},
		{"in the past", func(r *model.CreateAppointmentRequest) { r.Date = "2029-12-31" }, apperrors.ErrValidation},
		{"bad date", func(r *model.CreateAppointmentRequest) { r.Date = "2030-02-30" }, apperrors.ErrValidation},
		{"unknown doctor", func(r *model.CreateAppointmentRequest) { r.DoctorID = uuid.NewString() }, apperrors.ErrNotFound},
		{"patient booking for someone else", func(r *model.CreateAppointmentRequest) { r.PatientID = f.stranger.ID.String() }, apperrors.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request("09:00")
			tt.mutate(req)
			_, err := f.svc.Create(ctx, f.patient, req)
			assertCode(t, err, tt.code)
		})
	}
	assert.Empty(t, f.events.types())
}

func TestCreate_DoctorBooksOnPatientsBehalf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.request("08:30")
	_, err := f.svc.Create(ctx, f.doctor, req)
	assertCode(t, err, apperrors.ErrValidation)

	req.PatientID = f.patientID.String()
	apt, err := f.svc.Create(ctx, f.doctor, req)
	require.NoError(t, err)
	assert.Equal(t, f.patientID.String(), apt.Patient.ID())

	_, err = f.svc.Create(ctx, f.otherDoc, f.request("09:00"))
	assertCode(t, err, apperrors.ErrForbidden)
}

func TestCreate_SlotTaken(t *testing.T) {
	f := newFixture(t)
	f.book(t, "09:00")

	_, err := f.svc.Create(context.Background(), f.stranger, f.request("09:00"))
	assertCode(t, err, apperrors.ErrSlotConflict)
}

func TestCreate_ConcurrentBookingsOfOneSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const writers = 2
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, writers)
	)
	actors := []model.Actor{f.patient, f.stranger}
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.Create(ctx, actors[i], f.request("08:00"))
		}(i)
	}
	close(start)
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case apperrors.Is(err, apperrors.ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
}

func TestConfirm_ThenPatientConfirmsAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.book(t, "09:00")

	confirmed, err := f.svc.Confirm(ctx, f.doctor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, confirmed.Status)

	_, err = f.svc.Confirm(ctx, f.patient, apt.ID)
	assertCode(t, err, apperrors.ErrInvalidTransition)
	assert.Contains(t, err.Error(), `"confirmed"`)
}

func TestUpdateStatus_RoleRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.book(t, "09:00")

	_, err := f.svc.Confirm(ctx, f.patient, apt.ID)
	assertCode(t, err, apperrors.ErrForbidden)

	_, err = f.svc.Cancel(ctx, f.stranger, apt.ID)
	assertCode(t, err, apperrors.ErrForbidden)

	_, err = f.svc.Confirm(ctx, f.otherDoc, apt.ID)
	assertCode(t, err, apperrors.ErrForbidden)

	cancelled, err := f.svc.Cancel(ctx, f.patient, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)

	_, err = f.svc.Archive(ctx, f.patient, apt.ID)
	assertCode(t, err, apperrors.ErrForbidden)
}

func TestComplete_OnlyAfterStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.book(t, "09:00")
	_, err := f.svc.Confirm(ctx, f.doctor, apt.ID)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, f.doctor, apt.ID)
	assertCode(t, err, apperrors.ErrValidation)

	f.clock.Set(time.Date(2030, 1, 7, 9, 45, 0, 0, time.UTC))
	done, err := f.svc.Complete(ctx, f.doctor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, done.Status)

	_, err = f.svc.MarkNoShow(ctx, f.doctor, apt.ID)
	assertCode(t, err, apperrors.ErrInvalidTransition)
}

func TestArchive_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.book(t, "09:00")

	_, err := f.svc.Archive(ctx, f.doctor, apt.ID)
	assertCode(t, err, apperrors.ErrInvalidTransition)

	_, err = f.svc.Cancel(ctx, f.doctor, apt.ID)
	require.NoError(t, err)

	first, err := f.svc.Archive(ctx, f.doctor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusArchived, first.Status)
	assert.True(t, first.IsArchived)
	require.NotNil(t, first.ArchivedFrom)
	assert.Equal(t, model.AppointmentStatusCancelled, *first.ArchivedFrom)

	eventsBefore := len(f.events.types())
	second, err := f.svc.Archive(ctx, f.doctor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	assert.Len(t, f.events.types(), eventsBefore, "no-op archive must not emit")

	_, err = f.svc.Cancel(ctx, f.doctor, apt.ID)
	assertCode(t, err, apperrors.ErrInvalidTransition)
}

func TestAvailableSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, err := f.svc.AvailableSlots(ctx, f.doctorID, monday)
	require.NoError(t, err)
	assert.Equal(t, model.Monday, list.Day)
	assert.Equal(t, clocks("08:00", "08:30", "09:00", "09:30"), list.Slots)

	apt := f.book(t, "09:00")
	_, err = f.svc.Confirm(ctx, f.doctor, apt.ID)
	require.NoError(t, err)

	list, err = f.svc.AvailableSlots(ctx, f.doctorID, monday)
	require.NoError(t, err)
	assert.Equal(t, clocks("08:00", "08:30", "09:30"), list.Slots)

	// Cancelling releases the slot and it can be booked again.
	_, err = f.svc.Cancel(ctx, f.patient, apt.ID)
	require.NoError(t, err)
	list, err = f.svc.AvailableSlots(ctx, f.doctorID, monday)
	require.NoError(t, err)
	assert.Contains(t, list.Slots, model.MustParseClock("09:00"))

	_, err = f.svc.Create(ctx, f.stranger, f.request("09:00"))
	require.NoError(t, err)

	list, err = f.svc.AvailableSlots(ctx, f.doctorID, "2030-01-08")
	require.NoError(t, err)
	assert.NotNil(t, list.Slots)
	assert.Empty(t, list.Slots)

	_, err = f.svc.AvailableSlots(ctx, f.patientID, monday)
	assertCode(t, err, apperrors.ErrNotFound)
}

func TestList_ScopedToActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine := f.book(t, "08:00")
	_, err := f.svc.Create(ctx, f.stranger, f.request("08:30"))
	require.NoError(t, err)

	apts, err := f.svc.List(ctx, f.patient, model.AppointmentFilters{})
	require.NoError(t, err)
	require.Len(t, apts, 1)
	assert.Equal(t, mine.ID, apts[0].ID)

	_, err = f.svc.List(ctx, f.patient, model.AppointmentFilters{PatientID: f.stranger.ID})
	assertCode(t, err, apperrors.ErrForbidden)

	apts, err = f.svc.List(ctx, f.doctor, model.AppointmentFilters{})
	require.NoError(t, err)
	assert.Len(t, apts, 2)

	apts, err = f.svc.List(ctx, f.otherDoc, model.AppointmentFilters{})
	require.NoError(t, err)
	assert.NotNil(t, apts)
	assert.Empty(t, apts)

	_, err = f.svc.List(ctx, f.doctor, model.AppointmentFilters{From: "2030-02-01", To: "2030-01-01"})
	assertCode(t, err, apperrors.ErrValidation)
}

func TestList_ExcludesArchivedByDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt := f.book(t, "08:00")
	f.book(t, "08:30")
	_, err := f.svc.Cancel(ctx, f.patient, apt.ID)
	require.NoError(t, err)
	_, err = f.svc.Archive(ctx, f.doctor, apt.ID)
	require.NoError(t, err)

	active, err := f.svc.List(ctx, f.doctor, model.AppointmentFilters{})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := f.svc.List(ctx, f.doctor, model.AppointmentFilters{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGet_RequiresParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.book(t, "08:00")

	_, err := f.svc.Get(ctx, f.stranger, apt.ID)
	assertCode(t, err, apperrors.ErrForbidden)

	_, err = f.svc.Get(ctx, f.patient, uuid.New())
	assertCode(t, err, apperrors.ErrNotFound)

	got, err := f.svc.Get(ctx, f.doctor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, apt.ID, got.ID)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.book(t, "08:00")

	notes := "bring previous lab results"
	reason := "recurring migraine episodes"
	updated, err := f.svc.Update(ctx, f.patient, apt.ID, &model.UpdateAppointmentRequest{Reason: &reason, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, reason, updated.Reason)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)

	short := "short"
	_, err = f.svc.Update(ctx, f.patient, apt.ID, &model.UpdateAppointmentRequest{Reason: &short})
	assertCode(t, err, apperrors.ErrValidation)

	_, err = f.svc.Cancel(ctx, f.patient, apt.ID)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, f.patient, apt.ID, &model.UpdateAppointmentRequest{Notes: &notes})
	assertCode(t, err, apperrors.ErrValidation)
}

func TestStatusChangesEmitEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.book(t, "08:00")

	_, err := f.svc.Confirm(ctx, f.doctor, apt.ID)
	require.NoError(t, err)

	f.events.mu.Lock()
	last := f.events.events[len(f.events.events)-1]
	f.events.mu.Unlock()

	assert.Equal(t, event.AppointmentStatusChanged, last.Type)
	assert.Equal(t, model.AppointmentStatusPending, last.From)
	assert.Equal(t, model.AppointmentStatusConfirmed, last.To)
	assert.Equal(t, apt.ID, last.Appointment.ID)
}
