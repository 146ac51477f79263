package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/appointment-api/internal/model"
	"github.com/jwalitptl/appointment-api/internal/repository"
)

func seedUsers(t *testing.T, s *Store) (doctor, patient *model.User) {
	t.Helper()
	ctx := context.Background()
	doctor = &model.User{Email: "doc@example.com", Name: "Dr. Grey", Role: model.RoleDoctor}
	patient = &model.User{Email: "pat@example.com", Name: "Pat", Role: model.RolePatient}
	require.NoError(t, s.Users().Create(ctx, doctor))
	require.NoError(t, s.Users().Create(ctx, patient))
	return doctor, patient
}

func appointmentAt(doctor, patient *model.User, date, at string) *model.Appointment {
	return &model.Appointment{
		Doctor:  model.IDRef[model.UserSummary](doctor.ID.String()),
		Patient: model.IDRef[model.UserSummary](patient.ID.String()),
		Date:    model.Date(date),
		Time:    model.MustParseClock(at),
		Reason:  "Follow-up on blood work",
		Status:  model.AppointmentStatusPending,
	}
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	s := NewStore()
	seedUsers(t, s)

	err := s.Users().Create(context.Background(), &model.User{Email: "DOC@example.com", Name: "Other"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	u, err := s.Users().GetByEmail(context.Background(), "Pat@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "Pat", u.Name)

	doctors, err := s.Users().List(context.Background(), &model.UserFilters{Role: model.RoleDoctor})
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, "Dr. Grey", doctors[0].Name)
}

func TestAppointmentRepository_SlotHeldUntilCancelled(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	doctor, patient := seedUsers(t, s)
	repo := s.Appointments()

	first := appointmentAt(doctor, patient, "2030-01-07", "09:00")
	require.NoError(t, repo.Create(ctx, first))

	err := repo.Create(ctx, appointmentAt(doctor, patient, "2030-01-07", "09:00"))
	assert.ErrorIs(t, err, repository.ErrSlotTaken)

	require.NoError(t, repo.UpdateStatus(ctx, first.ID, model.AppointmentStatusPending, model.AppointmentStatusCancelled))
	require.NoError(t, repo.Create(ctx, appointmentAt(doctor, patient, "2030-01-07", "09:00")))
}

func TestAppointmentRepository_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	doctor, patient := seedUsers(t, s)
	repo := s.Appointments()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Create(ctx, appointmentAt(doctor, patient, "2030-01-07", "10:00"))
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrSlotTaken)
	}
	assert.Equal(t, 1, ok)
}

func TestAppointmentRepository_UpdateStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	doctor, patient := seedUsers(t, s)
	repo := s.Appointments()

	apt := appointmentAt(doctor, patient, "2030-01-07", "08:00")
	require.NoError(t, repo.Create(ctx, apt))
	require.NoError(t, repo.UpdateStatus(ctx, apt.ID, model.AppointmentStatusPending, model.AppointmentStatusConfirmed))

	err := repo.UpdateStatus(ctx, apt.ID, model.AppointmentStatusPending, model.AppointmentStatusCancelled)
	assert.ErrorIs(t, err, repository.ErrStatusChanged)

	err = repo.UpdateStatus(ctx, uuid.New(), model.AppointmentStatusPending, model.AppointmentStatusCancelled)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAppointmentRepository_ArchiveAndList(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	doctor, patient := seedUsers(t, s)
	repo := s.Appointments()

	late := appointmentAt(doctor, patient, "2030-01-08", "08:00")
	early := appointmentAt(doctor, patient, "2030-01-07", "16:30")
	require.NoError(t, repo.Create(ctx, late))
	require.NoError(t, repo.Create(ctx, early))

	require.NoError(t, repo.UpdateStatus(ctx, early.ID, model.AppointmentStatusPending, model.AppointmentStatusCancelled))
	require.NoError(t, repo.UpdateStatus(ctx, early.ID, model.AppointmentStatusCancelled, model.AppointmentStatusArchived))

	archived, err := repo.Get(ctx, early.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)
	require.NotNil(t, archived.ArchivedFrom)
	assert.Equal(t, model.AppointmentStatusCancelled, *archived.ArchivedFrom)
	assert.False(t, archived.HoldsSlot())

	active, err := repo.List(ctx, &model.AppointmentFilters{PatientID: patient.ID})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, late.ID, active[0].ID)

	all, err := repo.List(ctx, &model.AppointmentFilters{DoctorID: doctor.ID, IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, early.ID, all[0].ID)

	snap, ok := all[0].Doctor.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "Dr. Grey", snap.Name)

	ranged, err := repo.List(ctx, &model.AppointmentFilters{From: "2030-01-08", To: "2030-01-08", IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, late.ID, ranged[0].ID)
}

func TestAvailabilityRepository_ReplaceSortsByDay(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	doctorID := uuid.New()

	err := s.Availability().Replace(ctx, doctorID, []*model.Availability{
		{Day: model.Friday, StartTime: model.MustParseClock("09:00"), EndTime: model.MustParseClock("12:00")},
		{Day: model.Monday, StartTime: model.MustParseClock("08:00"), EndTime: model.MustParseClock("10:00")},
	})
	require.NoError(t, err)

	got, err := s.Availability().ListByDoctor(ctx, doctorID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.Monday, got[0].Day)
	assert.Equal(t, doctorID, got[1].DoctorID)

	require.NoError(t, s.Availability().Replace(ctx, doctorID, nil))
	got, err = s.Availability().ListByDoctor(ctx, doctorID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
