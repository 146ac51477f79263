// Package memory provides map-backed repositories used for local runs and
// tests. Appointment references are resolved against the shared user table the
// same way the postgres joins do.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/appointment-api/internal/model"
	"github.com/jwalitptl/appointment-api/internal/repository"
)

// Store holds every table behind a single lock.
type Store struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]*model.User
	availability map[uuid.UUID][]*model.Availability
	appointments map[uuid.UUID]*appointmentRecord
	now          func() time.Time
}

type appointmentRecord struct {
	model.Appointment
	doctorID  uuid.UUID
	patientID uuid.UUID
}

func NewStore() *Store {
	return &Store{
		users:        make(map[uuid.UUID]*model.User),
		availability: make(map[uuid.UUID][]*model.Availability),
		appointments: make(map[uuid.UUID]*appointmentRecord),
		now:          time.Now,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Users() repository.UserRepository { return &userRepository{s} }

func (s *Store) Availability() repository.AvailabilityRepository {
	return &availabilityRepository{s}
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{s}
}

type userRepository struct{ s *Store }

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = r.s.now()
	user.UpdatedAt = user.CreatedAt

	stored := *user
	r.s.users[user.ID] = &stored
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) List(ctx context.Context, filters *model.UserFilters) ([]*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]*model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		if filters != nil && filters.Role != "" && u.Role != filters.Role {
			continue
		}
		out := *u
		users = append(users, &out)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

type availabilityRepository struct{ s *Store }

func (r *availabilityRepository) Replace(ctx context.Context, doctorID uuid.UUID, entries []*model.Availability) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := make([]*model.Availability, 0, len(entries))
	for _, e := range entries {
		cp := *e
		cp.DoctorID = doctorID
		stored = append(stored, &cp)
	}
	r.s.availability[doctorID] = stored
	return nil
}

func (r *availabilityRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Availability, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	entries := r.s.availability[doctorID]
	out := make([]*model.Availability, 0, len(entries))
	for _, e := range entries {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Index() < out[j].Day.Index() })
	return out, nil
}

type appointmentRepository struct{ s *Store }

func (r *appointmentRepository) Create(ctx context.Context, apt *model.Appointment) error {
	doctorID, err := uuid.Parse(apt.Doctor.ID())
	if err != nil {
		return repository.ErrNotFound
	}
	patientID, err := uuid.Parse(apt.Patient.ID())
	if err != nil {
		return repository.ErrNotFound
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[doctorID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.s.users[patientID]; !ok {
		return repository.ErrNotFound
	}
	for _, rec := range r.s.appointments {
		if rec.doctorID == doctorID && rec.Date == apt.Date && rec.Time == apt.Time && rec.HoldsSlot() {
			return repository.ErrSlotTaken
		}
	}

	apt.ID = uuid.New()
	apt.CreatedAt = r.s.now()
	apt.UpdatedAt = apt.CreatedAt

	r.s.appointments[apt.ID] = &appointmentRecord{
		Appointment: *apt,
		doctorID:    doctorID,
		patientID:   patientID,
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.resolve(rec), nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if filters == nil {
		filters = &model.AppointmentFilters{}
	}

	var out []*model.Appointment
	for _, rec := range r.s.appointments {
		if filters.DoctorID != uuid.Nil && rec.doctorID != filters.DoctorID {
			continue
		}
		if filters.PatientID != uuid.Nil && rec.patientID != filters.PatientID {
			continue
		}
		if filters.From != "" && rec.Date.Before(filters.From) {
			continue
		}
		if filters.To != "" && filters.To.Before(rec.Date) {
			continue
		}
		if !filters.IncludeArchived && rec.IsArchived {
			continue
		}
		out = append(out, r.resolve(rec))
	}
	sortByStart(out)
	return out, nil
}

func (r *appointmentRepository) ListForDoctorOnDate(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Appointment
	for _, rec := range r.s.appointments {
		if rec.doctorID == doctorID && rec.Date == date {
			out = append(out, r.resolve(rec))
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if rec.Status != from {
		return repository.ErrStatusChanged
	}

	rec.Status = to
	if to == model.AppointmentStatusArchived && !rec.IsArchived {
		prev := from
		rec.IsArchived = true
		rec.ArchivedFrom = &prev
	}
	rec.UpdatedAt = r.s.now()
	return nil
}

func (r *appointmentRepository) UpdateDetails(ctx context.Context, apt *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.appointments[apt.ID]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Reason = apt.Reason
	rec.Notes = apt.Notes
	rec.UpdatedAt = r.s.now()
	apt.UpdatedAt = rec.UpdatedAt
	return nil
}

// resolve must be called with the lock held.
func (r *appointmentRepository) resolve(rec *appointmentRecord) *model.Appointment {
	out := rec.Appointment
	if rec.ArchivedFrom != nil {
		prev := *rec.ArchivedFrom
		out.ArchivedFrom = &prev
	}
	if d, ok := r.s.users[rec.doctorID]; ok {
		out.Doctor = model.ResolvedRef(d.Summary())
	} else {
		out.Doctor = model.IDRef[model.UserSummary](rec.doctorID.String())
	}
	if p, ok := r.s.users[rec.patientID]; ok {
		out.Patient = model.ResolvedRef(p.Summary())
	} else {
		out.Patient = model.IDRef[model.UserSummary](rec.patientID.String())
	}
	return &out
}

func sortByStart(apts []*model.Appointment) {
	sort.Slice(apts, func(i, j int) bool {
		if apts[i].Date != apts[j].Date {
			return apts[i].Date < apts[j].Date
		}
		return apts[i].Time < apts[j].Time
	})
}
