package availability

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/appointment-api/internal/model"
	"github.com/jwalitptl/appointment-api/internal/repository"
	apperrors "github.com/jwalitptl/appointment-api/pkg/errors"
)

const (
	cacheTTL             = 5 * time.Minute
	cacheCleanupInterval = 10 * time.Minute
)

type Service struct {
	repo  repository.AvailabilityRepository
	users repository.UserRepository
	hours model.OperatingHours
	cache *cache.Cache

	// gen counts schedule writes per doctor. A read only fills the cache if
	// no write happened while it was loading.
	mu  sync.Mutex
	gen map[uuid.UUID]uint64
}

func NewService(repo repository.AvailabilityRepository, users repository.UserRepository, hours model.OperatingHours) *Service {
	return &Service{
		repo:  repo,
		users: users,
		hours: hours,
		cache: cache.New(cacheTTL, cacheCleanupInterval),
		gen:   make(map[uuid.UUID]uint64),
	}
}

// Get returns the doctor's weekly schedule ordered monday..sunday.
func (s *Service) Get(ctx context.Context, doctorID uuid.UUID) ([]*model.Availability, error) {
	if cached, ok := s.cache.Get(doctorID.String()); ok {
		return clone(cached.([]*model.Availability)), nil
	}

	if _, err := s.doctor(ctx, doctorID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	gen := s.gen[doctorID]
	s.mu.Unlock()

	entries, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.mu.Lock()
	if s.gen[doctorID] == gen {
		s.cache.SetDefault(doctorID.String(), clone(entries))
	}
	s.mu.Unlock()
	return entries, nil
}

// Set replaces the doctor's schedule. Only the doctor may change it. When the
// request names a weekday more than once the last entry wins.
func (s *Service) Set(ctx context.Context, actor model.Actor, doctorID uuid.UUID, req *model.SetAvailabilityRequest) ([]*model.Availability, error) {
	if actor.Role != model.RoleDoctor || actor.ID != doctorID {
		return nil, apperrors.Forbidden("only the doctor may change this availability")
	}
	if _, err := s.doctor(ctx, doctorID); err != nil {
		return nil, err
	}

	entries, err := s.normalize(doctorID, req.Entries)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Replace(ctx, doctorID, entries); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, apperrors.Internal(err)
	}

	s.mu.Lock()
	s.gen[doctorID]++
	s.cache.SetDefault(doctorID.String(), clone(entries))
	s.mu.Unlock()
	return entries, nil
}

func (s *Service) normalize(doctorID uuid.UUID, inputs []model.AvailabilityInput) ([]*model.Availability, error) {
	byDay := make(map[model.Weekday]*model.Availability, len(inputs))
	for _, in := range inputs {
		day, err := model.ParseWeekday(in.Day)
		if err != nil {
			return nil, apperrors.Validation("invalid day %q", in.Day)
		}
		start, err := model.ParseClock(in.StartTime)
		if err != nil {
			return nil, apperrors.Validation("invalid start_time %q for %s", in.StartTime, day)
		}
		end, err := model.ParseClock(in.EndTime)
		if err != nil {
			return nil, apperrors.Validation("invalid end_time %q for %s", in.EndTime, day)
		}
		if start >= end {
			return nil, apperrors.Validation("start_time must be before end_time for %s", day)
		}
		if !s.hours.Within(start, end) {
			return nil, apperrors.Validation("%s window %s-%s is outside operating hours %s-%s",
				day, start, end, s.hours.Open, s.hours.Close)
		}
		byDay[day] = &model.Availability{DoctorID: doctorID, Day: day, StartTime: start, EndTime: end}
	}

	entries := make([]*model.Availability, 0, len(byDay))
	for _, day := range model.Weekdays {
		if e, ok := byDay[day]; ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (s *Service) doctor(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, apperrors.Internal(err)
	}
	if u.Role != model.RoleDoctor {
		return nil, apperrors.NotFound("doctor", nil)
	}
	return u, nil
}

func clone(entries []*model.Availability) []*model.Availability {
	out := make([]*model.Availability, len(entries))
	for i, e := range entries {
		cp := *e
		out[i] = &cp
	}
	return out
}
