package user

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/appointment-api/internal/model"
	"github.com/jwalitptl/appointment-api/internal/repository"
	apperrors "github.com/jwalitptl/appointment-api/pkg/errors"
)

type Service struct {
	repo repository.UserRepository
}

func NewService(repo repository.UserRepository) *Service {
	return &Service{repo: repo}
}

// ListDoctors returns doctor snapshots, the form used in resolved references.
func (s *Service) ListDoctors(ctx context.Context) ([]model.UserSummary, error) {
	users, err := s.repo.List(ctx, &model.UserFilters{Role: model.RoleDoctor})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	doctors := make([]model.UserSummary, 0, len(users))
	for _, u := range users {
		doctors = append(doctors, u.Summary())
	}
	return doctors, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (model.UserSummary, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.UserSummary{}, apperrors.NotFound("doctor", err)
		}
		return model.UserSummary{}, apperrors.Internal(err)
	}
	if u.Role != model.RoleDoctor {
		return model.UserSummary{}, apperrors.NotFound("doctor", nil)
	}
	return u.Summary(), nil
}
