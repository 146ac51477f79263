package user

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/appointment-api/internal/model"
	"github.com/jwalitptl/appointment-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/appointment-api/pkg/errors"
)

func TestListDoctors(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	users := store.Users()

	for _, u := range []*model.User{
		{Email: "b@example.com", Name: "Dr. B", Role: model.RoleDoctor},
		{Email: "p@example.com", Name: "Pat", Role: model.RolePatient},
		{Email: "a@example.com", Name: "Dr. A", Role: model.RoleDoctor},
	} {
		require.NoError(t, users.Create(ctx, u))
	}

	svc := NewService(users)
	doctors, err := svc.ListDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, doctors, 2)
	assert.Equal(t, "Dr. A", doctors[0].Name)
	assert.Equal(t, "Dr. B", doctors[1].Name)

	got, err := svc.GetDoctor(ctx, doctors[0].ID)
	require.NoError(t, err)
	assert.Equal(t, doctors[0], got)

	patients, err := users.List(ctx, &model.UserFilters{Role: model.RolePatient})
	require.NoError(t, err)
	_, err = svc.GetDoctor(ctx, patients[0].ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = svc.GetDoctor(ctx, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
