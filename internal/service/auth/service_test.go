package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/appointment-api/internal/model"
	"github.com/jwalitptl/appointment-api/internal/repository/memory"
	"github.com/jwalitptl/appointment-api/pkg/auth"
	apperrors "github.com/jwalitptl/appointment-api/pkg/errors"
	"github.com/jwalitptl/appointment-api/pkg/security"
)

func newTestService() *Service {
	store := memory.NewStore()
	return NewService(store.Users(), auth.NewJWTService("secret", time.Hour), security.NewBcryptHasher(bcrypt.MinCost))
}

func TestRegisterLoginAuthenticate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	spec := "cardiology"
	user, err := svc.Register(ctx, &model.RegisterRequest{
		Email:          " Grey@Example.com ",
		Password:       "s3cret-pass",
		Name:           "Meredith Grey",
		Role:           model.RoleDoctor,
		Specialization: &spec,
	})
	require.NoError(t, err)
	assert.Equal(t, "grey@example.com", user.Email)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	tokens, err := svc.Login(ctx, "grey@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.Equal(t, user.ID, tokens.User.ID)

	actor, err := svc.Authenticate(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, actor.ID)
	assert.Equal(t, model.RoleDoctor, actor.Role)

	me, err := svc.Me(ctx, actor.ID)
	require.NoError(t, err)
	assert.Equal(t, "Meredith Grey", me.Name)
}

func TestRegister_Rejects(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	req := &model.RegisterRequest{Email: "pat@example.com", Password: "long-enough", Name: "Pat", Role: model.RolePatient}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	spec := "dermatology"
	_, err = svc.Register(ctx, &model.RegisterRequest{Email: "p2@example.com", Password: "long-enough", Name: "P2", Role: model.RolePatient, Specialization: &spec})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = svc.Register(ctx, &model.RegisterRequest{Email: "p3@example.com", Password: "short", Name: "P3", Role: model.RolePatient})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = svc.Register(ctx, &model.RegisterRequest{Email: "p5@example.com", Password: strings.Repeat("p", 80), Name: "P5", Role: model.RolePatient})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	assert.Contains(t, err.Error(), "at most 72")

	_, err = svc.Register(ctx, &model.RegisterRequest{Email: "p4@example.com", Password: "long-enough", Name: "P4", Role: "admin"})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, &model.RegisterRequest{Email: "pat@example.com", Password: "long-enough", Name: "Pat", Role: model.RolePatient})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "pat@example.com", "wrong-password")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	_, err = svc.Login(ctx, "nobody@example.com", "long-enough")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	_, err = svc.Authenticate(ctx, "not-a-token")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}
