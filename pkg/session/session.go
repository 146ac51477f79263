// Package session holds the client-side credential: where it is stored and
// the early checks it passes before being attached to a request.
package session

import (
	"context"

	"github.com/rs/zerolog"

	apperrors "github.com/jwalitptl/appointment-api/pkg/errors"
)

// Session binds a credential store to a guard.
type Session struct {
	store  Store
	guard  *Guard
	logger zerolog.Logger
}

type Option func(*Session)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithGuard(g *Guard) Option {
	return func(s *Session) { s.guard = g }
}

func New(store Store, opts ...Option) *Session {
	s := &Session{store: store, guard: NewGuard(), logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check loads the stored credential and runs the guard. Malformed and
// expired credentials are purged before Check returns.
func (s *Session) Check(ctx context.Context) (Result, error) {
	token, err := s.store.Load(ctx)
	if err != nil {
		return Result{}, err
	}

	res := s.guard.Validate(token)
	if res.Purge() {
		if err := s.store.Clear(ctx); err != nil {
			return res, err
		}
		s.logger.Info().Str("reason", string(res.Reason)).Msg("stored credential purged")
	}
	if res.Provisional {
		s.logger.Debug().Msg("credential expiry unreadable, deferring to server")
	}
	return res, nil
}

// Token returns the credential to attach to a request, or the error that
// explains why there is none.
func (s *Session) Token(ctx context.Context) (string, error) {
	res, err := s.Check(ctx)
	if err != nil {
		return "", err
	}
	if !res.Valid {
		return "", res.Err()
	}
	return s.store.Load(ctx)
}

func (s *Session) Login(ctx context.Context, token string) error {
	if res := s.guard.Validate(token); !res.Valid {
		return res.Err()
	}
	return s.store.Save(ctx, token)
}

func (s *Session) Logout(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// Reject drops the credential after the server refused it.
func (s *Session) Reject(ctx context.Context, cause error) error {
	if apperrors.Is(cause, apperrors.ErrUnauthorized) || apperrors.Is(cause, apperrors.ErrExpired) || apperrors.Is(cause, apperrors.ErrMalformed) {
		s.logger.Info().Err(cause).Msg("server rejected credential, purging")
		return s.store.Clear(ctx)
	}
	return nil
}
