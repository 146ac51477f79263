package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/jwalitptl/appointment-api/pkg/errors"
)

// MaxTokenLength bounds what the guard is willing to decode.
const MaxTokenLength = 4096

type Reason string

const (
	ReasonNone      Reason = ""
	ReasonMissing   Reason = "missing"
	ReasonMalformed Reason = "malformed"
	ReasonExpired   Reason = "expired"
)

// Result is the guard's verdict. Provisional means the expiry could not be
// read and the server is left to decide.
type Result struct {
	Valid       bool
	SubjectID   string
	Reason      Reason
	Provisional bool
}

// Err converts a rejection into the matching application error.
func (r Result) Err() error {
	switch r.Reason {
	case ReasonNone:
		return nil
	case ReasonMissing:
		return apperrors.Unauthorized(nil)
	case ReasonExpired:
		return apperrors.Expired()
	default:
		return apperrors.Malformed(string(r.Reason))
	}
}

// Purge reports whether the stored credential must be dropped.
func (r Result) Purge() bool {
	return r.Reason == ReasonMalformed || r.Reason == ReasonExpired
}

// Guard inspects a bearer token before it is sent. It never verifies the
// signature and never grants access on its own: it either rejects early or
// defers to the server.
type Guard struct {
	now    func() time.Time
	parser *jwt.Parser
}

func NewGuard() *Guard {
	return &Guard{now: time.Now, parser: jwt.NewParser()}
}

// WithClock returns a copy of the guard that reads time from now.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	cp := *g
	cp.now = now
	return &cp
}

// Validate runs the checks in order: presence, shape, expiry.
func (g *Guard) Validate(token string) Result {
	if token == "" {
		return Result{Reason: ReasonMissing}
	}
	if len(token) > MaxTokenLength || strings.Count(token, ".") != 2 {
		return Result{Reason: ReasonMalformed}
	}

	// An unknown or absent alg still leaves the claims decoded.
	claims := jwt.MapClaims{}
	if _, _, err := g.parser.ParseUnverified(token, claims); err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return Result{Valid: true, Provisional: true}
	}
	subject, _ := claims.GetSubject()

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return Result{Valid: true, SubjectID: subject, Provisional: true}
	}
	if exp.Time.Before(g.now()) {
		return Result{SubjectID: subject, Reason: ReasonExpired}
	}
	return Result{Valid: true, SubjectID: subject}
}
