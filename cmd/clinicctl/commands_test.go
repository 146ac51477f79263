package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/appointment-api/internal/app"
	"github.com/jwalitptl/appointment-api/internal/config"
	"github.com/jwalitptl/appointment-api/internal/model"
	"github.com/jwalitptl/appointment-api/pkg/client"
	apperrors "github.com/jwalitptl/appointment-api/pkg/errors"
)

func startServer(t *testing.T) string {
	t.Helper()
	cfg := &config.Config{
		Server:     config.ServerConfig{RequestTimeout: 5 * time.Second},
		Storage:    config.StorageConfig{Driver: "memory"},
		JWT:        config.JWTConfig{Secret: "cli-secret", ExpiryHours: 1},
		Scheduling: config.SchedulingConfig{SlotMinutes: 30, Open: "08:00", Close: "17:00", Timezone: "UTC"},
		Security:   config.SecurityConfig{BcryptCost: 4},
	}
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	a, err := app.New(context.Background(), cfg, zerolog.Nop(), app.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	srv := httptest.NewServer(a.Engine)
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	return srv.URL
}

// run executes one clinicctl invocation with a credential file at creds.
func run(t *testing.T, baseURL, creds string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(func() (*client.Client, error) {
		return newClient(settings{BaseURL: baseURL, Credentials: creds, Timeout: 5 * time.Second, Retries: 1, LogLevel: "disabled"})
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_BookingFlow(t *testing.T) {
	url := startServer(t)
	dir := t.TempDir()
	doctorCreds := filepath.Join(dir, "doctor")
	patientCreds := filepath.Join(dir, "patient")

	out, err := run(t, url, doctorCreds, "register", "--json",
		"--email", "house@example.com", "--password", "correct-horse", "--name", "Greg House", "--role", "doctor")
	require.NoError(t, err)
	var doctor model.User
	require.NoError(t, json.Unmarshal([]byte(out), &doctor))

	_, err = run(t, url, doctorCreds, "login", "--email", "house@example.com", "--password", "correct-horse")
	require.NoError(t, err)

	out, err = run(t, url, doctorCreds, "availability", "set", doctor.ID.String(), "--window", "Monday=08:00-10:00")
	require.NoError(t, err)
	assert.Contains(t, out, "monday")

	_, err = run(t, url, patientCreds, "register",
		"--email", "pat@example.com", "--password", "correct-horse", "--name", "Pat")
	require.NoError(t, err)
	_, err = run(t, url, patientCreds, "login", "--email", "pat@example.com", "--password", "correct-horse")
	require.NoError(t, err)

	out, err = run(t, url, patientCreds, "book", "--json",
		"--doctor", doctor.ID.String(), "--date", "2030-01-07", "--time", "09:00", "--reason", "Recurring migraine since last week")
	require.NoError(t, err)
	var apt model.Appointment
	require.NoError(t, json.Unmarshal([]byte(out), &apt))

	out, err = run(t, url, doctorCreds, "status", apt.ID.String(), "confirmed")
	require.NoError(t, err)
	assert.Contains(t, out, "confirmed")

	out, err = run(t, url, patientCreds, "slots", doctor.ID.String(), "--date", "2030-01-07")
	require.NoError(t, err)
	assert.Contains(t, out, "08:00 08:30 09:30")

	_, err = run(t, url, patientCreds, "status", apt.ID.String(), "confirmed")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition), "got %v", err)

	out, err = run(t, url, patientCreds, "appointments")
	require.NoError(t, err)
	assert.Contains(t, out, "Greg House")

	_, err = run(t, url, patientCreds, "logout")
	require.NoError(t, err)
	_, err = run(t, url, patientCreds, "whoami")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized), "got %v", err)
}

func TestCLI_RejectsBadArguments(t *testing.T) {
	creds := filepath.Join(t.TempDir(), "creds")

	_, err := run(t, "http://127.0.0.1:1", creds, "archive", "not-a-uuid")
	assert.Error(t, err)

	_, err = run(t, "http://127.0.0.1:1", creds, "status", "7f1c6a8e-7d0b-4b55-9d55-3f0f3a0f9a11", "done")
	assert.Error(t, err)

	_, err = run(t, "http://127.0.0.1:1", creds, "availability", "set", "7f1c6a8e-7d0b-4b55-9d55-3f0f3a0f9a11", "--window", "monday")
	assert.Error(t, err)
}

func TestParseWindows(t *testing.T) {
	entries, err := parseWindows([]string{"Monday=08:00-12:00", " friday = 13:00 - 17:00"})
	require.NoError(t, err)
	assert.Equal(t, []model.AvailabilityInput{
		{Day: "monday", StartTime: "08:00", EndTime: "12:00"},
		{Day: "friday", StartTime: "13:00", EndTime: "17:00"},
	}, entries)

	_, err = parseWindows([]string{"monday 08:00-12:00"})
	assert.Error(t, err)
}
