// Command clinicctl is a terminal client for the appointment API. The bearer
// credential lives in a 0600 file under the user config directory.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/jwalitptl/appointment-api/pkg/client"
	"github.com/jwalitptl/appointment-api/pkg/logger"
	"github.com/jwalitptl/appointment-api/pkg/retry"
	"github.com/jwalitptl/appointment-api/pkg/session"
)

// settings are read from CLINICCTL_* environment variables.
type settings struct {
	BaseURL     string        `envconfig:"BASE_URL" default:"http://localhost:8080"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"30s"`
	Credentials string        `envconfig:"CREDENTIALS"`
	Retries     int           `envconfig:"RETRIES" default:"4"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"warn"`
}

func loadSettings() (settings, error) {
	var s settings
	if err := envconfig.Process("clinicctl", &s); err != nil {
		return s, fmt.Errorf("failed to read CLINICCTL_* settings: %w", err)
	}
	if s.Credentials == "" {
		path, err := session.DefaultPath()
		if err != nil {
			return s, err
		}
		s.Credentials = path
	}
	return s, nil
}

func newClient(s settings) (*client.Client, error) {
	l := logger.New(logger.Config{Level: s.LogLevel, Pretty: true, Output: os.Stderr})

	policy := retry.DefaultPolicy()
	if s.Retries > 0 {
		policy.MaxAttempts = s.Retries
	}

	sess := session.New(session.NewFileStore(s.Credentials), session.WithLogger(l))
	return client.New(s.BaseURL,
		client.WithSession(sess),
		client.WithRetryPolicy(policy),
		client.WithTimeout(s.Timeout),
		client.WithLogger(l),
	)
}

func main() {
	root := newRootCmd(func() (*client.Client, error) {
		s, err := loadSettings()
		if err != nil {
			return nil, err
		}
		return newClient(s)
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
