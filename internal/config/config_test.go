package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadConfig_DefaultsAndEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APP_JWT_SECRET", "from-env")
	t.Setenv("APP_STORAGE_DRIVER", "memory")
	t.Setenv("APP_SCHEDULING_TIMEZONE", "Europe/Berlin")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 24, cfg.JWT.ExpiryHours)
	assert.Equal(t, 10, cfg.Security.BcryptCost)

	hours, err := cfg.Scheduling.OperatingHours()
	require.NoError(t, err)
	assert.Equal(t, "08:00", hours.Open.String())
	assert.Equal(t, "17:00", hours.Close.String())
	assert.Equal(t, 30*time.Minute, hours.SlotStep)

	loc, err := cfg.Scheduling.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	yml := []byte("storage:\n  driver: memory\njwt:\n  secret: file-secret\nscheduling:\n  open: \"09:00\"\n  close: \"12:00\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), yml, 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, "09:00", cfg.Scheduling.Open)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("APP_STORAGE_DRIVER", "memory")
	t.Setenv("APP_JWT_SECRET", "from-env")
	env := []byte("APP_LOG_LEVEL=debug\nAPP_JWT_SECRET=from-dotenv\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), env, 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("APP_LOG_LEVEL") })

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "from-env", cfg.JWT.Secret, "process environment wins over .env")
}

func TestLoadConfig_RequiresSecret(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APP_STORAGE_DRIVER", "memory")
	t.Setenv("APP_JWT_SECRET", "")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "jwt.secret")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Storage:    StorageConfig{Driver: "postgres"},
			JWT:        JWTConfig{Secret: "s", ExpiryHours: 1},
			Scheduling: SchedulingConfig{SlotMinutes: 30, Open: "08:00", Close: "17:00"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }},
		{"non-positive expiry", func(c *Config) { c.JWT.ExpiryHours = 0 }},
		{"close before open", func(c *Config) { c.Scheduling.Close = "07:00" }},
		{"bad clock", func(c *Config) { c.Scheduling.Open = "8am" }},
		{"zero slot length", func(c *Config) { c.Scheduling.SlotMinutes = 0 }},
		{"unknown timezone", func(c *Config) { c.Scheduling.Timezone = "Nowhere/Land" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "clinic", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=clinic sslmode=disable", c.DSN())
}
