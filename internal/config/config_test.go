package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("should fail without a database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")

		_, err := New()

		assert.Error(t, err)
	})

	t.Run("should apply defaults", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/offload")

		cfg, err := New()

		assert.NoError(t, err)
		assert.True(t, cfg.Headless)
		assert.Equal(t, 5*time.Second, cfg.InterDeviceDelay)
		assert.Equal(t, "8080", cfg.APIPort)
	})

	t.Run("should read overrides from the environment", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/offload")
		t.Setenv("HEADLESS", "false")
		t.Setenv("INTER_DEVICE_DELAY_SECONDS", "30")
		t.Setenv("API_PORT", "9090")

		cfg, err := New()

		assert.NoError(t, err)
		assert.False(t, cfg.Headless)
		assert.Equal(t, 30*time.Second, cfg.InterDeviceDelay)
		assert.Equal(t, "9090", cfg.APIPort)
	})

	t.Run("should reject a malformed delay", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/offload")
		t.Setenv("INTER_DEVICE_DELAY_SECONDS", "soon")

		_, err := New()

		assert.Error(t, err)
	})
}

func TestValidateScrape(t *testing.T) {
	t.Run("should require all portal credentials", func(t *testing.T) {
		cfg := &Config{OktaStartURL: "https://sso.example.com", OktaEmail: "ops@example.com"}

		assert.Error(t, cfg.ValidateScrape())

		cfg.OktaPassword = "secret"
		assert.NoError(t, cfg.ValidateScrape())
	})
}
