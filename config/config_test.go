package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSessionSecret(t *testing.T) {
	t.Run("insecure default allowed in development", func(t *testing.T) {
		assert.NoError(t, ValidateSessionSecret("change-me", "development"))
	})

	t.Run("insecure default rejected in production", func(t *testing.T) {
		assert.Error(t, ValidateSessionSecret("secret", "production"))
		assert.Error(t, ValidateSessionSecret("", "production"))
	})

	t.Run("short secret rejected in production", func(t *testing.T) {
		assert.Error(t, ValidateSessionSecret("abcdefghij", "production"))
	})

	t.Run("long secret accepted in production", func(t *testing.T) {
		assert.NoError(t, ValidateSessionSecret("0123456789abcdef0123456789abcdef", "production"))
	})
}

func TestGenerateSecureSecret(t *testing.T) {
	a := GenerateSecureSecret()
	b := GenerateSecureSecret()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("SESSION_SECRET", "a-long-enough-secret-for-the-test-suite")
	t.Setenv("REMINDER_SWEEP_SCHEDULE", "")
	t.Setenv("EMAIL_TEST_MODE", "off")

	cfg := Load()
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "0 8 * * *", cfg.ReminderSweepSchedule)
	assert.Equal(t, "Asia/Kolkata", cfg.SchedulerTimezone)
	assert.False(t, cfg.EmailTestMode)
	assert.False(t, cfg.IsProduction())
}
