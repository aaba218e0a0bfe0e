package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 24, cfg.Reminder.Hours)
	assert.Equal(t, 900, cfg.Reminder.SweepInterval)
	assert.Equal(t, 3, cfg.Reminder.MaxAttempts)
	assert.True(t, cfg.Reminder.Enabled)
	assert.True(t, cfg.SMS.Enabled)
	assert.Equal(t, "local", cfg.Dispatch.Mode)
	assert.Equal(t, "Asia/Shanghai", cfg.Timezone)
}

func TestLoadConfig_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "memory")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_AMQPRequiresDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("DISPATCH_MODE", "amqp")
	t.Setenv("RABBITMQ_DSN", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_ReminderOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REMINDER_HOURS", "12")
	t.Setenv("REMINDER_SWEEP_INTERVAL", "60")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Reminder.Hours)
	assert.Equal(t, 60, cfg.Reminder.SweepInterval)
}
