package settings

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/memstore"
)

type mapCache struct {
	values map[string]string
	sets   int
}

func (c *mapCache) Get(ctx context.Context, key string) *redis.StringCmd {
	if v, ok := c.values[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (c *mapCache) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	c.sets++
	c.values[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Reminder.Enabled = true
	cfg.Reminder.Hours = 24
	cfg.SMS.Enabled = true
	cfg.Redis.SettingsCacheTTL = 60
	return cfg
}

func TestService_DefaultsFromConfig(t *testing.T) {
	svc := NewService(testConfig(), memstore.New(), nil, nil)
	ctx := context.Background()

	assert.True(t, svc.Bool(ctx, domain.SettingShiftReminderEnabled))
	assert.True(t, svc.Bool(ctx, domain.SettingSMSEnabled))
	assert.Equal(t, 24, svc.Int(ctx, domain.SettingShiftReminderHours))
	assert.Equal(t, "fallback", svc.String(ctx, domain.SettingTemplatePrefix+"reminder", "fallback"))
}

func TestService_StoreOverridesDefaults(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	require.NoError(t, store.SetSetting(ctx, domain.SettingShiftReminderHours, "12"))
	require.NoError(t, store.SetSetting(ctx, domain.SettingSMSEnabled, "false"))

	svc := NewService(testConfig(), store, nil, nil)

	assert.Equal(t, 12, svc.Int(ctx, domain.SettingShiftReminderHours))
	assert.False(t, svc.Bool(ctx, domain.SettingSMSEnabled))
}

func TestService_InvalidValueFallsBack(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	require.NoError(t, store.SetSetting(ctx, domain.SettingShiftReminderHours, "soon"))

	svc := NewService(testConfig(), store, nil, nil)

	assert.Equal(t, 24, svc.Int(ctx, domain.SettingShiftReminderHours))
}

func TestService_CachesLookups(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	require.NoError(t, store.SetSetting(ctx, domain.SettingShiftReminderHours, "6"))

	cache := &mapCache{values: map[string]string{}}
	svc := NewService(testConfig(), store, cache, nil)

	assert.Equal(t, 6, svc.Int(ctx, domain.SettingShiftReminderHours))

	// 缓存命中后不再读取数据库
	require.NoError(t, store.SetSetting(ctx, domain.SettingShiftReminderHours, "8"))
	assert.Equal(t, 6, svc.Int(ctx, domain.SettingShiftReminderHours))
	assert.Equal(t, 1, cache.sets)

	// 不存在的设置项同样会被缓存
	assert.True(t, svc.Bool(ctx, domain.SettingSMSEnabled))
	assert.True(t, svc.Bool(ctx, domain.SettingSMSEnabled))
	assert.Equal(t, 2, cache.sets)
}
