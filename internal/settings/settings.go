package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

type Store interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// Cache 是 *redis.Client 的子集
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// unsetMarker 缓存中表示该设置项在数据库中不存在
const unsetMarker = "\x00unset"

type Service struct {
	store    Store
	cache    Cache
	ttl      time.Duration
	defaults map[string]string
	logger   *slog.Logger
}

// NewService cache 为 nil 时每次都直接查询 store
func NewService(cfg *config.Config, store Store, cache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store: store,
		cache: cache,
		ttl:   time.Duration(cfg.Redis.SettingsCacheTTL) * time.Second,
		defaults: map[string]string{
			domain.SettingShiftReminderEnabled: strconv.FormatBool(cfg.Reminder.Enabled),
			domain.SettingShiftReminderHours:   strconv.Itoa(cfg.Reminder.Hours),
			domain.SettingSMSEnabled:           strconv.FormatBool(cfg.SMS.Enabled),
		},
		logger: logger,
	}
}

func cacheKey(key string) string {
	return fmt.Sprintf("setting_%s", key)
}

func (s *Service) lookup(ctx context.Context, key string) (string, bool) {
	if s.cache != nil {
		value, err := s.cache.Get(ctx, cacheKey(key)).Result()
		switch {
		case err == nil:
			if value == unsetMarker {
				return "", false
			}
			return value, true
		case errors.Is(err, redis.Nil):
		default:
			s.logger.Warn("读取设置缓存失败", "key", key, "error", err)
		}
	}

	value, err := s.store.GetSetting(ctx, key)
	found := true
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error("读取设置失败，使用默认值", "key", key, "error", err)
			return "", false
		}
		found = false
		value = unsetMarker
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey(key), value, s.ttl).Err(); err != nil {
			s.logger.Warn("写入设置缓存失败", "key", key, "error", err)
		}
	}

	if !found {
		return "", false
	}
	return value, true
}

// String 设置项不存在时返回 fallback
func (s *Service) String(ctx context.Context, key, fallback string) string {
	if value, ok := s.lookup(ctx, key); ok {
		return value
	}
	return fallback
}

func (s *Service) Bool(ctx context.Context, key string) bool {
	def, _ := strconv.ParseBool(s.defaults[key])

	value, ok := s.lookup(ctx, key)
	if !ok {
		return def
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		s.logger.Warn("设置项不是合法的布尔值，使用默认值", "key", key, "value", value)
		return def
	}
	return b
}

func (s *Service) Int(ctx context.Context, key string) int {
	def, _ := strconv.Atoi(s.defaults[key])

	value, ok := s.lookup(ctx, key)
	if !ok {
		return def
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		s.logger.Warn("设置项不是合法的整数，使用默认值", "key", key, "value", value)
		return def
	}
	return n
}
