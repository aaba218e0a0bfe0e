package config

import (
	"errors"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Timezone    string `env:"TIMEZONE" envDefault:"Asia/Shanghai"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Store struct {
		Driver string `env:"DRIVER" envDefault:"postgres"` // postgres 或 memory
	} `envPrefix:"STORE_"`
	Database struct {
		DSN            string `env:"DSN"`
		ConnectTimeout int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout   int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		MaxOpenConns   int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns   int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime    int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD"`
		FullName string `env:"FULL_NAME" envDefault:"管理员"`
		Email    string `env:"EMAIL"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"336"` // 小时，14 天
		Secret     string `env:"SECRET,required,notEmpty"`
	} `envPrefix:"JWT_"`
	RabbitMQ struct {
		DSN            string `env:"DSN"`
		DispatchQueue  string `env:"DISPATCH_QUEUE" envDefault:"sms_dispatch_queue"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host             string `env:"HOST" envDefault:"localhost"`
		Port             int    `env:"PORT" envDefault:"6379"`
		Password         string `env:"PASSWORD"`
		Disabled         bool   `env:"DISABLED" envDefault:"false"`
		SettingsCacheTTL int    `env:"SETTINGS_CACHE_TTL" envDefault:"60"`    // 秒
		InboundReplayTTL int    `env:"INBOUND_REPLAY_TTL" envDefault:"86400"` // 秒
	} `envPrefix:"REDIS_"`
	Dispatch struct {
		Mode    string `env:"MODE" envDefault:"local"` // local 或 amqp
		Workers int    `env:"WORKERS" envDefault:"4"`
		Buffer  int    `env:"BUFFER" envDefault:"256"`
		Timeout int    `env:"TIMEOUT" envDefault:"60"` // 单个任务的超时时间，秒
	} `envPrefix:"DISPATCH_"`
	SMS struct {
		Provider        string `env:"PROVIDER" envDefault:"log"` // kavenegar 或 log
		KavenegarAPIKey string `env:"KAVENEGAR_API_KEY"`
		Sender          string `env:"SENDER"`
		RomanizeNames   bool   `env:"ROMANIZE_NAMES" envDefault:"true"`
		Enabled         bool   `env:"ENABLED" envDefault:"true"`
	} `envPrefix:"SMS_"`
	Reminder struct {
		Enabled       bool `env:"ENABLED" envDefault:"true"`
		Hours         int  `env:"HOURS" envDefault:"24"`
		SweepInterval int  `env:"SWEEP_INTERVAL" envDefault:"900"` // 秒
		MaxAttempts   int  `env:"MAX_ATTEMPTS" envDefault:"3"`
	} `envPrefix:"REMINDER_"`
	Alert struct {
		Enabled bool   `env:"ENABLED" envDefault:"false"`
		To      string `env:"TO"`
		SMTP    struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"ALERT_"`
}

func LoadConfig() (*Config, error) {
	// .env 文件是可选的，不存在时直接读取环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Database.DSN == "" {
			return errors.New("使用 postgres 存储时必须设置 DATABASE_DSN")
		}
	case "memory":
	default:
		return errors.New("STORE_DRIVER 只能是 postgres 或 memory")
	}

	switch cfg.Dispatch.Mode {
	case "local":
	case "amqp":
		if cfg.RabbitMQ.DSN == "" {
			return errors.New("使用 amqp 分发模式时必须设置 RABBITMQ_DSN")
		}
	default:
		return errors.New("DISPATCH_MODE 只能是 local 或 amqp")
	}

	if cfg.SMS.Provider == "kavenegar" && cfg.SMS.KavenegarAPIKey == "" {
		return errors.New("使用 kavenegar 时必须设置 SMS_KAVENEGAR_API_KEY")
	}

	if cfg.Reminder.Hours <= 0 {
		return errors.New("REMINDER_HOURS 必须大于 0")
	}

	return nil
}
