package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/audit"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/command"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/eligibility"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/handler"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/memstore"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/notify"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/reminder"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/repository"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/settings"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/shift"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/sms"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// store 同时由 *repository.Repository 和 *memstore.Store 实现
type store interface {
	notify.Store
	reminder.Store
	shift.Store
	eligibility.Store
	command.Store
	settings.Store
	audit.Store
	handler.SupervisorStore
	CreateSupervisor(ctx context.Context, sv *domain.Supervisor) error
}

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("无法加载时区", "timezone", cfg.Timezone, "error", err)
		return
	}

	/**********************************************
	 * 创建存储
	 **********************************************/
	var st store
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn("正在使用内存存储，重启后数据会丢失")
		st = memstore.New()
	default:
		dbpool, err := openDatabase(cfg)
		if err != nil {
			logger.Error("无法连接到数据库", "error", err)
			return
		}
		defer dbpool.Close()

		repo := repository.NewRepository(cfg, dbpool)
		if err := repo.Migrate(context.Background()); err != nil {
			logger.Error("无法初始化数据库", "error", err)
			return
		}
		st = repo
	}

	/**********************************************
	 * 确保存在初始管理员
	 **********************************************/
	if cfg.InitialAdmin.Password != "" {
		passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.InitialAdmin.Password), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("无法生成初始管理员密码哈希", "error", err)
			return
		}
		initialAdmin := &domain.Supervisor{
			Username:     cfg.InitialAdmin.Username,
			PasswordHash: string(passwordHash),
			FullName:     cfg.InitialAdmin.FullName,
			Email:        cfg.InitialAdmin.Email,
			Role:         domain.RoleAdmin,
		}
		// 已经存在时不处理
		if err := st.CreateSupervisor(context.Background(), initialAdmin); err != nil && !errors.Is(err, domain.ErrDuplicateUsername) {
			logger.Error("无法创建初始管理员", "error", err)
			return
		}
	}

	/**********************************************
	 * 连接 redis
	 **********************************************/
	var (
		cache settings.Cache
		guard command.ReplayGuard
	)
	if !cfg.Redis.Disabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       0,
		})
		defer rdb.Close()
		cache, guard = rdb, rdb
	}

	/**********************************************
	 * 创建指标
	 **********************************************/
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	/**********************************************
	 * 创建短信通道和分发器
	 **********************************************/
	settingsService := settings.NewService(cfg, st, cache, logger)

	var transport sms.Transport
	switch cfg.SMS.Provider {
	case "kavenegar":
		transport = sms.NewKavenegarTransport(cfg.SMS.KavenegarAPIKey, cfg.SMS.Sender)
	default:
		logger.Warn("未配置短信服务商，短信只会写入日志")
		transport = sms.NewLogTransport(logger)
	}

	dispatcherOpts := notify.Options{
		Metrics:  m,
		Logger:   logger,
		Romanize: cfg.SMS.RomanizeNames,
	}
	if cfg.Alert.Enabled {
		alerter, err := notify.NewMailAlerter(cfg)
		if err != nil {
			logger.Error("无法创建邮件客户端", "error", err)
			return
		}
		dispatcherOpts.Alerter = alerter
	}
	dispatcher := notify.NewDispatcher(st, transport, settingsService, dispatcherOpts)

	/**********************************************
	 * 创建通知队列
	 **********************************************/
	var queue notify.Queue
	switch cfg.Dispatch.Mode {
	case "amqp":
		conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
		if err != nil {
			logger.Error("无法连接到 rabbitmq", "error", err)
			return
		}
		defer conn.Close()

		// 建立通道
		ch, err := conn.Channel()
		if err != nil {
			logger.Error("无法建立通道", "error", err)
			return
		}
		defer ch.Close()

		// 声明队列
		_, err = ch.QueueDeclare(
			cfg.RabbitMQ.DispatchQueue,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			logger.Error("无法声明队列", "error", err)
			return
		}

		queue = notify.NewAMQPQueue(ch, cfg.RabbitMQ.DispatchQueue, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)
	default:
		local := notify.NewLocalQueue(dispatcher, cfg.Dispatch.Workers, cfg.Dispatch.Buffer, time.Duration(cfg.Dispatch.Timeout)*time.Second, logger)
		defer local.Close()
		queue = local
	}

	/**********************************************
	 * 创建业务组件
	 **********************************************/
	recorder := audit.NewRecorder(st, logger)
	defer recorder.Wait()

	scheduler := reminder.NewScheduler(st, dispatcher, settingsService, reminder.Options{
		Location:      loc,
		SweepInterval: time.Duration(cfg.Reminder.SweepInterval) * time.Second,
		MaxAttempts:   cfg.Reminder.MaxAttempts,
		Metrics:       m,
		Logger:        logger,
	})

	shiftService := shift.NewService(st, eligibility.NewResolver(st, logger), scheduler, queue, recorder, shift.Options{
		Location: loc,
		Logger:   logger,
	})

	interpreter := command.NewInterpreter(st, shiftService, queue, recorder, command.Options{
		Guard:    guard,
		GuardTTL: time.Duration(cfg.Redis.InboundReplayTTL) * time.Second,
		Metrics:  m,
		Logger:   logger,
		Location: loc,
	})

	/**********************************************
	 * 启动提醒调度器
	 **********************************************/
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Run(schedulerCtx)
	}()

	/**********************************************
	 * 创建 handler
	 **********************************************/
	handler, err := handler.NewHandler(cfg, st, shiftService, interpreter, reg)
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		stopScheduler()
		return
	}
	handler.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port, "store", cfg.Store.Driver, "dispatch", cfg.Dispatch.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			return
		}
	}()

	<-quit
	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}

	// 先停止调度器，队列和审计日志在 defer 中依次关闭
	stopScheduler()
	<-schedulerDone
	logger.Info("服务器已成功关闭")
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		dbpool.Close()
		return nil, err
	}
	return dbpool, nil
}
