package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/notify"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/repository"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/settings"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/sms"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}
	// worker 和 api 之间通过数据库共享状态，不能使用内存存储
	if cfg.Store.Driver != "postgres" || cfg.RabbitMQ.DSN == "" {
		logger.Error("worker 需要 postgres 存储和 RABBITMQ_DSN")
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", slog.String("error", err.Error()))
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()
	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("无法连接到数据库", slog.String("error", err.Error()))
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 创建分发器
	 **********************************************/
	var cache settings.Cache
	if !cfg.Redis.Disabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       0,
		})
		defer rdb.Close()
		cache = rdb
	}

	var transport sms.Transport
	switch cfg.SMS.Provider {
	case "kavenegar":
		transport = sms.NewKavenegarTransport(cfg.SMS.KavenegarAPIKey, cfg.SMS.Sender)
	default:
		transport = sms.NewLogTransport(logger)
	}

	opts := notify.Options{Logger: logger, Romanize: cfg.SMS.RomanizeNames}
	if cfg.Alert.Enabled {
		alerter, err := notify.NewMailAlerter(cfg)
		if err != nil {
			logger.Error("无法创建邮件客户端", slog.String("error", err.Error()))
			return
		}
		opts.Alerter = alerter
	}
	dispatcher := notify.NewDispatcher(repo, transport, settings.NewService(cfg, repo, cache, logger), opts)

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	// 创建通道
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	// 声明队列
	q, err := ch.QueueDeclare(
		cfg.RabbitMQ.DispatchQueue, // 队列名称
		true,                       // 是否持久化
		false,                      // 是否自动删除，设置为 false 可以避免没有消费者的时候自动删除队列
		false,                      // 是否独占，即是否允许多个消费者访问这个队列
		false,                      // 是否不等待，设置为 false，即等待 RabbitMQ 确认队列是否创建成功
		nil,                        // 额外参数
	)
	if err != nil {
		logger.Error("无法声明队列", slog.String("error", err.Error()))
		return
	}

	// 预取数量与并发消费的数量一致
	if err := ch.Qos(cfg.Dispatch.Workers, 0, false); err != nil {
		logger.Error("无法设置 QoS", slog.String("error", err.Error()))
		return
	}

	// 监听 CTRL+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 消费消息
	msgs, err := ch.Consume(
		q.Name, // 队列
		"",     // 消费者标识，设置为空字符串，表示由 RabbitMQ 自动分配
		false,  // 是否自动确认消息
		false,  // 是否独占队列
		false,  // 是否禁止消费者接受自己发送的消息，必须设置为 false，因为 RabbitMQ 不支持这个参数
		false,  // 是否不等待，等待 RabbitMQ 响应
		nil,    // 额外参数
	)
	if err != nil {
		logger.Error("无法消费消息", slog.String("error", err.Error()))
		return
	}

	// 用于关闭 goroutine 的上下文
	ctx, stop := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	timeout := time.Duration(cfg.Dispatch.Timeout) * time.Second
	for i := 0; i < max(cfg.Dispatch.Workers, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			notify.Consume(ctx, msgs, dispatcher, timeout, logger)
		}()
	}

	// 等待 CTRL+C 信号
	logger.Info("等待通知任务...（按 CTRL+C 退出）", "queue", q.Name, "workers", cfg.Dispatch.Workers)
	<-sigChan

	// 优雅退出
	logger.Info("正在关闭 dispatch worker...")
	stop()
	wg.Wait() // 等待所有 goroutine 完成
	logger.Info("dispatch worker 已成功关闭")
}
