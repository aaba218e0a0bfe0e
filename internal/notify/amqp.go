package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher 是 *amqp.Channel 的子集
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AMQPQueue struct {
	ch      Publisher
	queue   string
	timeout time.Duration
}

func NewAMQPQueue(ch Publisher, queue string, timeout time.Duration) *AMQPQueue {
	return &AMQPQueue{ch: ch, queue: queue, timeout: timeout}
}

func (q *AMQPQueue) Submit(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	return q.ch.PublishWithContext(
		ctx,
		"",
		q.queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Acknowledger 是 amqp.Delivery 的子集
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Consume 处理投递过来的任务直到 ctx 结束或通道关闭。
// 无法解析的消息直接丢弃，执行失败的消息重新入队一次。
func Consume(ctx context.Context, deliveries <-chan amqp.Delivery, runner Runner, timeout time.Duration, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				logger.Warn("RabbitMQ 通道已关闭")
				return
			}
			handleDelivery(ctx, &d, d.Body, d.Redelivered, runner, timeout, logger)
		}
	}
}

func handleDelivery(ctx context.Context, ack Acknowledger, body []byte, redelivered bool, runner Runner, timeout time.Duration, logger *slog.Logger) {
	job := Job{}
	if err := json.Unmarshal(body, &job); err != nil {
		logger.Error("通知任务反序列化失败", slog.String("error", err.Error()))
		_ = ack.Nack(false, false)
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := runner.Run(runCtx, job); err != nil {
		logger.Error("通知任务执行失败", slog.String("event", string(job.Event)), slog.Int64("shiftID", job.ShiftID), slog.String("error", err.Error()))
		// 已经重试过一次的任务不再入队，避免重复发送
		_ = ack.Nack(false, !redelivered)
		return
	}

	_ = ack.Ack(false)
}
