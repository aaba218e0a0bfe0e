package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Job 可序列化的通知任务，既可以在本进程内执行，也可以通过 RabbitMQ 交给 worker
type Job struct {
	Event        EventType `json:"event"`
	ShiftID      int64     `json:"shiftID,omitempty"`
	EmployeeIDs  []int64   `json:"employeeIDs"`
	Text         string    `json:"text,omitempty"`
	IgnoreOptOut bool      `json:"ignoreOptOut,omitempty"`
}

// Queue 提交后立即返回，发送结果只会出现在日志和短信记录中
type Queue interface {
	Submit(ctx context.Context, job Job) error
}

type Runner interface {
	Run(ctx context.Context, job Job) error
}

var (
	ErrQueueFull   = errors.New("通知队列已满")
	ErrQueueClosed = errors.New("通知队列已关闭")
)

// LocalQueue 由固定数量的 goroutine 消费的内存队列
type LocalQueue struct {
	runner  Runner
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan Job
	wg     sync.WaitGroup
}

func NewLocalQueue(runner Runner, workers, buffer int, timeout time.Duration, logger *slog.Logger) *LocalQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}

	q := &LocalQueue{
		runner:  runner,
		logger:  logger,
		timeout: timeout,
		jobs:    make(chan Job, buffer),
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}

	return q
}

func (q *LocalQueue) work() {
	defer q.wg.Done()

	for job := range q.jobs {
		q.run(job)
	}
}

func (q *LocalQueue) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("通知任务发生 panic", "event", job.Event, "shiftID", job.ShiftID, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := q.runner.Run(ctx, job); err != nil {
		q.logger.Error("通知任务执行失败", "event", job.Event, "shiftID", job.ShiftID, "error", err)
	}
}

func (q *LocalQueue) Submit(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Close 不再接受新任务，并等待已提交的任务执行完毕
func (q *LocalQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	q.wg.Wait()
}
