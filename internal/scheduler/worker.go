package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iwanfadzly/call/platform/apperr"
	"github.com/iwanfadzly/call/platform/logger"

	"github.com/hibiken/asynq"
)

// Handler processes one dequeued task. Handlers must be idempotent with
// respect to at-least-once delivery: a retried task re-invokes the handler
// with the same payload.
type Handler func(ctx context.Context, task *asynq.Task) error

// WorkerConfig sizes the worker pool per lane.
type WorkerConfig struct {
	RedisURL            string
	CallsConcurrency    int
	WhatsAppConcurrency int
	ExportsConcurrency  int
	// RetryBaseDelay is the base for the exponential backoff schedule
	// (base * 2^attempt).
	RetryBaseDelay time.Duration
}

// Worker runs the queue consumers for all lanes. It holds no references to
// the service packages: handlers are registered from the outside, keeping the
// queue → services dependency one-directional.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg WorkerConfig, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}

	concurrency := positive(cfg.CallsConcurrency, 4) +
		positive(cfg.WhatsAppConcurrency, 4) +
		positive(cfg.ExportsConcurrency, 2)

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			LaneCalls:    positive(cfg.CallsConcurrency, 4),
			LaneWhatsApp: positive(cfg.WhatsAppConcurrency, 4),
			LaneExports:  positive(cfg.ExportsConcurrency, 2),
		},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			return backoffDelay(baseDelay, n)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("job failed",
				"task", task.Type(),
				"error", err,
			)
		}),
	})

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}, nil
}

// Handle registers a handler for a task type, wrapped with the shared error
// policy:
//   - not-found errors are logged and acknowledged (a job referencing a
//     deleted entity must not trigger a retry storm),
//   - validation and state-machine conflicts are terminal and archived,
//   - everything else, provider failures included, is retried with backoff
//     until the retry budget is exhausted.
func (w *Worker) Handle(taskType string, handler Handler) {
	w.mux.HandleFunc(taskType, func(ctx context.Context, task *asynq.Task) error {
		err := handler(ctx, task)
		if err == nil {
			return nil
		}

		if apperr.Is(err, apperr.KindNotFound) {
			w.log.Warn("job references a missing entity, dropping",
				"task", task.Type(),
				"error", err,
			)
			return nil
		}

		if !apperr.Retryable(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		return err
	})
}

// Run starts the worker pool and blocks until ctx is cancelled, then drains:
// no new dequeues, in-flight jobs finish or are re-queued, and the redis
// connections are released.
func (w *Worker) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
		w.log.Error("queue worker stopped", "error", err)
		return err
	}
	return nil
}

// backoffDelay computes base * 2^attempt, capped at ten minutes.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	const maxDelay = 10 * time.Minute

	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}

func positive(value, fallback int) int {
	if value < 1 {
		return fallback
	}
	return value
}
