package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Retry budgets per lane. The queue is the only layer that decides retry vs
// terminal failure; handlers signal non-retryable errors via asynq.SkipRetry.
const (
	callMaxRetry     = 3
	whatsAppMaxRetry = 3
	exportMaxRetry   = 2

	// completedRetention keeps finished tasks visible to the Inspector so a
	// job's outcome stays queryable by id after it ran.
	completedRetention = 24 * time.Hour
)

// JobHandle identifies an enqueued job for later status queries.
type JobHandle struct {
	ID   string `json:"id"`
	Lane string `json:"lane"`
}

// EnqueueOptions tune a single enqueue call.
type EnqueueOptions struct {
	// Delay postpones the first execution.
	Delay time.Duration
	// MaxAttempts overrides the lane's retry budget when > 0. It counts total
	// attempts, so MaxAttempts 3 means up to 2 retries after the first run.
	MaxAttempts int
}

// Enqueuer is the narrow interface services use to put work on the queue.
type Enqueuer interface {
	EnqueueCall(ctx context.Context, payload CallLeadPayload, opts EnqueueOptions) (JobHandle, error)
	EnqueueWhatsApp(ctx context.Context, payload WhatsAppSendPayload, opts EnqueueOptions) (JobHandle, error)
	EnqueueExport(ctx context.Context, payload ExportDataPayload, opts EnqueueOptions) (JobHandle, error)
}

// Client wraps the asynq client with lane-aware enqueue helpers. Enqueueing
// never blocks on job execution.
type Client struct {
	client *asynq.Client
}

func NewClient(redisURL string) (*Client, error) {
	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}
	return &Client{client: asynq.NewClient(opt)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueCall(ctx context.Context, payload CallLeadPayload, opts EnqueueOptions) (JobHandle, error) {
	task, err := NewCallLeadTask(payload)
	if err != nil {
		return JobHandle{}, err
	}
	return c.enqueue(ctx, task, LaneCalls, callMaxRetry, opts)
}

func (c *Client) EnqueueWhatsApp(ctx context.Context, payload WhatsAppSendPayload, opts EnqueueOptions) (JobHandle, error) {
	task, err := NewWhatsAppSendTask(payload)
	if err != nil {
		return JobHandle{}, err
	}
	return c.enqueue(ctx, task, LaneWhatsApp, whatsAppMaxRetry, opts)
}

func (c *Client) EnqueueExport(ctx context.Context, payload ExportDataPayload, opts EnqueueOptions) (JobHandle, error) {
	task, err := NewExportDataTask(payload)
	if err != nil {
		return JobHandle{}, err
	}
	return c.enqueue(ctx, task, LaneExports, exportMaxRetry, opts)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, lane string, laneMaxRetry int, opts EnqueueOptions) (JobHandle, error) {
	maxRetry := laneMaxRetry
	if opts.MaxAttempts > 0 {
		maxRetry = opts.MaxAttempts - 1
	}

	asynqOpts := []asynq.Option{
		asynq.Queue(lane),
		asynq.MaxRetry(maxRetry),
		asynq.Retention(completedRetention),
	}
	if opts.Delay > 0 {
		asynqOpts = append(asynqOpts, asynq.ProcessIn(opts.Delay))
	}

	info, err := c.client.EnqueueContext(ctx, task, asynqOpts...)
	if err != nil {
		return JobHandle{}, fmt.Errorf("enqueue %s on %s: %w", task.Type(), lane, err)
	}

	return JobHandle{ID: info.ID, Lane: info.Queue}, nil
}

var _ Enqueuer = (*Client)(nil)

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	if redisURL == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("redis url not configured")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		tlsConfig = opt.TLSConfig.Clone()
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
