package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"leadflow/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// EnqueueOptions tunes a single enqueue. UniqueID becomes the asynq task
// id, so a second enqueue with the same id is reported as a duplicate
// while the first job is still known to the queue.
type EnqueueOptions struct {
	Delay    time.Duration
	UniqueID string
}

// DelayedJob is a scheduled job that has not run yet.
type DelayedJob struct {
	ID        string
	Queue     string
	Name      string
	Payload   []byte
	ProcessAt time.Time
}

type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	maxRetry  int
	timeout   time.Duration
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	return newClientWithOpt(opt, cfg.GetAsynqQueueName(), cfg.GetJobMaxRetry(), cfg.GetJobTimeout()), nil
}

func newClientWithOpt(opt asynq.RedisConnOpt, queue string, maxRetry int, timeout time.Duration) *Client {
	if queue == "" {
		queue = "default"
	}
	if maxRetry < 0 {
		maxRetry = 0
	}
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     queue,
		maxRetry:  maxRetry,
		timeout:   timeout,
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	err := c.client.Close()
	if c.inspector != nil {
		err = errors.Join(err, c.inspector.Close())
	}
	return err
}

// Queue returns the queue name jobs are written to.
func (c *Client) Queue() string { return c.queue }

// Enqueue schedules a job. It returns false without error when a job with
// the same UniqueID is already queued.
func (c *Client) Enqueue(ctx context.Context, name string, payload any, opts EnqueueOptions) (bool, error) {
	if c == nil || c.client == nil {
		return false, fmt.Errorf("scheduler client not configured")
	}

	task, err := NewTask(name, payload)
	if err != nil {
		return false, err
	}

	options := []asynq.Option{asynq.Queue(c.queue), asynq.MaxRetry(c.maxRetry)}
	if c.timeout > 0 {
		options = append(options, asynq.Timeout(c.timeout))
	}
	if opts.Delay > 0 {
		options = append(options, asynq.ProcessIn(opts.Delay))
	}
	if opts.UniqueID != "" {
		options = append(options, asynq.TaskID(opts.UniqueID))
	}

	_, err = c.client.EnqueueContext(ctx, task, options...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", name, err)
	}
	return true, nil
}

const listPageSize = 500

// ListDelayed returns the scheduled jobs named name. An empty name lists all.
func (c *Client) ListDelayed(ctx context.Context, name string) ([]DelayedJob, error) {
	if c == nil || c.inspector == nil {
		return nil, fmt.Errorf("scheduler client not configured")
	}

	jobs := make([]DelayedJob, 0)
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		infos, err := c.inspector.ListScheduledTasks(c.queue, asynq.PageSize(listPageSize), asynq.Page(page))
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return jobs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list scheduled tasks: %w", err)
		}
		for _, info := range infos {
			if name != "" && info.Type != name {
				continue
			}
			jobs = append(jobs, DelayedJob{
				ID:        info.ID,
				Queue:     info.Queue,
				Name:      info.Type,
				Payload:   info.Payload,
				ProcessAt: info.NextProcessAt,
			})
		}
		if len(infos) < listPageSize {
			return jobs, nil
		}
	}
}

// Remove deletes a delayed job. A job that already ran or vanished is not an error.
func (c *Client) Remove(_ context.Context, job DelayedJob) error {
	if c == nil || c.inspector == nil {
		return fmt.Errorf("scheduler client not configured")
	}
	queue := job.Queue
	if queue == "" {
		queue = c.queue
	}
	err := c.inspector.DeleteTask(queue, job.ID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
