package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow/platform/config"
	"leadflow/platform/logger"
	"leadflow/platform/metrics"

	"github.com/hibiken/asynq"
)

// TriggerJobs handles the trigger pipeline jobs.
type TriggerJobs interface {
	ProcessEventJob(ctx context.Context, job ProcessEventJobData) error
	ExecuteTriggerJob(ctx context.Context, job ExecuteTriggerJobData) error
	CheckNoResponseJob(ctx context.Context, job CheckNoResponseJobData) error
}

// NurtureJobs handles the nurture pipeline jobs.
type NurtureJobs interface {
	EnrollNurtureJob(ctx context.Context, job EnrollNurtureJobData) error
	ExecuteNurtureStepJob(ctx context.Context, job ExecuteNurtureStepJobData) error
	CheckNurtureEscalationJob(ctx context.Context, job CheckNurtureEscalationJobData) error
}

// FailedJob describes a handler failure reported to OnFailure callbacks.
type FailedJob struct {
	TaskType string
	TaskID   string
	Queue    string
	Payload  []byte
	Err      error
	Attempt  int
	MaxRetry int
	// Final is set when no further retry will happen.
	Final bool
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	log       *logger.Logger
	metrics   *metrics.Metrics
	onFailure []func(ctx context.Context, job FailedJob)
}

func NewWorker(cfg config.SchedulerConfig, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	return newWorkerWithOpt(opt, cfg.GetAsynqQueueName(), cfg.GetAsynqConcurrency(), log), nil
}

func newWorkerWithOpt(opt asynq.RedisConnOpt, queue string, concurrency int, log *logger.Logger) *Worker {
	if queue == "" {
		queue = "default"
	}
	if concurrency < 1 {
		concurrency = 10
	}

	w := &Worker{
		mux: asynq.NewServeMux(),
		log: log,
	}
	w.server = asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(w.handleError),
	})
	w.mux.Use(w.instrument)
	return w
}

// SetMetrics attaches Prometheus collectors.
func (w *Worker) SetMetrics(m *metrics.Metrics) {
	w.metrics = m
}

// OnFailure registers a callback invoked after every failed attempt.
// Register callbacks before Run.
func (w *Worker) OnFailure(fn func(ctx context.Context, job FailedJob)) {
	w.onFailure = append(w.onFailure, fn)
}

func (w *Worker) RegisterTriggerJobs(h TriggerJobs) {
	w.mux.HandleFunc(TaskProcessEvent, func(ctx context.Context, task *asynq.Task) error {
		job, err := ParseProcessEventPayload(task)
		if err != nil {
			return err
		}
		return h.ProcessEventJob(ctx, job)
	})
	w.mux.HandleFunc(TaskExecuteTrigger, func(ctx context.Context, task *asynq.Task) error {
		job, err := ParseExecuteTriggerPayload(task)
		if err != nil {
			return err
		}
		return h.ExecuteTriggerJob(ctx, job)
	})
	w.mux.HandleFunc(TaskCheckNoResponse, func(ctx context.Context, task *asynq.Task) error {
		job, err := ParseCheckNoResponsePayload(task)
		if err != nil {
			return err
		}
		return h.CheckNoResponseJob(ctx, job)
	})
}

func (w *Worker) RegisterNurtureJobs(h NurtureJobs) {
	w.mux.HandleFunc(TaskEnrollNurture, func(ctx context.Context, task *asynq.Task) error {
		job, err := ParseEnrollNurturePayload(task)
		if err != nil {
			return err
		}
		return h.EnrollNurtureJob(ctx, job)
	})
	w.mux.HandleFunc(TaskExecuteNurtureStep, func(ctx context.Context, task *asynq.Task) error {
		job, err := ParseExecuteNurtureStepPayload(task)
		if err != nil {
			return err
		}
		return h.ExecuteNurtureStepJob(ctx, job)
	})
	w.mux.HandleFunc(TaskCheckNurtureEscalation, func(ctx context.Context, task *asynq.Task) error {
		job, err := ParseCheckNurtureEscalationPayload(task)
		if err != nil {
			return err
		}
		return h.CheckNurtureEscalationJob(ctx, job)
	})
}

func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
		return err
	}
	return nil
}

func (w *Worker) instrument(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
		if id, ok := asynq.GetTaskID(ctx); ok {
			ctx = context.WithValue(ctx, logger.JobIDKey, id)
		}
		started := time.Now()
		err := next.ProcessTask(ctx, task)
		w.metrics.ObserveJob(task.Type(), err, time.Since(started))
		return err
	})
}

func (w *Worker) handleError(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	taskID, _ := asynq.GetTaskID(ctx)
	queue, _ := asynq.GetQueueName(ctx)

	job := FailedJob{
		TaskType: task.Type(),
		TaskID:   taskID,
		Queue:    queue,
		Payload:  task.Payload(),
		Err:      err,
		Attempt:  retried + 1,
		MaxRetry: maxRetry,
		Final:    isFinalAttempt(retried, maxRetry, err),
	}

	w.log.JobFailed(job.TaskType, job.TaskID, job.Attempt, maxRetry+1, err)
	for _, fn := range w.onFailure {
		fn(ctx, job)
	}
}

func isFinalAttempt(retried, maxRetry int, err error) bool {
	if errors.Is(err, asynq.SkipRetry) {
		return true
	}
	return retried >= maxRetry
}
