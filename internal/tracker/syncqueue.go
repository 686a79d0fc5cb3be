package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "application-tracker/internal/common/errors"
	"application-tracker/internal/common/logger"
	"application-tracker/internal/common/metrics"
	"application-tracker/internal/common/observability"
	"application-tracker/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type TaskKind string

const (
	TaskCreate TaskKind = "create"
	TaskUpdate TaskKind = "update"
	TaskDelete TaskKind = "delete"
)

type TaskState string

const (
	TaskPending  TaskState = "pending"
	TaskInFlight TaskState = "in_flight"
	TaskFailed   TaskState = "failed"
)

// SyncTask is one remote call owed for a local mutation.
type SyncTask struct {
	ID            string
	Kind          TaskKind
	ApplicationID string
	Application   models.JobApplication     // create
	Update        *models.ApplicationUpdate // update
	State         TaskState
	Attempts      int
	LastError     string
	EnqueuedAt    time.Time
}

// SyncQueue sends tasks to the remote one at a time in enqueue order. Failed
// tasks are parked until Retry; nothing is retried automatically.
type SyncQueue struct {
	mu      sync.Mutex
	active  []*SyncTask // pending and in flight, FIFO
	failed  []*SyncTask
	changed chan struct{}
	wake    chan struct{}
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	remote         Remote
	requestTimeout time.Duration
	onFailure      func(*apperrors.StandardError)
	obs            *observability.Observability
	logger         logger.Logger
	errs           *apperrors.ErrorHandler
}

type QueueOption func(*SyncQueue)

// WithRequestTimeout bounds every remote call. Zero disables the bound.
func WithRequestTimeout(d time.Duration) QueueOption {
	return func(q *SyncQueue) {
		q.requestTimeout = d
	}
}

func WithQueueObservability(obs *observability.Observability) QueueOption {
	return func(q *SyncQueue) {
		q.obs = obs
	}
}

func NewSyncQueue(remote Remote, log logger.Logger, opts ...QueueOption) *SyncQueue {
	q := &SyncQueue{
		changed:        make(chan struct{}),
		wake:           make(chan struct{}, 1),
		remote:         remote,
		requestTimeout: 10 * time.Second,
		logger:         log,
		errs:           apperrors.NewErrorHandler(log),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *SyncQueue) setFailureSink(fn func(*apperrors.StandardError)) {
	q.mu.Lock()
	q.onFailure = fn
	q.mu.Unlock()
}

// Start runs the worker until ctx is done or Stop is called.
func (q *SyncQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	q.running = true
	q.cancel = cancel
	q.done = make(chan struct{})
	done := q.done
	q.mu.Unlock()

	q.logger.Info("Sync worker started", nil)
	go q.run(ctx, done)
}

// Stop ends the worker and waits for it. A request in flight is cancelled
// and its task lands in the failed list.
func (q *SyncQueue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	cancel, done := q.cancel, q.done
	q.mu.Unlock()

	cancel()
	<-done
}

func (q *SyncQueue) run(ctx context.Context, done chan struct{}) {
	defer func() {
		q.mu.Lock()
		q.running = false
		q.cancel = nil
		q.notifyLocked()
		q.mu.Unlock()
		q.logger.Info("Sync worker stopped", nil)
		close(done)
	}()

	for {
		if !q.processNext(ctx) {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// Drain blocks until no task is pending or in flight. Without a running
// worker the tasks are processed on the calling goroutine.
func (q *SyncQueue) Drain(ctx context.Context) error {
	for {
		q.mu.Lock()
		if len(q.active) == 0 {
			q.mu.Unlock()
			return nil
		}
		running := q.running
		changed := q.changed
		q.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return err
		}
		if !running && q.processNext(ctx) {
			continue
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pending returns copies of the pending and in-flight tasks, oldest first.
func (q *SyncQueue) Pending() []SyncTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return copyTasks(q.active)
}

// Failed returns copies of the parked failed tasks, oldest first.
func (q *SyncQueue) Failed() []SyncTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return copyTasks(q.failed)
}

// Len is the number of pending and in-flight tasks.
func (q *SyncQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// Retry moves one failed task back to the end of the queue.
func (q *SyncQueue) Retry(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, task := range q.failed {
		if task.ID != taskID {
			continue
		}
		q.failed = append(q.failed[:i], q.failed[i+1:]...)
		q.requeueLocked(task)
		return true
	}
	return false
}

// RetryFailed re-queues every failed task in failure order and returns how
// many were moved.
func (q *SyncQueue) RetryFailed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.failed)
	for _, task := range q.failed {
		q.requeueLocked(task)
	}
	q.failed = nil
	return n
}

func (q *SyncQueue) requeueLocked(task *SyncTask) {
	task.State = TaskPending
	task.LastError = ""
	q.active = append(q.active, task)
	q.notifyLocked()
	q.signal()
	q.logger.Info("Sync task re-queued", map[string]interface{}{
		"taskId":        task.ID,
		"kind":          string(task.Kind),
		"applicationId": task.ApplicationID,
	})
}

func (q *SyncQueue) enqueue(kind TaskKind, appID string, app models.JobApplication, upd *models.ApplicationUpdate) string {
	task := &SyncTask{
		ID:            uuid.NewString(),
		Kind:          kind,
		ApplicationID: appID,
		Application:   app,
		Update:        upd,
		State:         TaskPending,
		EnqueuedAt:    time.Now().UTC(),
	}

	q.mu.Lock()
	q.active = append(q.active, task)
	q.notifyLocked()
	q.mu.Unlock()
	q.signal()

	q.logger.Debug("Sync task queued", map[string]interface{}{
		"taskId":        task.ID,
		"kind":          string(kind),
		"applicationId": appID,
	})
	return task.ID
}

// processNext sends the oldest pending task. It reports false when there was
// nothing to do.
func (q *SyncQueue) processNext(ctx context.Context) bool {
	q.mu.Lock()
	if len(q.active) == 0 || q.active[0].State == TaskInFlight {
		q.mu.Unlock()
		return false
	}
	task := q.active[0]
	task.State = TaskInFlight
	task.Attempts++
	q.notifyLocked()
	q.mu.Unlock()

	err := q.send(ctx, task)

	q.mu.Lock()
	q.active = q.active[1:]
	var sink func(*apperrors.StandardError)
	var stdErr *apperrors.StandardError
	if err != nil {
		stdErr = apperrors.NewSyncFailedError(string(task.Kind), task.ApplicationID, err).
			WithMetadata("taskId", task.ID)
		task.State = TaskFailed
		task.LastError = err.Error()
		q.failed = append(q.failed, task)
		sink = q.onFailure
	}
	q.notifyLocked()
	q.mu.Unlock()

	if stdErr != nil {
		q.errs.Absorb("Failed to sync application", stdErr, map[string]interface{}{
			"attempts": task.Attempts,
		})
		if sink != nil {
			sink(stdErr)
		}
	}
	return true
}

func (q *SyncQueue) send(ctx context.Context, task *SyncTask) (err error) {
	ctx, span := q.obs.StartSpan(ctx, "tracker.sync."+string(task.Kind),
		attribute.String("application.id", task.ApplicationID),
		attribute.String("task.id", task.ID),
	)
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "failed"
			span.RecordError(err)
		}
		metrics.SyncRequests.WithLabelValues(string(task.Kind), result).Inc()
		metrics.SyncDuration.WithLabelValues(string(task.Kind)).Observe(time.Since(start).Seconds())
		q.obs.RecordSyncOutcome(ctx, string(task.Kind), result)
		span.End()
	}()

	reqCtx, cancel := q.requestContext(ctx)
	defer cancel()

	switch task.Kind {
	case TaskCreate:
		return q.remote.Create(reqCtx, task.Application)
	case TaskUpdate:
		if task.Update == nil {
			return errors.New("update task without payload")
		}
		return q.remote.Update(reqCtx, task.ApplicationID, *task.Update)
	case TaskDelete:
		return q.remote.Delete(reqCtx, task.ApplicationID)
	}
	return errors.New("unknown sync task kind " + string(task.Kind))
}

func (q *SyncQueue) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, q.requestTimeout)
}

// notifyLocked wakes every Drain waiter and refreshes the depth gauges.
func (q *SyncQueue) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
	metrics.SyncQueueDepth.WithLabelValues(string(TaskPending)).Set(float64(len(q.active)))
	metrics.SyncQueueDepth.WithLabelValues(string(TaskFailed)).Set(float64(len(q.failed)))
}

func (q *SyncQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func copyTasks(tasks []*SyncTask) []SyncTask {
	out := make([]SyncTask, len(tasks))
	for i, task := range tasks {
		out[i] = *task
		out[i].Application = task.Application.Clone()
		if task.Update != nil {
			upd := *task.Update
			upd.ApplicationPatch = task.Update.ApplicationPatch.Clone()
			out[i].Update = &upd
		}
	}
	return out
}
