// Package tracker owns the job application collection: local-first
// mutations mirrored to durable storage and reconciled with the remote API
// through a background sync queue.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	apperrors "application-tracker/internal/common/errors"
	"application-tracker/internal/common/logger"
	"application-tracker/internal/common/metrics"
	"application-tracker/internal/common/observability"
	"application-tracker/internal/common/validation"
	"application-tracker/internal/models"
	"application-tracker/internal/storage"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Remote is the system of record the store reconciles with.
type Remote interface {
	List(ctx context.Context) ([]models.JobApplication, error)
	Create(ctx context.Context, app models.JobApplication) error
	Update(ctx context.Context, id string, upd models.ApplicationUpdate) error
	Delete(ctx context.Context, id string) error
}

// errNotLoaded guards the stored blob from being overwritten by a collection
// that was never read from it.
var errNotLoaded = errors.New("stored applications were never loaded, refusing to overwrite them")

type snapshot struct {
	Applications []models.JobApplication `json:"applications"`
}

// Store is the single in-process owner of the collection. Every mutation is
// applied in memory, written to storage before it returns, and then handed to
// the sync queue. Callers never see an error from a mutation; failures land
// in the error slot read through LastError.
//
// The collection is read from storage on first use if Load was not called.
type Store struct {
	mu       sync.RWMutex
	apps     []models.JobApplication
	revision uint64
	lastErr  *apperrors.StandardError
	loading  bool
	loaded   bool

	// loadMu serializes reads of the stored blob.
	loadMu sync.Mutex

	storage          storage.Storage
	key              string
	queue            *SyncQueue
	policy           TransitionPolicy
	clock            func() time.Time
	onPersistFailure func(error)
	obs              *observability.Observability
	logger           logger.Logger
	errs             *apperrors.ErrorHandler
}

type Option func(*Store)

// WithSyncQueue attaches the queue used for remote reconciliation and
// FetchAll. Without it the store is local only.
func WithSyncQueue(q *SyncQueue) Option {
	return func(s *Store) {
		s.queue = q
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

func WithTransitionPolicy(p TransitionPolicy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// WithPersistFailureHandler is called, outside the store lock, after a
// durable write fails.
func WithPersistFailureHandler(fn func(error)) Option {
	return func(s *Store) {
		s.onPersistFailure = fn
	}
}

func WithStorageKey(key string) Option {
	return func(s *Store) {
		s.key = key
	}
}

func WithObservability(obs *observability.Observability) Option {
	return func(s *Store) {
		s.obs = obs
	}
}

func New(st storage.Storage, log logger.Logger, opts ...Option) *Store {
	s := &Store{
		apps:    []models.JobApplication{},
		storage: st,
		key:     storage.KeyJobApplications,
		policy:  AnyTransition{},
		clock:   time.Now,
		logger:  log,
		errs:    apperrors.NewErrorHandler(log),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue != nil {
		s.queue.setFailureSink(s.recordError)
	}
	return s
}

// Load seeds the collection from durable storage, replacing whatever is in
// memory. A missing blob leaves the collection empty and is not an error.
func (s *Store) Load(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	return s.load(ctx)
}

// ensureLoaded runs Load once before the collection is first read or
// mutated. A failed attempt is retried on the next call.
func (s *Store) ensureLoaded(ctx context.Context) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return
	}
	_ = s.load(ctx)
}

func (s *Store) load(ctx context.Context) error {
	data, err := s.storage.Load(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		s.mu.Lock()
		s.loaded = true
		s.mu.Unlock()
		s.logger.Info("No stored applications, starting empty", map[string]interface{}{"key": s.key})
		return nil
	}
	if err != nil {
		stdErr := s.errs.Absorb("Failed to load applications", apperrors.NewStorageReadFailedError(s.key, err), nil)
		s.recordError(stdErr)
		return stdErr
	}

	result, err := validation.ValidateEnvelope(data)
	if err != nil {
		stdErr := s.errs.Absorb("Stored applications are not valid JSON", apperrors.NewSnapshotInvalidError(err.Error()), nil)
		s.recordError(stdErr)
		return stdErr
	}
	if !result.Valid {
		stdErr := s.errs.Absorb("Stored applications failed validation",
			apperrors.NewSnapshotInvalidError(strings.Join(result.GetErrorMessages(), "; ")), nil)
		s.recordError(stdErr)
		return stdErr
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		stdErr := s.errs.Absorb("Failed to decode stored applications", apperrors.NewSnapshotInvalidError(err.Error()), nil)
		s.recordError(stdErr)
		return stdErr
	}

	apps := s.dedupe(snap.Applications)

	s.mu.Lock()
	s.apps = apps
	s.loaded = true
	s.revision++
	s.mu.Unlock()

	s.logger.Info("Loaded applications", map[string]interface{}{
		"key":   s.key,
		"count": len(apps),
	})
	return nil
}

// Add creates a record in status applied and puts it first.
func (s *Store) Add(ctx context.Context, in models.NewApplication) models.JobApplication {
	s.ensureLoaded(ctx)
	s.mu.Lock()
	now := s.now()
	app := models.JobApplication{
		ID:            s.newIDLocked(),
		JobTitle:      in.JobTitle,
		Company:       in.Company,
		Location:      in.Location,
		AppliedDate:   now,
		Status:        models.StatusApplied,
		LastUpdated:   now,
		JobURL:        in.JobURL,
		Notes:         in.Notes,
		FollowUpDate:  in.FollowUpDate,
		InterviewDate: in.InterviewDate,
	}
	if in.Salary != nil {
		salary := *in.Salary
		app.Salary = &salary
	}
	app = app.Clone()

	s.apps = append([]models.JobApplication{app}, s.apps...)
	s.revision++
	persistErr := s.persistLocked(ctx)
	s.mu.Unlock()

	s.afterMutation(ctx, "add", persistErr)
	s.logger.Info("Application added", map[string]interface{}{
		"applicationId": app.ID,
		"company":       app.Company,
		"jobTitle":      app.JobTitle,
	})

	if s.queue != nil {
		s.queue.enqueue(TaskCreate, app.ID, app.Clone(), nil)
	}
	return app.Clone()
}

// UpdateStatus sets the status, optionally replaces the notes, and refreshes
// lastUpdated. Unknown ids and disallowed transitions change nothing and
// return false.
func (s *Store) UpdateStatus(ctx context.Context, id string, status models.Status, notes *string) bool {
	if !status.Valid() {
		s.logger.Warn("Ignoring unknown status", map[string]interface{}{
			"applicationId": id,
			"status":        string(status),
		})
		return false
	}

	patch := models.ApplicationPatch{Status: &status}
	if notes != nil {
		n := *notes
		patch.Notes = &n
	}
	return s.apply(ctx, "update_status", id, patch)
}

// Update merges the non-nil fields of patch and refreshes lastUpdated.
func (s *Store) Update(ctx context.Context, id string, patch models.ApplicationPatch) bool {
	if patch.Status != nil && !patch.Status.Valid() {
		s.logger.Warn("Ignoring unknown status", map[string]interface{}{
			"applicationId": id,
			"status":        string(*patch.Status),
		})
		return false
	}
	return s.apply(ctx, "update", id, patch)
}

func (s *Store) apply(ctx context.Context, op, id string, patch models.ApplicationPatch) bool {
	s.ensureLoaded(ctx)
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		s.logger.Debug("Application not found, nothing to update", map[string]interface{}{
			"applicationId": id,
			"operation":     op,
		})
		return false
	}

	current := s.apps[idx]
	if patch.Status != nil && !s.policy.Allow(current.Status, *patch.Status) {
		stdErr := apperrors.NewTransitionNotAllowedError(id, string(current.Status), string(*patch.Status))
		s.lastErr = stdErr
		s.mu.Unlock()
		s.logger.Warn("Status transition rejected", map[string]interface{}{
			"applicationId": id,
			"from":          string(current.Status),
			"to":            string(*patch.Status),
		})
		return false
	}

	updated := current.Clone()
	patch.ApplyTo(&updated)
	updated.LastUpdated = s.nowAfter(updated.AppliedDate)
	s.apps[idx] = updated
	s.revision++
	persistErr := s.persistLocked(ctx)
	s.mu.Unlock()

	s.afterMutation(ctx, op, persistErr)
	s.logger.Info("Application updated", map[string]interface{}{
		"applicationId": id,
		"operation":     op,
		"status":        string(updated.Status),
	})

	if s.queue != nil {
		upd := models.ApplicationUpdate{ApplicationPatch: patch.Clone(), LastUpdated: updated.LastUpdated}
		s.queue.enqueue(TaskUpdate, id, models.JobApplication{}, &upd)
	}
	return true
}

// Remove deletes the record locally and schedules the remote delete.
func (s *Store) Remove(ctx context.Context, id string) bool {
	s.ensureLoaded(ctx)
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		s.logger.Debug("Application not found, nothing to remove", map[string]interface{}{"applicationId": id})
		return false
	}

	apps := make([]models.JobApplication, 0, len(s.apps)-1)
	apps = append(apps, s.apps[:idx]...)
	apps = append(apps, s.apps[idx+1:]...)
	s.apps = apps
	s.revision++
	persistErr := s.persistLocked(ctx)
	s.mu.Unlock()

	s.afterMutation(ctx, "remove", persistErr)
	s.logger.Info("Application removed", map[string]interface{}{"applicationId": id})

	if s.queue != nil {
		s.queue.enqueue(TaskDelete, id, models.JobApplication{}, nil)
	}
	return true
}

// FetchAll replaces the whole collection with the remote one. On failure the
// collection is left as it was and the error is also kept in the error slot.
func (s *Store) FetchAll(ctx context.Context) error {
	if s.queue == nil {
		stdErr := apperrors.NewFetchFailedError(errors.New("remote sync is not configured"))
		s.recordError(stdErr)
		return stdErr
	}

	s.setLoading(true)
	defer s.setLoading(false)

	ctx, span := s.obs.StartSpan(ctx, "tracker.fetch_all")
	defer span.End()

	reqCtx, cancel := s.queue.requestContext(ctx)
	apps, err := s.queue.remote.List(reqCtx)
	cancel()
	if err != nil {
		stdErr := s.errs.Absorb("Failed to fetch applications", apperrors.NewFetchFailedError(err), nil)
		span.RecordError(stdErr)
		s.recordError(stdErr)
		return stdErr
	}

	apps = s.dedupe(apps)

	s.mu.Lock()
	s.apps = apps
	s.loaded = true
	s.revision++
	s.lastErr = nil
	persistErr := s.persistLocked(ctx)
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("applications.count", len(apps)))
	s.afterMutation(ctx, "fetch_all", persistErr)
	s.logger.Info("Fetched applications from remote", map[string]interface{}{"count": len(apps)})
	return nil
}

// LastError returns the most recent absorbed failure, or nil.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastErr == nil {
		return nil
	}
	return s.lastErr
}

func (s *Store) ClearError() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

// Loading reports whether a FetchAll is in progress.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Revision increases on every change to the collection.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Queue returns the attached sync queue, or nil.
func (s *Store) Queue() *SyncQueue {
	return s.queue
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) recordError(err *apperrors.StandardError) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// persistLocked writes the whole collection. Callers hold s.mu so writes
// reach storage in mutation order.
func (s *Store) persistLocked(ctx context.Context) error {
	ctx, span := s.obs.StartSpan(ctx, "tracker.persist", attribute.String("storage.key", s.key))
	defer span.End()

	start := time.Now()
	var err error
	if !s.loaded {
		err = errNotLoaded
	} else {
		var data []byte
		data, err = json.Marshal(snapshot{Applications: s.apps})
		if err == nil {
			err = s.storage.Save(ctx, s.key, data)
		}
	}
	if err != nil {
		s.obs.RecordPersist(ctx, time.Since(start), "failed")
		stdErr := s.errs.Absorb("Failed to persist applications", apperrors.NewStorageWriteFailedError(s.key, err), nil)
		span.RecordError(stdErr)
		s.lastErr = stdErr
		return stdErr
	}
	s.obs.RecordPersist(ctx, time.Since(start), "ok")
	return nil
}

func (s *Store) afterMutation(ctx context.Context, op string, persistErr error) {
	metrics.Mutations.WithLabelValues(op).Inc()
	s.obs.RecordMutation(ctx, op)
	if persistErr != nil && s.onPersistFailure != nil {
		s.onPersistFailure(persistErr)
	}
}

func (s *Store) indexLocked(id string) int {
	for i := range s.apps {
		if s.apps[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) newIDLocked() string {
	for {
		id := uuid.NewString()
		if s.indexLocked(id) < 0 {
			return id
		}
	}
}

// now strips the monotonic reading so stored and reloaded times compare
// equal.
func (s *Store) now() time.Time {
	return s.clock().UTC().Round(0)
}

func (s *Store) nowAfter(floor time.Time) time.Time {
	now := s.now()
	if now.Before(floor) {
		return floor
	}
	return now
}

// dedupe keeps the first record for every id.
func (s *Store) dedupe(apps []models.JobApplication) []models.JobApplication {
	seen := make(map[string]struct{}, len(apps))
	out := make([]models.JobApplication, 0, len(apps))
	for _, app := range apps {
		if _, dup := seen[app.ID]; dup {
			s.logger.Warn("Dropping duplicate application id", map[string]interface{}{"applicationId": app.ID})
			continue
		}
		seen[app.ID] = struct{}{}
		out = append(out, app.Clone())
	}
	return out
}
