package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"application-tracker/internal/common/logger"
	"application-tracker/internal/models"
	"application-tracker/internal/storage"

	"github.com/stretchr/testify/mock"
)

// ==========================
// Mock Remote
// ==========================

type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) List(ctx context.Context) ([]models.JobApplication, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.JobApplication), args.Error(1)
}

func (m *MockRemote) Create(ctx context.Context, app models.JobApplication) error {
	return m.Called(ctx, app).Error(0)
}

func (m *MockRemote) Update(ctx context.Context, id string, upd models.ApplicationUpdate) error {
	return m.Called(ctx, id, upd).Error(0)
}

func (m *MockRemote) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// ==========================
// Test Helpers
// ==========================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// flakyStorage fails every Save while failing is set.
type flakyStorage struct {
	*storage.MemoryStorage
	mu      sync.Mutex
	failing bool
}

func (f *flakyStorage) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *flakyStorage) Save(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return errors.New("disk full")
	}
	return f.MemoryStorage.Save(ctx, key, data)
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *storage.MemoryStorage, *fakeClock) {
	t.Helper()
	st := storage.NewMemoryStorage()
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(st, logger.NewTestLogger(t), opts...), st, clock
}

func newSyncedStore(t *testing.T, remote Remote, opts ...Option) (*Store, *SyncQueue, *fakeClock) {
	t.Helper()
	q := NewSyncQueue(remote, logger.NewTestLogger(t), WithRequestTimeout(time.Second))
	s, _, clock := newTestStore(t, append([]Option{WithSyncQueue(q)}, opts...)...)
	return s, q, clock
}

func sampleInput(title, company string) models.NewApplication {
	return models.NewApplication{
		JobTitle: title,
		Company:  company,
		Location: "Remote",
	}
}

func strPtr(s string) *string { return &s }

func newTestStoreLogger(t *testing.T) logger.Logger {
	t.Helper()
	return logger.NewTestLogger(t)
}
