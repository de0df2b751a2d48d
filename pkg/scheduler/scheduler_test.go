package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
)

// tableNormalizer pages over ids 1..rows.
type tableNormalizer struct {
	mu    sync.Mutex
	rows  int64
	calls []int64
	err   error
}

func (n *tableNormalizer) BulkNormalize(_ context.Context, afterID int64, limit int) (*models.NormalizeResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, afterID)
	if n.err != nil {
		return nil, n.err
	}
	last := afterID + int64(limit)
	if last > n.rows {
		last = n.rows
	}
	count := int(last - afterID)
	if count < 0 {
		count = 0
		last = afterID
	}
	return &models.NormalizeResult{ProcessedCount: count, LastID: last, Done: count < limit}, nil
}

type memLock struct {
	locker *memLocker
}

func (l *memLock) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	l.locker.held = false
	return nil
}

func (l *memLock) Extend(context.Context, time.Duration) error { return nil }

type memLocker struct {
	mu   sync.Mutex
	held bool
}

func (l *memLocker) Acquire(context.Context, string, time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, redis.ErrLockNotAcquired
	}
	l.held = true
	return &memLock{locker: l}, nil
}

type memCursor struct {
	mu    sync.Mutex
	value int64
}

func (c *memCursor) Load(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, nil
}

func (c *memCursor) Save(_ context.Context, v int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	return nil
}

func newTestScheduler(n Normalizer, locker Locker, cursor CursorStore, pages int) *Scheduler {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewScheduler(n, locker, cursor, Config{PageSize: 500, MaxPagesPerCycle: pages, PollInterval: time.Hour}, logger)
}

func TestRunCycle_ResumesFromCursor(t *testing.T) {
	n := &tableNormalizer{rows: 1200}
	cursor := &memCursor{}
	s := newTestScheduler(n, &memLocker{}, cursor, 2)

	assert.Equal(t, "partial", s.RunCycle(context.Background()))
	assert.Equal(t, int64(1000), cursor.value)

	assert.Equal(t, "done", s.RunCycle(context.Background()))
	assert.Equal(t, int64(0), cursor.value)

	assert.Equal(t, []int64{0, 500, 1000}, n.calls)
}

func TestRunCycle_SkipsWhenLocked(t *testing.T) {
	n := &tableNormalizer{rows: 10}
	locker := &memLocker{held: true}
	s := newTestScheduler(n, locker, &memCursor{}, 2)

	assert.Equal(t, "skipped", s.RunCycle(context.Background()))
	assert.Empty(t, n.calls)
}

func TestRunCycle_ErrorKeepsCursor(t *testing.T) {
	n := &tableNormalizer{rows: 10, err: errors.New("db down")}
	cursor := &memCursor{value: 300}
	locker := &memLocker{}
	s := newTestScheduler(n, locker, cursor, 2)

	assert.Equal(t, "error", s.RunCycle(context.Background()))
	assert.Equal(t, int64(300), cursor.value)
	assert.False(t, locker.held)
}

func TestStartStop(t *testing.T) {
	n := &tableNormalizer{rows: 10}
	s := newTestScheduler(n, &memLocker{}, &memCursor{}, 1)

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool {
		n.mu.Lock()
		defer n.mu.Unlock()
		return len(n.calls) == 1
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
}
