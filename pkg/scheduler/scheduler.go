// Package scheduler drives bulk normalization over the whole contact table,
// one page at a time, from whichever replica holds the Redis lock.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var ErrSchedulerAlreadyRunning = errors.New("scheduler already running")

const (
	DefaultPollInterval     = time.Minute
	DefaultLockTTL          = 2 * time.Minute
	DefaultPageSize         = 500
	DefaultMaxPagesPerCycle = 20

	LockKey = "normalize"
)

// Normalizer is the bulk normalization pass the scheduler drives.
type Normalizer interface {
	BulkNormalize(ctx context.Context, afterID int64, limit int) (*models.NormalizeResult, error)
}

type Lock interface {
	Release(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) error
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

type CursorStore interface {
	Load(ctx context.Context) (int64, error)
	Save(ctx context.Context, afterID int64) error
}

type redisLocker struct {
	locker *redis.Locker
}

// NewRedisLocker adapts a redis.Locker to Locker.
func NewRedisLocker(locker *redis.Locker) Locker {
	return redisLocker{locker: locker}
}

func (l redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.locker.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

type Config struct {
	PollInterval     time.Duration
	LockTTL          time.Duration
	PageSize         int
	MaxPagesPerCycle int
}

type Scheduler struct {
	normalizer Normalizer
	locker     Locker
	cursor     CursorStore
	config     Config
	logger     ectologger.Logger

	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

func NewScheduler(normalizer Normalizer, locker Locker, cursor CursorStore, config Config, logger ectologger.Logger) *Scheduler {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.MaxPagesPerCycle <= 0 {
		config.MaxPagesPerCycle = DefaultMaxPagesPerCycle
	}

	return &Scheduler{
		normalizer: normalizer,
		locker:     locker,
		cursor:     cursor,
		config:     config,
		logger:     logger,
		stopCh:     make(chan struct{}),
		stoppedC:   make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	s.logger.WithContext(ctx).Infof("Starting normalization scheduler: poll_interval=%s page_size=%d",
		s.config.PollInterval, s.config.PageSize)

	go s.pollLoop(context.WithoutCancel(ctx))
	return nil
}

// Stop waits for the page in progress to finish, or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.stoppedC:
		s.logger.WithContext(ctx).Info("Normalization scheduler stopped")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Normalization scheduler shutdown timed out")
		return ctx.Err()
	}
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer close(s.stoppedC)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.RunCycle(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

func (s *Scheduler) stopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// RunCycle normalizes up to MaxPagesPerCycle pages starting at the stored
// cursor. Reaching the end of the table resets the cursor so the next cycle
// starts over and picks up new or edited contacts.
func (s *Scheduler) RunCycle(ctx context.Context) string {
	ctx, span := tracing.StartSpan(ctx, "scheduler.Scheduler.RunCycle")
	defer span.End()

	outcome := s.runCycle(ctx)
	metrics.RecordSchedulerRun(outcome)
	return outcome
}

func (s *Scheduler) runCycle(ctx context.Context) string {
	log := s.logger.WithContext(ctx)

	lock, err := s.locker.Acquire(ctx, LockKey, s.config.LockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			log.Debug("Normalization already running on another replica")
			return "skipped"
		}
		log.WithError(err).Error("Failed to acquire normalization lock")
		return "error"
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			log.WithError(err).Warn("Failed to release normalization lock")
		}
	}()

	afterID, err := s.cursor.Load(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load normalization cursor")
		return "error"
	}

	start := afterID
	processed := 0
	for page := 0; page < s.config.MaxPagesPerCycle; page++ {
		if s.stopping() {
			return "partial"
		}

		res, err := s.normalizer.BulkNormalize(ctx, afterID, s.config.PageSize)
		if err != nil {
			log.WithError(err).WithField("after_id", afterID).Error("Normalization page failed")
			return "error"
		}
		processed += res.ProcessedCount

		next := res.LastID
		if res.Done {
			next = 0
		}
		if err := s.cursor.Save(ctx, next); err != nil {
			log.WithError(err).Error("Failed to save normalization cursor")
			return "error"
		}

		if res.Done {
			log.WithFields(map[string]any{
				"from_id":   start,
				"processed": processed,
			}).Info("Normalization reached end of contacts")
			return "done"
		}
		afterID = next

		if err := lock.Extend(ctx, s.config.LockTTL); err != nil {
			log.WithError(err).Warn("Lost normalization lock")
			return "partial"
		}
	}

	log.WithFields(map[string]any{
		"from_id":   start,
		"to_id":     afterID,
		"processed": processed,
	}).Info("Normalization cycle complete")
	return "partial"
}
