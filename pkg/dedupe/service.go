// Package dedupe orchestrates contact normalization, pair scoring and the
// candidate review workflow.
package dedupe

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Candidate event types
const (
	EventCandidateUpserted     = "candidate.upserted"
	EventCandidateAutoApproved = "candidate.auto_approved"
	EventCandidateApproved     = "candidate.approved"
	EventCandidateRejected     = "candidate.rejected"
)

const DefaultWorkers = 8

type ContactRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Contact, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Contact, error)
	ListAfter(ctx context.Context, afterID int64, limit int) ([]models.Contact, error)
	UpdateNormalized(ctx context.Context, id int64, fields models.NormalizedFields, normalizedAt time.Time) error
}

// CandidateStore persists candidates keyed by their unordered contact pair.
type CandidateStore interface {
	Upsert(ctx context.Context, candidate *models.DedupeCandidate) (*models.DedupeCandidate, error)
	Get(ctx context.Context, id string) (*models.DedupeCandidate, error)
	GetByPair(ctx context.Context, a, b int64) (*models.DedupeCandidate, error)
	List(ctx context.Context, filter models.CandidateFilter) ([]models.DedupeCandidate, error)
	UpdateStatus(ctx context.Context, id string, status models.CandidateStatus, resolvedBy string) (*models.DedupeCandidate, error)
}

type EventEmitter interface {
	EmitCandidateEvent(ctx context.Context, eventType string, candidate *models.DedupeCandidate) error
}

type Service struct {
	logger     ectologger.Logger
	contacts   ContactRepository
	candidates CandidateStore
	configs    *matching.ConfigHolder
	normalizer *normalizers.ContactNormalizer
	emitter    EventEmitter
	workers    int
}

// NewService wires the orchestrator. emitter may be nil; workers <= 0 uses
// DefaultWorkers.
func NewService(
	logger ectologger.Logger,
	contacts ContactRepository,
	candidates CandidateStore,
	configs *matching.ConfigHolder,
	normalizer *normalizers.ContactNormalizer,
	emitter EventEmitter,
	workers int,
) *Service {
	if normalizer == nil {
		normalizer = normalizers.NewContactNormalizer(nil)
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Service{
		logger:     logger,
		contacts:   contacts,
		candidates: candidates,
		configs:    configs,
		normalizer: normalizer,
		emitter:    emitter,
		workers:    workers,
	}
}

// Config returns the scoring config currently in effect.
func (s *Service) Config() models.DedupeConfig {
	return s.configs.Load()
}

// UpdateConfig validates and installs a new scoring config. Passes already
// running keep the snapshot they started with.
func (s *Service) UpdateConfig(ctx context.Context, config models.DedupeConfig) (models.DedupeConfig, error) {
	prev, err := s.configs.Swap(config)
	if err != nil {
		return prev, dedupeerrors.InvalidInput("invalid dedupe config: %v", err)
	}
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"review_threshold": config.Thresholds.Review,
		"auto_threshold":   config.Thresholds.Auto,
	}).Info("Dedupe config updated")
	return prev, nil
}

func (s *Service) GetCandidate(ctx context.Context, id string) (*models.DedupeCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Service.GetCandidate")
	defer span.End()

	candidate, err := s.candidates.Get(ctx, id)
	if err != nil {
		return nil, dedupeerrors.Classify(err)
	}
	return candidate, nil
}

func (s *Service) ListCandidates(ctx context.Context, filter models.CandidateFilter) ([]models.DedupeCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Service.ListCandidates")
	defer span.End()

	candidates, err := s.candidates.List(ctx, filter)
	if err != nil {
		return nil, dedupeerrors.Classify(err)
	}
	return candidates, nil
}

// ApproveCandidate marks a candidate as a confirmed duplicate.
func (s *Service) ApproveCandidate(ctx context.Context, id, reviewer string) (*models.DedupeCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Service.ApproveCandidate")
	defer span.End()

	return s.resolve(ctx, id, models.CandidateStatusApproved, reviewer, EventCandidateApproved)
}

// RejectCandidate marks a candidate as not a duplicate. A rejected pair may
// be re-opened only by a later rescoring.
func (s *Service) RejectCandidate(ctx context.Context, id, reviewer string) (*models.DedupeCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Service.RejectCandidate")
	defer span.End()

	return s.resolve(ctx, id, models.CandidateStatusRejected, reviewer, EventCandidateRejected)
}

func (s *Service) resolve(ctx context.Context, id string, status models.CandidateStatus, reviewer, eventType string) (*models.DedupeCandidate, error) {
	candidate, err := s.candidates.UpdateStatus(ctx, id, status, reviewer)
	if err != nil {
		return nil, dedupeerrors.Classify(err)
	}

	metrics.RecordTransition(string(status))
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"candidate_id": candidate.ID,
		"status":       status,
		"reviewer":     reviewer,
	}).Info("Dedupe candidate resolved")
	s.emit(ctx, eventType, candidate)

	return candidate, nil
}

// store upserts a scored pair and reports it. Auto-approved candidates are
// stamped as resolved at upsert time.
func (s *Service) store(ctx context.Context, result matching.Result) (*models.DedupeCandidate, error) {
	candidate := &models.DedupeCandidate{
		ContactID1: result.Pair.ContactID1,
		ContactID2: result.Pair.ContactID2,
		Score:      result.Score,
		Reason:     result.Reason,
		Status:     result.Status,
		Components: database.NewJSONB(result.Components),
	}
	if result.Status == models.CandidateStatusApproved {
		now := time.Now().UTC()
		candidate.ResolvedAt = &now
	}

	stored, err := s.candidates.Upsert(ctx, candidate)
	if err != nil {
		return nil, dedupeerrors.Classify(err)
	}

	metrics.RecordUpsert(string(stored.Status), stored.Reason, stored.Score)
	eventType := EventCandidateUpserted
	if stored.Status == models.CandidateStatusApproved {
		eventType = EventCandidateAutoApproved
	}
	s.emit(ctx, eventType, stored)

	return stored, nil
}

func (s *Service) emit(ctx context.Context, eventType string, candidate *models.DedupeCandidate) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.EmitCandidateEvent(ctx, eventType, candidate); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type":   eventType,
			"candidate_id": candidate.ID,
		}).Warn("Failed to emit candidate event")
	}
}

// prepare fills in normalized fields for a contact that has never been
// normalized. The result is not persisted.
func (s *Service) prepare(c *models.Contact) *models.Contact {
	if c.IsNormalized() {
		return c
	}
	prepared := *c
	prepared.NormalizedFields = s.normalizer.Normalize(c.ContactFields)
	return &prepared
}
