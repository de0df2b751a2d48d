// Package merging keeps the audit trail of merge decisions. The CRM performs
// the merge itself; nothing here touches contact rows.
package merging

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/clover/pkg/database"
	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type MergeStore interface {
	Create(ctx context.Context, merge *models.DedupeMerge) (*models.DedupeMerge, error)
	Get(ctx context.Context, id string) (*models.DedupeMerge, error)
	ListByContact(ctx context.Context, contactID int64, limit int) ([]models.DedupeMerge, error)
}

type CandidateLookup interface {
	GetByPair(ctx context.Context, a, b int64) (*models.DedupeCandidate, error)
}

type MergeEmitter interface {
	EmitMergeEvent(ctx context.Context, merge *models.DedupeMerge) error
}

type GraphProjector interface {
	LinkMerged(ctx context.Context, merge *models.DedupeMerge) error
}

// Transactor runs fn in one database transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SurvivorLookup resolves merge chains from a projection. A GraphProjector
// that also implements it is used by ResolveSurvivor.
type SurvivorLookup interface {
	Survivor(ctx context.Context, contactID int64) (int64, error)
}

// maxMergeHops bounds chain walks over recorded merges.
const maxMergeHops = 16

type Recorder struct {
	logger     ectologger.Logger
	merges     MergeStore
	candidates CandidateLookup
	emitter    MergeEmitter
	graph      GraphProjector
	tx         Transactor
}

// NewRecorder builds a Recorder. emitter and graph are optional.
func NewRecorder(logger ectologger.Logger, merges MergeStore, candidates CandidateLookup, emitter MergeEmitter, graph GraphProjector) *Recorder {
	return &Recorder{
		logger:     logger,
		merges:     merges,
		candidates: candidates,
		emitter:    emitter,
		graph:      graph,
	}
}

// WithTransactor makes the candidate lookup and the merge insert of
// RecordMerge share a transaction.
func (r *Recorder) WithTransactor(tx Transactor) *Recorder {
	r.tx = tx
	return r
}

func (r *Recorder) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.tx == nil {
		return fn(ctx)
	}
	return r.tx.WithTx(ctx, fn)
}

// RecordMerge stores the decision that two contacts were merged into
// SurvivorID and links it to the pair's candidate when one exists.
func (r *Recorder) RecordMerge(ctx context.Context, req models.MergeRequest) (*models.DedupeMerge, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Recorder.RecordMerge")
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	pair := models.NewContactPair(req.ContactID1, req.ContactID2)
	merge := &models.DedupeMerge{
		ContactID1: pair.ContactID1,
		ContactID2: pair.ContactID2,
		SurvivorID: req.SurvivorID,
		Metadata:   database.NewJSONB(req.Metadata),
	}
	if merge.Metadata.Data == nil {
		merge.Metadata.Data = map[string]any{}
	}
	if req.PerformedBy != "" {
		merge.PerformedBy = &req.PerformedBy
	}

	var stored *models.DedupeMerge
	err := r.inTx(ctx, func(ctx context.Context) error {
		candidate, err := r.candidates.GetByPair(ctx, pair.ContactID1, pair.ContactID2)
		if err != nil {
			return err
		}
		if candidate != nil {
			merge.CandidateID = &candidate.ID
		}

		stored, err = r.merges.Create(ctx, merge)
		return err
	})
	if err != nil {
		return nil, dedupeerrors.Classify(err)
	}

	metrics.MergesRecorded.Inc()
	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"merge_id":    stored.ID,
		"survivor_id": stored.SurvivorID,
		"loser_id":    stored.LoserID(),
	})
	log.Info("Merge recorded")

	if r.emitter != nil {
		if err := r.emitter.EmitMergeEvent(ctx, stored); err != nil {
			log.WithError(err).Warn("Failed to emit merge event")
		}
	}
	if r.graph != nil {
		if err := r.graph.LinkMerged(ctx, stored); err != nil {
			log.WithError(err).Warn("Failed to project merge into graph")
		}
	}

	return stored, nil
}

func (r *Recorder) GetMerge(ctx context.Context, id string) (*models.DedupeMerge, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Recorder.GetMerge")
	defer span.End()

	merge, err := r.merges.Get(ctx, id)
	if err != nil {
		return nil, dedupeerrors.Classify(err)
	}
	return merge, nil
}

// ListMerges returns the merges involving contactID, newest first.
func (r *Recorder) ListMerges(ctx context.Context, contactID int64, limit int) ([]models.DedupeMerge, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Recorder.ListMerges")
	defer span.End()

	if contactID <= 0 {
		return nil, dedupeerrors.InvalidInput("contact id %d must be positive", contactID)
	}

	merges, err := r.merges.ListByContact(ctx, contactID, limit)
	if err != nil {
		return nil, dedupeerrors.Classify(err)
	}
	return merges, nil
}

// ResolveSurvivor returns the contact that contactID was ultimately merged
// into, or contactID itself when it was never merged away. The graph is
// asked first; recorded merges are walked when there is no graph or it fails.
func (r *Recorder) ResolveSurvivor(ctx context.Context, contactID int64) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Recorder.ResolveSurvivor")
	defer span.End()

	if contactID <= 0 {
		return 0, dedupeerrors.InvalidInput("contact id %d must be positive", contactID)
	}

	if lookup, ok := r.graph.(SurvivorLookup); ok {
		survivor, err := lookup.Survivor(ctx, contactID)
		if err == nil {
			return survivor, nil
		}
		r.logger.WithContext(ctx).WithError(err).Warn("Graph survivor lookup failed, walking recorded merges")
	}

	current := contactID
	visited := map[int64]bool{current: true}
	for hop := 0; hop < maxMergeHops; hop++ {
		merges, err := r.merges.ListByContact(ctx, current, 0)
		if err != nil {
			return 0, dedupeerrors.Classify(err)
		}

		next := current
		for _, merge := range merges {
			if merge.LoserID() == current {
				next = merge.SurvivorID
				break
			}
		}
		if next == current || visited[next] {
			return current, nil
		}
		visited[next] = true
		current = next
	}
	return current, nil
}

func validateRequest(req models.MergeRequest) error {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return dedupeerrors.InvalidInput("invalid merge request: field %s failed %s", verrs[0].Field(), verrs[0].Tag())
		}
		return dedupeerrors.InvalidInput("invalid merge request: %v", err)
	}
	if req.SurvivorID != req.ContactID1 && req.SurvivorID != req.ContactID2 {
		return dedupeerrors.InvalidInput("survivor %d is not one of contacts %d and %d", req.SurvivorID, req.ContactID1, req.ContactID2)
	}
	return nil
}
