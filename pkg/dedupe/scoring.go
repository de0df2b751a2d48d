package dedupe

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// PairSource supplies the pairs due for (re)scoring, e.g. from a blocking
// strategy or a queue of requests.
type PairSource interface {
	DuePairs(ctx context.Context) ([]models.ContactPair, error)
}

// PairList is a fixed set of pairs.
type PairList []models.ContactPair

func (l PairList) DuePairs(_ context.Context) ([]models.ContactPair, error) {
	return l, nil
}

// RunDueScoring scores every pair from source and upserts the candidates.
// Failures are recorded per pair and never abort the batch. If ctx is
// cancelled no further pairs are started, pairs already started complete,
// and the partial result is returned with the context error.
func (s *Service) RunDueScoring(ctx context.Context, source PairSource) (*models.ScoringResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Service.RunDueScoring")
	defer span.End()

	start := time.Now()
	defer func() { metrics.RecordBatch("score", time.Since(start)) }()

	pairs, err := source.DuePairs(ctx)
	if err != nil {
		return nil, dedupeerrors.Classify(err)
	}

	result := &models.ScoringResult{
		Requested: len(pairs),
		Errors:    []models.ItemError{},
	}
	if len(pairs) == 0 {
		return result, nil
	}

	pass := &scoringPass{service: s, result: result}

	valid := make([]models.ContactPair, 0, len(pairs))
	seen := make(map[int64]struct{}, len(pairs)*2)
	ids := make([]int64, 0, len(pairs)*2)
	for _, p := range pairs {
		if err := validatePair(p.ContactID1, p.ContactID2); err != nil {
			pass.fail(p, err)
			continue
		}
		p = models.NewContactPair(p.ContactID1, p.ContactID2)
		valid = append(valid, p)
		for _, id := range []int64{p.ContactID1, p.ContactID2} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	pass.contacts = map[int64]*models.Contact{}
	if len(ids) > 0 {
		pass.contacts, err = s.contacts.GetByIDs(ctx, ids)
		if err != nil {
			return nil, dedupeerrors.Classify(err)
		}
	}

	// one config snapshot per pass
	pass.scorer = s.configs.Scorer()
	work := context.WithoutCancel(ctx)

	g := &errgroup.Group{}
	g.SetLimit(s.workers)
	for _, pair := range valid {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			pass.score(work, pair)
			return nil
		})
	}
	_ = g.Wait()

	sortItemErrors(result.Errors)

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"requested":     result.Requested,
		"scored":        result.Scored,
		"upserted":      result.Upserted,
		"skipped":       result.Skipped,
		"auto_approved": result.AutoApproved,
		"errors":        len(result.Errors),
	})
	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("Scoring pass cancelled")
		return result, err
	}
	log.Info("Scoring pass complete")

	return result, nil
}

// scoringPass holds the shared state of one RunDueScoring call.
type scoringPass struct {
	service  *Service
	scorer   *matching.PairScorer
	contacts map[int64]*models.Contact

	mu     sync.Mutex
	result *models.ScoringResult
}

func (p *scoringPass) fail(pair models.ContactPair, err error) {
	de := dedupeerrors.Classify(err)
	metrics.RecordItemError("score", string(de.Kind))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.result.Errors = append(p.result.Errors, models.ItemError{
		ContactID1: pair.ContactID1,
		ContactID2: pair.ContactID2,
		Kind:       string(de.Kind),
		Message:    de.Error(),
	})
}

func (p *scoringPass) score(ctx context.Context, pair models.ContactPair) {
	a, ok := p.contacts[pair.ContactID1]
	if !ok {
		p.fail(pair, dedupeerrors.NotFound("contact %d not found", pair.ContactID1))
		return
	}
	b, ok := p.contacts[pair.ContactID2]
	if !ok {
		p.fail(pair, dedupeerrors.NotFound("contact %d not found", pair.ContactID2))
		return
	}

	scored := p.scorer.Score(a, b, "")
	skip := !p.scorer.Config().PersistBelowReview && p.scorer.BelowReview(scored.Score)

	p.mu.Lock()
	p.result.Scored++
	if skip {
		p.result.Skipped++
	}
	p.mu.Unlock()
	if skip {
		return
	}

	candidate, err := p.service.store(ctx, scored)
	if err != nil {
		p.fail(pair, err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.result.Upserted++
	if candidate.Status == models.CandidateStatusApproved {
		p.result.AutoApproved++
	}
}

func sortItemErrors(errs []models.ItemError) {
	sort.Slice(errs, func(i, j int) bool {
		if errs[i].ContactID != errs[j].ContactID {
			return errs[i].ContactID < errs[j].ContactID
		}
		if errs[i].ContactID1 != errs[j].ContactID1 {
			return errs[i].ContactID1 < errs[j].ContactID1
		}
		return errs[i].ContactID2 < errs[j].ContactID2
	})
}
