package dedupe

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	DefaultNormalizeLimit = 500
	MaxNormalizeLimit     = 5000
)

// BulkNormalize normalizes the next page of live contacts with id > afterID
// and writes the normalized fields back. Done is true once a page comes back
// short, so callers loop on LastID until Done. Re-running any page is safe.
func (s *Service) BulkNormalize(ctx context.Context, afterID int64, limit int) (*models.NormalizeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Service.BulkNormalize")
	defer span.End()

	if afterID < 0 {
		return nil, dedupeerrors.InvalidInput("after_id must not be negative, got %d", afterID)
	}
	if limit <= 0 {
		limit = DefaultNormalizeLimit
	}
	if limit > MaxNormalizeLimit {
		limit = MaxNormalizeLimit
	}

	start := time.Now()
	defer func() { metrics.RecordBatch("normalize", time.Since(start)) }()

	contacts, err := s.contacts.ListAfter(ctx, afterID, limit)
	if err != nil {
		return nil, dedupeerrors.Classify(err)
	}

	result := &models.NormalizeResult{
		ProcessedCount: len(contacts),
		LastID:         afterID,
		Done:           len(contacts) < limit,
		Errors:         []models.ItemError{},
	}
	if len(contacts) > 0 {
		result.LastID = contacts[len(contacts)-1].ID
	}

	var mu sync.Mutex
	now := time.Now().UTC()
	work := context.WithoutCancel(ctx)

	g := &errgroup.Group{}
	g.SetLimit(s.workers)
	for i := range contacts {
		c := &contacts[i]
		g.Go(func() error {
			fields := s.normalizer.Normalize(c.ContactFields)
			if err := s.contacts.UpdateNormalized(work, c.ID, fields, now); err != nil {
				de := dedupeerrors.Classify(err)
				metrics.RecordItemError("normalize", string(de.Kind))

				mu.Lock()
				result.Errors = append(result.Errors, models.ItemError{
					ContactID: c.ID,
					Kind:      string(de.Kind),
					Message:   de.Error(),
				})
				mu.Unlock()
				return nil
			}
			metrics.ContactsNormalized.Inc()
			return nil
		})
	}
	_ = g.Wait()

	sortItemErrors(result.Errors)

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"after_id":        afterID,
		"limit":           limit,
		"processed_count": result.ProcessedCount,
		"last_id":         result.LastID,
		"done":            result.Done,
		"errors":          len(result.Errors),
	}).Info("Bulk normalization page complete")

	return result, nil
}
