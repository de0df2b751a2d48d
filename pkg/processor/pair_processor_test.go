package processor

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/dedupe"
	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
)

type stubScorer struct {
	got    []models.ContactPair
	result *models.ScoringResult
	err    error
}

func (s *stubScorer) RunDueScoring(ctx context.Context, source dedupe.PairSource) (*models.ScoringResult, error) {
	s.got, _ = source.DuePairs(ctx)
	return s.result, s.err
}

func newTestProcessor(scorer Scorer) *PairProcessor {
	return NewPairProcessor(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), scorer)
}

func TestHandleBatch(t *testing.T) {
	pairs := []models.ContactPair{{ContactID1: 1, ContactID2: 2}, {ContactID1: 3, ContactID2: 4}}

	t.Run("scores every pair", func(t *testing.T) {
		scorer := &stubScorer{result: &models.ScoringResult{Requested: 2, Scored: 2, Upserted: 2}}
		require.NoError(t, newTestProcessor(scorer).HandleBatch(context.Background(), pairs))
		assert.Equal(t, pairs, scorer.got)
	})

	t.Run("permanent pair errors are dropped", func(t *testing.T) {
		scorer := &stubScorer{result: &models.ScoringResult{
			Requested: 2,
			Scored:    1,
			Upserted:  1,
			Errors: []models.ItemError{
				{ContactID1: 3, ContactID2: 4, Kind: string(dedupeerrors.KindNotFound), Message: "contact 4 not found"},
			},
		}}
		assert.NoError(t, newTestProcessor(scorer).HandleBatch(context.Background(), pairs))
	})

	t.Run("transient errors fail the batch", func(t *testing.T) {
		scorer := &stubScorer{result: &models.ScoringResult{
			Requested: 2,
			Errors: []models.ItemError{
				{ContactID1: 1, ContactID2: 2, Kind: string(dedupeerrors.KindTransientStoreFailure), Message: "connection reset"},
			},
		}}
		assert.Error(t, newTestProcessor(scorer).HandleBatch(context.Background(), pairs))
	})

	t.Run("cancelled pass fails the batch", func(t *testing.T) {
		scorer := &stubScorer{result: &models.ScoringResult{Requested: 2}, err: context.Canceled}
		assert.ErrorIs(t, newTestProcessor(scorer).HandleBatch(context.Background(), pairs), context.Canceled)
	})
}
