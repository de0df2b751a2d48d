package processor

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/dedupe"
	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type Scorer interface {
	RunDueScoring(ctx context.Context, source dedupe.PairSource) (*models.ScoringResult, error)
}

// PairProcessor scores batches of pair requests taken off Kafka.
type PairProcessor struct {
	logger ectologger.Logger
	scorer Scorer
}

func NewPairProcessor(logger ectologger.Logger, scorer Scorer) *PairProcessor {
	return &PairProcessor{
		logger: logger,
		scorer: scorer,
	}
}

// HandleBatch runs one scoring pass over pairs. It fails only when a pair hit
// a transient store failure or the pass was cancelled, so the batch is
// redelivered; bad or unknown pairs are logged and dropped.
func (p *PairProcessor) HandleBatch(ctx context.Context, pairs []models.ContactPair) error {
	ctx, span := tracing.StartSpan(ctx, "processor.PairProcessor.HandleBatch")
	defer span.End()

	result, err := p.scorer.RunDueScoring(ctx, dedupe.PairList(pairs))
	if err != nil {
		return err
	}

	transient := 0
	for _, itemErr := range result.Errors {
		if itemErr.Kind == string(dedupeerrors.KindTransientStoreFailure) {
			transient++
			continue
		}
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"contact_id_1": itemErr.ContactID1,
			"contact_id_2": itemErr.ContactID2,
			"kind":         itemErr.Kind,
		}).Warn(itemErr.Message)
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"requested":     result.Requested,
		"upserted":      result.Upserted,
		"auto_approved": result.AutoApproved,
		"skipped":       result.Skipped,
		"errors":        len(result.Errors),
	}).Info("Pair request batch scored")

	if transient > 0 {
		return fmt.Errorf("%d of %d pairs failed transiently", transient, result.Requested)
	}
	return nil
}
