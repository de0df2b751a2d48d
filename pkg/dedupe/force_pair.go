package dedupe

import (
	"context"
	"strconv"
	"strings"

	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ParseContactID parses a contact id supplied as text.
func ParseContactID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, dedupeerrors.InvalidInput("contact id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, dedupeerrors.InvalidInput("contact id %q is not numeric", raw)
	}
	if id <= 0 {
		return 0, dedupeerrors.InvalidInput("contact id %d must be positive", id)
	}
	return id, nil
}

func validatePair(id1, id2 int64) error {
	if id1 <= 0 || id2 <= 0 {
		return dedupeerrors.InvalidInput("contact ids must be positive, got %d and %d", id1, id2)
	}
	if id1 == id2 {
		return dedupeerrors.InvalidInput("cannot pair contact %d with itself", id1)
	}
	return nil
}

// ForcePair scores two contacts on demand and upserts the result. The
// candidate is stored whatever the score.
func (s *Service) ForcePair(ctx context.Context, id1, id2 int64) (*models.DedupeCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Service.ForcePair")
	defer span.End()

	if err := validatePair(id1, id2); err != nil {
		return nil, err
	}

	a, err := s.contacts.GetByID(ctx, id1)
	if err != nil {
		return nil, dedupeerrors.Classify(err)
	}
	b, err := s.contacts.GetByID(ctx, id2)
	if err != nil {
		return nil, dedupeerrors.Classify(err)
	}

	result := s.configs.Scorer().Score(s.prepare(a), s.prepare(b), models.ReasonForcePair)

	candidate, err := s.store(ctx, result)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"contact_id_1": result.Pair.ContactID1,
			"contact_id_2": result.Pair.ContactID2,
		}).Error("Failed to store forced pair")
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"candidate_id": candidate.ID,
		"score":        candidate.Score,
		"status":       candidate.Status,
		"reason":       candidate.Reason,
	}).Info("Forced pair scored")

	return candidate, nil
}
