package dedupecandidate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const table = "dedupe_candidates"

var columns = []string{
	"id", "contact_id_1", "contact_id_2", "score", "reason", "status", "components",
	"created_at", "updated_at", "resolved_at", "resolved_by",
}

// Repository persists dedupe candidates. There is at most one row per
// unordered contact pair.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts the candidate for its pair or overwrites the score, reason,
// status and components of the existing one. The pair is stored in
// canonical order and the stored row is returned.
func (r *Repository) Upsert(ctx context.Context, candidate *models.DedupeCandidate) (*models.DedupeCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupecandidate.Repository.Upsert")
	defer span.End()

	if candidate.ContactID1 <= 0 || candidate.ContactID2 <= 0 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "contact ids must be positive")
	}
	if candidate.ContactID1 == candidate.ContactID2 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "a contact cannot be paired with itself")
	}
	if !candidate.Status.IsValid() {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid candidate status %q", candidate.Status))
	}

	pair := models.NewContactPair(candidate.ContactID1, candidate.ContactID2)
	now := time.Now().UTC()
	id := candidate.ID
	if id == "" {
		id = uuid.New().String()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(
		id, pair.ContactID1, pair.ContactID2, models.ClampScore(candidate.Score), candidate.Reason,
		candidate.Status, candidate.Components, now, now, candidate.ResolvedAt, candidate.ResolvedBy,
	)
	ub := ib.OnConflict("contact_id_1", "contact_id_2")
	ub.Set(
		ub.Assign("score", database.Excluded("score")),
		ub.Assign("reason", database.Excluded("reason")),
		ub.Assign("status", database.Excluded("status")),
		ub.Assign("components", database.Excluded("components")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
		ub.Assign("resolved_at", database.Excluded("resolved_at")),
		ub.Assign("resolved_by", database.Excluded("resolved_by")),
	)
	ib.Returning(columns...)

	query, args := ib.Build()
	var stored models.DedupeCandidate
	if err := database.Conn(ctx, r.db).GetContext(ctx, &stored, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"contact_id_1": pair.ContactID1,
			"contact_id_2": pair.ContactID2,
		}).Error("Failed to upsert dedupe candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert dedupe candidate")
	}

	return &stored, nil
}

// Get retrieves a candidate by id. Ids that are not UUIDs cannot exist and
// are reported as not found.
func (r *Repository) Get(ctx context.Context, id string) (*models.DedupeCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupecandidate.Repository.Get")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("dedupe candidate %s not found", id))
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var candidate models.DedupeCandidate
	if err := database.Conn(ctx, r.db).GetContext(ctx, &candidate, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("dedupe candidate %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get dedupe candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get dedupe candidate")
	}

	return &candidate, nil
}

// GetByPair finds the candidate for an unordered pair. Returns nil if none exists.
func (r *Repository) GetByPair(ctx context.Context, a, b int64) (*models.DedupeCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupecandidate.Repository.GetByPair")
	defer span.End()

	pair := models.NewContactPair(a, b)

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("contact_id_1", pair.ContactID1),
		sb.Equal("contact_id_2", pair.ContactID2),
	)

	query, args := sb.Build()
	var candidate models.DedupeCandidate
	if err := database.Conn(ctx, r.db).GetContext(ctx, &candidate, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get dedupe candidate by pair")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get dedupe candidate")
	}

	return &candidate, nil
}

// List returns candidates matching filter, highest score first.
func (r *Repository) List(ctx context.Context, filter models.CandidateFilter) ([]models.DedupeCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupecandidate.Repository.List")
	defer span.End()

	limit := filter.Limit
	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)

	var where []string
	if filter.Status != "" {
		where = append(where, sb.Equal("status", filter.Status))
	}
	if filter.MinScore != nil {
		where = append(where, sb.GreaterEqualThan("score", *filter.MinScore))
	}
	if filter.ContactID > 0 {
		where = append(where, sb.Or(
			sb.Equal("contact_id_1", filter.ContactID),
			sb.Equal("contact_id_2", filter.ContactID),
		))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy("score DESC", "created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var candidates []models.DedupeCandidate
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list dedupe candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list dedupe candidates")
	}

	return candidates, nil
}

// UpdateStatus records a reviewer decision. Only approved and rejected are
// accepted; pending is only ever set by scoring.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status models.CandidateStatus, resolvedBy string) (*models.DedupeCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupecandidate.Repository.UpdateStatus")
	defer span.End()

	if !status.IsTerminal() {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("cannot set candidate status to %q", status))
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("dedupe candidate %s not found", id))
	}

	now := time.Now().UTC()
	var by *string
	if resolvedBy != "" {
		by = &resolvedBy
	}

	ub := database.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("status", status),
		ub.Assign("resolved_at", now),
		ub.Assign("resolved_by", by),
		ub.Assign("updated_at", now),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	query = database.AppendReturning(query, columns...)

	var candidate models.DedupeCandidate
	if err := database.Conn(ctx, r.db).GetContext(ctx, &candidate, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("dedupe candidate %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"candidate_id": id,
			"status":       status,
		}).Error("Failed to update dedupe candidate status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update dedupe candidate status")
	}

	return &candidate, nil
}
