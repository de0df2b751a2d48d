package dedupemerge

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

const table = "dedupe_merges"

var columns = []string{
	"id", "contact_id_1", "contact_id_2", "survivor_id", "candidate_id", "metadata", "performed_by", "created_at",
}

// Repository stores the merge audit log. Records are append-only.
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

// Create appends a merge record. ID and CreatedAt are assigned here.
func (r *Repository) Create(ctx context.Context, merge *models.DedupeMerge) (*models.DedupeMerge, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupemerge.Repository.Create")
	defer span.End()

	if merge.ID == "" {
		merge.ID = uuid.New().String()
	}
	merge.CreatedAt = time.Now().UTC()

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(merge.ID, merge.ContactID1, merge.ContactID2, merge.SurvivorID, merge.CandidateID, merge.Metadata, merge.PerformedBy, merge.CreatedAt)

	query, args := ib.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"merge_id":    merge.ID,
			"survivor_id": merge.SurvivorID,
		}).Error("Failed to create dedupe merge")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create dedupe merge")
	}

	return merge, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*models.DedupeMerge, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupemerge.Repository.Get")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("dedupe merge %s not found", id))
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var merge models.DedupeMerge
	if err := database.Conn(ctx, r.db).GetContext(ctx, &merge, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("dedupe merge %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get dedupe merge")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get dedupe merge")
	}

	return &merge, nil
}

// ListByContact returns the merges a contact took part in, newest first.
func (r *Repository) ListByContact(ctx context.Context, contactID int64, limit int) ([]models.DedupeMerge, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupemerge.Repository.ListByContact")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Or(
		sb.Equal("contact_id_1", contactID),
		sb.Equal("contact_id_2", contactID),
	))
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var merges []models.DedupeMerge
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &merges, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("contact_id", contactID).Error("Failed to list dedupe merges")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list dedupe merges")
	}

	return merges, nil
}
