package contact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	table = "contacts"

	DefaultPageSize = 500
	MaxPageSize     = 5000
)

// raw text columns may be NULL in the CRM schema
var columns = []string{
	"id",
	"COALESCE(name, '') AS name",
	"COALESCE(primary_email, '') AS primary_email",
	"COALESCE(secondary_email, '') AS secondary_email",
	"COALESCE(primary_phone, '') AS primary_phone",
	"COALESCE(secondary_phone, '') AS secondary_phone",
	"COALESCE(other_emails, '{}') AS other_emails",
	"COALESCE(other_phones, '{}') AS other_phones",
	"COALESCE(company, '') AS company",
	"COALESCE(website, '') AS website",
	"COALESCE(address, '') AS address",
	"COALESCE(first_name_norm, '') AS first_name_norm",
	"COALESCE(last_name_norm, '') AS last_name_norm",
	"COALESCE(full_name_norm, '') AS full_name_norm",
	"COALESCE(email_norm, '') AS email_norm",
	"COALESCE(email_local, '') AS email_local",
	"COALESCE(email_domain, '') AS email_domain",
	"COALESCE(phone_e164, '') AS phone_e164",
	"COALESCE(company_norm, '') AS company_norm",
	"COALESCE(website_root, '') AS website_root",
	"COALESCE(address_norm, '') AS address_norm",
	"COALESCE(zip_norm, '') AS zip_norm",
	"COALESCE(other_emails_norm, '{}') AS other_emails_norm",
	"COALESCE(other_phones_norm, '{}') AS other_phones_norm",
	"COALESCE(last_name_soundex, '') AS last_name_soundex",
	"COALESCE(last_name_metaphone, '') AS last_name_metaphone",
	"normalized_at",
	"deleted_at",
	"created_at",
	"updated_at",
}

// Repository reads contacts and writes their normalized fields. Soft-deleted
// contacts are invisible to every read.
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

// GetByID returns a live contact or a 404.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var c models.Contact
	if err := database.Conn(ctx, r.db).GetContext(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("contact %d not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).WithField("contact_id", id).Error("Failed to get contact")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get contact")
	}

	return &c, nil
}

// GetByIDs returns the live contacts among ids keyed by id. Missing ids are
// simply absent from the map.
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.GetByIDs")
	defer span.End()

	result := make(map[int64]*models.Contact, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	in := make([]any, len(ids))
	for i, id := range ids {
		in[i] = id
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.In("id", in...),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var contacts []models.Contact
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &contacts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("count", len(ids)).Error("Failed to get contacts")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get contacts")
	}

	for i := range contacts {
		result[contacts[i].ID] = &contacts[i]
	}
	return result, nil
}

// ListAfter returns up to limit live contacts with id > afterID in id order.
func (r *Repository) ListAfter(ctx context.Context, afterID int64, limit int) ([]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.ListAfter")
	defer span.End()

	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.GreaterThan("id", afterID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("id ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	var contacts []models.Contact
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &contacts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"after_id": afterID,
			"limit":    limit,
		}).Error("Failed to list contacts")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list contacts")
	}

	return contacts, nil
}

// UpdateNormalized overwrites the normalized fields of a live contact.
func (r *Repository) UpdateNormalized(ctx context.Context, id int64, fields models.NormalizedFields, normalizedAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.UpdateNormalized")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("first_name_norm", fields.FirstNameNorm),
		ub.Assign("last_name_norm", fields.LastNameNorm),
		ub.Assign("full_name_norm", fields.FullNameNorm),
		ub.Assign("email_norm", fields.EmailNorm),
		ub.Assign("email_local", fields.EmailLocal),
		ub.Assign("email_domain", fields.EmailDomain),
		ub.Assign("phone_e164", fields.PhoneE164),
		ub.Assign("company_norm", fields.CompanyNorm),
		ub.Assign("website_root", fields.WebsiteRoot),
		ub.Assign("address_norm", fields.AddressNorm),
		ub.Assign("zip_norm", fields.ZipNorm),
		ub.Assign("other_emails_norm", fields.OtherEmailsNorm),
		ub.Assign("other_phones_norm", fields.OtherPhonesNorm),
		ub.Assign("last_name_soundex", fields.LastNameSoundex),
		ub.Assign("last_name_metaphone", fields.LastNameMetaphone),
		ub.Assign("normalized_at", normalizedAt),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("contact_id", id).Error("Failed to update normalized contact fields")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update normalized contact fields")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("contact %d not found", id))
	}

	return nil
}
