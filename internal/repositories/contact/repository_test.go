package contact

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

func newTestRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewRepository(database.NewDatabaseInstance(sqlx.NewDb(db, "postgres"), logger), logger), mock
}

func contactRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "primary_email", "other_emails", "email_norm", "normalized_at"})
}

func TestGetByID(t *testing.T) {
	repo, mock := newTestRepository(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM contacts WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs(int64(7)).
		WillReturnRows(contactRows().AddRow(int64(7), "Jon Smith", "J@X.com", "{a@x.com}", "j@x.com", now))

	c, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, "Jon Smith", c.Name)
	assert.Equal(t, []string{"a@x.com"}, []string(c.OtherEmails))
	assert.True(t, c.IsNormalized())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery("FROM contacts").
		WithArgs(int64(99)).
		WillReturnRows(contactRows())

	_, err := repo.GetByID(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, 404, httperror.GetStatusCode(err))
}

func TestGetByIDs(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id IN ($1, $2, $3)")).
		WithArgs(int64(1), int64(2), int64(3)).
		WillReturnRows(contactRows().
			AddRow(int64(1), "Ann", "", "{}", "", nil).
			AddRow(int64(3), "Bea", "", "{}", "", nil))

	got, err := repo.GetByIDs(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "Bea", got[3].Name)
	assert.NotContains(t, got, int64(2))

	empty, err := repo.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAfter(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id > $1 AND deleted_at IS NULL ORDER BY id ASC LIMIT $2")).
		WithArgs(int64(500), 2).
		WillReturnRows(contactRows().
			AddRow(int64(501), "A", "", "{}", "", nil).
			AddRow(int64(502), "B", "", "{}", "", nil))

	got, err := repo.ListAfter(context.Background(), 500, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(502), got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAfter_ClampsLimit(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery("FROM contacts").WithArgs(int64(0), DefaultPageSize).WillReturnRows(contactRows())
	mock.ExpectQuery("FROM contacts").WithArgs(int64(0), MaxPageSize).WillReturnRows(contactRows())

	_, err := repo.ListAfter(context.Background(), 0, 0)
	require.NoError(t, err)
	_, err = repo.ListAfter(context.Background(), 0, 100000)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNormalized(t *testing.T) {
	repo, mock := newTestRepository(t)
	fields := models.NormalizedFields{FullNameNorm: "jon smith", EmailNorm: "j@x.com"}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE contacts SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE contacts SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateNormalized(context.Background(), 7, fields, time.Now()))

	err := repo.UpdateNormalized(context.Background(), 8, fields, time.Now())
	require.Error(t, err)
	assert.Equal(t, 404, httperror.GetStatusCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
