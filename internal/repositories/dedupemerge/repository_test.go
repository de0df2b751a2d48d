package dedupemerge

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
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

func TestCreate(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dedupe_merges")).
		WithArgs(sqlmock.AnyArg(), int64(3), int64(7), int64(3), nil, sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	m, err := repo.Create(context.Background(), &models.DedupeMerge{
		ContactID1: 3,
		ContactID2: 7,
		SurvivorID: 3,
		Metadata:   database.NewJSONB(map[string]any{"kept": "email"}),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())
	assert.Equal(t, int64(7), m.LoserID())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	repo, mock := newTestRepository(t)
	id := uuid.New().String()

	mock.ExpectQuery(regexp.QuoteMeta("FROM dedupe_merges WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(id, int64(3), int64(7), int64(7), nil, []byte(`{"kept":"phone"}`), "u-1", time.Now()))
	mock.ExpectQuery("FROM dedupe_merges").
		WillReturnRows(sqlmock.NewRows(columns))

	m, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(7), m.SurvivorID)
	assert.Equal(t, "phone", m.Metadata.Data["kept"])
	require.NotNil(t, m.PerformedBy)
	assert.Equal(t, "u-1", *m.PerformedBy)

	_, err = repo.Get(context.Background(), uuid.New().String())
	assert.Equal(t, 404, httperror.GetStatusCode(err))

	_, err = repo.Get(context.Background(), "nope")
	assert.Equal(t, 404, httperror.GetStatusCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByContact(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE (contact_id_1 = $1 OR contact_id_2 = $2) ORDER BY created_at DESC LIMIT $3")).
		WithArgs(int64(7), int64(7), 100).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(uuid.New().String(), int64(3), int64(7), int64(3), nil, nil, nil, time.Now()))

	got, err := repo.ListByContact(context.Background(), 7, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
