package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertBuilder_OnConflictReturning(t *testing.T) {
	ib := NewInsertBuilder()
	ib.InsertInto("dedupe_candidates")
	ib.Cols("contact_id_1", "contact_id_2", "score")
	ib.Values(int64(3), int64(7), 0.5)
	ub := ib.OnConflict("contact_id_1", "contact_id_2")
	ub.Set(ub.Assign("score", Excluded("score")))
	ib.Returning("id", "score")

	query, args := ib.Build()

	assert.Contains(t, query, "INSERT INTO dedupe_candidates")
	assert.Contains(t, query, "ON CONFLICT (contact_id_1, contact_id_2) DO UPDATE")
	assert.Contains(t, query, "EXCLUDED.score")
	assert.Regexp(t, `RETURNING id, score$`, query)
	assert.Equal(t, []any{int64(3), int64(7), 0.5}, args)
}

func TestJSONB_ScanAndValue(t *testing.T) {
	var j JSONB[map[string]any]
	require.NoError(t, j.Scan([]byte(`{"kept":"email"}`)))
	assert.Equal(t, "email", j.Data["kept"])

	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j.Data)

	v, err := NewJSONB(map[string]int{"a": 1}).Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(v.([]byte)))

	assert.Error(t, j.Scan(42))
}

func TestLatestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000001_contacts.up.sql",
		"000001_contacts.down.sql",
		"000003_dedupe_merges.up.sql",
		"000002_dedupe_candidates.up.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}

	v, err := LatestVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = LatestVersion(t.TempDir())
	assert.Error(t, err)
}

func TestUnwrap(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := NewDatabaseInstance(sqlx.NewDb(sqlDB, "postgres"), ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	unwrapped, err := Unwrap(db)
	require.NoError(t, err)
	assert.Same(t, sqlDB, unwrapped.DB)
}

func newMockDB(t *testing.T) (DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewDatabaseInstance(sqlx.NewDb(sqlDB, "postgres"), ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})), mock
}

func TestWithTx_CommitsAndSharesTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE contacts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO dedupe_merges").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewTxRunner(db).WithTx(context.Background(), func(ctx context.Context) error {
		if _, err := Conn(ctx, db).ExecContext(ctx, "UPDATE contacts SET name = $1", "x"); err != nil {
			return err
		}
		// a nested WithTx joins the outer transaction
		return WithTx(ctx, db, func(ctx context.Context) error {
			_, err := Conn(ctx, db).ExecContext(ctx, "INSERT INTO dedupe_merges (id) VALUES ($1)", "m")
			return err
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	cause := errors.New("boom")
	err := WithTx(context.Background(), db, func(context.Context) error { return cause })
	assert.ErrorIs(t, err, cause)
	assert.NoError(t, mock.ExpectationsWereMet())
}
