package store

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mapscrap/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var runRowColumns = []string{"id", "query", "target", "workers", "status", "stats", "error", "created_at", "updated_at", "ended_at"}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "cafes in Barcelona", 20, 5, "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(t.Context(), "cafes in Barcelona", 20, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, stats = \$2`).
		WithArgs("complete", pgxmock.AnyArg(), "", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRun(t.Context(), "run-1", model.RunStatusComplete, model.RunStats{Accepted: 3})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("failed", pgxmock.AnyArg(), "boom", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FailRun(t.Context(), "missing", model.RunStats{}, eris.New("boom"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	ended := now.Add(time.Minute)
	mock.ExpectQuery(`SELECT id, query, target, workers, status, stats, error, created_at, updated_at, ended_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runRowColumns).
			AddRow("run-1", "cafes in Barcelona", 20, 5, "partial", []byte(`{"discovered":12,"accepted":9}`), "", now, now, &ended))

	run, err := s.GetRun(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "cafes in Barcelona", run.Query)
	assert.Equal(t, model.RunStatusPartial, run.Status)
	assert.Equal(t, 12, run.Stats.Discovered)
	assert.Equal(t, 9, run.Stats.Accepted)
	require.NotNil(t, run.EndedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(t.Context(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM runs WHERE true AND status = \$1 AND query = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("complete", "gyms", 10, 20).
		WillReturnRows(pgxmock.NewRows(runRowColumns).
			AddRow("run-2", "gyms", 5, 1, "complete", []byte(`{}`), "", now, now, &now))

	runs, err := s.ListRuns(t.Context(), RunFilter{Status: model.RunStatusComplete, Query: "gyms", Limit: 10, Offset: 20})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE true ORDER BY created_at DESC LIMIT \$1$`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows(runRowColumns))

	runs, err := s.ListRuns(t.Context(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveBusinesses(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "businesses" WHERE "run_id" = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"businesses"}, businessColumns).
		WillReturnResult(2)
	mock.ExpectCommit()

	err := s.SaveBusinesses(t.Context(), "run-1", []model.Business{
		{Name: "Cafe Uno", Website: "https://uno.es", Contact: model.ContactResult{Email: "hola@uno.es"}},
		{Name: "Cafe Dos"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveBusinesses_RollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "businesses"`).
		WithArgs("run-1").
		WillReturnError(eris.New("connection reset"))
	mock.ExpectRollback()

	err := s.SaveBusinesses(t.Context(), "run-1", []model.Business{{Name: "Cafe Uno"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save businesses")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListBusinesses(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM businesses WHERE run_id = \$1 ORDER BY ordinal`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"name":"Cafe Uno","website":"https://uno.es","contact":{"email":"hola@uno.es"}}`)).
			AddRow([]byte(`{"name":"Cafe Dos","reviews_count":4}`)))

	got, err := s.ListBusinesses(t.Context(), "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hola@uno.es", got[0].Contact.Email)
	require.NotNil(t, got[1].ReviewsCount)
	assert.Equal(t, 4, *got[1].ReviewsCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(t.Context()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
