package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestReplaceRows(t *testing.T) {
	mock := newMock(t)
	cols := []string{"run_id", "ordinal", "name"}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "businesses" WHERE "run_id" = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectCopyFrom(pgx.Identifier{"businesses"}, cols).WillReturnResult(2)
	mock.ExpectCommit()

	n, err := ReplaceRows(context.Background(), mock, "businesses", "run_id", "run-1", cols,
		[][]any{{"run-1", 0, "A"}, {"run-1", 1, "B"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRows_EmptySkipsCopy(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "businesses"`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	n, err := ReplaceRows(context.Background(), mock, "businesses", "run_id", "run-1", []string{"run_id"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRows_CopyErrorRollsBack(t *testing.T) {
	mock := newMock(t)
	cols := []string{"run_id"}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "businesses"`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"businesses"}, cols).WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err := ReplaceRows(context.Background(), mock, "businesses", "run_id", "run-1", cols, [][]any{{"run-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO businesses")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRows_BeginError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("no conn"))

	_, err := ReplaceRows(context.Background(), mock, "businesses", "run_id", "run-1", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin replace")
}
