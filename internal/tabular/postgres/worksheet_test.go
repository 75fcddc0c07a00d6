package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newMockWorksheet(t *testing.T) (*Worksheet, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	ws, err := NewWorksheet(mock, "jobs_rows")
	require.NoError(t, err)
	return ws, mock
}

func TestNewWorksheetRejectsBadTableName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWorksheet(mock, `jobs"; DROP TABLE jobs; --`)
	require.Error(t, err)
	_, err = NewWorksheet(mock, "")
	require.Error(t, err)
	_, err = NewWorksheet(mock, "9starts_with_digit")
	require.Error(t, err)
}

func TestEnsureRelation(t *testing.T) {
	ws, mock := newMockWorksheet(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS jobs_rows").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, ws.EnsureRelation(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRowsReturnsCellsInPositionOrder(t *testing.T) {
	ws, mock := newMockWorksheet(t)
	mock.ExpectQuery("SELECT cells FROM jobs_rows ORDER BY pos").
		WillReturnRows(pgxmock.NewRows([]string{"cells"}).
			AddRow([]string{"Title", "URL"}).
			AddRow([]string{"Job", "https://example.org/1"}))

	rows, err := ws.Rows(context.Background())
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"Title", "URL"},
		{"Job", "https://example.org/1"},
	}, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendRunsInOneTransaction(t *testing.T) {
	ws, mock := newMockWorksheet(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO jobs_rows").
		WithArgs([]string{"a"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO jobs_rows").
		WithArgs([]string{"b"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := ws.Append(context.Background(), [][]string{{"a"}, {"b"}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendRollsBackOnFailure(t *testing.T) {
	ws, mock := newMockWorksheet(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO jobs_rows").
		WithArgs([]string{"a"}).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := ws.Append(context.Background(), [][]string{{"a"}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEmptyIsNoop(t *testing.T) {
	ws, mock := newMockWorksheet(t)
	require.NoError(t, ws.Append(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRowUpserts(t *testing.T) {
	ws, mock := newMockWorksheet(t)
	mock.ExpectExec("INSERT INTO jobs_rows").
		WithArgs(1, []string{"Title", "URL"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, ws.SetRow(context.Background(), 1, []string{"Title", "URL"}))
	require.NoError(t, mock.ExpectationsWereMet())

	require.Error(t, ws.SetRow(context.Background(), 0, nil))
}

func TestSetCellRequiresExistingRow(t *testing.T) {
	ws, mock := newMockWorksheet(t)
	mock.ExpectExec("UPDATE jobs_rows SET").
		WithArgs(2, "true", 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, ws.SetCell(context.Background(), 3, 2, "true"))

	mock.ExpectExec("UPDATE jobs_rows SET").
		WithArgs(2, "true", 99).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.Error(t, ws.SetCell(context.Background(), 99, 2, "true"))

	require.NoError(t, mock.ExpectationsWereMet())
}
