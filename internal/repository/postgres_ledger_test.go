package repository

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackvento/portal-api/internal/models"
)

func newLedgerMock(t *testing.T) (*PostgresLedger, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresLedger(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func expectDuplicateCheckMiss(mock sqlmock.Sqlmock, teamNumber string) {
	mock.ExpectQuery("SELECT 1 FROM registrations WHERE team_number").
		WithArgs(teamNumber).
		WillReturnError(sql.ErrNoRows)
}

func TestPostgresLedgerAllocateSuccess(t *testing.T) {
	ledger, mock, cleanup := newLedgerMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectDuplicateCheckMiss(mock, "T1")
	mock.ExpectQuery("SELECT max_selections FROM problem_statements WHERE id = (.+) FOR UPDATE").
		WithArgs("ps1").
		WillReturnRows(sqlmock.NewRows([]string{"max_selections"}).AddRow(3))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM registrations WHERE problem_statement_id").
		WithArgs("ps1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec("INSERT INTO registrations").
		WithArgs("T1", "Alpha", "Lee", "ps1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	reg := &models.Registration{TeamNumber: "T1", TeamName: "Alpha", TeamLeader: "Lee", ProblemStatementID: "ps1"}
	require.NoError(t, ledger.Allocate(context.Background(), reg))
	assert.False(t, reg.RegistrationDateTime.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedgerAllocateDuplicateTeam(t *testing.T) {
	ledger, mock, cleanup := newLedgerMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM registrations WHERE team_number").
		WithArgs("T1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	err := ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T1", ProblemStatementID: "ps1"})
	assert.Equal(t, ErrDuplicateTeam, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedgerAllocateUnknownProblem(t *testing.T) {
	ledger, mock, cleanup := newLedgerMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectDuplicateCheckMiss(mock, "T1")
	mock.ExpectQuery("SELECT max_selections FROM problem_statements WHERE id = (.+) FOR UPDATE").
		WithArgs("ps999").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T1", ProblemStatementID: "ps999"})
	assert.Equal(t, ErrProblemNotFound, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedgerAllocateProblemFull(t *testing.T) {
	ledger, mock, cleanup := newLedgerMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectDuplicateCheckMiss(mock, "T1")
	mock.ExpectQuery("SELECT max_selections FROM problem_statements WHERE id = (.+) FOR UPDATE").
		WithArgs("ps1").
		WillReturnRows(sqlmock.NewRows([]string{"max_selections"}).AddRow(2))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM registrations WHERE problem_statement_id").
		WithArgs("ps1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T1", ProblemStatementID: "ps1"})
	assert.Equal(t, ErrProblemFull, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedgerAllocateMapsUniqueViolation(t *testing.T) {
	ledger, mock, cleanup := newLedgerMock(t)
	defer cleanup()

	mock.ExpectBegin()
	expectDuplicateCheckMiss(mock, "T1")
	mock.ExpectQuery("SELECT max_selections FROM problem_statements WHERE id = (.+) FOR UPDATE").
		WithArgs("ps1").
		WillReturnRows(sqlmock.NewRows([]string{"max_selections"}).AddRow(3))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM registrations WHERE problem_statement_id").
		WithArgs("ps1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO registrations").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T1", ProblemStatementID: "ps1"})
	assert.Equal(t, ErrDuplicateTeam, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedgerAllocateRetriesSerializationFailure(t *testing.T) {
	ledger, mock, cleanup := newLedgerMock(t)
	defer cleanup()

	// First attempt dies on a serialization conflict.
	mock.ExpectBegin()
	expectDuplicateCheckMiss(mock, "T1")
	mock.ExpectQuery("SELECT max_selections FROM problem_statements WHERE id = (.+) FOR UPDATE").
		WithArgs("ps1").
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()

	// Retry succeeds.
	mock.ExpectBegin()
	expectDuplicateCheckMiss(mock, "T1")
	mock.ExpectQuery("SELECT max_selections FROM problem_statements WHERE id = (.+) FOR UPDATE").
		WithArgs("ps1").
		WillReturnRows(sqlmock.NewRows([]string{"max_selections"}).AddRow(3))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM registrations WHERE problem_statement_id").
		WithArgs("ps1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO registrations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T1", ProblemStatementID: "ps1"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedgerDeleteByTeam(t *testing.T) {
	ledger, mock, cleanup := newLedgerMock(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM registrations WHERE team_number").
		WithArgs("T1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := ledger.DeleteByTeam(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedgerListJoinsProblemFields(t *testing.T) {
	ledger, mock, cleanup := newLedgerMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"team_number", "team_name", "team_leader", "problem_statement_id", "registration_datetime", "problem_title", "problem_category", "problem_difficulty"}).
		AddRow("T1", "Alpha", "Lee", "ps1", sqlmockTime(), "Problem One", "AI", "hard").
		AddRow("T2", "Beta", "Kim", "ps-gone", sqlmockTime(), nil, nil, nil)
	mock.ExpectQuery("SELECT g.team_number").WillReturnRows(rows)

	details, err := ledger.List(context.Background())
	require.NoError(t, err)
	require.Len(t, details, 2)
	require.NotNil(t, details[0].ProblemTitle)
	assert.Equal(t, "Problem One", *details[0].ProblemTitle)
	assert.Nil(t, details[1].ProblemTitle)
	require.NoError(t, mock.ExpectationsWereMet())
}
