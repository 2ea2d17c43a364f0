package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradeflow/gradeflow-api/internal/models"
)

func TestMigrationRepositoryCreateStartsEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewMigrationRepository(db)
	mock.ExpectExec("INSERT INTO migrations").
		WithArgs(sqlmock.AnyArg(), "mm-1", "hw1", nil, "empty", "", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	m := &models.Migration{MasterMigrationID: "mm-1", AssignmentID: "hw1"}
	require.NoError(t, repo.Create(context.Background(), m))
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, models.RawScoreStatusEmpty, m.RawScoreStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationRepositoryBeginImportClaimsMigration(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewMigrationRepository(db)
	mock.ExpectExec("UPDATE migrations SET raw_score_status").
		WithArgs("importing", "gradescope", "import in progress", "m-1", "empty").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.BeginRawScoreImport(context.Background(), "m-1", models.RawScoreSourceGradescope, "import in progress")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationRepositoryBeginImportAlreadyClaimed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewMigrationRepository(db)
	mock.ExpectExec("UPDATE migrations SET raw_score_status").
		WithArgs("importing", "gradescope", "import in progress", "m-1", "empty").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.BeginRawScoreImport(context.Background(), "m-1", models.RawScoreSourceGradescope, "import in progress")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMigrationRepositoryFinishImport(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewMigrationRepository(db)
	mock.ExpectExec("UPDATE migrations SET raw_score_status").
		WithArgs("present", "imported 42 scores from gradescope", "m-1", "importing").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.FinishRawScoreImport(context.Background(), "m-1", "imported 42 scores from gradescope")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationRepositorySetPolicy(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewMigrationRepository(db)
	policyID := "policy-1"
	mock.ExpectExec("UPDATE migrations SET policy_id").
		WithArgs(&policyID, "m-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetPolicy(context.Background(), "m-1", &policyID))
	require.NoError(t, mock.ExpectationsWereMet())
}
