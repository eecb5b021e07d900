package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/oppradar/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	s, err := NewPostgresStoreWithPool(mock)
	require.NoError(t, err)
	return s, mock
}

func TestNewPostgresStoreWithPoolRequiresPool(t *testing.T) {
	_, err := NewPostgresStoreWithPool(nil)
	require.Error(t, err)
}

func TestPostgresMigrate(t *testing.T) {
	s, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS companies").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS job_postings").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_job_postings_unscored").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS company_embeddings").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMigrateError(t *testing.T) {
	s, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("CREATE EXTENSION").WillReturnError(errors.New("permission denied"))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestPostgresInsertCompany(t *testing.T) {
	s, mock := newMockStore(t)
	defer mock.Close()

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &model.Company{ID: "c1", Name: "acme-ai.com", Domain: "acme-ai.com", CreatedAt: created}

	mock.ExpectExec("INSERT INTO companies").
		WithArgs("c1", "acme-ai.com", "acme-ai.com", "", "", 0, "", created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.InsertCompany(context.Background(), c))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertCompanyConflict(t *testing.T) {
	s, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO companies").
		WithArgs(pgxmock.AnyArg(), "b.com", "b.com", "", "", 0, "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec("INSERT INTO companies").
		WithArgs(pgxmock.AnyArg(), "b.com", "b.com", "", "", 0, "", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.InsertCompany(context.Background(), &model.Company{Name: "b.com", Domain: "b.com"})
	assert.ErrorIs(t, err, ErrConflict)
	err = s.InsertCompany(context.Background(), &model.Company{Name: "b.com", Domain: "b.com"})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertPostingIfNew(t *testing.T) {
	s, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO job_postings").
		WithArgs(pgxmock.AnyArg(), "c1", "ML Engineer", "Remote", pgxmock.AnyArg(), "", "https://x/1", true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO job_postings").
		WithArgs(pgxmock.AnyArg(), "c1", "ML Engineer", "Remote", pgxmock.AnyArg(), "", "https://x/1", true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	ctx := context.Background()
	inserted, err := s.InsertPostingIfNew(ctx, &model.JobPosting{CompanyID: "c1", Title: "ML Engineer", Location: "Remote", URL: "https://x/1", Remote: true})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.InsertPostingIfNew(ctx, &model.JobPosting{CompanyID: "c1", Title: "ML Engineer", Location: "Remote", URL: "https://x/1", Remote: true})
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCompanyByDomain(t *testing.T) {
	s, mock := newMockStore(t)
	defer mock.Close()

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cols := []string{"id", "name", "domain", "description", "funding_stage", "employee_count", "headquarters", "created_at"}
	mock.ExpectQuery("SELECT .* FROM companies WHERE domain").
		WithArgs("acme-ai.com").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("c1", "Acme", "acme-ai.com", "", "series a", 40, "", created))
	mock.ExpectQuery("SELECT .* FROM companies WHERE domain").
		WithArgs("missing.com").
		WillReturnRows(pgxmock.NewRows(cols))

	ctx := context.Background()
	c, err := s.CompanyByDomain(ctx, "acme-ai.com")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "series a", c.FundingStage)
	assert.Equal(t, 40, c.EmployeeCount)

	_, err = s.CompanyByDomain(ctx, "missing.com")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetScores(t *testing.T) {
	s, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE job_postings SET score").
		WithArgs(72.5, "p1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	n, err := s.SetScores(context.Background(), map[string]float64{"p1": 72.5})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPostgresSetScoresAlreadyScored(t *testing.T) {
	s, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE job_postings SET score").
		WithArgs(10.0, "p1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectCommit()

	n, err := s.SetScores(context.Background(), map[string]float64{"p1": 10})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPostgresSetScoresEmpty(t *testing.T) {
	s, mock := newMockStore(t)
	defer mock.Close()

	n, err := s.SetScores(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertCompanyEmbedding(t *testing.T) {
	s, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO company_embeddings").
		WithArgs("c1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.UpsertCompanyEmbedding(context.Background(), "c1", []float32{0.1, 0.2}))
	require.NoError(t, mock.ExpectationsWereMet())
}
