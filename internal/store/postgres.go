package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/amishk599/oppradar/internal/model"
)

var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS companies (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		domain         TEXT NOT NULL UNIQUE,
		description    TEXT NOT NULL DEFAULT '',
		funding_stage  TEXT NOT NULL DEFAULT '',
		employee_count INTEGER NOT NULL DEFAULT 0,
		headquarters   TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS job_postings (
		id           TEXT PRIMARY KEY,
		company_id   TEXT NOT NULL REFERENCES companies(id),
		title        TEXT NOT NULL,
		location     TEXT NOT NULL DEFAULT '',
		posting_date DATE NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		url          TEXT NOT NULL UNIQUE,
		remote       BOOLEAN NOT NULL DEFAULT FALSE,
		score        DOUBLE PRECISION,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_postings_unscored ON job_postings (created_at) WHERE score IS NULL`,
	`CREATE TABLE IF NOT EXISTS company_embeddings (
		company_id TEXT PRIMARY KEY REFERENCES companies(id),
		embedding  vector NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// PostgresConfig controls the connection pool.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// pgxPool is the subset of *pgxpool.Pool the store uses, so pgxmock can
// stand in for tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore is a Store backed by Postgres with pgvector for embeddings.
type PostgresStore struct {
	pool pgxPool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects and applies the schema.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database.dsn is required for postgres")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreWithPool wraps an existing pool without migrating.
func NewPostgresStoreWithPool(pool pgxPool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return nil
}

// CompanyByDomain implements Store.
func (s *PostgresStore) CompanyByDomain(ctx context.Context, domain string) (model.Company, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+companyColumns+" FROM companies WHERE domain = $1", domain)
	c, err := scanPgCompany(row)
	if err != nil {
		return model.Company{}, fmt.Errorf("company by domain %s: %w", domain, err)
	}
	return c, nil
}

// Company implements Store.
func (s *PostgresStore) Company(ctx context.Context, id string) (model.Company, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+companyColumns+" FROM companies WHERE id = $1", id)
	c, err := scanPgCompany(row)
	if err != nil {
		return model.Company{}, fmt.Errorf("company %s: %w", id, err)
	}
	return c, nil
}

// Companies implements Store.
func (s *PostgresStore) Companies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+companyColumns+" FROM companies ORDER BY domain")
	if err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanPgCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("listing companies: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertCompany implements Store. A taken domain yields ErrConflict.
func (s *PostgresStore) InsertCompany(ctx context.Context, c *model.Company) error {
	if err := prepareCompany(c); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO companies (`+companyColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (domain) DO NOTHING`,
		c.ID, c.Name, c.Domain, c.Description, c.FundingStage, c.EmployeeCount, c.Headquarters, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inserting company %s: %w", c.Domain, ErrConflict)
		}
		return fmt.Errorf("inserting company %s: %w", c.Domain, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inserting company %s: %w", c.Domain, ErrConflict)
	}
	return nil
}

// InsertPostingIfNew implements Store.
func (s *PostgresStore) InsertPostingIfNew(ctx context.Context, p *model.JobPosting) (bool, error) {
	if err := preparePosting(p); err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO job_postings (id, company_id, title, location, posting_date, description, url, remote, score, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, $9)
		 ON CONFLICT (url) DO NOTHING`,
		p.ID, p.CompanyID, p.Title, p.Location, p.PostingDate, p.Description, p.URL, p.Remote, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("inserting posting %s: %w", p.URL, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UnscoredPostings implements Store.
func (s *PostgresStore) UnscoredPostings(ctx context.Context) ([]model.ScoredPosting, error) {
	return s.queryJoined(ctx,
		`SELECT `+joinedColumns+` FROM job_postings p JOIN companies c ON c.id = p.company_id
		 WHERE p.score IS NULL ORDER BY p.created_at`)
}

// AboveThreshold implements Store.
func (s *PostgresStore) AboveThreshold(ctx context.Context, threshold float64) ([]model.ScoredPosting, error) {
	return s.queryJoined(ctx,
		`SELECT `+joinedColumns+` FROM job_postings p JOIN companies c ON c.id = p.company_id
		 WHERE p.score IS NOT NULL AND p.score >= $1 ORDER BY p.score DESC, p.url`, threshold)
}

func (s *PostgresStore) queryJoined(ctx context.Context, query string, args ...any) ([]model.ScoredPosting, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying postings: %w", err)
	}
	defer rows.Close()

	var out []model.ScoredPosting
	for rows.Next() {
		sp, err := scanPgJoined(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning posting: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// SetScores implements Store.
func (s *PostgresStore) SetScores(ctx context.Context, scores map[string]float64) (int, error) {
	if len(scores) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin score tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated := 0
	for id, score := range scores {
		tag, err := tx.Exec(ctx, "UPDATE job_postings SET score = $1 WHERE id = $2 AND score IS NULL", score, id)
		if err != nil {
			return 0, fmt.Errorf("scoring posting %s: %w", id, err)
		}
		updated += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit scores: %w", err)
	}
	return updated, nil
}

// UpsertCompanyEmbedding implements Store using a pgvector column.
func (s *PostgresStore) UpsertCompanyEmbedding(ctx context.Context, companyID string, vec []float32) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO company_embeddings (company_id, embedding, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (company_id) DO UPDATE SET embedding = EXCLUDED.embedding, updated_at = EXCLUDED.updated_at`,
		companyID, pgvector.NewVector(vec), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting embedding for %s: %w", companyID, err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanPgCompany(row pgx.Row) (model.Company, error) {
	var c model.Company
	err := row.Scan(&c.ID, &c.Name, &c.Domain, &c.Description, &c.FundingStage, &c.EmployeeCount, &c.Headquarters, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Company{}, ErrNotFound
	}
	if err != nil {
		return model.Company{}, err
	}
	return c, nil
}

func scanPgJoined(row pgx.Row) (model.ScoredPosting, error) {
	var (
		sp    model.ScoredPosting
		score pgtype.Float8
	)
	p, c := &sp.Posting, &sp.Company
	err := row.Scan(
		&p.ID, &p.CompanyID, &p.Title, &p.Location, &p.PostingDate, &p.Description, &p.URL, &p.Remote, &score, &p.CreatedAt,
		&c.ID, &c.Name, &c.Domain, &c.Description, &c.FundingStage, &c.EmployeeCount, &c.Headquarters, &c.CreatedAt,
	)
	if err != nil {
		return model.ScoredPosting{}, err
	}
	if score.Valid {
		v := score.Float64
		p.Score = &v
	}
	return sp, nil
}
