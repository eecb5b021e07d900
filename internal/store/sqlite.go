package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/oppradar/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS companies (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	domain         TEXT NOT NULL UNIQUE,
	description    TEXT NOT NULL DEFAULT '',
	funding_stage  TEXT NOT NULL DEFAULT '',
	employee_count INTEGER NOT NULL DEFAULT 0,
	headquarters   TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS job_postings (
	id           TEXT PRIMARY KEY,
	company_id   TEXT NOT NULL REFERENCES companies(id),
	title        TEXT NOT NULL,
	location     TEXT NOT NULL DEFAULT '',
	posting_date TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL UNIQUE,
	remote       INTEGER NOT NULL DEFAULT 0,
	score        REAL,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_postings_score ON job_postings(score);
CREATE TABLE IF NOT EXISTS company_embeddings (
	company_id TEXT PRIMARY KEY REFERENCES companies(id),
	embedding  TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

const companyColumns = `id, name, domain, description, funding_stage, employee_count, headquarters, created_at`

const joinedColumns = `p.id, p.company_id, p.title, p.location, p.posting_date, p.description, p.url, p.remote, p.score, p.created_at,
	c.id, c.name, c.domain, c.description, c.funding_stage, c.employee_count, c.headquarters, c.created_at`

// SQLiteStore is the default Store, backed by a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dbPath and applies the
// schema. Writes are serialized on one connection; busy_timeout covers other
// processes holding the file.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// CompanyByDomain implements Store.
func (s *SQLiteStore) CompanyByDomain(ctx context.Context, domain string) (model.Company, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+companyColumns+" FROM companies WHERE domain = ?", domain)
	c, err := scanCompany(row)
	if err != nil {
		return model.Company{}, fmt.Errorf("company by domain %s: %w", domain, err)
	}
	return c, nil
}

// Company implements Store.
func (s *SQLiteStore) Company(ctx context.Context, id string) (model.Company, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+companyColumns+" FROM companies WHERE id = ?", id)
	c, err := scanCompany(row)
	if err != nil {
		return model.Company{}, fmt.Errorf("company %s: %w", id, err)
	}
	return c, nil
}

// Companies implements Store.
func (s *SQLiteStore) Companies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+companyColumns+" FROM companies ORDER BY domain")
	if err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("listing companies: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertCompany implements Store. A taken domain yields ErrConflict.
func (s *SQLiteStore) InsertCompany(ctx context.Context, c *model.Company) error {
	if err := prepareCompany(c); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (`+companyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(domain) DO NOTHING`,
		c.ID, c.Name, c.Domain, c.Description, c.FundingStage, c.EmployeeCount, c.Headquarters,
		c.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting company %s: %w", c.Domain, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inserting company %s: %w", c.Domain, err)
	}
	if n == 0 {
		return fmt.Errorf("inserting company %s: %w", c.Domain, ErrConflict)
	}
	return nil
}

// InsertPostingIfNew implements Store.
func (s *SQLiteStore) InsertPostingIfNew(ctx context.Context, p *model.JobPosting) (bool, error) {
	if err := preparePosting(p); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO job_postings (id, company_id, title, location, posting_date, description, url, remote, score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)
		 ON CONFLICT(url) DO NOTHING`,
		p.ID, p.CompanyID, p.Title, p.Location, p.PostingDate.Format(dateLayout), p.Description, p.URL,
		boolToInt(p.Remote), p.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("inserting posting %s: %w", p.URL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting posting %s: %w", p.URL, err)
	}
	return n > 0, nil
}

// UnscoredPostings implements Store.
func (s *SQLiteStore) UnscoredPostings(ctx context.Context) ([]model.ScoredPosting, error) {
	return s.queryJoined(ctx,
		`SELECT `+joinedColumns+` FROM job_postings p JOIN companies c ON c.id = p.company_id
		 WHERE p.score IS NULL ORDER BY p.created_at`)
}

// AboveThreshold implements Store.
func (s *SQLiteStore) AboveThreshold(ctx context.Context, threshold float64) ([]model.ScoredPosting, error) {
	return s.queryJoined(ctx,
		`SELECT `+joinedColumns+` FROM job_postings p JOIN companies c ON c.id = p.company_id
		 WHERE p.score IS NOT NULL AND p.score >= ? ORDER BY p.score DESC, p.url`, threshold)
}

func (s *SQLiteStore) queryJoined(ctx context.Context, query string, args ...any) ([]model.ScoredPosting, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying postings: %w", err)
	}
	defer rows.Close()

	var out []model.ScoredPosting
	for rows.Next() {
		sp, err := scanJoined(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning posting: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// SetScores implements Store.
func (s *SQLiteStore) SetScores(ctx context.Context, scores map[string]float64) (int, error) {
	if len(scores) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin score tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE job_postings SET score = ? WHERE id = ? AND score IS NULL")
	if err != nil {
		return 0, fmt.Errorf("prepare score update: %w", err)
	}
	defer stmt.Close()

	updated := 0
	for id, score := range scores {
		res, err := stmt.ExecContext(ctx, score, id)
		if err != nil {
			return 0, fmt.Errorf("scoring posting %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("scoring posting %s: %w", id, err)
		}
		updated += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit scores: %w", err)
	}
	return updated, nil
}

// UpsertCompanyEmbedding implements Store. Vectors are stored as JSON arrays.
func (s *SQLiteStore) UpsertCompanyEmbedding(ctx context.Context, companyID string, vec []float32) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encoding embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO company_embeddings (company_id, embedding, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(company_id) DO UPDATE SET embedding = excluded.embedding, updated_at = excluded.updated_at`,
		companyID, string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting embedding for %s: %w", companyID, err)
	}
	return nil
}

// CompanyEmbedding returns the stored vector for a company.
func (s *SQLiteStore) CompanyEmbedding(ctx context.Context, companyID string) ([]float32, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT embedding FROM company_embeddings WHERE company_id = ?", companyID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading embedding for %s: %w", companyID, err)
	}
	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return nil, fmt.Errorf("decoding embedding for %s: %w", companyID, err)
	}
	return vec, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (model.Company, error) {
	var (
		c       model.Company
		created string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Domain, &c.Description, &c.FundingStage, &c.EmployeeCount, &c.Headquarters, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Company{}, ErrNotFound
	}
	if err != nil {
		return model.Company{}, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return c, nil
}

func scanJoined(row rowScanner) (model.ScoredPosting, error) {
	var (
		sp                    model.ScoredPosting
		postingDate, pCreated string
		cCreated              string
		remote                int
		score                 sql.NullFloat64
	)
	p, c := &sp.Posting, &sp.Company
	err := row.Scan(
		&p.ID, &p.CompanyID, &p.Title, &p.Location, &postingDate, &p.Description, &p.URL, &remote, &score, &pCreated,
		&c.ID, &c.Name, &c.Domain, &c.Description, &c.FundingStage, &c.EmployeeCount, &c.Headquarters, &cCreated,
	)
	if err != nil {
		return model.ScoredPosting{}, err
	}
	p.PostingDate, _ = time.Parse(dateLayout, postingDate)
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, pCreated)
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, cCreated)
	p.Remote = remote != 0
	if score.Valid {
		v := score.Float64
		p.Score = &v
	}
	return sp, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
