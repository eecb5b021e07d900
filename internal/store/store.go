// Package store persists companies, postings and company embeddings.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/oppradar/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert hits a unique key held by
	// another row. Callers re-read the existing row.
	ErrConflict = errors.New("already exists")
)

// Store is the persistence surface the pipeline depends on. Every method is
// its own unit of work; no transaction spans calls.
type Store interface {
	CompanyByDomain(ctx context.Context, domain string) (model.Company, error)
	Company(ctx context.Context, id string) (model.Company, error)
	Companies(ctx context.Context) ([]model.Company, error)
	// InsertCompany fills in ID and CreatedAt when empty.
	InsertCompany(ctx context.Context, c *model.Company) error
	// InsertPostingIfNew reports false when the URL is already stored.
	InsertPostingIfNew(ctx context.Context, p *model.JobPosting) (bool, error)
	UnscoredPostings(ctx context.Context) ([]model.ScoredPosting, error)
	// SetScores writes all scores in one transaction and never overwrites a
	// score that is already set. It returns the number of rows updated.
	SetScores(ctx context.Context, scores map[string]float64) (int, error)
	AboveThreshold(ctx context.Context, threshold float64) ([]model.ScoredPosting, error)
	UpsertCompanyEmbedding(ctx context.Context, companyID string, vec []float32) error
	Close() error
}

// dateLayout is the stored form of posting_date.
const dateLayout = "2006-01-02"

// prepareCompany assigns identity fields before insert.
func prepareCompany(c *model.Company) error {
	if c.Domain == "" {
		return errors.New("company domain is required")
	}
	if c.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate company id: %w", err)
		}
		c.ID = id.String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}

// preparePosting assigns identity fields and defaults before insert.
func preparePosting(p *model.JobPosting) error {
	if p.CompanyID == "" {
		return errors.New("posting company id is required")
	}
	if p.URL == "" {
		return errors.New("posting url is required")
	}
	if p.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate posting id: %w", err)
		}
		p.ID = id.String()
	}
	now := time.Now().UTC()
	if p.PostingDate.IsZero() {
		p.PostingDate = now
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	return nil
}
