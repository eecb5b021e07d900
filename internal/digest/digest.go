// Package digest writes the dated CSV of high-scoring postings.
package digest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/model"
)

// Defaults for Emitter settings left at zero.
const (
	DefaultDir       = "digests"
	DefaultThreshold = 70.0
)

// Header is the CSV column order.
var Header = []string{"title", "company", "domain", "location", "remote", "score", "url", "posting_date"}

// Store is the persistence the emitter needs.
type Store interface {
	AboveThreshold(ctx context.Context, threshold float64) ([]model.ScoredPosting, error)
}

// Result describes one Emit call. Rows is empty and Created false when
// nothing cleared the threshold.
type Result struct {
	Created   bool
	Path      string
	Day       time.Time
	Threshold float64
	Rows      []model.ScoredPosting
}

// Emitter writes digests into a directory.
type Emitter struct {
	store     Store
	dir       string
	threshold float64
	logger    *zap.Logger
}

// NewEmitter returns an emitter. An empty dir uses DefaultDir.
func NewEmitter(store Store, dir string, threshold float64, logger *zap.Logger) *Emitter {
	if dir == "" {
		dir = DefaultDir
	}
	return &Emitter{store: store, dir: dir, threshold: threshold, logger: logger}
}

// FileName is the digest file name for day.
func FileName(day time.Time) string {
	return "digest_" + day.Format("2006-01-02") + ".csv"
}

// Emit writes every posting scoring at least the threshold, best first, to
// {dir}/digest_{day}.csv. An existing file for the same day is replaced.
func (e *Emitter) Emit(ctx context.Context, day time.Time) (Result, error) {
	res := Result{Day: day, Threshold: e.threshold}

	rows, err := e.store.AboveThreshold(ctx, e.threshold)
	if err != nil {
		return res, fmt.Errorf("loading digest rows: %w", err)
	}
	if len(rows) == 0 {
		e.logger.Info("no postings above threshold", zap.Float64("threshold", e.threshold))
		return res, nil
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return res, fmt.Errorf("creating digest dir: %w", err)
	}
	path := filepath.Join(e.dir, FileName(day))
	if err := writeCSV(path, rows); err != nil {
		return res, err
	}

	res.Created = true
	res.Path = path
	res.Rows = rows
	e.logger.Info("digest written", zap.String("path", path), zap.Int("rows", len(rows)))
	return res, nil
}

func writeCSV(path string, rows []model.ScoredPosting) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".digest-*.csv")
	if err != nil {
		return fmt.Errorf("creating digest file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		tmp.Close()
		return fmt.Errorf("writing digest header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write(Record(r)); err != nil {
			tmp.Close()
			return fmt.Errorf("writing digest row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing digest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing digest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("moving digest into place: %w", err)
	}
	return nil
}

// Record renders one posting in Header order.
func Record(r model.ScoredPosting) []string {
	score := ""
	if r.Posting.Score != nil {
		score = strconv.FormatFloat(*r.Posting.Score, 'f', 2, 64)
	}
	return []string{
		r.Posting.Title,
		r.Company.Name,
		r.Company.Domain,
		r.Posting.Location,
		strconv.FormatBool(r.Posting.Remote),
		score,
		r.Posting.URL,
		r.Posting.PostingDate.Format("2006-01-02"),
	}
}
