// Package sourcing produces candidate company domains from a seed list and
// web search results.
package sourcing

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/model"
)

// SeedQuery labels candidates that came from the seeds file.
const SeedQuery = "seed"

var domainRe = regexp.MustCompile(`^https?://(?:www\.)?([^/]+)/?`)

// ExtractDomain returns the lowercased host of link, without a leading www.
func ExtractDomain(link string) (string, bool) {
	m := domainRe.FindStringSubmatch(strings.TrimSpace(link))
	if m == nil || m[1] == "" {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// Result is one organic search hit.
type Result struct {
	Link    string
	Snippet string
}

// Searcher runs a web search query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Sourcer merges seed domains with search results.
type Sourcer struct {
	seedsFile    string
	keywordsFile string
	searcher     Searcher // nil disables search
	logger       *zap.Logger
}

// New creates a sourcer. searcher may be nil when no search key is set.
func New(seedsFile, keywordsFile string, searcher Searcher, logger *zap.Logger) *Sourcer {
	return &Sourcer{
		seedsFile:    seedsFile,
		keywordsFile: keywordsFile,
		searcher:     searcher,
		logger:       logger,
	}
}

// Source returns seed candidates first, then search candidates, deduplicated
// by domain. A failed query is logged and skipped. Missing input files are
// treated as empty.
func (s *Sourcer) Source(ctx context.Context) ([]model.Candidate, error) {
	seeds, err := ReadColumn(s.seedsFile, "domain")
	if err != nil {
		return nil, fmt.Errorf("reading seeds: %w", err)
	}

	seen := make(map[string]struct{})
	var out []model.Candidate
	add := func(c model.Candidate) {
		if _, ok := seen[c.Domain]; ok {
			return
		}
		seen[c.Domain] = struct{}{}
		out = append(out, c)
	}

	for _, seed := range seeds {
		domain, ok := ExtractDomain(seed)
		if !ok {
			domain = strings.ToLower(strings.TrimPrefix(seed, "www."))
		}
		add(model.Candidate{Domain: domain, Link: "https://" + domain, SourceQuery: SeedQuery})
	}
	nSeeds := len(out)

	if s.searcher == nil {
		s.logger.Warn("no search key configured, using seeds only", zap.Int("seeds", nSeeds))
		return out, nil
	}

	queries, err := ReadLines(s.keywordsFile, "query")
	if err != nil {
		return nil, fmt.Errorf("reading keywords: %w", err)
	}

	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		results, err := s.searcher.Search(ctx, q)
		if err != nil {
			s.logger.Warn("search failed", zap.String("query", q), zap.Error(err))
			continue
		}
		for _, r := range results {
			domain, ok := ExtractDomain(r.Link)
			if !ok {
				continue
			}
			add(model.Candidate{Domain: domain, Snippet: r.Snippet, Link: r.Link, SourceQuery: q})
		}
	}

	s.logger.Info("sourcing complete",
		zap.Int("seeds", nSeeds),
		zap.Int("queries", len(queries)),
		zap.Int("candidates", len(out)),
	)
	return out, nil
}

// ReadColumn reads the first column of a CSV file, skipping blank lines and a
// header row equal to header. A plain newline-delimited list is a valid
// one-column CSV. A missing file yields no values.
func ReadColumn(path, header string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var out []string
	for first := true; ; first = false {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if len(rec) == 0 {
			continue
		}
		v := strings.TrimSpace(rec[0])
		if v == "" || (first && strings.EqualFold(v, header)) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// ReadLines reads one raw value per line, trimmed, skipping blank lines and a
// first line equal to header. Quotes and commas are kept as written, so search
// syntax like "exact phrase" passes through untouched. A missing file yields
// no values.
func ReadLines(path, header string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for first := true; sc.Scan(); first = false {
		v := strings.TrimSpace(sc.Text())
		if v == "" || (first && strings.EqualFold(v, header)) {
			continue
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}
