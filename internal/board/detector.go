package board

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/fetch"
)

// DefaultPaths are probed in order on every domain.
var DefaultPaths = []string{
	"/careers",
	"/careers/",
	"/jobs",
	"/jobs/",
	"/about/careers",
	"/company/careers",
	"/join-us",
	"/work-with-us",
	"/team",
	"/talent",
	"/apply",
	"/positions",
	"/openings",
	"/opportunities",
}

// Provider signatures, checked in this order.
var (
	greenhouseRe = regexp.MustCompile(`boards\.greenhouse\.io/([\w-]+)`)
	leverRe      = regexp.MustCompile(`jobs\.lever\.co/([\w-]+)`)
	workdayRe    = regexp.MustCompile(`([\w.-]+\.myworkdayjobs\.com/[\w-]+(?:/[\w-]+)?)`)
)

// greenhouse embed URLs carry the token as a query param rather than a path.
// Covers job_board, job_app and their /js script variants.
var greenhouseEmbedRe = regexp.MustCompile(`boards\.greenhouse\.io/embed/\w+(?:/js)?\?for=([\w-]+)`)

// Match reports the first provider signature found in body. Greenhouse takes
// precedence over Lever, and Lever over Workday.
func Match(body string) (Descriptor, bool) {
	if m := greenhouseEmbedRe.FindStringSubmatch(body); m != nil {
		return Greenhouse{Slug: m[1]}, true
	}
	for _, m := range greenhouseRe.FindAllStringSubmatch(body, -1) {
		if m[1] != "embed" {
			return Greenhouse{Slug: m[1]}, true
		}
	}
	if m := leverRe.FindStringSubmatch(body); m != nil {
		return Lever{Slug: m[1]}, true
	}
	if m := workdayRe.FindStringSubmatch(body); m != nil {
		return Workday{Path: m[1]}, true
	}
	return nil, false
}

// Detector probes a domain's candidate careers paths for a known board.
type Detector struct {
	fetcher fetch.Fetcher
	paths   []string
	logger  *zap.Logger
}

// NewDetector returns a detector. An empty paths list uses DefaultPaths.
func NewDetector(fetcher fetch.Fetcher, paths []string, logger *zap.Logger) *Detector {
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	return &Detector{fetcher: fetcher, paths: paths, logger: logger}
}

// Detect walks the candidate paths in order and returns the first provider
// signature found. Unreachable paths are skipped. When nothing matches the
// result is Direct for the domain root, so a best-effort scrape still runs.
// Detect never fails; a cancelled context ends probing early.
func (d *Detector) Detect(ctx context.Context, domain string) Descriptor {
	domain = strings.TrimSpace(strings.ToLower(domain))
	if domain == "" {
		return NotFound{}
	}

	for _, path := range d.paths {
		if ctx.Err() != nil {
			break
		}
		url := "https://" + domain + path
		page, err := d.fetcher.Fetch(ctx, url)
		if err != nil {
			d.logger.Debug("careers probe failed", zap.String("url", url), zap.Error(err))
			continue
		}
		if desc, ok := Match(string(page.Body)); ok {
			d.logger.Debug("board detected",
				zap.String("domain", domain),
				zap.String("path", path),
				zap.String("board", Describe(desc)),
			)
			return desc
		}
	}

	return Direct{URL: "https://" + domain}
}
