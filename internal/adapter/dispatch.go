// Package adapter turns job-board payloads into normalized postings.
package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amishk599/oppradar/internal/board"
	"github.com/amishk599/oppradar/internal/fetch"
	"github.com/amishk599/oppradar/internal/model"
)

// Lister lists the postings behind a detected board.
type Lister interface {
	ListPostings(ctx context.Context, desc board.Descriptor) ([]model.Posting, error)
}

// Options configures the provider endpoints.
type Options struct {
	GreenhouseBaseURL string
	LeverBaseURL      string
}

// Dispatcher routes each board variant to its provider adapter.
type Dispatcher struct {
	greenhouse *GreenhouseAdapter
	lever      *LeverAdapter
	workday    *WorkdayAdapter
	direct     *DirectAdapter
}

var _ Lister = (*Dispatcher)(nil)

// NewDispatcher wires the adapters. API calls go through client, HTML pages
// through pages.
func NewDispatcher(opts Options, client *http.Client, pages fetch.Fetcher) *Dispatcher {
	return &Dispatcher{
		greenhouse: NewGreenhouseAdapter(opts.GreenhouseBaseURL, client),
		lever:      NewLeverAdapter(opts.LeverBaseURL, client),
		workday:    NewWorkdayAdapter(pages, client),
		direct:     NewDirectAdapter(pages),
	}
}

// ListPostings implements Lister. NotFound yields no postings; a variant
// without a handler is an error rather than a silent skip.
func (d *Dispatcher) ListPostings(ctx context.Context, desc board.Descriptor) ([]model.Posting, error) {
	switch v := desc.(type) {
	case board.Greenhouse:
		return d.greenhouse.ListPostings(ctx, v.Slug)
	case board.Lever:
		return d.lever.ListPostings(ctx, v.Slug)
	case board.Workday:
		return d.workday.ListPostings(ctx, v.Path)
	case board.Direct:
		return d.direct.ListPostings(ctx, v.URL)
	case board.NotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("no adapter for board %T", desc)
	}
}
