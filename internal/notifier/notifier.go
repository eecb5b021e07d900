// Package notifier announces a finished digest.
package notifier

import (
	"context"

	"github.com/amishk599/oppradar/internal/digest"
)

// DefaultTop is how many digest rows a notifier reports.
const DefaultTop = 10

// Notifier reports a digest. Implementations skip digests that were not
// created.
type Notifier interface {
	NotifyDigest(ctx context.Context, d digest.Result) error
}

func top(d digest.Result, n int) int {
	if n <= 0 {
		n = DefaultTop
	}
	return min(n, len(d.Rows))
}
