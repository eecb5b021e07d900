package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/adapter"
	"github.com/amishk599/oppradar/internal/board"
	"github.com/amishk599/oppradar/internal/model"
)

// maxBackoff caps both computed delays and server-sent Retry-After values so
// one slow board cannot eat a whole harvest task's budget.
const maxBackoff = 30 * time.Second

// Lister retries transient board failures with exponential backoff and
// jitter before giving up.
type Lister struct {
	inner      adapter.Lister
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

var _ adapter.Lister = (*Lister)(nil)

// NewLister wraps inner. maxRetries counts additional attempts after the first
// failure; baseDelay doubles on each retry.
func NewLister(inner adapter.Lister, maxRetries int, baseDelay time.Duration, logger *zap.Logger) *Lister {
	return &Lister{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// ListPostings implements adapter.Lister.
func (l *Lister) ListPostings(ctx context.Context, desc board.Descriptor) ([]model.Posting, error) {
	postings, err := l.inner.ListPostings(ctx, desc)
	if err == nil || !isRetryable(err) {
		return postings, err
	}

	lastErr := err
	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		delay := l.backoffDelay(attempt, lastErr)

		l.logger.Warn("retrying after transient error",
			zap.String("board", board.Describe(desc)),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", l.maxRetries),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		postings, err = l.inner.ListPostings(ctx, desc)
		if err == nil {
			return postings, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// backoffDelay is baseDelay * 2^(attempt-1) with ±30% jitter, unless the
// server sent a Retry-After.
func (l *Lister) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return min(httpErr.RetryAfter, maxBackoff)
	}

	delay := l.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
	return min(delay, maxBackoff)
}

// isRetryable reports whether err is a transient failure: 429, 5xx, or a
// network-level error. Context errors and other 4xx are final.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Transient()
	}
	return true
}
