package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/digest"
)

// Ensure LogNotifier implements Notifier.
var _ Notifier = (*LogNotifier)(nil)

// LogNotifier writes the digest summary and its best rows to the logger.
type LogNotifier struct {
	logger *zap.Logger
	top    int
}

// NewLogNotifier returns a notifier that logs up to topN rows.
func NewLogNotifier(logger *zap.Logger, topN int) *LogNotifier {
	return &LogNotifier{logger: logger, top: topN}
}

// NotifyDigest logs one summary line and one line per top row. It never fails.
func (n *LogNotifier) NotifyDigest(_ context.Context, d digest.Result) error {
	if !d.Created {
		return nil
	}
	n.logger.Info("digest ready",
		zap.String("path", d.Path),
		zap.Int("rows", len(d.Rows)),
		zap.Float64("threshold", d.Threshold),
	)
	for _, r := range d.Rows[:top(d, n.top)] {
		fields := []zap.Field{
			zap.String("company", r.Company.Domain),
			zap.String("title", r.Posting.Title),
			zap.String("location", r.Posting.Location),
			zap.String("url", r.Posting.URL),
		}
		if r.Posting.Score != nil {
			fields = append(fields, zap.Float64("score", *r.Posting.Score))
		}
		n.logger.Info("top posting", fields...)
	}
	return nil
}
