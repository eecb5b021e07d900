package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/digest"
	"github.com/amishk599/oppradar/internal/fetch"
	"github.com/amishk599/oppradar/internal/model"
)

// Ensure SlackNotifier implements Notifier.
var _ Notifier = (*SlackNotifier)(nil)

// DefaultSlackInterval spaces consecutive webhook posts.
const DefaultSlackInterval = 500 * time.Millisecond

// SlackNotifier sends digest alerts to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	top        int
	interval   time.Duration
	logger     *zap.Logger
}

// NewSlackNotifier returns a notifier that posts a digest summary followed by
// one message per top posting.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, topN int, logger *zap.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		top:        topN,
		interval:   DefaultSlackInterval,
		logger:     logger,
	}
}

// WithInterval overrides the delay between messages.
func (s *SlackNotifier) WithInterval(d time.Duration) *SlackNotifier {
	s.interval = d
	return s
}

// NotifyDigest sends the summary and the top postings as separate Slack
// messages using Block Kit. It returns an error only if every message fails.
// Individual failures are logged.
func (s *SlackNotifier) NotifyDigest(ctx context.Context, d digest.Result) error {
	if !d.Created || len(d.Rows) == 0 {
		return nil
	}

	payloads := []slackPayload{buildSummary(d)}
	for _, r := range d.Rows[:top(d, s.top)] {
		payloads = append(payloads, buildPayload(r))
	}

	failures := 0
	for i, p := range payloads {
		if i > 0 && s.interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.interval):
			}
		}
		if err := s.sendMessage(ctx, p); err != nil {
			s.logger.Error("slack notification failed", zap.Int("message", i), zap.Error(err))
			failures++
		}
	}

	if failures == len(payloads) {
		return fmt.Errorf("all %d slack notifications failed", failures)
	}
	s.logger.Info("slack notifications complete",
		zap.Int("sent", len(payloads)-failures),
		zap.Int("failed", failures),
	)
	return nil
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.httpClient.Do(req)
}

func (s *SlackNotifier) sendMessage(ctx context.Context, payload slackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	resp, err := s.post(ctx, body)
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := fetch.ParseRetryAfter(resp.Header.Get("Retry-After"))
		if wait <= 0 {
			wait = time.Second
		}
		s.logger.Warn("slack rate limited, retrying", zap.Duration("retry_after", wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		resp2, err := s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		defer resp2.Body.Close()

		if resp2.StatusCode != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", resp2.StatusCode)
		}
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	return nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url"`
	Style string    `json:"style"`
}

// SendTestMessage sends a one-row digest to verify the integration works.
func SendTestMessage(ctx context.Context, n Notifier) error {
	now := time.Now().UTC()
	score := 99.0
	d := digest.Result{
		Created:   true,
		Path:      "digests/" + digest.FileName(now),
		Day:       now,
		Threshold: digest.DefaultThreshold,
		Rows: []model.ScoredPosting{{
			Posting: model.JobPosting{
				Title:       "Test Notification: Integration Verified",
				Location:    "Everywhere",
				URL:         "https://www.ycombinator.com/jobs",
				Remote:      true,
				Score:       &score,
				PostingDate: now,
			},
			Company: model.Company{Name: "Oppradar Test", Domain: "example.com"},
		}},
	}
	return n.NotifyDigest(ctx, d)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func buildSummary(d digest.Result) slackPayload {
	return slackPayload{Blocks: []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "📡 Opportunity digest " + d.Day.Format("2006-01-02")},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Postings:*\n" + strconv.Itoa(len(d.Rows))},
				{Type: "mrkdwn", Text: "*Threshold:*\n" + strconv.FormatFloat(d.Threshold, 'f', -1, 64)},
			},
		},
	}}
}

func buildPayload(r model.ScoredPosting) slackPayload {
	company := capitalize(r.Company.Name)
	if company == "" {
		company = r.Company.Domain
	}
	score := "n/a"
	if r.Posting.Score != nil {
		score = strconv.FormatFloat(*r.Posting.Score, 'f', 2, 64)
	}
	remote := "No"
	if r.Posting.Remote {
		remote = "Yes"
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "🚀 " + company + ": " + r.Posting.Title},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Company:*\n" + company},
				{Type: "mrkdwn", Text: "*Location:*\n" + r.Posting.Location},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Score:*\n" + score},
				{Type: "mrkdwn", Text: "*Remote:*\n" + remote},
			},
		},
		{
			Type: "actions",
			Elements: []slackElement{
				{
					Type:  "button",
					Text:  slackText{Type: "plain_text", Text: "Apply Now"},
					URL:   r.Posting.URL,
					Style: "primary",
				},
			},
		},
		{Type: "divider"},
	}
	return slackPayload{Blocks: blocks}
}
