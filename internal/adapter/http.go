package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/amishk599/oppradar/internal/fetch"
	"github.com/amishk599/oppradar/internal/model"
)

// maxPayloadBytes bounds a single board API response.
const maxPayloadBytes = 8 << 20

// doRequest sends req and returns the body of a 2xx response. Other statuses
// become *model.HTTPError so the retry decorator can classify them.
func doRequest(client *http.Client, req *http.Request) ([]byte, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", fetch.DefaultUserAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &model.HTTPError{
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			RetryAfter: fetch.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func getBody(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return doRequest(client, req)
}
