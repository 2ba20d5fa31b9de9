package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPSink posts events as JSON to a progress endpoint. It sends once and
// does not read the response body.
type HTTPSink struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPSink targets {baseURL}/api/progress. A zero timeout leaves requests
// unbounded.
func NewHTTPSink(baseURL, apiKey string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/progress",
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Deliver POSTs ev as JSON. Any non-2xx status is an error; the response
// body is discarded.
func (s *HTTPSink) Deliver(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post progress: %w", err)
	}
	// Drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("post progress: status %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (s *HTTPSink) Close() {
	s.httpClient.CloseIdleConnections()
}
