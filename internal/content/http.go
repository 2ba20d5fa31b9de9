package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPLoader reads lessons from the course backend's session period API.
type HTTPLoader struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPLoader(baseURL, apiKey string) *HTTPLoader {
	return &HTTPLoader{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// sessionPeriod is the response from GET /api/session_periods.
type sessionPeriod struct {
	MarkdownText string `json:"markdownText"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	Title        string `json:"title"`
}

func (l *HTTPLoader) Load(ctx context.Context, lessonID string) (Lesson, error) {
	if err := ValidateID(lessonID); err != nil {
		return Lesson{}, err
	}
	u := l.baseURL + "/api/session_periods?sessionPeriodId=" + url.QueryEscape(lessonID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Lesson{}, fmt.Errorf("create request: %w", err)
	}
	if l.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return Lesson{}, fmt.Errorf("get lesson: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return Lesson{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Lesson{}, fmt.Errorf("get lesson %s: status %d: %s", lessonID, resp.StatusCode, string(respBody))
	}

	var sp sessionPeriod
	if err := json.NewDecoder(resp.Body).Decode(&sp); err != nil {
		return Lesson{}, fmt.Errorf("decode lesson: %w", err)
	}
	return Lesson{
		ID:        lessonID,
		Title:     sp.Title,
		Text:      sp.MarkdownText,
		StartDate: sp.StartDate,
		EndDate:   sp.EndDate,
	}, nil
}
