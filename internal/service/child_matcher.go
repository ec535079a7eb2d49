package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MatchRequest is the payload sent to the external child matcher.
type MatchRequest struct {
	RunID             string   `json:"run_id"`
	Batch             string   `json:"batch"`
	FamilyIDs         []string `json:"family_ids"`
	AvailableStudents int      `json:"available_students"`
}

// MatchResult is the matcher's answer. Placement is opaque to this service.
type MatchResult struct {
	AssignedFamilies int `json:"assigned_families"`
}

// ChildMatcher distributes unplaced students of a batch across families.
type ChildMatcher interface {
	Match(ctx context.Context, req MatchRequest) (*MatchResult, error)
}

// HTTPChildMatcher calls the matcher over HTTP with a JSON body.
type HTTPChildMatcher struct {
	client *http.Client
	url    string
}

// NewHTTPChildMatcher builds a matcher client for url.
func NewHTTPChildMatcher(url string, timeout time.Duration) *HTTPChildMatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPChildMatcher{client: &http.Client{Timeout: timeout}, url: url}
}

// Match posts req and decodes the result. Non 2xx answers are errors.
func (m *HTTPChildMatcher) Match(ctx context.Context, req MatchRequest) (*MatchResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode match request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build match request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call matcher: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read matcher response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("matcher returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	var result MatchResult
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decode matcher response: %w", err)
		}
	}
	return &result, nil
}
