package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPFetcher posts fetch inputs to a resource API.
//
// Request body:  {"requests": {"<id>": FetchInput}}
// Response body: {"results":  {"<id>": FetchResult}}
type HTTPFetcher struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher for url.
func NewHTTPFetcher(url string, headers map[string]string, timeout time.Duration) (*HTTPFetcher, error) {
	if url == "" {
		return nil, fmt.Errorf("resource api url is required")
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPFetcher{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type httpFetchRequest struct {
	Requests map[string]FetchInput `json:"requests"`
}

type httpFetchResponse struct {
	Results map[string]FetchResult `json:"results"`
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, inputs map[string]FetchInput) (map[string]FetchResult, error) {
	body, err := json.Marshal(httpFetchRequest{Requests: inputs})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resource api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("resource api returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out httpFetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode resource api response: %w", err)
	}
	return out.Results, nil
}
