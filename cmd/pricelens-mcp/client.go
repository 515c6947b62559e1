package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/use-agent/pricelens/models"
)

// apiError is a non-2xx answer from the pricelens API.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s (HTTP %d)", e.Code, e.Message, e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// client talks to a running pricelens API.
type client struct {
	baseURL   string
	apiKey    string
	http      *http.Client
	pollEvery time.Duration
}

func newClient(baseURL, apiKey string) *client {
	return &client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		http:      &http.Client{Timeout: 60 * time.Second},
		pollEvery: 2 * time.Second,
	}
}

func (c *client) createRun(ctx context.Context, req models.CreateRunRequest) (*models.CreateRunResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	var resp models.CreateRunResponse
	if err := c.do(ctx, http.MethodPost, "/api/runs", bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) runStatus(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id)+"/status", nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// waitForRun polls the run status until the run is terminal or ctx is done.
func (c *client) waitForRun(ctx context.Context, id string) (*models.Run, error) {
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for {
		run, err := c.runStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		if run.Status.Terminal() {
			return run, nil
		}
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
	}
}

// download fetches the report PDF and the filename the server suggests.
func (c *client) download(ctx context.Context, id string) ([]byte, string, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id)+"/download", nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	doc, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read document: %w", err)
	}
	filename := "pricing-report.pdf"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return doc, filename, nil
}

func (c *client) summary(ctx context.Context, userID string) (*models.AnalyticsSummary, error) {
	path := "/api/analytics/summary"
	if userID != "" {
		path += "?" + url.Values{"user_id": {userID}}.Encode()
	}
	var s models.AnalyticsSummary
	if err := c.do(ctx, http.MethodGet, path, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *client) listRuns(ctx context.Context, userID string, limit int) ([]models.AnalyticsEvent, error) {
	q := url.Values{}
	if userID != "" {
		q.Set("user_id", userID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/analytics/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp models.ListRunsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// do sends a request and decodes a JSON answer into out.
func (c *client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// send performs the request and turns non-2xx answers into *apiError.
func (c *client) send(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &apiError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var er models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil && er.Error != "" {
		apiErr.Code = er.Code
		apiErr.Message = er.Error
	}
	return nil, apiErr
}

// isNotFound reports whether err is a 404 from the API.
func isNotFound(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
