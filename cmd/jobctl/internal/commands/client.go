package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"landscape-job-service/internal/entity"
)

// apiClient talks to the job API with a bearer token.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base, token string) *apiClient {
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

type executeRequest struct {
	Action          string `json:"action"`
	JobID           string `json:"jobId"`
	RejectionReason string `json:"rejectionReason,omitempty"`
}

type executeResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// execute returns the decoded gate response and its HTTP status. A
// success=false body is not an error here.
func (c *apiClient) execute(ctx context.Context, req executeRequest) (*executeResponse, int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, err
	}

	var out executeResponse
	code, err := c.do(ctx, http.MethodPost, "/job-execution", bytes.NewReader(body), &out)
	if err != nil {
		return nil, code, err
	}
	return &out, code, nil
}

// listJobs returns job rows keyed by column, newest first.
func (c *apiClient) listJobs(ctx context.Context, q url.Values) ([]entity.Row, error) {
	path := "/jobs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		Jobs  []entity.Row `json:"jobs"`
		Error string       `json:"error"`
	}
	code, err := c.do(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("list jobs: HTTP %d: %s", code, out.Error)
	}
	return out.Jobs, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body io.Reader, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%s %s: HTTP %d: decode response: %w", method, path, resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}
