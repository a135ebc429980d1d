package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// HeaderRequestID correlates backend logs with one submission.
const HeaderRequestID = "X-Request-ID"

// Client issues the request/response calls of the backend contract.
// It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client whose calls give up after timeout (0 = no limit).
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP wraps an existing http.Client, e.g. httptest's.
func NewClientWithHTTP(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

// Summarize calls POST /summarize with the raw link.
func (c *Client) Summarize(ctx context.Context, baseURL, requestID, rawURL string) (*SummaryResponse, error) {
	var out SummaryResponse
	if err := c.do(ctx, http.MethodPost, joinURL(baseURL, "/summarize"), requestID, SummarizeRequest{URL: rawURL}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SummarizeJob calls POST /summarize/{jobId}, the route used by the job flow.
func (c *Client) SummarizeJob(ctx context.Context, baseURL, requestID, jobID, rawURL string) (*SummaryResponse, error) {
	path := "/summarize/" + url.PathEscape(jobID)
	var out SummaryResponse
	if err := c.do(ctx, http.MethodPost, joinURL(baseURL, path), requestID, SummarizeRequest{URL: rawURL}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat calls the diagnostic POST /chat route.
func (c *Client) Chat(ctx context.Context, baseURL, message string) (string, error) {
	var out ChatResponse
	if err := c.do(ctx, http.MethodPost, joinURL(baseURL, "/chat"), "", ChatRequest{Message: message}, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

func (c *Client) Health(ctx context.Context, baseURL string) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, joinURL(baseURL, "/health"), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Version(ctx context.Context, baseURL string) (*Version, error) {
	var out Version
	if err := c.do(ctx, http.MethodGet, joinURL(baseURL, "/version"), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, requestID string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID != "" {
		req.Header.Set(HeaderRequestID, requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return fmt.Errorf("request timed out: %w", err)
		}
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Detail:     parseDetail(responseBody),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// parseDetail extracts {"detail": ...}. FastAPI validation errors carry a
// list instead of a string; those are returned as raw JSON.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}
	if string(envelope.Detail) == "null" {
		return ""
	}
	return string(envelope.Detail)
}

func joinURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}
