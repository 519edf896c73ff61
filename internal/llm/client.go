package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/provenance-radar/internal/util"
)

// maxErrorBody bounds how much of a failed response is kept in the error
const maxErrorBody = 512

// StatusError is a non-2xx reply from a generation endpoint
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Code, e.Message)
}

// jsonClient talks to a JSON-over-HTTP generation endpoint. Providers that
// have no SDK supply their headers and a decoder for their error envelope.
type jsonClient struct {
	baseURL   string
	http      *http.Client
	headers   map[string]string
	errorText func(body []byte) string
}

func newJSONClient(config Config, defaultURL string, defaultTimeout time.Duration, headers map[string]string, errorText func([]byte) string) *jsonClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultURL
	}
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &jsonClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: util.NewTransport(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
		headers:   headers,
		errorText: errorText,
	}
}

// post sends in as JSON to path and decodes the reply into out
func (c *jsonClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out)
}

// get fetches path; out may be nil when only the status matters
func (c *jsonClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *jsonClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := ""
		if c.errorText != nil {
			msg = c.errorText(raw)
		}
		if msg == "" {
			msg = truncateRunes(strings.TrimSpace(string(raw)), maxErrorBody)
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
