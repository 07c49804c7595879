package vectorsearch

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

	"kasal/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
)

const (
	indexesPath = "/api/2.0/vector-search/indexes"

	// Per-request timeout, independent of any polling budget. A stalled
	// call must not consume a caller's whole poll window.
	requestTimeout = 30 * time.Second
)

// Client performs single HTTP round trips against the Databricks Vector
// Search control plane. It never retries and never returns a Go error for
// an ordinary remote failure: those are captured in the result envelope.
// Go errors are reserved for programmer misuse (empty index name,
// unencodable payload).
type Client struct {
	cfg    *config.Config
	http   *http.Client
	tokens TokenSource

	// delegated per-call token, set via WithUserToken
	userToken string
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	// stored-credential source is optional
	tokens, _ := do.Invoke[TokenSource](di)

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		tokens: tokens,
	}, nil
}

func (c *Client) baseURL() (string, error) {
	base := strings.TrimRight(c.cfg.Databricks.WorkspaceURL, "/")
	if base == "" {
		return "", oops.Errorf("Databricks workspace URL is not configured: set databricks.workspace_url or the DATABRICKS_HOST environment variable")
	}
	return base, nil
}

type roundTripResult struct {
	status int
	body   []byte
}

func (r *roundTripResult) is(statuses ...int) bool {
	for _, s := range statuses {
		if r.status == s {
			return true
		}
	}
	return false
}

// roundTrip performs exactly one HTTP call. The returned error covers
// configuration and transport failures only, HTTP status interpretation is
// up to the operation.
func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, payload any) (*roundTripResult, error) {
	base, err := c.baseURL()
	if err != nil {
		return nil, err
	}

	token, err := c.resolveToken(ctx)
	if err != nil {
		return nil, err
	}

	fullURL := base + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &roundTripResult{status: resp.StatusCode, body: data}, nil
}

// remoteMessage extracts a human-readable error from a non-2xx body.
func remoteMessage(rt *roundTripResult) string {
	var parsed struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(rt.body, &parsed); err == nil && parsed.Message != "" {
		if parsed.ErrorCode != "" {
			return fmt.Sprintf("%s: %s", parsed.ErrorCode, parsed.Message)
		}
		return parsed.Message
	}

	text := strings.TrimSpace(string(rt.body))
	if text == "" {
		return fmt.Sprintf("HTTP %d", rt.status)
	}
	return fmt.Sprintf("HTTP %d: %s", rt.status, text)
}

// indexPath builds the path segment for a dot-qualified index name.
// Special characters must round-trip exactly, so the name is percent-encoded.
func indexPath(name string) string {
	return indexesPath + "/" + url.PathEscape(name)
}
