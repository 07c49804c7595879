package vectorsearch

import (
	"context"
	"log/slog"
	"os"

	"github.com/samber/oops"
)

// TokenSource resolves a stored Databricks credential, typically decrypted
// from the application database. Optional collaborator.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// resolveToken picks a bearer token by priority: delegated per-call user
// token, then the stored credential, then config (which already falls back
// to the DATABRICKS_TOKEN env var).
func (c *Client) resolveToken(ctx context.Context) (string, error) {
	if c.userToken != "" {
		return c.userToken, nil
	}

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err == nil && token != "" {
			return token, nil
		}
		if err != nil {
			slog.Warn("Stored credential lookup failed, falling back", "error", err)
		}
	}

	if c.cfg.Databricks.Token != "" {
		return c.cfg.Databricks.Token, nil
	}

	if token := os.Getenv("DATABRICKS_TOKEN"); token != "" {
		return token, nil
	}

	return "", oops.Errorf("no Databricks token available: configure databricks.token or set the DATABRICKS_TOKEN environment variable")
}

// WithUserToken returns a shallow copy that authenticates every call with
// the delegated token. The copy shares the underlying HTTP client.
func (c *Client) WithUserToken(token string) *Client {
	clone := *c
	clone.userToken = token
	return &clone
}
