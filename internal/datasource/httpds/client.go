// Package httpds fetches CSV sources over HTTP(S).
//
// Each Fetch is a single GET. A transport failure or non-2xx status surfaces
// as a SourceFetchError and the caller decides what to do.
package httpds

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"hringest/internal/errs"
)

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config configures the client.
type Config struct {
	// Timeout is the whole-request timeout applied at the http.Client level.
	Timeout time.Duration

	// MaxBodyBytes caps the fetched payload. Zero means no cap.
	MaxBodyBytes int64

	// Transport is an optional custom RoundTripper.
	Transport http.RoundTripper
}

// Client wraps an http.Client with source-fetch semantics.
type Client struct {
	httpClient   *http.Client
	maxBodyBytes int64
}

// NewClient constructs a Client from Config, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Fetch GETs url and returns the full body. Transport failures and non-2xx
// statuses are returned as *errs.SourceFetchError.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, &errs.SourceFetchError{Err: errors.New("url must not be empty")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &errs.SourceFetchError{URL: url, Err: err}
	}

	body, status, err := c.get(ctx, url)
	switch {
	case err != nil:
		return nil, &errs.SourceFetchError{URL: url, Err: err}
	case status < 200 || status > 299:
		return nil, &errs.SourceFetchError{URL: url, Status: status}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, resp.StatusCode, nil
	}

	var r io.Reader = resp.Body
	if c.maxBodyBytes > 0 {
		r = io.LimitReader(resp.Body, c.maxBodyBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "read body")
	}
	if c.maxBodyBytes > 0 && int64(len(body)) > c.maxBodyBytes {
		return nil, resp.StatusCode, errors.Newf("body exceeds %d bytes", c.maxBodyBytes)
	}
	return body, resp.StatusCode, nil
}
