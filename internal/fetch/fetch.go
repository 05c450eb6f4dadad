// Package fetch retrieves HTML pages over plain HTTP with bounded retries,
// a redirect cap and optional conditional revalidation against a disk cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperifyio/policygen/internal/cache"
)

// maxBodyBytes caps how much of a page is read into memory.
const maxBodyBytes = 8 << 20

// Page is a fetched document.
type Page struct {
	URL         string // final URL after redirects
	ContentType string
	Body        []byte
	FromCache   bool
}

// Client wraps http.Client with per-request timeouts and a limited retry on
// transient errors.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// PerRequestTimeout bounds each attempt.
	PerRequestTimeout time.Duration
	// Cache is consulted for conditional requests when set.
	Cache *cache.HTTPCache
	// RedirectMaxHops caps redirect following. Zero means 5.
	RedirectMaxHops int
}

// errServer marks 5xx responses as retryable.
var errServer = errors.New("server error")

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		// Copy so the redirect policy does not leak into the caller's client.
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirect
		return &base
	}
	return &http.Client{Timeout: c.PerRequestTimeout, CheckRedirect: c.checkRedirect}
}

// Get issues a GET and returns the page. 304 responses are served from the
// cache when one is configured.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	var etag, lastMod string
	if c.Cache != nil {
		if meta, err := c.Cache.LoadMeta(ctx, rawURL); err == nil && meta != nil {
			etag, lastMod = meta.ETag, meta.LastModified
		}
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		page, status, err := c.tryOnce(ctx, rawURL, etag, lastMod)
		if err == nil && status == http.StatusNotModified && c.Cache != nil {
			if body, cerr := c.Cache.LoadBody(ctx, rawURL); cerr == nil {
				page.Body = body
				page.FromCache = true
				return page.Page, nil
			}
			// Cache lost its body; refetch unconditionally.
			etag, lastMod = "", ""
			page, status, err = c.tryOnce(ctx, rawURL, "", "")
		}
		if err == nil {
			if c.Cache != nil && status == http.StatusOK {
				_ = c.Cache.Save(ctx, rawURL, page.ContentType, page.etag, page.lastMod, page.Body)
			}
			return page.Page, nil
		}
		lastErr = err
		if !isTransient(err) || i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * 200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("fetch: no attempts succeeded")
	}
	return nil, lastErr
}

type fetched struct {
	*Page
	etag    string
	lastMod string
}

func (c *Client) tryOnce(ctx context.Context, rawURL, etag, lastMod string) (fetched, int, error) {
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fetched{}, 0, fmt.Errorf("new request: %w", err)
	}
	if !isHTTPScheme(req.URL) {
		return fetched{}, 0, fmt.Errorf("unsupported URL scheme: %q", rawURL)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fetched{}, 0, err
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	out := fetched{
		Page:    &Page{URL: resp.Request.URL.String(), ContentType: ct},
		etag:    resp.Header.Get("ETag"),
		lastMod: resp.Header.Get("Last-Modified"),
	}
	switch {
	case resp.StatusCode >= 500:
		return fetched{}, resp.StatusCode, fmt.Errorf("%w: %d", errServer, resp.StatusCode)
	case resp.StatusCode == http.StatusNotModified:
		return out, resp.StatusCode, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fetched{}, resp.StatusCode, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if !isHTMLContentType(ct) {
		return fetched{}, resp.StatusCode, fmt.Errorf("unsupported content type: %s", ct)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fetched{}, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	out.Body = b
	return out, resp.StatusCode, nil
}

func isTransient(err error) bool {
	return errors.Is(err, errServer) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	if len(via) >= max {
		return errors.New("too many redirects")
	}
	if !isHTTPScheme(req.URL) {
		return errors.New("redirect to unsupported scheme")
	}
	return nil
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	// Servers that omit the header are given the benefit of the doubt.
	return ct == "" || strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
