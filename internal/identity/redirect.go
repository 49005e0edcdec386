package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Redirector expands a short link to the URL it points at.
type Redirector interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPRedirector follows HTTP redirects one hop at a time and stops as soon
// as a hop carries an extractable identifier, so the final page is never
// fetched.
type HTTPRedirector struct {
	client       HTTPDoer
	maxRedirects int
	userAgent    string
}

// NewHTTPRedirector builds a redirector with its own client. The client does
// not follow redirects itself.
func NewHTTPRedirector(timeout time.Duration, maxRedirects int, userAgent string) *HTTPRedirector {
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return NewHTTPRedirectorWithClient(client, maxRedirects, userAgent)
}

// NewHTTPRedirectorWithClient wraps a caller-supplied client. The client
// must not follow redirects on its own.
func NewHTTPRedirectorWithClient(client HTTPDoer, maxRedirects int, userAgent string) *HTTPRedirector {
	if maxRedirects <= 0 {
		maxRedirects = 10
	}
	return &HTTPRedirector{client: client, maxRedirects: maxRedirects, userAgent: userAgent}
}

var errTooManyRedirects = errors.New("too many redirects")

// Resolve returns the last URL reached.
func (r *HTTPRedirector) Resolve(ctx context.Context, rawURL string) (string, error) {
	current := rawURL
	for hop := 0; hop < r.maxRedirects; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		if r.userAgent != "" {
			req.Header.Set("User-Agent", r.userAgent)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("follow %s: %w", current, err)
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()

		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			return current, nil
		}
		loc, err := resp.Location()
		if err != nil {
			return current, nil
		}
		current = loc.String()
		if ExtractID(current) != "" {
			return current, nil
		}
	}
	return "", fmt.Errorf("follow %s: %w", rawURL, errTooManyRedirects)
}
