// Package herald provides the HTTP client for the upstream Herald pages,
// abstracted behind an interface for testability.
package herald

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/Golani45/uthgard/internal/metrics"
)

const (
	userAgent = "UthgardHeraldBot/1.0"

	// cacheBusterWindow is the granularity of the cache-defeating query
	// parameter: two fetches within the same 30s window share a URL.
	cacheBusterWindow = 30 * time.Second

	// defaultScanGap spaces sequential player-profile fetches.
	defaultScanGap = 300 * time.Millisecond
)

// Client defines the interface for fetching Herald pages.
type Client interface {
	// FetchWarmap retrieves the warmap HTML document.
	FetchWarmap(ctx context.Context) ([]byte, error)
	// FetchPlayerPage retrieves one player profile, pacing sequential calls.
	FetchPlayerPage(ctx context.Context, url string) ([]byte, error)
}

// HTTPClient implements Client against the live Herald site.
type HTTPClient struct {
	warmapURL string
	client    *http.Client
	limiter   *FetchLimiter
	scan      *rate.Limiter
	nowFunc   func() time.Time
}

// Option configures the HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.client = hc
	}
}

// WithFetchLimiter injects the daily fetch quota. When set, every
// FetchWarmap call goes through Allow() first.
func WithFetchLimiter(l *FetchLimiter) Option {
	return func(c *HTTPClient) {
		c.limiter = l
	}
}

// WithScanGap overrides the pacing between player-profile fetches.
func WithScanGap(gap time.Duration) Option {
	return func(c *HTTPClient) {
		c.scan = rate.NewLimiter(rate.Every(gap), 1)
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) Option {
	return func(c *HTTPClient) {
		c.nowFunc = f
	}
}

// NewHTTPClient creates a Herald client for the given warmap URL.
func NewHTTPClient(warmapURL string, timeout time.Duration, opts ...Option) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &HTTPClient{
		warmapURL: warmapURL,
		client:    &http.Client{Timeout: timeout},
		scan:      rate.NewLimiter(rate.Every(defaultScanGap), 1),
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchWarmap implements Client. Non-2xx responses are fatal for the tick.
func (c *HTTPClient) FetchWarmap(ctx context.Context) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Allow(); err != nil {
			if errors.Is(err, ErrDailyLimitReached) {
				metrics.FetchDailyLimitHits.Inc()
			}
			return nil, fmt.Errorf("fetch quota: %w", err)
		}
		metrics.FetchDailyUsage.Set(float64(c.limiter.DailyCount()))
	}

	start := c.nowFunc()
	defer func() {
		metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}()
	metrics.FetchesTotal.Inc()

	buster := strconv.FormatInt(c.nowFunc().Unix()/int64(cacheBusterWindow.Seconds()), 10)
	u := c.warmapURL
	sep := "?"
	for _, r := range u {
		if r == '?' {
			sep = "&"
			break
		}
	}
	u += sep + "_=" + buster

	return c.get(ctx, u)
}

// FetchPlayerPage implements Client.
func (c *HTTPClient) FetchPlayerPage(ctx context.Context, url string) ([]byte, error) {
	if err := c.scan.Wait(ctx); err != nil {
		return nil, fmt.Errorf("scan pacing: %w", err)
	}
	return c.get(ctx, url)
}

func (c *HTTPClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing herald request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("herald returned status %d", resp.StatusCode)
	}

	return body, nil
}
