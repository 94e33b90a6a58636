package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// FetchError is returned when a URL could not be fetched. Terminal errors
// must not be retried; everything else exhausted its retry budget already.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Terminal   bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %v after %d attempt(s)", e.URL, e.Err, e.Attempts)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetcherConfig controls HTTPFetcher behavior.
type FetcherConfig struct {
	// Timeout bounds each individual request.
	Timeout time.Duration
	// Delay is the politeness throttle applied before every attempt,
	// including retries.
	Delay time.Duration
	// MaxRetries is the total attempt budget per URL.
	MaxRetries int
	// BackoffBase b yields a wait of b^attempt backoff units between
	// attempts.
	BackoffBase float64
	// BackoffUnit scales the backoff wait; defaults to one second.
	BackoffUnit time.Duration
	UserAgent   string
}

func (c *FetcherConfig) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2
	}
	if c.BackoffUnit <= 0 {
		c.BackoffUnit = time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "holocron/1.0"
	}
}

// HTTPFetcher performs a single GET with timeout, politeness delay, retry,
// and exponential backoff. A non-2xx status or network-level failure is
// retryable until attempts are exhausted; a body that is not valid JSON is
// terminal immediately.
type HTTPFetcher struct {
	client *http.Client
	cfg    FetcherConfig
	logger *zap.Logger
}

// NewHTTPFetcher constructs a fetcher with its own http.Client.
func NewHTTPFetcher(cfg FetcherConfig, logger *zap.Logger) *HTTPFetcher {
	cfg.applyDefaults()
	return &HTTPFetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

// Fetch retrieves url, returning the raw JSON body on success.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	var lastStatus int

	for attempt := 0; attempt < f.cfg.MaxRetries; attempt++ {
		if err := pause(ctx, f.cfg.Delay); err != nil {
			return nil, err
		}

		body, status, err := f.attempt(ctx, url)
		if err == nil {
			if !json.Valid(body) {
				return nil, &FetchError{URL: url, StatusCode: status, Attempts: attempt + 1, Terminal: true, Err: fmt.Errorf("response is not valid JSON")}
			}
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		lastStatus = status

		if attempt < f.cfg.MaxRetries-1 {
			wait := time.Duration(math.Pow(f.cfg.BackoffBase, float64(attempt)) * float64(f.cfg.BackoffUnit))
			f.logger.Warn("fetch attempt failed, backing off",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
			if err := pause(ctx, wait); err != nil {
				return nil, err
			}
		}
	}

	return nil, &FetchError{URL: url, StatusCode: lastStatus, Attempts: f.cfg.MaxRetries, Terminal: true, Err: lastErr}
}

func (f *HTTPFetcher) attempt(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// pause sleeps for delay unless the context finishes first.
func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
