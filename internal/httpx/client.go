package httpx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 3
	defaultBackoffBase = time.Second
	userAgent          = "snp-bioinfo-service/1.0"
)

// retryableStatuses trigger exponential backoff instead of immediate failure.
var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Limiter caps in-flight requests to one named upstream. A single Limiter is
// shared by every caller that talks to that upstream, so alignment and
// annotation traffic contend for the same permits.
type Limiter struct {
	name string
	sem  *semaphore.Weighted
}

// NewLimiter builds a permit pool of the given size (minimum 1).
func NewLimiter(name string, maxConcurrent int64) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Limiter{name: name, sem: semaphore.NewWeighted(maxConcurrent)}
}

// Name identifies the upstream the pool belongs to.
func (l *Limiter) Name() string { return l.name }

func (l *Limiter) acquire(ctx context.Context) error { return l.sem.Acquire(ctx, 1) }

func (l *Limiter) release() { l.sem.Release(1) }

// Limiters groups the per-upstream permit pools constructed once at startup.
type Limiters struct {
	NCBI    *Limiter
	Ensembl *Limiter
}

// NewLimiters builds the process-wide permit pools.
func NewLimiters(ncbi, ensembl int64) *Limiters {
	return &Limiters{
		NCBI:    NewLimiter("ncbi", ncbi),
		Ensembl: NewLimiter("ensembl", ensembl),
	}
}

// Response is the fully read outcome of a successful request.
type Response struct {
	StatusCode int
	Body       []byte
}

// Options tunes the retry policy and transport timeout.
type Options struct {
	MaxRetries         int
	BackoffBase        time.Duration
	Timeout            time.Duration
	DefaultConcurrency int64
}

// Client executes HTTP requests with per-upstream concurrency permits and
// exponential-backoff retry. One Client is constructed at startup and shared
// by every upstream adapter.
type Client struct {
	http           *http.Client
	maxRetries     int
	backoffBase    time.Duration
	defaultLimiter *Limiter
	sleep          func(ctx context.Context, d time.Duration) error
	logger         *slog.Logger
}

// NewClient builds the shared request executor.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.DefaultConcurrency <= 0 {
		opts.DefaultConcurrency = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:           &http.Client{Timeout: opts.Timeout},
		maxRetries:     opts.MaxRetries,
		backoffBase:    opts.BackoffBase,
		defaultLimiter: NewLimiter("default", opts.DefaultConcurrency),
		sleep:          sleepContext,
		logger:         logger,
	}
}

// Get issues a GET with query parameters and optional extra headers.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, headers http.Header, limiter *Limiter) (*Response, error) {
	build := func() (*http.Request, error) {
		target := rawURL
		if len(params) > 0 {
			target = rawURL + "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		for key, values := range headers {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
		return req, nil
	}
	return c.doWithRetry(ctx, rawURL, build, limiter)
}

// PostForm issues a form-encoded POST. The body is rebuilt per attempt so
// retries never reuse a drained reader.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, limiter *Limiter) (*Response, error) {
	payload := form.Encode()
	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}
	return c.doWithRetry(ctx, rawURL, build, limiter)
}

func (c *Client) doWithRetry(ctx context.Context, rawURL string, build func() (*http.Request, error), limiter *Limiter) (*Response, error) {
	if limiter == nil {
		limiter = c.defaultLimiter
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.attempt(ctx, build, limiter)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		status := 0
		retryable := false
		if err == nil {
			status = resp.StatusCode
			retryable = retryableStatuses[status]
		} else if isTimeout(err) {
			retryable = true
		}

		if !retryable {
			c.logger.Error("request failed",
				"url", rawURL, "upstream", limiter.Name(), "status", status, "error", err)
			return nil, &UpstreamError{URL: rawURL, Status: status, Retryable: false, Err: err}
		}
		if attempt >= c.maxRetries {
			c.logger.Error("request failed after all retries",
				"url", rawURL, "upstream", limiter.Name(), "status", status, "attempts", attempt+1)
			return nil, &UpstreamError{URL: rawURL, Status: status, Retryable: true, Err: err}
		}

		wait := c.backoff(attempt)
		c.logger.Warn("request failed, retrying",
			"url", rawURL, "upstream", limiter.Name(), "status", status,
			"attempt", attempt+1, "wait_seconds", wait.Seconds())
		if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
			return nil, &UpstreamError{URL: rawURL, Status: status, Retryable: true, Err: sleepErr}
		}
	}
}

// attempt performs one request under the limiter permit. The permit is
// released before any backoff sleep so a waiting retry never starves other
// callers of the same upstream.
func (c *Client) attempt(ctx context.Context, build func() (*http.Request, error), limiter *Limiter) (*Response, error) {
	if err := limiter.acquire(ctx); err != nil {
		return nil, err
	}
	defer limiter.release()

	req, err := build()
	if err != nil {
		return nil, err
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	return c.backoffBase * time.Duration(1<<uint(attempt))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
