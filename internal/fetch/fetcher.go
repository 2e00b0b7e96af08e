// internal/fetch/fetcher.go - Pooled HTTP client with retry and streaming download
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"gocloud.dev/blob"

	"github.com/valpere/dem_to_vrt/internal"
)

// copyChunkSize is the buffer size for streaming downloads to disk.
const copyChunkSize = 1024 * 1024

// Options configures the HTTP client.
type Options struct {
	// MaxConnsPerHost caps concurrent connections to a single host.
	// Default: 10
	MaxConnsPerHost int

	// Timeout is the global per-request timeout.
	// Default: 10m
	Timeout time.Duration

	// RetryAttempts is the maximum number of retries after the first try.
	// Default: 5
	RetryAttempts int

	// RetryBackoff is the initial backoff duration.
	// Default: 500ms
	RetryBackoff time.Duration

	// RetryMaxBackoff caps the backoff duration.
	// Default: 30s
	RetryMaxBackoff time.Duration
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxConnsPerHost: 10,
		Timeout:         10 * time.Minute,
		RetryAttempts:   5,
		RetryBackoff:    500 * time.Millisecond,
		RetryMaxBackoff: 30 * time.Second,
	}
}

// Client is an HTTP client with a bounded connection pool and automatic
// retry on server errors for idempotent methods.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options. Zero-valued
// fields fall back to defaults.
func NewClient(opts Options) *Client {
	defaults := DefaultOptions()
	if opts.MaxConnsPerHost <= 0 {
		opts.MaxConnsPerHost = defaults.MaxConnsPerHost
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.RetryAttempts < 0 {
		opts.RetryAttempts = defaults.RetryAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaults.RetryBackoff
	}
	if opts.RetryMaxBackoff <= 0 {
		opts.RetryMaxBackoff = defaults.RetryMaxBackoff
	}

	transport := &http.Transport{
		MaxConnsPerHost:     opts.MaxConnsPerHost,
		MaxIdleConnsPerHost: opts.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
}

// Get performs a GET request, retrying on transport failures and 5xx
// responses with exponential backoff. The returned response may still be a
// non-success status once retries are exhausted; callers check StatusCode.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, url)
}

// Head performs a HEAD request with the same retry policy as Get.
func (c *Client) Head(ctx context.Context, url string) (*http.Response, error) {
	return c.do(ctx, http.MethodHead, url)
}

func (c *Client) do(ctx context.Context, method, url string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return nil, internal.NewError(internal.ErrorCodeFetch,
				fmt.Sprintf("build %s request for %s", method, url), err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if shouldRetry(resp.StatusCode) && attempt < c.opts.RetryAttempts {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			continue
		}
		return resp, nil
	}

	return nil, internal.NewError(internal.ErrorCodeFetch,
		fmt.Sprintf("%s %s failed after %d attempts", method, url, c.opts.RetryAttempts+1), lastErr)
}

// shouldRetry reports whether a status code warrants a retry. Client
// errors are never retried; transient server errors are.
func shouldRetry(status int) bool {
	switch status {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoff sleeps with exponential backoff and jitter, honoring ctx.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	d := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if d > c.opts.RetryMaxBackoff {
		d = c.opts.RetryMaxBackoff
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}

	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases idle connections. The client remains usable afterwards.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// StreamWrite downloads multiple URLs concurrently, streaming each body
// into the bucket under the corresponding key. A blob that already exists
// with the advertised Content-Length is skipped. The first failure is
// returned after in-flight downloads settle.
func (c *Client) StreamWrite(ctx context.Context, urls []string, bucket *blob.Bucket, keys []string) error {
	if len(urls) != len(keys) {
		return internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("got %d urls but %d destination keys", len(urls), len(keys)), nil)
	}
	if len(urls) == 0 {
		return nil
	}

	jobs := make(chan int, len(urls))
	for i := range urls {
		jobs <- i
	}
	close(jobs)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	workers := min(4, len(urls))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				mu.Lock()
				failed := firstErr != nil
				mu.Unlock()
				if failed {
					continue
				}

				if err := c.streamOne(ctx, urls[idx], bucket, keys[idx]); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	return firstErr
}

// streamOne downloads a single URL into the bucket.
func (c *Client) streamOne(ctx context.Context, url string, bucket *blob.Bucket, key string) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return internal.NewError(internal.ErrorCodeFetch,
			fmt.Sprintf("GET %s returned HTTP %d", url, resp.StatusCode), nil)
	}

	if resp.ContentLength >= 0 {
		if attrs, err := bucket.Attributes(ctx, key); err == nil && attrs.Size == resp.ContentLength {
			return nil
		}
	}

	w, err := bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return internal.NewError(internal.ErrorCodeFetch,
			fmt.Sprintf("open writer for %s", key), err)
	}
	if _, err := io.CopyBuffer(w, resp.Body, make([]byte, copyChunkSize)); err != nil {
		w.Close()
		return internal.NewError(internal.ErrorCodeFetch,
			fmt.Sprintf("stream %s to %s", url, key), err)
	}
	if err := w.Close(); err != nil {
		return internal.NewError(internal.ErrorCodeFetch,
			fmt.Sprintf("finalize %s", key), err)
	}
	return nil
}
