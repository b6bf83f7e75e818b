// Package fetch retrieves pages for the scraper: a pooled HTTP client with
// bounded retries and politeness pauses, and a headless browser variant for
// pages that only render client-side.
package fetch

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"
)

// Fetcher returns the body of a page. Implementations must be safe for
// concurrent use by all workers.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPError carries the status of a non-2xx response.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch: GET %s: status %d", e.URL, e.StatusCode)
}

// Options configures both fetchers.
type Options struct {
	UserAgent      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// MaxRetries is the number of attempts after the first one.
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// A pause of PolitenessDelay plus up to PolitenessJitter follows every
	// successful fetch.
	PolitenessDelay  time.Duration
	PolitenessJitter time.Duration
	// MaxConnsPerHost sizes the idle connection pool; usually the worker count.
	MaxConnsPerHost int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		UserAgent:        "Mozilla/5.0",
		ConnectTimeout:   5 * time.Second,
		ReadTimeout:      10 * time.Second,
		MaxRetries:       3,
		RetryBaseDelay:   500 * time.Millisecond,
		RetryMaxDelay:    10 * time.Second,
		PolitenessDelay:  100 * time.Millisecond,
		PolitenessJitter: 300 * time.Millisecond,
		MaxConnsPerHost:  24,
	}
}

// retryableStatuses are the overload/unavailable classes worth another try.
var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// IsRetryableStatus reports whether a response status is retried.
func IsRetryableStatus(code int) bool {
	return retryableStatuses[code]
}

// politePause sleeps for delay plus a random share of jitter, returning
// early when ctx is done.
func politePause(ctx context.Context, delay, jitter time.Duration) {
	d := delay
	if jitter > 0 {
		d += rand.N(jitter)
	}
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
