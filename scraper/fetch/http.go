package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"realestate-scraper/utils"
)

// HTTPFetcher performs GET requests over a shared, pooled client.
type HTTPFetcher struct {
	client *http.Client
	opts   Options
	retry  *utils.RetryConfig
	logger *utils.Logger
}

// NewHTTPFetcher builds a fetcher with separate connect and read timeouts.
func NewHTTPFetcher(opts Options, logger *utils.Logger) *HTTPFetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   opts.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	client := &http.Client{Transport: transport}
	if opts.ConnectTimeout > 0 && opts.ReadTimeout > 0 {
		// Ceiling for one attempt, body read included.
		client.Timeout = opts.ConnectTimeout + opts.ReadTimeout
	}

	return &HTTPFetcher{
		client: client,
		opts:   opts,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries + 1,
			BaseDelay:   opts.RetryBaseDelay,
			MaxDelay:    opts.RetryMaxDelay,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Fetch returns the page body, retrying connection failures and transient
// statuses with exponential backoff. A successful fetch is followed by the
// politeness pause.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := f.retry.Do(ctx, "GET "+url, func() error {
		b, err := f.get(ctx, url)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	politePause(ctx, f.opts.PolitenessDelay, f.opts.PolitenessJitter)
	return body, nil
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, utils.Permanent(err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || !isRetryableNetErr(err) {
			return nil, utils.Permanent(err)
		}
		return nil, err
	}

	body, readErr := readAndClose(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := &HTTPError{URL: url, StatusCode: resp.StatusCode}
		if IsRetryableStatus(resp.StatusCode) {
			return nil, herr
		}
		return nil, utils.Permanent(herr)
	}
	if readErr != nil {
		if ctx.Err() != nil || !isRetryableNetErr(readErr) {
			return nil, utils.Permanent(readErr)
		}
		return nil, readErr
	}

	f.logger.Debug("[fetch] GET %s -> %d (%d bytes)", url, resp.StatusCode, len(body))
	return body, nil
}

// readAndClose drains the body so the connection can be reused.
func readAndClose(rc io.ReadCloser) ([]byte, error) {
	defer rc.Close()
	return io.ReadAll(rc)
}

func isRetryableNetErr(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof")
}
