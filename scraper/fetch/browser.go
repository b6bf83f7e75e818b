package fetch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"realestate-scraper/utils"
)

// BrowserFetcher renders pages in a shared headless Chrome, one tab per
// request. It is used when listing pages build their payload client-side.
type BrowserFetcher struct {
	opts        Options
	retry       *utils.RetryConfig
	logger      *utils.Logger
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	// settle is how long a page may run scripts after the body is ready.
	settle time.Duration
}

// NewBrowserFetcher starts the browser. chromeBin may be empty to let the
// binary be discovered from PATH and the usual install locations.
func NewBrowserFetcher(opts Options, chromeBin string, logger *utils.Logger) (*BrowserFetcher, error) {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[browser] Using browser binary: %q", chromeBin)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	// Suppress chromedp log noise
	browserCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// The first Run launches the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("browser: start: %w", err)
	}

	return &BrowserFetcher{
		opts: opts,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries + 1,
			BaseDelay:   opts.RetryBaseDelay,
			MaxDelay:    opts.RetryMaxDelay,
			Logger:      logger,
		},
		logger:      logger,
		browserCtx:  browserCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
		settle:      time.Second,
	}, nil
}

// Fetch navigates a fresh tab to url and returns the rendered document.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var html string
	err := b.retry.Do(ctx, "render "+url, func() error {
		tabCtx, cancel := chromedp.NewContext(b.browserCtx)
		defer cancel()

		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.opts.ConnectTimeout+b.opts.ReadTimeout+b.settle)
		defer cancelTimeout()

		// Stop the tab when the caller gives up.
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		return chromedp.Run(tabCtx,
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Sleep(b.settle),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
	})
	if err != nil {
		return nil, err
	}

	politePause(ctx, b.opts.PolitenessDelay, b.opts.PolitenessJitter)
	return []byte(html), nil
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() error {
	b.cancelTab()
	b.cancelAlloc()
	return nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
