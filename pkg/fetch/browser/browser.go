// Package browser is the heavyweight fetch tier: a headless Chrome session
// driven through chromedp. It exists for the pages the plain HTTP tier
// cannot render, and is only started after that tier gives up.
package browser

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/fetch"
)

const defaultPageTimeout = 60 * time.Second

const stateScript = `(function() {
	var s = window.__NUXT__;
	if (!s) return '';
	try { return JSON.stringify(s.data || s); } catch (e) { return ''; }
})()`

// Options configures the browser session.
type Options struct {
	Headless    bool
	ChromePath  string        // empty means autodetect
	PageTimeout time.Duration // per-page budget, defaults to 60s
}

// Session owns a Chrome allocator. Tabs are created per page load and torn
// down immediately after, so a wedged page cannot poison later fetches.
type Session struct {
	alloc   context.Context
	cancels []context.CancelFunc
	timeout time.Duration
	log     fetch.Logger
}

// NewSession launches the Chrome allocator. The browser process itself
// starts lazily on the first tab.
func NewSession(o Options, log fetch.Logger) (*Session, error) {
	s := &Session{timeout: o.PageTimeout, log: log}
	if s.timeout <= 0 {
		s.timeout = defaultPageTimeout
	}
	if s.log == nil {
		s.log = noplog{}
	}

	chromeBin := o.ChromePath
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	if chromeBin != "" {
		s.log.Debugf("browser tier using binary %s", chromeBin)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	s.cancels = append(s.cancels, cancelAlloc)

	// Suppress chromedp log noise
	silentCtx, cancelSilent := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	s.cancels = append(s.cancels, cancelSilent)
	s.alloc = silentCtx

	return s, nil
}

// Close shuts the browser down.
func (s *Session) Close() error {
	for i := len(s.cancels) - 1; i >= 0; i-- {
		s.cancels[i]()
	}
	return nil
}

// pageState loads url in a fresh tab and returns the final URL after
// redirects plus the page-state JSON serialized in the page.
func (s *Session) pageState(ctx context.Context, url string) (finalURL, stateJSON string, err error) {
	tabCtx, cancelTab := chromedp.NewContext(s.alloc)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.timeout)
	defer cancelTimeout()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancelTimeout()
		case <-done:
		}
	}()
	defer close(done)

	err = chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(`window.location.href`, &finalURL),
		chromedp.Evaluate(stateScript, &stateJSON),
	)
	return finalURL, stateJSON, err
}

// isGoneErr reports whether a navigation error means the resource is gone
// rather than the fetch having failed. The upstream site aborts navigation
// on removed listings.
func isGoneErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "net::ERR_ABORTED")
}

// findChromeBinary locates a Chrome/Chromium binary.
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

type noplog struct{}

func (noplog) Infof(string, ...interface{})  {}
func (noplog) Warnf(string, ...interface{})  {}
func (noplog) Errorf(string, ...interface{}) {}
func (noplog) Debugf(string, ...interface{}) {}
