package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/corplens/sizeprobe/internal/applog"
)

// ErrBrowserCrashed is returned when the underlying browser process dies
// mid-navigation; the caller's retry loop treats it the same as any other
// transient fetch error.
var ErrBrowserCrashed = errors.New("crawler: headless browser crashed")

// PageFetcher renders url in a browser (or an equivalent environment) and
// returns the fully loaded HTML. It is the one port the pagination engine
// in website.go depends on, so tests can substitute a canned-HTML fake
// instead of driving a real browser.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
	Close() error
}

// RodFetcher drives a headless Chromium instance via go-rod. One instance
// is shared by every query a WebsiteCrawler issues.
type RodFetcher struct {
	mu          sync.Mutex
	browser     *rod.Browser
	launcherURL string
	headless    bool
	waitTimeout time.Duration
}

// NewRodFetcher launches a headless (or headed, for debugging) browser and
// returns a ready-to-use RodFetcher.
func NewRodFetcher(headless bool, waitTimeout time.Duration) (*RodFetcher, error) {
	f := &RodFetcher{headless: headless, waitTimeout: waitTimeout}
	if err := f.launch(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RodFetcher) launch() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrBrowserCrashed, r)
		}
	}()

	l := launcher.New().Headless(f.headless)
	controlURL, launchErr := l.Launch()
	if launchErr != nil {
		return fmt.Errorf("launch browser: %w", launchErr)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}

	f.launcherURL = controlURL
	f.browser = browser
	return nil
}

// FetchPage navigates to url, waits for the page load event, and returns
// the rendered HTML. A panic escaping the go-rod call stack (the library's
// own convention for unrecoverable CDP faults) is converted into
// ErrBrowserCrashed rather than taking the whole process down.
func (f *RodFetcher) FetchPage(ctx context.Context, url string) (html string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrBrowserCrashed, r)
		}
	}()

	f.mu.Lock()
	browser := f.browser
	f.mu.Unlock()
	if browser == nil {
		return "", ErrBrowserCrashed
	}

	page, pageErr := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if pageErr != nil {
		return "", fmt.Errorf("open page: %w", pageErr)
	}
	defer page.Close()

	waitCtx, cancel := context.WithTimeout(ctx, f.waitTimeout)
	defer cancel()
	page = page.Context(waitCtx)

	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}

	html, err = page.HTML()
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

// Close releases the underlying browser process.
func (f *RodFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.browser = nil
	return err
}

// Relaunch tears down a crashed browser and starts a fresh one. Nothing in
// this package calls it: WebsiteCrawler's retry loop keeps calling FetchPage
// on the same fetcher after ErrBrowserCrashed.
func (f *RodFetcher) Relaunch() error {
	_ = f.Close()
	applog.Warnf("crawler: relaunching headless browser after crash")
	return f.launch()
}
