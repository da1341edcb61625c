// Package browser renders a target page in headless Chrome via Rod so
// that SPA frameworks inject their bundle references before the HTML is
// captured.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/apiscout/apiscout/internal/errors"
	"github.com/apiscout/apiscout/internal/logger"
)

// Config defines browser configuration.
type Config struct {
	Headless          bool          `json:"headless"`
	Timeout           time.Duration `json:"timeout"`
	UserAgent         string        `json:"user_agent"`
	ViewportWidth     int           `json:"viewport_width"`
	ViewportHeight    int           `json:"viewport_height"`
	IgnoreHTTPSErrors bool          `json:"ignore_https_errors"`
	// RenderWait is how long to wait after load for the framework to
	// paint before capturing HTML.
	RenderWait time.Duration `json:"render_wait"`
	// Scroll triggers lazy-loaded resources by scrolling halfway and
	// then to the bottom of the page.
	Scroll bool `json:"scroll"`
}

// DefaultConfig returns default browser configuration.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		Timeout:           45 * time.Second,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		IgnoreHTTPSErrors: true,
		RenderWait:        3 * time.Second,
		Scroll:            true,
	}
}

// NetworkRequest is an XHR or fetch call observed while rendering.
type NetworkRequest struct {
	URL          string
	Method       string
	PostData     string
	ResourceType string
}

// RenderResult contains the rendered page.
type RenderResult struct {
	URL          string
	FinalURL     string
	Title        string
	HTML         string
	XHRRequests  []NetworkRequest
	ResponseTime time.Duration
}

// Renderer drives a headless Chrome instance.
type Renderer struct {
	browser *rod.Browser
	config  Config
	log     *logger.Logger
}

// New launches headless Chrome and connects to it. Returns an error if
// no Chromium binary can be found or launched; callers should treat
// that as a missing prerequisite.
func New(config Config, log *logger.Logger) (*Renderer, error) {
	if log == nil {
		log = logger.NewDefault()
	}

	l := launcher.New()
	if config.Headless {
		l = l.Headless(true)
	}
	l = l.Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("window-size", fmt.Sprintf("%d,%d", config.ViewportWidth, config.ViewportHeight))
	if config.IgnoreHTTPSErrors {
		l = l.Set("ignore-certificate-errors", "true")
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	browser = browser.Timeout(config.Timeout)

	return &Renderer{
		browser: browser,
		config:  config,
		log:     log.WithComponent("browser"),
	}, nil
}

// Render navigates to the target, waits for the framework to paint,
// scrolls to trigger lazy loading, and returns the final HTML along
// with any XHR/fetch requests the page issued while rendering.
func (r *Renderer) Render(ctx context.Context, targetURL string, headers map[string]string) (*RenderResult, error) {
	start := time.Now()
	result := &RenderResult{URL: targetURL, FinalURL: targetURL}

	page, err := r.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, errors.NewBrowserError(targetURL, "page_create", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	_ = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  r.config.ViewportWidth,
		Height: r.config.ViewportHeight,
	})

	if r.config.UserAgent != "" {
		_ = proto.NetworkSetUserAgentOverride{
			UserAgent: r.config.UserAgent,
		}.Call(page)
	}

	if len(headers) > 0 {
		networkHeaders := make(proto.NetworkHeaders)
		for k, v := range headers {
			networkHeaders[k] = gson.New(v)
		}
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: networkHeaders}.Call(page)
	}

	// Capture XHR/fetch traffic issued during the initial render. These
	// are live endpoints, worth keeping next to the statically scanned
	// ones.
	router := page.HijackRequests()
	var (
		xhrMu       sync.Mutex
		xhrRequests []NetworkRequest
	)
	hijackErr := router.Add("*", "", func(hijack *rod.Hijack) {
		resourceType := hijack.Request.Type()
		if resourceType == proto.NetworkResourceTypeXHR || resourceType == proto.NetworkResourceTypeFetch {
			xhrMu.Lock()
			xhrRequests = append(xhrRequests, NetworkRequest{
				URL:          hijack.Request.URL().String(),
				Method:       hijack.Request.Method(),
				PostData:     hijack.Request.Body(),
				ResourceType: string(resourceType),
			})
			xhrMu.Unlock()
		}
		hijack.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if hijackErr == nil {
		go router.Run()
		defer router.Stop()
	}

	if err := page.Navigate(targetURL); err != nil {
		return nil, errors.NewBrowserError(targetURL, "navigate", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, errors.NewBrowserError(targetURL, "wait_load", err)
	}

	// Let React/Vue/Angular render before reading the DOM.
	if err := sleepCtx(ctx, r.config.RenderWait); err != nil {
		return nil, errors.NewCancelledError(targetURL, "render_wait")
	}

	if r.config.Scroll {
		r.scrollForLazyContent(ctx, page)
	}

	if info, err := page.Info(); err == nil && info != nil {
		result.FinalURL = info.URL
		result.Title = info.Title
	}

	html, err := page.HTML()
	if err != nil {
		return nil, errors.NewBrowserError(targetURL, "html_capture", err)
	}
	result.HTML = html

	xhrMu.Lock()
	result.XHRRequests = xhrRequests
	xhrMu.Unlock()

	result.ResponseTime = time.Since(start)
	r.log.Infof("rendered %s (%d bytes, %d XHR calls)", targetURL, len(result.HTML), len(result.XHRRequests))
	return result, nil
}

// scrollForLazyContent scrolls half way and then to the bottom so that
// intersection-observer loaders fire.
func (r *Renderer) scrollForLazyContent(ctx context.Context, page *rod.Page) {
	if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight / 2)`); err != nil {
		r.log.Debugf("half scroll failed: %v", err)
		return
	}
	_ = sleepCtx(ctx, time.Second)
	if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		r.log.Debugf("full scroll failed: %v", err)
		return
	}
	_ = sleepCtx(ctx, 2*time.Second)
}

// Close shuts down the browser.
func (r *Renderer) Close() error {
	return r.browser.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
