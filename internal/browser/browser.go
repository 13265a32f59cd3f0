// Package browser wraps headless Chrome behind the small session contract the
// discovery agents depend on, so the automation backend stays swappable.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// ErrBrowserUnavailable is returned when the browser process cannot start.
var ErrBrowserUnavailable = errors.New("browser session unavailable")

// Locator addresses an element on the current page.
type Locator struct {
	Type  string // "css" or "text"
	Value string
}

// Session is the full contract between a discovery agent and the browser
// automation capability. One session is exclusive to one agent instance.
type Session interface {
	Start(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	Screenshot(ctx context.Context) ([]byte, error)
	PageText(ctx context.Context) (string, error)
	Click(ctx context.Context, loc Locator) error
	Fill(ctx context.Context, loc Locator, text string) error
	SubmitActive(ctx context.Context) error
	Stop() error
}

// ChromeSession implements Session with chromedp.
type ChromeSession struct {
	headless   bool
	navTimeout time.Duration

	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	browserCtx    context.Context
}

func NewChromeSession(headless bool, navTimeout time.Duration) *ChromeSession {
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	return &ChromeSession{headless: headless, navTimeout: navTimeout}
}

func (s *ChromeSession) Start(ctx context.Context) error {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", s.headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Force the browser process to launch now so a missing Chrome binary
	// surfaces here, not on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}

	s.allocCancel = allocCancel
	s.browserCancel = browserCancel
	s.browserCtx = browserCtx
	return nil
}

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		// Give client-side rendering a beat to fill the page.
		chromedp.Sleep(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *ChromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.FullScreenshot(&buf, 85)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// PageText returns the rendered page as cleaned plain text.
func (s *ChromeSession) PageText(ctx context.Context) (string, error) {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("page text: %w", err)
	}
	return HTMLToText(html), nil
}

func (s *ChromeSession) Click(ctx context.Context, loc Locator) error {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Click(selectorFor(loc), queryOption(loc), chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %s=%s: %w", loc.Type, loc.Value, err)
	}
	return nil
}

func (s *ChromeSession) Fill(ctx context.Context, loc Locator, text string) error {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	sel := selectorFor(loc)
	err := chromedp.Run(runCtx,
		chromedp.Clear(sel, queryOption(loc)),
		chromedp.SendKeys(sel, text, queryOption(loc)),
	)
	if err != nil {
		return fmt.Errorf("fill %s=%s: %w", loc.Type, loc.Value, err)
	}
	return nil
}

// SubmitActive presses Enter in the focused element, the portable way to
// submit a search box that has no dedicated button.
func (s *ChromeSession) SubmitActive(ctx context.Context) error {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.KeyEvent("\r"),
		chromedp.Sleep(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return nil
}

func (s *ChromeSession) Stop() error {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.browserCtx = nil
	return nil
}

func (s *ChromeSession) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx := s.browserCtx
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(runCtx, deadline)
	}
	return context.WithTimeout(runCtx, s.navTimeout)
}

func queryOption(loc Locator) chromedp.QueryOption {
	if loc.Type == "text" {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func selectorFor(loc Locator) string {
	if loc.Type == "text" {
		// chromedp has no text selector; fall back to a case-insensitive
		// attribute scan over common clickable elements.
		return fmt.Sprintf(`//*[self::a or self::button][contains(translate(text(), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), %q)]`, strings.ToLower(loc.Value))
	}
	return loc.Value
}

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
