package maps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"maps-scraper/utils"
)

const (
	defaultActionTimeout     = 30 * time.Second
	defaultNavigationTimeout = 60 * time.Second
)

// ChromeOptions configures the browser session.
type ChromeOptions struct {
	Headless  bool
	ChromeBin string
	UserAgent string
}

// ChromePage is a Page backed by a single chromedp tab.
type ChromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *utils.Logger

	actionTimeout time.Duration
	navTimeout    time.Duration
}

// NewChromePage launches a browser and opens one tab. The session lives until
// Close is called or parent is cancelled.
func NewChromePage(parent context.Context, opts ChromeOptions, logger *utils.Logger) (*ChromePage, error) {
	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1440, 900),
	)
	if opts.UserAgent != "" {
		execOpts = append(execOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if bin := findChromeBinary(opts.ChromeBin); bin != "" {
		logger.Info("[browser] Using browser binary: %s", bin)
		execOpts = append(execOpts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, execOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("[chromedp] "+format, args...)
		}),
	)

	p := &ChromePage{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
		logger:        logger,
		actionTimeout: defaultActionTimeout,
		navTimeout:    defaultNavigationTimeout,
	}

	// The first Run starts the browser process.
	startup := []chromedp.Action{}
	if opts.UserAgent != "" {
		startup = append(startup, emulation.SetUserAgentOverride(opts.UserAgent))
	}
	if err := chromedp.Run(tabCtx, startup...); err != nil {
		p.cancel()
		return nil, fmt.Errorf("browser: start: %w", err)
	}
	return p, nil
}

// run executes actions on the tab, bounded by timeout and aborted early when
// ctx is cancelled.
func (p *ChromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(callCtx, actions...)
}

func (p *ChromePage) evaluate(ctx context.Context, script string, res any) error {
	return p.run(ctx, p.actionTimeout, chromedp.Evaluate(script, res))
}

type lookupResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, p.navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

func (p *ChromePage) Count(ctx context.Context, selector string) (int, error) {
	var n int
	if err := p.evaluate(ctx, fmt.Sprintf(`document.querySelectorAll(%q).length`, selector), &n); err != nil {
		return 0, fmt.Errorf("browser: count %s: %w", selector, err)
	}
	return n, nil
}

func (p *ChromePage) Text(ctx context.Context, selector string) (string, error) {
	script := fmt.Sprintf(`(function() {
		var el = document.querySelector(%q);
		if (!el) return {found: false, value: ""};
		return {found: true, value: (el.innerText || el.textContent || "").trim()};
	})()`, selector)

	var res lookupResult
	if err := p.evaluate(ctx, script, &res); err != nil {
		return "", fmt.Errorf("browser: text %s: %w", selector, err)
	}
	if !res.Found {
		return "", ErrNotFound
	}
	return res.Value, nil
}

func (p *ChromePage) Attribute(ctx context.Context, selector, name string) (string, error) {
	script := fmt.Sprintf(`(function() {
		var el = document.querySelector(%q);
		if (!el) return {found: false, value: ""};
		var name = %q;
		var v = (typeof el[name] === "string") ? el[name] : el.getAttribute(name);
		if (v === null || v === undefined) return {found: false, value: ""};
		return {found: true, value: String(v)};
	})()`, selector, name)

	var res lookupResult
	if err := p.evaluate(ctx, script, &res); err != nil {
		return "", fmt.Errorf("browser: attribute %s[%s]: %w", selector, name, err)
	}
	if !res.Found {
		return "", ErrNotFound
	}
	return res.Value, nil
}

func (p *ChromePage) ScrollIntoView(ctx context.Context, selector string, index int) error {
	script := fmt.Sprintf(`(function() {
		var els = document.querySelectorAll(%q);
		if (%d >= els.length) return false;
		els[%d].scrollIntoView();
		return true;
	})()`, selector, index, index)

	var ok bool
	if err := p.evaluate(ctx, script, &ok); err != nil {
		return fmt.Errorf("browser: scroll into view %s[%d]: %w", selector, index, err)
	}
	if !ok {
		return fmt.Errorf("browser: scroll into view %s[%d]: %w", selector, index, ErrNotFound)
	}
	return nil
}

// Click dispatches a real mouse click at the centre of the element, so
// overlay links inside a card receive it the way a user's click would.
func (p *ChromePage) Click(ctx context.Context, selector string, index int) error {
	var nodes []*cdp.Node
	if err := p.run(ctx, p.actionTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	); err != nil {
		return fmt.Errorf("browser: click %s[%d]: %w", selector, index, err)
	}
	if index >= len(nodes) {
		return fmt.Errorf("browser: click %s[%d]: %w", selector, index, ErrNotFound)
	}
	if err := p.run(ctx, p.actionTimeout, chromedp.MouseClickNode(nodes[index])); err != nil {
		return fmt.Errorf("browser: click %s[%d]: %w", selector, index, err)
	}
	return nil
}

func (p *ChromePage) ScrollToBottom(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`(function() {
		var el = document.querySelector(%q);
		if (!el) return false;
		el.scrollTop = el.scrollHeight;
		return true;
	})()`, selector)

	var ok bool
	if err := p.evaluate(ctx, script, &ok); err != nil {
		return fmt.Errorf("browser: scroll %s: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("browser: scroll %s: %w", selector, ErrNotFound)
	}
	return nil
}

func (p *ChromePage) ScrollWindow(ctx context.Context, dy int) error {
	var ignored bool
	if err := p.evaluate(ctx, fmt.Sprintf(`(function() { window.scrollBy(0, %d); return true; })()`, dy), &ignored); err != nil {
		return fmt.Errorf("browser: scroll window: %w", err)
	}
	return nil
}

func (p *ChromePage) ScrollHeight(ctx context.Context, selector string) (int64, error) {
	script := fmt.Sprintf(`(function() {
		var el = document.querySelector(%q);
		return el ? el.scrollHeight : -1;
	})()`, selector)

	var h int64
	if err := p.evaluate(ctx, script, &h); err != nil {
		return 0, fmt.Errorf("browser: scroll height %s: %w", selector, err)
	}
	if h < 0 {
		return 0, fmt.Errorf("browser: scroll height %s: %w", selector, ErrNotFound)
	}
	return h, nil
}

func (p *ChromePage) DocumentHeight(ctx context.Context) (int64, error) {
	var h int64
	if err := p.evaluate(ctx, `document.body.scrollHeight`, &h); err != nil {
		return 0, fmt.Errorf("browser: document height: %w", err)
	}
	return h, nil
}

// Close ends the tab and the browser process. It is safe to call more than once.
func (p *ChromePage) Close() error {
	p.cancel()
	return nil
}

// findChromeBinary locates a Chrome/Chromium binary, preferring the configured
// path. An empty result lets chromedp use its own lookup.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
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

var _ Page = (*ChromePage)(nil)
