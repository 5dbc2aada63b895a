// Package browser owns the lifecycle of a single headless browser process
// (or a remote DevTools connection) and serializes every CDP operation
// issued against it. It is independent of the agent runtime; the "browser"
// tool in internal/tools/browser is a thin shim over it.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// ErrNotRunning is returned by every operation issued while the controller
// is stopped.
var ErrNotRunning = errors.New("browser: not running")

// Status is the controller's coarse lifecycle state.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
)

const (
	defaultViewportWidth  = 1920
	defaultViewportHeight = 1080
	defaultOpTimeout      = 60 * time.Second
)

// Config configures the underlying browser process or remote connection.
type Config struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	// RemoteURL, when set, attaches to an existing DevTools endpoint
	// (ws:// or http(s)://) instead of launching a local Chrome process.
	RemoteURL string
	// OpTimeout bounds a single operation's RPC(s); defaults to 60s per the
	// per-tool timeout used by the dispatcher that calls into this package.
	OpTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.ViewportWidth == 0 {
		c.ViewportWidth = defaultViewportWidth
	}
	if c.ViewportHeight == 0 {
		c.ViewportHeight = defaultViewportHeight
	}
	if c.OpTimeout == 0 {
		c.OpTimeout = defaultOpTimeout
	}
}

// Tab describes one open page target.
type Tab struct {
	TargetID string
	Title    string
	URL      string
}

type tabHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Controller owns one browser process and every tab opened against it.
// Operations compete for the same process via mu; a dead process is
// restarted transparently on the next operation rather than surfaced to the
// caller as a hard failure.
type Controller struct {
	mu     sync.Mutex
	config Config

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	tabs      map[string]*tabHandle
	activeTab string
	status    Status
}

// NewController creates a stopped controller; call Start before issuing
// operations.
func NewController(config Config) *Controller {
	config.setDefaults()
	return &Controller{
		config: config,
		tabs:   make(map[string]*tabHandle),
		status: StatusStopped,
	}
}

// Start launches the browser process (or dials the remote endpoint) if it
// isn't already running. Calling Start on an already-running controller is a
// no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusRunning {
		return nil
	}
	return c.startLocked(ctx)
}

func (c *Controller) startLocked(ctx context.Context) error {
	var allocCtx context.Context
	var allocCancel context.CancelFunc

	if c.config.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), c.config.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", c.config.Headless),
			chromedp.WindowSize(c.config.ViewportWidth, c.config.ViewportHeight),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("start browser process: %w", err)
	}

	c.allocCtx, c.allocCancel = allocCtx, allocCancel
	c.browserCtx, c.browserCancel = browserCtx, browserCancel
	c.status = StatusRunning
	return nil
}

// Stop tears down every open tab and the browser process itself.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	return nil
}

func (c *Controller) stopLocked() {
	if c.status == StatusStopped {
		return
	}
	for _, t := range c.tabs {
		t.cancel()
	}
	c.tabs = make(map[string]*tabHandle)
	c.activeTab = ""
	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	c.status = StatusStopped
}

// Status reports whether the controller currently owns a live browser
// process.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// ensureRunning checks liveness with a cheap no-op RPC and performs a
// supervised restart if the process has died out from under us. Returns
// ErrNotRunning if the controller was never started (or was explicitly
// stopped) rather than restarting on its own.
func (c *Controller) ensureRunning(ctx context.Context) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusStopped {
		return nil, ErrNotRunning
	}
	if err := chromedp.Run(c.browserCtx); err != nil {
		c.stopLocked()
		if err := c.startLocked(ctx); err != nil {
			return nil, fmt.Errorf("supervised restart failed: %w", err)
		}
	}
	return c.browserCtx, nil
}

// activeCtx resolves the context operations should run against: the active
// tab if one has been opened, falling back to the main browser context
// (which chromedp attaches to the browser's initial blank tab).
func (c *Controller) activeCtx(browserCtx context.Context) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeTab != "" {
		if t, ok := c.tabs[c.activeTab]; ok {
			return t.ctx
		}
	}
	return browserCtx
}

func (c *Controller) run(ctx context.Context, actions ...chromedp.Action) error {
	browserCtx, err := c.ensureRunning(ctx)
	if err != nil {
		return err
	}
	timeoutCtx, cancel := context.WithTimeout(c.activeCtx(browserCtx), c.config.OpTimeout)
	defer cancel()
	return chromedp.Run(timeoutCtx, actions...)
}

// ListTabs returns every open page target.
func (c *Controller) ListTabs(ctx context.Context) ([]Tab, error) {
	browserCtx, err := c.ensureRunning(ctx)
	if err != nil {
		return nil, err
	}
	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	var tabs []Tab
	for _, t := range targets {
		if t.Type == "page" {
			tabs = append(tabs, Tab{TargetID: string(t.TargetID), Title: t.Title, URL: t.URL})
		}
	}
	return tabs, nil
}

// OpenTab opens a new tab, navigates it to url, and makes it the active tab.
func (c *Controller) OpenTab(ctx context.Context, url string) (Tab, error) {
	browserCtx, err := c.ensureRunning(ctx)
	if err != nil {
		return Tab{}, err
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	timeoutCtx, cancel := context.WithTimeout(tabCtx, c.config.OpTimeout)
	defer cancel()
	if url == "" {
		url = "about:blank"
	}
	if err := chromedp.Run(timeoutCtx, chromedp.Navigate(url)); err != nil {
		tabCancel()
		return Tab{}, fmt.Errorf("open tab: %w", err)
	}

	targetID := string(chromedp.FromContext(tabCtx).Target.TargetID)

	c.mu.Lock()
	c.tabs[targetID] = &tabHandle{ctx: tabCtx, cancel: tabCancel}
	c.activeTab = targetID
	c.mu.Unlock()

	return Tab{TargetID: targetID, URL: url}, nil
}

// CloseTab closes the given tab and clears it as the active tab if it was.
func (c *Controller) CloseTab(ctx context.Context, targetID string) error {
	c.mu.Lock()
	t, ok := c.tabs[targetID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("no such tab: %s", targetID)
	}
	delete(c.tabs, targetID)
	if c.activeTab == targetID {
		c.activeTab = ""
	}
	c.mu.Unlock()

	err := chromedp.Run(t.ctx, target.CloseTarget(target.ID(targetID)))
	t.cancel()
	if err != nil {
		return fmt.Errorf("close tab: %w", err)
	}
	return nil
}

// Navigate loads url in the active tab.
func (c *Controller) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url))
}

// Click clicks the first element matching selector.
func (c *Controller) Click(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery), chromedp.Click(selector, chromedp.ByQuery))
}

// Fill replaces the value of the element matching selector with text.
func (c *Controller) Fill(ctx context.Context, selector, text string) error {
	return c.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery), chromedp.SetValue(selector, text, chromedp.ByQuery))
}

// Type sends keystrokes to the element matching selector without clearing
// its current value first.
func (c *Controller) Type(ctx context.Context, selector, text string) error {
	return c.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery), chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

// Press dispatches a single key event; key is a key name as understood by
// chromedp's kb package (e.g. "Enter", "Tab").
func (c *Controller) Press(ctx context.Context, key string) error {
	return c.run(ctx, chromedp.KeyEvent(key))
}

// Hover moves the mouse over the element matching selector.
func (c *Controller) Hover(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery), chromedp.ScrollIntoView(selector, chromedp.ByQuery), hoverAction(selector))
}

func hoverAction(selector string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var box *dimensions
		if err := boxFor(ctx, selector, &box); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseMoved, box.centerX(), box.centerY()).Do(ctx)
	})
}

// Select sets a <select> element's value.
func (c *Controller) Select(ctx context.Context, selector, value string) error {
	return c.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery), chromedp.SetValue(selector, value, chromedp.ByQuery))
}

// Drag performs a press-move-release sequence from the center of fromSelector
// to the center of toSelector.
func (c *Controller) Drag(ctx context.Context, fromSelector, toSelector string) error {
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var from, to *dimensions
		if err := boxFor(ctx, fromSelector, &from); err != nil {
			return err
		}
		if err := boxFor(ctx, toSelector, &to); err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MousePressed, from.centerX(), from.centerY()).WithButton(input.Left).WithClickCount(1).Do(ctx); err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MouseMoved, to.centerX(), to.centerY()).Do(ctx); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseReleased, to.centerX(), to.centerY()).WithButton(input.Left).WithClickCount(1).Do(ctx)
	}))
}

// Wait blocks until selector is visible, or for d if selector is empty.
func (c *Controller) Wait(ctx context.Context, selector string, d time.Duration) error {
	if selector == "" {
		return c.run(ctx, chromedp.Sleep(d))
	}
	return c.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// WaitForNavigation waits for the document to reach the "complete" ready
// state, approximating a load-event wait without a document reload race.
func (c *Controller) WaitForNavigation(ctx context.Context) error {
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for {
			var state string
			if err := chromedp.Evaluate(`document.readyState`, &state).Do(ctx); err != nil {
				return err
			}
			if state == "complete" {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}
	}))
}

// Evaluate runs script in the active tab and returns its JSON-decoded result.
func (c *Controller) Evaluate(ctx context.Context, script string) (any, error) {
	var result any
	if err := c.run(ctx, chromedp.Evaluate(script, &result)); err != nil {
		return nil, err
	}
	return result, nil
}

// ExtractText returns the text content of selector, or the whole body when
// selector is empty.
func (c *Controller) ExtractText(ctx context.Context, selector string) (string, error) {
	if selector == "" {
		selector = "body"
	}
	var text string
	if err := c.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}

// ExtractHTML returns the outer HTML of selector, or the full document when
// selector is empty.
func (c *Controller) ExtractHTML(ctx context.Context, selector string) (string, error) {
	var html string
	if selector == "" {
		if err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
			return "", err
		}
		return html, nil
	}
	if err := c.run(ctx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Screenshot captures the active tab as PNG. fullPage captures the full
// scrollable page instead of just the viewport.
func (c *Controller) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	var action chromedp.Action
	if fullPage {
		action = chromedp.FullScreenshot(&buf, 90)
	} else {
		action = chromedp.CaptureScreenshot(&buf)
	}
	if err := c.run(ctx, action); err != nil {
		return nil, err
	}
	return buf, nil
}

// Upload sets the files for a file input element matching selector.
func (c *Controller) Upload(ctx context.Context, selector string, filePaths []string) error {
	return c.run(ctx, chromedp.SetUploadFiles(selector, filePaths, chromedp.ByQuery))
}

// Dialog accepts or dismisses a currently open JavaScript dialog (alert,
// confirm, prompt), optionally supplying promptText for a prompt dialog.
func (c *Controller) Dialog(ctx context.Context, accept bool, promptText string) error {
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		action := page.HandleJavaScriptDialog(accept)
		if promptText != "" {
			action = action.WithPromptText(promptText)
		}
		return action.Do(ctx)
	}))
}

type dimensions struct {
	x, y, width, height float64
}

func (d *dimensions) centerX() float64 { return d.x + d.width/2 }
func (d *dimensions) centerY() float64 { return d.y + d.height/2 }

func boxFor(ctx context.Context, selector string, out **dimensions) error {
	var nodes []*cdp.Node
	if err := chromedp.Nodes(selector, &nodes, chromedp.ByQuery).Do(ctx); err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("no element matches selector %q", selector)
	}

	model, err := dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
	if err != nil {
		return fmt.Errorf("get box model for %q: %w", selector, err)
	}
	// Content is a flat [x0,y0, x1,y1, x2,y2, x3,y3] quad; reduce it to an
	// axis-aligned bounding rect.
	quad := model.Content
	if len(quad) < 8 {
		return fmt.Errorf("unexpected box model for %q", selector)
	}
	minX, maxX := quad[0], quad[0]
	minY, maxY := quad[1], quad[1]
	for i := 0; i < len(quad); i += 2 {
		if quad[i] < minX {
			minX = quad[i]
		}
		if quad[i] > maxX {
			maxX = quad[i]
		}
		if quad[i+1] < minY {
			minY = quad[i+1]
		}
		if quad[i+1] > maxY {
			maxY = quad[i+1]
		}
	}
	*out = &dimensions{x: minX, y: minY, width: maxX - minX, height: maxY - minY}
	return nil
}
