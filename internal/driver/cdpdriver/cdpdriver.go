// Package cdpdriver implements driver.Driver on chromedp, talking to the
// DevTools protocol directly through the cdproto domains.
package cdpdriver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/go-json-experiment/json"
	"github.com/phuslu/log"

	"github.com/gti/jenkins-acceptance/internal/by"
	"github.com/gti/jenkins-acceptance/internal/driver"
)

type Options struct {
	Headless bool
	// RemoteURL attaches to a running browser's DevTools websocket.
	RemoteURL string
}

type Driver struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	mu      sync.Mutex
	waiters []chan *page.EventJavascriptDialogOpening
}

var _ driver.Driver = (*Driver)(nil)

func New(ctx context.Context, opts Options) (*Driver, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), opts.RemoteURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.WindowSize(1280, 1024),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	}

	tabCtx, cancel := chromedp.NewContext(allocCtx)
	d := &Driver{ctx: tabCtx, cancel: cancel, allocCancel: allocCancel}

	chromedp.ListenTarget(tabCtx, d.onEvent)

	// First Run starts the browser.
	if err := d.run(ctx, page.Enable()); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Debug().Bool("headless", opts.Headless).Str("remote", opts.RemoteURL).Msg("chromedp browser started")
	return d, nil
}

func (d *Driver) onEvent(ev any) {
	e, ok := ev.(*page.EventJavascriptDialogOpening)
	if !ok {
		return
	}
	d.mu.Lock()
	waiters := d.waiters
	d.waiters = nil
	d.mu.Unlock()

	for _, w := range waiters {
		w <- e
	}
}

// run executes actions on the tab, aborting early when the caller's ctx ends.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := d.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return url, nil
}

func (d *Driver) FindElements(ctx context.Context, loc by.Locator) ([]driver.Element, error) {
	var nodes []*cdp.Node
	opt := chromedp.ByQueryAll
	if loc.Kind == by.KindXPath {
		opt = chromedp.BySearch
	}
	if err := d.run(ctx, chromedp.Nodes(loc.Value, &nodes, opt, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", loc, mapError(err))
	}

	out := make([]driver.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{d: d, node: n})
	}
	return out, nil
}

func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...any) (any, error) {
	var result any
	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		callArgs := make([]*runtime.CallArgument, 0, len(args))
		for _, a := range args {
			if e, ok := a.(*element); ok {
				obj, err := dom.ResolveNode().WithBackendNodeID(e.node.BackendNodeID).Do(ctx)
				if err != nil {
					return mapError(err)
				}
				callArgs = append(callArgs, &runtime.CallArgument{ObjectID: obj.ObjectID})
				continue
			}
			raw, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("failed to encode script argument: %w", err)
			}
			callArgs = append(callArgs, &runtime.CallArgument{Value: raw})
		}

		doc, _, err := runtime.Evaluate("document").Do(ctx)
		if err != nil {
			return err
		}
		res, exc, err := runtime.CallFunctionOn("function() {\n" + script + "\n}").
			WithObjectID(doc.ObjectID).
			WithArguments(callArgs).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return mapError(err)
		}
		if exc != nil {
			return fmt.Errorf("script error: %s", exc.Text)
		}
		if len(res.Value) > 0 {
			return json.Unmarshal(res.Value, &result)
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to execute script: %w", err)
	}
	return result, nil
}

func (d *Driver) ExpectDialog(ctx context.Context) (driver.DialogWait, error) {
	ch := make(chan *page.EventJavascriptDialogOpening, 1)
	d.mu.Lock()
	d.waiters = append(d.waiters, ch)
	d.mu.Unlock()

	var (
		mu  sync.Mutex
		got *dialog
	)
	return func(wctx context.Context) (driver.Dialog, error) {
		mu.Lock()
		defer mu.Unlock()
		if got != nil {
			return got, nil
		}
		select {
		case e := <-ch:
			got = &dialog{d: d, message: e.Message}
			return got, nil
		case <-wctx.Done():
			return nil, driver.ErrNoDialog
		}
	}, nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (d *Driver) Close() error {
	d.cancel()
	d.allocCancel()
	return nil
}

type element struct {
	d    *Driver
	node *cdp.Node
}

// call invokes fn with this bound to the element and decodes the result.
func (e *element) call(ctx context.Context, fn string, out any, args ...any) error {
	return e.d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.node.BackendNodeID).Do(ctx)
		if err != nil {
			return mapError(err)
		}
		callArgs := make([]*runtime.CallArgument, 0, len(args))
		for _, a := range args {
			raw, err := json.Marshal(a)
			if err != nil {
				return err
			}
			callArgs = append(callArgs, &runtime.CallArgument{Value: raw})
		}
		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithArguments(callArgs).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return mapError(err)
		}
		if exc != nil {
			return fmt.Errorf("script error: %s", exc.Text)
		}
		if out != nil && len(res.Value) > 0 {
			return json.Unmarshal(res.Value, out)
		}
		return nil
	}))
}

const interceptCheck = `function() {
	this.scrollIntoView({block: "center", inline: "center"});
	const r = this.getBoundingClientRect();
	const hit = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
	return hit === null || hit === this || this.contains(hit);
}`

func (e *element) Click(ctx context.Context) error {
	var reachable bool
	if err := e.call(ctx, interceptCheck, &reachable); err != nil {
		return fmt.Errorf("failed to click element: %w", err)
	}
	if !reachable {
		return fmt.Errorf("failed to click element: %w", driver.ErrClickIntercepted)
	}
	if err := e.d.run(ctx, chromedp.MouseClickNode(e.node)); err != nil {
		return fmt.Errorf("failed to click element: %w", mapError(err))
	}
	return nil
}

func (e *element) Clear(ctx context.Context) error {
	err := e.call(ctx, `function() {
		this.value = "";
		this.dispatchEvent(new Event("input", {bubbles: true}));
	}`, nil)
	if err != nil {
		return fmt.Errorf("failed to clear input: %w", err)
	}
	return nil
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	if err := e.call(ctx, `function() { this.focus(); }`, nil); err != nil {
		return fmt.Errorf("failed to focus input: %w", err)
	}
	if err := e.d.run(ctx, chromedp.KeyEventNode(e.node, text)); err != nil {
		return fmt.Errorf("failed to input text: %w", mapError(err))
	}
	return nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	var s string
	if err := e.call(ctx, `function() { return this.innerText || ""; }`, &s); err != nil {
		return "", fmt.Errorf("failed to get text: %w", err)
	}
	return s, nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	var s string
	err := e.call(ctx, `function(n) {
		if (n === "value") return this.value == null ? "" : String(this.value);
		return this.getAttribute(n) || "";
	}`, &s, name)
	if err != nil {
		return "", fmt.Errorf("failed to get attribute %s: %w", name, err)
	}
	return s, nil
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	var ok bool
	err := e.call(ctx, `function() {
		const s = window.getComputedStyle(this);
		if (s.visibility === "hidden" || s.display === "none") return false;
		return this.getClientRects().length > 0;
	}`, &ok)
	if err != nil {
		return false, fmt.Errorf("failed to check visibility: %w", err)
	}
	return ok, nil
}

func (e *element) IsSelected(ctx context.Context) (bool, error) {
	var ok bool
	if err := e.call(ctx, `function() { return !!(this.checked || this.selected); }`, &ok); err != nil {
		return false, fmt.Errorf("failed to check selection: %w", err)
	}
	return ok, nil
}

func (e *element) IsEnabled(ctx context.Context) (bool, error) {
	var ok bool
	if err := e.call(ctx, `function() { return !this.disabled; }`, &ok); err != nil {
		return false, fmt.Errorf("failed to check enabled: %w", err)
	}
	return ok, nil
}

type dialog struct {
	d       *Driver
	message string
	prompt  string
}

func (g *dialog) Text() string { return g.message }

func (g *dialog) Accept(ctx context.Context) error {
	return g.d.run(ctx, page.HandleJavaScriptDialog(true).WithPromptText(g.prompt))
}

func (g *dialog) Dismiss(ctx context.Context) error {
	return g.d.run(ctx, page.HandleJavaScriptDialog(false))
}

func (g *dialog) SendKeys(ctx context.Context, text string) error {
	g.prompt += text
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Could not find node"),
		strings.Contains(msg, "Node is detached"),
		strings.Contains(msg, "No node with given id"),
		strings.Contains(msg, "Cannot find context"):
		return fmt.Errorf("%w: %w", driver.ErrStaleElement, err)
	}
	return err
}
