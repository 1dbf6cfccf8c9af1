// Package pwdriver implements driver.Driver on playwright-go with Chromium.
package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/playwright-community/playwright-go"

	"github.com/gti/jenkins-acceptance/internal/by"
	"github.com/gti/jenkins-acceptance/internal/driver"
)

type Options struct {
	Headless bool
	Timeout  time.Duration
	// ClickTimeout bounds a single click. An intercepted click fails fast
	// instead of waiting the full Timeout for the overlay to go away.
	ClickTimeout time.Duration
}

const (
	defaultTimeout      = 30 * time.Second
	defaultClickTimeout = time.Second
)

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.ClickTimeout <= 0 {
		o.ClickTimeout = defaultClickTimeout
	}
	return o
}

type Driver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	click   float64

	mu      sync.Mutex
	waiters []chan playwright.Dialog
}

var _ driver.Driver = (*Driver)(nil)

func New(ctx context.Context, opts Options) (*Driver, error) {
	opts = opts.withDefaults()

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	ms := float64(opts.Timeout.Milliseconds())
	page.SetDefaultTimeout(ms)

	d := &Driver{pw: pw, browser: browser, page: page, click: float64(opts.ClickTimeout.Milliseconds())}
	page.OnDialog(d.onDialog)

	log.Debug().Bool("headless", opts.Headless).Msg("playwright browser started")
	return d, nil
}

// onDialog hands the dialog to an armed waiter, or dismisses it so the page
// does not hang.
func (d *Driver) onDialog(dlg playwright.Dialog) {
	d.mu.Lock()
	waiters := d.waiters
	d.waiters = nil
	d.mu.Unlock()

	if len(waiters) == 0 {
		if err := dlg.Dismiss(); err != nil {
			log.Warn().Err(err).Str("message", dlg.Message()).Msg("failed to dismiss unexpected dialog")
		}
		return
	}
	for _, w := range waiters {
		w <- dlg
	}
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	return d.page.URL(), ctx.Err()
}

func selector(loc by.Locator) string {
	if loc.Kind == by.KindXPath {
		return "xpath=" + loc.Value
	}
	return "css=" + loc.Value
}

func (d *Driver) FindElements(ctx context.Context, loc by.Locator) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := d.page.QuerySelectorAll(selector(loc))
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", loc, mapError(err))
	}

	out := make([]driver.Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, &element{h: h, click: d.click})
	}
	return out, nil
}

func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	converted := make([]any, len(args))
	for i, a := range args {
		if e, ok := a.(*element); ok {
			converted[i] = e.h
			continue
		}
		converted[i] = a
	}

	res, err := d.page.Evaluate("args => (function() {\n"+script+"\n}).apply(document, args)", converted)
	if err != nil {
		return nil, fmt.Errorf("failed to execute script: %w", mapError(err))
	}
	return res, nil
}

func (d *Driver) ExpectDialog(ctx context.Context) (driver.DialogWait, error) {
	ch := make(chan playwright.Dialog, 1)
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
		case dlg := <-ch:
			got = &dialog{d: dlg}
			return got, nil
		case <-wctx.Done():
			return nil, driver.ErrNoDialog
		}
	}, nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	png, err := d.page.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return png, nil
}

func (d *Driver) Close() error {
	var errs []error
	if d.browser != nil {
		errs = append(errs, d.browser.Close())
	}
	if d.pw != nil {
		errs = append(errs, d.pw.Stop())
	}
	return errors.Join(errs...)
}

type element struct {
	h     playwright.ElementHandle
	click float64
}

func (e *element) Click(ctx context.Context) error {
	if err := e.h.Click(playwright.ElementHandleClickOptions{Timeout: playwright.Float(e.click)}); err != nil {
		return fmt.Errorf("failed to click element: %w", mapError(err))
	}
	return nil
}

func (e *element) Clear(ctx context.Context) error {
	if err := e.h.Fill(""); err != nil {
		return fmt.Errorf("failed to clear input: %w", mapError(err))
	}
	return nil
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	if err := e.h.Type(text); err != nil {
		return fmt.Errorf("failed to input text: %w", mapError(err))
	}
	return nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	s, err := e.h.InnerText()
	if err != nil {
		return "", fmt.Errorf("failed to get text: %w", mapError(err))
	}
	return s, nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	if name == "value" {
		v, err := e.h.InputValue()
		if err == nil {
			return v, nil
		}
	}
	v, err := e.h.GetAttribute(name)
	if err != nil {
		return "", fmt.Errorf("failed to get attribute %s: %w", name, mapError(err))
	}
	return v, nil
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	ok, err := e.h.IsVisible()
	if err != nil {
		return false, fmt.Errorf("failed to check visibility: %w", mapError(err))
	}
	return ok, nil
}

func (e *element) IsSelected(ctx context.Context) (bool, error) {
	v, err := e.h.Evaluate("el => !!(el.checked || el.selected)")
	if err != nil {
		return false, fmt.Errorf("failed to check selection: %w", mapError(err))
	}
	ok, _ := v.(bool)
	return ok, nil
}

func (e *element) IsEnabled(ctx context.Context) (bool, error) {
	ok, err := e.h.IsEnabled()
	if err != nil {
		return false, fmt.Errorf("failed to check enabled: %w", mapError(err))
	}
	return ok, nil
}

type dialog struct {
	d      playwright.Dialog
	prompt string
}

func (g *dialog) Text() string { return g.d.Message() }

func (g *dialog) Accept(ctx context.Context) error {
	if g.prompt != "" {
		return g.d.Accept(g.prompt)
	}
	return g.d.Accept()
}

func (g *dialog) Dismiss(ctx context.Context) error {
	return g.d.Dismiss()
}

func (g *dialog) SendKeys(ctx context.Context, text string) error {
	g.prompt += text
	return nil
}

func mapError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "intercepts pointer events"):
		return fmt.Errorf("%w: %w", driver.ErrClickIntercepted, err)
	case strings.Contains(msg, "not attached to the DOM"),
		strings.Contains(msg, "Element is detached"):
		return fmt.Errorf("%w: %w", driver.ErrStaleElement, err)
	}
	return err
}
