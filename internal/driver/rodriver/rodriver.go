// Package rodriver implements driver.Driver on go-rod.
package rodriver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/phuslu/log"

	"github.com/gti/jenkins-acceptance/internal/by"
	"github.com/gti/jenkins-acceptance/internal/driver"
)

type Options struct {
	Headless bool
	// ControlURL attaches to a running browser instead of launching one.
	ControlURL string
	Timeout    time.Duration
}

type Driver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration
}

var _ driver.Driver = (*Driver)(nil)

// New launches (or attaches to) Chromium and opens a blank page.
//
// Call Close() when done to release browser resources.
func New(ctx context.Context, opts Options) (*Driver, error) {
	d := &Driver{timeout: opts.Timeout}
	if d.timeout == 0 {
		d.timeout = 30 * time.Second
	}

	url := opts.ControlURL
	if url == "" {
		d.launcher = launcher.New().Context(ctx).Headless(opts.Headless)
		u, err := d.launcher.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		url = u
	}

	d.browser = rod.New().Context(ctx).ControlURL(url)
	if err := d.browser.Connect(); err != nil {
		d.cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := d.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		d.cleanup()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	d.page = page

	log.Debug().Str("control_url", url).Msg("rod browser connected")
	return d, nil
}

func (d *Driver) p(ctx context.Context) *rod.Page {
	return d.page.Context(ctx).Timeout(d.timeout)
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := d.p(ctx).Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := d.p(ctx).WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	info, err := d.p(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to read page info: %w", err)
	}
	return info.URL, nil
}

func (d *Driver) FindElements(ctx context.Context, loc by.Locator) ([]driver.Element, error) {
	var (
		els rod.Elements
		err error
	)
	switch loc.Kind {
	case by.KindXPath:
		els, err = d.p(ctx).ElementsX(loc.Value)
	default:
		els, err = d.p(ctx).Elements(loc.Value)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", loc, mapError(err))
	}

	out := make([]driver.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &element{el: el, timeout: d.timeout})
	}
	return out, nil
}

func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...any) (any, error) {
	converted := make([]any, len(args))
	for i, a := range args {
		if e, ok := a.(*element); ok {
			converted[i] = e.el.Object
			continue
		}
		converted[i] = a
	}

	res, err := d.p(ctx).Evaluate(rod.Eval("function() {\n"+script+"\n}", converted...).ByPromise())
	if err != nil {
		return nil, fmt.Errorf("failed to execute script: %w", mapError(err))
	}
	return res.Value.Val(), nil
}

func (d *Driver) ExpectDialog(ctx context.Context) (driver.DialogWait, error) {
	waitEvent, handle := d.page.Context(ctx).HandleDialog()

	opened := make(chan *proto.PageJavascriptDialogOpening, 1)
	go func() {
		if e := waitEvent(); e != nil && ctx.Err() == nil {
			opened <- e
		}
	}()

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
		case e := <-opened:
			got = &dialog{message: e.Message, handle: handle}
			return got, nil
		case <-wctx.Done():
			return nil, driver.ErrNoDialog
		case <-ctx.Done():
			return nil, driver.ErrNoDialog
		}
	}, nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	png, err := d.p(ctx).Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return png, nil
}

func (d *Driver) Close() error {
	if d.page != nil {
		_ = d.page.Close()
	}
	return d.cleanup()
}

func (d *Driver) cleanup() error {
	var err error
	if d.browser != nil {
		err = d.browser.Close()
	}
	if d.launcher != nil {
		d.launcher.Cleanup()
	}
	return err
}

type element struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *element) e(ctx context.Context) *rod.Element {
	return e.el.Context(ctx).Timeout(e.timeout)
}

func (e *element) Click(ctx context.Context) error {
	if err := e.e(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click element: %w", mapError(err))
	}
	return nil
}

func (e *element) Clear(ctx context.Context) error {
	if err := e.e(ctx).SelectAllText(); err != nil {
		return fmt.Errorf("failed to select text: %w", mapError(err))
	}
	if err := e.e(ctx).Input(""); err != nil {
		return fmt.Errorf("failed to clear input: %w", mapError(err))
	}
	return nil
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	if err := e.e(ctx).Input(text); err != nil {
		return fmt.Errorf("failed to input text: %w", mapError(err))
	}
	return nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	text, err := e.e(ctx).Text()
	if err != nil {
		return "", fmt.Errorf("failed to get text: %w", mapError(err))
	}
	return text, nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	if name == "value" {
		res, err := e.eval(ctx, `return this.value == null ? "" : String(this.value)`)
		if err != nil {
			return "", err
		}
		return res.Str(), nil
	}
	v, err := e.e(ctx).Attribute(name)
	if err != nil {
		return "", fmt.Errorf("failed to get attribute %s: %w", name, mapError(err))
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	ok, err := e.e(ctx).Visible()
	if err != nil {
		return false, fmt.Errorf("failed to check visibility: %w", mapError(err))
	}
	return ok, nil
}

func (e *element) IsSelected(ctx context.Context) (bool, error) {
	res, err := e.eval(ctx, `return !!(this.checked || this.selected)`)
	if err != nil {
		return false, err
	}
	return res.Bool(), nil
}

func (e *element) IsEnabled(ctx context.Context) (bool, error) {
	res, err := e.eval(ctx, `return !this.disabled`)
	if err != nil {
		return false, err
	}
	return res.Bool(), nil
}

type jsonValue interface {
	Str() string
	Bool() bool
}

func (e *element) eval(ctx context.Context, body string) (jsonValue, error) {
	res, err := e.e(ctx).Eval("function() { " + body + " }")
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate on element: %w", mapError(err))
	}
	return res.Value, nil
}

type dialog struct {
	message string
	prompt  string
	handle  func(*proto.PageHandleJavaScriptDialog) error
}

func (d *dialog) Text() string { return d.message }

func (d *dialog) Accept(ctx context.Context) error {
	return d.handle(&proto.PageHandleJavaScriptDialog{Accept: true, PromptText: d.prompt})
}

func (d *dialog) Dismiss(ctx context.Context) error {
	return d.handle(&proto.PageHandleJavaScriptDialog{Accept: false})
}

func (d *dialog) SendKeys(ctx context.Context, text string) error {
	d.prompt += text
	return nil
}

// mapError translates rod and CDP failures into the driver sentinels.
func mapError(err error) error {
	var (
		covered   *rod.CoveredError
		noPointer *rod.NoPointerEventsError
		invisible *rod.InvisibleShapeError
		notFound  *rod.ElementNotFoundError
		cdpErr    *cdp.Error
	)
	switch {
	case errors.As(err, &covered), errors.As(err, &noPointer), errors.As(err, &invisible):
		return fmt.Errorf("%w: %w", driver.ErrClickIntercepted, err)
	case errors.As(err, &notFound):
		return fmt.Errorf("%w: %w", driver.ErrNoSuchElement, err)
	case errors.As(err, &cdpErr) && isStaleMessage(cdpErr.Message):
		return fmt.Errorf("%w: %w", driver.ErrStaleElement, err)
	}
	return err
}

func isStaleMessage(msg string) bool {
	for _, s := range []string{"Could not find node", "Node is detached", "Cannot find context", "Cannot find object"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
