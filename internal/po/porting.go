// Package po holds the page objects for the CI server UI and the porting
// layer they share: element lookup with visibility polling, form helpers,
// native dialog handling and bounded waits over a driver.Driver.
package po

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/gti/jenkins-acceptance/internal/by"
	"github.com/gti/jenkins-acceptance/internal/driver"
	"github.com/gti/jenkins-acceptance/internal/jenkinsapi"
	"github.com/gti/jenkins-acceptance/internal/wait"
)

const (
	// FindTimeout bounds how long Find polls for a visible match.
	FindTimeout = time.Second
	// AlertTimeout is the default wait for a native dialog.
	AlertTimeout = 10 * time.Second
	alertPolling = 500 * time.Millisecond
)

const (
	clickScript = "arguments[0].click();"
	blurScript  = "var obj = arguments[0];" +
		"var ev = document.createEvent('MouseEvents');" +
		"ev.initEvent('blur', true, false);" +
		"obj.dispatchEvent(ev);" +
		"return true;"
	pageSourceScript = "return document.getElementsByTagName('html')[0].outerHTML"
	hrefScript       = "return document.location.href"
)

// LocateError reports a locator that matched nothing usable on a page.
// errors.Is(err, driver.ErrNoSuchElement) holds.
type LocateError struct {
	Locator by.Locator
	URL     string
	Err     error
}

func (e *LocateError) Error() string {
	msg := fmt.Sprintf("unable to locate %s in %s", e.Locator, e.URL)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LocateError) Is(target error) bool { return target == driver.ErrNoSuchElement }

func (e *LocateError) Unwrap() error { return e.Err }

// PortingLayer wraps a driver with the retrying primitives page objects use.
type PortingLayer struct {
	Driver driver.Driver
	API    *jenkinsapi.Client
	Time   wait.ElasticTime
	// Resources backs Resource; nil means no resources are available.
	Resources fs.FS
}

func NewPortingLayer(d driver.Driver, api *jenkinsapi.Client, et wait.ElasticTime) *PortingLayer {
	return &PortingLayer{Driver: d, API: api, Time: et}
}

func (p *PortingLayer) CurrentURL(ctx context.Context) (string, error) {
	u, err := p.Driver.CurrentURL(ctx)
	if err != nil {
		return "", err
	}
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	return u, nil
}

// CurrentURLWithFragment asks the page itself, keeping any #fragment.
func (p *PortingLayer) CurrentURLWithFragment(ctx context.Context) (string, error) {
	v, err := p.ExecuteScript(ctx, hrefScript)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(v), nil
}

func (p *PortingLayer) Visit(ctx context.Context, url string) error {
	log.Debug().Str("url", url).Msg("visit")
	return p.Driver.Navigate(ctx, url)
}

func (p *PortingLayer) ClickButton(ctx context.Context, text string) error {
	el, err := p.Find(ctx, by.Button(text))
	if err != nil {
		return err
	}
	return el.Click(ctx)
}

// Choose clicks the radio button matching locator and returns it.
func (p *PortingLayer) Choose(ctx context.Context, locator string) (driver.Element, error) {
	el, err := p.Find(ctx, by.RadioButton(locator))
	if err != nil {
		return nil, err
	}
	if err := el.Click(ctx); err != nil {
		return nil, err
	}
	return el, nil
}

func (p *PortingLayer) ClickLink(ctx context.Context, locator string) error {
	el, err := p.Find(ctx, by.Link(locator))
	if err != nil {
		return err
	}
	return el.Click(ctx)
}

// WaitFor returns the default wait (500ms polling, 120s timeout) with the
// porting layer as subject.
func (p *PortingLayer) WaitFor() *wait.Wait[*PortingLayer] {
	return WaitForSubject(p, p)
}

// WaitForSubject returns the default wait for an arbitrary subject.
func WaitForSubject[T any](p *PortingLayer, subject T) *wait.Wait[T] {
	return wait.New(subject, p.Time).
		PollingEvery(wait.DefaultPolling).
		WithTimeout(wait.DefaultTimeout)
}

// WaitForElement waits for a visible element matching loc.
func (p *PortingLayer) WaitForElement(ctx context.Context, loc by.Locator) (driver.Element, error) {
	return p.waitForElement(ctx, loc, p.WaitFor())
}

func (p *PortingLayer) WaitForElementTimeout(ctx context.Context, loc by.Locator, timeout time.Duration) (driver.Element, error) {
	return p.waitForElement(ctx, loc, p.WaitFor().WithTimeout(timeout))
}

func (p *PortingLayer) waitForElement(ctx context.Context, loc by.Locator, w *wait.Wait[*PortingLayer]) (driver.Element, error) {
	w = w.WithMessage("Element matching %s is present", loc).Ignoring(driver.ErrNoSuchElement)
	return wait.UntilValue(ctx, w, func(ctx context.Context, p *PortingLayer) (driver.Element, error) {
		return p.Find(ctx, loc)
	})
}

func (p *PortingLayer) WaitForCond(ctx context.Context, cond func(ctx context.Context) (bool, error)) error {
	return p.WaitFor().Until(ctx, func(ctx context.Context, _ *PortingLayer) (bool, error) {
		return cond(ctx)
	})
}

func (p *PortingLayer) WaitForCondTimeout(ctx context.Context, cond func(ctx context.Context) (bool, error), timeout time.Duration) error {
	return p.WaitFor().WithTimeout(timeout).Until(ctx, func(ctx context.Context, _ *PortingLayer) (bool, error) {
		return cond(ctx)
	})
}

// WaitForMatch waits until m matches subject, using the matcher's
// description as the timeout message.
func WaitForMatch[T any](ctx context.Context, p *PortingLayer, subject T, m Matcher[T], timeout time.Duration) error {
	return WaitForSubject(p, subject).
		WithMessage("%s", m.Describe()).
		WithTimeout(timeout).
		Until(ctx, m.Matches)
}

// Find returns the first visible element matching loc, polling briefly for
// one to appear. Stale elements count as invisible.
func (p *PortingLayer) Find(ctx context.Context, loc by.Locator) (driver.Element, error) {
	w := p.WaitFor().
		WithTimeout(FindTimeout).
		WithMessage("Wait for the element (%s) to become visible", loc)

	el, err := wait.UntilValue(ctx, w, func(ctx context.Context, p *PortingLayer) (driver.Element, error) {
		els, err := p.Driver.FindElements(ctx, loc)
		if err != nil {
			return nil, err
		}
		for _, el := range els {
			if isDisplayed(ctx, el) {
				return el, nil
			}
		}
		return nil, nil
	})
	if err == nil {
		return el, nil
	}
	if errors.Is(err, wait.ErrTimeout) || errors.Is(err, driver.ErrNoSuchElement) {
		return nil, p.locateError(ctx, loc, err)
	}
	return nil, err
}

func isDisplayed(ctx context.Context, el driver.Element) bool {
	ok, err := el.IsDisplayed(ctx)
	return err == nil && ok
}

func (p *PortingLayer) locateError(ctx context.Context, loc by.Locator, cause error) error {
	url, err := p.Driver.CurrentURL(ctx)
	if err != nil {
		url = "<unknown>"
	}
	return &LocateError{Locator: loc, URL: url, Err: cause}
}

// FindIfNotVisible returns the first match regardless of visibility, without
// polling.
func (p *PortingLayer) FindIfNotVisible(ctx context.Context, loc by.Locator) (driver.Element, error) {
	els, err := p.All(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, p.locateError(ctx, loc, nil)
	}
	return els[0], nil
}

// GetElement returns the first match or nil.
func (p *PortingLayer) GetElement(ctx context.Context, loc by.Locator) (driver.Element, error) {
	els, err := p.All(ctx, loc)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

func (p *PortingLayer) All(ctx context.Context, loc by.Locator) ([]driver.Element, error) {
	return p.Driver.FindElements(ctx, loc)
}

// Last waits for a visible match, then returns the last match.
func (p *PortingLayer) Last(ctx context.Context, loc by.Locator) (driver.Element, error) {
	if _, err := p.Find(ctx, loc); err != nil {
		return nil, err
	}
	return p.last(ctx, loc)
}

func (p *PortingLayer) LastIfNotVisible(ctx context.Context, loc by.Locator) (driver.Element, error) {
	if _, err := p.FindIfNotVisible(ctx, loc); err != nil {
		return nil, err
	}
	return p.last(ctx, loc)
}

func (p *PortingLayer) last(ctx context.Context, loc by.Locator) (driver.Element, error) {
	els, err := p.All(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, p.locateError(ctx, loc, nil)
	}
	return els[len(els)-1], nil
}

// FillIn replaces the value of the form field named name.
func (p *PortingLayer) FillIn(ctx context.Context, name string, value any) error {
	el, err := p.WaitForElement(ctx, by.Name(name))
	if err != nil {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		return err
	}
	return el.SendKeys(ctx, fmt.Sprint(value))
}

func (p *PortingLayer) Check(ctx context.Context, el driver.Element) error {
	return p.CheckState(ctx, el, true)
}

// CheckState clicks el until its selection matches state. A click swallowed
// by an overlay (tooltips do this) is retried by script.
func (p *PortingLayer) CheckState(ctx context.Context, el driver.Element, state bool) error {
	selected, err := el.IsSelected(ctx)
	if err != nil {
		return err
	}
	if selected != state {
		if err := el.Click(ctx); err != nil {
			if !errors.Is(err, driver.ErrClickIntercepted) {
				return err
			}
			if _, err := p.ExecuteScript(ctx, clickScript, el); err != nil {
				return err
			}
		}
	}

	selected, err = el.IsSelected(ctx)
	if err != nil {
		return err
	}
	if selected != state {
		_, err = p.ExecuteScript(ctx, clickScript, el)
	}
	return err
}

// CheckLocator ticks the checkbox matching locator.
func (p *PortingLayer) CheckLocator(ctx context.Context, locator string) error {
	el, err := p.Find(ctx, by.Checkbox(locator))
	if err != nil {
		return err
	}
	return p.Check(ctx, el)
}

// Blur fires a bubbling blur event at el, which triggers client-side form
// validation.
func (p *PortingLayer) Blur(ctx context.Context, el driver.Element) error {
	_, err := p.ExecuteScript(ctx, blurScript, el)
	return err
}

func (p *PortingLayer) ExecuteScript(ctx context.Context, script string, args ...any) (any, error) {
	return p.Driver.ExecuteScript(ctx, script, args...)
}

// IsStale reports whether el has been detached from the document.
func (p *PortingLayer) IsStale(ctx context.Context, el driver.Element) bool {
	_, err := el.IsEnabled(ctx)
	return errors.Is(err, driver.ErrStaleElement)
}

// HandleAlert waits for an already-triggered dialog and passes it to action.
func (p *PortingLayer) HandleAlert(ctx context.Context, action func(context.Context, driver.Dialog) error) error {
	return p.RunThenHandleAlert(ctx, nil, action, AlertTimeout)
}

// RunThenHandleAlert runs run, waits up to timeout for the dialog it opens
// and passes the dialog to action. run may block until the dialog is
// handled; it is executed concurrently and its error is returned once
// action completes. run gets another timeout to return after that.
func (p *PortingLayer) RunThenHandleAlert(ctx context.Context, run func(context.Context) error, action func(context.Context, driver.Dialog) error, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = AlertTimeout
	}

	waitDialog, err := p.Driver.ExpectDialog(ctx)
	if err != nil {
		return fmt.Errorf("failed to arm dialog handler: %w", err)
	}

	runErr := make(chan error, 1)
	if run == nil {
		runErr <- nil
	} else {
		go func() { runErr <- run(ctx) }()
	}

	w := wait.New(p.Driver, p.Time).
		PollingEvery(alertPolling).
		WithTimeout(timeout).
		WithMessage("alert is present").
		Ignoring(driver.ErrNoDialog)

	dlg, err := wait.UntilValue(ctx, w, func(ctx context.Context, _ driver.Driver) (driver.Dialog, error) {
		pollCtx, cancel := context.WithTimeout(ctx, alertPolling)
		defer cancel()
		return waitDialog(pollCtx)
	})
	if err != nil {
		select {
		case rerr := <-runErr:
			return errors.Join(err, rerr)
		default:
			return err
		}
	}

	log.Debug().Str("dialog", dlg.Text()).Msg("handling dialog")
	if err := action(ctx, dlg); err != nil {
		return fmt.Errorf("failed to handle dialog %q: %w", dlg.Text(), err)
	}

	return p.awaitRun(ctx, runErr, timeout)
}

// awaitRun collects the error of the action that raised a dialog, giving it
// up to timeout to return once the dialog is handled.
func (p *PortingLayer) awaitRun(ctx context.Context, runErr <-chan error, timeout time.Duration) error {
	timer := time.NewTimer(p.Time.Scale(timeout))
	defer timer.Stop()

	select {
	case err := <-runErr:
		return err
	case <-timer.C:
		return fmt.Errorf("action still running %v after the dialog was handled: %w", p.Time.Scale(timeout), wait.ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Accept is the dialog action of ConfirmAlert.
func Accept(ctx context.Context, d driver.Dialog) error {
	return d.Accept(ctx)
}

func Dismiss(ctx context.Context, d driver.Dialog) error {
	return d.Dismiss(ctx)
}

func (p *PortingLayer) ConfirmAlert(ctx context.Context, timeout time.Duration) error {
	return p.RunThenHandleAlert(ctx, nil, Accept, timeout)
}

func (p *PortingLayer) RunThenConfirmAlert(ctx context.Context, run func(context.Context) error, timeout time.Duration) error {
	return p.RunThenHandleAlert(ctx, run, Accept, timeout)
}

// Sleep pauses for d or until ctx is done.
func (p *PortingLayer) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PortingLayer) ElasticSleep(ctx context.Context, d time.Duration) error {
	return p.Sleep(ctx, p.Time.Scale(d))
}

// PageSource returns the serialized <html> element.
func (p *PortingLayer) PageSource(ctx context.Context) (string, error) {
	v, err := p.ExecuteScript(ctx, pageSourceScript)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// PageContent returns the visible text of the page.
func (p *PortingLayer) PageContent(ctx context.Context) (string, error) {
	el, err := p.FindIfNotVisible(ctx, by.CSS("html"))
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

// Resource reads a test resource from p.Resources.
func (p *PortingLayer) Resource(path string) ([]byte, error) {
	if p.Resources == nil {
		return nil, fmt.Errorf("no such resource %s: no resource filesystem configured", path)
	}
	b, err := fs.ReadFile(p.Resources, strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("no such resource %s: %w", path, err)
	}
	return b, nil
}
