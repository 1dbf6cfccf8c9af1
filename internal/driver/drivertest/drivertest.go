// Package drivertest provides an in-memory driver.Driver for unit tests of
// code built on the porting layer.
package drivertest

import (
	"context"
	"errors"
	"sync"

	"github.com/gti/jenkins-acceptance/internal/by"
	"github.com/gti/jenkins-acceptance/internal/driver"
)

// Driver answers FindElements from a table keyed by locator value.
type Driver struct {
	mu sync.Mutex

	URL      string
	Visited  []string
	Scripts  []string
	Elements map[string][]*Element
	// Script answers ExecuteScript; nil means every script returns nil.
	Script     func(script string, args []any) (any, error)
	OnNavigate func(url string)
	PNG        []byte
	Closed     bool

	dialogs chan *Dialog
}

var _ driver.Driver = (*Driver)(nil)

func New() *Driver {
	return &Driver{
		URL:      "about:blank",
		Elements: map[string][]*Element{},
		PNG:      []byte("\x89PNG\r\n\x1a\n"),
		dialogs:  make(chan *Dialog, 8),
	}
}

// Set replaces the elements matched by loc.
func (d *Driver) Set(loc by.Locator, els ...*Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Elements[loc.Value] = els
}

// Open queues a dialog as if the page had raised one.
func (d *Driver) Open(dlg *Dialog) {
	d.dialogs <- dlg
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.URL = url
	d.Visited = append(d.Visited, url)
	hook := d.OnNavigate
	d.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.URL, ctx.Err()
}

func (d *Driver) FindElements(ctx context.Context, loc by.Locator) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []driver.Element
	for _, el := range d.Elements[loc.Value] {
		out = append(out, el)
	}
	return out, nil
}

func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.Scripts = append(d.Scripts, script)
	fn := d.Script
	d.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(script, args)
}

func (d *Driver) ExpectDialog(ctx context.Context) (driver.DialogWait, error) {
	var (
		mu  sync.Mutex
		got *Dialog
	)
	return func(ctx context.Context) (driver.Dialog, error) {
		mu.Lock()
		defer mu.Unlock()
		if got != nil {
			return got, nil
		}
		select {
		case got = <-d.dialogs:
			return got, nil
		case <-ctx.Done():
			return nil, driver.ErrNoDialog
		}
	}, nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	return d.PNG, ctx.Err()
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// Element is a scriptable fake. Click toggles Selected for checkboxes and
// selects radios unless OnClick is set or ClickErr is non-nil.
type Element struct {
	mu sync.Mutex

	Tag      string
	Attrs    map[string]string
	Content  string
	Value    string
	Hidden   bool
	Selected bool
	Disabled bool
	Stale    bool

	// ClickErr is returned from the next Click, then cleared.
	ClickErr error
	OnClick  func() error
	Clicks   int
}

var _ driver.Element = (*Element)(nil)

func (e *Element) Click(ctx context.Context) error {
	e.mu.Lock()
	if e.Stale {
		e.mu.Unlock()
		return driver.ErrStaleElement
	}
	if err := e.ClickErr; err != nil {
		e.ClickErr = nil
		e.mu.Unlock()
		return err
	}
	e.Clicks++
	hook := e.OnClick
	if hook == nil {
		switch e.Attrs["type"] {
		case "checkbox":
			e.Selected = !e.Selected
		case "radio":
			e.Selected = true
		}
	}
	e.mu.Unlock()

	if hook != nil {
		return hook()
	}
	return nil
}

func (e *Element) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Stale {
		return driver.ErrStaleElement
	}
	e.Value = ""
	return nil
}

func (e *Element) SendKeys(ctx context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Stale {
		return driver.ErrStaleElement
	}
	e.Value += text
	return nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Stale {
		return "", driver.ErrStaleElement
	}
	if e.Hidden {
		return "", nil
	}
	return e.Content, nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Stale {
		return "", driver.ErrStaleElement
	}
	if name == "value" {
		return e.Value, nil
	}
	return e.Attrs[name], nil
}

func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Stale {
		return false, driver.ErrStaleElement
	}
	return !e.Hidden, nil
}

func (e *Element) IsSelected(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Stale {
		return false, driver.ErrStaleElement
	}
	return e.Selected, nil
}

func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Stale {
		return false, driver.ErrStaleElement
	}
	return !e.Disabled, nil
}

// SetSelected flips Selected under the lock, for Script handlers that emulate
// a script click.
func (e *Element) SetSelected(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Selected = v
}

// Dialog records how it was handled.
type Dialog struct {
	mu sync.Mutex

	Message   string
	Accepted  bool
	Dismissed bool
	Keys      string
}

var _ driver.Dialog = (*Dialog)(nil)

var errHandled = errors.New("dialog already handled")

func (d *Dialog) Text() string { return d.Message }

func (d *Dialog) Accept(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Accepted || d.Dismissed {
		return errHandled
	}
	d.Accepted = true
	return nil
}

func (d *Dialog) Dismiss(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Accepted || d.Dismissed {
		return errHandled
	}
	d.Dismissed = true
	return nil
}

func (d *Dialog) SendKeys(ctx context.Context, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Keys += text
	return nil
}

// WasAccepted reports Accepted under the lock.
func (d *Dialog) WasAccepted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Accepted
}
