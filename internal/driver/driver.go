// Package driver defines the browser primitives the page objects need. Each
// backend subpackage adapts one automation library to these interfaces.
package driver

import (
	"context"
	"errors"

	"github.com/gti/jenkins-acceptance/internal/by"
)

var (
	ErrNoSuchElement    = errors.New("no such element")
	ErrStaleElement     = errors.New("stale element reference")
	ErrClickIntercepted = errors.New("element click intercepted")
	ErrNoDialog         = errors.New("no dialog present")
)

// Driver is one browser tab.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	// FindElements returns every match in document order. No match is an
	// empty slice, not an error.
	FindElements(ctx context.Context, loc by.Locator) ([]Element, error)
	// ExecuteScript runs script as a function body. Arguments are reachable
	// through the arguments array; Elements are passed as DOM nodes.
	ExecuteScript(ctx context.Context, script string, args ...any) (any, error)
	// ExpectDialog arms dialog capture. It must be called before the action
	// that opens the dialog.
	ExpectDialog(ctx context.Context) (DialogWait, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// DialogWait blocks until a dialog opens or ctx is done, in which case it
// returns ErrNoDialog. It may be called repeatedly.
type DialogWait func(ctx context.Context) (Dialog, error)

type Element interface {
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Text(ctx context.Context) (string, error)
	// Attribute returns "" for a missing attribute.
	Attribute(ctx context.Context, name string) (string, error)
	IsDisplayed(ctx context.Context) (bool, error)
	IsSelected(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
}

// Dialog is a native alert, confirm, prompt or beforeunload box.
type Dialog interface {
	Text() string
	Accept(ctx context.Context) error
	Dismiss(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
}
