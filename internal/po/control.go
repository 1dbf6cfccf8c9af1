package po

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gti/jenkins-acceptance/internal/by"
	"github.com/gti/jenkins-acceptance/internal/driver"
	"github.com/gti/jenkins-acceptance/internal/wait"
)

// ValidationTimeout bounds how long FormValidation waits for a message to
// render after a change.
const ValidationTimeout = 2 * time.Second

// Control is a form input addressed by its path attribute, e.g.
// "/numExecutors" or "/useincluderegex/includeRegex".
type Control struct {
	pl   *PortingLayer
	Path string
}

func NewControl(pl *PortingLayer, path string) *Control {
	return &Control{pl: pl, Path: path}
}

func (c *Control) String() string { return "control " + c.Path }

// Resolve finds the visible input for the control.
func (c *Control) Resolve(ctx context.Context) (driver.Element, error) {
	return c.pl.Find(ctx, by.Path(c.Path))
}

// Set replaces the control's value and blurs it so client-side and ajax
// validation run.
func (c *Control) Set(ctx context.Context, value any) error {
	el, err := c.Resolve(ctx)
	if err != nil {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear %s: %w", c, err)
	}
	if err := el.SendKeys(ctx, fmt.Sprint(value)); err != nil {
		return fmt.Errorf("failed to type into %s: %w", c, err)
	}
	return c.pl.Blur(ctx, el)
}

// Check sets a checkbox control.
func (c *Control) Check(ctx context.Context, state ...bool) error {
	want := true
	if len(state) > 0 {
		want = state[0]
	}
	el, err := c.Resolve(ctx)
	if err != nil {
		return err
	}
	return c.pl.CheckState(ctx, el, want)
}

// Value returns the current value of the input.
func (c *Control) Value(ctx context.Context) (string, error) {
	el, err := c.Resolve(ctx)
	if err != nil {
		return "", err
	}
	return el.Attribute(ctx, "value")
}

func (c *Control) validationMessage() by.Locator {
	class := func(name string) string {
		return "contains(concat(' ', normalize-space(@class), ' '), ' " + name + " ')"
	}
	xpath := "//*[@path=" + by.Literal(c.Path) + "]" +
		"/ancestor::*[" + class("jenkins-form-item") + "][1]" +
		"//*[" + class("validation-error-area") + "]" +
		"/*[" + class("error") + " or " + class("warning") + " or " + class("ok") + "]"
	return by.Locator{Kind: by.KindXPath, Value: xpath, Description: "validation message of " + c.Path}
}

// FormValidation reads the validation message rendered under the control.
// No message within ValidationTimeout means the value is silently accepted.
func (c *Control) FormValidation(ctx context.Context) (FormValidation, error) {
	loc := c.validationMessage()

	w := WaitForSubject(c.pl, c).
		WithTimeout(ValidationTimeout).
		PollingEvery(200 * time.Millisecond).
		WithMessage("form validation of %s", c.Path)

	el, err := wait.UntilValue(ctx, w, func(ctx context.Context, c *Control) (driver.Element, error) {
		els, err := c.pl.All(ctx, loc)
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
	if errors.Is(err, wait.ErrTimeout) {
		return FormValidation{Kind: KindOK}, nil
	}
	if err != nil {
		return FormValidation{}, err
	}

	class, err := el.Attribute(ctx, "class")
	if err != nil {
		return FormValidation{}, err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return FormValidation{}, err
	}
	return FormValidation{Kind: kindFromClass(class), Message: strings.TrimSpace(text)}, nil
}

// ValidationKind is the severity of a form validation message.
type ValidationKind string

const (
	KindOK      ValidationKind = "OK"
	KindWarning ValidationKind = "WARNING"
	KindError   ValidationKind = "ERROR"
)

func kindFromClass(class string) ValidationKind {
	for _, c := range strings.Fields(class) {
		switch c {
		case "error":
			return KindError
		case "warning":
			return KindWarning
		}
	}
	return KindOK
}

// FormValidation is the verdict the server rendered for one form field.
type FormValidation struct {
	Kind    ValidationKind
	Message string
}

// Silent reports an accepted value with nothing to say about it.
func (f FormValidation) Silent() bool {
	return f.Kind == KindOK && f.Message == ""
}

// Reports checks for a specific verdict.
func (f FormValidation) Reports(kind ValidationKind, message string) bool {
	return f.Kind == kind && f.Message == message
}

func (f FormValidation) String() string {
	if f.Silent() {
		return "silent"
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}
