// Package seldriver implements driver.Driver on a remote WebDriver endpoint
// (Selenium Grid or a standalone browser container).
package seldriver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/tebeka/selenium"

	"github.com/gti/jenkins-acceptance/internal/by"
	"github.com/gti/jenkins-acceptance/internal/driver"
)

type Options struct {
	RemoteURL   string
	BrowserName string
	Headless    bool
}

// dialogPoll is how often an armed DialogWait asks the endpoint for an alert.
const dialogPoll = 100 * time.Millisecond

type Driver struct {
	wd selenium.WebDriver
}

var _ driver.Driver = (*Driver)(nil)

func New(ctx context.Context, opts Options) (*Driver, error) {
	if opts.BrowserName == "" {
		opts.BrowserName = "chrome"
	}
	caps := selenium.Capabilities{"browserName": opts.BrowserName}
	if opts.Headless && opts.BrowserName == "chrome" {
		caps["goog:chromeOptions"] = map[string]any{"args": []string{"--headless=new", "--window-size=1280,1024"}}
	}

	wd, err := selenium.NewRemote(caps, opts.RemoteURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote session at %s: %w", opts.RemoteURL, err)
	}

	log.Debug().Str("remote", opts.RemoteURL).Str("browser", opts.BrowserName).Msg("selenium session opened")
	return &Driver{wd: wd}, nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.wd.Get(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, mapError(err))
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	url, err := d.wd.CurrentURL()
	if err != nil {
		return "", fmt.Errorf("failed to read current url: %w", mapError(err))
	}
	return url, nil
}

func (d *Driver) FindElements(ctx context.Context, loc by.Locator) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	strategy := selenium.ByCSSSelector
	if loc.Kind == by.KindXPath {
		strategy = selenium.ByXPATH
	}

	els, err := d.wd.FindElements(strategy, loc.Value)
	if err != nil {
		err = mapError(err)
		if errors.Is(err, driver.ErrNoSuchElement) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find %s: %w", loc, err)
	}

	out := make([]driver.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &element{we: el})
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
			converted[i] = e.we
			continue
		}
		converted[i] = a
	}

	res, err := d.wd.ExecuteScript(script, converted)
	if err != nil {
		return nil, fmt.Errorf("failed to execute script: %w", mapError(err))
	}
	return res, nil
}

// ExpectDialog polls the endpoint; WebDriver has no dialog event.
func (d *Driver) ExpectDialog(ctx context.Context) (driver.DialogWait, error) {
	return func(wctx context.Context) (driver.Dialog, error) {
		ticker := time.NewTicker(dialogPoll)
		defer ticker.Stop()
		for {
			text, err := d.wd.AlertText()
			if err == nil {
				return &dialog{wd: d.wd, message: text}, nil
			}
			select {
			case <-wctx.Done():
				return nil, driver.ErrNoDialog
			case <-ticker.C:
			}
		}
	}, nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	png, err := d.wd.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", mapError(err))
	}
	return png, nil
}

func (d *Driver) Close() error {
	return d.wd.Quit()
}

type element struct {
	we selenium.WebElement
}

func (e *element) Click(ctx context.Context) error {
	if err := e.we.Click(); err != nil {
		return fmt.Errorf("failed to click element: %w", mapError(err))
	}
	return nil
}

func (e *element) Clear(ctx context.Context) error {
	if err := e.we.Clear(); err != nil {
		return fmt.Errorf("failed to clear input: %w", mapError(err))
	}
	return nil
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	if err := e.we.SendKeys(text); err != nil {
		return fmt.Errorf("failed to input text: %w", mapError(err))
	}
	return nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	s, err := e.we.Text()
	if err != nil {
		return "", fmt.Errorf("failed to get text: %w", mapError(err))
	}
	return s, nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	v, err := e.we.GetAttribute(name)
	if err != nil {
		// A missing attribute comes back as a null value, not a WebDriver error.
		var se *selenium.Error
		if !errors.As(err, &se) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get attribute %s: %w", name, mapError(err))
	}
	return v, nil
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	ok, err := e.we.IsDisplayed()
	if err != nil {
		return false, fmt.Errorf("failed to check visibility: %w", mapError(err))
	}
	return ok, nil
}

func (e *element) IsSelected(ctx context.Context) (bool, error) {
	ok, err := e.we.IsSelected()
	if err != nil {
		return false, fmt.Errorf("failed to check selection: %w", mapError(err))
	}
	return ok, nil
}

func (e *element) IsEnabled(ctx context.Context) (bool, error) {
	ok, err := e.we.IsEnabled()
	if err != nil {
		return false, fmt.Errorf("failed to check enabled: %w", mapError(err))
	}
	return ok, nil
}

type dialog struct {
	wd      selenium.WebDriver
	message string
}

func (g *dialog) Text() string { return g.message }

func (g *dialog) Accept(ctx context.Context) error {
	return mapError(g.wd.AcceptAlert())
}

func (g *dialog) Dismiss(ctx context.Context) error {
	return mapError(g.wd.DismissAlert())
}

func (g *dialog) SendKeys(ctx context.Context, text string) error {
	return mapError(g.wd.SetAlertText(text))
}

// mapError translates W3C error codes into the driver sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var se *selenium.Error
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.Err == "no such element":
		return fmt.Errorf("%w: %w", driver.ErrNoSuchElement, err)
	case se.Err == "stale element reference":
		return fmt.Errorf("%w: %w", driver.ErrStaleElement, err)
	case se.Err == "element click intercepted":
		return fmt.Errorf("%w: %w", driver.ErrClickIntercepted, err)
	case se.Err == "no such alert", strings.Contains(se.Message, "no such alert"):
		return fmt.Errorf("%w: %w", driver.ErrNoDialog, err)
	}
	return err
}
