// Package diagnostics keeps a per-test directory of files describing a test
// failure. The directory is only created when something is written to it and
// is removed again when the test passes and left nothing behind.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/gti/jenkins-acceptance/internal/driver"
)

const (
	ScreenshotFile = "screenshot.png"
	PageFile       = "page.html"
	URLFile        = "url.txt"

	captureTimeout = 30 * time.Second
	pageSource     = "return document.getElementsByTagName('html')[0].outerHTML"
)

var ErrNotDirectory = errors.New("diagnostics path is not a directory")

// Recorder receives the outcome of each watched test.
type Recorder interface {
	RecordOutcome(ctx context.Context, test string, passed bool, url string, attachments []string) error
}

type Diagnostics struct {
	test     string
	dir      string
	driver   driver.Driver
	recorder Recorder
	out      io.Writer
}

type Option func(*Diagnostics)

// WithDriver captures the browser state on failure.
func WithDriver(d driver.Driver) Option {
	return func(diag *Diagnostics) { diag.driver = d }
}

func WithRecorder(r Recorder) Option {
	return func(diag *Diagnostics) { diag.recorder = r }
}

// WithOutput redirects the attachment lines, stdout by default.
func WithOutput(w io.Writer) Option {
	return func(diag *Diagnostics) { diag.out = w }
}

// New prepares diagnostics for testName under root. Nothing touches the disk
// until a file is written.
func New(root, testName string, opts ...Option) *Diagnostics {
	d := &Diagnostics{
		test: testName,
		dir:  filepath.Join(root, dirName(testName)),
		out:  os.Stdout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// subtest names contain slashes
func dirName(test string) string {
	return strings.NewReplacer("/", "_", `\`, "_", " ", "_").Replace(test)
}

func (d *Diagnostics) Dir() string { return d.dir }

func (d *Diagnostics) Test() string { return d.test }

// Touch makes sure the directory exists and returns the path of filename in it.
func (d *Diagnostics) Touch(filename string) (string, error) {
	info, err := os.Stat(d.dir)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, d.dir)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("failed to stat %s: %w", d.dir, err)
	case err != nil:
		if err := os.MkdirAll(d.dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", d.dir, err)
		}
	}
	return filepath.Join(d.dir, filename), nil
}

func (d *Diagnostics) Write(filename string, content []byte) (string, error) {
	path, err := d.Touch(filename)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// Succeeded removes the directory when it is empty and records a pass.
func (d *Diagnostics) Succeeded(ctx context.Context) error {
	entries, err := os.ReadDir(d.dir)
	if err == nil && len(entries) == 0 {
		if err := os.Remove(d.dir); err != nil {
			log.Warn().Err(err).Str("dir", d.dir).Msg("failed to remove empty diagnostics dir")
		}
	}
	return d.record(ctx, true, "", nil)
}

// Failed captures the browser state when a driver is attached, prints one
// attachment line per file and records the failure.
func (d *Diagnostics) Failed(ctx context.Context) error {
	var url string
	if d.driver != nil {
		url = d.capture(ctx)
	}

	files, err := d.Files()
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintf(d.out, "[[ATTACHMENT|%s]]\n", f)
	}
	return d.record(ctx, false, url, files)
}

// Files lists the absolute paths in the directory, sorted by name.
func (d *Diagnostics) Files() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", d.dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(d.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, abs)
	}
	return files, nil
}

// capture stores whatever the driver can still give, logging what it can't.
func (d *Diagnostics) capture(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	if png, err := d.driver.Screenshot(ctx); err != nil {
		log.Warn().Err(err).Str("test", d.test).Msg("screenshot failed")
	} else if _, err := d.Write(ScreenshotFile, png); err != nil {
		log.Warn().Err(err).Msg("failed to save screenshot")
	}

	if src, err := d.driver.ExecuteScript(ctx, pageSource); err != nil {
		log.Warn().Err(err).Str("test", d.test).Msg("page source failed")
	} else if _, err := d.Write(PageFile, []byte(fmt.Sprint(src))); err != nil {
		log.Warn().Err(err).Msg("failed to save page source")
	}

	url, err := d.driver.CurrentURL(ctx)
	if err != nil {
		log.Warn().Err(err).Str("test", d.test).Msg("current url failed")
		return ""
	}
	if _, err := d.Write(URLFile, []byte(url)); err != nil {
		log.Warn().Err(err).Msg("failed to save url")
	}
	return url
}

func (d *Diagnostics) record(ctx context.Context, passed bool, url string, files []string) error {
	if d.recorder == nil {
		return nil
	}
	return d.recorder.RecordOutcome(ctx, d.test, passed, url, files)
}

// T is the part of testing.TB Watch needs.
type T interface {
	Name() string
	Failed() bool
	Cleanup(func())
	Logf(format string, args ...any)
}

// Watch creates diagnostics for t and settles them when t finishes.
func Watch(t T, root string, opts ...Option) *Diagnostics {
	d := New(root, t.Name(), opts...)
	t.Cleanup(func() {
		ctx := context.Background()
		var err error
		if t.Failed() {
			err = d.Failed(ctx)
		} else {
			err = d.Succeeded(ctx)
		}
		if err != nil {
			t.Logf("diagnostics: %v", err)
		}
	})
	return d
}
