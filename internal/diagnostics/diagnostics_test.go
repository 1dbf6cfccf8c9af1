package diagnostics

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gti/jenkins-acceptance/internal/driver/drivertest"
)

type outcome struct {
	test        string
	passed      bool
	url         string
	attachments []string
}

type fakeRecorder struct {
	outcomes []outcome
}

func (r *fakeRecorder) RecordOutcome(_ context.Context, test string, passed bool, url string, attachments []string) error {
	r.outcomes = append(r.outcomes, outcome{test, passed, url, attachments})
	return nil
}

type fakeT struct {
	name     string
	failed   bool
	cleanups []func()
	logs     []string
}

func (f *fakeT) Name() string { return f.name }
func (f *fakeT) Failed() bool { return f.failed }
func (f *fakeT) Cleanup(fn func()) { f.cleanups = append(f.cleanups, fn) }
func (f *fakeT) Logf(format string, _ ...any) { f.logs = append(f.logs, format) }

func (f *fakeT) finish() {
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
}

func TestTouchCreatesDirLazily(t *testing.T) {
	root := t.TempDir()
	d := New(root, "TestSome/sub case")

	assert.Equal(t, filepath.Join(root, "TestSome_sub_case"), d.Dir())
	assert.NoDirExists(t, d.Dir())

	path, err := d.Touch("notes.txt")
	require.NoError(t, err)
	assert.DirExists(t, d.Dir())
	assert.Equal(t, filepath.Join(d.Dir(), "notes.txt"), path)
	assert.NoFileExists(t, path)
}

func TestTouchRejectsFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "TestX"), []byte("x"), 0o644))

	_, err := New(root, "TestX").Touch("a")
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestSucceededRemovesEmptyDir(t *testing.T) {
	rec := &fakeRecorder{}
	d := New(t.TempDir(), "TestOK", WithRecorder(rec))
	_, err := d.Touch("unused")
	require.NoError(t, err)

	require.NoError(t, d.Succeeded(context.Background()))
	assert.NoDirExists(t, d.Dir())
	require.Len(t, rec.outcomes, 1)
	assert.True(t, rec.outcomes[0].passed)
}

func TestSucceededKeepsWrittenFiles(t *testing.T) {
	d := New(t.TempDir(), "TestKeeps")
	path, err := d.Write("log.txt", []byte("hello"))
	require.NoError(t, err)

	require.NoError(t, d.Succeeded(context.Background()))
	assert.FileExists(t, path)
}

func TestFailedCapturesAndPrintsAttachments(t *testing.T) {
	drv := drivertest.New()
	drv.URL = "http://ci/configure"
	drv.Script = func(string, []any) (any, error) { return "<html></html>", nil }
	rec := &fakeRecorder{}
	var out bytes.Buffer

	d := New(t.TempDir(), "TestBroken", WithDriver(drv), WithRecorder(rec), WithOutput(&out))
	require.NoError(t, d.Failed(context.Background()))

	files, err := d.Files()
	require.NoError(t, err)
	require.Len(t, files, 3)
	for _, name := range []string{PageFile, ScreenshotFile, URLFile} {
		abs, err := filepath.Abs(filepath.Join(d.Dir(), name))
		require.NoError(t, err)
		assert.Contains(t, out.String(), "[[ATTACHMENT|"+abs+"]]\n")
	}

	url, err := os.ReadFile(filepath.Join(d.Dir(), URLFile))
	require.NoError(t, err)
	assert.Equal(t, "http://ci/configure", string(url))

	page, err := os.ReadFile(filepath.Join(d.Dir(), PageFile))
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(page))

	require.Len(t, rec.outcomes, 1)
	assert.False(t, rec.outcomes[0].passed)
	assert.Equal(t, "http://ci/configure", rec.outcomes[0].url)
	assert.Equal(t, files, rec.outcomes[0].attachments)
}

func TestFailedWithoutDriverOrFiles(t *testing.T) {
	var out bytes.Buffer
	d := New(t.TempDir(), "TestNothing", WithOutput(&out))
	require.NoError(t, d.Failed(context.Background()))
	assert.Empty(t, out.String())
}

func TestWatch(t *testing.T) {
	root := t.TempDir()
	rec := &fakeRecorder{}

	passing := &fakeT{name: "TestPass"}
	Watch(passing, root, WithRecorder(rec))
	passing.finish()

	failing := &fakeT{name: "TestFail", failed: true}
	var out bytes.Buffer
	d := Watch(failing, root, WithRecorder(rec), WithOutput(&out))
	_, err := d.Write("extra.log", []byte("boom"))
	require.NoError(t, err)
	failing.finish()

	require.Len(t, rec.outcomes, 2)
	assert.Equal(t, "TestPass", rec.outcomes[0].test)
	assert.True(t, rec.outcomes[0].passed)
	assert.Equal(t, "TestFail", rec.outcomes[1].test)
	assert.False(t, rec.outcomes[1].passed)
	assert.Contains(t, out.String(), "extra.log]]")
	assert.Empty(t, failing.logs)
}
