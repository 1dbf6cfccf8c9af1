package po

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gti/jenkins-acceptance/internal/by"
	"github.com/gti/jenkins-acceptance/internal/driver"
	"github.com/gti/jenkins-acceptance/internal/driver/drivertest"
	"github.com/gti/jenkins-acceptance/internal/wait"
)

// quick shrinks every timeout so failing lookups return in milliseconds.
var quick = wait.ElasticTime{Factor: 0.01}

func newLayer(t *testing.T) (*PortingLayer, *drivertest.Driver) {
	t.Helper()
	d := drivertest.New()
	d.URL = "http://ci.test/job/x/"
	return NewPortingLayer(d, nil, quick), d
}

func TestFindReturnsFirstVisible(t *testing.T) {
	pl, d := newLayer(t)
	hidden := &drivertest.Element{Hidden: true}
	stale := &drivertest.Element{Stale: true}
	visible := &drivertest.Element{Content: "Save"}
	d.Set(by.Button("Save"), hidden, stale, visible)

	el, err := pl.Find(context.Background(), by.Button("Save"))
	require.NoError(t, err)
	assert.Same(t, visible, el)
}

func TestFindReportsLocatorAndURL(t *testing.T) {
	pl, d := newLayer(t)
	d.Set(by.Button("Save"), &drivertest.Element{Hidden: true})

	_, err := pl.Find(context.Background(), by.Button("Save"))
	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrNoSuchElement)
	assert.ErrorIs(t, err, wait.ErrTimeout)
	assert.Contains(t, err.Error(), "unable to locate button Save in http://ci.test/job/x/")
}

func TestFindIfNotVisible(t *testing.T) {
	pl, d := newLayer(t)
	hidden := &drivertest.Element{Hidden: true}
	d.Set(by.CSS("input.secret"), hidden)

	el, err := pl.FindIfNotVisible(context.Background(), by.CSS("input.secret"))
	require.NoError(t, err)
	assert.Same(t, hidden, el)

	_, err = pl.FindIfNotVisible(context.Background(), by.CSS("nope"))
	assert.ErrorIs(t, err, driver.ErrNoSuchElement)
}

func TestGetElementAllAndLast(t *testing.T) {
	pl, d := newLayer(t)
	first := &drivertest.Element{Content: "1"}
	second := &drivertest.Element{Content: "2", Hidden: true}
	d.Set(by.CSS("li"), first, second)

	el, err := pl.GetElement(context.Background(), by.CSS("li"))
	require.NoError(t, err)
	assert.Same(t, first, el)

	el, err = pl.GetElement(context.Background(), by.CSS("missing"))
	require.NoError(t, err)
	assert.Nil(t, el)

	all, err := pl.All(context.Background(), by.CSS("li"))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	el, err = pl.Last(context.Background(), by.CSS("li"))
	require.NoError(t, err)
	assert.Same(t, second, el)

	el, err = pl.LastIfNotVisible(context.Background(), by.CSS("li"))
	require.NoError(t, err)
	assert.Same(t, second, el)
}

func TestWaitForElementAppearsLater(t *testing.T) {
	pl, d := newLayer(t)
	pl.Time = wait.ElasticTime{Factor: 0.05}

	go func() {
		time.Sleep(100 * time.Millisecond)
		d.Set(by.ID("late"), &drivertest.Element{})
	}()

	el, err := pl.WaitForElement(context.Background(), by.ID("late"))
	require.NoError(t, err)
	assert.NotNil(t, el)
}

func TestWaitForElementTimeoutMessage(t *testing.T) {
	pl, _ := newLayer(t)

	_, err := pl.WaitForElementTimeout(context.Background(), by.ID("never"), time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, wait.ErrTimeout)
	assert.Contains(t, err.Error(), "Element matching id never is present")
}

func TestFillIn(t *testing.T) {
	pl, d := newLayer(t)
	field := &drivertest.Element{Value: "old"}
	d.Set(by.Name("numExecutors"), field)

	require.NoError(t, pl.FillIn(context.Background(), "numExecutors", 16))
	assert.Equal(t, "16", field.Value)
}

func TestCheckState(t *testing.T) {
	t.Run("clicks when state differs", func(t *testing.T) {
		pl, _ := newLayer(t)
		box := &drivertest.Element{Attrs: map[string]string{"type": "checkbox"}}

		require.NoError(t, pl.Check(context.Background(), box))
		assert.True(t, box.Selected)
		assert.Equal(t, 1, box.Clicks)
	})

	t.Run("leaves matching state alone", func(t *testing.T) {
		pl, _ := newLayer(t)
		box := &drivertest.Element{Attrs: map[string]string{"type": "checkbox"}, Selected: true}

		require.NoError(t, pl.CheckState(context.Background(), box, true))
		assert.Equal(t, 0, box.Clicks)
	})

	t.Run("falls back to script click when intercepted", func(t *testing.T) {
		pl, d := newLayer(t)
		box := &drivertest.Element{
			Attrs:    map[string]string{"type": "checkbox"},
			ClickErr: driver.ErrClickIntercepted,
		}
		d.Script = func(script string, args []any) (any, error) {
			if script == clickScript {
				args[0].(*drivertest.Element).SetSelected(true)
			}
			return nil, nil
		}

		require.NoError(t, pl.Check(context.Background(), box))
		assert.True(t, box.Selected)
		assert.Equal(t, []string{clickScript}, d.Scripts)
	})

	t.Run("script click again when click did not stick", func(t *testing.T) {
		pl, d := newLayer(t)
		box := &drivertest.Element{OnClick: func() error { return nil }}
		d.Script = func(script string, args []any) (any, error) {
			args[0].(*drivertest.Element).SetSelected(true)
			return nil, nil
		}

		require.NoError(t, pl.CheckState(context.Background(), box, true))
		assert.Equal(t, 1, box.Clicks)
		assert.True(t, box.Selected)
	})

	t.Run("other click errors propagate", func(t *testing.T) {
		pl, _ := newLayer(t)
		boom := errors.New("boom")
		box := &drivertest.Element{ClickErr: boom}

		assert.ErrorIs(t, pl.Check(context.Background(), box), boom)
	})
}

func TestCheckLocatorAndChoose(t *testing.T) {
	pl, d := newLayer(t)
	box := &drivertest.Element{Attrs: map[string]string{"type": "checkbox"}}
	radio := &drivertest.Element{Attrs: map[string]string{"type": "radio"}}
	d.Set(by.Checkbox("useincluderegex"), box)
	d.Set(by.RadioButton("List View"), radio)

	require.NoError(t, pl.CheckLocator(context.Background(), "useincluderegex"))
	assert.True(t, box.Selected)

	el, err := pl.Choose(context.Background(), "List View")
	require.NoError(t, err)
	assert.Same(t, radio, el)
	assert.True(t, radio.Selected)
}

func TestBlurDispatchesEvent(t *testing.T) {
	pl, d := newLayer(t)
	el := &drivertest.Element{}
	var got []any
	d.Script = func(script string, args []any) (any, error) {
		got = args
		return true, nil
	}

	require.NoError(t, pl.Blur(context.Background(), el))
	require.Len(t, d.Scripts, 1)
	assert.Contains(t, d.Scripts[0], "initEvent('blur', true, false)")
	assert.Equal(t, []any{el}, got)
}

func TestIsStale(t *testing.T) {
	pl, _ := newLayer(t)
	assert.True(t, pl.IsStale(context.Background(), &drivertest.Element{Stale: true}))
	assert.False(t, pl.IsStale(context.Background(), &drivertest.Element{}))
}

func TestCurrentURL(t *testing.T) {
	pl, d := newLayer(t)
	d.URL = "http://ci.test/configure#section"
	d.Script = func(script string, _ []any) (any, error) {
		if script == hrefScript {
			return d.URL, nil
		}
		return nil, nil
	}

	u, err := pl.CurrentURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://ci.test/configure", u)

	u, err = pl.CurrentURLWithFragment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://ci.test/configure#section", u)
}

func TestPageSourceAndContent(t *testing.T) {
	pl, d := newLayer(t)
	d.Script = func(script string, _ []any) (any, error) {
		if script == pageSourceScript {
			return "<html><body>hi</body></html>", nil
		}
		return nil, nil
	}
	d.Set(by.CSS("html"), &drivertest.Element{Content: "hi"})

	src, err := pl.PageSource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<html><body>hi</body></html>", src)

	text, err := pl.PageContent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
}

func TestRunThenConfirmAlert(t *testing.T) {
	pl, d := newLayer(t)
	dlg := &drivertest.Dialog{Message: "You have unsaved changes"}

	err := pl.RunThenConfirmAlert(context.Background(), func(ctx context.Context) error {
		d.Open(dlg)
		return d.Navigate(ctx, "http://ci.test/")
	}, time.Second)
	require.NoError(t, err)
	assert.True(t, dlg.WasAccepted())
	assert.Equal(t, []string{"http://ci.test/"}, d.Visited)
}

func TestRunThenHandleAlertDismiss(t *testing.T) {
	pl, d := newLayer(t)
	dlg := &drivertest.Dialog{Message: "Are you sure?"}
	d.Open(dlg)

	require.NoError(t, pl.HandleAlert(context.Background(), Dismiss))
	assert.True(t, dlg.Dismissed)
}

func TestConfirmAlertTimesOut(t *testing.T) {
	pl, _ := newLayer(t)

	err := pl.ConfirmAlert(context.Background(), time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, wait.ErrTimeout)
	assert.Contains(t, err.Error(), "alert is present")
}

func TestRunThenHandleAlertReturnsRunError(t *testing.T) {
	pl, _ := newLayer(t)
	boom := errors.New("navigation failed")

	err := pl.RunThenConfirmAlert(context.Background(), func(context.Context) error {
		return boom
	}, time.Second)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, wait.ErrTimeout)
}

func TestRunThenHandleAlertBoundsBlockedRun(t *testing.T) {
	pl, d := newLayer(t)
	dlg := &drivertest.Dialog{Message: "Leave page?"}
	release := make(chan struct{})
	defer close(release)

	err := pl.RunThenConfirmAlert(context.Background(), func(context.Context) error {
		d.Open(dlg)
		<-release
		return nil
	}, time.Second)
	assert.ErrorIs(t, err, wait.ErrTimeout)
	assert.Contains(t, err.Error(), "action still running")
	assert.True(t, dlg.WasAccepted())
}

func TestSleepHonoursContext(t *testing.T) {
	pl, _ := newLayer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, pl.Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, pl.ElasticSleep(context.Background(), time.Second))
}

func TestResource(t *testing.T) {
	pl, _ := newLayer(t)
	pl.Resources = fstest.MapFS{
		"views/regex.txt": {Data: []byte(".*")},
	}

	b, err := pl.Resource("/views/regex.txt")
	require.NoError(t, err)
	assert.Equal(t, ".*", string(b))

	_, err = pl.Resource("missing.txt")
	assert.ErrorContains(t, err, "no such resource missing.txt")
}

type countingMatcher struct{ calls int }

func (m *countingMatcher) Describe() string { return "third call" }

func (m *countingMatcher) Matches(_ context.Context, n int) (bool, error) {
	m.calls++
	return m.calls >= n, nil
}

func TestWaitForMatch(t *testing.T) {
	pl, _ := newLayer(t)
	pl.Time = wait.ElasticTime{Factor: 1}

	m := &countingMatcher{}
	require.NoError(t, WaitForMatch(context.Background(), pl, 2, Matcher[int](m), 5*time.Second))
	assert.Equal(t, 2, m.calls)

	pl.Time = quick
	err := WaitForMatch(context.Background(), pl, 1000, Matcher[int](&countingMatcher{}), time.Second)
	assert.ErrorIs(t, err, wait.ErrTimeout)
	assert.Contains(t, err.Error(), "third call")
}

func TestWaitForCond(t *testing.T) {
	pl, _ := newLayer(t)
	n := 0
	require.NoError(t, pl.WaitForCond(context.Background(), func(context.Context) (bool, error) {
		n++
		return true, nil
	}))
	assert.Equal(t, 1, n)

	err := pl.WaitForCondTimeout(context.Background(), func(context.Context) (bool, error) {
		return false, nil
	}, time.Second)
	assert.ErrorIs(t, err, wait.ErrTimeout)
}
