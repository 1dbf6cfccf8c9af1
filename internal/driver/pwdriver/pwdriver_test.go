package pwdriver

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gti/jenkins-acceptance/internal/driver"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, 30*time.Second, o.Timeout)
	assert.Equal(t, time.Second, o.ClickTimeout)
	assert.Less(t, o.ClickTimeout, o.Timeout)

	o = Options{Timeout: time.Minute, ClickTimeout: 3 * time.Second}.withDefaults()
	assert.Equal(t, time.Minute, o.Timeout)
	assert.Equal(t, 3*time.Second, o.ClickTimeout)
}

func TestMapErrorIntercepted(t *testing.T) {
	err := mapError(errors.New("<div class=overlay> intercepts pointer events"))
	assert.ErrorIs(t, err, driver.ErrClickIntercepted)

	err = mapError(errors.New("Element is detached from the DOM"))
	assert.ErrorIs(t, err, driver.ErrStaleElement)
}
