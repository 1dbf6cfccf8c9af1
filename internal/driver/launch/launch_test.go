package launch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gti/jenkins-acceptance/internal/config"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Driver: "lynx"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "lynx"`)
}

func TestEveryDriverHasAnOpener(t *testing.T) {
	for _, name := range Drivers() {
		_, ok := openers[name]
		assert.True(t, ok, name)
	}
	assert.Len(t, openers, len(Drivers()))
}

func TestOpenSeleniumNeedsRemoteURL(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Driver: config.DriverSelenium})
	assert.ErrorIs(t, err, ErrNoSeleniumURL)
}
