package testenv

import (
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBrowserConfigAppliesLogLevel(t *testing.T) {
	saved := log.DefaultLogger
	t.Cleanup(func() { log.DefaultLogger = saved })

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DRIVER", "selenium")
	t.Setenv("SELENIUM_URL", "")

	cfg, err := loadBrowserConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, log.DebugLevel, log.DefaultLogger.Level)
}

func TestLoadBrowserConfigRejectsBadLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "chatty")

	_, err := loadBrowserConfig()
	assert.Error(t, err)
}
