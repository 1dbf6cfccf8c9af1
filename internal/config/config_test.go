package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"JENKINS_URL", "DRIVER", "HEADLESS", "ELASTIC_TIME", "DIAGNOSTICS_DIR", "LOG_LEVEL", "SELENIUM_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/", cfg.JenkinsURL)
	assert.Equal(t, DriverRod, cfg.Driver)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 1.0, cfg.ElasticTime)
	assert.Equal(t, "target/diagnostics", cfg.DiagnosticsDir)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JENKINS_URL", "http://ci.example.com/jenkins/")
	t.Setenv("DRIVER", "selenium")
	t.Setenv("SELENIUM_URL", "http://grid:4444/wd/hub")
	t.Setenv("HEADLESS", "false")
	t.Setenv("ELASTIC_TIME", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://ci.example.com/jenkins/", cfg.JenkinsURL)
	assert.Equal(t, DriverSelenium, cfg.Driver)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 2.5, cfg.ElasticTime)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"DRIVER": "netscape"}},
		{"bad selenium url", map[string]string{"DRIVER": "selenium", "SELENIUM_URL": "grid"}},
		{"zero elastic time", map[string]string{"ELASTIC_TIME": "0"}},
		{"unparsable elastic time", map[string]string{"ELASTIC_TIME": "slow"}},
		{"token without user", map[string]string{"JENKINS_TOKEN": "abc", "JENKINS_USER": ""}},
		{"bad url", map[string]string{"JENKINS_URL": "not a url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

// The e2e environment starts a grid container when no remote URL is set.
func TestLoadSeleniumWithoutRemoteURL(t *testing.T) {
	t.Setenv("DRIVER", "selenium")
	t.Setenv("SELENIUM_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSelenium, cfg.Driver)
	assert.Empty(t, cfg.SeleniumURL)
}
