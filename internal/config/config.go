package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Driver names accepted by DRIVER.
const (
	DriverRod        = "rod"
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
	DriverSelenium   = "selenium"
)

type Config struct {
	JenkinsURL         string `validate:"required,url"`
	JenkinsUser        string `validate:"required_with=JenkinsToken"`
	JenkinsToken       string
	Driver             string `validate:"oneof=rod chromedp playwright selenium"`
	Headless           bool
	SeleniumURL        string  `validate:"omitempty,url"`
	ElasticTime        float64 `validate:"gt=0"`
	DiagnosticsDir     string  `validate:"required"`
	ResultsDatabaseURL string
	LogLevel           string `validate:"oneof=trace debug info warn error"`

	// Mock server settings, used by cmd/mock-jenkins.
	MockPort    string
	MockVersion string
	MockToken   string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	elastic, err := strconv.ParseFloat(getEnv("ELASTIC_TIME", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ELASTIC_TIME: %w", err)
	}

	cfg := &Config{
		JenkinsURL:         getEnv("JENKINS_URL", "http://localhost:8080/"),
		JenkinsUser:        getEnv("JENKINS_USER", ""),
		JenkinsToken:       getEnv("JENKINS_TOKEN", ""),
		Driver:             getEnv("DRIVER", DriverRod),
		Headless:           getEnv("HEADLESS", "true") != "false",
		SeleniumURL:        getEnv("SELENIUM_URL", ""),
		ElasticTime:        elastic,
		DiagnosticsDir:     getEnv("DIAGNOSTICS_DIR", "target/diagnostics"),
		ResultsDatabaseURL: getEnv("RESULTS_DATABASE_URL", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		MockPort:           getEnv("MOCK_PORT", "8080"),
		MockVersion:        getEnv("MOCK_VERSION", "2.426.3"),
		MockToken:          getEnv("MOCK_TOKEN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field constraints declared in the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
