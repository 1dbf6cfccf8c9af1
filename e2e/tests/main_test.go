//go:build e2e

package tests

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"

	"github.com/gti/jenkins-acceptance/e2e/testenv"
)

var env *testenv.TestEnv

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()
	cfg := testenv.DefaultConfig()

	if needsDocker(cfg) {
		if err := dockerHealthy(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "skipping acceptance tests, docker unavailable:", err)
			return 0
		}
	}

	var err error
	env, err = testenv.Setup(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to set up acceptance environment:", err)
		return 1
	}
	defer env.Teardown()

	return m.Run()
}

func needsDocker(cfg testenv.EnvConfig) bool {
	if cfg.RecordResults && cfg.ExternalDatabaseURL == "" {
		return true
	}
	return os.Getenv("DRIVER") == "selenium" && os.Getenv("SELENIUM_URL") == ""
}

func dockerHealthy(ctx context.Context) error {
	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return err
	}
	defer provider.Close()
	return provider.Health(ctx)
}
