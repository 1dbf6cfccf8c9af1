// Package testenv assembles the acceptance test environment: a CI server
// (the mock by default), a browser backend, and an optional results
// database, all ephemeral unless pointed at external instances.
//
//	func TestMain(m *testing.M) {
//	    env, err := testenv.Setup(context.Background(), testenv.DefaultConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    env.Teardown()
//	    os.Exit(code)
//	}
package testenv

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/stretchr/testify/require"

	"github.com/gti/jenkins-acceptance/internal/config"
	"github.com/gti/jenkins-acceptance/internal/diagnostics"
	"github.com/gti/jenkins-acceptance/internal/driver"
	"github.com/gti/jenkins-acceptance/internal/driver/launch"
	"github.com/gti/jenkins-acceptance/internal/jenkinsapi"
	"github.com/gti/jenkins-acceptance/internal/logging"
	"github.com/gti/jenkins-acceptance/internal/models"
	"github.com/gti/jenkins-acceptance/internal/po"
	"github.com/gti/jenkins-acceptance/internal/results"
	"github.com/gti/jenkins-acceptance/internal/wait"
)

// TestEnv holds everything a test needs to drive the CI server.
//
// Tests share one browser; run them sequentially.
type TestEnv struct {
	Postgres *PostgresContainer
	Service  *Service
	Selenium *SeleniumContainer

	// Recorder is nil when no results database is configured.
	Recorder *results.Recorder

	// API talks to the server from the test process, authorized for
	// the mock's seeding routes.
	API *jenkinsapi.Client

	// JenkinsURL is the root URL as the browser sees it.
	JenkinsURL string

	Config  EnvConfig
	Browser *config.Config

	mu     sync.Mutex
	driver driver.Driver

	cleanupFuncs []func()
}

type EnvConfig struct {
	Postgres PostgresConfig
	Service  ServiceConfig
	Selenium SeleniumConfig

	// ExternalDatabaseURL records results there instead of in a container.
	ExternalDatabaseURL string

	// ExternalJenkinsURL runs against a real server. Seeding helpers skip
	// their test in that case.
	ExternalJenkinsURL string

	// RecordResults starts a postgres container when no external database
	// is given.
	RecordResults bool
}

func DefaultConfig() EnvConfig {
	dbURL := os.Getenv("RESULTS_DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("TEST_DATABASE_URL")
	}
	return EnvConfig{
		Postgres:            DefaultPostgresConfig(),
		Service:             DefaultServiceConfig(),
		Selenium:            DefaultSeleniumConfig(),
		ExternalDatabaseURL: dbURL,
		ExternalJenkinsURL:  os.Getenv("E2E_JENKINS_URL"),
		RecordResults:       os.Getenv("E2E_RECORD_RESULTS") == "true",
	}
}

// Setup starts the environment and opens a results run. Call Teardown when
// done, also after an error.
func Setup(ctx context.Context, cfg EnvConfig) (*TestEnv, error) {
	browser, err := loadBrowserConfig()
	if err != nil {
		return nil, err
	}

	env := &TestEnv{Config: cfg, Browser: browser}

	if err := env.startResults(ctx); err != nil {
		env.Teardown()
		return nil, err
	}
	if err := env.startJenkins(ctx); err != nil {
		env.Teardown()
		return nil, err
	}
	if err := env.startSelenium(ctx); err != nil {
		env.Teardown()
		return nil, err
	}

	version, err := env.API.Version(ctx)
	if err != nil {
		env.Teardown()
		return nil, fmt.Errorf("failed to read server version: %w", err)
	}
	browser.JenkinsURL = env.JenkinsURL

	if env.Recorder != nil {
		if _, err := env.Recorder.StartRun(ctx, env.JenkinsURL, version.Original(), browser.Driver); err != nil {
			env.Teardown()
			return nil, err
		}
	}

	log.Info().Str("url", env.JenkinsURL).Str("version", version.Original()).Str("driver", browser.Driver).Msg("acceptance environment ready")
	return env, nil
}

// loadBrowserConfig reads the suite configuration and applies its log level
// to the test process.
func loadBrowserConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel)
	return cfg, nil
}

func (e *TestEnv) startResults(ctx context.Context) error {
	switch {
	case e.Config.ExternalDatabaseURL != "":
		rec, err := results.Open(ctx, e.Config.ExternalDatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to results database: %w", err)
		}
		e.Recorder = rec
		e.addCleanup(rec.Close)
	case e.Config.RecordResults:
		pg, rec, cleanup, err := StartPostgres(ctx, e.Config.Postgres)
		if err != nil {
			return err
		}
		e.Postgres = pg
		e.Recorder = rec
		e.addCleanup(cleanup)
	}
	return nil
}

func (e *TestEnv) startJenkins(ctx context.Context) error {
	if e.Config.ExternalJenkinsURL != "" {
		e.JenkinsURL = e.Config.ExternalJenkinsURL
		e.API = jenkinsapi.NewClient(e.JenkinsURL)
		if e.Browser.JenkinsUser != "" {
			e.API.SetBasicAuth(e.Browser.JenkinsUser, e.Browser.JenkinsToken)
		}
		return nil
	}

	svc, cleanup, err := StartService(ctx, e.Config.Service)
	if err != nil {
		return err
	}
	e.Service = svc
	e.addCleanup(cleanup)

	e.JenkinsURL = svc.URL
	e.API = jenkinsapi.NewClient(svc.URL)
	e.API.SetHeader("x-api-key", e.Config.Service.Token)
	return nil
}

// startSelenium runs a grid container when the selenium backend is chosen
// without a remote URL. The browser then reaches the mock through the
// container host alias.
func (e *TestEnv) startSelenium(ctx context.Context) error {
	if e.Browser.Driver != config.DriverSelenium || e.Browser.SeleniumURL != "" {
		return nil
	}

	var ports []int
	if e.Service != nil {
		ports = append(ports, e.Service.Port)
	}
	sel, cleanup, err := StartSelenium(ctx, e.Config.Selenium, ports...)
	if err != nil {
		return err
	}
	e.Selenium = sel
	e.addCleanup(cleanup)
	e.Browser.SeleniumURL = sel.RemoteURL

	if e.Service != nil {
		e.JenkinsURL = BrowserURL(e.Service.Port)
		e.API.AddAlias(e.JenkinsURL)
	}
	return nil
}

func (e *TestEnv) addCleanup(fn func()) {
	e.cleanupFuncs = append(e.cleanupFuncs, fn)
}

// Driver opens the browser on first use.
func (e *TestEnv) Driver(ctx context.Context) (driver.Driver, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.driver != nil {
		return e.driver, nil
	}
	d, err := launch.Open(ctx, e.Browser)
	if err != nil {
		return nil, err
	}
	e.driver = d
	return d, nil
}

// NewJenkins returns the root page object for a test and records the
// test's outcome, capturing the browser state if it fails.
func (e *TestEnv) NewJenkins(t *testing.T) *po.Jenkins {
	t.Helper()
	d, err := e.Driver(context.Background())
	require.NoError(t, err, "failed to open browser")

	opts := []diagnostics.Option{diagnostics.WithDriver(d)}
	if e.Recorder != nil {
		opts = append(opts, diagnostics.WithRecorder(e.Recorder))
	}
	diagnostics.Watch(t, e.Browser.DiagnosticsDir, opts...)

	pl := po.NewPortingLayer(d, e.API, wait.ElasticTime{Factor: e.Browser.ElasticTime})
	return po.NewJenkins(pl, e.JenkinsURL)
}

// Teardown finishes the results run and releases everything in reverse
// order of creation.
func (e *TestEnv) Teardown() {
	if e.Recorder != nil && e.Recorder.RunID() != uuid.Nil {
		if err := e.Recorder.Finish(context.Background()); err != nil {
			log.Warn().Err(err).Msg("failed to finish results run")
		}
	}

	e.mu.Lock()
	if e.driver != nil {
		if err := e.driver.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close browser")
		}
		e.driver = nil
	}
	e.mu.Unlock()

	for i := len(e.cleanupFuncs) - 1; i >= 0; i-- {
		e.cleanupFuncs[i]()
	}
	e.cleanupFuncs = nil
}

func (e *TestEnv) requireMock(t *testing.T) {
	t.Helper()
	if e.Service == nil {
		t.Skip("seeding needs the mock server")
	}
}

func (e *TestEnv) seed(t *testing.T, path string, body any) *jenkinsapi.Response {
	t.Helper()
	e.requireMock(t)
	resp, err := e.API.Call(context.Background(), http.MethodPost, path, body)
	require.NoError(t, err)
	require.Less(t, resp.StatusCode, 300, "seeding %s: %s", path, resp.String())
	return resp
}

// Reset drops all agents, views and jobs on the mock.
func (e *TestEnv) Reset(t *testing.T) {
	t.Helper()
	e.seed(t, "mock/reset", nil)
}

func (e *TestEnv) SeedAgent(t *testing.T, req models.CreateAgentRequest) {
	t.Helper()
	e.seed(t, "mock/agents", req)
}

// SeedBuild records a build of job on agent and returns its number.
func (e *TestEnv) SeedBuild(t *testing.T, agent, job string) int {
	t.Helper()
	resp := e.seed(t, "mock/agents/"+agent+"/builds", models.RecordBuildRequest{Job: job})
	return int(resp.Result().Get("number").Int())
}

func (e *TestEnv) SeedLog(t *testing.T, agent, line string) {
	t.Helper()
	e.seed(t, "mock/agents/"+agent+"/log", models.AppendLogRequest{Line: line})
}

func (e *TestEnv) SeedJob(t *testing.T, name string) {
	t.Helper()
	e.seed(t, "mock/jobs", models.CreateJobRequest{Name: name})
}
