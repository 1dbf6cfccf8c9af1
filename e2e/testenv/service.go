package testenv

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gti/jenkins-acceptance/internal/jenkinsapi"
)

// Service is a mock CI server running as a subprocess.
type Service struct {
	URL     string
	Port    int
	Version string
	Process *os.Process

	cmd *exec.Cmd
}

type ServiceConfig struct {
	// Version is reported in the X-Jenkins header and drives version
	// dependent captions and messages.
	Version string

	// Token guards the /mock seeding routes.
	Token string

	// Port to listen on, 0 picks a free one.
	Port int

	// BinaryPath of a prebuilt cmd/mock-jenkins. Built when empty.
	BinaryPath string

	// WorkingDir defaults to the module root.
	WorkingDir string
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Version: getenv("E2E_JENKINS_VERSION", "2.426.3"),
		Token:   "test-mock-token",
	}
}

// StartService builds and starts cmd/mock-jenkins and waits until it answers
// on /api/json.
func StartService(ctx context.Context, cfg ServiceConfig) (*Service, func(), error) {
	port := cfg.Port
	if port == 0 {
		var err error
		port, err = findAvailablePort()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to find available port: %w", err)
		}
	}

	workDir := cfg.WorkingDir
	if workDir == "" {
		var err error
		workDir, err = findProjectRoot()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to find project root: %w", err)
		}
	}

	binaryPath := cfg.BinaryPath
	if binaryPath == "" {
		var err error
		binaryPath, err = buildService(ctx, workDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build mock server: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, binaryPath)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("MOCK_PORT=%d", port),
		"MOCK_VERSION="+cfg.Version,
		"MOCK_TOKEN="+cfg.Token,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start mock server: %w", err)
	}

	svc := &Service{
		URL:     fmt.Sprintf("http://localhost:%d/", port),
		Port:    port,
		Version: cfg.Version,
		Process: cmd.Process,
		cmd:     cmd,
	}

	if err := waitForService(ctx, svc.URL, 30*time.Second); err != nil {
		_ = svc.Stop()
		return nil, nil, fmt.Errorf("mock server failed to become ready: %w", err)
	}

	return svc, func() { _ = svc.Stop() }, nil
}

// Stop sends SIGTERM and kills the process if it has not exited after 5s.
func (s *Service) Stop() error {
	if s.Process == nil {
		return nil
	}
	if err := s.Process.Signal(syscall.SIGTERM); err != nil {
		_ = s.Process.Kill()
	}

	done := make(chan struct{})
	go func() {
		_ = s.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = s.Process.Kill()
	}
	return nil
}

// HealthCheck verifies the server answers with its version header.
func (s *Service) HealthCheck(ctx context.Context) error {
	_, err := jenkinsapi.NewClient(s.URL).Version(ctx)
	return err
}

func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = listener.Close() }()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (go.mod)")
		}
		dir = parent
	}
}

func buildService(ctx context.Context, workDir string) (string, error) {
	binaryPath := filepath.Join(workDir, "tmp", "mock-jenkins")
	if err := os.MkdirAll(filepath.Dir(binaryPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create tmp dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, "go", "build", "-o", binaryPath, "./cmd/mock-jenkins")
	cmd.Dir = workDir
	cmd.Env = os.Environ()
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("failed to build: %w\nOutput: %s", err, output)
	}
	return binaryPath, nil
}

func waitForService(ctx context.Context, baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := client.Get(baseURL + "api/json")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("mock server did not respond within %v", timeout)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
