package testenv

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// ContainerHost is how a container reaches ports exposed with HostAccessPorts.
const ContainerHost = "host.testcontainers.internal"

// SeleniumContainer is a standalone Chrome grid node.
type SeleniumContainer struct {
	Container testcontainers.Container
	// RemoteURL is the WebDriver endpoint as seen from the test process.
	RemoteURL string
}

type SeleniumConfig struct {
	Image string
}

func DefaultSeleniumConfig() SeleniumConfig {
	return SeleniumConfig{Image: "selenium/standalone-chrome:4.25.0"}
}

// StartSelenium runs a Selenium container that can reach hostPorts on the
// test host via ContainerHost.
func StartSelenium(ctx context.Context, cfg SeleniumConfig, hostPorts ...int) (*SeleniumContainer, func(), error) {
	req := testcontainers.ContainerRequest{
		Image:           cfg.Image,
		ExposedPorts:    []string{"4444/tcp"},
		HostAccessPorts: hostPorts,
		WaitingFor: wait.ForHTTP("/status").
			WithPort("4444/tcp").
			WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start selenium container: %w", err)
	}

	endpoint, err := container.PortEndpoint(ctx, "4444/tcp", "http")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, fmt.Errorf("failed to get selenium endpoint: %w", err)
	}

	cleanup := func() {
		_ = container.Terminate(context.Background())
	}
	return &SeleniumContainer{Container: container, RemoteURL: endpoint + "/wd/hub"}, cleanup, nil
}

// BrowserURL is the address of a host port from inside the container.
func BrowserURL(port int) string {
	return fmt.Sprintf("http://%s:%d/", ContainerHost, port)
}
