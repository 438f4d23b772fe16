package ayontest

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ynput/ayonfixt/internal/config"
	"github.com/ynput/ayonfixt/pkg/fixture"
)

// ServerContainer is an AYON server started for the session
type ServerContainer struct {
	Container testcontainers.Container
	URL       string
}

// Terminate stops and removes the container
func (s *ServerContainer) Terminate(ctx context.Context) error {
	return s.Container.Terminate(ctx)
}

// StartServerContainer runs cfg.Image and waits until /api/info answers
func StartServerContainer(ctx context.Context, cfg config.ContainerConfig) (*ServerContainer, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("no container image configured")
	}
	port := cfg.Port
	if !strings.Contains(port, "/") {
		port += "/tcp"
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.Image,
		ExposedPorts: []string{port},
		Env:          cfg.Env,
		WaitingFor: wait.ForHTTP("/api/info").
			WithPort(nat.Port(port)).
			WithStartupTimeout(cfg.Startup),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start AYON server container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	return &ServerContainer{
		Container: container,
		URL:       fmt.Sprintf("http://%s:%s", host, mapped.Port()),
	}, nil
}

func (p *Plugin) containerFixture() *fixture.Descriptor {
	return describe(fixture.Define(FixtureServerContainer, fixture.ScopeSession,
		func(h fixture.Handle) (*ServerContainer, error) {
			printer, err := fixture.Get[*Printer](h, FixturePrinterSession)
			if err != nil {
				return nil, err
			}
			printer.Printf("Starting AYON server container %s ...", p.cfg.Container.Image)
			return StartServerContainer(h.Context(), p.cfg.Container)
		},
		func(s *ServerContainer) error {
			return s.Terminate(context.Background())
		},
	), "AYON server container for the session")
}
