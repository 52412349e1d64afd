package config

import (
	"fmt"
	"time"
)

const (
	BackendCompose    = "compose"
	BackendDockertest = "dockertest"

	DefaultContainerTool = "docker"
	DefaultSettleTimeout = 60 * time.Second
)

// HarnessConfig configures a regtest node fixture.
type HarnessConfig struct {
	// TemplatePath points at a compose template containing the {RPC_PORT}
	// token. Empty selects the embedded default template.
	TemplatePath  string
	ContainerTool string
	Backend       string
	// SettleTimeout bounds the wait for the node RPC to accept requests.
	SettleTimeout time.Duration
	// FailFast turns a non-zero container command exit into an error.
	FailFast bool
	// Bitcoind image used by the dockertest backend.
	BitcoindRepository string
	BitcoindVersion    string
}

func DefaultHarnessConfig() HarnessConfig {
	return HarnessConfig{
		ContainerTool: DefaultContainerTool,
		Backend:       BackendCompose,
		SettleTimeout: DefaultSettleTimeout,
		FailFast:      true,
	}
}

func (c *HarnessConfig) Validate() error {
	switch c.Backend {
	case BackendCompose:
		if c.ContainerTool == "" {
			return fmt.Errorf("container tool should not be empty")
		}
	case BackendDockertest:
	default:
		return fmt.Errorf("unsupported backend %q, expected %s or %s", c.Backend, BackendCompose, BackendDockertest)
	}

	if c.SettleTimeout <= 0 {
		return fmt.Errorf("settle timeout should be greater than 0")
	}

	return nil
}

// Config is the top level configuration of the regtestd CLI.
type Config struct {
	Harness     HarnessConfig
	Generator   GeneratorConfig
	MetricsAddr string
	LogFormat   string
	LogLevel    string
}

func (c *Config) Validate() error {
	if err := c.Harness.Validate(); err != nil {
		return fmt.Errorf("invalid harness config: %w", err)
	}

	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("invalid generator config: %w", err)
	}

	return nil
}
