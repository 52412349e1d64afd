package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/babylonlabs-io/btc-regtest-harness/config"
	"github.com/babylonlabs-io/btc-regtest-harness/lib"
)

const (
	logFormatFlag     = "log-format"
	logLevelFlag      = "log-level"
	blockTimeFlag     = "block-time"
	metricsAddrFlag   = "metrics-addr"
	rpcURLFlag        = "rpc-url"
	rpcUserFlag       = "rpc-user"
	rpcPassFlag       = "rpc-pass"
	walletNameFlag    = "wallet-name"
	templateFlag      = "template"
	containerToolFlag = "container-tool"
	backendFlag       = "backend"
	settleTimeoutFlag = "settle-timeout"
	failFastFlag      = "fail-fast"
	imageRepoFlag     = "bitcoind-image"
	imageTagFlag      = "bitcoind-tag"
)

// AddLogFlags registers the logging flags shared by every command.
func AddLogFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String(logFormatFlag, "console", "Log format: console or json")
	f.String(logLevelFlag, "info", "Log level: debug, info, warn or error")
}

func addGeneratorFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Duration(blockTimeFlag, config.DefaultBlockTime, "Pause between two mined blocks")
	f.String(metricsAddrFlag, "", "Address to serve prometheus metrics on, e.g. :2112 (optional, disabled when empty)")
	f.String(walletNameFlag, config.DefaultWalletName, "Wallet created when the node has none loaded")
}

func addHarnessFlags(cmd *cobra.Command) {
	defaults := config.DefaultHarnessConfig()

	f := cmd.Flags()
	f.String(templateFlag, "", "Compose template containing the {RPC_PORT} token (optional, embedded template by default)")
	f.String(containerToolFlag, defaults.ContainerTool, "Container tool providing the compose subcommand, e.g. docker or podman")
	f.String(backendFlag, defaults.Backend, "Node backend: compose or dockertest")
	f.Duration(settleTimeoutFlag, defaults.SettleTimeout, "Maximum time to wait for the node RPC to become ready")
	f.Bool(failFastFlag, defaults.FailFast, "Fail when a container command exits with a non-zero status")
	f.String(imageRepoFlag, "", "Bitcoind image repository for the dockertest backend (optional)")
	f.String(imageTagFlag, "", "Bitcoind image tag for the dockertest backend (optional)")
}

func loggerFromFlags(cmd *cobra.Command) (*zap.Logger, error) {
	flags := cmd.Flags()
	format, err := flags.GetString(logFormatFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to read flag %s: %w", logFormatFlag, err)
	}

	level, err := flags.GetString(logLevelFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to read flag %s: %w", logLevelFlag, err)
	}

	return lib.NewRootLogger(format, level)
}

func generatorFlags(cmd *cobra.Command) (time.Duration, string, string, error) {
	flags := cmd.Flags()
	blockTime, err := flags.GetDuration(blockTimeFlag)
	if err != nil {
		return 0, "", "", fmt.Errorf("failed to read flag %s: %w", blockTimeFlag, err)
	}

	metricsAddr, err := flags.GetString(metricsAddrFlag)
	if err != nil {
		return 0, "", "", fmt.Errorf("failed to read flag %s: %w", metricsAddrFlag, err)
	}

	walletName, err := flags.GetString(walletNameFlag)
	if err != nil {
		return 0, "", "", fmt.Errorf("failed to read flag %s: %w", walletNameFlag, err)
	}

	return blockTime, metricsAddr, walletName, nil
}

func harnessConfigFromFlags(cmd *cobra.Command) (config.HarnessConfig, error) {
	flags := cmd.Flags()
	cfg := config.DefaultHarnessConfig()

	var err error
	if cfg.TemplatePath, err = flags.GetString(templateFlag); err != nil {
		return cfg, fmt.Errorf("failed to read flag %s: %w", templateFlag, err)
	}
	if cfg.ContainerTool, err = flags.GetString(containerToolFlag); err != nil {
		return cfg, fmt.Errorf("failed to read flag %s: %w", containerToolFlag, err)
	}
	if cfg.Backend, err = flags.GetString(backendFlag); err != nil {
		return cfg, fmt.Errorf("failed to read flag %s: %w", backendFlag, err)
	}
	if cfg.SettleTimeout, err = flags.GetDuration(settleTimeoutFlag); err != nil {
		return cfg, fmt.Errorf("failed to read flag %s: %w", settleTimeoutFlag, err)
	}
	if cfg.FailFast, err = flags.GetBool(failFastFlag); err != nil {
		return cfg, fmt.Errorf("failed to read flag %s: %w", failFastFlag, err)
	}
	if cfg.BitcoindRepository, err = flags.GetString(imageRepoFlag); err != nil {
		return cfg, fmt.Errorf("failed to read flag %s: %w", imageRepoFlag, err)
	}
	if cfg.BitcoindVersion, err = flags.GetString(imageTagFlag); err != nil {
		return cfg, fmt.Errorf("failed to read flag %s: %w", imageTagFlag, err)
	}

	return cfg, nil
}
