package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/babylonlabs-io/btc-regtest-harness/config"
	"github.com/babylonlabs-io/btc-regtest-harness/harness"
)

// CommandUp starts a regtest node and mines on it until interrupted
func CommandUp() *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "up",
		Short:   "Starts a containerized regtest node and mines blocks on it until interrupted",
		Example: `regtestd up --block-time 2s --metrics-addr :2112`,
		Args:    cobra.NoArgs,
		RunE:    cmdUp,
	}

	addHarnessFlags(cmd)
	addGeneratorFlags(cmd)

	return cmd
}

func upConfigFromFlags(cmd *cobra.Command) (config.Config, error) {
	harnessCfg, err := harnessConfigFromFlags(cmd)
	if err != nil {
		return config.Config{}, err
	}

	blockTime, metricsAddr, walletName, err := generatorFlags(cmd)
	if err != nil {
		return config.Config{}, err
	}

	genCfg := config.DefaultGeneratorConfig()
	genCfg.BlockTime = blockTime
	genCfg.BTC.WalletName = walletName

	cfg := config.Config{
		Harness:     harnessCfg,
		Generator:   genCfg,
		MetricsAddr: metricsAddr,
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

func cmdUp(cmd *cobra.Command, _ []string) error {
	cfg, err := upConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	rt, err := harness.New(cfg.Harness, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	if err := rt.Start(ctx); err != nil {
		return err
	}

	genCfg := rt.GeneratorConfig(cfg.Generator.BlockTime)
	genCfg.BTC.WalletName = cfg.Generator.BTC.WalletName

	logger.Info("regtest node is up",
		zap.String("rpc_url", genCfg.BTC.RPCURL),
		zap.String("rpc_user", genCfg.BTC.Username),
		zap.String("compose_file", rt.ComposeFile()))

	return runGenerator(ctx, genCfg, cfg.MetricsAddr, logger)
}
