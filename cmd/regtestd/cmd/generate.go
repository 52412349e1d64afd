package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/babylonlabs-io/btc-regtest-harness/config"
)

// CommandGenerate mines blocks on an already running node
func CommandGenerate() *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "generate",
		Aliases: []string{"g"},
		Short:   "Mines blocks at a fixed pace on a running regtest node",
		Example: `regtestd generate --rpc-url http://127.0.0.1:18443 --rpc-user rpcuser --rpc-pass rpcpassword --block-time 5s`,
		Args:    cobra.NoArgs,
		RunE:    cmdGenerate,
	}

	f := cmd.Flags()
	f.String(rpcURLFlag, "", "Bitcoind RPC url")
	f.String(rpcUserFlag, "", "Bitcoind RPC user")
	f.String(rpcPassFlag, "", "Bitcoind RPC password")
	_ = cmd.MarkFlagRequired(rpcURLFlag)
	_ = cmd.MarkFlagRequired(rpcUserFlag)
	_ = cmd.MarkFlagRequired(rpcPassFlag)
	addGeneratorFlags(cmd)

	return cmd
}

func generateConfigFromFlags(cmd *cobra.Command) (config.GeneratorConfig, string, error) {
	flags := cmd.Flags()

	rpcURL, err := flags.GetString(rpcURLFlag)
	if err != nil {
		return config.GeneratorConfig{}, "", fmt.Errorf("failed to read flag %s: %w", rpcURLFlag, err)
	}

	rpcUser, err := flags.GetString(rpcUserFlag)
	if err != nil {
		return config.GeneratorConfig{}, "", fmt.Errorf("failed to read flag %s: %w", rpcUserFlag, err)
	}

	rpcPass, err := flags.GetString(rpcPassFlag)
	if err != nil {
		return config.GeneratorConfig{}, "", fmt.Errorf("failed to read flag %s: %w", rpcPassFlag, err)
	}

	blockTime, metricsAddr, walletName, err := generatorFlags(cmd)
	if err != nil {
		return config.GeneratorConfig{}, "", err
	}

	cfg := config.GeneratorConfig{
		BTC: config.BTCConfig{
			RPCURL:     rpcURL,
			Username:   rpcUser,
			Password:   rpcPass,
			WalletName: walletName,
		},
		BlockTime: blockTime,
	}

	if err := cfg.Validate(); err != nil {
		return config.GeneratorConfig{}, "", err
	}

	return cfg, metricsAddr, nil
}

func cmdGenerate(cmd *cobra.Command, _ []string) error {
	cfg, metricsAddr, err := generateConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	return runGenerator(cmd.Context(), cfg, metricsAddr, logger)
}
