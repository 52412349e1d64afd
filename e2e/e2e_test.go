//go:build e2e

package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/babylonlabs-io/btc-regtest-harness/config"
	"github.com/babylonlabs-io/btc-regtest-harness/harness"
	"github.com/babylonlabs-io/btc-regtest-harness/lib"
)

func TestGeneratorAgainstComposeNode(t *testing.T) {
	runScenario(t, config.BackendCompose)
}

func TestGeneratorAgainstDockertestNode(t *testing.T) {
	runScenario(t, config.BackendDockertest)
}

func runScenario(t *testing.T, backend string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg := config.DefaultHarnessConfig()
	cfg.Backend = backend
	rt := harness.NewForTest(t, cfg)

	gen, err := harness.NewBlockGenerator(rt.GeneratorConfig(time.Second), zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	defer gen.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- gen.Run(runCtx)
	}()

	client, err := rt.RPCClient()
	require.NoError(t, err)
	defer client.Shutdown()

	// seed blocks plus a few steady state ones
	err = lib.Eventually(ctx, func() bool {
		count, err := client.GetBlockCount()
		return err == nil && count > 102
	}, 2*time.Minute, time.Second, "waiting for the chain to advance")
	require.NoError(t, err)

	walletClient, err := harness.NewBTCClient(rt.GeneratorConfig(time.Second).BTC, config.DefaultWalletName)
	require.NoError(t, err)
	defer walletClient.Shutdown()

	received, err := walletClient.GetReceivedByAddress(gen.MiningAddress())
	require.NoError(t, err)
	require.Greater(t, received.ToBTC(), 0.0)

	stop()
	select {
	case <-ctx.Done():
		t.Fatalf("generator did not stop: %v", ctx.Err())
	case err := <-done:
		require.NoError(t, err)
	}

	// a second generator reuses the wallet instead of creating a duplicate
	again, err := harness.NewBlockGenerator(rt.GeneratorConfig(time.Second), zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	again.Close()

	wallets, err := walletClient.ListWallets()
	require.NoError(t, err)
	require.Equal(t, []string{config.DefaultWalletName}, wallets)
}
