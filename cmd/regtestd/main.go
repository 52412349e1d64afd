package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/babylonlabs-io/btc-regtest-harness/cmd/regtestd/cmd"
)

// NewRootCmd creates a new root command for regtestd. It is called once in the main function.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "regtestd",
		Short:         "regtestd - bitcoin regtest node and block generator.",
		Long:          `regtestd runs a containerized bitcoind regtest node and keeps its chain moving by mining blocks at a fixed pace.`,
		SilenceErrors: false,
	}
	cmd.AddLogFlags(rootCmd)

	return rootCmd
}

func main() {
	rootCmd := NewRootCmd()
	rootCmd.AddCommand(
		cmd.CommandVersion(),
		cmd.CommandUp(),
		cmd.CommandGenerate(),
		cmd.CommandRender(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "There was an error while executing regtestd CLI '%s'\n", err)
		os.Exit(1)
	}
}
