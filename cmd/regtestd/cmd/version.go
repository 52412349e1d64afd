package cmd

import (
	"github.com/spf13/cobra"

	"github.com/babylonlabs-io/btc-regtest-harness/lib"
)

// CommandVersion prints cmd version
func CommandVersion() *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "version",
		Short:   "Print version of this binary.",
		Example: `regtestd version`,
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Print(lib.VersionInfo())
		},
	}
	return cmd
}
