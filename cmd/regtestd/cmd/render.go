package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/babylonlabs-io/btc-regtest-harness/container"
	"github.com/babylonlabs-io/btc-regtest-harness/harness"
)

const (
	portFlag   = "port"
	outputFlag = "output"
)

// CommandRender renders a compose template without starting anything
func CommandRender() *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "render",
		Short:   "Renders a compose template for the given RPC port",
		Example: `regtestd render --template docker-compose-btc-template.yml --port 50000 --output docker-compose.yml`,
		Args:    cobra.NoArgs,
		RunE:    cmdRender,
	}

	f := cmd.Flags()
	f.String(templateFlag, "", "Compose template containing the {RPC_PORT} token")
	f.Int(portFlag, 0, "RPC port to render (optional, random port by default)")
	f.String(outputFlag, "", "Path of the rendered compose file")
	_ = cmd.MarkFlagRequired(templateFlag)
	_ = cmd.MarkFlagRequired(outputFlag)

	return cmd
}

func cmdRender(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	template, err := flags.GetString(templateFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", templateFlag, err)
	}

	port, err := flags.GetInt(portFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", portFlag, err)
	}

	output, err := flags.GetString(outputFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", outputFlag, err)
	}

	if port == 0 {
		port = container.AllocateUniquePort()
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}

	if err := harness.RenderTemplateFile(template, output, port); err != nil {
		return err
	}

	cmd.Printf("rendered %s with rpc port %d\n", output, port)
	return nil
}
