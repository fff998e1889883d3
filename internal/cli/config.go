package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/toolgate/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config <bigquery|github|outlook>",
	Short: "Print the effective service configuration",
	Long:  "Loads and validates the configuration for a service from the environment\nand env file, then prints it as YAML with secrets redacted.",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	svc, err := config.ParseService(args[0])
	if err != nil {
		return err
	}
	loader, err := config.NewLoader(envFile)
	if err != nil {
		return err
	}
	cfg, err := loader.Load(svc)
	if err != nil {
		return err
	}
	out, err := config.MarshalYAML(cfg)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}
