package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fixturesCmd = &cobra.Command{
	Use:   "fixtures",
	Short: "List the registered fixtures",
	Long: `List every fixture the AYON plugin registers with its scope.

The server container fixture is only listed when container.image is configured.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		reg, err := newRegistry(cmd, cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, d := range reg.Descriptors() {
			fmt.Fprintf(out, "%-24s %-8s %s\n", d.Name, d.Scope, d.Description)
		}
		return nil
	},
}

var helpersCmd = &cobra.Command{
	Use:   "helpers",
	Short: "List the registered helpers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		reg, err := newRegistry(cmd, cfg)
		if err != nil {
			return err
		}
		for _, name := range reg.HelperNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fixturesCmd)
	rootCmd.AddCommand(helpersCmd)
}
