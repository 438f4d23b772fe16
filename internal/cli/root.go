package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ynput/ayonfixt/internal/config"
	"github.com/ynput/ayonfixt/pkg/ayontest"
	"github.com/ynput/ayonfixt/pkg/fixture"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ayonfixt",
	Short: "Fixtures for testing AYON addons",
	Long: `ayonfixt provides the fixtures and helpers used by AYON addon tests:
a connected server session, throwaway projects, and test builds of the addon
installed on the server.

The configuration is read from --config, $AYONFIXT_CONFIG or .ayonfixt.yml.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: $"+config.EnvConfig+" or "+config.DefaultFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(
		slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			AddSource: false,
			Level:     level,
		}),
	)
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// newRegistry installs the AYON plugin the way a test binary would
func newRegistry(cmd *cobra.Command, cfg *config.Config) (*fixture.Registry, error) {
	reg := fixture.NewRegistry()
	plugin := ayontest.New(
		ayontest.WithConfig(cfg),
		ayontest.WithLogger(newLogger(cmd)),
		ayontest.WithOutput(cmd.ErrOrStderr()),
	)
	if err := reg.Install(plugin); err != nil {
		return nil, err
	}
	return reg, nil
}
