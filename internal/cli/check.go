package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ynput/ayonfixt/internal/cache"
	"github.com/ynput/ayonfixt/internal/config"
	"github.com/ynput/ayonfixt/internal/credentials"
	"github.com/ynput/ayonfixt/pkg/ayon"
)

var useCache bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the connection to the AYON server",
	Long: `Resolve the API key from the configured source and connect to the AYON
server the tests would use.

Example:
  ayonfixt check
  AYON_SERVER_URL=http://localhost:5000 ayonfixt check --cache`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		client, err := connect(cmd, cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		info, err := client.Connect(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s (AYON %s)\n", client.BaseURL(), info.Version)
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&useCache, "cache", false, "Cache API keys from remote sources in the system keyring")
	rootCmd.AddCommand(checkCmd)
}

// connect resolves the API key and creates a client for cfg.ServerURL
func connect(cmd *cobra.Command, cfg *config.Config) (*ayon.Client, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("%s is not set", config.EnvServerURL)
	}
	logger := newLogger(cmd)

	opts := []credentials.Option{credentials.WithLogger(logger)}
	if useCache {
		opts = append(opts, credentials.WithCache(cache.New()))
	}
	key, err := credentials.NewResolver(opts...).Resolve(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	return ayon.NewClient(cfg.ServerURL, key, ayon.WithLogger(logger))
}
