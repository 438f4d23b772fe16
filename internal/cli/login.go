package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ynput/ayonfixt/internal/cache"
	"github.com/ynput/ayonfixt/internal/credentials"
	"github.com/ynput/ayonfixt/pkg/ayon"
)

var (
	loginServer     string
	loginAPIKey     string
	loginSkipVerify bool
	logoutCache     bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an AYON API key in the system keyring",
	Long: `Store the API key for an AYON server in the system keyring so that
api_key_source kind "keyring" can find it.

The key is read from --api-key or from the first line of stdin.

Example:
  ayonfixt login --server http://localhost:5000
  echo "$KEY" | ayonfixt login`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := serverURL()
		if err != nil {
			return err
		}

		key := loginAPIKey
		if key == "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "API key for %s: ", server)
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read API key: %w", err)
			}
			key = strings.TrimSpace(line)
		}
		if key == "" {
			return fmt.Errorf("no API key given")
		}

		if !loginSkipVerify {
			client, err := ayon.NewClient(server, key, ayon.WithLogger(newLogger(cmd)))
			if err != nil {
				return err
			}
			defer client.Close()
			if _, err := client.Connect(cmd.Context()); err != nil {
				return err
			}
		}

		if err := credentials.StoreAPIKey(server, key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored API key for %s\n", server)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored AYON API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := serverURL()
		if err != nil {
			return err
		}
		if err := credentials.DeleteAPIKey(server); err != nil {
			return err
		}
		if logoutCache {
			if err := cache.New().Clear(); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed API key for %s\n", server)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginServer, "server", "", "AYON server URL (default: from configuration)")
	loginCmd.Flags().StringVar(&loginAPIKey, "api-key", "", "API key to store (default: read from stdin)")
	loginCmd.Flags().BoolVar(&loginSkipVerify, "skip-verify", false, "Store the key without connecting to the server")
	logoutCmd.Flags().StringVar(&loginServer, "server", "", "AYON server URL (default: from configuration)")
	logoutCmd.Flags().BoolVar(&logoutCache, "clear-cache", false, "Also clear cached API keys of remote sources")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func serverURL() (string, error) {
	server := loginServer
	if server == "" {
		cfg, err := loadConfig()
		if err != nil {
			return "", fmt.Errorf("failed to load config: %w", err)
		}
		server = cfg.ServerURL
	}
	if server == "" {
		return "", fmt.Errorf("no server URL given, use --server or set AYON_SERVER_URL")
	}
	return strings.TrimSuffix(server, "/"), nil
}
