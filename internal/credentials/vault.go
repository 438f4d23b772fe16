package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/vault/api"

	"github.com/ynput/ayonfixt/internal/config"
)

// VaultConfig represents the api_key_source settings for HashiCorp Vault
type VaultConfig struct {
	// Address is the Vault server address (optional, defaults to VAULT_ADDR env var)
	Address string `json:"address,omitempty"`
	// Token is the Vault authentication token (optional, defaults to VAULT_TOKEN env var)
	Token string `json:"token,omitempty"`
	// Path is the path to the secret in Vault (required)
	Path string `json:"path"`
	// Mount is the secret engine mount path (optional, defaults to "secret")
	Mount string `json:"mount,omitempty"`
	// Key is the field holding the API key (optional, defaults to "api_key")
	Key string `json:"key,omitempty"`
}

// VaultSource reads the key from a KV v2 or v1 secret
type VaultSource struct {
	client *api.Client
}

func (s *VaultSource) Kind() string {
	return config.SourceVault
}

func (s *VaultSource) Remote() bool {
	return true
}

func (s *VaultSource) APIKey(ctx context.Context, req Request) (string, error) {
	cfg, err := decode[VaultConfig](req.Config)
	if err != nil {
		return "", fmt.Errorf("invalid vault configuration: %w", err)
	}
	if cfg.Path == "" {
		return "", fmt.Errorf("vault source requires 'path' field in configuration")
	}
	if err := s.ensureClient(cfg.Address, cfg.Token); err != nil {
		return "", fmt.Errorf("failed to initialize Vault client: %w", err)
	}

	mount := cfg.Mount
	if mount == "" {
		mount = "secret"
	}
	field := cfg.Key
	if field == "" {
		field = "api_key"
	}
	cleanPath := strings.TrimPrefix(cfg.Path, "/")

	// KV v2 first (mount/data/path), then KV v1 (mount/path)
	secretPath := fmt.Sprintf("%s/data/%s", mount, cleanPath)
	secret, err := s.client.Logical().ReadWithContext(ctx, secretPath)
	if secret == nil && err == nil {
		secretPath = fmt.Sprintf("%s/%s", mount, cleanPath)
		secret, err = s.client.Logical().ReadWithContext(ctx, secretPath)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret from Vault at path '%s': %w", secretPath, err)
	}
	if secret == nil {
		return "", fmt.Errorf("secret not found at path '%s' (tried both KV v1 and v2 formats)", cfg.Path)
	}

	data := secret.Data
	if nested, ok := secret.Data["data"].(map[string]any); ok {
		data = nested
	}
	v, ok := data[field]
	if !ok {
		return "", fmt.Errorf("secret at path '%s' has no field '%s'", secretPath, field)
	}
	return stringValue(v)
}

func (s *VaultSource) ensureClient(address, token string) error {
	if s.client != nil {
		return nil
	}

	cfg := api.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	if address != "" {
		cfg.Address = address
	} else if cfg.Address == "" {
		cfg.Address = "http://127.0.0.1:8200"
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create Vault client: %w", err)
	}

	if token != "" {
		client.SetToken(token)
	} else if envToken := os.Getenv("VAULT_TOKEN"); envToken != "" {
		client.SetToken(envToken)
	}
	if client.Token() == "" {
		return fmt.Errorf("vault authentication token is required (set 'token' in api_key_source or VAULT_TOKEN environment variable)")
	}

	s.client = client
	return nil
}
