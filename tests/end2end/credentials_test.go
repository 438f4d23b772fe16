package end2end

import (
	"context"
	"strings"
	"testing"

	"github.com/ynput/ayonfixt/internal/config"
	"github.com/ynput/ayonfixt/internal/credentials"
	"github.com/ynput/ayonfixt/pkg/ayon"
)

// clearConnectionEnv hides the session's exported connection so the
// configured source is used
func clearConnectionEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvServerURL, "")
	t.Setenv(config.EnvAPIKey, "")
}

func connectWith(ctx context.Context, t *testing.T, cfg *config.Config) {
	t.Helper()

	key, err := credentials.Resolve(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to resolve API key: %v", err)
	}
	if key != fakeAPIKey {
		t.Fatalf("Expected API key %q, got %q", fakeAPIKey, key)
	}

	client, err := ayon.NewClient(cfg.ServerURL, key)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()
	if _, err := client.Connect(ctx); err != nil {
		t.Fatalf("Failed to connect with resolved key: %v", err)
	}
}

func loadConfig(t *testing.T, path string) *config.Config {
	t.Helper()
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// TestE2E_Vault_APIKey reads the API key from a KV v2 secret
func TestE2E_Vault_APIKey(t *testing.T) {
	RequireDocker(t)
	clearConnectionEnv(t)
	ctx := context.Background()

	store := StartVault(ctx, t)
	src := store.SeedAPIKey(ctx, t, "servers/local", map[string]any{
		"api_key": fakeAPIKey,
		"other":   "ignored",
	})

	connectWith(ctx, t, loadConfig(t, WriteConfig(t, fake.URL, src)))
}

// TestE2E_Vault_MissingKey fails when the secret has no api_key field
func TestE2E_Vault_MissingKey(t *testing.T) {
	RequireDocker(t)
	clearConnectionEnv(t)
	ctx := context.Background()

	store := StartVault(ctx, t)
	src := store.SeedAPIKey(ctx, t, "servers/empty", map[string]any{"token": "x"})

	cfg := loadConfig(t, WriteConfig(t, fake.URL, src))
	_, err := credentials.Resolve(ctx, cfg)
	if err == nil {
		t.Fatal("Expected an error for a secret without api_key")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("Expected the error to name the missing field, got: %v", err)
	}
}

// TestE2E_AWSSecretsManager_APIKey reads the API key from a LocalStack secret
func TestE2E_AWSSecretsManager_APIKey(t *testing.T) {
	RequireDocker(t)
	clearConnectionEnv(t)
	ctx := context.Background()

	store := StartSecretsManager(ctx, t)
	src := store.SeedAPIKey(ctx, t, "ayon/test-server", fakeAPIKey)

	connectWith(ctx, t, loadConfig(t, WriteConfig(t, fake.URL, src)))
}
