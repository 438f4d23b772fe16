package end2end

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/hashicorp/vault/api"
	"github.com/testcontainers/testcontainers-go"
	localstack "github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/modules/vault"
	"gopkg.in/yaml.v3"

	"github.com/ynput/ayonfixt/internal/config"
)

const (
	vaultToken = "ayonfixt-e2e"
	// vaultMount is a kv-v2 engine holding one secret per AYON server
	vaultMount = "ayon"
	awsRegion  = "us-east-1"
)

// RequireDocker skips container tests in -short mode or without a Docker daemon
func RequireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("container tests are skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

// VaultStore is a dev mode Vault where AYON API keys are seeded
type VaultStore struct {
	Address string
	client  *api.Client
}

// StartVault runs Vault until the test ends and mounts a kv-v2 engine at vaultMount
func StartVault(ctx context.Context, t *testing.T) *VaultStore {
	t.Helper()

	container, err := vault.Run(ctx, "hashicorp/vault:latest", vault.WithToken(vaultToken))
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("Failed to start vault container: %v", err)
	}

	address, err := container.HttpHostAddress(ctx)
	if err != nil {
		t.Fatalf("Failed to get vault address: %v", err)
	}
	client, err := api.NewClient(&api.Config{Address: address})
	if err != nil {
		t.Fatalf("Failed to create vault client: %v", err)
	}
	client.SetToken(vaultToken)

	err = client.Sys().MountWithContext(ctx, vaultMount, &api.MountInput{
		Type:    "kv",
		Options: map[string]string{"version": "2"},
	})
	if err != nil {
		t.Fatalf("Failed to mount %s: %v", vaultMount, err)
	}
	return &VaultStore{Address: address, client: client}
}

// SeedAPIKey writes fields to the secret at path and returns the source
// reading its api_key field
func (v *VaultStore) SeedAPIKey(ctx context.Context, t *testing.T, path string, fields map[string]any) config.APIKeySource {
	t.Helper()

	// a fresh kv-v2 mount rejects writes until its upgrade finishes
	var err error
	for range 20 {
		if _, err = v.client.KVv2(vaultMount).Put(ctx, path, fields); err == nil {
			break
		}
		time.Sleep(250 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Failed to seed %s/%s: %v", vaultMount, path, err)
	}
	return config.APIKeySource{
		Kind: config.SourceVault,
		Config: map[string]any{
			"address": v.Address,
			"token":   vaultToken,
			"mount":   vaultMount,
			"path":    path,
		},
	}
}

// SecretsManagerStore is a LocalStack Secrets Manager where AYON API keys are seeded
type SecretsManagerStore struct {
	Endpoint string
	client   *secretsmanager.Client
}

// StartSecretsManager runs LocalStack with only Secrets Manager until the test ends
func StartSecretsManager(ctx context.Context, t *testing.T) *SecretsManagerStore {
	t.Helper()

	container, err := localstack.Run(ctx, "localstack/localstack:latest",
		testcontainers.WithEnv(map[string]string{"SERVICES": "secretsmanager"}),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("Failed to start localstack container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get localstack host: %v", err)
	}
	port, err := container.MappedPort(ctx, "4566/tcp")
	if err != nil {
		t.Fatalf("Failed to get localstack port: %v", err)
	}
	endpoint := fmt.Sprintf("http://%s:%s", host, port.Port())

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(awsRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		t.Fatalf("Failed to load AWS config: %v", err)
	}
	client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return &SecretsManagerStore{Endpoint: endpoint, client: client}
}

// SeedAPIKey stores {"api_key": apiKey} as secretID and returns the source reading it
func (s *SecretsManagerStore) SeedAPIKey(ctx context.Context, t *testing.T, secretID, apiKey string) config.APIKeySource {
	t.Helper()

	secret, err := json.Marshal(map[string]string{"api_key": apiKey})
	if err != nil {
		t.Fatalf("Failed to marshal secret: %v", err)
	}
	_, err = s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(secretID),
		SecretString: aws.String(string(secret)),
	})
	if err != nil {
		t.Fatalf("Failed to seed secret %s: %v", secretID, err)
	}
	return config.APIKeySource{
		Kind: config.SourceAWSSecretsManager,
		Config: map[string]any{
			"secret_id": secretID,
			"region":    awsRegion,
			"endpoint":  s.Endpoint,
		},
	}
}

// WriteConfig writes a .ayonfixt.yml for serverURL taking its key from src
func WriteConfig(t *testing.T, serverURL string, src config.APIKeySource) string {
	t.Helper()

	source := map[string]any{"kind": src.Kind}
	for k, v := range src.Config {
		source[k] = v
	}
	data, err := yaml.Marshal(map[string]any{
		"server_url":     serverURL,
		"api_key_source": source,
	})
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}

	path := filepath.Join(t.TempDir(), config.DefaultFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}
