package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/ynput/ayonfixt/internal/config"
)

// KeyringService is the keyring service API keys are stored under, one
// entry per server URL
const KeyringService = "ayonfixt"

// keyringUser is the entry name for serverURL. Trailing slashes are dropped
// so "http://host/" and "http://host" share one entry.
func keyringUser(serverURL string) string {
	return strings.TrimRight(serverURL, "/")
}

// KeyringSource reads the key stored by 'ayonfixt login'
type KeyringSource struct{}

func (s *KeyringSource) Kind() string {
	return config.SourceKeyring
}

func (s *KeyringSource) APIKey(_ context.Context, req Request) (string, error) {
	if req.ServerURL == "" {
		return "", fmt.Errorf("keyring source requires the server URL")
	}
	key, err := keyring.Get(KeyringService, keyringUser(req.ServerURL))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("no API key stored for %s, run 'ayonfixt login'", keyringUser(req.ServerURL))
	}
	if err != nil {
		return "", fmt.Errorf("failed to read keyring: %w", err)
	}
	return key, nil
}

// StoreAPIKey saves the key for serverURL in the keyring
func StoreAPIKey(serverURL, apiKey string) error {
	if keyringUser(serverURL) == "" || apiKey == "" {
		return fmt.Errorf("server URL and API key are required")
	}
	if err := keyring.Set(KeyringService, keyringUser(serverURL), apiKey); err != nil {
		return fmt.Errorf("failed to save API key to keyring: %w", err)
	}
	return nil
}

// DeleteAPIKey removes the key for serverURL. Deleting a missing key is not an error.
func DeleteAPIKey(serverURL string) error {
	if err := keyring.Delete(KeyringService, keyringUser(serverURL)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to remove API key from keyring: %w", err)
	}
	return nil
}
