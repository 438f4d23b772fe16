package credentials

import (
	"context"
	"fmt"

	"github.com/ynput/ayonfixt/internal/config"
)

// EnvSource uses the key from the layered configuration
type EnvSource struct{}

func (s *EnvSource) Kind() string {
	return config.SourceEnv
}

func (s *EnvSource) APIKey(_ context.Context, req Request) (string, error) {
	if req.Inline == "" {
		return "", fmt.Errorf("%s is not set", config.EnvAPIKey)
	}
	return req.Inline, nil
}
