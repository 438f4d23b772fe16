package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/ynput/ayonfixt/internal/config"
)

// SecretsManagerConfig represents the api_key_source settings for AWS Secrets Manager
type SecretsManagerConfig struct {
	// SecretID is the ARN or name of the secret (required)
	SecretID string `json:"secret_id"`
	// Region is the AWS region where the secret is stored (optional)
	Region string `json:"region,omitempty"`
	// Endpoint is a custom endpoint URL, e.g. LocalStack (optional)
	Endpoint string `json:"endpoint,omitempty"`
	// Key is the JSON field holding the API key (optional, defaults to "api_key").
	// Plain string secrets are used as is.
	Key string `json:"key,omitempty"`

	// RoleArn is assumed with a web identity token when set (optional)
	RoleArn string `json:"role_arn,omitempty"`
	// WebIdentityTokenFile holds the OIDC token, e.g. from a CI runner (optional,
	// defaults to AWS_WEB_IDENTITY_TOKEN_FILE)
	WebIdentityTokenFile string `json:"web_identity_token_file,omitempty"`
	// SessionName defaults to "ayonfixt-session"
	SessionName string `json:"session_name,omitempty"`
}

// SecretsManagerSource reads the key from AWS Secrets Manager
type SecretsManagerSource struct {
	client *secretsmanager.Client
}

func (s *SecretsManagerSource) Kind() string {
	return config.SourceAWSSecretsManager
}

func (s *SecretsManagerSource) Remote() bool {
	return true
}

func (s *SecretsManagerSource) APIKey(ctx context.Context, req Request) (string, error) {
	cfg, err := decode[SecretsManagerConfig](req.Config)
	if err != nil {
		return "", fmt.Errorf("invalid aws_secretsmanager configuration: %w", err)
	}
	if cfg.SecretID == "" {
		return "", fmt.Errorf("aws_secretsmanager source requires 'secret_id' field in configuration")
	}
	if err := s.ensureClient(ctx, cfg); err != nil {
		return "", fmt.Errorf("failed to initialize AWS client: %w", err)
	}

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(cfg.SecretID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch secret from AWS Secrets Manager: %w", err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret '%s' has no string value", cfg.SecretID)
	}
	return secretField(*result.SecretString, cfg.Key)
}

// secretField picks field from a JSON secret; non-JSON secrets are returned whole
func secretField(secret, field string) (string, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(secret), &data); err != nil {
		return secret, nil
	}
	if field == "" {
		field = "api_key"
	}
	v, ok := data[field]
	if !ok {
		return "", fmt.Errorf("secret has no field '%s'", field)
	}
	return stringValue(v)
}

func (s *SecretsManagerSource) ensureClient(ctx context.Context, cfg *SecretsManagerConfig) error {
	if s.client != nil {
		return nil
	}

	var awsCfg aws.Config
	var err error
	if cfg.RoleArn != "" {
		awsCfg, err = assumeRoleWithWebIdentity(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to assume role: %w", err)
		}
	} else {
		awsCfg, err = loadDefaultConfig(ctx, cfg)
		if err != nil {
			return err
		}
	}

	var opts []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	s.client = secretsmanager.NewFromConfig(awsCfg, opts...)
	return nil
}

func loadDefaultConfig(ctx context.Context, cfg *SecretsManagerConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	// a custom endpoint means LocalStack or similar, where the default
	// credential chain (IMDS and friends) does not apply
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider("test", "test", ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}
	return awsCfg, nil
}

func assumeRoleWithWebIdentity(ctx context.Context, cfg *SecretsManagerConfig) (aws.Config, error) {
	tokenFile := cfg.WebIdentityTokenFile
	if tokenFile == "" {
		tokenFile = os.Getenv("AWS_WEB_IDENTITY_TOKEN_FILE")
	}
	if tokenFile == "" {
		return aws.Config{}, fmt.Errorf("role_arn requires 'web_identity_token_file' or AWS_WEB_IDENTITY_TOKEN_FILE")
	}
	token, err := os.ReadFile(tokenFile)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to read web identity token: %w", err)
	}

	sessionName := cfg.SessionName
	if sessionName == "" {
		sessionName = "ayonfixt-session"
	}

	baseCfg, err := loadDefaultConfig(ctx, cfg)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var stsOpts []func(*sts.Options)
	if cfg.Endpoint != "" {
		stsOpts = append(stsOpts, func(o *sts.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	result, err := sts.NewFromConfig(baseCfg, stsOpts...).AssumeRoleWithWebIdentity(ctx, &sts.AssumeRoleWithWebIdentityInput{
		RoleArn:          aws.String(cfg.RoleArn),
		RoleSessionName:  aws.String(sessionName),
		WebIdentityToken: aws.String(string(token)),
	})
	if err != nil {
		return aws.Config{}, fmt.Errorf("STS AssumeRoleWithWebIdentity failed: %w", err)
	}

	return aws.Config{
		Region: baseCfg.Region,
		Credentials: awscreds.NewStaticCredentialsProvider(
			*result.Credentials.AccessKeyId,
			*result.Credentials.SecretAccessKey,
			*result.Credentials.SessionToken,
		),
	}, nil
}
