package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

// LoadAWS loads the default AWS configuration for region with OpenTelemetry
// middleware attached to every client built from it.
func LoadAWS(ctx context.Context, region string) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	return awsCfg, nil
}

// SecretsAPI is the slice of the Secrets Manager client LoadSecrets uses.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// secretEnvVars are fetched as prefix+name and exported under name.
var secretEnvVars = []string{
	"OPENAI_API_KEY",
	"ANTHROPIC_API_KEY",
	"ELEVENLABS_API_KEY",
	"GEMINI_API_KEY",
}

// LoadSecrets fetches API keys from Secrets Manager and sets them as env
// vars. Variables already set in the environment win. It returns how many
// secrets were loaded.
func LoadSecrets(ctx context.Context, client SecretsAPI, prefix string, logger *slog.Logger) int {
	loaded := 0
	for _, envVar := range secretEnvVars {
		// Skip if already set in environment
		if os.Getenv(envVar) != "" {
			continue
		}

		secretID := prefix + envVar
		result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: &secretID,
		})
		if err != nil {
			logger.InfoContext(ctx, "Secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if result.SecretString != nil {
			os.Setenv(envVar, *result.SecretString)
			logger.InfoContext(ctx, "Loaded secret", "secret_id", secretID)
			loaded++
		}
	}
	return loaded
}

// NewSecretsClient builds a Secrets Manager client from awsCfg.
func NewSecretsClient(awsCfg aws.Config) *secretsmanager.Client {
	return secretsmanager.NewFromConfig(awsCfg)
}
