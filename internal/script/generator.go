package script

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// Providers lists the accepted values for the script provider setting.
var Providers = []string{"openai", "claude", "nova", "gemini"}

// NewGenerator picks a backend by name. loadAWS is only called for
// Bedrock-backed providers.
func NewGenerator(ctx context.Context, provider string, opts Options, loadAWS func(context.Context) (aws.Config, error)) (Generator, error) {
	switch provider {
	case "", "openai":
		return NewOpenAIGenerator(opts), nil
	case "claude":
		return NewClaudeGenerator(opts), nil
	case "gemini":
		return NewGeminiGenerator(opts), nil
	case "nova":
		if loadAWS == nil {
			return nil, fmt.Errorf("provider %q needs AWS configuration", provider)
		}
		cfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		return NewNovaGenerator(cfg, opts), nil
	default:
		return nil, fmt.Errorf("unknown script provider %q (valid: %v)", provider, Providers)
	}
}
