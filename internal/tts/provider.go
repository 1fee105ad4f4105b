package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// Voice holds a provider-specific voice identifier.
type Voice struct {
	ID   string // Provider-specific voice identifier
	Name string // Human-readable label
}

// VoicePair is a provider's female and male default voice.
type VoicePair struct {
	Female Voice
	Male   Voice
}

// Provider turns one piece of text into MP3 bytes.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
	DefaultVoices() VoicePair
	Close() error
}

// ProviderConfig carries the connection settings for a provider. Fields a
// provider has no use for are ignored.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Speed   float64

	// Project and Region locate the Vertex AI endpoint.
	Project string
	Region  string
	// Converter re-encodes raw audio for providers that do not return MP3.
	Converter AudioConverter
}

func (c ProviderConfig) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 60 * time.Second
}

// VoiceInfo describes an available voice for display in the registry.
type VoiceInfo struct {
	ID          string
	Name        string
	Gender      string // "male" or "female"
	Description string
	Default     bool
}

// Providers lists the accepted values for the tts provider setting.
var Providers = []string{"openai", "elevenlabs", "google", "polly", "vertex"}

// AvailableVoices returns the voice catalog for the named provider.
func AvailableVoices(providerName string) ([]VoiceInfo, error) {
	switch providerName {
	case "", "openai":
		return openAIAvailableVoices(), nil
	case "elevenlabs":
		return elevenLabsAvailableVoices(), nil
	case "google":
		return googleAvailableVoices(), nil
	case "polly":
		return pollyAvailableVoices(), nil
	case "vertex":
		return vertexAvailableVoices(), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", providerName)
	}
}

// NewProvider creates a TTS provider by name. loadAWS is only called for
// AWS-backed providers.
func NewProvider(ctx context.Context, name string, cfg ProviderConfig, loadAWS func(context.Context) (aws.Config, error)) (Provider, error) {
	switch name {
	case "", "openai":
		return NewOpenAIProvider(cfg), nil
	case "elevenlabs":
		return NewElevenLabsProvider(cfg), nil
	case "google":
		return NewGoogleProvider(ctx, cfg)
	case "vertex":
		return NewVertexProvider(ctx, cfg)
	case "polly":
		if loadAWS == nil {
			return nil, fmt.Errorf("provider %q needs AWS configuration", name)
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config for Polly: %w", err)
		}
		return NewPollyProvider(awsCfg), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: choose one of %v", name, Providers)
	}
}
