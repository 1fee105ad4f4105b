package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	openAIDefaultFemale = "nova"
	openAIDefaultMale   = "onyx"
	openAIDefaultModel  = "tts-1"
)

// OpenAIProvider implements Provider against any OpenAI-compatible
// /audio/speech endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	speed  float64
}

func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.timeout()}

	model := cfg.Model
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		speed:  cfg.Speed,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) DefaultVoices() VoicePair {
	return VoicePair{
		Female: Voice{ID: openAIDefaultFemale, Name: "Nova"},
		Male:   Voice{ID: openAIDefaultMale, Name: "Onyx"},
	}
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(p.model),
		Input: text,
		Voice: openai.SpeechVoice(voice.ID),
		Speed: p.speed,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return data, nil
}

func (p *OpenAIProvider) Close() error { return nil }

func openAIAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "nova", Name: "Nova", Gender: "female", Description: "Bright, friendly female voice", Default: true},
		{ID: "onyx", Name: "Onyx", Gender: "male", Description: "Deep, steady male voice", Default: true},
		{ID: "alloy", Name: "Alloy", Gender: "female", Description: "Neutral, balanced voice"},
		{ID: "echo", Name: "Echo", Gender: "male", Description: "Soft, measured male voice"},
		{ID: "fable", Name: "Fable", Gender: "male", Description: "Expressive British storyteller"},
		{ID: "shimmer", Name: "Shimmer", Gender: "female", Description: "Clear, warm female voice"},
	}
}

var _ Provider = (*OpenAIProvider)(nil)
