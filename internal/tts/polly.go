package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

const (
	pollyDefaultFemale = "Ruth"
	pollyDefaultMale   = "Matthew"
)

// pollyVoiceLang maps voice IDs to their language codes.
var pollyVoiceLang = map[string]types.LanguageCode{
	"Matthew":  types.LanguageCodeEnUs,
	"Ruth":     types.LanguageCodeEnUs,
	"Stephen":  types.LanguageCodeEnUs,
	"Danielle": types.LanguageCodeEnUs,
	"Amy":      types.LanguageCodeEnGb,
	"Olivia":   types.LanguageCodeEnAu,
	"Kajal":    types.LanguageCodeEnIn,
}

// PollyAPI is the slice of the Polly client the provider uses.
type PollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyProvider implements Provider using AWS Polly (Generative engine).
type PollyProvider struct {
	client PollyAPI
}

func NewPollyProvider(awsCfg aws.Config) *PollyProvider {
	return &PollyProvider{client: polly.NewFromConfig(awsCfg)}
}

func (p *PollyProvider) Name() string { return "polly" }

func (p *PollyProvider) DefaultVoices() VoicePair {
	return VoicePair{
		Female: Voice{ID: pollyDefaultFemale, Name: pollyDefaultFemale},
		Male:   Voice{ID: pollyDefaultMale, Name: pollyDefaultMale},
	}
}

func (p *PollyProvider) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	lang, ok := pollyVoiceLang[voice.ID]
	if !ok {
		lang = types.LanguageCodeEnUs
	}

	resp, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       types.EngineGenerative,
		OutputFormat: types.OutputFormatMp3,
		SampleRate:   aws.String("24000"),
		Text:         aws.String(text),
		TextType:     types.TextTypeText,
		VoiceId:      types.VoiceId(voice.ID),
		LanguageCode: lang,
	})
	if err != nil {
		return nil, fmt.Errorf("Polly synthesize: %w", err)
	}
	defer resp.AudioStream.Close()

	data, err := io.ReadAll(resp.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("Polly read audio: %w", err)
	}
	return data, nil
}

func (p *PollyProvider) Close() error { return nil }

func pollyAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "Ruth", Name: "Ruth", Gender: "female", Description: "en-US, Generative", Default: true},
		{ID: "Matthew", Name: "Matthew", Gender: "male", Description: "en-US, Generative", Default: true},
		{ID: "Amy", Name: "Amy", Gender: "female", Description: "en-GB, Generative"},
		{ID: "Stephen", Name: "Stephen", Gender: "male", Description: "en-US, Generative"},
		{ID: "Danielle", Name: "Danielle", Gender: "female", Description: "en-US, Generative"},
		{ID: "Olivia", Name: "Olivia", Gender: "female", Description: "en-AU, Generative"},
		{ID: "Kajal", Name: "Kajal", Gender: "female", Description: "en-IN, Generative"},
	}
}

var _ Provider = (*PollyProvider)(nil)
