package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/apresai/readcast/internal/retry"
)

const (
	vertexDefaultModel  = "gemini-2.5-flash-tts"
	vertexDefaultRegion = "us-central1"
	vertexScope         = "https://www.googleapis.com/auth/cloud-platform"

	vertexDefaultFemale = "Leda"
	vertexDefaultMale   = "Charon"
)

// AudioConverter turns a raw audio file into an MP3 file.
type AudioConverter interface {
	ConvertToMP3(ctx context.Context, input, format, output string) error
}

type vertexRequest struct {
	Contents         []vertexContent `json:"contents"`
	GenerationConfig vertexGenConfig `json:"generationConfig"`
}

type vertexContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []vertexPart `json:"parts"`
}

type vertexPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *vertexInlineData `json:"inlineData,omitempty"`
}

type vertexInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 PCM, 24kHz 16-bit mono
}

type vertexGenConfig struct {
	ResponseModalities []string           `json:"responseModalities"`
	SpeechConfig       vertexSpeechConfig `json:"speechConfig"`
}

type vertexSpeechConfig struct {
	VoiceConfig vertexVoiceConfig `json:"voiceConfig"`
}

type vertexVoiceConfig struct {
	PrebuiltVoiceConfig struct {
		VoiceName string `json:"voiceName"`
	} `json:"prebuiltVoiceConfig"`
}

type vertexResponse struct {
	Candidates []struct {
		Content vertexContent `json:"content"`
	} `json:"candidates"`
}

// VertexProvider speaks through Gemini TTS on Vertex AI. The API answers
// with raw PCM, which the converter re-encodes to MP3.
type VertexProvider struct {
	endpoint   string
	httpClient *http.Client
	converter  AudioConverter
}

// NewVertexProvider authenticates with Application Default Credentials.
func NewVertexProvider(ctx context.Context, cfg ProviderConfig) (*VertexProvider, error) {
	ts, err := google.DefaultTokenSource(ctx, vertexScope)
	if err != nil {
		return nil, fmt.Errorf("get default token source: %w (run 'gcloud auth application-default login' or set GOOGLE_APPLICATION_CREDENTIALS)", err)
	}
	return newVertexProvider(ctx, cfg, ts)
}

func newVertexProvider(ctx context.Context, cfg ProviderConfig, ts oauth2.TokenSource) (*VertexProvider, error) {
	if cfg.Project == "" {
		return nil, errors.New("vertex provider needs a GCP project")
	}
	if cfg.Converter == nil {
		return nil, errors.New("vertex provider needs an audio converter")
	}
	region := cfg.Region
	if region == "" {
		region = vertexDefaultRegion
	}
	model := cfg.Model
	if model == "" {
		model = vertexDefaultModel
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s-aiplatform.googleapis.com", region)
	}

	client := oauth2.NewClient(ctx, ts)
	client.Timeout = cfg.timeout()
	return &VertexProvider{
		endpoint: fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
			base, cfg.Project, region, model),
		httpClient: client,
		converter:  cfg.Converter,
	}, nil
}

func (p *VertexProvider) Name() string { return "vertex" }

func (p *VertexProvider) DefaultVoices() VoicePair {
	return VoicePair{
		Female: Voice{ID: vertexDefaultFemale, Name: "Leda"},
		Male:   Voice{ID: vertexDefaultMale, Name: "Charon"},
	}
}

func (p *VertexProvider) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	pcm, err := p.requestPCM(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	return p.toMP3(ctx, pcm)
}

func (p *VertexProvider) requestPCM(ctx context.Context, text string, voice Voice) ([]byte, error) {
	body := vertexRequest{
		Contents: []vertexContent{{Role: "user", Parts: []vertexPart{{Text: text}}}},
		GenerationConfig: vertexGenConfig{
			ResponseModalities: []string{"AUDIO"},
		},
	}
	body.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = voice.ID

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("marshal Vertex request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, fmt.Errorf("Vertex AI API error (status %d): %s", res.StatusCode, string(errBody))
	}

	var resp vertexResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parse Vertex response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 ||
		resp.Candidates[0].Content.Parts[0].InlineData == nil {
		return nil, retry.Permanent(errors.New("Vertex response contained no audio data"))
	}

	data, err := base64.StdEncoding.DecodeString(resp.Candidates[0].Content.Parts[0].InlineData.Data)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode Vertex audio base64: %w", err))
	}
	return data, nil
}

// toMP3 round-trips pcm through a scratch directory for the converter.
func (p *VertexProvider) toMP3(ctx context.Context, pcm []byte) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	dir, err := os.MkdirTemp("", "readcast-vertex-")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "line.pcm")
	out := filepath.Join(dir, "line.mp3")
	if err := os.WriteFile(in, pcm, 0644); err != nil {
		return nil, fmt.Errorf("write pcm: %w", err)
	}
	if err := p.converter.ConvertToMP3(ctx, in, "pcm", out); err != nil {
		return nil, retry.Permanent(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read converted audio: %w", err)
	}
	return data, nil
}

func (p *VertexProvider) Close() error { return nil }

func vertexAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "Leda", Name: "Leda", Gender: "female", Description: "Youthful, bright female voice", Default: true},
		{ID: "Charon", Name: "Charon", Gender: "male", Description: "Informative, clear male narrator", Default: true},
		{ID: "Kore", Name: "Kore", Gender: "female", Description: "Firm, confident female voice"},
		{ID: "Aoede", Name: "Aoede", Gender: "female", Description: "Bright, expressive female voice"},
		{ID: "Zephyr", Name: "Zephyr", Gender: "female", Description: "Breezy, relaxed female voice"},
		{ID: "Fenrir", Name: "Fenrir", Gender: "male", Description: "Deep, resonant male voice"},
		{ID: "Puck", Name: "Puck", Gender: "male", Description: "Upbeat, energetic male voice"},
		{ID: "Orus", Name: "Orus", Gender: "male", Description: "Warm, steady male narrator"},
	}
}

var _ Provider = (*VertexProvider)(nil)
