package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/apresai/readcast/internal/retry"
)

var geminiModels = map[string]string{
	"gemini-flash": "gemini-2.5-flash",
	"gemini-pro":   "gemini-2.5-pro",
}

const (
	geminiDefaultBase = "https://generativelanguage.googleapis.com/v1beta"
	geminiMaxTokens   = 8192
	geminiTemperature = 0.7
)

// GeminiGenerator calls the Gemini generateContent REST endpoint.
type GeminiGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	hosts      Hosts
	httpClient *http.Client
	policy     retry.Policy
	log        *slog.Logger
}

func NewGeminiGenerator(opts Options) *GeminiGenerator {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = geminiDefaultBase
	}
	model := geminiModels[opts.Model]
	if model == "" {
		model = opts.Model
	}
	if model == "" {
		model = geminiModels["gemini-flash"]
	}
	return &GeminiGenerator{
		baseURL:    base,
		apiKey:     opts.APIKey,
		model:      model,
		hosts:      opts.Hosts,
		httpClient: &http.Client{Timeout: opts.timeout()},
		policy:     opts.policy(),
		log:        opts.logger(),
	}
}

type geminiTextRequest struct {
	Contents         []geminiTextContent `json:"contents"`
	GenerationConfig *geminiTextGenCfg   `json:"generationConfig,omitempty"`
}

type geminiTextContent struct {
	Role  string           `json:"role,omitempty"`
	Parts []geminiTextPart `json:"parts"`
}

type geminiTextPart struct {
	Text string `json:"text"`
}

type geminiTextGenCfg struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiTextResponse struct {
	Candidates []struct {
		Content *geminiTextContent `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiGenerator) Generate(ctx context.Context, sourceText string) (*Script, error) {
	body := geminiTextRequest{
		Contents: []geminiTextContent{
			{Role: "user", Parts: []geminiTextPart{{Text: BuildPrompt(sourceText, g.hosts)}}},
		},
		GenerationConfig: &geminiTextGenCfg{
			Temperature:     geminiTemperature,
			MaxOutputTokens: geminiMaxTokens,
		},
	}

	text, err := retry.Do(ctx, g.policy, "script.gemini", func(ctx context.Context) (string, error) {
		return g.doRequest(ctx, body)
	})
	if err != nil {
		return nil, err
	}

	s := ParseScript(text)
	g.log.DebugContext(ctx, "Generated script", "model", g.model, "lines", len(s.Lines))
	return s, nil
}

func (g *GeminiGenerator) doRequest(ctx context.Context, reqBody geminiTextRequest) (string, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	res, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return "", fmt.Errorf("Gemini API error (status %d): %s", res.StatusCode, string(errBody))
	}

	var resp geminiTextResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", retry.Permanent(fmt.Errorf("%w: no candidates from Gemini", ErrMalformedResponse))
	}

	var parts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, ""), nil
}

var _ Generator = (*GeminiGenerator)(nil)
