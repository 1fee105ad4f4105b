package script

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/apresai/readcast/internal/retry"
)

const (
	DefaultOpenAIModel = "gpt-4o"
	defaultTimeout     = 60 * time.Second
)

// Options is shared by every generator backend.
type Options struct {
	// BaseURL overrides the provider endpoint. For OpenAI-compatible
	// servers it is the API root that /chat/completions is appended to.
	BaseURL string
	APIKey  string
	Model   string
	Hosts   Hosts
	Timeout time.Duration
	Retry   retry.Policy
	Logger  *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return defaultTimeout
}

func (o Options) policy() retry.Policy {
	p := o.Retry
	p.Logger = o.logger()
	return p
}

// OpenAIGenerator asks any OpenAI-compatible chat completions endpoint for
// the dialogue. The whole prompt goes out as one system message.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	hosts  Hosts
	policy retry.Policy
	log    *slog.Logger
}

func NewOpenAIGenerator(opts Options) *OpenAIGenerator {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: opts.timeout()}

	model := opts.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		hosts:  opts.Hosts,
		policy: opts.policy(),
		log:    opts.logger(),
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, sourceText string) (*Script, error) {
	prompt := BuildPrompt(sourceText, g.hosts)

	text, err := retry.Do(ctx, g.policy, "script.chat", func(ctx context.Context) (string, error) {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: prompt},
			},
		})
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", retry.Permanent(fmt.Errorf("%w: no choices", ErrMalformedResponse))
		}
		// Empty content is a valid reply that parses to zero lines.
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return nil, err
	}

	s := ParseScript(text)
	g.log.DebugContext(ctx, "Generated script", "model", g.model, "lines", len(s.Lines))
	return s, nil
}

var _ Generator = (*OpenAIGenerator)(nil)
