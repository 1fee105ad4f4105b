package script

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/apresai/readcast/internal/retry"
)

var claudeModels = map[string]string{
	"haiku":  "claude-haiku-4-5-20251001",
	"sonnet": "claude-sonnet-4-5-20250929",
}

const claudeMaxTokens = 8192

// ClaudeGenerator sends the prompt to the Anthropic Messages API as the
// single user turn.
type ClaudeGenerator struct {
	client anthropic.Client
	model  string
	hosts  Hosts
	policy retry.Policy
	log    *slog.Logger
}

// NewClaudeGenerator accepts a short alias (haiku, sonnet) or a full model ID.
func NewClaudeGenerator(opts Options) *ClaudeGenerator {
	reqOpts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithRequestTimeout(opts.timeout()),
	}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	model := claudeModels[opts.Model]
	if model == "" {
		model = opts.Model
	}
	if model == "" {
		model = claudeModels["haiku"]
	}

	return &ClaudeGenerator{
		client: anthropic.NewClient(reqOpts...),
		model:  model,
		hosts:  opts.Hosts,
		policy: opts.policy(),
		log:    opts.logger(),
	}
}

func (g *ClaudeGenerator) Generate(ctx context.Context, sourceText string) (*Script, error) {
	prompt := BuildPrompt(sourceText, g.hosts)

	text, err := retry.Do(ctx, g.policy, "script.claude", func(ctx context.Context) (string, error) {
		message, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(g.model),
			MaxTokens: claudeMaxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return "", fmt.Errorf("Claude API error: %w", err)
		}
		text, ok := extractText(message)
		if !ok {
			return "", retry.Permanent(fmt.Errorf("%w: no text block from Claude", ErrMalformedResponse))
		}
		return text, nil
	})
	if err != nil {
		return nil, err
	}

	s := ParseScript(text)
	g.log.DebugContext(ctx, "Generated script", "model", g.model, "lines", len(s.Lines))
	return s, nil
}

// extractText joins the text blocks of msg. ok is false when there are none.
func extractText(msg *anthropic.Message) (text string, ok bool) {
	if msg == nil {
		return "", false
	}
	var parts []string
	for _, block := range msg.Content {
		if tb, isText := block.AsAny().(anthropic.TextBlock); isText {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, ""), len(parts) > 0
}

var _ Generator = (*ClaudeGenerator)(nil)
