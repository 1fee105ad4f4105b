package script

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/apresai/readcast/internal/retry"
)

var novaModels = map[string]string{
	"nova-lite": "us.amazon.nova-2-lite-v1:0",
}

const novaMaxTokens = 8192

// ConverseAPI is the slice of the Bedrock runtime client the generator uses.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// NovaGenerator runs the prompt through Bedrock Converse.
type NovaGenerator struct {
	client ConverseAPI
	model  string
	hosts  Hosts
	policy retry.Policy
	log    *slog.Logger
}

// NewNovaGenerator builds the generator on an already loaded AWS config;
// see config.AWSConfig.
func NewNovaGenerator(awsCfg aws.Config, opts Options) *NovaGenerator {
	return newNovaGenerator(bedrockruntime.NewFromConfig(awsCfg), opts)
}

func newNovaGenerator(client ConverseAPI, opts Options) *NovaGenerator {
	model := novaModels[opts.Model]
	if model == "" {
		model = opts.Model
	}
	if model == "" {
		model = novaModels["nova-lite"]
	}
	return &NovaGenerator{
		client: client,
		model:  model,
		hosts:  opts.Hosts,
		policy: opts.policy(),
		log:    opts.logger(),
	}
}

func (g *NovaGenerator) Generate(ctx context.Context, sourceText string) (*Script, error) {
	prompt := BuildPrompt(sourceText, g.hosts)

	text, err := retry.Do(ctx, g.policy, "script.bedrock", func(ctx context.Context) (string, error) {
		resp, err := g.client.Converse(ctx, &bedrockruntime.ConverseInput{
			ModelId: aws.String(g.model),
			Messages: []types.Message{
				{
					Role: types.ConversationRoleUser,
					Content: []types.ContentBlock{
						&types.ContentBlockMemberText{Value: prompt},
					},
				},
			},
			InferenceConfig: &types.InferenceConfiguration{
				MaxTokens: aws.Int32(novaMaxTokens),
			},
		})
		if err != nil {
			return "", fmt.Errorf("Bedrock Converse error: %w", err)
		}
		text, ok := extractNovaText(resp)
		if !ok {
			return "", retry.Permanent(fmt.Errorf("%w: no text block from Bedrock", ErrMalformedResponse))
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

// extractNovaText returns the first text block. ok is false when the reply
// carries no message or no text block.
func extractNovaText(resp *bedrockruntime.ConverseOutput) (string, bool) {
	if resp == nil || resp.Output == nil {
		return "", false
	}
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", false
	}
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			return tb.Value, true
		}
	}
	return "", false
}

var _ Generator = (*NovaGenerator)(nil)
