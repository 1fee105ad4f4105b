package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Publisher uploads finished podcasts and keeps the ledger in step.
type Publisher struct {
	storage *Storage
	ledger  *Ledger
	log     *slog.Logger
}

func NewPublisher(storage *Storage, ledger *Ledger, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{storage: storage, ledger: ledger, log: logger}
}

// NewAWSPublisher wires S3 and DynamoDB clients from awsCfg.
func NewAWSPublisher(awsCfg aws.Config, bucket, cdnBaseURL, table string, logger *slog.Logger) *Publisher {
	return NewPublisher(
		NewStorage(s3.NewFromConfig(awsCfg), bucket, cdnBaseURL),
		NewLedger(dynamodb.NewFromConfig(awsCfg), table),
		logger,
	)
}

func (p *Publisher) Ledger() *Ledger { return p.ledger }

// Begin records a submitted episode and returns its ID.
func (p *Publisher) Begin(ctx context.Context, source, model, ttsProvider string) (string, error) {
	id, err := NewEpisodeID()
	if err != nil {
		return "", err
	}
	if err := p.ledger.Create(ctx, id, source, model, ttsProvider); err != nil {
		return "", err
	}
	p.log.InfoContext(ctx, "Episode submitted", "episode_id", id, "source", source)
	return id, nil
}

// Finish uploads the MP3 at path and marks the episode complete. It returns
// the public URL.
func (p *Publisher) Finish(ctx context.Context, id, path string, lines int, duration string) (string, error) {
	key, url, err := p.storage.Upload(ctx, id, path)
	if err != nil {
		p.Fail(ctx, id, err)
		return "", err
	}

	var sizeMB float64
	if info, err := os.Stat(path); err == nil {
		sizeMB = float64(info.Size()) / (1024 * 1024)
	}

	if err := p.ledger.Complete(ctx, id, Completion{
		Lines:      lines,
		AudioKey:   key,
		AudioURL:   url,
		Duration:   duration,
		FileSizeMB: sizeMB,
	}); err != nil {
		return url, fmt.Errorf("record completion: %w", err)
	}
	p.log.InfoContext(ctx, "Episode published", "episode_id", id, "url", url)
	return url, nil
}

// Fail records cause on the episode. Ledger errors are logged only.
func (p *Publisher) Fail(ctx context.Context, id string, cause error) {
	if err := p.ledger.Fail(ctx, id, cause.Error()); err != nil {
		p.log.WarnContext(ctx, "Failed to record episode failure", "episode_id", id, "error", err)
	}
}
