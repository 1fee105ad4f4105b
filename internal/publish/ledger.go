package publish

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
)

// Episode is the DynamoDB record for one generation.
type Episode struct {
	PK          string  `dynamodbav:"PK"`
	SK          string  `dynamodbav:"SK"`
	GSI1PK      string  `dynamodbav:"GSI1PK"`
	GSI1SK      string  `dynamodbav:"GSI1SK"`
	EpisodeID   string  `dynamodbav:"episodeId"`
	Source      string  `dynamodbav:"source"`
	Status      string  `dynamodbav:"status"`
	Model       string  `dynamodbav:"model,omitempty"`
	TTSProvider string  `dynamodbav:"ttsProvider,omitempty"`
	Lines       int     `dynamodbav:"lines,omitempty"`
	AudioKey    string  `dynamodbav:"audioKey,omitempty"`
	AudioURL    string  `dynamodbav:"audioUrl,omitempty"`
	Duration    string  `dynamodbav:"duration,omitempty"`
	FileSizeMB  float64 `dynamodbav:"fileSizeMB,omitempty"`
	Error       string  `dynamodbav:"errorMessage,omitempty"`
	CreatedAt   string  `dynamodbav:"createdAt"`
}

// Completion is the metadata recorded when an episode finishes.
type Completion struct {
	Lines      int
	AudioKey   string
	AudioURL   string
	Duration   string
	FileSizeMB float64
}

// DynamoAPI is the slice of the DynamoDB client the ledger uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Ledger records every generation in DynamoDB.
type Ledger struct {
	client    DynamoAPI
	tableName string
}

func NewLedger(client DynamoAPI, tableName string) *Ledger {
	return &Ledger{client: client, tableName: tableName}
}

// NewEpisodeID generates a ULID for a new episode.
func NewEpisodeID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

func episodeKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "EPISODE#" + id},
		"SK": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}

// Create inserts a new episode with status=submitted.
func (l *Ledger) Create(ctx context.Context, id, source, model, ttsProvider string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	item := Episode{
		PK:          "EPISODE#" + id,
		SK:          "METADATA",
		GSI1PK:      "EPISODES",
		GSI1SK:      now + "#" + id,
		EpisodeID:   id,
		Source:      source,
		Status:      string(StatusSubmitted),
		Model:       model,
		TTSProvider: ttsProvider,
		CreatedAt:   now,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal episode item: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &l.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("put episode item: %w", err)
	}
	return nil
}

// Complete marks the episode as complete with final metadata.
func (l *Ledger) Complete(ctx context.Context, id string, c Completion) error {
	_, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &l.tableName,
		Key:              episodeKey(id),
		UpdateExpression: aws.String("SET #status = :status, #lines = :lines, audioKey = :akey, audioUrl = :aurl, #dur = :dur, fileSizeMB = :sz"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
			"#lines":  "lines",
			"#dur":    "duration",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(StatusComplete)},
			":lines":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", c.Lines)},
			":akey":   &types.AttributeValueMemberS{Value: c.AudioKey},
			":aurl":   &types.AttributeValueMemberS{Value: c.AudioURL},
			":dur":    &types.AttributeValueMemberS{Value: c.Duration},
			":sz":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%.2f", c.FileSizeMB)},
		},
	})
	if err != nil {
		return fmt.Errorf("complete episode: %w", err)
	}
	return nil
}

// Fail marks the episode as failed with an error message.
func (l *Ledger) Fail(ctx context.Context, id, errMsg string) error {
	_, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &l.tableName,
		Key:              episodeKey(id),
		UpdateExpression: aws.String("SET #status = :status, errorMessage = :err"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(StatusFailed)},
			":err":    &types.AttributeValueMemberS{Value: errMsg},
		},
	})
	if err != nil {
		return fmt.Errorf("fail episode: %w", err)
	}
	return nil
}

// Get retrieves a single episode by ID. A missing episode is (nil, nil).
func (l *Ledger) Get(ctx context.Context, id string) (*Episode, error) {
	result, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &l.tableName,
		Key:       episodeKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item Episode
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal episode: %w", err)
	}
	return &item, nil
}

// List returns episodes ordered by creation time (newest first) via GSI1.
// cursor is the GSI1SK returned by the previous page.
func (l *Ledger) List(ctx context.Context, limit int, cursor string) ([]Episode, string, error) {
	if limit <= 0 {
		limit = 20
	}

	input := &dynamodb.QueryInput{
		TableName:              &l.tableName,
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "EPISODES"},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	if cursor != "" {
		_, id, ok := strings.Cut(cursor, "#")
		if !ok || id == "" {
			return nil, "", fmt.Errorf("invalid cursor format")
		}
		start := episodeKey(id)
		start["GSI1PK"] = &types.AttributeValueMemberS{Value: "EPISODES"}
		start["GSI1SK"] = &types.AttributeValueMemberS{Value: cursor}
		input.ExclusiveStartKey = start
	}

	result, err := l.client.Query(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("list episodes: %w", err)
	}

	var items []Episode
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, "", fmt.Errorf("unmarshal episode list: %w", err)
	}

	var next string
	if result.LastEvaluatedKey != nil {
		if sk, ok := result.LastEvaluatedKey["GSI1SK"].(*types.AttributeValueMemberS); ok {
			next = sk.Value
		}
	}
	return items, next, nil
}
