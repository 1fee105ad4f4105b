package publish

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

type fakeDynamo struct {
	puts    []*dynamodb.PutItemInput
	updates []*dynamodb.UpdateItemInput
	item    map[string]types.AttributeValue
	query   *dynamodb.QueryInput
	items   []map[string]types.AttributeValue
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	f.item = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.item}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.query = in
	return &dynamodb.QueryOutput{Items: f.items}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStorage_Upload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podcast.mp3")
	if err := os.WriteFile(path, []byte("mp3data"), 0o644); err != nil {
		t.Fatal(err)
	}
	fake := &fakeS3{}
	s := NewStorage(fake, "bucket", "https://cdn.example.com/")

	key, url, err := s.Upload(context.Background(), "01ABC", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "audio/01ABC.mp3" {
		t.Errorf("expected audio/01ABC.mp3, got %s", key)
	}
	if url != "https://cdn.example.com/audio/01ABC.mp3" {
		t.Errorf("unexpected url %s", url)
	}
	if *fake.input.ContentType != "audio/mpeg" || *fake.input.ContentLength != 7 {
		t.Errorf("unexpected put input: type=%s len=%d", *fake.input.ContentType, *fake.input.ContentLength)
	}
	if string(fake.body) != "mp3data" {
		t.Errorf("expected file body, got %q", fake.body)
	}
}

func TestNewEpisodeID_Unique(t *testing.T) {
	a, err := NewEpisodeID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := NewEpisodeID()
	if a == b || len(a) != 26 {
		t.Errorf("expected distinct 26-char ULIDs, got %s %s", a, b)
	}
}

func TestLedger_CreateAndGet(t *testing.T) {
	fake := &fakeDynamo{}
	l := NewLedger(fake, "episodes")

	if err := l.Create(context.Background(), "01XYZ", "https://example.com/a", "gpt-4o", "openai"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.puts) != 1 || *fake.puts[0].TableName != "episodes" {
		t.Fatalf("expected one put to episodes, got %+v", fake.puts)
	}

	ep, err := l.Get(context.Background(), "01XYZ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.EpisodeID != "01XYZ" || ep.Status != string(StatusSubmitted) || ep.Source != "https://example.com/a" {
		t.Errorf("unexpected episode %+v", ep)
	}
	if !strings.HasSuffix(ep.GSI1SK, "#01XYZ") {
		t.Errorf("expected GSI1SK to end with id, got %s", ep.GSI1SK)
	}
}

func TestLedger_GetMissing(t *testing.T) {
	l := NewLedger(&fakeDynamo{}, "episodes")
	ep, err := l.Get(context.Background(), "nope")
	if err != nil || ep != nil {
		t.Errorf("expected nil, nil for missing episode, got %v, %v", ep, err)
	}
}

func TestLedger_ListCursor(t *testing.T) {
	item, _ := attributevalue.MarshalMap(Episode{EpisodeID: "01A", Status: "complete"})
	fake := &fakeDynamo{items: []map[string]types.AttributeValue{item}}
	l := NewLedger(fake, "episodes")

	eps, _, err := l.List(context.Background(), 0, "2026-01-01T00:00:00Z#01B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eps) != 1 || eps[0].EpisodeID != "01A" {
		t.Errorf("unexpected episodes %+v", eps)
	}
	if *fake.query.Limit != 20 {
		t.Errorf("expected default limit 20, got %d", *fake.query.Limit)
	}
	pk := fake.query.ExclusiveStartKey["PK"].(*types.AttributeValueMemberS).Value
	if pk != "EPISODE#01B" {
		t.Errorf("expected start key from cursor, got %s", pk)
	}

	if _, _, err := l.List(context.Background(), 5, "garbage"); err == nil {
		t.Error("expected error for malformed cursor")
	}
}

func TestPublisher_FinishAndFail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podcast.mp3")
	os.WriteFile(path, []byte("abc"), 0o644)

	dyn := &fakeDynamo{}
	p := NewPublisher(NewStorage(&fakeS3{}, "b", "https://cdn"), NewLedger(dyn, "t"), quietLogger())

	id, err := p.Begin(context.Background(), "https://example.com", "gpt-4o", "openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	url, err := p.Finish(context.Background(), id, path, 12, "3:04")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://cdn/audio/"+id+".mp3" {
		t.Errorf("unexpected url %s", url)
	}
	if len(dyn.updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(dyn.updates))
	}
	status := dyn.updates[0].ExpressionAttributeValues[":status"].(*types.AttributeValueMemberS).Value
	if status != string(StatusComplete) {
		t.Errorf("expected complete status, got %s", status)
	}

	failing := NewPublisher(NewStorage(&fakeS3{err: errors.New("denied")}, "b", "https://cdn"), NewLedger(dyn, "t"), quietLogger())
	if _, err := failing.Finish(context.Background(), id, path, 1, ""); err == nil {
		t.Fatal("expected upload error")
	}
	last := dyn.updates[len(dyn.updates)-1]
	if last.ExpressionAttributeValues[":status"].(*types.AttributeValueMemberS).Value != string(StatusFailed) {
		t.Error("expected failed upload to mark the episode failed")
	}
}
