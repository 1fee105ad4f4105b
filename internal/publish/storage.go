package publish

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the slice of the S3 client Storage uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Storage handles S3 uploads for podcast audio files.
type Storage struct {
	client     PutObjectAPI
	bucket     string
	cdnBaseURL string // e.g. "https://podcasts.apresai.dev"
}

func NewStorage(client PutObjectAPI, bucket, cdnBaseURL string) *Storage {
	return &Storage{client: client, bucket: bucket, cdnBaseURL: strings.TrimRight(cdnBaseURL, "/")}
}

// Upload uploads an MP3 file to S3 and returns the S3 key and public URL.
func (s *Storage) Upload(ctx context.Context, episodeID, mp3Path string) (key, url string, err error) {
	key = "audio/" + episodeID + ".mp3"

	f, err := os.Open(mp3Path)
	if err != nil {
		return "", "", fmt.Errorf("open mp3: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", "", fmt.Errorf("stat mp3: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          f,
		ContentType:   aws.String("audio/mpeg"),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return "", "", fmt.Errorf("upload to s3: %w", err)
	}

	url = s.cdnBaseURL + "/" + key
	return key, url, nil
}
