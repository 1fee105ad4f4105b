package ingest

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/apresai/readcast/internal/retry"
)

// URLIngester fetches the page itself and extracts the article locally.
// Used when no reader proxy is configured.
type URLIngester struct {
	userAgent  string
	policy     retry.Policy
	httpClient *http.Client
}

func NewURLIngester(opts Options) *URLIngester {
	policy := opts.Retry
	if opts.Logger != nil {
		policy.Logger = opts.Logger
	}
	return &URLIngester{
		userAgent:  opts.userAgent(),
		policy:     policy,
		httpClient: opts.httpClient(),
	}
}

func (u *URLIngester) Ingest(ctx context.Context, source string) (*Content, error) {
	target := html.UnescapeString(strings.TrimSpace(source))
	parsed, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", target, err)
	}

	page, err := retry.Do(ctx, u.policy, "ingest.url", func(ctx context.Context) ([]byte, error) {
		return u.fetch(ctx, target)
	})
	if err != nil {
		return nil, fmt.Errorf("could not fetch URL %s: %w", target, err)
	}

	article, err := readability.FromReader(bytes.NewReader(page), parsed)
	if err != nil {
		return nil, fmt.Errorf("could not extract article from %s: %w", target, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) == 0 {
		return nil, fmt.Errorf("no readable content extracted from %s", target)
	}

	title := article.Title
	if title == "" {
		title = titleFromText(text, 80)
	}

	return &Content{
		Text:      text,
		Title:     title,
		Source:    target,
		WordCount: wordCount(text),
	}, nil
}

func (u *URLIngester) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", u.userAgent)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxInputSize))
}

var _ Ingester = (*URLIngester)(nil)
var _ Ingester = (*ReaderIngester)(nil)
