package ingest

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/apresai/readcast/internal/retry"
)

// ReaderIngester fetches article text through a text-extraction proxy
// (r.jina.ai style): GET {base}/{target-url} returns the page's readable text.
type ReaderIngester struct {
	base       string
	userAgent  string
	policy     retry.Policy
	httpClient *http.Client
	log        *slog.Logger
}

func NewReaderIngester(opts Options) *ReaderIngester {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	policy := opts.Retry
	policy.Logger = log
	return &ReaderIngester{
		base:       strings.TrimRight(opts.ReaderBase, "/"),
		userAgent:  opts.userAgent(),
		policy:     policy,
		httpClient: opts.httpClient(),
		log:        log,
	}
}

// ReaderURL returns the proxy URL for target. Links shared from chat apps
// often arrive HTML-escaped (&amp;), so entities are unescaped first.
func (r *ReaderIngester) ReaderURL(target string) string {
	return r.base + "/" + html.UnescapeString(strings.TrimSpace(target))
}

func (r *ReaderIngester) Ingest(ctx context.Context, source string) (*Content, error) {
	readerURL := r.ReaderURL(source)

	text, err := retry.Do(ctx, r.policy, "ingest.reader", func(ctx context.Context) (string, error) {
		return r.fetch(ctx, readerURL)
	})
	if err != nil {
		return nil, fmt.Errorf("could not fetch %s via reader: %w", source, err)
	}

	title := readerTitle(text)
	if title == "" {
		title = titleFromText(text, 80)
	}

	r.log.DebugContext(ctx, "Fetched article via reader", "url", source, "bytes", len(text))

	return &Content{
		Text:      text,
		Title:     title,
		Source:    html.UnescapeString(strings.TrimSpace(source)),
		WordCount: wordCount(text),
	}, nil
}

func (r *ReaderIngester) fetch(ctx context.Context, readerURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, readerURL, nil)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", r.userAgent)

	res, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", fmt.Errorf("reader returned HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(errBody)))
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxInputSize))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", retry.Permanent(fmt.Errorf("no readable content returned for %s", readerURL))
	}
	return text, nil
}

// readerTitle picks the "Title: ..." header line the reader proxy puts on top
// of its output, if present.
func readerTitle(text string) string {
	first := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		first = text[:idx]
	}
	if t, ok := strings.CutPrefix(strings.TrimSpace(first), "Title:"); ok {
		return strings.TrimSpace(t)
	}
	return ""
}
