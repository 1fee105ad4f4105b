package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apresai/readcast/internal/assembly"
	"github.com/apresai/readcast/internal/ingest"
	"github.com/apresai/readcast/internal/progress"
	"github.com/apresai/readcast/internal/script"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeIngester struct {
	text string
	err  error
	got  string
}

func (f *fakeIngester) Ingest(ctx context.Context, source string) (*ingest.Content, error) {
	f.got = source
	if f.err != nil {
		return nil, f.err
	}
	return &ingest.Content{Text: f.text, Title: "Test Article", Source: source, WordCount: len(strings.Fields(f.text))}, nil
}

type fakeGenerator struct {
	script *script.Script
	err    error
	got    string
}

func (f *fakeGenerator) Generate(ctx context.Context, sourceText string) (*script.Script, error) {
	f.got = sourceText
	if f.err != nil {
		return nil, f.err
	}
	return f.script, nil
}

// fakeSynth returns the line text as audio bytes, optionally with a delay
// that shrinks with line position so parallel runs finish out of order.
type fakeSynth struct {
	failOn   string
	delay    bool
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeSynth) Synthesize(ctx context.Context, line script.Line) ([]byte, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.failOn != "" && line.Text == f.failOn {
		return nil, errors.New("speech service unavailable")
	}
	if f.delay {
		time.Sleep(time.Duration(30-len(line.Text)) * time.Millisecond)
	}
	return []byte(line.Text + "|"), nil
}

// fakeAssembler concatenates clip contents in index order.
type fakeAssembler struct {
	dir   string
	err   error
	mu    sync.Mutex
	clips []assembly.Clip
}

func (f *fakeAssembler) Assemble(ctx context.Context, clips []assembly.Clip) (*assembly.Result, error) {
	f.mu.Lock()
	f.clips = append([]assembly.Clip(nil), clips...)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	var out []byte
	res := &assembly.Result{}
	for _, c := range clips {
		if c.Path == "" {
			res.Skipped++
			continue
		}
		data, err := os.ReadFile(c.Path)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
		os.Remove(c.Path)
		res.Appended++
	}
	file, err := os.CreateTemp(f.dir, "podcast_*.mp3")
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if _, err := file.Write(out); err != nil {
		return nil, err
	}
	res.Path = file.Name()
	return res, nil
}

func testScript(texts ...string) *script.Script {
	s := &script.Script{}
	for i, t := range texts {
		speaker := "Alice"
		if i%2 == 1 {
			speaker = "Bob"
		}
		s.Lines = append(s.Lines, script.Line{Speaker: speaker, Text: t})
	}
	return s
}

type harness struct {
	ingester  *fakeIngester
	generator *fakeGenerator
	synth     *fakeSynth
	assembler *fakeAssembler
	scratch   string
	events    []progress.Event
	mu        sync.Mutex
}

func newHarness(t *testing.T, s *script.Script) *harness {
	t.Helper()
	return &harness{
		ingester:  &fakeIngester{text: "some article text about gardens"},
		generator: &fakeGenerator{script: s},
		synth:     &fakeSynth{},
		assembler: &fakeAssembler{dir: t.TempDir()},
		scratch:   t.TempDir(),
	}
}

func (h *harness) pipeline(opts Options) *Pipeline {
	opts.ScratchDir = h.scratch
	opts.Logger = quietLogger()
	opts.NewIngester = func(string) ingest.Ingester { return h.ingester }
	opts.Progress = func(ev progress.Event) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.events = append(h.events, ev)
	}
	return New(h.generator, h.synth, h.assembler, opts)
}

func scratchFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "podcast_seg_*.mp3"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func TestRun_AssemblesLinesInOrder(t *testing.T) {
	h := newHarness(t, testScript("one", "two", "three"))
	res, err := h.pipeline(Options{}).Run(context.Background(), "https://example.com/post")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "one|two|three|" {
		t.Errorf("expected clips in script order, got %q", data)
	}
	if res.Lines != 3 {
		t.Errorf("expected 3 lines, got %d", res.Lines)
	}
	if res.Title != "Test Article" {
		t.Errorf("expected title from content, got %q", res.Title)
	}
	if left := scratchFiles(t, h.scratch); len(left) != 0 {
		t.Errorf("expected no clips left behind, got %v", left)
	}
	if h.ingester.got != "https://example.com/post" {
		t.Errorf("expected ingester to receive input URL, got %q", h.ingester.got)
	}
}

func TestRun_ConcurrentKeepsOrder(t *testing.T) {
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff", "ggggggg", "hhhhhhhh"}
	h := newHarness(t, testScript(texts...))
	h.synth.delay = true

	res, err := h.pipeline(Options{Concurrency: 3}).Run(context.Background(), "https://example.com/post")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != strings.Join(texts, "|")+"|" {
		t.Errorf("expected clips in script order, got %q", data)
	}
	if peak := h.synth.peak.Load(); peak > 3 {
		t.Errorf("expected at most 3 concurrent requests, got %d", peak)
	}
}

func TestRun_SkipsEmptyLines(t *testing.T) {
	h := newHarness(t, testScript("one", "", "three"))
	res, err := h.pipeline(Options{}).Run(context.Background(), "https://example.com/post")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.synth.calls.Load() != 2 {
		t.Errorf("expected 2 synthesis calls, got %d", h.synth.calls.Load())
	}
	if res.Skipped != 1 {
		t.Errorf("expected 1 skipped line, got %d", res.Skipped)
	}
	if len(h.assembler.clips) != 3 || h.assembler.clips[1].Path != "" {
		t.Errorf("expected empty clip slot at index 1, got %+v", h.assembler.clips)
	}
}

func TestRun_TruncatesByCharacters(t *testing.T) {
	h := newHarness(t, testScript("one"))
	h.ingester.text = strings.Repeat("ü", 20)
	if _, err := h.pipeline(Options{MaxChars: 5}).Run(context.Background(), "notes.txt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.generator.got != strings.Repeat("ü", 5) {
		t.Errorf("expected 5 characters, got %q", h.generator.got)
	}
}

func TestRun_RejectedURL(t *testing.T) {
	h := newHarness(t, testScript("one"))
	_, err := h.pipeline(Options{DenyURLs: []string{"https://blocked.example.com"}}).Run(context.Background(), "https://blocked.example.com/a")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if h.ingester.got != "" {
		t.Error("expected no fetch for rejected URL")
	}
}

func TestRun_PaddedURLIsCheckedAndFetchedTrimmed(t *testing.T) {
	h := newHarness(t, testScript("one"))
	p := h.pipeline(Options{DenyURLs: []string{"https://blocked.example.com"}})
	if _, err := p.Run(context.Background(), "  https://blocked.example.com/a\n"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if h.ingester.got != "" {
		t.Error("expected no fetch for rejected URL")
	}

	h.ingester.err = errors.New("reader down")
	_, err := p.Run(context.Background(), "\thttps://example.com/post ")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected padded URL to be classified as a URL, got %v", err)
	}
	if h.ingester.got != "https://example.com/post" {
		t.Errorf("expected trimmed input, got %q", h.ingester.got)
	}
}

func TestRun_FetchFailureIsUpstream(t *testing.T) {
	h := newHarness(t, testScript("one"))
	h.ingester.err = errors.New("HTTP 502")
	_, err := h.pipeline(Options{}).Run(context.Background(), "https://example.com/post")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Stage != StageFetch {
		t.Errorf("expected fetch stage error, got %v", err)
	}
}

func TestRun_ScriptFailureIsUpstream(t *testing.T) {
	h := newHarness(t, nil)
	h.generator.err = script.ErrMalformedResponse
	_, err := h.pipeline(Options{}).Run(context.Background(), "https://example.com/post")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if !errors.Is(err, script.ErrMalformedResponse) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
	if h.synth.calls.Load() != 0 {
		t.Error("expected no synthesis after script failure")
	}
}

func TestRun_SynthesisFailureCleansUp(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		h := newHarness(t, testScript("one", "two", "boom", "four"))
		h.synth.failOn = "boom"
		_, err := h.pipeline(Options{Concurrency: concurrency}).Run(context.Background(), "https://example.com/post")
		if !errors.Is(err, ErrUpstream) {
			t.Fatalf("concurrency %d: expected upstream error, got %v", concurrency, err)
		}
		if left := scratchFiles(t, h.scratch); len(left) != 0 {
			t.Errorf("concurrency %d: expected clips removed, got %v", concurrency, left)
		}
		if h.assembler.clips != nil {
			t.Errorf("concurrency %d: expected assembly not to run", concurrency)
		}
	}
}

func TestRun_AssemblyFailureIsLocalIO(t *testing.T) {
	h := newHarness(t, testScript("one", "two"))
	h.assembler.err = assembly.ErrAssetMissing
	_, err := h.pipeline(Options{}).Run(context.Background(), "https://example.com/post")
	if !errors.Is(err, ErrLocalIO) {
		t.Fatalf("expected local I/O error, got %v", err)
	}
	if !errors.Is(err, assembly.ErrAssetMissing) {
		t.Errorf("expected asset cause, got %v", err)
	}
	if left := scratchFiles(t, h.scratch); len(left) != 0 {
		t.Errorf("expected clips removed, got %v", left)
	}
}

func TestGeneratePodcast_DistinctOutputs(t *testing.T) {
	h := newHarness(t, testScript("one", "two"))
	p := h.pipeline(Options{})

	first, err := p.GeneratePodcast(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.GeneratePodcast(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Errorf("expected distinct output paths, got %q twice", first)
	}
	if h.ingester.got != "" {
		t.Error("expected GeneratePodcast not to fetch")
	}
}

func TestGenerateScript_StopsBeforeAudio(t *testing.T) {
	h := newHarness(t, testScript("one", "two"))
	s, err := h.pipeline(Options{}).GenerateScript(context.Background(), "https://example.com/post")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Lines) != 2 {
		t.Errorf("expected 2 lines, got %d", len(s.Lines))
	}
	if h.synth.calls.Load() != 0 {
		t.Error("expected no synthesis")
	}
}

func TestFromScript(t *testing.T) {
	h := newHarness(t, nil)
	res, err := h.pipeline(Options{}).FromScript(context.Background(), testScript("x", "y"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(res.Path)
	if string(data) != "x|y|" {
		t.Errorf("expected x|y|, got %q", data)
	}
}

func TestRun_ProgressEvents(t *testing.T) {
	h := newHarness(t, testScript("one", "two"))
	if _, err := h.pipeline(Options{}).Run(context.Background(), "https://example.com/post"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := h.events[len(h.events)-1]
	if last.Stage != progress.StageComplete || last.OutputFile == "" {
		t.Errorf("expected completion event with output file, got %+v", last)
	}
	prev := -1.0
	for _, ev := range h.events {
		if ev.Percent < prev {
			t.Errorf("expected non-decreasing progress, got %.2f after %.2f", ev.Percent, prev)
		}
		prev = ev.Percent
	}
}

func TestPipelineError_Format(t *testing.T) {
	err := &PipelineError{Stage: StageTTS, Kind: ErrUpstream, Message: "failed", Err: errors.New("boom")}
	if err.Error() != "[tts] failed: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if errors.Is(err, ErrLocalIO) {
		t.Error("expected kind mismatch")
	}
}
