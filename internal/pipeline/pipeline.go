package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/apresai/readcast/internal/assembly"
	"github.com/apresai/readcast/internal/ingest"
	"github.com/apresai/readcast/internal/observability"
	"github.com/apresai/readcast/internal/progress"
	"github.com/apresai/readcast/internal/script"
	"github.com/apresai/readcast/internal/urlcheck"
)

const (
	StageValidate = "validate"
	StageFetch    = "fetch"
	StageScript   = "script"
	StageTTS      = "tts"
	StageAssembly = "assembly"
)

// Synthesizer produces audio for one dialogue line.
type Synthesizer interface {
	Synthesize(ctx context.Context, line script.Line) ([]byte, error)
}

// DurationProber is implemented by assemblers that can measure their output.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}

type Options struct {
	// ScratchDir holds per-line clips until they are merged.
	ScratchDir string
	// MaxChars truncates fetched text, in characters. Zero disables it.
	MaxChars int
	// Concurrency bounds parallel line synthesis. Values below 2 are sequential.
	Concurrency int
	AllowURLs   []string
	DenyURLs    []string
	Ingest      ingest.Options
	// NewIngester overrides how inputs are fetched.
	NewIngester func(input string) ingest.Ingester
	Progress    progress.Callback
	Logger      *slog.Logger
}

type Result struct {
	Path     string
	Title    string
	Source   string
	Lines    int
	Skipped  int
	Duration time.Duration
	SizeMB   float64
}

// Pipeline turns source text into a podcast: script, one clip per line,
// then a single merged MP3. It keeps no state between runs.
type Pipeline struct {
	generator script.Generator
	synth     Synthesizer
	assembler assembly.Assembler
	opts      Options
	log       *slog.Logger
	tracer    trace.Tracer
}

func New(generator script.Generator, synth Synthesizer, assembler assembly.Assembler, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Progress == nil {
		opts.Progress = progress.NopCallback
	}
	if opts.NewIngester == nil {
		ingestOpts := opts.Ingest
		if ingestOpts.Logger == nil {
			ingestOpts.Logger = opts.Logger
		}
		opts.NewIngester = func(input string) ingest.Ingester {
			return ingest.NewIngester(input, ingestOpts)
		}
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	return &Pipeline{
		generator: generator,
		synth:     synth,
		assembler: assembler,
		opts:      opts,
		log:       opts.Logger,
		tracer:    otel.Tracer(observability.TracerName),
	}
}

// Run validates input, fetches and truncates its text, then produces the
// podcast.
func (p *Pipeline) Run(ctx context.Context, input string) (*Result, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("input", input)))
	defer span.End()

	content, s, err := p.scriptFor(ctx, input, start)
	if err != nil {
		return nil, endSpan(span, err)
	}

	res, err := p.produce(ctx, s, start)
	if err != nil {
		return nil, endSpan(span, err)
	}
	res.Title = content.Title
	res.Source = content.Source
	span.SetAttributes(attribute.String("output", res.Path), attribute.Int("lines", res.Lines))
	return res, nil
}

// GeneratePodcast produces a podcast from already fetched text and returns
// the path of the merged file, which the caller owns.
func (p *Pipeline) GeneratePodcast(ctx context.Context, sourceText string) (string, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.generate_podcast")
	defer span.End()

	s, err := p.generate(ctx, sourceText, start)
	if err != nil {
		return "", endSpan(span, err)
	}
	res, err := p.produce(ctx, s, start)
	if err != nil {
		return "", endSpan(span, err)
	}
	return res.Path, nil
}

// GenerateScript runs everything up to and including script generation.
func (p *Pipeline) GenerateScript(ctx context.Context, input string) (*script.Script, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.generate_script")
	defer span.End()

	_, s, err := p.scriptFor(ctx, input, start)
	if err != nil {
		return nil, endSpan(span, err)
	}
	p.opts.Progress(progress.Event{
		Stage:   progress.StageComplete,
		Message: fmt.Sprintf("Script ready (%d lines)", len(s.Lines)),
		Elapsed: time.Since(start),
	})
	return s, nil
}

// FromScript synthesizes and assembles a previously generated script.
func (p *Pipeline) FromScript(ctx context.Context, s *script.Script) (*Result, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.from_script")
	defer span.End()

	res, err := p.produce(ctx, s, start)
	if err != nil {
		return nil, endSpan(span, err)
	}
	return res, nil
}

func (p *Pipeline) scriptFor(ctx context.Context, input string, start time.Time) (*ingest.Content, *script.Script, error) {
	content, err := p.fetch(ctx, input, start)
	if err != nil {
		return nil, nil, err
	}
	s, err := p.generate(ctx, content.Text, start)
	if err != nil {
		return nil, nil, err
	}
	return content, s, nil
}

func (p *Pipeline) fetch(ctx context.Context, input string, start time.Time) (*ingest.Content, error) {
	input = strings.TrimSpace(input)
	source := ingest.DetectSource(input)
	if source == ingest.SourceURL {
		if err := urlcheck.Check(input, p.opts.AllowURLs, p.opts.DenyURLs); err != nil {
			return nil, &PipelineError{Stage: StageValidate, Kind: ErrValidation, Message: "URL rejected", Err: err}
		}
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.fetch")
	defer span.End()

	p.opts.Progress(progress.NewEvent(progress.StageFetch, "Fetching article...", 0, start))

	content, err := p.opts.NewIngester(input).Ingest(ctx, input)
	if err != nil {
		kind := ErrLocalIO
		if source == ingest.SourceURL {
			kind = ErrUpstream
		}
		return nil, endSpan(span, &PipelineError{Stage: StageFetch, Kind: kind, Message: "failed to extract content", Err: err})
	}

	if p.opts.MaxChars > 0 {
		if r := []rune(content.Text); len(r) > p.opts.MaxChars {
			p.log.InfoContext(ctx, "Truncating source text", "chars", len(r), "max_chars", p.opts.MaxChars)
			content.Text = string(r[:p.opts.MaxChars])
		}
	}

	span.SetAttributes(attribute.Int("words", content.WordCount))
	p.log.InfoContext(ctx, "Fetched content", "source", content.Source, "title", content.Title, "words", content.WordCount)
	p.opts.Progress(progress.NewEvent(progress.StageFetch, fmt.Sprintf("Fetched %d words", content.WordCount), 1, start))
	return content, nil
}

func (p *Pipeline) generate(ctx context.Context, sourceText string, start time.Time) (*script.Script, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.script")
	defer span.End()

	p.opts.Progress(progress.NewEvent(progress.StageScript, "Writing dialogue script...", 0, start))

	s, err := p.generator.Generate(ctx, sourceText)
	if err != nil {
		return nil, endSpan(span, &PipelineError{Stage: StageScript, Kind: ErrUpstream, Message: "failed to generate script", Err: err})
	}

	if len(s.Lines) == 0 {
		p.log.WarnContext(ctx, "Model reply contained no dialogue lines")
	}
	if thin := s.Unbalanced(0.2); len(thin) > 0 {
		p.log.WarnContext(ctx, "Script is dominated by one speaker", "underrepresented", thin)
	}

	span.SetAttributes(attribute.Int("lines", len(s.Lines)))
	p.log.InfoContext(ctx, "Generated script", "lines", len(s.Lines), "speakers", s.SpeakerCounts())
	p.opts.Progress(progress.NewEvent(progress.StageScript, fmt.Sprintf("Script ready (%d lines)", len(s.Lines)), 1, start))
	return s, nil
}

// produce synthesizes every line in script order and merges the clips.
// Clips already written are removed when a later step fails.
func (p *Pipeline) produce(ctx context.Context, s *script.Script, start time.Time) (*Result, error) {
	clips, err := p.synthesize(ctx, s, start)
	if err != nil {
		p.cleanup(ctx, clips)
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.assembly")
	defer span.End()

	p.opts.Progress(progress.NewEvent(progress.StageAssembly, "Assembling podcast...", 0, start))
	merged, err := p.assembler.Assemble(ctx, clips)
	if err != nil {
		p.cleanup(ctx, clips)
		return nil, endSpan(span, &PipelineError{Stage: StageAssembly, Kind: ErrLocalIO, Message: "failed to assemble podcast", Err: err})
	}

	res := &Result{
		Path:    merged.Path,
		Lines:   len(s.Lines),
		Skipped: merged.Skipped,
	}
	if info, err := os.Stat(merged.Path); err == nil {
		res.SizeMB = float64(info.Size()) / (1024 * 1024)
	}
	if prober, ok := p.assembler.(DurationProber); ok {
		if d, err := prober.ProbeDuration(ctx, merged.Path); err == nil {
			res.Duration = d
		} else {
			p.log.DebugContext(ctx, "Could not probe duration", "path", merged.Path, "error", err)
		}
	}

	complete := progress.NewEvent(progress.StageComplete, "Podcast ready", 1, start)
	complete.OutputFile = res.Path
	complete.SizeMB = res.SizeMB
	complete.Skipped = res.Skipped
	if res.Duration > 0 {
		complete.Duration = assembly.FormatDuration(res.Duration)
	}
	p.opts.Progress(complete)

	p.log.InfoContext(ctx, "Podcast generated", "path", res.Path, "lines", res.Lines, "skipped", res.Skipped, "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (p *Pipeline) synthesize(ctx context.Context, s *script.Script, start time.Time) ([]assembly.Clip, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.tts", trace.WithAttributes(attribute.Int("lines", len(s.Lines))))
	defer span.End()

	if err := os.MkdirAll(p.opts.ScratchDir, 0755); err != nil {
		return nil, endSpan(span, &PipelineError{Stage: StageTTS, Kind: ErrLocalIO, Message: "failed to create scratch directory", Err: err})
	}

	clips := make([]assembly.Clip, len(s.Lines))
	total := len(s.Lines)
	// Progress callbacks are not required to be goroutine safe.
	var mu sync.Mutex
	done := 0

	speak := func(ctx context.Context, i int) error {
		line := s.Lines[i]
		clips[i].Index = i
		if !line.Speakable() {
			p.log.DebugContext(ctx, "Line has no text, no clip", "index", i, "speaker", line.Speaker)
			return nil
		}

		audio, err := p.synth.Synthesize(ctx, line)
		if err != nil {
			return &PipelineError{Stage: StageTTS, Kind: ErrUpstream, Message: fmt.Sprintf("failed to synthesize line %d", i+1), Err: err}
		}

		path := filepath.Join(p.opts.ScratchDir, "podcast_seg_"+uuid.NewString()+".mp3")
		if err := os.WriteFile(path, audio, 0644); err != nil {
			return &PipelineError{Stage: StageTTS, Kind: ErrLocalIO, Message: "failed to write clip", Err: err}
		}
		clips[i].Path = path

		mu.Lock()
		defer mu.Unlock()
		done++
		ev := progress.NewEvent(progress.StageTTS, fmt.Sprintf("Synthesized line %d/%d (%s)", done, total, line.Speaker), float64(done)/float64(total), start)
		ev.LineNum = done
		ev.LineTotal = total
		p.opts.Progress(ev)
		return nil
	}

	p.opts.Progress(progress.NewEvent(progress.StageTTS, fmt.Sprintf("Synthesizing %d lines...", total), 0, start))

	if p.opts.Concurrency < 2 {
		for i := range s.Lines {
			if err := speak(ctx, i); err != nil {
				return clips, endSpan(span, err)
			}
		}
		return clips, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i := range s.Lines {
		g.Go(func() error { return speak(gctx, i) })
	}
	if err := g.Wait(); err != nil {
		return clips, endSpan(span, err)
	}
	return clips, nil
}

// cleanup removes clips written before a failure. It runs detached from
// ctx so a cancelled run still cleans up.
func (p *Pipeline) cleanup(ctx context.Context, clips []assembly.Clip) {
	ctx = observability.DetachTraceContext(ctx)
	for _, c := range clips {
		if c.Path == "" {
			continue
		}
		if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
			p.log.WarnContext(ctx, "Failed to remove clip", "path", c.Path, "error", err)
		}
	}
}

func endSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
