package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/apresai/readcast/internal/assembly"
	"github.com/apresai/readcast/internal/config"
	"github.com/apresai/readcast/internal/ingest"
	"github.com/apresai/readcast/internal/pipeline"
	"github.com/apresai/readcast/internal/progress"
	"github.com/apresai/readcast/internal/publish"
	"github.com/apresai/readcast/internal/retry"
	"github.com/apresai/readcast/internal/script"
	"github.com/apresai/readcast/internal/tts"
)

// errGenerate is all the user sees when a run fails; the cause is logged.
var errGenerate = errors.New("could not generate podcast")

var generateCmd = &cobra.Command{
	Use:   "generate <url|file>",
	Short: "Generate a podcast episode from an article URL, PDF or text file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGenerate,
}

var (
	flagOutputDir      string
	flagScriptOnly     bool
	flagScriptOut      string
	flagFromScript     string
	flagScriptProvider string
	flagScriptModel    string
	flagTTSProvider    string
	flagTTSModel       string
	flagConcurrency    int
	flagPublish        bool
)

func init() {
	rootCmd.AddCommand(generateCmd)
	f := generateCmd.Flags()
	f.StringVarP(&flagOutputDir, "output-dir", "o", "", "Directory for the finished MP3 (overrides config)")
	f.BoolVarP(&flagScriptOnly, "script-only", "S", false, "Write the dialogue script JSON and skip audio")
	f.StringVar(&flagScriptOut, "script-out", "", "Script JSON path for --script-only (default: output dir)")
	f.StringVarP(&flagFromScript, "from-script", "f", "", "Generate audio from an existing script JSON file")
	f.StringVarP(&flagScriptProvider, "model-provider", "m", "", "Script provider: openai, claude, nova, gemini")
	f.StringVar(&flagScriptModel, "model", "", "Script model ID or alias")
	f.StringVarP(&flagTTSProvider, "tts", "T", "", "TTS provider: openai, elevenlabs, google, polly, vertex")
	f.StringVar(&flagTTSModel, "tts-model", "", "TTS model ID")
	f.IntVarP(&flagConcurrency, "concurrency", "j", 0, "Lines synthesized in parallel (default from config)")
	f.BoolVar(&flagPublish, "publish", false, "Upload the episode to S3 and record it in DynamoDB")
}

func generateOverrides(cfg *config.Config) {
	if flagOutputDir != "" {
		cfg.Output.Dir = flagOutputDir
	}
	if flagScriptProvider != "" {
		cfg.Script.Provider = flagScriptProvider
	}
	if flagScriptModel != "" {
		cfg.Script.Model = flagScriptModel
	}
	if flagTTSProvider != "" {
		cfg.TTS.Provider = flagTTSProvider
	}
	if flagTTSModel != "" {
		cfg.TTS.Model = flagTTSModel
	}
	if flagConcurrency > 0 {
		cfg.TTS.Concurrency = flagConcurrency
	}
	if flagPublish {
		cfg.Publish.Enabled = true
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	switch {
	case flagFromScript == "" && len(args) == 0:
		return errors.New("an article URL or file path is required (or --from-script)")
	case flagFromScript != "" && len(args) > 0:
		return errors.New("an input and --from-script are mutually exclusive")
	case flagFromScript != "" && flagScriptOnly:
		return errors.New("--script-only and --from-script are mutually exclusive")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, !flagVerbose, generateOverrides)
	if err != nil {
		return err
	}
	defer a.shutdown()

	if err := a.preflight(ctx); err != nil {
		return err
	}

	var renderer *progress.BarRenderer
	callback := progress.NopCallback
	if !flagVerbose {
		renderer = progress.NewBarRenderer(os.Stdout)
		callback = renderer.Handle
	}

	w, err := a.build(ctx, callback)
	if err != nil {
		return err
	}
	defer w.close()

	if flagScriptOnly {
		err = a.scriptOnly(ctx, w.pipeline, args[0])
	} else {
		err = a.produce(ctx, w, args)
	}
	if renderer != nil {
		renderer.Finish()
	}
	if err != nil {
		a.log.ErrorContext(ctx, "Podcast generation failed", "error", err)
		return errGenerate
	}
	return nil
}

// preflight fails fast on missing credentials, AWS configuration and tools.
func (a *app) preflight(ctx context.Context) error {
	var err error
	switch {
	case flagScriptOnly:
		err = a.cfg.RequireScriptCredentials()
	case flagFromScript != "":
		err = a.cfg.RequireTTSCredentials()
	default:
		err = a.cfg.RequireCredentials()
	}
	if err != nil {
		return err
	}
	if a.cfg.NeedsAWS() {
		if _, err := a.loadAWS(ctx); err != nil {
			return err
		}
	}
	if flagScriptOnly {
		return nil
	}
	ffmpeg := a.cfg.Output.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if _, err := exec.LookPath(ffmpeg); err != nil {
		return fmt.Errorf("FFmpeg not found (%s): install it or set output.ffmpeg", ffmpeg)
	}
	return nil
}

// wiring holds the components of one run so they can be closed together.
type wiring struct {
	pipeline *pipeline.Pipeline
	provider tts.Provider
}

func (w *wiring) close() {
	if w.provider != nil {
		w.provider.Close()
	}
}

func (a *app) build(ctx context.Context, callback progress.Callback) (*wiring, error) {
	cfg := a.cfg
	policy := retry.DefaultPolicy()
	policy.Retries = cfg.Retries
	policy.Logger = a.log
	w := &wiring{}

	assembler := assembly.NewFFmpegAssembler(assembly.Options{
		AssetsDir:   cfg.Output.AssetsDir,
		OutputDir:   cfg.Output.Dir,
		FFmpegPath:  cfg.Output.FFmpegPath,
		FFprobePath: cfg.Output.FFprobePath,
		Logger:      a.log,
	})

	var generator script.Generator
	if flagFromScript == "" {
		g, err := script.NewGenerator(ctx, cfg.Script.Provider, script.Options{
			BaseURL: cfg.ScriptBaseURL(),
			APIKey:  cfg.ScriptAPIKey(),
			Model:   cfg.Script.Model,
			Hosts:   script.Hosts{Female: cfg.Hosts.Female, Male: cfg.Hosts.Male},
			Timeout: a.timeout(),
			Retry:   policy,
			Logger:  a.log,
		}, a.loadAWS)
		if err != nil {
			return nil, err
		}
		generator = g
	}

	var synth pipeline.Synthesizer
	if !flagScriptOnly {
		provider, err := tts.NewProvider(ctx, cfg.TTS.Provider, tts.ProviderConfig{
			APIKey:  cfg.TTSAPIKey(),
			BaseURL: cfg.TTSBaseURL(),
			Model:   cfg.TTS.Model,
			Timeout:   a.timeout(),
			Speed:     cfg.TTS.Speed,
			Project:   cfg.GCP.Project,
			Region:    cfg.GCP.Region,
			Converter: assembler,
		}, a.loadAWS)
		if err != nil {
			return nil, err
		}
		w.provider = provider

		voices := provider.DefaultVoices()
		if cfg.TTS.FemaleVoice != "" {
			voices.Female = tts.Voice{ID: cfg.TTS.FemaleVoice, Name: cfg.TTS.FemaleVoice}
		}
		if cfg.TTS.MaleVoice != "" {
			voices.Male = tts.Voice{ID: cfg.TTS.MaleVoice, Name: cfg.TTS.MaleVoice}
		}
		synth = tts.NewSynthesizer(provider, tts.NewVoiceTable(cfg.Hosts.Male, voices), tts.SynthOptions{
			Retry:             policy,
			RequestsPerMinute: cfg.TTS.RequestsPerMinute,
			Logger:            a.log,
		})
	}

	w.pipeline = pipeline.New(generator, synth, assembler, pipeline.Options{
		ScratchDir:  cfg.Output.ScratchDir,
		MaxChars:    cfg.MaxChars,
		Concurrency: cfg.TTS.Concurrency,
		AllowURLs:   cfg.URLs.Allow,
		DenyURLs:    cfg.URLs.Deny,
		Ingest: ingest.Options{
			ReaderBase: cfg.Reader.Base,
			UserAgent:  cfg.Reader.UserAgent,
			Timeout:    a.timeout(),
			Retry:      policy,
			Logger:     a.log,
		},
		Progress: callback,
		Logger:   a.log,
	})
	return w, nil
}

func (a *app) scriptOnly(ctx context.Context, p *pipeline.Pipeline, input string) error {
	s, err := p.GenerateScript(ctx, input)
	if err != nil {
		return err
	}
	path := flagScriptOut
	if path == "" {
		path = filepath.Join(a.cfg.Output.Dir, "script_"+uuid.NewString()+".json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create script directory: %w", err)
	}
	if err := script.SaveScript(s, path); err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func (a *app) produce(ctx context.Context, w *wiring, args []string) error {
	source := flagFromScript
	if len(args) > 0 {
		source = args[0]
	}

	var pub *publish.Publisher
	var episodeID string
	if a.cfg.Publish.Enabled {
		awsCfg, err := a.loadAWS(ctx)
		if err != nil {
			return err
		}
		pub = publish.NewAWSPublisher(awsCfg, a.cfg.Publish.Bucket, a.cfg.Publish.CDNBaseURL, a.cfg.Publish.Table, a.log)
		if episodeID, err = pub.Begin(ctx, source, a.cfg.Script.Model, w.provider.Name()); err != nil {
			return err
		}
	}

	var res *pipeline.Result
	var err error
	if flagFromScript != "" {
		var s *script.Script
		if s, err = script.LoadScript(flagFromScript); err == nil {
			res, err = w.pipeline.FromScript(ctx, s)
		}
	} else {
		res, err = w.pipeline.Run(ctx, source)
	}
	if err != nil {
		if pub != nil {
			pub.Fail(ctx, episodeID, err)
		}
		return err
	}

	if flagVerbose {
		fmt.Println(res.Path)
	}

	if pub != nil {
		duration := ""
		if res.Duration > 0 {
			duration = assembly.FormatDuration(res.Duration)
		}
		url, err := pub.Finish(ctx, episodeID, res.Path, res.Lines, duration)
		if err != nil {
			return err
		}
		fmt.Printf("Published: %s\n", url)
	}
	return nil
}
