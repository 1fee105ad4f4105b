package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/apresai/readcast/internal/config"
)

func resetGenerateFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		flagOutputDir, flagScriptOut, flagFromScript = "", "", ""
		flagScriptProvider, flagScriptModel, flagTTSProvider, flagTTSModel = "", "", "", ""
		flagScriptOnly, flagPublish, flagVerbose = false, false, false
		flagConcurrency = 0
		flagLogLevel = ""
	})
}

func TestRunGenerate_ArgumentRules(t *testing.T) {
	resetGenerateFlags(t)

	if err := runGenerate(generateCmd, nil); err == nil {
		t.Error("expected error without input")
	}

	flagFromScript = "script.json"
	if err := runGenerate(generateCmd, []string{"https://example.com"}); err == nil {
		t.Error("expected error for input plus --from-script")
	}

	flagScriptOnly = true
	if err := runGenerate(generateCmd, nil); err == nil {
		t.Error("expected error for --script-only with --from-script")
	}
}

func TestGenerateOverrides(t *testing.T) {
	resetGenerateFlags(t)
	flagOutputDir = "/tmp/episodes"
	flagScriptProvider = "claude"
	flagScriptModel = "sonnet"
	flagTTSProvider = "polly"
	flagConcurrency = 4
	flagPublish = true

	cfg := config.Default()
	generateOverrides(&cfg)

	if cfg.Output.Dir != "/tmp/episodes" {
		t.Errorf("expected output dir override, got %q", cfg.Output.Dir)
	}
	if cfg.Script.Provider != "claude" || cfg.Script.Model != "sonnet" {
		t.Errorf("expected claude/sonnet, got %s/%s", cfg.Script.Provider, cfg.Script.Model)
	}
	if cfg.TTS.Provider != "polly" || cfg.TTS.Concurrency != 4 {
		t.Errorf("expected polly with concurrency 4, got %s/%d", cfg.TTS.Provider, cfg.TTS.Concurrency)
	}
	if !cfg.Publish.Enabled {
		t.Error("expected publishing enabled")
	}
}

func TestGenerateOverrides_KeepsConfigWhenUnset(t *testing.T) {
	resetGenerateFlags(t)
	cfg := config.Default()
	cfg.TTS.Provider = "elevenlabs"
	generateOverrides(&cfg)
	if cfg.TTS.Provider != "elevenlabs" {
		t.Errorf("expected config value to survive, got %q", cfg.TTS.Provider)
	}
	if cfg.TTS.Concurrency != 1 {
		t.Errorf("expected default concurrency 1, got %d", cfg.TTS.Concurrency)
	}
}

func TestLogLevel(t *testing.T) {
	resetGenerateFlags(t)
	a := &app{cfg: config.Default()}

	if got := a.logLevel(true); got != "warn" {
		t.Errorf("expected warn behind the progress bar, got %q", got)
	}
	if got := a.logLevel(false); got != "info" {
		t.Errorf("expected configured info level, got %q", got)
	}

	flagVerbose = true
	if got := a.logLevel(true); got != "debug" {
		t.Errorf("expected debug when verbose, got %q", got)
	}

	flagLogLevel = "error"
	if got := a.logLevel(true); got != "error" {
		t.Errorf("expected explicit level to win, got %q", got)
	}
}

func TestListVoices(t *testing.T) {
	if err := runListVoices(listVoicesCmd, []string{"polly"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := runListVoices(listVoicesCmd, []string{"nope"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestPreflight_ChecksOnlyTheStagesThatRun(t *testing.T) {
	resetGenerateFlags(t)
	cfg := config.Default()
	cfg.TTS.Provider = "elevenlabs"
	cfg.OpenAI.APIKey = "sk"
	a := &app{cfg: cfg}

	flagScriptOnly = true
	if err := a.preflight(context.Background()); err != nil {
		t.Errorf("script-only run should not need a speech key, got %v", err)
	}

	flagScriptOnly = false
	if err := a.preflight(context.Background()); err == nil {
		t.Error("expected missing ElevenLabs key error for a full run")
	}

	a.cfg.OpenAI.APIKey = ""
	a.cfg.ElevenLabsKey = "xi"
	a.cfg.Output.FFmpegPath = "/nonexistent/ffmpeg"
	flagFromScript = "script.json"
	err := a.preflight(context.Background())
	if err == nil || !strings.Contains(err.Error(), "FFmpeg not found") {
		t.Errorf("expected only the ffmpeg check to fail without a chat key, got %v", err)
	}
}
