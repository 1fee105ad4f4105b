package assembly

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

func TestNewFFmpegAssembler_DefaultAssetsAreUsable(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	a := NewFFmpegAssembler(Options{Logger: quietLogger()})
	for _, name := range []string{IntroFile, OutroFile} {
		data, err := os.ReadFile(filepath.Join(a.assetsDir, name))
		if err != nil {
			t.Fatalf("expected %s in %s: %v", name, a.assetsDir, err)
		}
		if len(data) < 4 || !bytes.Equal(data[:2], []byte{0xFF, 0xFB}) {
			t.Errorf("%s does not start with an MPEG audio frame", name)
		}
	}
}

func TestAssemble_DefaultAssets(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg is a shell script")
	}
	dir := t.TempDir()
	assets := filepath.Join(dir, "assets")
	if err := WriteDefaultAssets(assets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bin := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(bin, []byte(fakeFFmpeg), 0o755); err != nil {
		t.Fatal(err)
	}
	a := NewFFmpegAssembler(Options{AssetsDir: assets, OutputDir: dir, FFmpegPath: bin, Logger: quietLogger()})

	c0 := writeFile(t, filepath.Join(dir, "c0.mp3"), "[0]")
	res, err := a.Assemble(context.Background(), []Clip{{Index: 0, Path: c0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	intro, _ := defaultAssets.ReadFile("defaults/" + IntroFile)
	outro, _ := defaultAssets.ReadFile("defaults/" + OutroFile)
	if want := len(intro) + len("[0]") + len(outro); len(out) != want {
		t.Errorf("expected %d bytes, got %d", want, len(out))
	}
	if !bytes.Contains(out, []byte("[0]")) {
		t.Error("expected clip content in output")
	}
}

func TestWriteDefaultAssets_ReplacesTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, IntroFile), "x")
	if err := WriteDefaultAssets(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := defaultAssets.ReadFile("defaults/" + IntroFile)
	got, err := os.ReadFile(filepath.Join(dir, IntroFile))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("expected built-in intro (%d bytes), got %d bytes", len(want), len(got))
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("expected only the two clips, got %d entries", len(entries))
	}
}

func TestDefaultAssets_RealFFmpegDecodes(t *testing.T) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}
	dir := t.TempDir()
	if err := WriteDefaultAssets(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := NewFFmpegAssembler(Options{AssetsDir: dir, Logger: quietLogger()})
	d, err := a.ProbeDuration(context.Background(), filepath.Join(dir, IntroFile))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d <= 0 {
		t.Errorf("expected positive duration, got %s", d)
	}
}
