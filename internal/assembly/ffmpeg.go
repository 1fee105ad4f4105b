package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Audio quality constants for consistent output across all FFmpeg operations.
const (
	AudioBitrate    = "192k"
	AudioSampleRate = "44100"
	AudioChannels   = "2"
	AudioCodec      = "libmp3lame"
	AudioQuality    = "0" // LAME quality (0 = best)
	AudioResampler  = "aresample=resampler=soxr"
)

// Intro and outro file names looked up in the assets directory.
const (
	IntroFile = "podcast_prefix.mp3"
	OutroFile = "podcast_suffix.mp3"
)

var ErrAssetMissing = errors.New("audio asset missing")

// Clip is the synthesized audio for the script line at Index. Path is empty
// when the line produced no audio.
type Clip struct {
	Index int
	Path  string
}

type Result struct {
	Path     string
	Appended int
	Skipped  int
}

type Assembler interface {
	Assemble(ctx context.Context, clips []Clip) (*Result, error)
}

type Options struct {
	AssetsDir   string
	OutputDir   string
	FFmpegPath  string
	FFprobePath string
	Logger      *slog.Logger
}

type FFmpegAssembler struct {
	assetsDir string
	outputDir string
	ffmpeg    string
	ffprobe   string
	log       *slog.Logger
}

func NewFFmpegAssembler(opts Options) *FFmpegAssembler {
	a := &FFmpegAssembler{
		assetsDir: opts.AssetsDir,
		outputDir: opts.OutputDir,
		ffmpeg:    opts.FFmpegPath,
		ffprobe:   opts.FFprobePath,
		log:       opts.Logger,
	}
	if a.assetsDir == "" {
		a.assetsDir = DefaultAssetsDir()
	}
	if a.outputDir == "" {
		a.outputDir = os.TempDir()
	}
	if a.ffmpeg == "" {
		a.ffmpeg = "ffmpeg"
	}
	if a.ffprobe == "" {
		a.ffprobe = "ffprobe"
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	return a
}

// Assemble concatenates intro, the clips in script order, and outro into a
// new MP3 in the output directory. Clips whose file does not exist are
// skipped. Appended clips are deleted once the merge succeeds.
func (a *FFmpegAssembler) Assemble(ctx context.Context, clips []Clip) (*Result, error) {
	intro := filepath.Join(a.assetsDir, IntroFile)
	outro := filepath.Join(a.assetsDir, OutroFile)
	for _, asset := range []string{intro, outro} {
		if _, err := os.Stat(asset); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrAssetMissing, asset, err)
		}
	}

	ordered := make([]Clip, len(clips))
	copy(ordered, clips)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	res := &Result{}
	var appended []string
	for _, c := range ordered {
		if c.Path == "" {
			res.Skipped++
			continue
		}
		if _, err := os.Stat(c.Path); err != nil {
			a.log.WarnContext(ctx, "Skipping missing clip", "index", c.Index, "path", c.Path)
			res.Skipped++
			continue
		}
		appended = append(appended, c.Path)
	}
	res.Appended = len(appended)

	if err := os.MkdirAll(a.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	id := uuid.NewString()
	listPath := filepath.Join(a.outputDir, "concat_"+id+".txt")
	output := filepath.Join(a.outputDir, "podcast_"+id+".mp3")

	files := make([]string, 0, len(appended)+2)
	files = append(files, intro)
	files = append(files, appended...)
	files = append(files, outro)
	if err := buildConcatList(files, listPath); err != nil {
		return nil, fmt.Errorf("build concat list: %w", err)
	}
	defer a.remove(ctx, listPath)

	if err := a.runFFmpegConcat(ctx, listPath, output); err != nil {
		os.Remove(output)
		return nil, fmt.Errorf("ffmpeg concat: %w", err)
	}
	res.Path = output

	for _, p := range appended {
		a.remove(ctx, p)
	}

	a.log.InfoContext(ctx, "Assembled podcast", "path", output, "clips", res.Appended, "skipped", res.Skipped)
	return res, nil
}

func (a *FFmpegAssembler) remove(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.log.WarnContext(ctx, "Failed to remove intermediate file", "path", path, "error", err)
	}
}

func buildConcatList(files []string, listPath string) error {
	var lines []string
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("file '%s'", strings.ReplaceAll(abs, "'", `'\''`)))
	}

	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(listPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}

func (a *FFmpegAssembler) runFFmpegConcat(ctx context.Context, listPath string, output string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-af", AudioResampler,
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		"-q:a", AudioQuality,
		"-ar", AudioSampleRate,
		"-ac", AudioChannels,
		"-y",
		output,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = nil

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w\n%s", err, stderr.String())
	}

	// Verify output exists and has non-zero size
	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("output file not created: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output file is empty")
	}

	return nil
}

// ConvertToMP3 re-encodes raw audio to MP3 with the output settings. format
// is "pcm" or "lpcm" for headerless 24kHz 16-bit mono, or "wav".
func (a *FFmpegAssembler) ConvertToMP3(ctx context.Context, input, format, output string) error {
	var args []string
	switch format {
	case "pcm", "lpcm":
		args = []string{"-f", "s16le", "-ar", "24000", "-ac", "1", "-i", input}
	case "wav":
		args = []string{"-i", input}
	default:
		return fmt.Errorf("unsupported audio format for conversion: %s", format)
	}
	args = append(args,
		"-af", AudioResampler,
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		"-q:a", AudioQuality,
		"-ar", AudioSampleRate,
		"-ac", AudioChannels,
		"-y",
		output,
	)

	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg conversion (%s to mp3) failed: %w\n%s", format, err, stderr.String())
	}
	return nil
}

// ProbeDuration reads the container duration of an audio file with ffprobe.
func (a *FFmpegAssembler) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	out, err := exec.CommandContext(ctx, a.ffprobe,
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// FormatDuration renders d as m:ss.
func FormatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

var _ Assembler = (*FFmpegAssembler)(nil)
