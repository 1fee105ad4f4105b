package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/apresai/readcast/internal/retry"
	"github.com/apresai/readcast/internal/script"
)

// ErrEmptyAudio means the provider answered successfully with no audio.
var ErrEmptyAudio = errors.New("provider returned empty audio")

type SynthOptions struct {
	Retry retry.Policy
	// RequestsPerMinute paces provider calls. Zero means unpaced.
	RequestsPerMinute int
	Logger            *slog.Logger
}

// Synthesizer speaks one dialogue line at a time: it picks the voice from
// the table and calls the provider under the retry policy.
type Synthesizer struct {
	provider Provider
	voices   VoiceTable
	policy   retry.Policy
	limiter  *rate.Limiter
	log      *slog.Logger
}

func NewSynthesizer(provider Provider, voices VoiceTable, opts SynthOptions) *Synthesizer {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	policy := opts.Retry
	policy.Logger = log

	s := &Synthesizer{
		provider: provider,
		voices:   voices,
		policy:   policy,
		log:      log,
	}
	if opts.RequestsPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return s
}

// Synthesize returns the audio bytes for line. Lines with empty text are
// the caller's to skip.
func (s *Synthesizer) Synthesize(ctx context.Context, line script.Line) ([]byte, error) {
	voice := s.voices.Select(line.Speaker)
	s.log.DebugContext(ctx, "Synthesizing line", "speaker", line.Speaker, "voice", voice.ID, "chars", len(line.Text))

	audio, err := retry.Do(ctx, s.policy, "tts."+s.provider.Name(), func(ctx context.Context) ([]byte, error) {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, retry.Permanent(err)
			}
		}
		data, err := s.provider.Synthesize(ctx, line.Text, voice)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, retry.Permanent(ErrEmptyAudio)
		}
		return data, nil
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize line for %s: %w", line.Speaker, err)
	}
	return audio, nil
}
