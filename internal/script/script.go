package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrMalformedResponse means the model answered but the answer had no
// usable text (no choices, no text block). It is never retried.
var ErrMalformedResponse = errors.New("malformed model response")

// Line is one turn of dialogue. Lines are values and are never mutated
// once parsed.
type Line struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Script is the ordered dialogue. Order is dialogue order, synthesis order
// and concatenation order.
type Script struct {
	Lines []Line `json:"lines"`
}

// Speakable reports whether the line has anything to synthesize.
func (l Line) Speakable() bool {
	return l.Text != ""
}

type Generator interface {
	Generate(ctx context.Context, sourceText string) (*Script, error)
}

// SpeakerCounts returns how many lines each speaker has.
func (s *Script) SpeakerCounts() map[string]int {
	counts := map[string]int{}
	for _, l := range s.Lines {
		counts[l.Speaker]++
	}
	return counts
}

// Unbalanced returns the speakers holding less than minShare of the lines.
// An empty script is never unbalanced.
func (s *Script) Unbalanced(minShare float64) []string {
	total := len(s.Lines)
	if total == 0 {
		return nil
	}
	var out []string
	for speaker, count := range s.SpeakerCounts() {
		if float64(count)/float64(total) < minShare {
			out = append(out, speaker)
		}
	}
	return out
}

func SaveScript(s *Script, path string) error {
	out := Script{Lines: s.Lines}
	if out.Lines == nil {
		out.Lines = []Line{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal script: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write script to %s: %w", path, err)
	}
	return nil
}

func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script from %s: %w", path, err)
	}
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script from %s: %w", path, err)
	}
	// A zero-line script is valid; a file without a lines array is not a script.
	if s.Lines == nil {
		return nil, fmt.Errorf("script %s has no lines field", path)
	}
	return &s, nil
}
