package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRenderBar(t *testing.T) {
	tests := []struct {
		pct   float64
		width int
		want  string
	}{
		{0, 4, "[....]"},
		{0.5, 4, "[##..]"},
		{1, 4, "[####]"},
		{1.7, 4, "[####]"},
		{-1, 4, "[....]"},
	}
	for _, tt := range tests {
		if got := renderBar(tt.pct, tt.width); got != tt.want {
			t.Errorf("renderBar(%v, %d): expected %s, got %s", tt.pct, tt.width, tt.want, got)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	if got := formatElapsed(75 * time.Second); got != "1:15" {
		t.Errorf("expected 1:15, got %s", got)
	}
	if got := formatElapsed(0); got != "0:00" {
		t.Errorf("expected 0:00, got %s", got)
	}
}

func TestOverall(t *testing.T) {
	if got := Overall(StageFetch, 0); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := Overall(StageTTS, 0.5); got < 0.59 || got > 0.61 {
		t.Errorf("expected 0.6, got %v", got)
	}
	if got := Overall(StageAssembly, 2); got != 1 {
		t.Errorf("expected clamp to 1, got %v", got)
	}
	if got := Overall(Stage("unknown"), 0.5); got != 0 {
		t.Errorf("expected 0 for unknown stage, got %v", got)
	}
}

func TestOverall_StageEdgesMeet(t *testing.T) {
	order := []Stage{StageFetch, StageScript, StageTTS, StageAssembly, StageComplete}
	for i := 0; i < len(order)-1; i++ {
		end := Overall(order[i], 1)
		next := Overall(order[i+1], 0)
		if end != next {
			t.Errorf("expected %s end %v to equal %s start %v", order[i], end, order[i+1], next)
		}
	}

	prev := -1.0
	for _, stage := range order {
		for n := 0; n <= 7; n++ {
			got := Overall(stage, float64(n)/7)
			if got < prev {
				t.Errorf("expected non-decreasing progress, got %v after %v (%s %d/7)", got, prev, stage, n)
			}
			prev = got
		}
	}
}

func TestBarRenderer_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, false, 80)
	r.Handle(NewEvent(StageFetch, "Fetching article...", 0, time.Now()))
	r.Handle(Event{Stage: StageComplete, Message: "Done", OutputFile: "/tmp/podcast_x.mp3", Duration: "1:02", SizeMB: 1.5, Skipped: 1})
	r.Finish()

	out := buf.String()
	for _, want := range []string{"Fetching article...", "/tmp/podcast_x.mp3", "1:02", "1 line(s) produced no audio"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestBarRenderer_ErrorSummary(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, false, 80)
	r.Handle(Event{Stage: StageTTS, Message: "Synthesizing", Error: errors.New("boom")})
	r.Finish()

	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected error in summary, got %q", buf.String())
	}
}

func TestBarRenderer_TTYRedraws(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, true, 80)
	r.Handle(Event{Stage: StageScript, Message: "Writing script", Percent: 0.2})
	r.Handle(Event{Stage: StageTTS, Message: "Line 1/2", Percent: 0.5})

	out := buf.String()
	if !strings.Contains(out, "\033[2K") {
		t.Error("expected line clearing escape codes on redraw")
	}
	if !strings.Contains(out, " 50%") {
		t.Errorf("expected percent in bar line, got %q", out)
	}
}
