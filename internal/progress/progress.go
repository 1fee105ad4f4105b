package progress

import "time"

// Stage identifies which pipeline stage is active.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageScript   Stage = "script"
	StageTTS      Stage = "tts"
	StageAssembly Stage = "assembly"
	StageComplete Stage = "complete"
)

// stageSpan is the share of the overall bar each stage covers.
var stageSpan = map[Stage][2]float64{
	StageFetch:    {0.0, 0.1},
	StageScript:   {0.1, 0.3},
	StageTTS:      {0.3, 0.9},
	StageAssembly: {0.9, 1.0},
	StageComplete: {1.0, 1.0},
}

// Event carries progress information from the pipeline to the renderer.
type Event struct {
	Stage     Stage
	Message   string
	Percent   float64 // 0.0–1.0
	LineNum   int
	LineTotal int
	Elapsed   time.Duration
	Error     error
	// OutputFile is set on StageComplete with the final file path.
	OutputFile string
	// Duration is the episode duration string (e.g. "12:34"), set on StageComplete.
	Duration string
	// SizeMB is the output file size in MB, set on StageComplete.
	SizeMB float64
	// Skipped counts script lines that produced no audio.
	Skipped int
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// NewEvent creates an Event with common fields populated. frac is the
// progress within stage and is mapped onto the overall bar.
func NewEvent(stage Stage, msg string, frac float64, start time.Time) Event {
	return Event{
		Stage:   stage,
		Message: msg,
		Percent: Overall(stage, frac),
		Elapsed: time.Since(start),
	}
}

// Overall maps progress within a stage onto the whole run.
func Overall(stage Stage, frac float64) float64 {
	span, ok := stageSpan[stage]
	if !ok {
		return 0
	}
	// Stage edges are returned exactly so one stage's end equals the next
	// stage's start and the bar never steps backwards.
	switch {
	case frac <= 0:
		return span[0]
	case frac >= 1:
		return span[1]
	}
	return span[0]*(1-frac) + span[1]*frac
}
