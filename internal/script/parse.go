package script

import (
	"strings"
)

// ParseScript turns raw model output into a script. Every line containing a
// colon is split at its first colon into speaker and text (both trimmed);
// lines without a colon, including the <podcast> wrapper tags, are dropped.
// A result with zero lines is valid.
func ParseScript(raw string) *Script {
	s := &Script{}
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		speaker, text, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		s.Lines = append(s.Lines, Line{
			Speaker: strings.TrimSpace(speaker),
			Text:    strings.TrimSpace(text),
		})
	}
	return s
}
