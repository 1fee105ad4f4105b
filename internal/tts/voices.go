package tts

import "strings"

// VoiceRule assigns Voice to every speaker Match accepts.
type VoiceRule struct {
	Match func(speaker string) bool
	Voice Voice
}

// VoiceTable maps speakers to voices. Rules are tried in order; the first
// match wins and Fallback covers everything else.
type VoiceTable struct {
	Rules    []VoiceRule
	Fallback Voice
}

// ContainsFold matches speakers whose name contains token, ignoring case.
func ContainsFold(token string) func(string) bool {
	token = strings.ToLower(token)
	return func(speaker string) bool {
		return strings.Contains(strings.ToLower(speaker), token)
	}
}

// NewVoiceTable returns the two-host table: any speaker whose name contains
// maleHost gets the male voice, everyone else the female voice.
func NewVoiceTable(maleHost string, voices VoicePair) VoiceTable {
	return VoiceTable{
		Rules:    []VoiceRule{{Match: ContainsFold(maleHost), Voice: voices.Male}},
		Fallback: voices.Female,
	}
}

// With returns a copy of the table with extra rules tried after the
// existing ones.
func (t VoiceTable) With(rules ...VoiceRule) VoiceTable {
	out := VoiceTable{Fallback: t.Fallback}
	out.Rules = append(append(out.Rules, t.Rules...), rules...)
	return out
}

func (t VoiceTable) Select(speaker string) Voice {
	for _, r := range t.Rules {
		if r.Match != nil && r.Match(speaker) {
			return r.Voice
		}
	}
	return t.Fallback
}
