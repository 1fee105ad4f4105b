package script

import "fmt"

// Hosts names the two speakers the model is told to write for.
type Hosts struct {
	Female string
	Male   string
}

func DefaultHosts() Hosts {
	return Hosts{Female: "Alice", Male: "Bob"}
}

func (h Hosts) withDefaults() Hosts {
	d := DefaultHosts()
	if h.Female == "" {
		h.Female = d.Female
	}
	if h.Male == "" {
		h.Male = d.Male
	}
	return h
}

const promptTemplate = `# Task
Turn a piece of text into a podcast conversation between a female host and a male host.

# Requirements
1. The female host is %[1]s and the male host is %[2]s.
2. %[1]s speaks first: she greets the listeners, then summarizes the text and introduces what this episode will discuss.
3. %[1]s asks questions, responds and adds detail. %[2]s answers and states his views.
4. The conversation is natural and fluent, with a relaxed, casual style.
5. The conversation must present the content of the input text completely and in detail. Do not leave out any information.

# Format
You must output the podcast inside <podcast></podcast> XML tags using the format below, and output nothing else.
<podcast>
%[1]s or %[2]s: utterance
%[1]s or %[2]s: utterance
</podcast>

# Example output
%[1]s: greets the listeners, then summarizes the text and introduces what this episode will discuss
%[2]s: greets the listeners
%[1]s: asks a question
%[2]s: answers
%[1]s: ...
%[2]s: ...
...

# Input text
The content inside the <input-text></input-text> XML tags below is the text to turn into a podcast.
<input-text>
%[3]s
</input-text>
`

// BuildPrompt embeds sourceText verbatim into the fixed instruction prompt.
func BuildPrompt(sourceText string, hosts Hosts) string {
	hosts = hosts.withDefaults()
	return fmt.Sprintf(promptTemplate, hosts.Female, hosts.Male, sourceText)
}
