package summarize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt is the instruction shared by the LLM-backed summarisers. The
// model is asked for a strict JSON object so the response can be decoded
// straight into a [Result].
const SystemPrompt = `You are a meeting analyst. Summarise the meeting transcript you are given.
Respond with a single JSON object and nothing else, using this shape:
{"summary": "...", "keyPoints": ["..."], "actionItems": ["..."], "decisions": ["..."], "topics": ["..."]}
Keep keyPoints to at most 5 entries, actionItems and decisions to at most 3, topics to at most 5.
Write the summary in the same language as the transcript.`

// UserPrompt renders the request into the user message for an LLM summariser.
func UserPrompt(req Request) string {
	var b strings.Builder
	if req.Language != "" {
		fmt.Fprintf(&b, "Transcript language: %s\n\n", req.Language)
	}
	b.WriteString("Transcript:\n")
	b.WriteString(req.Text)
	return b.String()
}

// DecodeModelResult parses an LLM response into a Result. Models sometimes
// wrap JSON in a code fence; that is stripped first. When the response is not
// valid JSON the whole text is used as the narrative summary.
func DecodeModelResult(text, source string) *Result {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var res Result
	if err := json.Unmarshal([]byte(trimmed), &res); err != nil || res.Summary == "" {
		return &Result{Summary: strings.TrimSpace(text), Source: source}
	}
	res.Source = source
	return &res
}
