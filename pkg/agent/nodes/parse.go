package nodes

import (
	"encoding/json"
	"strings"

	"github.com/athletedesk/athletedesk/pkg/resilience"
)

// maxModelOutput guards against runaway generations before any parse
// attempt. Outputs beyond this are treated as malformed, not retried.
const maxModelOutput = 50000

// decodeModelJSON extracts a JSON object from model output and unmarshals
// it into v. Models often wrap JSON in markdown fences or prose, so the
// parser takes the span from the first '{' to the last '}'.
func decodeModelJSON(raw string, v any) error {
	if len(raw) > maxModelOutput {
		return &resilience.JSONParseError{Message: "model output exceeds size limit"}
	}
	raw = strings.TrimSpace(raw)
	if fenced, ok := strings.CutPrefix(raw, "```json"); ok {
		raw = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
	} else if fenced, ok := strings.CutPrefix(raw, "```"); ok {
		raw = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return &resilience.JSONParseError{Input: raw, Message: "no JSON object in model output"}
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), v); err != nil {
		return &resilience.JSONParseError{Input: raw, Message: err.Error()}
	}
	return nil
}
