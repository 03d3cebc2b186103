package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractError describes a failure to pull a structured result out of
// free-form model output.
type ExtractError struct {
	Reason string
	Err    error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ExtractError) Unwrap() error { return e.Err }

// ExtractJSONObject parses the substring between the first '{' and the last
// '}' of free-form text as a JSON object. Model responses wrap the requested
// object in prose more often than not, so everything outside the braces is
// ignored.
func ExtractJSONObject(text string) (map[string]any, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return nil, &ExtractError{Reason: "no JSON object found in model response"}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil {
		return nil, &ExtractError{Reason: "malformed JSON object in model response", Err: err}
	}
	return obj, nil
}
