package providers

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MalformedModelOutputError reports model output that could not be
// decoded into the requested structure, carrying the raw text so callers
// can surface it.
type MalformedModelOutputError struct {
	Raw string
	Err error
}

func (e *MalformedModelOutputError) Error() string {
	return fmt.Sprintf("model output is not valid JSON: %v", e.Err)
}

func (e *MalformedModelOutputError) Unwrap() error { return e.Err }

// DecodeJSON unmarshals model output into v. Models often wrap JSON in
// prose or markdown fences, so a failed strict parse falls back to the
// outermost brace-delimited span before giving up.
func DecodeJSON(raw string, v interface{}) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return &MalformedModelOutputError{Raw: raw, Err: fmt.Errorf("empty output")}
	}

	strictErr := json.Unmarshal([]byte(trimmed), v)
	if strictErr == nil {
		return nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return &MalformedModelOutputError{Raw: raw, Err: strictErr}
	}

	if err := json.Unmarshal([]byte(trimmed[start:end+1]), v); err != nil {
		return &MalformedModelOutputError{Raw: raw, Err: err}
	}
	return nil
}
