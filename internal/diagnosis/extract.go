package diagnosis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls a JSON value out of raw AI text. Models are asked for
// bare JSON but routinely wrap it in prose or markdown fences, so extraction
// is deliberately permissive. Precedence: whole-text parse, then a
// ```json-tagged fence, then any fence, then the substring between the first
// '{' and the last '}'.
func ExtractJSON(text string) (json.RawMessage, error) {
	if raw, ok := tryParse(text); ok {
		return raw, nil
	}

	if body, ok := fencedBlock(text, "```json"); ok {
		if raw, ok := tryParse(body); ok {
			return raw, nil
		}
	}

	if body, ok := fencedBlock(text, "```"); ok {
		if raw, ok := tryParse(body); ok {
			return raw, nil
		}
	}

	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			if raw, ok := tryParse(text[start : end+1]); ok {
				return raw, nil
			}
		}
	}

	return nil, fmt.Errorf("%w\nraw response: %s", ErrParseFailure, text)
}

// tryParse reports whether s is valid JSON, returning the trimmed bytes.
func tryParse(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !json.Valid([]byte(s)) {
		return nil, false
	}
	return json.RawMessage(s), true
}

// fencedBlock returns the content between the first opening fence with the
// given marker and the next closing fence.
func fencedBlock(text, marker string) (string, bool) {
	_, after, found := strings.Cut(text, marker)
	if !found {
		return "", false
	}
	body, _, _ := strings.Cut(after, "```")
	return strings.TrimSpace(body), true
}
