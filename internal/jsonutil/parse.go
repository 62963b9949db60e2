// Package jsonutil extracts and parses JSON from assistant replies that may be
// wrapped in markdown code fences or embedded in prose.
//
// The primary path is strict: strip fences, cut out the JSON payload, and
// unmarshal into a concrete type, failing closed on malformed data. A
// regexp-based secondary extractor exists for replies where the payload is
// buried mid-sentence; callers treat its failure as "use the fallback chain",
// never as data.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// StripFences removes a ```json ... ``` (or bare ```) wrapper from text.
// Text without fences is returned unchanged.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}

	end := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.Join(lines[1:end], "\n")
}

// CutPayload returns the outermost JSON object or array embedded in text:
// from the first { or [ to the last matching } or ].
func CutPayload(text string) (string, error) {
	text = strings.TrimSpace(text)

	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return "", fmt.Errorf("no JSON payload in reply")
	}

	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}

	text = text[start:]
	end := strings.LastIndex(text, closer)
	if end == -1 {
		return "", fmt.Errorf("unterminated JSON payload (missing %s)", closer)
	}
	return text[:end+1], nil
}

// Parse is the strict path: fences stripped, payload cut, unmarshal into T.
// Any malformation is an error; it never returns partially valid data.
func Parse[T any](raw string) (T, error) {
	var zero T

	payload, err := CutPayload(StripFences(raw))
	if err != nil {
		return zero, fmt.Errorf("%w (reply length %d)", err, len(raw))
	}

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		preview := payload
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return zero, fmt.Errorf("invalid JSON in reply: %w (payload: %s)", err, preview)
	}
	return result, nil
}

// objectPattern matches a braced object containing the given key, non-greedily,
// across newlines. Used only by ParseWithKey's secondary extraction.
func objectPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)\{.*?"` + regexp.QuoteMeta(key) + `".*\}`)
}

// ParseWithKey tries the strict path first; if that fails, it falls back to a
// regexp scan for an object containing key and parses that. Both paths fail
// closed: an error means the caller should synthesize fallback data.
func ParseWithKey[T any](raw, key string) (T, error) {
	result, strictErr := Parse[T](raw)
	if strictErr == nil {
		return result, nil
	}

	match := objectPattern(key).FindString(StripFences(raw))
	if match == "" {
		var zero T
		return zero, strictErr
	}

	var fallback T
	if err := json.Unmarshal([]byte(match), &fallback); err != nil {
		var zero T
		return zero, fmt.Errorf("regexp-extracted payload still invalid: %w (strict: %v)", err, strictErr)
	}
	return fallback, nil
}
