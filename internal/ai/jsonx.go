package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSONPayload means no balanced JSON span was found in the model output.
var ErrNoJSONPayload = errors.New("no JSON payload found in model output")

// ExtractJSON locates the outermost balanced {...} or [...] span in free-text
// model output, after stripping markdown fences. This is the single JSON
// recovery path for every model-output consumer.
func ExtractJSON(s string) (string, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	objStart := strings.IndexByte(cleaned, '{')
	arrStart := strings.IndexByte(cleaned, '[')

	start := objStart
	open, close := byte('{'), byte('}')
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
		open, close = '[', ']'
	}
	if start == -1 {
		return "", ErrNoJSONPayload
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(cleaned); i++ {
		char := cleaned[i]

		if escaped {
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if char == open {
				depth++
			} else if char == close {
				depth--
				if depth == 0 {
					return cleaned[start : i+1], nil
				}
			}
		}
	}

	return "", ErrNoJSONPayload
}

// Decode extracts the JSON span from model output and unmarshals it into T.
func Decode[T any](raw string) (T, error) {
	var out T
	span, err := ExtractJSON(raw)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(span), &out); err != nil {
		return out, fmt.Errorf("unmarshaling model output: %w", err)
	}
	return out, nil
}
