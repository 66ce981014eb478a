package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fenceOpen  = regexp.MustCompile("^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// StripFences removes a leading/trailing markdown code fence from a model
// response.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// DecodeJSON parses a model response into v, tolerating code fences and
// surrounding prose. It first tries the fence-stripped response verbatim,
// then falls back to scanning for a balanced top-level JSON object.
// Returns false if nothing decodes; it never panics or errors, so malformed
// model output is an expected condition, not an exception.
func DecodeJSON(raw string, v interface{}) bool {
	s := StripFences(raw)
	if s == "" {
		return false
	}
	if json.Unmarshal([]byte(s), v) == nil {
		return true
	}
	for _, candidate := range findJSONCandidates(s) {
		if json.Unmarshal([]byte(candidate), v) == nil {
			return true
		}
	}
	return false
}

// findJSONCandidates scans s for balanced top-level JSON objects using a
// byte-level state machine that respects string literals and escapes. Safe
// to iterate bytes for the ASCII delimiters since UTF-8 never embeds them
// in multi-byte sequences.
func findJSONCandidates(s string) []string {
	var (
		candidates []string
		depth      int
		start      = -1
		inString   bool
		escape     bool
	)

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					candidates = append(candidates, s[start:i+1])
					start = -1
				}
			}
		}
	}

	return candidates
}
