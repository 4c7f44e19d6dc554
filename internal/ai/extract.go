package ai

import (
	"errors"
	"strings"
)

// ErrNoJSON is returned when a response contains no JSON document.
var ErrNoJSON = errors.New("response contains no JSON document")

// ExtractJSON returns the JSON document inside a model response. Markdown code
// fences and prose around the document are dropped. The document starts at the
// first '[' or '{' and ends at the matching last ']' or '}'.
func ExtractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		body := s[i+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		s = strings.TrimSpace(body)
	}

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return "", ErrNoJSON
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}
