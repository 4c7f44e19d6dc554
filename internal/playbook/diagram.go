package playbook

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrDiagramTooLarge is returned when a diagram exceeds MaxDiagramBytes.
var ErrDiagramTooLarge = errors.New("diagram exceeds 256 KiB")

// ErrDiagramNotObject is returned when a diagram is not a JSON object.
var ErrDiagramNotObject = errors.New("diagram must be a JSON object")

// CheckDiagram verifies a diagram document. An empty or null diagram is accepted.
func CheckDiagram(d json.RawMessage) error {
	if len(d) > MaxDiagramBytes {
		return ErrDiagramTooLarge
	}
	trimmed := bytes.TrimSpace(d)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return ErrDiagramNotObject
	}
	return nil
}
