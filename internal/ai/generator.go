// Package ai wraps the generative model used for film tagging and practice planning.
package ai

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no model is configured.
var ErrUnavailable = errors.New("ai generator is not configured")

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("ai generator returned no content")

// Request is a single prompt to the model.
type Request struct {
	// Feature labels the call in metrics, e.g. "ai_tagging".
	Feature string
	System  string
	Prompt  string
	// MediaURI optionally attaches a file the model can read, such as a presigned video URL.
	MediaURI  string
	MediaType string
	// JSON asks the model to answer with a JSON document.
	JSON bool
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	// Stream calls onChunk with each piece of text as it arrives. An error from
	// onChunk stops the stream and is returned.
	Stream(ctx context.Context, req Request, onChunk func(chunk string) error) error
}
