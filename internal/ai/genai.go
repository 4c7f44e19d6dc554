package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/huddlehq/huddle/internal/metrics"
)

// GenAIGenerator implements Generator with the Gemini API.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAIGenerator creates a Gemini-backed generator.
func NewGenAIGenerator(ctx context.Context, apiKey, model string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIGenerator{client: client, model: model}, nil
}

func (g *GenAIGenerator) build(req Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	parts := []*genai.Part{}
	if req.MediaURI != "" {
		parts = append(parts, genai.NewPartFromURI(req.MediaURI, req.MediaType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg
}

// Generate sends the request and returns the full response text.
func (g *GenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	contents, cfg := g.build(req)
	start := time.Now()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		metrics.AIRequests.WithLabelValues(req.Feature, "error").Inc()
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		metrics.AIRequests.WithLabelValues(req.Feature, "empty").Inc()
		return "", ErrEmptyResponse
	}

	metrics.AIRequests.WithLabelValues(req.Feature, "ok").Inc()
	slog.Debug("ai: generation complete",
		"feature", req.Feature,
		"model", g.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"chars", len(text),
	)
	return text, nil
}

// Stream sends the request and forwards response text as it arrives.
func (g *GenAIGenerator) Stream(ctx context.Context, req Request, onChunk func(chunk string) error) error {
	contents, cfg := g.build(req)

	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, cfg) {
		if err != nil {
			metrics.AIRequests.WithLabelValues(req.Feature, "error").Inc()
			return fmt.Errorf("GenAI stream failed: %w", err)
		}
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
	}

	metrics.AIRequests.WithLabelValues(req.Feature, "ok").Inc()
	return nil
}
