// Package aitag tags game film with the AI model.
package aitag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/ai"
	"github.com/huddlehq/huddle/internal/billing"
	"github.com/huddlehq/huddle/internal/film"
	"github.com/huddlehq/huddle/internal/metrics"
	"github.com/huddlehq/huddle/internal/playbook"
	"github.com/huddlehq/huddle/internal/playtag"
	"github.com/huddlehq/huddle/internal/taggingtier"
)

// Feature labels token spending and metrics for AI tagging.
const Feature = "ai_tagging"

var (
	// ErrTaggingFailed is returned when the model fails or its answer cannot be read.
	// Tokens spent on the attempt are refunded.
	ErrTaggingFailed = errors.New("ai tagging failed")
	// ErrVideoNotReady is returned for videos whose upload has not completed.
	ErrVideoNotReady = errors.New("video has not finished uploading")
)

// TokenAccount debits and refunds AI tokens.
type TokenAccount interface {
	Consume(ctx context.Context, teamID uuid.UUID, amount int, feature string, actor *uuid.UUID) (*billing.TokenBalance, error)
	Refund(ctx context.Context, teamID uuid.UUID, amount int, feature string) (*billing.TokenBalance, error)
}

// Input describes one tagging run.
type Input struct {
	Video    *film.Video
	ActorID  *uuid.UUID
	MediaURI string
	Playbook []playbook.Ref
	StartMs  *int64
	EndMs    *int64
}

// Result is the outcome of a tagging run.
type Result struct {
	Created    []playtag.PlayInstance
	Discarded  int
	TokensUsed int
	Balance    int
}

// Tagger runs AI tagging passes over uploaded film.
type Tagger struct {
	gen    ai.Generator
	tokens TokenAccount
	repo   playtag.Repository
}

// NewTagger creates a Tagger. gen may be nil when no model is configured.
func NewTagger(gen ai.Generator, tokens TokenAccount, repo playtag.Repository) *Tagger {
	return &Tagger{gen: gen, tokens: tokens, repo: repo}
}

// Tag spends the tier's tokens, asks the model for plays and stores the valid ones.
func (t *Tagger) Tag(ctx context.Context, tierName string, in Input) (*Result, error) {
	tier, err := taggingtier.ForName(tierName)
	if err != nil {
		return nil, err
	}
	if t.gen == nil {
		return nil, ai.ErrUnavailable
	}
	if in.Video.Status != film.StatusUploaded {
		return nil, ErrVideoNotReady
	}

	teamID := in.Video.TeamID
	balance, err := t.tokens.Consume(ctx, teamID, tier.TokenCost, Feature, in.ActorID)
	if err != nil {
		return nil, err
	}

	text, err := t.gen.Generate(ctx, BuildRequest(tier, in))
	if err != nil {
		return nil, t.fail(ctx, teamID, tier.TokenCost, err)
	}

	suggestions, skipped, err := ParseSuggestions(text)
	if err != nil {
		metrics.AIRequests.WithLabelValues(Feature, "parse_error").Inc()
		return nil, t.fail(ctx, teamID, tier.TokenCost, err)
	}

	created, discarded := Convert(suggestions, tier, in)
	if err := t.repo.CreateMany(ctx, created); err != nil {
		t.refund(ctx, teamID, tier.TokenCost)
		return nil, fmt.Errorf("storing tagged plays: %w", err)
	}

	slog.Info("aitag: tagging complete",
		"team", teamID,
		"video", in.Video.ID,
		"tier", tier.Name,
		"created", len(created),
		"discarded", discarded+skipped,
	)
	return &Result{
		Created:    created,
		Discarded:  discarded + skipped,
		TokensUsed: tier.TokenCost,
		Balance:    balance.Balance,
	}, nil
}

func (t *Tagger) fail(ctx context.Context, teamID uuid.UUID, cost int, cause error) error {
	t.refund(ctx, teamID, cost)
	slog.Warn("aitag: tagging failed", "team", teamID, "error", cause)
	return fmt.Errorf("%w: %v", ErrTaggingFailed, cause)
}

func (t *Tagger) refund(ctx context.Context, teamID uuid.UUID, cost int) {
	if _, err := t.tokens.Refund(context.WithoutCancel(ctx), teamID, cost, Feature); err != nil {
		slog.Error("aitag: failed to refund tokens", "team", teamID, "error", err)
	}
}
