package practice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/ai"
	"github.com/huddlehq/huddle/internal/analytics"
	"github.com/huddlehq/huddle/internal/billing"
)

// Generation settings.
const (
	GenerationCost = 2
	Feature        = "practice_generation"
)

// ErrGenerationFailed is returned when the model fails or answers with an unusable plan.
// Tokens spent on the attempt are refunded.
var ErrGenerationFailed = errors.New("practice plan generation failed")

// TokenAccount debits and refunds AI tokens.
type TokenAccount interface {
	Consume(ctx context.Context, teamID uuid.UUID, amount int, feature string, actor *uuid.UUID) (*billing.TokenBalance, error)
	Refund(ctx context.Context, teamID uuid.UUID, amount int, feature string) (*billing.TokenBalance, error)
}

// GenerateInput is what the coach asks the planner for.
type GenerateInput struct {
	TeamID      uuid.UUID
	ActorID     *uuid.UUID
	Date        time.Time
	DurationMin int
	Focus       string
	// RosterByGroup counts active players per position group.
	RosterByGroup map[string]int
	// Opponent optionally carries scouting tendencies of the next opponent.
	Opponent     string
	OpponentScan *analytics.Report
}

// Planner generates practice plans with the AI model.
type Planner struct {
	gen    ai.Generator
	tokens TokenAccount
	repo   Repository
}

// NewPlanner creates a Planner. gen may be nil when no model is configured.
func NewPlanner(gen ai.Generator, tokens TokenAccount, repo Repository) *Planner {
	return &Planner{gen: gen, tokens: tokens, repo: repo}
}

const systemPrompt = `You are an experienced football coordinator who writes practice plans for youth and high-school teams.
Answer with a single JSON object and nothing else.`

// BuildRequest renders the generation prompt.
func BuildRequest(in GenerateInput) ai.Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %d-minute practice plan for %s.\n", in.DurationMin, in.Date.Format("Monday, January 2, 2006"))
	if in.Focus != "" {
		fmt.Fprintf(&b, "Primary focus: %s.\n", in.Focus)
	}
	if len(in.RosterByGroup) > 0 {
		fmt.Fprintf(&b, "Active roster: %d offense, %d defense, %d special teams players.\n",
			in.RosterByGroup["offense"], in.RosterByGroup["defense"], in.RosterByGroup["special_teams"])
	}
	if in.OpponentScan != nil && in.OpponentScan.Totals.Plays > 0 {
		r := in.OpponentScan
		name := in.Opponent
		if name == "" {
			name = "the opponent"
		}
		fmt.Fprintf(&b, "Scouting on %s over %d snaps: %.1f%% run, %.1f%% pass, %.1f yards per play.\n",
			name, r.Totals.Plays, r.RunPass.RunPct, r.RunPass.PassPct, r.Totals.YardsPerPlay)
		if len(r.Formations) > 0 {
			top := r.Formations
			if len(top) > 3 {
				top = top[:3]
			}
			parts := make([]string, 0, len(top))
			for _, f := range top {
				parts = append(parts, fmt.Sprintf("%s (%d snaps, %.0f%% run)", f.Key, f.Plays, f.RunPct))
			}
			fmt.Fprintf(&b, "Most used formations: %s.\n", strings.Join(parts, ", "))
		}
	}
	b.WriteString("\nRespond with JSON shaped as:\n")
	b.WriteString(`{"title": string, "periods": [{"name": string, "minutes": int, "group": "all|offense|defense|special_teams|individual", "drill": string, "notes": string}]}`)
	fmt.Fprintf(&b, "\nThe period minutes must add up to at most %d.\n", in.DurationMin)

	return ai.Request{Feature: Feature, System: systemPrompt, Prompt: b.String(), JSON: true}
}

type generatedPlan struct {
	Title   string   `json:"title"`
	Periods []Period `json:"periods"`
}

// ParsePlan turns a model answer into a plan. Unknown groups become "all",
// empty periods are dropped and trailing periods are trimmed to fit the duration.
func ParsePlan(text string, in GenerateInput) (*Plan, error) {
	doc, err := ai.ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var g generatedPlan
	if err := json.Unmarshal([]byte(doc), &g); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}

	periods := make([]Period, 0, len(g.Periods))
	remaining := in.DurationMin
	for _, p := range g.Periods {
		if p.Minutes <= 0 || strings.TrimSpace(p.Name) == "" || remaining <= 0 {
			continue
		}
		if !validGroup(p.Group) {
			p.Group = "all"
		}
		if p.Minutes > remaining {
			p.Minutes = remaining
		}
		remaining -= p.Minutes
		periods = append(periods, p)
	}
	if len(periods) == 0 {
		return nil, errors.New("plan has no usable periods")
	}

	title := strings.TrimSpace(g.Title)
	if title == "" {
		title = "Practice " + in.Date.Format("Jan 2")
	}
	return &Plan{
		TeamID:      in.TeamID,
		Title:       title,
		Date:        in.Date,
		DurationMin: in.DurationMin,
		Focus:       in.Focus,
		Periods:     periods,
		Source:      SourceAI,
		CreatedBy:   in.ActorID,
	}, nil
}

func validGroup(g string) bool {
	for _, v := range ValidGroups {
		if v == g {
			return true
		}
	}
	return false
}

// Generate spends tokens, asks the model for a plan and stores it.
func (p *Planner) Generate(ctx context.Context, in GenerateInput) (*Plan, error) {
	if p.gen == nil {
		return nil, ai.ErrUnavailable
	}
	if _, err := p.tokens.Consume(ctx, in.TeamID, GenerationCost, Feature, in.ActorID); err != nil {
		return nil, err
	}

	text, err := p.gen.Generate(ctx, BuildRequest(in))
	if err != nil {
		return nil, p.fail(ctx, in.TeamID, err)
	}
	plan, err := ParsePlan(text, in)
	if err != nil {
		return nil, p.fail(ctx, in.TeamID, err)
	}

	if err := p.repo.Create(ctx, plan); err != nil {
		p.refund(ctx, in.TeamID)
		return nil, fmt.Errorf("storing practice plan: %w", err)
	}
	return plan, nil
}

// Stream spends tokens and forwards the model output as it arrives. When the
// complete output parses into a plan it is stored and returned; otherwise the
// returned plan is nil and the streamed text is all the caller gets.
func (p *Planner) Stream(ctx context.Context, in GenerateInput, onChunk func(chunk string) error) (*Plan, error) {
	if p.gen == nil {
		return nil, ai.ErrUnavailable
	}
	if _, err := p.tokens.Consume(ctx, in.TeamID, GenerationCost, Feature, in.ActorID); err != nil {
		return nil, err
	}

	var full strings.Builder
	err := p.gen.Stream(ctx, BuildRequest(in), func(chunk string) error {
		full.WriteString(chunk)
		return onChunk(chunk)
	})
	if err != nil {
		return nil, p.fail(ctx, in.TeamID, err)
	}

	plan, err := ParsePlan(full.String(), in)
	if err != nil {
		slog.Warn("practice: streamed plan did not parse", "team", in.TeamID, "error", err)
		return nil, nil
	}
	if err := p.repo.Create(ctx, plan); err != nil {
		p.refund(ctx, in.TeamID)
		return nil, fmt.Errorf("storing practice plan: %w", err)
	}
	return plan, nil
}

func (p *Planner) fail(ctx context.Context, teamID uuid.UUID, cause error) error {
	p.refund(ctx, teamID)
	slog.Warn("practice: generation failed", "team", teamID, "error", cause)
	return fmt.Errorf("%w: %v", ErrGenerationFailed, cause)
}

func (p *Planner) refund(ctx context.Context, teamID uuid.UUID) {
	if _, err := p.tokens.Refund(context.WithoutCancel(ctx), teamID, GenerationCost, Feature); err != nil {
		slog.Error("practice: failed to refund tokens", "team", teamID, "error", err)
	}
}
