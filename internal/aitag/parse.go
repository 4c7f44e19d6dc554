package aitag

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/huddlehq/huddle/internal/ai"
	"github.com/huddlehq/huddle/internal/playtag"
	"github.com/huddlehq/huddle/internal/taggingtier"
)

// Suggestion is one play as reported by the model.
type Suggestion struct {
	StartMs     *int64   `json:"startMs"`
	EndMs       *int64   `json:"endMs"`
	Quarter     *int     `json:"quarter"`
	Down        *int     `json:"down"`
	Distance    *int     `json:"distance"`
	YardsToGoal *int     `json:"yardsToGoal"`
	Hash        *string  `json:"hash"`
	Side        string   `json:"side"`
	PlayType    string   `json:"playType"`
	Formation   string   `json:"formation"`
	Personnel   string   `json:"personnel"`
	Direction   *string  `json:"direction"`
	Result      string   `json:"result"`
	YardsGained *int     `json:"yardsGained"`
	PlayName    string   `json:"playName"`
	Notes       string   `json:"notes"`
	Confidence  *float64 `json:"confidence"`
}

// ParseSuggestions decodes the model answer. Entries that are not objects are
// skipped and counted in the second return value.
func ParseSuggestions(text string) ([]Suggestion, int, error) {
	doc, err := ai.ExtractJSON(text)
	if err != nil {
		return nil, 0, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		var wrapper struct {
			Plays []json.RawMessage `json:"plays"`
		}
		if werr := json.Unmarshal([]byte(doc), &wrapper); werr != nil || wrapper.Plays == nil {
			return nil, 0, fmt.Errorf("decoding suggestions: %w", err)
		}
		raw = wrapper.Plays
	}

	out := make([]Suggestion, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var s Suggestion
		if err := json.Unmarshal(r, &s); err != nil {
			skipped++
			continue
		}
		out = append(out, s)
	}
	return out, skipped, nil
}

func lower(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*p))
	if v == "" {
		return nil
	}
	return &v
}

// Convert turns suggestions into validated play instances for the video. The
// second return value counts suggestions that were dropped as invalid or outside the window.
func Convert(suggestions []Suggestion, tier taggingtier.Tier, in Input) ([]playtag.PlayInstance, int) {
	plays := playIndex(in.Playbook)
	out := make([]playtag.PlayInstance, 0, len(suggestions))
	discarded := 0

	for _, s := range suggestions {
		if s.StartMs == nil || s.EndMs == nil {
			discarded++
			continue
		}
		if in.StartMs != nil && *s.StartMs < *in.StartMs {
			discarded++
			continue
		}
		if in.EndMs != nil && *s.StartMs > *in.EndMs {
			discarded++
			continue
		}

		videoID := in.Video.ID
		p := playtag.PlayInstance{
			TeamID:      in.Video.TeamID,
			GameID:      in.Video.GameID,
			VideoID:     &videoID,
			StartMs:     *s.StartMs,
			EndMs:       *s.EndMs,
			Quarter:     s.Quarter,
			Down:        s.Down,
			Distance:    s.Distance,
			YardsToGoal: s.YardsToGoal,
			Hash:        lower(s.Hash),
			Side:        strings.ToLower(strings.TrimSpace(s.Side)),
			PlayType:    strings.ToLower(strings.TrimSpace(s.PlayType)),
			Formation:   strings.TrimSpace(s.Formation),
			Personnel:   strings.TrimSpace(s.Personnel),
			Direction:   lower(s.Direction),
			Result:      strings.ToLower(strings.TrimSpace(s.Result)),
			Notes:       strings.TrimSpace(s.Notes),
			Source:      playtag.SourceAI,
			Confidence:  s.Confidence,
			CreatedBy:   in.ActorID,
		}
		if s.YardsGained != nil {
			p.YardsGained = *s.YardsGained
		}
		if ref, ok := plays[strings.ToLower(strings.TrimSpace(s.PlayName))]; ok && s.PlayName != "" {
			id := ref.ID
			p.PlayID = &id
		}

		tier.Apply(&p)
		playtag.Normalize(&p)
		if len(playtag.Validate(&p)) > 0 {
			discarded++
			continue
		}
		out = append(out, p)
	}
	return out, discarded
}
