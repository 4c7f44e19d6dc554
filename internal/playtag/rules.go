package playtag

import "fmt"

// Violation describes one invalid field on a play instance.
type Violation struct {
	Field   string
	Message string
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Normalize keeps the derived flags consistent with the result and situation.
func Normalize(p *PlayInstance) {
	switch p.Result {
	case "touchdown":
		p.Touchdown = true
	case "interception", "fumble":
		p.Turnover = true
	}
	if p.Distance != nil && p.Down != nil && p.YardsGained >= *p.Distance && !p.Turnover {
		p.FirstDown = true
	}
	if p.Source == "" {
		p.Source = SourceManual
	}
}

// Validate returns every rule the play instance breaks. An empty result means valid.
func Validate(p *PlayInstance) []Violation {
	var v []Violation
	add := func(field, msg string) {
		v = append(v, Violation{Field: field, Message: msg})
	}

	if p.StartMs < 0 {
		add("startMs", "must be >= 0")
	}
	if p.EndMs < p.StartMs {
		add("endMs", "must be >= startMs")
	}
	if !contains(ValidSides, p.Side) {
		add("side", fmt.Sprintf("must be one of %v", ValidSides))
	}
	if p.PlayType != "" && !contains(ValidPlayTypes, p.PlayType) {
		add("playType", fmt.Sprintf("must be one of %v", ValidPlayTypes))
	}
	if !contains(ValidResults, p.Result) {
		add("result", fmt.Sprintf("must be one of %v", ValidResults))
	}
	if p.YardsGained < -99 || p.YardsGained > 99 {
		add("yardsGained", "must be between -99 and 99")
	}
	if p.Quarter != nil && (*p.Quarter < 1 || *p.Quarter > 5) {
		add("quarter", "must be between 1 and 5")
	}
	if p.Down != nil {
		if *p.Down < 1 || *p.Down > 4 {
			add("down", "must be between 1 and 4")
		}
		if p.Distance == nil {
			add("distance", "is required when down is set")
		}
	}
	if p.Distance != nil && (*p.Distance < 1 || *p.Distance > 99) {
		add("distance", "must be between 1 and 99")
	}
	if p.YardsToGoal != nil && (*p.YardsToGoal < 1 || *p.YardsToGoal > 99) {
		add("yardsToGoal", "must be between 1 and 99")
	}
	if p.Hash != nil && !contains(ValidHashes, *p.Hash) {
		add("hash", fmt.Sprintf("must be one of %v", ValidHashes))
	}
	if p.Direction != nil && !contains(ValidDirections, *p.Direction) {
		add("direction", fmt.Sprintf("must be one of %v", ValidDirections))
	}
	if !contains(ValidSources, p.Source) {
		add("source", fmt.Sprintf("must be one of %v", ValidSources))
	}
	if p.Confidence != nil && (*p.Confidence < 0 || *p.Confidence > 1) {
		add("confidence", "must be between 0 and 1")
	}
	if len(p.Notes) > 2000 {
		add("notes", "must be at most 2000 characters")
	}
	return v
}
