// Package taggingtier defines how much detail a tagging pass records and what it costs.
package taggingtier

import (
	"errors"

	"github.com/huddlehq/huddle/internal/playtag"
)

// ErrUnknownTier is returned for a tier name that is not defined.
var ErrUnknownTier = errors.New("unknown tagging tier")

// Tier names.
const (
	Quick         = "quick"
	Standard      = "standard"
	Comprehensive = "comprehensive"
)

// Tier is a static tagging depth configuration.
type Tier struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	TokenCost   int      `json:"tokenCost"`
	Fields      []string `json:"fields"`
}

var (
	quickFields    = []string{"side", "playType", "result", "yardsGained"}
	standardFields = append(append([]string{}, quickFields...),
		"quarter", "down", "distance", "yardsToGoal", "hash", "formation")
	comprehensiveFields = append(append([]string{}, standardFields...),
		"personnel", "direction", "playId", "notes")
)

var tiers = []Tier{
	{
		Name:        Quick,
		Description: "Side, play type, result and yards gained for every snap.",
		TokenCost:   1,
		Fields:      quickFields,
	},
	{
		Name:        Standard,
		Description: "Adds game situation: quarter, down and distance, field position, hash and formation.",
		TokenCost:   2,
		Fields:      standardFields,
	},
	{
		Name:        Comprehensive,
		Description: "Adds personnel, play direction, playbook matching and coaching notes.",
		TokenCost:   4,
		Fields:      comprehensiveFields,
	},
}

// All returns every tier from least to most detailed.
func All() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// Fields returns every taggable field name across all tiers.
func Fields() []string {
	return append([]string{}, comprehensiveFields...)
}

// ForName returns the tier with the given name.
func ForName(name string) (Tier, error) {
	for _, t := range tiers {
		if t.Name == name {
			return t, nil
		}
	}
	return Tier{}, ErrUnknownTier
}

// Allows reports whether the tier records field.
func (t Tier) Allows(field string) bool {
	for _, f := range t.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Apply clears every field of p the tier does not record and stamps the tier name.
func (t Tier) Apply(p *playtag.PlayInstance) {
	if !t.Allows("quarter") {
		p.Quarter = nil
	}
	if !t.Allows("down") {
		p.Down = nil
	}
	if !t.Allows("distance") {
		p.Distance = nil
	}
	if !t.Allows("yardsToGoal") {
		p.YardsToGoal = nil
	}
	if !t.Allows("hash") {
		p.Hash = nil
	}
	if !t.Allows("formation") {
		p.Formation = ""
	}
	if !t.Allows("personnel") {
		p.Personnel = ""
	}
	if !t.Allows("direction") {
		p.Direction = nil
	}
	if !t.Allows("playId") {
		p.PlayID = nil
	}
	if !t.Allows("notes") {
		p.Notes = ""
	}
	p.TaggingTier = t.Name
}
