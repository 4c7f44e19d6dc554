package playtag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/huddlehq/huddle/internal/playtag"
)

func intp(v int) *int { return &v }
func strp(v string) *string { return &v }
func f64p(v float64) *float64 { return &v }

func validInstance() *playtag.PlayInstance {
	return &playtag.PlayInstance{
		StartMs:     1000,
		EndMs:       7000,
		Side:        "offense",
		PlayType:    "run",
		Result:      "rush",
		YardsGained: 4,
		Source:      playtag.SourceManual,
	}
}

func fields(vs []playtag.Violation) []string {
	out := []string{}
	for _, v := range vs {
		out = append(out, v.Field)
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *playtag.PlayInstance)
		want   []string
	}{
		{name: "valid", mutate: func(p *playtag.PlayInstance) {}, want: []string{}},
		{name: "end before start", mutate: func(p *playtag.PlayInstance) { p.EndMs = 500 }, want: []string{"endMs"}},
		{name: "zero length is fine", mutate: func(p *playtag.PlayInstance) { p.EndMs = p.StartMs }, want: []string{}},
		{name: "down without distance", mutate: func(p *playtag.PlayInstance) { p.Down = intp(2) }, want: []string{"distance"}},
		{name: "down out of range", mutate: func(p *playtag.PlayInstance) { p.Down = intp(5); p.Distance = intp(3) }, want: []string{"down"}},
		{name: "distance out of range", mutate: func(p *playtag.PlayInstance) { p.Down = intp(1); p.Distance = intp(0) }, want: []string{"distance"}},
		{name: "bad hash", mutate: func(p *playtag.PlayInstance) { p.Hash = strp("far") }, want: []string{"hash"}},
		{name: "bad side", mutate: func(p *playtag.PlayInstance) { p.Side = "both" }, want: []string{"side"}},
		{name: "unknown result", mutate: func(p *playtag.PlayInstance) { p.Result = "safety" }, want: []string{"result"}},
		{name: "quarter six", mutate: func(p *playtag.PlayInstance) { p.Quarter = intp(6) }, want: []string{"quarter"}},
		{name: "confidence above one", mutate: func(p *playtag.PlayInstance) { p.Confidence = f64p(1.2) }, want: []string{"confidence"}},
		{name: "yards to goal zero", mutate: func(p *playtag.PlayInstance) { p.YardsToGoal = intp(0) }, want: []string{"yardsToGoal"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := validInstance()
			tc.mutate(p)
			assert.Equal(t, tc.want, fields(playtag.Validate(p)))
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("touchdown sets flag", func(t *testing.T) {
		p := validInstance()
		p.Result = "touchdown"
		playtag.Normalize(p)
		assert.True(t, p.Touchdown)
		assert.False(t, p.Turnover)
	})

	t.Run("interception and fumble are turnovers", func(t *testing.T) {
		for _, r := range []string{"interception", "fumble"} {
			p := validInstance()
			p.Result = r
			playtag.Normalize(p)
			assert.True(t, p.Turnover, r)
		}
	})

	t.Run("gain past the sticks is a first down", func(t *testing.T) {
		p := validInstance()
		p.Down = intp(3)
		p.Distance = intp(4)
		p.YardsGained = 5
		playtag.Normalize(p)
		assert.True(t, p.FirstDown)
	})

	t.Run("empty source defaults to manual", func(t *testing.T) {
		p := validInstance()
		p.Source = ""
		playtag.Normalize(p)
		assert.Equal(t, playtag.SourceManual, p.Source)
	})
}
