// Package analytics computes tendency and efficiency reports from tagged plays.
package analytics

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/playtag"
)

// Thresholds used by the report.
const (
	ExplosiveRunYards  = 10
	ExplosivePassYards = 20
	RedZoneYards       = 20
	TopFormations      = 10
	TopPlaysMinCalls   = 3
	TopPlaysLimit      = 10
)

// Distance buckets.
const (
	BucketShort  = "short"
	BucketMedium = "medium"
	BucketLong   = "long"
)

// Totals are the overall volume numbers.
type Totals struct {
	Plays        int     `json:"plays"`
	Yards        int     `json:"yards"`
	YardsPerPlay float64 `json:"yardsPerPlay"`
}

// RunPass is the run/pass split. Percentages are of plays that are either run or pass.
type RunPass struct {
	RunPlays     int     `json:"runPlays"`
	PassPlays    int     `json:"passPlays"`
	RunPct       float64 `json:"runPct"`
	PassPct      float64 `json:"passPct"`
	YardsPerRun  float64 `json:"yardsPerRun"`
	YardsPerPass float64 `json:"yardsPerPass"`
}

// Rate is a count of successes over attempts.
type Rate struct {
	Attempts  int     `json:"attempts"`
	Successes int     `json:"successes"`
	Pct       float64 `json:"pct"`
}

// Tendency is usage and efficiency for one grouping key.
type Tendency struct {
	Key      string  `json:"key"`
	Plays    int     `json:"plays"`
	RunPct   float64 `json:"runPct"`
	AvgYards float64 `json:"avgYards"`
}

// DownDistance is the run tendency for one down and distance bucket.
type DownDistance struct {
	Down     int     `json:"down"`
	Bucket   string  `json:"bucket"`
	Plays    int     `json:"plays"`
	RunPct   float64 `json:"runPct"`
	AvgYards float64 `json:"avgYards"`
}

// PlayEfficiency is the success of one playbook play.
type PlayEfficiency struct {
	PlayID      uuid.UUID `json:"playId"`
	Name        string    `json:"name"`
	Calls       int       `json:"calls"`
	SuccessRate float64   `json:"successRate"`
	AvgYards    float64   `json:"avgYards"`
}

// Report is the full analytics output for one side of the ball.
type Report struct {
	Side         string           `json:"side"`
	Games        int              `json:"games"`
	Totals       Totals           `json:"totals"`
	RunPass      RunPass          `json:"runPass"`
	Success      Rate             `json:"successRate"`
	ThirdDown    Rate             `json:"thirdDown"`
	Explosive    int              `json:"explosivePlays"`
	Turnovers    int              `json:"turnovers"`
	Touchdowns   int              `json:"touchdowns"`
	RedZone      Rate             `json:"redZone"`
	DownDistance []DownDistance   `json:"downDistance"`
	Formations   []Tendency       `json:"formations"`
	Hashes       []Tendency       `json:"hashes"`
	TopPlays     []PlayEfficiency `json:"topPlays"`
}

// IsRun reports whether a play type counts as a run.
func IsRun(playType string) bool {
	return playType == "run" || playType == "rpo"
}

// IsPass reports whether a play type counts as a pass.
func IsPass(playType string) bool {
	return playType == "pass" || playType == "screen"
}

// Bucket classifies a distance to go.
func Bucket(distance int) string {
	switch {
	case distance <= 3:
		return BucketShort
	case distance <= 6:
		return BucketMedium
	default:
		return BucketLong
	}
}

// Successful reports whether a play stayed on schedule: 40% of the distance on
// first down, 60% on second, and a conversion on third or fourth. The second
// result is false when the play has no down and distance.
func Successful(p playtag.PlayInstance) (success, evaluated bool) {
	if p.Down == nil || p.Distance == nil {
		return false, false
	}
	if p.Turnover {
		return false, true
	}
	if p.Touchdown {
		return true, true
	}
	dist := float64(*p.Distance)
	gained := float64(p.YardsGained)
	switch *p.Down {
	case 1:
		return gained >= 0.4*dist, true
	case 2:
		return gained >= 0.6*dist, true
	default:
		return p.FirstDown || gained >= dist, true
	}
}

// Explosive reports whether a play gained explosive yardage for its type.
func Explosive(p playtag.PlayInstance) bool {
	switch {
	case IsRun(p.PlayType):
		return p.YardsGained >= ExplosiveRunYards
	case IsPass(p.PlayType):
		return p.YardsGained >= ExplosivePassYards
	}
	return false
}

type acc struct {
	plays, runs, yards int
}

func (a *acc) add(p playtag.PlayInstance) {
	a.plays++
	a.yards += p.YardsGained
	if IsRun(p.PlayType) {
		a.runs++
	}
}

func (a acc) tendency(key string) Tendency {
	return Tendency{Key: key, Plays: a.plays, RunPct: pct(a.runs, a.plays), AvgYards: avg(a.yards, a.plays)}
}

// Build computes a report over the plays on side. playNames resolves playbook
// ids for the top-plays table. Red-zone trips are approximated per game: a game
// with any snap inside the 20 is one trip, converted when one of those snaps scored.
func Build(plays []playtag.PlayInstance, side string, playNames map[uuid.UUID]string) Report {
	r := Report{
		Side:         side,
		DownDistance: []DownDistance{},
		Formations:   []Tendency{},
		Hashes:       []Tendency{},
		TopPlays:     []PlayEfficiency{},
	}

	games := map[uuid.UUID]bool{}
	redZoneGames := map[uuid.UUID]bool{}
	redZoneScores := map[uuid.UUID]bool{}
	var runYards, passYards int
	dd := map[[2]int]*acc{}
	formations := map[string]*acc{}
	hashes := map[string]*acc{}
	type playAcc struct {
		calls, yards, success, evaluated int
	}
	byPlay := map[uuid.UUID]*playAcc{}

	for _, p := range plays {
		if side != "" && p.Side != side {
			continue
		}
		games[p.GameID] = true

		r.Totals.Plays++
		r.Totals.Yards += p.YardsGained
		switch {
		case IsRun(p.PlayType):
			r.RunPass.RunPlays++
			runYards += p.YardsGained
		case IsPass(p.PlayType):
			r.RunPass.PassPlays++
			passYards += p.YardsGained
		}

		ok, evaluated := Successful(p)
		if evaluated {
			r.Success.Attempts++
			if ok {
				r.Success.Successes++
			}
		}
		if p.Down != nil && *p.Down == 3 && p.Distance != nil {
			r.ThirdDown.Attempts++
			if p.FirstDown || p.Touchdown || (!p.Turnover && p.YardsGained >= *p.Distance) {
				r.ThirdDown.Successes++
			}
		}
		if Explosive(p) {
			r.Explosive++
		}
		if p.Turnover {
			r.Turnovers++
		}
		if p.Touchdown {
			r.Touchdowns++
		}
		if p.YardsToGoal != nil && *p.YardsToGoal <= RedZoneYards {
			redZoneGames[p.GameID] = true
			if p.Touchdown {
				redZoneScores[p.GameID] = true
			}
		}

		if p.Down != nil && p.Distance != nil {
			key := [2]int{*p.Down, bucketIndex(*p.Distance)}
			if dd[key] == nil {
				dd[key] = &acc{}
			}
			dd[key].add(p)
		}
		if p.Formation != "" {
			if formations[p.Formation] == nil {
				formations[p.Formation] = &acc{}
			}
			formations[p.Formation].add(p)
		}
		if p.Hash != nil {
			if hashes[*p.Hash] == nil {
				hashes[*p.Hash] = &acc{}
			}
			hashes[*p.Hash].add(p)
		}
		if p.PlayID != nil {
			pa := byPlay[*p.PlayID]
			if pa == nil {
				pa = &playAcc{}
				byPlay[*p.PlayID] = pa
			}
			pa.calls++
			pa.yards += p.YardsGained
			if evaluated {
				pa.evaluated++
				if ok {
					pa.success++
				}
			}
		}
	}

	r.Games = len(games)
	r.Totals.YardsPerPlay = avg(r.Totals.Yards, r.Totals.Plays)
	split := r.RunPass.RunPlays + r.RunPass.PassPlays
	r.RunPass.RunPct = pct(r.RunPass.RunPlays, split)
	r.RunPass.PassPct = pct(r.RunPass.PassPlays, split)
	r.RunPass.YardsPerRun = avg(runYards, r.RunPass.RunPlays)
	r.RunPass.YardsPerPass = avg(passYards, r.RunPass.PassPlays)
	r.Success.Pct = pct(r.Success.Successes, r.Success.Attempts)
	r.ThirdDown.Pct = pct(r.ThirdDown.Successes, r.ThirdDown.Attempts)
	r.RedZone.Attempts = len(redZoneGames)
	r.RedZone.Successes = len(redZoneScores)
	r.RedZone.Pct = pct(r.RedZone.Successes, r.RedZone.Attempts)

	for down := 1; down <= 4; down++ {
		for b, name := range bucketNames {
			a, ok := dd[[2]int{down, b}]
			if !ok {
				continue
			}
			r.DownDistance = append(r.DownDistance, DownDistance{
				Down: down, Bucket: name, Plays: a.plays,
				RunPct: pct(a.runs, a.plays), AvgYards: avg(a.yards, a.plays),
			})
		}
	}

	for name, a := range formations {
		r.Formations = append(r.Formations, a.tendency(name))
	}
	sort.Slice(r.Formations, func(i, j int) bool {
		if r.Formations[i].Plays != r.Formations[j].Plays {
			return r.Formations[i].Plays > r.Formations[j].Plays
		}
		return r.Formations[i].Key < r.Formations[j].Key
	})
	if len(r.Formations) > TopFormations {
		r.Formations = r.Formations[:TopFormations]
	}

	for _, h := range playtag.ValidHashes {
		if a, ok := hashes[h]; ok {
			r.Hashes = append(r.Hashes, a.tendency(h))
		}
	}

	for id, pa := range byPlay {
		if pa.calls < TopPlaysMinCalls {
			continue
		}
		r.TopPlays = append(r.TopPlays, PlayEfficiency{
			PlayID:      id,
			Name:        playNames[id],
			Calls:       pa.calls,
			SuccessRate: pct(pa.success, pa.evaluated),
			AvgYards:    avg(pa.yards, pa.calls),
		})
	}
	sort.Slice(r.TopPlays, func(i, j int) bool {
		a, b := r.TopPlays[i], r.TopPlays[j]
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		if a.Calls != b.Calls {
			return a.Calls > b.Calls
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.PlayID.String() < b.PlayID.String()
	})
	if len(r.TopPlays) > TopPlaysLimit {
		r.TopPlays = r.TopPlays[:TopPlaysLimit]
	}

	return r
}

var bucketNames = []string{BucketShort, BucketMedium, BucketLong}

func bucketIndex(distance int) int {
	switch Bucket(distance) {
	case BucketShort:
		return 0
	case BucketMedium:
		return 1
	default:
		return 2
	}
}

// pct returns n/d as a percentage rounded to one decimal, 0 when d is 0.
func pct(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return round1(100 * float64(n) / float64(d))
}

func avg(total, n int) float64 {
	if n == 0 {
		return 0
	}
	return round1(float64(total) / float64(n))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
