package player

import "sort"

// DepthChartEntry groups the players whose primary position is Position.
type DepthChartEntry struct {
	Position string
	Players  []Player
}

// DepthChart groups active players by primary position. Groups follow the
// order of Positions and players within a group are sorted by jersey number.
// Positions with no players are omitted.
func DepthChart(players []Player) []DepthChartEntry {
	groups := map[string][]Player{}
	for _, p := range players {
		if p.Status != StatusActive {
			continue
		}
		pos := p.PrimaryPosition()
		groups[pos] = append(groups[pos], p)
	}

	chart := []DepthChartEntry{}
	for _, pos := range Positions {
		ps, ok := groups[pos]
		if !ok {
			continue
		}
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].JerseyNumber < ps[j].JerseyNumber })
		chart = append(chart, DepthChartEntry{Position: pos, Players: ps})
	}
	return chart
}

// CountByGroup returns the number of active players per position group
// (offense, defense, special_teams) using primary positions.
func CountByGroup(players []Player) map[string]int {
	counts := map[string]int{"offense": 0, "defense": 0, "special_teams": 0}
	for _, p := range players {
		if p.Status != StatusActive {
			continue
		}
		switch p.PrimaryPosition() {
		case "QB", "RB", "FB", "WR", "TE", "OL", "C", "OG", "OT":
			counts["offense"]++
		case "DL", "DT", "DE", "LB", "ILB", "OLB", "CB", "S", "DB":
			counts["defense"]++
		case "K", "P", "LS", "KR", "PR":
			counts["special_teams"]++
		}
	}
	return counts
}
