// Package camerasync maps between the game clock and per-camera video time
// for multi-angle film review. All times are integer milliseconds.
package camerasync

import (
	"errors"
	"sort"

	"github.com/google/uuid"
)

// ErrOutsideClip is returned when a time falls outside the clip it is converted against.
var ErrOutsideClip = errors.New("time is outside the clip")

// ErrNoClips is returned when an operation needs at least one clip.
var ErrNoClips = errors.New("no clips")

// Clip places one video on a camera lane. Video time 0 plays at game time
// OffsetMs, so the clip covers game time [OffsetMs, OffsetMs+DurationMs).
type Clip struct {
	VideoID    uuid.UUID `json:"videoId"`
	Lane       int       `json:"lane"`
	OffsetMs   int64     `json:"offsetMs"`
	DurationMs int64     `json:"durationMs"`
}

// EndMs returns the exclusive end of the clip on the game clock.
func (c Clip) EndMs() int64 {
	return c.OffsetMs + c.DurationMs
}

// Contains reports whether game time t falls inside the clip.
func (c Clip) Contains(t int64) bool {
	return c.DurationMs > 0 && t >= c.OffsetMs && t < c.EndMs()
}

// Interval is a half-open span [StartMs, EndMs) on the game clock.
type Interval struct {
	StartMs int64 `json:"startMs"`
	EndMs   int64 `json:"endMs"`
}

// DurationMs returns the length of the interval.
func (i Interval) DurationMs() int64 {
	return i.EndMs - i.StartMs
}

// GameToVideo converts game time t into the clip's video time.
func GameToVideo(t int64, c Clip) (int64, error) {
	if !c.Contains(t) {
		return 0, ErrOutsideClip
	}
	return t - c.OffsetMs, nil
}

// VideoToGame converts a position in the clip's video into game time.
func VideoToGame(v int64, c Clip) (int64, error) {
	if v < 0 || v >= c.DurationMs {
		return 0, ErrOutsideClip
	}
	return v + c.OffsetMs, nil
}

// ActiveClip returns the clip on lane that is playing at game time t. When
// clips overlap the one that started latest wins; ties keep input order.
func ActiveClip(clips []Clip, lane int, t int64) (Clip, bool) {
	var best Clip
	found := false
	for _, c := range clips {
		if c.Lane != lane || !c.Contains(t) {
			continue
		}
		if !found || c.OffsetMs > best.OffsetMs {
			best = c
			found = true
		}
	}
	return best, found
}

// NextClip returns the earliest clip on lane that starts strictly after t.
func NextClip(clips []Clip, lane int, t int64) (Clip, bool) {
	var best Clip
	found := false
	for _, c := range clips {
		if c.Lane != lane || c.DurationMs <= 0 || c.OffsetMs <= t {
			continue
		}
		if !found || c.OffsetMs < best.OffsetMs {
			best = c
			found = true
		}
	}
	return best, found
}

// Gaps returns the maximal sub-intervals of [from, to) on lane that no clip covers.
func Gaps(clips []Clip, lane int, from, to int64) []Interval {
	if from >= to {
		return nil
	}

	var covered []Interval
	for _, c := range clips {
		if c.Lane != lane || c.DurationMs <= 0 {
			continue
		}
		covered = append(covered, Interval{StartMs: c.OffsetMs, EndMs: c.EndMs()})
	}
	sort.Slice(covered, func(i, j int) bool { return covered[i].StartMs < covered[j].StartMs })

	var gaps []Interval
	cursor := from
	for _, iv := range covered {
		if iv.EndMs <= cursor {
			continue
		}
		if iv.StartMs >= to {
			break
		}
		if iv.StartMs > cursor {
			gaps = append(gaps, Interval{StartMs: cursor, EndMs: iv.StartMs})
		}
		cursor = iv.EndMs
		if cursor >= to {
			return gaps
		}
	}
	if cursor < to {
		gaps = append(gaps, Interval{StartMs: cursor, EndMs: to})
	}
	return gaps
}

// Lanes returns the distinct lanes used by clips in ascending order.
func Lanes(clips []Clip) []int {
	seen := make(map[int]bool)
	var lanes []int
	for _, c := range clips {
		if !seen[c.Lane] {
			seen[c.Lane] = true
			lanes = append(lanes, c.Lane)
		}
	}
	sort.Ints(lanes)
	return lanes
}

// Extent returns the span of game time covered by any clip.
func Extent(clips []Clip) (Interval, error) {
	if len(clips) == 0 {
		return Interval{}, ErrNoClips
	}
	ext := Interval{StartMs: clips[0].OffsetMs, EndMs: clips[0].EndMs()}
	for _, c := range clips[1:] {
		if c.OffsetMs < ext.StartMs {
			ext.StartMs = c.OffsetMs
		}
		if c.EndMs() > ext.EndMs {
			ext.EndMs = c.EndMs()
		}
	}
	return ext, nil
}

// LaneState describes what one camera lane shows at a point on the game clock.
type LaneState struct {
	Lane        int    `json:"lane"`
	Active      *Clip  `json:"active,omitempty"`
	VideoTimeMs *int64 `json:"videoTimeMs,omitempty"`
	Next        *Clip  `json:"next,omitempty"`
	ResumesInMs *int64 `json:"resumesInMs,omitempty"`
}

// Snapshot reports, for every lane, the clip playing at t and its video
// position, or the next clip and how long until it starts.
func Snapshot(clips []Clip, t int64) []LaneState {
	lanes := Lanes(clips)
	states := make([]LaneState, 0, len(lanes))
	for _, lane := range lanes {
		st := LaneState{Lane: lane}
		if c, ok := ActiveClip(clips, lane, t); ok {
			v := t - c.OffsetMs
			st.Active = &c
			st.VideoTimeMs = &v
		} else if n, ok := NextClip(clips, lane, t); ok {
			wait := n.OffsetMs - t
			st.Next = &n
			st.ResumesInMs = &wait
		}
		states = append(states, st)
	}
	return states
}

// AlignTo returns the offset that other must have so that refVideoMs in
// reference and otherVideoMs in other show the same instant.
func AlignTo(reference, other Clip, refVideoMs, otherVideoMs int64) (int64, error) {
	if refVideoMs < 0 || refVideoMs >= reference.DurationMs {
		return 0, ErrOutsideClip
	}
	if otherVideoMs < 0 || (other.DurationMs > 0 && otherVideoMs >= other.DurationMs) {
		return 0, ErrOutsideClip
	}
	return reference.OffsetMs + refVideoMs - otherVideoMs, nil
}
