package aitag

import (
	"fmt"
	"strings"

	"github.com/huddlehq/huddle/internal/ai"
	"github.com/huddlehq/huddle/internal/playbook"
	"github.com/huddlehq/huddle/internal/playtag"
	"github.com/huddlehq/huddle/internal/taggingtier"
)

const systemPrompt = `You are a football video analyst. You watch game film and log every snap.
Only report plays you can see. Answer with a JSON array and nothing else.`

var fieldHints = map[string]string{
	"side":        `"offense" | "defense" | "special_teams" (relative to the team that filmed)`,
	"playType":    enumHint(playtag.ValidPlayTypes),
	"result":      enumHint(playtag.ValidResults),
	"yardsGained": "integer, negative for losses",
	"quarter":     "integer 1-4, 5 for overtime",
	"down":        "integer 1-4",
	"distance":    "integer yards to a first down, required when down is set",
	"yardsToGoal": "integer 1-99, yards from the line of scrimmage to the goal line",
	"hash":        enumHint(playtag.ValidHashes),
	"formation":   "short formation name",
	"personnel":   `offensive personnel grouping such as "11" or "21"`,
	"direction":   enumHint(playtag.ValidDirections),
	"playName":    "name of the matching playbook play, or empty",
	"notes":       "one short coaching note",
}

func enumHint(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, " | ")
}

// BuildRequest renders the tagging prompt for one video.
func BuildRequest(tier taggingtier.Tier, in Input) ai.Request {
	var b strings.Builder
	b.WriteString("Log every play in this game film.\n")
	if in.StartMs != nil || in.EndMs != nil {
		from, to := "the start", "the end"
		if in.StartMs != nil {
			from = fmt.Sprintf("%d ms", *in.StartMs)
		}
		if in.EndMs != nil {
			to = fmt.Sprintf("%d ms", *in.EndMs)
		}
		fmt.Fprintf(&b, "Only log plays between %s and %s of the video.\n", from, to)
	}

	b.WriteString("\nFor each play return an object with:\n")
	b.WriteString(`- "startMs", "endMs": integer video positions in milliseconds of the snap and the whistle` + "\n")
	b.WriteString(`- "confidence": number between 0 and 1` + "\n")
	for _, field := range tier.Fields {
		name := field
		if field == "playId" {
			if len(in.Playbook) == 0 {
				continue
			}
			name = "playName"
		}
		fmt.Fprintf(&b, "- %q: %s\n", name, fieldHints[name])
	}

	if tier.Allows("playId") && len(in.Playbook) > 0 {
		names := make([]string, len(in.Playbook))
		for i, ref := range in.Playbook {
			names[i] = ref.Name
		}
		fmt.Fprintf(&b, "\nThe team's playbook contains: %s.\n", strings.Join(names, "; "))
	}
	b.WriteString("\nOmit fields you cannot determine. Respond with [] if the video shows no plays.\n")

	return ai.Request{
		Feature:   Feature,
		System:    systemPrompt,
		Prompt:    b.String(),
		MediaURI:  in.MediaURI,
		MediaType: in.Video.ContentType,
		JSON:      true,
	}
}

func playIndex(refs []playbook.Ref) map[string]playbook.Ref {
	idx := make(map[string]playbook.Ref, len(refs))
	for _, r := range refs {
		idx[strings.ToLower(strings.TrimSpace(r.Name))] = r
	}
	return idx
}
