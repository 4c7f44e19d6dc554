package film

import "github.com/huddlehq/huddle/internal/camerasync"

// Clips converts a game's videos into timeline clips. Videos that are not
// uploaded or have no duration are skipped.
func Clips(videos []Video) []camerasync.Clip {
	clips := make([]camerasync.Clip, 0, len(videos))
	for _, v := range videos {
		if v.Status != StatusUploaded || v.DurationMs <= 0 {
			continue
		}
		clips = append(clips, camerasync.Clip{
			VideoID:    v.ID,
			Lane:       v.CameraLane,
			OffsetMs:   v.SyncOffsetMs,
			DurationMs: v.DurationMs,
		})
	}
	return clips
}
