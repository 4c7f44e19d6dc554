package film

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlaybackURLTTL is how long a presigned playback URL stays valid.
const PlaybackURLTTL = time.Hour

var (
	// ErrStorageDisabled is returned when no object store is configured.
	ErrStorageDisabled = errors.New("film storage is not configured")
	// ErrVideoLimitReached is returned when a game already holds the tier's maximum number of videos.
	ErrVideoLimitReached = errors.New("video limit reached for this game")
	// ErrFileTooLarge is returned when a declared or stored size exceeds the tier's upload limit.
	ErrFileTooLarge = errors.New("file exceeds upload size limit")
	// ErrUnsupportedContentType is returned for non-video uploads.
	ErrUnsupportedContentType = errors.New("content type must be video/*")
	// ErrUploadMissing is returned when completing an upload whose object was never stored.
	ErrUploadMissing = errors.New("uploaded object not found")
)

// Limits are the tier constraints applied to uploads. Zero means unlimited.
type Limits struct {
	MaxVideosPerGame int
	MaxUploadBytes   int64
}

// UploadRequest describes a file the client is about to upload.
type UploadRequest struct {
	Title       string
	FileName    string
	ContentType string
	SizeBytes   int64
	CameraLane  int
	CameraLabel string
	CreatedBy   *uuid.UUID
}

// Upload is a pending video and the presigned URL to PUT its bytes to.
type Upload struct {
	Video     *Video
	UploadURL string
	ExpiresAt time.Time
}

// Service implements the film upload flow on top of a Repository and a Store.
type Service struct {
	repo      Repository
	store     Store
	uploadTTL time.Duration
	now       func() time.Time
}

// NewService creates a film Service. store may be nil when storage is not configured.
func NewService(repo Repository, store Store, uploadTTL time.Duration) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		uploadTTL: uploadTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether an object store is configured.
func (s *Service) Enabled() bool {
	return s.store != nil
}

// Ping checks the object store.
func (s *Service) Ping(ctx context.Context) error {
	if s.store == nil {
		return ErrStorageDisabled
	}
	return s.store.Ping(ctx)
}

var extByContentType = map[string]string{
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/webm":       ".webm",
	"video/x-msvideo":  ".avi",
	"video/x-matroska": ".mkv",
	"video/mpeg":       ".mpg",
}

// ObjectKey returns the storage key for a video file.
func ObjectKey(teamID, gameID, videoID uuid.UUID, ext string) string {
	return fmt.Sprintf("%sgames/%s/%s%s", TeamPrefix(teamID), gameID, videoID, ext)
}

// fileExt picks the object extension from the file name, falling back to the content type.
func fileExt(fileName, contentType string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext != "" && len(ext) <= 6 {
		return ext
	}
	return extByContentType[strings.ToLower(contentType)]
}

// BeginUpload creates a pending video and returns a presigned upload URL.
func (s *Service) BeginUpload(ctx context.Context, teamID, gameID uuid.UUID, limits Limits, req UploadRequest) (*Upload, error) {
	if s.store == nil {
		return nil, ErrStorageDisabled
	}
	if !strings.HasPrefix(strings.ToLower(req.ContentType), "video/") {
		return nil, ErrUnsupportedContentType
	}
	if limits.MaxUploadBytes > 0 && req.SizeBytes > limits.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}
	if limits.MaxVideosPerGame > 0 {
		n, err := s.repo.CountByGame(ctx, teamID, gameID)
		if err != nil {
			return nil, err
		}
		if n >= limits.MaxVideosPerGame {
			return nil, ErrVideoLimitReached
		}
	}

	v := &Video{
		ID:          uuid.New(),
		TeamID:      teamID,
		GameID:      gameID,
		Title:       req.Title,
		CameraLane:  req.CameraLane,
		CameraLabel: req.CameraLabel,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		Status:      StatusPending,
		CreatedBy:   req.CreatedBy,
	}
	v.ObjectKey = ObjectKey(teamID, gameID, v.ID, fileExt(req.FileName, req.ContentType))

	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}

	uploadURL, err := s.store.PresignPut(ctx, v.ObjectKey, s.uploadTTL)
	if err != nil {
		failed := StatusFailed
		if _, uerr := s.repo.Update(ctx, teamID, v.ID, UpdateFields{Status: &failed}); uerr != nil {
			slog.Error("film: failed to mark video failed", "video", v.ID, "error", uerr)
		}
		return nil, err
	}

	return &Upload{Video: v, UploadURL: uploadURL, ExpiresAt: s.now().Add(s.uploadTTL)}, nil
}

// Complete marks a pending video uploaded after confirming the object exists.
// Presigned uploads do not bound the body, so the stored size is checked
// against limits here; an oversized object is removed and the video fails.
func (s *Service) Complete(ctx context.Context, teamID, id uuid.UUID, limits Limits) (*Video, error) {
	if s.store == nil {
		return nil, ErrStorageDisabled
	}
	v, err := s.repo.GetByID(ctx, teamID, id)
	if err != nil {
		return nil, err
	}
	if v.Status == StatusUploaded {
		return v, nil
	}

	info, err := s.store.Stat(ctx, v.ObjectKey)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, ErrUploadMissing
		}
		return nil, err
	}

	if limits.MaxUploadBytes > 0 && info.Size > limits.MaxUploadBytes {
		slog.Warn("film: uploaded object exceeds limit", "video", id, "size", info.Size, "limit", limits.MaxUploadBytes)
		if err := s.store.Remove(ctx, v.ObjectKey); err != nil {
			slog.Error("film: failed to remove oversized object", "video", id, "error", err)
		}
		failed := StatusFailed
		if _, err := s.repo.Update(ctx, teamID, id, UpdateFields{Status: &failed, SizeBytes: &info.Size}); err != nil {
			slog.Error("film: failed to mark video failed", "video", id, "error", err)
		}
		return nil, ErrFileTooLarge
	}

	uploaded := StatusUploaded
	return s.repo.Update(ctx, teamID, id, UpdateFields{Status: &uploaded, SizeBytes: &info.Size})
}

// PlaybackURL returns a presigned GET URL for an uploaded video, or "" otherwise.
func (s *Service) PlaybackURL(ctx context.Context, v *Video) (string, error) {
	if s.store == nil || v.Status != StatusUploaded {
		return "", nil
	}
	return s.store.PresignGet(ctx, v.ObjectKey, PlaybackURLTTL)
}

// Delete removes the stored object and then the video row.
func (s *Service) Delete(ctx context.Context, teamID, id uuid.UUID) error {
	v, err := s.repo.GetByID(ctx, teamID, id)
	if err != nil {
		return err
	}
	if s.store != nil && v.ObjectKey != "" {
		if err := s.store.Remove(ctx, v.ObjectKey); err != nil {
			return err
		}
	}
	return s.repo.Delete(ctx, teamID, id)
}

// RemoveGameObjects deletes the stored objects of every video on a game. Rows
// are left for the database cascade. Failures are logged and skipped.
func (s *Service) RemoveGameObjects(ctx context.Context, teamID, gameID uuid.UUID) {
	if s.store == nil {
		return
	}
	videos, err := s.repo.ListByGame(ctx, teamID, gameID)
	if err != nil {
		slog.Error("film: failed to list videos for removal", "game", gameID, "error", err)
		return
	}
	for _, v := range videos {
		if v.ObjectKey == "" {
			continue
		}
		if err := s.store.Remove(ctx, v.ObjectKey); err != nil {
			slog.Warn("film: failed to remove object", "video", v.ID, "key", v.ObjectKey, "error", err)
		}
	}
}

// TeamPrefix is the key prefix under which all of a team's film is stored.
func TeamPrefix(teamID uuid.UUID) string {
	return fmt.Sprintf("teams/%s/", teamID)
}

// RemoveTeamObjects deletes every stored object belonging to a team.
func (s *Service) RemoveTeamObjects(ctx context.Context, teamID uuid.UUID) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	return s.store.RemovePrefix(ctx, TeamPrefix(teamID))
}

// Get returns a video.
func (s *Service) Get(ctx context.Context, teamID, id uuid.UUID) (*Video, error) {
	return s.repo.GetByID(ctx, teamID, id)
}

// ListByGame returns a game's videos.
func (s *Service) ListByGame(ctx context.Context, teamID, gameID uuid.UUID) ([]Video, error) {
	return s.repo.ListByGame(ctx, teamID, gameID)
}

// Update modifies editable video metadata.
func (s *Service) Update(ctx context.Context, teamID, id uuid.UUID, fields UpdateFields) (*Video, error) {
	fields.Status = nil
	fields.SizeBytes = nil
	return s.repo.Update(ctx, teamID, id, fields)
}

// SetOffset stores a new sync offset for a video.
func (s *Service) SetOffset(ctx context.Context, teamID, id uuid.UUID, offsetMs int64) (*Video, error) {
	return s.repo.Update(ctx, teamID, id, UpdateFields{SyncOffsetMs: &offsetMs})
}
