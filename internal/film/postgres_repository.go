package film

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

const columns = `id, team_id, game_id, title, camera_lane, camera_label, object_key, content_type,
	size_bytes, duration_ms, sync_offset_ms, status, created_by, created_at, updated_at`

func scanVideo(row pgx.Row) (*Video, error) {
	var v Video
	err := row.Scan(
		&v.ID, &v.TeamID, &v.GameID, &v.Title, &v.CameraLane, &v.CameraLabel, &v.ObjectKey, &v.ContentType,
		&v.SizeBytes, &v.DurationMs, &v.SyncOffsetMs, &v.Status, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("scanning video row: %w", err)
	}
	return &v, nil
}

// Create inserts a video. The caller assigns ID so the object key can embed it.
func (r *PostgresRepository) Create(ctx context.Context, v *Video) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Status == "" {
		v.Status = StatusPending
	}

	query := `
		INSERT INTO videos (id, team_id, game_id, title, camera_lane, camera_label, object_key, content_type,
			size_bytes, duration_ms, sync_offset_ms, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		v.ID, v.TeamID, v.GameID, v.Title, v.CameraLane, v.CameraLabel, v.ObjectKey, v.ContentType,
		v.SizeBytes, v.DurationMs, v.SyncOffsetMs, v.Status, v.CreatedBy,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting video: %w", err)
	}
	return nil
}

// GetByID retrieves a video belonging to teamID.
func (r *PostgresRepository) GetByID(ctx context.Context, teamID, id uuid.UUID) (*Video, error) {
	query := fmt.Sprintf(`SELECT %s FROM videos WHERE id = $1 AND team_id = $2`, columns)
	return scanVideo(r.pool.QueryRow(ctx, query, id, teamID))
}

// ListByGame returns a game's videos ordered by lane then creation.
func (r *PostgresRepository) ListByGame(ctx context.Context, teamID, gameID uuid.UUID) ([]Video, error) {
	query := fmt.Sprintf(`SELECT %s FROM videos WHERE team_id = $1 AND game_id = $2
		ORDER BY camera_lane ASC, created_at ASC`, columns)

	rows, err := r.pool.Query(ctx, query, teamID, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	defer rows.Close()

	videos := []Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating video rows: %w", err)
	}
	return videos, nil
}

// CountByGame returns how many videos a game has, regardless of status.
func (r *PostgresRepository) CountByGame(ctx context.Context, teamID, gameID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM videos WHERE team_id = $1 AND game_id = $2`,
		teamID, gameID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting videos: %w", err)
	}
	return n, nil
}

// Update modifies non-nil fields on a video.
func (r *PostgresRepository) Update(ctx context.Context, teamID, id uuid.UUID, fields UpdateFields) (*Video, error) {
	var setClauses []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if fields.Title != nil {
		set("title", *fields.Title)
	}
	if fields.CameraLane != nil {
		set("camera_lane", *fields.CameraLane)
	}
	if fields.CameraLabel != nil {
		set("camera_label", *fields.CameraLabel)
	}
	if fields.DurationMs != nil {
		set("duration_ms", *fields.DurationMs)
	}
	if fields.SyncOffsetMs != nil {
		set("sync_offset_ms", *fields.SyncOffsetMs)
	}
	if fields.Status != nil {
		set("status", *fields.Status)
	}
	if fields.SizeBytes != nil {
		set("size_bytes", *fields.SizeBytes)
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, teamID, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id, teamID)

	query := fmt.Sprintf(`UPDATE videos SET %s WHERE id = $%d AND team_id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), len(args)-1, len(args), columns)

	return scanVideo(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes a video row.
func (r *PostgresRepository) Delete(ctx context.Context, teamID, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1 AND team_id = $2`, id, teamID)
	if err != nil {
		return fmt.Errorf("deleting video: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrVideoNotFound
	}
	return nil
}
