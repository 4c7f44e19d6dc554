package playtag

import (
	"context"
	"errors"
	"fmt"

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

const columns = `id, team_id, game_id, video_id, play_id, start_ms, end_ms, quarter, down, distance,
	yards_to_goal, hash, side, play_type, formation, personnel, direction, result, yards_gained,
	first_down, touchdown, turnover, notes, source, confidence, tagging_tier, created_by,
	created_at, updated_at`

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanInstance(row pgx.Row) (*PlayInstance, error) {
	var p PlayInstance
	err := row.Scan(
		&p.ID, &p.TeamID, &p.GameID, &p.VideoID, &p.PlayID, &p.StartMs, &p.EndMs, &p.Quarter, &p.Down, &p.Distance,
		&p.YardsToGoal, &p.Hash, &p.Side, &p.PlayType, &p.Formation, &p.Personnel, &p.Direction, &p.Result, &p.YardsGained,
		&p.FirstDown, &p.Touchdown, &p.Turnover, &p.Notes, &p.Source, &p.Confidence, &p.TaggingTier, &p.CreatedBy,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayInstanceNotFound
		}
		return nil, fmt.Errorf("scanning play instance row: %w", err)
	}
	return &p, nil
}

func insert(ctx context.Context, q queryRower, p *PlayInstance) error {
	query := `
		INSERT INTO play_instances (team_id, game_id, video_id, play_id, start_ms, end_ms, quarter, down, distance,
			yards_to_goal, hash, side, play_type, formation, personnel, direction, result, yards_gained,
			first_down, touchdown, turnover, notes, source, confidence, tagging_tier, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26)
		RETURNING id, created_at, updated_at`

	err := q.QueryRow(ctx, query,
		p.TeamID, p.GameID, p.VideoID, p.PlayID, p.StartMs, p.EndMs, p.Quarter, p.Down, p.Distance,
		p.YardsToGoal, p.Hash, p.Side, p.PlayType, p.Formation, p.Personnel, p.Direction, p.Result, p.YardsGained,
		p.FirstDown, p.Touchdown, p.Turnover, p.Notes, p.Source, p.Confidence, p.TaggingTier, p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting play instance: %w", err)
	}
	return nil
}

// Create inserts a single play instance.
func (r *PostgresRepository) Create(ctx context.Context, p *PlayInstance) error {
	return insert(ctx, r.pool, p)
}

// CreateMany inserts all instances atomically, filling their ids.
func (r *PostgresRepository) CreateMany(ctx context.Context, ps []PlayInstance) error {
	if len(ps) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for i := range ps {
			if err := insert(ctx, tx, &ps[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID retrieves a play instance belonging to teamID.
func (r *PostgresRepository) GetByID(ctx context.Context, teamID, id uuid.UUID) (*PlayInstance, error) {
	query := fmt.Sprintf(`SELECT %s FROM play_instances WHERE id = $1 AND team_id = $2`, columns)
	return scanInstance(r.pool.QueryRow(ctx, query, id, teamID))
}

// ListByGame returns a game's play instances in film order.
func (r *PostgresRepository) ListByGame(ctx context.Context, teamID, gameID uuid.UUID, filter ListFilter) ([]PlayInstance, error) {
	where := "WHERE team_id = $1 AND game_id = $2"
	args := []any{teamID, gameID}
	if filter.Side != nil {
		args = append(args, *filter.Side)
		where += fmt.Sprintf(" AND side = $%d", len(args))
	}
	if filter.Down != nil {
		args = append(args, *filter.Down)
		where += fmt.Sprintf(" AND down = $%d", len(args))
	}
	if filter.Source != nil {
		args = append(args, *filter.Source)
		where += fmt.Sprintf(" AND source = $%d", len(args))
	}

	query := fmt.Sprintf(`SELECT %s FROM play_instances %s ORDER BY start_ms ASC, created_at ASC`, columns, where)
	return r.list(ctx, query, args...)
}

// ListBySeason returns a team's play instances for games kicking off in season.
func (r *PostgresRepository) ListBySeason(ctx context.Context, teamID uuid.UUID, season int) ([]PlayInstance, error) {
	query := fmt.Sprintf(`SELECT %s FROM play_instances
		WHERE team_id = $1 AND game_id IN (
			SELECT id FROM games WHERE team_id = $1 AND EXTRACT(YEAR FROM kickoff_at AT TIME ZONE 'UTC') = $2
		)
		ORDER BY game_id, start_ms ASC, created_at ASC`, columns)
	return r.list(ctx, query, teamID, season)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]PlayInstance, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing play instances: %w", err)
	}
	defer rows.Close()

	out := []PlayInstance{}
	for rows.Next() {
		p, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating play instance rows: %w", err)
	}
	return out, nil
}

// Update overwrites the mutable columns of an existing instance.
func (r *PostgresRepository) Update(ctx context.Context, p *PlayInstance) error {
	query := fmt.Sprintf(`
		UPDATE play_instances SET
			video_id = $3, play_id = $4, start_ms = $5, end_ms = $6, quarter = $7, down = $8, distance = $9,
			yards_to_goal = $10, hash = $11, side = $12, play_type = $13, formation = $14, personnel = $15,
			direction = $16, result = $17, yards_gained = $18, first_down = $19, touchdown = $20, turnover = $21,
			notes = $22, confidence = $23, tagging_tier = $24, updated_at = NOW()
		WHERE id = $1 AND team_id = $2
		RETURNING %s`, columns)

	updated, err := scanInstance(r.pool.QueryRow(ctx, query,
		p.ID, p.TeamID, p.VideoID, p.PlayID, p.StartMs, p.EndMs, p.Quarter, p.Down, p.Distance,
		p.YardsToGoal, p.Hash, p.Side, p.PlayType, p.Formation, p.Personnel,
		p.Direction, p.Result, p.YardsGained, p.FirstDown, p.Touchdown, p.Turnover,
		p.Notes, p.Confidence, p.TaggingTier,
	))
	if err != nil {
		return err
	}
	*p = *updated
	return nil
}

// Delete removes a play instance.
func (r *PostgresRepository) Delete(ctx context.Context, teamID, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM play_instances WHERE id = $1 AND team_id = $2`, id, teamID)
	if err != nil {
		return fmt.Errorf("deleting play instance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPlayInstanceNotFound
	}
	return nil
}

// DeleteBySource removes every instance on a game with the given source.
func (r *PostgresRepository) DeleteBySource(ctx context.Context, teamID, gameID uuid.UUID, source string) (int64, error) {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM play_instances WHERE team_id = $1 AND game_id = $2 AND source = $3`,
		teamID, gameID, source)
	if err != nil {
		return 0, fmt.Errorf("deleting play instances: %w", err)
	}
	return result.RowsAffected(), nil
}
