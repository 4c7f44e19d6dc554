package game

import (
	"context"
	"encoding/json"
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

const columns = `id, team_id, opponent, kickoff_at, location, is_home, game_type, team_score,
	opponent_score, notes, game_plan, created_at, updated_at`

func scanGame(row pgx.Row) (*Game, error) {
	var g Game
	var plan []byte
	err := row.Scan(
		&g.ID, &g.TeamID, &g.Opponent, &g.KickoffAt, &g.Location, &g.IsHome, &g.GameType, &g.TeamScore,
		&g.OpponentScore, &g.Notes, &plan, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("scanning game row: %w", err)
	}
	if len(plan) > 0 {
		if err := json.Unmarshal(plan, &g.Plan); err != nil {
			return nil, fmt.Errorf("decoding game plan: %w", err)
		}
	}
	normalizePlan(&g.Plan)
	return &g, nil
}

func normalizePlan(p *Plan) {
	if p.Keys == nil {
		p.Keys = []string{}
	}
	if p.OpeningScript == nil {
		p.OpeningScript = []string{}
	}
}

func encodePlan(p Plan) ([]byte, error) {
	normalizePlan(&p)
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding game plan: %w", err)
	}
	return b, nil
}

// Create inserts a new game.
func (r *PostgresRepository) Create(ctx context.Context, g *Game) error {
	if g.GameType == "" {
		g.GameType = TypeRegular
	}
	normalizePlan(&g.Plan)
	plan, err := encodePlan(g.Plan)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO games (team_id, opponent, kickoff_at, location, is_home, game_type, team_score,
			opponent_score, notes, game_plan)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err = r.pool.QueryRow(ctx, query,
		g.TeamID, g.Opponent, g.KickoffAt, g.Location, g.IsHome, g.GameType, g.TeamScore,
		g.OpponentScore, g.Notes, plan,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting game: %w", err)
	}
	return nil
}

// GetByID retrieves a game belonging to teamID.
func (r *PostgresRepository) GetByID(ctx context.Context, teamID, id uuid.UUID) (*Game, error) {
	query := fmt.Sprintf(`SELECT %s FROM games WHERE id = $1 AND team_id = $2`, columns)
	return scanGame(r.pool.QueryRow(ctx, query, id, teamID))
}

// List retrieves a page of a team's games ordered by kickoff.
func (r *PostgresRepository) List(ctx context.Context, teamID uuid.UUID, filter ListFilter) (*ListResult, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}

	where := "WHERE team_id = $1"
	args := []any{teamID}
	if filter.Season != nil {
		args = append(args, *filter.Season)
		where += fmt.Sprintf(" AND EXTRACT(YEAR FROM kickoff_at AT TIME ZONE 'UTC') = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM games "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting games: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM games %s ORDER BY kickoff_at ASC LIMIT $%d OFFSET $%d`,
		columns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	games := []Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating game rows: %w", err)
	}

	return &ListResult{Games: games, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// Update modifies non-nil fields on a game.
func (r *PostgresRepository) Update(ctx context.Context, teamID, id uuid.UUID, fields UpdateFields) (*Game, error) {
	var setClauses []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if fields.Opponent != nil {
		set("opponent", *fields.Opponent)
	}
	if fields.KickoffAt != nil {
		set("kickoff_at", *fields.KickoffAt)
	}
	if fields.Location != nil {
		set("location", *fields.Location)
	}
	if fields.IsHome != nil {
		set("is_home", *fields.IsHome)
	}
	if fields.GameType != nil {
		set("game_type", *fields.GameType)
	}
	if fields.TeamScore != nil {
		set("team_score", *fields.TeamScore)
	}
	if fields.OpponentScore != nil {
		set("opponent_score", *fields.OpponentScore)
	}
	if fields.Notes != nil {
		set("notes", *fields.Notes)
	}
	if fields.Plan != nil {
		plan, err := encodePlan(*fields.Plan)
		if err != nil {
			return nil, err
		}
		set("game_plan", plan)
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, teamID, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id, teamID)

	query := fmt.Sprintf(`UPDATE games SET %s WHERE id = $%d AND team_id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), len(args)-1, len(args), columns)

	return scanGame(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes a game. Videos and play instances cascade.
func (r *PostgresRepository) Delete(ctx context.Context, teamID, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM games WHERE id = $1 AND team_id = $2`, id, teamID)
	if err != nil {
		return fmt.Errorf("deleting game: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrGameNotFound
	}
	return nil
}
