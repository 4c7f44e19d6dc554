package player

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const columns = `id, team_id, first_name, last_name, jersey_number, positions, grade,
	height_in, weight_lb, status, notes, created_at, updated_at`

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateJersey
	}
	return nil
}

func scanPlayer(row pgx.Row) (*Player, error) {
	var p Player
	err := row.Scan(
		&p.ID, &p.TeamID, &p.FirstName, &p.LastName, &p.JerseyNumber, &p.Positions, &p.Grade,
		&p.HeightIn, &p.WeightLb, &p.Status, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		if mapped := mapWriteError(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("scanning player row: %w", err)
	}
	if p.Positions == nil {
		p.Positions = []string{}
	}
	return &p, nil
}

// Create inserts a new player record.
func (r *PostgresRepository) Create(ctx context.Context, p *Player) error {
	if p.Positions == nil {
		p.Positions = []string{}
	}
	if p.Status == "" {
		p.Status = StatusActive
	}

	query := `
		INSERT INTO players (team_id, first_name, last_name, jersey_number, positions, grade,
			height_in, weight_lb, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		p.TeamID, p.FirstName, p.LastName, p.JerseyNumber, p.Positions, p.Grade,
		p.HeightIn, p.WeightLb, p.Status, p.Notes,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if mapped := mapWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("inserting player: %w", err)
	}
	return nil
}

// GetByID retrieves a player belonging to teamID.
func (r *PostgresRepository) GetByID(ctx context.Context, teamID, id uuid.UUID) (*Player, error) {
	query := fmt.Sprintf(`SELECT %s FROM players WHERE id = $1 AND team_id = $2`, columns)
	return scanPlayer(r.pool.QueryRow(ctx, query, id, teamID))
}

// List retrieves a page of a team's players ordered by jersey number.
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

	conditions := []string{"team_id = $1"}
	args := []any{teamID}
	if filter.Position != nil {
		args = append(args, *filter.Position)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(positions)", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM players "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting players: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM players %s ORDER BY jersey_number ASC, last_name ASC LIMIT $%d OFFSET $%d`,
		columns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	players, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &ListResult{Players: players, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// ListActive returns every active player on the team ordered by jersey number.
func (r *PostgresRepository) ListActive(ctx context.Context, teamID uuid.UUID) ([]Player, error) {
	query := fmt.Sprintf(`SELECT %s FROM players WHERE team_id = $1 AND status = 'active' ORDER BY jersey_number ASC`, columns)
	return r.query(ctx, query, teamID)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]Player, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	defer rows.Close()

	players := []Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating player rows: %w", err)
	}
	return players, nil
}

// Update modifies non-nil fields on a player.
func (r *PostgresRepository) Update(ctx context.Context, teamID, id uuid.UUID, fields UpdateFields) (*Player, error) {
	var setClauses []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if fields.FirstName != nil {
		set("first_name", *fields.FirstName)
	}
	if fields.LastName != nil {
		set("last_name", *fields.LastName)
	}
	if fields.JerseyNumber != nil {
		set("jersey_number", *fields.JerseyNumber)
	}
	if fields.Positions != nil {
		set("positions", *fields.Positions)
	}
	if fields.Grade != nil {
		set("grade", *fields.Grade)
	}
	if fields.HeightIn != nil {
		set("height_in", *fields.HeightIn)
	}
	if fields.WeightLb != nil {
		set("weight_lb", *fields.WeightLb)
	}
	if fields.Status != nil {
		set("status", *fields.Status)
	}
	if fields.Notes != nil {
		set("notes", *fields.Notes)
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, teamID, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id, teamID)

	query := fmt.Sprintf(`UPDATE players SET %s WHERE id = $%d AND team_id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), len(args)-1, len(args), columns)

	return scanPlayer(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes a player from the team.
func (r *PostgresRepository) Delete(ctx context.Context, teamID, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM players WHERE id = $1 AND team_id = $2`, id, teamID)
	if err != nil {
		return fmt.Errorf("deleting player: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPlayerNotFound
	}
	return nil
}
