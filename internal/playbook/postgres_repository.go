package playbook

import (
	"context"
	"encoding/json"
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

const columns = `id, team_id, name, side, formation, play_type, personnel, tags, diagram, notes,
	created_by, created_at, updated_at`

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// diagramArg converts an empty diagram to SQL NULL.
func diagramArg(d json.RawMessage) any {
	if len(d) == 0 {
		return nil
	}
	return []byte(d)
}

func scanPlay(row pgx.Row) (*Play, error) {
	var p Play
	var diagram []byte
	err := row.Scan(
		&p.ID, &p.TeamID, &p.Name, &p.Side, &p.Formation, &p.PlayType, &p.Personnel, &p.Tags,
		&diagram, &p.Notes, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePlayName
		}
		return nil, fmt.Errorf("scanning play row: %w", err)
	}
	if diagram != nil {
		p.Diagram = json.RawMessage(diagram)
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

// Create inserts a new play.
func (r *PostgresRepository) Create(ctx context.Context, p *Play) error {
	if p.Tags == nil {
		p.Tags = []string{}
	}

	query := `
		INSERT INTO plays (team_id, name, side, formation, play_type, personnel, tags, diagram, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		p.TeamID, p.Name, p.Side, p.Formation, p.PlayType, p.Personnel, p.Tags,
		diagramArg(p.Diagram), p.Notes, p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePlayName
		}
		return fmt.Errorf("inserting play: %w", err)
	}
	return nil
}

// GetByID retrieves a play belonging to teamID.
func (r *PostgresRepository) GetByID(ctx context.Context, teamID, id uuid.UUID) (*Play, error) {
	query := fmt.Sprintf(`SELECT %s FROM plays WHERE id = $1 AND team_id = $2`, columns)
	return scanPlay(r.pool.QueryRow(ctx, query, id, teamID))
}

// List retrieves a page of a team's plays ordered by name.
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
	if filter.Side != nil {
		args = append(args, *filter.Side)
		conditions = append(conditions, fmt.Sprintf("side = $%d", len(args)))
	}
	if filter.Formation != nil {
		args = append(args, *filter.Formation)
		conditions = append(conditions, fmt.Sprintf("formation ILIKE $%d", len(args)))
	}
	if filter.Tag != nil {
		args = append(args, *filter.Tag)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM plays "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting plays: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM plays %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		columns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing plays: %w", err)
	}
	defer rows.Close()

	plays := []Play{}
	for rows.Next() {
		p, err := scanPlay(rows)
		if err != nil {
			return nil, err
		}
		plays = append(plays, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating play rows: %w", err)
	}

	return &ListResult{Plays: plays, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// Refs returns the id and name of every play on the team.
func (r *PostgresRepository) Refs(ctx context.Context, teamID uuid.UUID) ([]Ref, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM plays WHERE team_id = $1 ORDER BY name`, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing play refs: %w", err)
	}
	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Ref, error) {
		var ref Ref
		err := row.Scan(&ref.ID, &ref.Name)
		return ref, err
	})
	if err != nil {
		return nil, fmt.Errorf("collecting play refs: %w", err)
	}
	return refs, nil
}

// Update modifies non-nil fields on a play.
func (r *PostgresRepository) Update(ctx context.Context, teamID, id uuid.UUID, fields UpdateFields) (*Play, error) {
	var setClauses []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if fields.Name != nil {
		set("name", *fields.Name)
	}
	if fields.Side != nil {
		set("side", *fields.Side)
	}
	if fields.Formation != nil {
		set("formation", *fields.Formation)
	}
	if fields.PlayType != nil {
		set("play_type", *fields.PlayType)
	}
	if fields.Personnel != nil {
		set("personnel", *fields.Personnel)
	}
	if fields.Tags != nil {
		set("tags", *fields.Tags)
	}
	if fields.Diagram != nil {
		set("diagram", diagramArg(*fields.Diagram))
	}
	if fields.Notes != nil {
		set("notes", *fields.Notes)
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, teamID, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id, teamID)

	query := fmt.Sprintf(`UPDATE plays SET %s WHERE id = $%d AND team_id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), len(args)-1, len(args), columns)

	return scanPlay(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes a play. Play instances linked to it keep their data and lose the link.
func (r *PostgresRepository) Delete(ctx context.Context, teamID, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM plays WHERE id = $1 AND team_id = $2`, id, teamID)
	if err != nil {
		return fmt.Errorf("deleting play: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPlayNotFound
	}
	return nil
}
