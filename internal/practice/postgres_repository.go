package practice

import (
	"context"
	"encoding/json"
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

const columns = `id, team_id, title, practice_date, duration_min, focus, periods, source, created_by,
	created_at, updated_at`

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	var periods []byte
	err := row.Scan(
		&p.ID, &p.TeamID, &p.Title, &p.Date, &p.DurationMin, &p.Focus, &periods, &p.Source, &p.CreatedBy,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("scanning practice plan row: %w", err)
	}
	if err := json.Unmarshal(periods, &p.Periods); err != nil {
		return nil, fmt.Errorf("decoding periods: %w", err)
	}
	if p.Periods == nil {
		p.Periods = []Period{}
	}
	return &p, nil
}

func encodePeriods(periods []Period) ([]byte, error) {
	if periods == nil {
		periods = []Period{}
	}
	b, err := json.Marshal(periods)
	if err != nil {
		return nil, fmt.Errorf("encoding periods: %w", err)
	}
	return b, nil
}

// Create inserts a new plan.
func (r *PostgresRepository) Create(ctx context.Context, p *Plan) error {
	if p.Source == "" {
		p.Source = SourceManual
	}
	periods, err := encodePeriods(p.Periods)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO practice_plans (team_id, title, practice_date, duration_min, focus, periods, source, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err = r.pool.QueryRow(ctx, query,
		p.TeamID, p.Title, p.Date, p.DurationMin, p.Focus, periods, p.Source, p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting practice plan: %w", err)
	}
	return nil
}

// GetByID retrieves a plan belonging to teamID.
func (r *PostgresRepository) GetByID(ctx context.Context, teamID, id uuid.UUID) (*Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM practice_plans WHERE id = $1 AND team_id = $2`, columns)
	return scanPlan(r.pool.QueryRow(ctx, query, id, teamID))
}

// List retrieves a page of plans ordered by practice date, newest first.
func (r *PostgresRepository) List(ctx context.Context, teamID uuid.UUID, filter ListFilter) (*ListResult, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	where := "WHERE team_id = $1"
	args := []any{teamID}
	if filter.From != nil {
		args = append(args, *filter.From)
		where += fmt.Sprintf(" AND practice_date >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where += fmt.Sprintf(" AND practice_date <= $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM practice_plans "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting practice plans: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM practice_plans %s ORDER BY practice_date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		columns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing practice plans: %w", err)
	}
	defer rows.Close()

	plans := []Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating practice plan rows: %w", err)
	}

	return &ListResult{Plans: plans, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// Update applies non-nil fields inside a transaction, re-checking that the
// periods still fit the duration after the merge.
func (r *PostgresRepository) Update(ctx context.Context, teamID, id uuid.UUID, fields UpdateFields) (*Plan, error) {
	var updated *Plan
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := fmt.Sprintf(`SELECT %s FROM practice_plans WHERE id = $1 AND team_id = $2 FOR UPDATE`, columns)
		current, err := scanPlan(tx.QueryRow(ctx, query, id, teamID))
		if err != nil {
			return err
		}

		ApplyUpdate(current, fields)
		if err := Check(current); err != nil {
			return err
		}

		periods, err := encodePeriods(current.Periods)
		if err != nil {
			return err
		}
		query = fmt.Sprintf(`
			UPDATE practice_plans
			SET title = $3, practice_date = $4, duration_min = $5, focus = $6, periods = $7, updated_at = NOW()
			WHERE id = $1 AND team_id = $2
			RETURNING %s`, columns)
		updated, err = scanPlan(tx.QueryRow(ctx, query,
			id, teamID, current.Title, current.Date, current.DurationMin, current.Focus, periods))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a plan.
func (r *PostgresRepository) Delete(ctx context.Context, teamID, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM practice_plans WHERE id = $1 AND team_id = $2`, id, teamID)
	if err != nil {
		return fmt.Errorf("deleting practice plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}
