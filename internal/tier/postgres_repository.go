package tier

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

// NewPostgresRepository creates a new Repository backed by the given connection pool.
func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// allColumns is the ordered list of columns scanned from the tiers table.
const allColumns = `id, name, display_name, price_cents, monthly_tokens, max_staff,
	max_videos_per_game, max_upload_bytes, stripe_price_id, ai_tagging, active,
	created_at, updated_at`

// scanTier scans a single Tier from a row.
func scanTier(row pgx.Row) (*Tier, error) {
	var t Tier
	err := row.Scan(
		&t.ID, &t.Name, &t.DisplayName, &t.PriceCents, &t.MonthlyTokens, &t.MaxStaff,
		&t.MaxVideosPerGame, &t.MaxUploadBytes, &t.StripePriceID, &t.AITagging, &t.Active,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTierNotFound
		}
		return nil, fmt.Errorf("scanning tier row: %w", err)
	}
	return &t, nil
}

// Create inserts a new tier record.
func (r *PostgresRepository) Create(ctx context.Context, t *Tier) error {
	query := fmt.Sprintf(`
		INSERT INTO tiers (name, display_name, price_cents, monthly_tokens, max_staff,
		                   max_videos_per_game, max_upload_bytes, stripe_price_id, ai_tagging, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING %s`, allColumns)

	created, err := scanTier(r.pool.QueryRow(ctx, query,
		t.Name, t.DisplayName, t.PriceCents, t.MonthlyTokens, t.MaxStaff,
		t.MaxVideosPerGame, t.MaxUploadBytes, t.StripePriceID, t.AITagging, t.Active,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateTierName
		}
		return fmt.Errorf("inserting tier: %w", err)
	}

	*t = *created
	return nil
}

// GetByID retrieves a single tier by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Tier, error) {
	query := fmt.Sprintf(`SELECT %s FROM tiers WHERE id = $1`, allColumns)
	return scanTier(r.pool.QueryRow(ctx, query, id))
}

// GetByName retrieves a single tier by its name.
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*Tier, error) {
	query := fmt.Sprintf(`SELECT %s FROM tiers WHERE name = $1`, allColumns)
	return scanTier(r.pool.QueryRow(ctx, query, name))
}

// GetByStripePriceID retrieves the tier sold under a payment-processor price.
func (r *PostgresRepository) GetByStripePriceID(ctx context.Context, priceID string) (*Tier, error) {
	if priceID == "" {
		return nil, ErrTierNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM tiers WHERE stripe_price_id = $1`, allColumns)
	return scanTier(r.pool.QueryRow(ctx, query, priceID))
}

// List retrieves tiers ordered by price.
func (r *PostgresRepository) List(ctx context.Context, activeOnly bool) ([]Tier, error) {
	where := ""
	if activeOnly {
		where = "WHERE active"
	}
	query := fmt.Sprintf(`SELECT %s FROM tiers %s ORDER BY price_cents ASC, name ASC`, allColumns, where)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing tiers: %w", err)
	}
	defer rows.Close()

	tiers := []Tier{}
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tier rows: %w", err)
	}

	return tiers, nil
}

// Update modifies non-nil fields on a tier. Returns the updated tier.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*Tier, error) {
	var setClauses []string
	var args []any

	set := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if fields.DisplayName != nil {
		set("display_name", *fields.DisplayName)
	}
	if fields.PriceCents != nil {
		set("price_cents", *fields.PriceCents)
	}
	if fields.MonthlyTokens != nil {
		set("monthly_tokens", *fields.MonthlyTokens)
	}
	if fields.MaxStaff != nil {
		set("max_staff", *fields.MaxStaff)
	}
	if fields.MaxVideosPerGame != nil {
		set("max_videos_per_game", *fields.MaxVideosPerGame)
	}
	if fields.MaxUploadBytes != nil {
		set("max_upload_bytes", *fields.MaxUploadBytes)
	}
	if fields.StripePriceID != nil {
		set("stripe_price_id", *fields.StripePriceID)
	}
	if fields.AITagging != nil {
		set("ai_tagging", *fields.AITagging)
	}
	if fields.Active != nil {
		set("active", *fields.Active)
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE tiers SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), len(args), allColumns)

	return scanTier(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes a tier by its UUID. Returns ErrTierHasSubscriptions if any
// team is still subscribed to it.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions WHERE tier_id = $1`, id).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking subscriptions for tier: %w", err)
	}
	if count > 0 {
		return ErrTierHasSubscriptions
	}

	result, err := r.pool.Exec(ctx, `DELETE FROM tiers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting tier: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrTierNotFound
	}

	return nil
}
