package auth

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

// PostgresRepository implements UserRepository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new UserRepository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) UserRepository {
	return &PostgresRepository{pool: pool}
}

const userColumns = `id, email, name, password_hash, team_id, role, is_platform_admin, created_at, disabled_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash,
		&u.TeamID, &u.Role, &u.IsPlatformAdmin,
		&u.CreatedAt, &u.DisabledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user row: %w", err)
	}
	return &u, nil
}

// Create inserts a new user record. Emails are stored lowercased.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	query := `
		INSERT INTO users (email, name, password_hash, team_id, role, is_platform_admin)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		u.Email, u.Name, u.PasswordHash, u.TeamID, u.Role, u.IsPlatformAdmin,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a single user by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail retrieves a single user by email, case-insensitively.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	return scanUser(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

// ListByTeam retrieves every user of a team, including disabled ones.
func (r *PostgresRepository) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE team_id = $1 ORDER BY created_at ASC`, userColumns)

	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}

	return users, nil
}

// CountActiveByTeam returns the number of non-disabled users on a team.
func (r *PostgresRepository) CountActiveByTeam(ctx context.Context, teamID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE team_id = $1 AND disabled_at IS NULL`, teamID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting team users: %w", err)
	}
	return count, nil
}

// UpdatePassword replaces a user's password hash.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	result, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Disable sets disabled_at on an active user.
func (r *PostgresRepository) Disable(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE users SET disabled_at = NOW() WHERE id = $1 AND disabled_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("disabling user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteByTeam removes every user of a team.
func (r *PostgresRepository) DeleteByTeam(ctx context.Context, teamID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM users WHERE team_id = $1`, teamID); err != nil {
		return fmt.Errorf("deleting team users: %w", err)
	}
	return nil
}

// CountAll returns the total number of users.
func (r *PostgresRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}
