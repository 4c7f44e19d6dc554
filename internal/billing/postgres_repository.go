package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

const subscriptionColumns = `s.team_id, s.tier_id, t.name, s.status, s.trial_ends_at, s.current_period_end,
	s.stripe_customer_id, s.stripe_subscription_id, s.canceled_at, s.created_at, s.updated_at`

const subscriptionFrom = `FROM subscriptions s JOIN tiers t ON t.id = s.tier_id`

const balanceColumns = `team_id, balance, period_allotment, resets_at, updated_at`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var s Subscription
	err := row.Scan(
		&s.TeamID, &s.TierID, &s.TierName, &s.Status, &s.TrialEndsAt, &s.CurrentPeriodEnd,
		&s.StripeCustomerID, &s.StripeSubscriptionID, &s.CanceledAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("scanning subscription row: %w", err)
	}
	return &s, nil
}

func scanBalance(row pgx.Row) (*TokenBalance, error) {
	var b TokenBalance
	err := row.Scan(&b.TeamID, &b.Balance, &b.PeriodAllotment, &b.ResetsAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("scanning token balance row: %w", err)
	}
	return &b, nil
}

func insertLedger(ctx context.Context, tx pgx.Tx, teamID uuid.UUID, delta int, entry LedgerEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO token_transactions (team_id, delta, reason, feature, actor_id)
		VALUES ($1, $2, $3, $4, $5)`,
		teamID, delta, entry.Reason, entry.Feature, entry.ActorID,
	)
	if err != nil {
		return fmt.Errorf("inserting token transaction: %w", err)
	}
	return nil
}

// CreateSubscription inserts a subscription, its opening balance and the opening ledger row in one transaction.
func (r *PostgresRepository) CreateSubscription(ctx context.Context, sub *Subscription, balance *TokenBalance, entry LedgerEntry) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO subscriptions (team_id, tier_id, status, trial_ends_at, current_period_end)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at, updated_at`,
			sub.TeamID, sub.TierID, sub.Status, sub.TrialEndsAt, sub.CurrentPeriodEnd,
		).Scan(&sub.CreatedAt, &sub.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrSubscriptionExists
			}
			return fmt.Errorf("inserting subscription: %w", err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO token_balances (team_id, balance, period_allotment, resets_at)
			VALUES ($1, $2, $3, $4)
			RETURNING updated_at`,
			balance.TeamID, balance.Balance, balance.PeriodAllotment, balance.ResetsAt,
		).Scan(&balance.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting token balance: %w", err)
		}

		if balance.Balance != 0 {
			return insertLedger(ctx, tx, balance.TeamID, balance.Balance, entry)
		}
		return nil
	})
}

// GetSubscription retrieves a team's subscription.
func (r *PostgresRepository) GetSubscription(ctx context.Context, teamID uuid.UUID) (*Subscription, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.team_id = $1`, subscriptionColumns, subscriptionFrom)
	return scanSubscription(r.pool.QueryRow(ctx, query, teamID))
}

// GetByStripeSubscriptionID retrieves the subscription linked to a payment-processor subscription.
func (r *PostgresRepository) GetByStripeSubscriptionID(ctx context.Context, stripeID string) (*Subscription, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.stripe_subscription_id = $1`, subscriptionColumns, subscriptionFrom)
	return scanSubscription(r.pool.QueryRow(ctx, query, stripeID))
}

// UpdateSubscription modifies non-nil fields of a team's subscription.
func (r *PostgresRepository) UpdateSubscription(ctx context.Context, teamID uuid.UUID, fields SubscriptionUpdate) (*Subscription, error) {
	var setClauses []string
	var args []any

	set := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if fields.TierID != nil {
		set("tier_id", *fields.TierID)
	}
	if fields.Status != nil {
		set("status", *fields.Status)
	}
	if fields.TrialEndsAt != nil {
		set("trial_ends_at", *fields.TrialEndsAt)
	}
	if fields.CurrentPeriodEnd != nil {
		set("current_period_end", *fields.CurrentPeriodEnd)
	}
	if fields.StripeCustomerID != nil {
		set("stripe_customer_id", *fields.StripeCustomerID)
	}
	if fields.StripeSubscriptionID != nil {
		set("stripe_subscription_id", *fields.StripeSubscriptionID)
	}
	if fields.CanceledAt != nil {
		set("canceled_at", *fields.CanceledAt)
	}

	if len(setClauses) == 0 {
		return r.GetSubscription(ctx, teamID)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, teamID)

	result, err := r.pool.Exec(ctx, fmt.Sprintf(`UPDATE subscriptions SET %s WHERE team_id = $%d`,
		strings.Join(setClauses, ", "), len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("updating subscription: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrSubscriptionNotFound
	}

	return r.GetSubscription(ctx, teamID)
}

// ListExpiredTrials returns trialing subscriptions whose trial ended before now.
func (r *PostgresRepository) ListExpiredTrials(ctx context.Context, now time.Time) ([]Subscription, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.status = $1 AND s.trial_ends_at < $2 ORDER BY s.trial_ends_at ASC LIMIT 500`,
		subscriptionColumns, subscriptionFrom)
	return r.listSubscriptions(ctx, query, StatusTrialing, now)
}

// StatusByTeam returns the subscriptions of the given teams keyed by team id.
func (r *PostgresRepository) StatusByTeam(ctx context.Context, teamIDs []uuid.UUID) (map[uuid.UUID]Subscription, error) {
	out := make(map[uuid.UUID]Subscription, len(teamIDs))
	if len(teamIDs) == 0 {
		return out, nil
	}
	ids := make([]string, len(teamIDs))
	for i, id := range teamIDs {
		ids[i] = id.String()
	}
	query := fmt.Sprintf(`SELECT %s %s WHERE s.team_id = ANY($1::uuid[])`, subscriptionColumns, subscriptionFrom)
	subs, err := r.listSubscriptions(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	for _, s := range subs {
		out[s.TeamID] = s
	}
	return out, nil
}

func (r *PostgresRepository) listSubscriptions(ctx context.Context, query string, args ...any) ([]Subscription, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscription rows: %w", err)
	}
	return subs, nil
}

// CountByStatus returns the number of subscriptions per status.
func (r *PostgresRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM subscriptions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting subscriptions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning subscription count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscription counts: %w", err)
	}
	return counts, nil
}

// GetBalance retrieves a team's token balance.
func (r *PostgresRepository) GetBalance(ctx context.Context, teamID uuid.UUID) (*TokenBalance, error) {
	query := fmt.Sprintf(`SELECT %s FROM token_balances WHERE team_id = $1`, balanceColumns)
	return scanBalance(r.pool.QueryRow(ctx, query, teamID))
}

// Debit atomically subtracts amount when the balance covers it and records the ledger row.
// Concurrent debits serialize on the row lock taken by the conditional UPDATE.
func (r *PostgresRepository) Debit(ctx context.Context, teamID uuid.UUID, amount int, entry LedgerEntry) (*TokenBalance, error) {
	var out *TokenBalance
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		b, err := scanBalance(tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE token_balances
			SET balance = balance - $2, updated_at = NOW()
			WHERE team_id = $1 AND balance >= $2
			RETURNING %s`, balanceColumns), teamID, amount))
		if errors.Is(err, ErrSubscriptionNotFound) {
			var exists bool
			if qErr := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM token_balances WHERE team_id = $1)`, teamID).Scan(&exists); qErr != nil {
				return fmt.Errorf("checking token balance: %w", qErr)
			}
			if exists {
				return ErrInsufficientTokens
			}
			return ErrSubscriptionNotFound
		}
		if err != nil {
			return err
		}
		out = b
		return insertLedger(ctx, tx, teamID, -amount, entry)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Credit adds amount to the balance and records the ledger row.
func (r *PostgresRepository) Credit(ctx context.Context, teamID uuid.UUID, amount int, entry LedgerEntry) (*TokenBalance, error) {
	var out *TokenBalance
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		b, err := scanBalance(tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE token_balances
			SET balance = balance + $2, updated_at = NOW()
			WHERE team_id = $1
			RETURNING %s`, balanceColumns), teamID, amount))
		if err != nil {
			return err
		}
		out = b
		return insertLedger(ctx, tx, teamID, amount, entry)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyTier updates the subscription tier and the balance allotment together.
// The balance row is locked first so concurrent debits see the credit.
func (r *PostgresRepository) ApplyTier(ctx context.Context, teamID, tierID uuid.UUID, allotment int, entry LedgerEntry) (*Subscription, int, error) {
	var sub *Subscription
	credited := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var current int
		if err := tx.QueryRow(ctx, `SELECT period_allotment FROM token_balances WHERE team_id = $1 FOR UPDATE`, teamID).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrSubscriptionNotFound
			}
			return fmt.Errorf("locking token balance: %w", err)
		}

		result, err := tx.Exec(ctx, `UPDATE subscriptions SET tier_id = $2, updated_at = NOW() WHERE team_id = $1`, teamID, tierID)
		if err != nil {
			return fmt.Errorf("updating subscription tier: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrSubscriptionNotFound
		}

		credited = max(allotment-current, 0)
		if _, err := tx.Exec(ctx, `
			UPDATE token_balances
			SET period_allotment = $2, balance = balance + $3, updated_at = NOW()
			WHERE team_id = $1`, teamID, allotment, credited); err != nil {
			return fmt.Errorf("updating token allotment: %w", err)
		}
		if credited > 0 {
			if err := insertLedger(ctx, tx, teamID, credited, entry); err != nil {
				return err
			}
		}

		query := fmt.Sprintf(`SELECT %s %s WHERE s.team_id = $1`, subscriptionColumns, subscriptionFrom)
		sub, err = scanSubscription(tx.QueryRow(ctx, query, teamID))
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return sub, credited, nil
}

// ResetPeriod refills the balance to allotment, moves the reset time and records the difference.
func (r *PostgresRepository) ResetPeriod(ctx context.Context, teamID uuid.UUID, allotment int, resetsAt time.Time) (*TokenBalance, error) {
	var out *TokenBalance
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var before int
		if err := tx.QueryRow(ctx, `SELECT balance FROM token_balances WHERE team_id = $1 FOR UPDATE`, teamID).Scan(&before); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrSubscriptionNotFound
			}
			return fmt.Errorf("locking token balance: %w", err)
		}

		b, err := scanBalance(tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE token_balances
			SET balance = $2, period_allotment = $2, resets_at = $3, updated_at = NOW()
			WHERE team_id = $1
			RETURNING %s`, balanceColumns), teamID, allotment, resetsAt))
		if err != nil {
			return err
		}
		out = b

		if delta := allotment - before; delta != 0 {
			return insertLedger(ctx, tx, teamID, delta, LedgerEntry{Reason: ReasonReset})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListDueResets returns balances whose period ended before now.
func (r *PostgresRepository) ListDueResets(ctx context.Context, now time.Time) ([]TokenBalance, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM token_balances WHERE resets_at <= $1 ORDER BY resets_at ASC LIMIT 500`, balanceColumns), now)
	if err != nil {
		return nil, fmt.Errorf("listing due resets: %w", err)
	}
	defer rows.Close()

	balances := []TokenBalance{}
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating token balances: %w", err)
	}
	return balances, nil
}

// ListTransactions returns a page of a team's ledger, newest first, and the total count.
func (r *PostgresRepository) ListTransactions(ctx context.Context, teamID uuid.UUID, page, limit int) ([]TokenTransaction, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM token_transactions WHERE team_id = $1`, teamID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting token transactions: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, team_id, delta, reason, feature, actor_id, created_at
		FROM token_transactions
		WHERE team_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, teamID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("listing token transactions: %w", err)
	}
	defer rows.Close()

	txs := []TokenTransaction{}
	for rows.Next() {
		var t TokenTransaction
		if err := rows.Scan(&t.ID, &t.TeamID, &t.Delta, &t.Reason, &t.Feature, &t.ActorID, &t.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning token transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating token transactions: %w", err)
	}
	return txs, total, nil
}
