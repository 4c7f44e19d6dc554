// Package audit records administrative and billing actions.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Actions recorded in the audit log.
const (
	ActionTeamUpdate      = "team.update"
	ActionTeamDelete      = "team.delete"
	ActionStaffCreate     = "staff.create"
	ActionStaffRemove     = "staff.remove"
	ActionChangeTier      = "subscription.change_tier"
	ActionSubscriptionSet = "subscription.set_status"
	ActionWebhook         = "subscription.webhook"
	ActionTokensGrant     = "tokens.grant"
	ActionTierCreate      = "tier.create"
	ActionTierUpdate      = "tier.update"
	ActionTierDelete      = "tier.delete"
)

// Entry represents a row in the audit_logs table.
type Entry struct {
	ID         uuid.UUID
	ActorID    *uuid.UUID
	TeamID     *uuid.UUID
	Action     string
	TargetType string
	TargetID   string
	Details    map[string]any
	CreatedAt  time.Time
}

// ListFilter holds optional filters and pagination for listing entries.
type ListFilter struct {
	TeamID *uuid.UUID
	Action *string
	Page   int
	Limit  int
}

// Recorder records audit entries. Implementations never fail the caller.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Log is the postgres-backed audit log.
type Log struct {
	pool *pgxpool.Pool
}

// NewLog creates a Log backed by the given connection pool.
func NewLog(pool *pgxpool.Pool) *Log {
	return &Log{pool: pool}
}

// Record inserts an entry. Failures are logged and swallowed.
func (l *Log) Record(ctx context.Context, e Entry) {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	details, err := json.Marshal(e.Details)
	if err != nil {
		slog.Error("audit: failed to encode details", "action", e.Action, "error", err)
		details = []byte("{}")
	}

	_, err = l.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, team_id, action, target_type, target_id, details)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ActorID, e.TeamID, e.Action, e.TargetType, e.TargetID, details,
	)
	if err != nil {
		slog.Error("audit: failed to record entry", "action", e.Action, "error", err)
	}
}

// List returns a page of entries, newest first, and the total matching count.
func (l *Log) List(ctx context.Context, filter ListFilter) ([]Entry, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 50
	}

	where := "WHERE TRUE"
	var args []any
	if filter.TeamID != nil {
		args = append(args, *filter.TeamID)
		where += fmt.Sprintf(" AND team_id = $%d", len(args))
	}
	if filter.Action != nil {
		args = append(args, *filter.Action)
		where += fmt.Sprintf(" AND action = $%d", len(args))
	}

	var total int
	if err := l.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit entries: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, actor_id, team_id, action, target_type, target_id, details, created_at
		FROM audit_logs %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var raw []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.TeamID, &e.Action, &e.TargetType, &e.TargetID, &raw, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning audit row: %w", err)
		}
		if err := json.Unmarshal(raw, &e.Details); err != nil {
			e.Details = map[string]any{}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating audit rows: %w", err)
	}

	return entries, total, nil
}

// Nop discards entries.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) {}
