package comms

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

const contactColumns = `id, team_id, player_id, name, email, phone, relationship, opted_out, created_at, updated_at`

const messageColumns = `id, team_id, subject, body, audience, player_ids, recipient_count, sent_by, sent_at`

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrUnknownPlayer
	}
	return nil
}

func scanContact(row pgx.Row) (*Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.TeamID, &c.PlayerID, &c.Name, &c.Email, &c.Phone,
		&c.Relationship, &c.OptedOut, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		if mapped := mapWriteError(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("scanning contact row: %w", err)
	}
	return &c, nil
}

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.TeamID, &m.Subject, &m.Body, &m.Audience, &m.PlayerIDs,
		&m.RecipientCount, &m.SentBy, &m.SentAt)
	if err != nil {
		return nil, fmt.Errorf("scanning message row: %w", err)
	}
	if m.PlayerIDs == nil {
		m.PlayerIDs = []uuid.UUID{}
	}
	return &m, nil
}

// CreateContact inserts a new contact.
func (r *PostgresRepository) CreateContact(ctx context.Context, c *Contact) error {
	if c.Relationship == "" {
		c.Relationship = RelationshipParent
	}
	query := `
		INSERT INTO contacts (team_id, player_id, name, email, phone, relationship, opted_out)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		c.TeamID, c.PlayerID, c.Name, c.Email, c.Phone, c.Relationship, c.OptedOut,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if mapped := mapWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("inserting contact: %w", err)
	}
	return nil
}

// GetContact retrieves a contact belonging to teamID.
func (r *PostgresRepository) GetContact(ctx context.Context, teamID, id uuid.UUID) (*Contact, error) {
	query := fmt.Sprintf(`SELECT %s FROM contacts WHERE id = $1 AND team_id = $2`, contactColumns)
	return scanContact(r.pool.QueryRow(ctx, query, id, teamID))
}

// ListContacts returns the team's contacts ordered by name.
func (r *PostgresRepository) ListContacts(ctx context.Context, teamID uuid.UUID) ([]Contact, error) {
	query := fmt.Sprintf(`SELECT %s FROM contacts WHERE team_id = $1 ORDER BY name ASC, email ASC`, contactColumns)
	return r.queryContacts(ctx, query, teamID)
}

// Recipients returns contacts eligible to receive a message.
func (r *PostgresRepository) Recipients(ctx context.Context, teamID uuid.UUID, playerIDs []uuid.UUID) ([]Contact, error) {
	if playerIDs == nil {
		query := fmt.Sprintf(`SELECT %s FROM contacts WHERE team_id = $1 AND NOT opted_out ORDER BY created_at ASC`, contactColumns)
		return r.queryContacts(ctx, query, teamID)
	}
	query := fmt.Sprintf(`SELECT %s FROM contacts
		WHERE team_id = $1 AND NOT opted_out AND player_id = ANY($2)
		ORDER BY created_at ASC`, contactColumns)
	return r.queryContacts(ctx, query, teamID, playerIDs)
}

func (r *PostgresRepository) queryContacts(ctx context.Context, query string, args ...any) ([]Contact, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}
	defer rows.Close()

	contacts := []Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contact rows: %w", err)
	}
	return contacts, nil
}

// UpdateContact modifies non-nil fields on a contact.
func (r *PostgresRepository) UpdateContact(ctx context.Context, teamID, id uuid.UUID, fields ContactUpdate) (*Contact, error) {
	var setClauses []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	switch {
	case fields.ClearPlayer:
		set("player_id", nil)
	case fields.PlayerID != nil:
		set("player_id", *fields.PlayerID)
	}
	if fields.Name != nil {
		set("name", *fields.Name)
	}
	if fields.Email != nil {
		set("email", *fields.Email)
	}
	if fields.Phone != nil {
		set("phone", *fields.Phone)
	}
	if fields.Relationship != nil {
		set("relationship", *fields.Relationship)
	}
	if fields.OptedOut != nil {
		set("opted_out", *fields.OptedOut)
	}

	if len(setClauses) == 0 {
		return r.GetContact(ctx, teamID, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id, teamID)
	query := fmt.Sprintf(`UPDATE contacts SET %s WHERE id = $%d AND team_id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), len(args)-1, len(args), contactColumns)
	return scanContact(r.pool.QueryRow(ctx, query, args...))
}

// DeleteContact removes a contact.
func (r *PostgresRepository) DeleteContact(ctx context.Context, teamID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1 AND team_id = $2`, id, teamID)
	if err != nil {
		return fmt.Errorf("deleting contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	return nil
}

// CreateMessage stores a sent message.
func (r *PostgresRepository) CreateMessage(ctx context.Context, m *Message) error {
	if m.PlayerIDs == nil {
		m.PlayerIDs = []uuid.UUID{}
	}
	query := `
		INSERT INTO messages (team_id, subject, body, audience, player_ids, recipient_count, sent_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, sent_at`

	err := r.pool.QueryRow(ctx, query,
		m.TeamID, m.Subject, m.Body, m.Audience, m.PlayerIDs, m.RecipientCount, m.SentBy,
	).Scan(&m.ID, &m.SentAt)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// ListMessages retrieves a page of the team's sent messages, newest first.
func (r *PostgresRepository) ListMessages(ctx context.Context, teamID uuid.UUID, filter ListFilter) (*MessageList, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE team_id = $1`, teamID).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting messages: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM messages WHERE team_id = $1 ORDER BY sent_at DESC LIMIT $2 OFFSET $3`, messageColumns)
	rows, err := r.pool.Query(ctx, query, teamID, filter.Limit, (filter.Page-1)*filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return &MessageList{Messages: messages, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}
