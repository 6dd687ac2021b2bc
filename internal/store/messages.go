package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadchat_backend/platform/apperr"
)

const messageColumns = `
	id, sender_key, body, cipher, iv, auth_tag,
	processed, processing, claimed_at,
	auto_reply_text, priority, is_lead, is_qualified, metadata,
	created_at, updated_at`

// MessageRepository provides data access for raw inbound messages.
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// InsertMessageParams describes a new inbound message.
type InsertMessageParams struct {
	SenderKey string
	Body      string
	Cipher    string
	IV        string
	AuthTag   string
}

// Insert stores a new unprocessed message and returns its id.
func (r *MessageRepository) Insert(ctx context.Context, params InsertMessageParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messages (sender_key, body, cipher, iv, auth_tag)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, params.SenderKey, params.Body, params.Cipher, params.IV, params.AuthTag).Scan(&id)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindInternal, "insert message", err)
	}
	return id, nil
}

// GetByID retrieves one message.
func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (RawMessage, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return RawMessage{}, apperr.NotFound("message not found")
	}
	if err != nil {
		return RawMessage{}, apperr.Wrap(apperr.KindInternal, "get message", err)
	}
	return msg, nil
}

// Claim atomically marks the message as being worked on. It is the single
// mutual-exclusion point of the pipeline: the conditional update succeeds
// for at most one concurrent caller. Returns false when another attempt
// already owns the message or it is already processed.
func (r *MessageRepository) Claim(ctx context.Context, id uuid.UUID) (RawMessage, bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE messages
		SET processing = true, claimed_at = now(), updated_at = now()
		WHERE id = $1 AND NOT processing AND NOT processed
		RETURNING `+messageColumns, id)

	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return RawMessage{}, false, nil
	}
	if err != nil {
		return RawMessage{}, false, apperr.Wrap(apperr.KindInternal, "claim message", err)
	}
	return msg, true, nil
}

// Release gives the claim back without marking the message processed, so a
// later dispatch cycle can retry it.
func (r *MessageRepository) Release(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET processing = false, claimed_at = NULL, updated_at = now()
		WHERE id = $1 AND NOT processed
	`, id)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "release message", err)
	}
	return nil
}

// CompleteParams carries the derived fields written once at the end of a
// successful or terminally-failed attempt.
type CompleteParams struct {
	AutoReplyText *string
	IsLead        bool
	IsQualified   bool
	Priority      *string
	Metadata      map[string]any
}

// Complete marks the message processed and writes the derived fields.
func (r *MessageRepository) Complete(ctx context.Context, id uuid.UUID, params CompleteParams) error {
	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET processed = true, processing = false, claimed_at = NULL,
		    auto_reply_text = $2, is_lead = $3, is_qualified = $4,
		    priority = $5, metadata = $6, updated_at = now()
		WHERE id = $1
	`, id, params.AutoReplyText, params.IsLead, params.IsQualified, params.Priority, metadata)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "complete message", err)
	}
	return nil
}

// CountBySender returns how many messages exist for a sender key, including
// the one currently being processed.
func (r *MessageRepository) CountBySender(ctx context.Context, senderKey string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM messages WHERE sender_key = $1`, senderKey).Scan(&count)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "count sender messages", err)
	}
	return count, nil
}

// ListUnprocessedIDs returns ids of messages eligible for processing,
// oldest first.
func (r *MessageRepository) ListUnprocessedIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM messages
		WHERE NOT processed AND NOT processing
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list unprocessed messages", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan message id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list unprocessed messages", err)
	}
	return ids, nil
}

// ReclaimStale releases claims older than the cutoff. A crash between claim
// and release leaves processing=true behind; this is the way back to
// eligibility.
func (r *MessageRepository) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET processing = false, claimed_at = NULL, updated_at = now()
		WHERE processing AND NOT processed
		  AND claimed_at < now() - make_interval(secs => $1)
	`, olderThan.Seconds())
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "reclaim stale messages", err)
	}
	return tag.RowsAffected(), nil
}

func scanMessage(row pgx.Row) (RawMessage, error) {
	var m RawMessage
	err := row.Scan(
		&m.ID, &m.SenderKey, &m.Body, &m.Cipher, &m.IV, &m.AuthTag,
		&m.Processed, &m.Processing, &m.ClaimedAt,
		&m.AutoReplyText, &m.Priority, &m.IsLead, &m.IsQualified, &m.Metadata,
		&m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}
