package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadchat_backend/platform/apperr"
)

// LeadRepository provides data access for leads and qualified leads.
// All merge semantics are expressed in SQL so that two messages from the
// same sender processed concurrently stay safe: known contact fields are
// never nulled out and priority only escalates.
type LeadRepository struct {
	pool *pgxpool.Pool
}

// NewLeadRepository creates a new lead repository.
func NewLeadRepository(pool *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{pool: pool}
}

// UpsertLeadParams carries one Lead create-or-merge.
type UpsertLeadParams struct {
	SenderKey        string
	Intent           string
	MessageCount     int
	FirstMessageBody string
}

// UpsertLead creates the Lead on the first-ever message from a sender, else
// updates intent, message count, and last-active. first_message_body and
// created_at never change after creation.
func (r *LeadRepository) UpsertLead(ctx context.Context, params UpsertLeadParams) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO leads (sender_key, intent, message_count, first_message_body)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sender_key) DO UPDATE SET
			intent = EXCLUDED.intent,
			message_count = GREATEST(leads.message_count, EXCLUDED.message_count),
			last_active = now()
	`, params.SenderKey, params.Intent, params.MessageCount, params.FirstMessageBody)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "upsert lead", err)
	}
	return nil
}

// GetLead retrieves a Lead by sender key. Returns nil when absent.
func (r *LeadRepository) GetLead(ctx context.Context, senderKey string) (*Lead, error) {
	var l Lead
	err := r.pool.QueryRow(ctx, `
		SELECT id, sender_key, intent, message_count, first_message_body, created_at, last_active
		FROM leads WHERE sender_key = $1
	`, senderKey).Scan(&l.ID, &l.SenderKey, &l.Intent, &l.MessageCount, &l.FirstMessageBody, &l.CreatedAt, &l.LastActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "get lead", err)
	}
	return &l, nil
}

// UpsertQualifiedParams carries one QualifiedLead create-or-merge.
type UpsertQualifiedParams struct {
	SenderKey        string
	Name             *string
	Email            *string
	Priority         string
	Intent           string
	MessageCount     int
	FirstMessageBody string
}

// UpsertQualified creates the QualifiedLead or merges into it. Existing
// name/email win over incoming values (monotonic fill) and priority keeps
// the higher rank, so a later message that extracts nothing cannot erase
// known facts.
func (r *LeadRepository) UpsertQualified(ctx context.Context, params UpsertQualifiedParams) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO qualified_leads (sender_key, name, email, priority, intent, message_count, first_message_body)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sender_key) DO UPDATE SET
			name = COALESCE(qualified_leads.name, EXCLUDED.name),
			email = COALESCE(qualified_leads.email, EXCLUDED.email),
			priority = CASE
				WHEN array_position(ARRAY['Low','Medium','High'], EXCLUDED.priority)
				   > array_position(ARRAY['Low','Medium','High'], qualified_leads.priority)
				THEN EXCLUDED.priority
				ELSE qualified_leads.priority
			END,
			intent = EXCLUDED.intent,
			message_count = GREATEST(qualified_leads.message_count, EXCLUDED.message_count),
			updated_at = now()
	`, params.SenderKey, params.Name, params.Email, params.Priority, params.Intent, params.MessageCount, params.FirstMessageBody)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "upsert qualified lead", err)
	}
	return nil
}

// GetQualified retrieves a QualifiedLead by sender key. Returns nil when
// the sender has not qualified yet.
func (r *LeadRepository) GetQualified(ctx context.Context, senderKey string) (*QualifiedLead, error) {
	var q QualifiedLead
	err := r.pool.QueryRow(ctx, `
		SELECT id, sender_key, name, email, priority, intent, message_count, first_message_body, created_at, updated_at
		FROM qualified_leads WHERE sender_key = $1
	`, senderKey).Scan(&q.ID, &q.SenderKey, &q.Name, &q.Email, &q.Priority, &q.Intent, &q.MessageCount, &q.FirstMessageBody, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "get qualified lead", err)
	}
	return &q, nil
}
