package pipeline

import (
	"context"

	"github.com/google/uuid"

	"leadchat_backend/internal/store"
)

// MessageStore is the message-side store surface the processor needs.
// *store.MessageRepository implements it; tests use an in-memory fake.
type MessageStore interface {
	// Claim atomically takes ownership of the message. ok=false means
	// another attempt owns it or it is already processed.
	Claim(ctx context.Context, id uuid.UUID) (msg store.RawMessage, ok bool, err error)
	// Release gives the claim back without marking the message processed.
	Release(ctx context.Context, id uuid.UUID) error
	// Complete marks the message processed and writes derived fields.
	Complete(ctx context.Context, id uuid.UUID, params store.CompleteParams) error
	// CountBySender counts all messages for a sender key.
	CountBySender(ctx context.Context, senderKey string) (int, error)
}

// LeadStore is the lead-side store surface. All writes are idempotent
// merges, safe to apply twice.
type LeadStore interface {
	UpsertLead(ctx context.Context, params store.UpsertLeadParams) error
	GetQualified(ctx context.Context, senderKey string) (*store.QualifiedLead, error)
	UpsertQualified(ctx context.Context, params store.UpsertQualifiedParams) error
}

// Decrypter turns an encrypted payload triple into plaintext or a definite
// terminal failure.
type Decrypter interface {
	Decrypt(cipherHex, ivHex, tagHex string) (string, error)
}
