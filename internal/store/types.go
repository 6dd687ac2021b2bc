// Package store provides data access for the enrichment pipeline: raw
// inbound messages plus the lead and qualified-lead record sets derived
// from them.
package store

import (
	"time"

	"github.com/google/uuid"
)

// RawMessage is one inbound chat message. processed/processing are the only
// persisted concurrency-control fields; the derived fields are written once
// at the end of a processing attempt.
type RawMessage struct {
	ID        uuid.UUID
	SenderKey string

	// Body holds plaintext. When the producer sent ciphertext instead,
	// Cipher/IV/AuthTag carry the hex-encoded AEAD triple and Body is empty
	// until processing time.
	Body    string
	Cipher  string
	IV      string
	AuthTag string

	Processed  bool
	Processing bool
	ClaimedAt  *time.Time

	AutoReplyText *string
	Priority      *string
	IsLead        *bool
	IsQualified   *bool
	Metadata      map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Encrypted reports whether the message body must be decrypted first.
func (m RawMessage) Encrypted() bool {
	return m.Cipher != ""
}

// Lead tracks conversation-level facts for one distinct sender. At most one
// Lead exists per sender key.
type Lead struct {
	ID               uuid.UUID
	SenderKey        string
	Intent           string
	MessageCount     int
	FirstMessageBody string
	CreatedAt        time.Time
	LastActive       time.Time
}

// QualifiedLead exists once a sender crosses the qualification threshold.
// Name and email fill in monotonically and are never erased.
type QualifiedLead struct {
	ID               uuid.UUID
	SenderKey        string
	Name             *string
	Email            *string
	Priority         string
	Intent           string
	MessageCount     int
	FirstMessageBody string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
