package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leadchat_backend/internal/store"
	"leadchat_backend/platform/apperr"
	"leadchat_backend/platform/events"
	"leadchat_backend/platform/logger"
)

// Processor drives one raw message through the enrichment state machine.
// The claim flag in the message store is the single mutual-exclusion point;
// everything after it either reaches a terminal persisted state or releases
// the claim so a later dispatch cycle retries.
type Processor struct {
	messages   MessageStore
	leads      LeadStore
	codec      Decrypter
	classifier *Classifier
	qualifier  *Qualifier
	extractor  *Extractor
	replier    *Replier
	bus        events.Bus
	log        *logger.Logger
}

// Deps wires a Processor.
type Deps struct {
	Messages   MessageStore
	Leads      LeadStore
	Codec      Decrypter
	Classifier *Classifier
	Qualifier  *Qualifier
	Extractor  *Extractor
	Replier    *Replier
	Bus        events.Bus
	Log        *logger.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(deps Deps) *Processor {
	return &Processor{
		messages:   deps.Messages,
		leads:      deps.Leads,
		codec:      deps.Codec,
		classifier: deps.Classifier,
		qualifier:  deps.Qualifier,
		extractor:  deps.Extractor,
		replier:    deps.Replier,
		bus:        deps.Bus,
		log:        deps.Log,
	}
}

// Process runs one full processing attempt for the message. A failed claim
// is not an error: another attempt owns the message. Any error after the
// claim releases it without marking the message processed.
func (p *Processor) Process(ctx context.Context, id uuid.UUID) (err error) {
	msg, claimed, err := p.messages.Claim(ctx, id)
	if err != nil {
		return err
	}
	if !claimed {
		p.log.ClaimRejected(id.String())
		return nil
	}

	ctx = context.WithValue(ctx, logger.MessageIDKey, msg.ID.String())
	ctx = context.WithValue(ctx, logger.SenderKeyKey, msg.SenderKey)

	defer func() {
		if r := recover(); r != nil {
			err = apperr.Internal(fmt.Sprintf("processing panic: %v", r))
		}
		if err != nil {
			p.log.WithContext(ctx).Error("processing failed, releasing claim",
				"error", err.Error())
			// The release must survive a cancelled attempt context.
			if relErr := p.messages.Release(context.WithoutCancel(ctx), id); relErr != nil {
				p.log.DatabaseError("release claim", relErr)
			}
		}
	}()

	started := time.Now()
	p.log.MessageEvent("claimed", msg.ID.String(), msg.SenderKey)

	body := msg.Body
	if msg.Encrypted() {
		plaintext, decErr := p.codec.Decrypt(msg.Cipher, msg.IV, msg.AuthTag)
		if decErr != nil {
			// Terminal: ciphertext will not become valid by retrying.
			return p.completeUndecryptable(ctx, msg, decErr, started)
		}
		body = plaintext
	}

	count, err := p.messages.CountBySender(ctx, msg.SenderKey)
	if err != nil {
		return err
	}
	if count < 1 {
		count = 1
	}

	cls := p.classifier.Classify(ctx, body)
	if !cls.IsLead {
		return p.completeNonLead(ctx, msg, cls, count, started)
	}

	existing, err := p.leads.GetQualified(ctx, msg.SenderKey)
	if err != nil {
		return err
	}

	// Qualification is sticky: once a QualifiedLead exists it is never
	// re-derived, and its stored priority is reused.
	var qual Qualification
	if existing != nil {
		qual = Qualification{IsQualified: true, Priority: ParsePriority(existing.Priority)}
	} else {
		qual = p.qualifier.Qualify(ctx, body, count, cls.Intent)
	}

	missingName := existing == nil || existing.Name == nil
	missingEmail := existing == nil || existing.Email == nil

	// Extraction only runs for qualified senders still missing a field, to
	// bound generation-service calls.
	var contact Contact
	extractionRan := false
	if qual.IsQualified && (missingName || missingEmail) {
		contact = p.extractor.Extract(ctx, body)
		extractionRan = true
	}

	stillMissingName := missingName && contact.Name == nil
	stillMissingEmail := missingEmail && contact.Email == nil

	reply := p.replier.Compose(ctx, ReplyInput{
		Body:         body,
		Intent:       cls.Intent,
		Qualified:    qual.IsQualified,
		MissingName:  qual.IsQualified && stillMissingName,
		MissingEmail: qual.IsQualified && stillMissingEmail,
	})

	// Persist in fixed order: qualified lead, lead, then the message. Each
	// write is an idempotent merge, so a crash between them leaves state a
	// retry can safely reapply.
	if qual.IsQualified {
		if err := p.leads.UpsertQualified(ctx, store.UpsertQualifiedParams{
			SenderKey:        msg.SenderKey,
			Name:             contact.Name,
			Email:            contact.Email,
			Priority:         string(qual.Priority),
			Intent:           cls.Intent,
			MessageCount:     count,
			FirstMessageBody: body,
		}); err != nil {
			return err
		}
	}

	if err := p.leads.UpsertLead(ctx, store.UpsertLeadParams{
		SenderKey:        msg.SenderKey,
		Intent:           cls.Intent,
		MessageCount:     count,
		FirstMessageBody: body,
	}); err != nil {
		return err
	}

	priority := string(qual.Priority)
	if err := p.messages.Complete(ctx, msg.ID, store.CompleteParams{
		AutoReplyText: &reply,
		IsLead:        true,
		IsQualified:   qual.IsQualified,
		Priority:      &priority,
		Metadata: map[string]any{
			"intent":         cls.Intent,
			"message_count":  count,
			"extraction_ran": extractionRan,
			"missing_name":   qual.IsQualified && stillMissingName,
			"missing_email":  qual.IsQualified && stillMissingEmail,
			"duration_ms":    time.Since(started).Milliseconds(),
		},
	}); err != nil {
		return err
	}

	p.publishProcessed(ctx, msg, true, qual.IsQualified)
	if qual.IsQualified && existing == nil {
		p.publish(ctx, LeadQualified{
			BaseEvent: events.NewBaseEvent(),
			SenderKey: msg.SenderKey,
			Priority:  string(qual.Priority),
		})
	}

	p.log.MessageEvent("processed", msg.ID.String(), msg.SenderKey)
	return nil
}

// completeUndecryptable terminates a message whose payload cannot be
// authenticated. No Lead or QualifiedLead writes occur.
func (p *Processor) completeUndecryptable(ctx context.Context, msg store.RawMessage, decErr error, started time.Time) error {
	reason := "Message could not be decrypted: " + decErr.Error()
	if err := p.messages.Complete(ctx, msg.ID, store.CompleteParams{
		AutoReplyText: &reason,
		IsLead:        false,
		IsQualified:   false,
		Metadata: map[string]any{
			"decrypt_failed": true,
			"duration_ms":    time.Since(started).Milliseconds(),
		},
	}); err != nil {
		return err
	}

	p.publishProcessed(ctx, msg, false, false)
	p.log.MessageEvent("decrypt_failed", msg.ID.String(), msg.SenderKey)
	return nil
}

// completeNonLead terminates a message that is not a lead. No Lead or
// QualifiedLead writes occur and no reply is composed.
func (p *Processor) completeNonLead(ctx context.Context, msg store.RawMessage, cls Classification, count int, started time.Time) error {
	if err := p.messages.Complete(ctx, msg.ID, store.CompleteParams{
		IsLead:      false,
		IsQualified: false,
		Metadata: map[string]any{
			"intent":        cls.Intent,
			"message_count": count,
			"duration_ms":   time.Since(started).Milliseconds(),
		},
	}); err != nil {
		return err
	}

	p.publishProcessed(ctx, msg, false, false)
	p.log.MessageEvent("skipped_non_lead", msg.ID.String(), msg.SenderKey)
	return nil
}

func (p *Processor) publishProcessed(ctx context.Context, msg store.RawMessage, isLead, isQualified bool) {
	p.publish(ctx, MessageProcessed{
		BaseEvent:   events.NewBaseEvent(),
		MessageID:   msg.ID.String(),
		SenderKey:   msg.SenderKey,
		IsLead:      isLead,
		IsQualified: isQualified,
	})
}

func (p *Processor) publish(ctx context.Context, event events.Event) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(ctx, event)
}
