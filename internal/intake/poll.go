package intake

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadchat_backend/platform/logger"
)

// UnprocessedLister is the store surface the poll source needs.
type UnprocessedLister interface {
	ListUnprocessedIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// PollSource discovers eligible messages by querying the store on an
// interval. Duplicate yields are harmless: the processor's claim step
// rejects anything already owned.
type PollSource struct {
	messages UnprocessedLister
	interval time.Duration
	batch    int
	log      *logger.Logger

	buf []uuid.UUID
}

// NewPollSource creates a poll source.
func NewPollSource(messages UnprocessedLister, interval time.Duration, batch int, log *logger.Logger) *PollSource {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch < 1 {
		batch = 50
	}
	return &PollSource{
		messages: messages,
		interval: interval,
		batch:    batch,
		log:      log,
	}
}

// Next returns the next eligible message id, sleeping between empty polls.
// Store errors are logged and retried on the next interval; Next only
// fails when the context ends.
func (s *PollSource) Next(ctx context.Context) (uuid.UUID, error) {
	for {
		if len(s.buf) > 0 {
			id := s.buf[0]
			s.buf = s.buf[1:]
			return id, nil
		}

		ids, err := s.messages.ListUnprocessedIDs(ctx, s.batch)
		if err != nil {
			s.log.DatabaseError("poll unprocessed messages", err)
		} else if len(ids) > 0 {
			s.buf = ids
			continue
		}

		select {
		case <-ctx.Done():
			return uuid.Nil, ctx.Err()
		case <-time.After(s.interval):
		}
	}
}
