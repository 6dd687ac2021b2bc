// Package intake discovers unprocessed messages and admits them to the
// processor under a bounded-concurrency gate. The processor never learns
// whether messages arrived by polling or by queue push: both paths satisfy
// the same Source iterator.
package intake

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"leadchat_backend/platform/logger"
)

// Source yields ids of messages eligible for processing. Next blocks until
// a message is available or the context ends.
type Source interface {
	Next(ctx context.Context) (uuid.UUID, error)
}

// MessageProcessor runs one full processing attempt.
type MessageProcessor interface {
	Process(ctx context.Context, id uuid.UUID) error
}

// Dispatcher drains a Source into the processor with a fixed concurrency
// width. Processing failures are logged and absorbed: the claim release
// inside the processor already made the message retryable.
type Dispatcher struct {
	proc  MessageProcessor
	sem   *semaphore.Weighted
	width int64
	log   *logger.Logger
}

// NewDispatcher creates a dispatcher with the given concurrency width.
func NewDispatcher(proc MessageProcessor, width int, log *logger.Logger) *Dispatcher {
	if width < 1 {
		width = 1
	}
	return &Dispatcher{
		proc:  proc,
		sem:   semaphore.NewWeighted(int64(width)),
		width: int64(width),
		log:   log,
	}
}

// Run pulls from the source until the context ends, then waits for all
// in-flight attempts to finish.
func (d *Dispatcher) Run(ctx context.Context, src Source) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		id, err := src.Next(ctx)
		if err != nil {
			// Sources only fail when the context ends.
			return nil
		}

		if err := d.sem.Acquire(ctx, 1); err != nil {
			return nil
		}

		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			defer d.sem.Release(1)

			if err := d.proc.Process(ctx, id); err != nil {
				d.log.WithMessageID(id.String()).Error(
					"message processing attempt failed", "error", err.Error())
			}
		}(id)
	}
}
