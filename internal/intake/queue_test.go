package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakeQueueStore struct {
	unprocessed []uuid.UUID
	listErr     error

	reclaimedAfter time.Duration
	reclaimCalls   int
	released       int64
	reclaimErr     error
}

func (f *fakeQueueStore) ListUnprocessedIDs(_ context.Context, _ int) ([]uuid.UUID, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.unprocessed, nil
}

func (f *fakeQueueStore) ReclaimStale(_ context.Context, olderThan time.Duration) (int64, error) {
	f.reclaimCalls++
	f.reclaimedAfter = olderThan
	if f.reclaimErr != nil {
		return 0, f.reclaimErr
	}
	return f.released, nil
}

type captureEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (c *captureEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Type: task.Type()}, nil
}

func newTestQueueSource(t *testing.T, store QueueStore) (*QueueSource, *captureEnqueuer) {
	t.Helper()
	qs, err := NewQueueSource(QueueConfig{
		RedisURL:     "redis://127.0.0.1:6379/0",
		ReclaimAfter: 10 * time.Minute,
	}, store, testLog)
	if err != nil {
		t.Fatalf("new queue source: %v", err)
	}
	enq := &captureEnqueuer{}
	qs.enqueuer = enq
	return qs, enq
}

func TestSweepEnqueuesProcessTaskPerUnprocessedMessage(t *testing.T) {
	ids := makeIDs(3)
	qs, enq := newTestQueueSource(t, &fakeQueueStore{unprocessed: ids})

	if err := qs.handleSweep(context.Background(), NewMessageSweepTask()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if len(enq.tasks) != len(ids) {
		t.Fatalf("expected %d enqueued tasks, got %d", len(ids), len(enq.tasks))
	}
	for i, task := range enq.tasks {
		if task.Type() != TaskMessageProcess {
			t.Fatalf("expected process task, got %q", task.Type())
		}
		payload, err := ParseMessageProcessPayload(task)
		if err != nil {
			t.Fatalf("parse payload: %v", err)
		}
		if payload.MessageID != ids[i].String() {
			t.Fatalf("task %d carries id %s, want %s", i, payload.MessageID, ids[i])
		}
	}
}

func TestSweepEnqueuesNothingWhenDrained(t *testing.T) {
	qs, enq := newTestQueueSource(t, &fakeQueueStore{})

	if err := qs.handleSweep(context.Background(), NewMessageSweepTask()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(enq.tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(enq.tasks))
	}
}

func TestSweepPropagatesStoreError(t *testing.T) {
	qs, _ := newTestQueueSource(t, &fakeQueueStore{listErr: errors.New("db down")})

	if err := qs.handleSweep(context.Background(), NewMessageSweepTask()); err == nil {
		t.Fatal("expected sweep to fail")
	}
}

func TestSweepPropagatesEnqueueError(t *testing.T) {
	qs, enq := newTestQueueSource(t, &fakeQueueStore{unprocessed: makeIDs(2)})
	enq.err = errors.New("redis down")

	if err := qs.handleSweep(context.Background(), NewMessageSweepTask()); err == nil {
		t.Fatal("expected sweep to fail")
	}
}

func TestReclaimReleasesStaleClaims(t *testing.T) {
	store := &fakeQueueStore{released: 4}
	qs, _ := newTestQueueSource(t, store)

	if err := qs.handleReclaim(context.Background(), NewMessageReclaimTask()); err != nil {
		t.Fatalf("reclaim failed: %v", err)
	}
	if store.reclaimCalls != 1 {
		t.Fatalf("expected one reclaim call, got %d", store.reclaimCalls)
	}
	if store.reclaimedAfter != 10*time.Minute {
		t.Fatalf("expected configured cutoff, got %v", store.reclaimedAfter)
	}
}

func TestReclaimPropagatesStoreError(t *testing.T) {
	qs, _ := newTestQueueSource(t, &fakeQueueStore{reclaimErr: errors.New("db down")})

	if err := qs.handleReclaim(context.Background(), NewMessageReclaimTask()); err == nil {
		t.Fatal("expected reclaim to fail")
	}
}

func TestProcessTaskReachesNext(t *testing.T) {
	qs, _ := newTestQueueSource(t, &fakeQueueStore{})
	id := uuid.New()

	task, err := NewMessageProcessTask(MessageProcessPayload{MessageID: id.String()})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- qs.handleProcess(context.Background(), task) }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := qs.Next(ctx)
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if got != id {
		t.Fatalf("next yielded %s, want %s", got, id)
	}
	if err := <-done; err != nil {
		t.Fatalf("handler failed: %v", err)
	}
}

func TestProcessTaskRejectsMalformedID(t *testing.T) {
	qs, _ := newTestQueueSource(t, &fakeQueueStore{})

	task, err := NewMessageProcessTask(MessageProcessPayload{MessageID: "not-a-uuid"})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if err := qs.handleProcess(context.Background(), task); err == nil {
		t.Fatal("expected malformed id to be rejected")
	}
}

func TestMessageStoredEnqueuesProcessTask(t *testing.T) {
	qs, enq := newTestQueueSource(t, &fakeQueueStore{})
	id := uuid.New()

	if err := qs.MessageStored(context.Background(), id); err != nil {
		t.Fatalf("message stored: %v", err)
	}

	if len(enq.tasks) != 1 || enq.tasks[0].Type() != TaskMessageProcess {
		t.Fatalf("expected one process task, got %+v", enq.tasks)
	}
	payload, err := ParseMessageProcessPayload(enq.tasks[0])
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.MessageID != id.String() {
		t.Fatalf("task carries id %s, want %s", payload.MessageID, id)
	}
}
