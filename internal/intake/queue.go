package intake

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"leadchat_backend/platform/logger"
)

// QueueStore is the store surface the queue source needs: the sweep lists
// unprocessed messages and the reclaim task releases stale claims.
type QueueStore interface {
	ListUnprocessedIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// QueueConfig configures the asynq-backed intake source.
type QueueConfig struct {
	RedisURL     string
	Queue        string
	SweepEvery   time.Duration
	SweepBatch   int
	ReclaimAfter time.Duration
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.Queue == "" {
		c.Queue = "default"
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = time.Minute
	}
	if c.SweepBatch < 1 {
		c.SweepBatch = 200
	}
	if c.ReclaimAfter <= 0 {
		c.ReclaimAfter = 15 * time.Minute
	}
	return c
}

// taskEnqueuer is the part of *asynq.Client the source enqueues through.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueSource yields message ids pushed through an asynq queue. A periodic
// sweep re-enqueues anything the push path missed, and a periodic reclaim
// releases stale claims, so queue mode needs no separate cron process.
type QueueSource struct {
	cfg      QueueConfig
	server   *asynq.Server
	client   *asynq.Client
	enqueuer taskEnqueuer
	messages QueueStore
	ch       chan uuid.UUID
	log      *logger.Logger
}

// NewQueueSource creates the queue source. Start must be called before Next.
func NewQueueSource(cfg QueueConfig, messages QueueStore, log *logger.Logger) (*QueueSource, error) {
	cfg = cfg.withDefaults()
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	server := asynq.NewServer(opt, asynq.Config{
		// The pipeline's own concurrency gate lives in the dispatcher;
		// handlers here only hand ids over.
		Concurrency: 2,
		Queues: map[string]int{
			cfg.Queue: 1,
		},
	})

	client := asynq.NewClient(opt)
	return &QueueSource{
		cfg:      cfg,
		server:   server,
		client:   client,
		enqueuer: client,
		messages: messages,
		ch:       make(chan uuid.UUID),
		log:      log,
	}, nil
}

// Start runs the asynq server and the periodic sweep/reclaim tickers until
// the context ends.
func (s *QueueSource) Start(ctx context.Context) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskMessageProcess, s.handleProcess)
	mux.HandleFunc(TaskMessageSweep, s.handleSweep)
	mux.HandleFunc(TaskMessageReclaim, s.handleReclaim)

	go func() {
		<-ctx.Done()
		s.server.Shutdown()
		_ = s.client.Close()
	}()
	go s.runTickers(ctx)

	if err := s.server.Run(mux); err != nil {
		s.log.Error("queue intake stopped", "error", err.Error())
		return err
	}
	return nil
}

// MessageStored enqueues a process task for a newly stored message. It lets
// the ingest endpoint hand freshly arrived work to the queue without waiting
// for the next sweep.
func (s *QueueSource) MessageStored(ctx context.Context, id uuid.UUID) error {
	task, err := NewMessageProcessTask(MessageProcessPayload{MessageID: id.String()})
	if err != nil {
		return err
	}
	_, err = s.enqueuer.EnqueueContext(ctx, task, asynq.Queue(s.cfg.Queue))
	return err
}

// Next yields the next pushed message id.
func (s *QueueSource) Next(ctx context.Context) (uuid.UUID, error) {
	select {
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	case id := <-s.ch:
		return id, nil
	}
}

func (s *QueueSource) handleProcess(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseMessageProcessPayload(task)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(payload.MessageID)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- id:
		return nil
	}
}

func (s *QueueSource) handleSweep(ctx context.Context, _ *asynq.Task) error {
	ids, err := s.messages.ListUnprocessedIDs(ctx, s.cfg.SweepBatch)
	if err != nil {
		return err
	}

	for _, id := range ids {
		task, err := NewMessageProcessTask(MessageProcessPayload{MessageID: id.String()})
		if err != nil {
			return err
		}
		if _, err := s.enqueuer.EnqueueContext(ctx, task, asynq.Queue(s.cfg.Queue)); err != nil {
			return err
		}
	}

	if len(ids) > 0 {
		s.log.Info("sweep re-enqueued unprocessed messages", "count", len(ids))
	}
	return nil
}

func (s *QueueSource) handleReclaim(ctx context.Context, _ *asynq.Task) error {
	released, err := s.messages.ReclaimStale(ctx, s.cfg.ReclaimAfter)
	if err != nil {
		return err
	}
	if released > 0 {
		s.log.Info("reclaimed stale message claims", "count", released)
	}
	return nil
}

func (s *QueueSource) runTickers(ctx context.Context) {
	sweep := time.NewTicker(s.cfg.SweepEvery)
	defer sweep.Stop()
	reclaim := time.NewTicker(s.cfg.ReclaimAfter)
	defer reclaim.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			s.enqueue(ctx, NewMessageSweepTask())
		case <-reclaim.C:
			s.enqueue(ctx, NewMessageReclaimTask())
		}
	}
}

func (s *QueueSource) enqueue(ctx context.Context, task *asynq.Task) {
	if _, err := s.enqueuer.EnqueueContext(ctx, task, asynq.Queue(s.cfg.Queue)); err != nil {
		s.log.Error("failed to enqueue task", "type", task.Type(), "error", err.Error())
	}
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		tlsConfig = opt.TLSConfig.Clone()
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
