package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abrahamus/iBeekeeper/internal/queue"
	"github.com/abrahamus/iBeekeeper/pkg/logger"
	"github.com/abrahamus/iBeekeeper/pkg/redis"
	"github.com/abrahamus/iBeekeeper/pkg/worker"
)

const (
	healthInterval  = 30 * time.Second
	shutdownTimeout = time.Minute
	pendingLagAlert = 10_000
)

// Processor handles one queue message. The queue retries on error.
type Processor interface {
	Process(ctx context.Context, msg *queue.Message) error
	GetType() string
}

type ServiceConfig struct {
	Queue     queue.Config
	Consumers int
	Workers   int
}

// Service consumes import jobs from the stream and fans them out over a
// worker pool. Several consumer instances share one consumer group, so
// a job is delivered to exactly one of them.
type Service struct {
	adapter   redis.Adapter
	config    ServiceConfig
	queues    []*queue.Queue
	processor Processor
	worker    *worker.WorkerManager
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewService(adapter redis.Adapter, config ServiceConfig) *Service {
	if config.Consumers <= 0 {
		config.Consumers = 4
	}
	if config.Workers <= 0 {
		config.Workers = 16
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		adapter: adapter,
		config:  config,
		queues:  make([]*queue.Queue, 0, config.Consumers),
		ctx:     ctx,
		cancel:  cancel,
		worker:  worker.NewWorkerManager(10_000, config.Workers, nil),
	}
}

func (s *Service) RegisterProcessor(processor Processor) {
	s.processor = processor
	logger.Info("registered processor", "type", processor.GetType())
}

type workerJob struct {
	ctx  context.Context
	msg  *queue.Message
	done chan error
}

func (s *Service) Start() error {
	if s.processor == nil {
		return fmt.Errorf("no processor registered")
	}

	s.worker.SetWorker(s.handleJob)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("worker pool stopped", "error", err)
		}
	}()

	for i := 0; i < s.config.Consumers; i++ {
		cfg := s.config.Queue
		cfg.ConsumerName = fmt.Sprintf("%s-instance-%d", cfg.ConsumerName, i)

		q, err := queue.New(s.adapter, cfg)
		if err != nil {
			return fmt.Errorf("creating consumer %d: %w", i, err)
		}
		if err := q.Consume(s.enqueue); err != nil {
			return fmt.Errorf("starting consumer %d: %w", i, err)
		}
		s.queues = append(s.queues, q)
	}

	s.wg.Add(1)
	go s.healthChecker()

	logger.Info("import worker started",
		"consumers", len(s.queues),
		"workers", s.config.Workers)
	return nil
}

// enqueue hands the message to the pool and waits for the outcome. The
// processor's result decides the ack, so the queue has to block here.
func (s *Service) enqueue(ctx context.Context, msg *queue.Message) error {
	done := make(chan error, 1)
	s.worker.Enqueue(workerJob{ctx: ctx, msg: msg, done: done})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) handleJob(workerIndex int, job interface{}) {
	wj, ok := job.(workerJob)
	if !ok {
		logger.Error("unexpected job type in worker pool")
		return
	}
	wj.done <- s.processor.Process(wj.ctx, wj.msg)
}

func (s *Service) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) performHealthCheck() {
	if err := s.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("health check failed: redis unreachable", "error", err)
		return
	}

	for i, q := range s.queues {
		stats, err := q.GetStats()
		if err != nil {
			logger.Warn("queue stats unavailable", "queue", i, "error", err)
			continue
		}
		if stats.PendingMessages > pendingLagAlert {
			logger.Warn("queue lag is high", "queue", i, "pending", stats.PendingMessages)
		}
	}
}

func (s *Service) Stop() {
	logger.Info("shutting down import worker")
	s.cancel()

	stopped := make(chan bool, len(s.queues))
	for i, q := range s.queues {
		go func(index int, q *queue.Queue) {
			if err := q.Stop(shutdownTimeout); err != nil {
				logger.Error("error stopping consumer", "queue", index, "error", err)
			}
			stopped <- true
		}(i, q)
	}
	for range s.queues {
		<-stopped
	}

	s.worker.Exit()
	s.wg.Wait()
	logger.Info("import worker stopped")
}
