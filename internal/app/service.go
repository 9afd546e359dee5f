// Package service wires the import pipeline together: queue, worker pool,
// converter, hydration, session clustering and rating rollup, behind a
// Start/Stop lifecycle.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/hibiki-gg/scoretrack/internal/adapters/mq/queue"
	workerpool "github.com/hibiki-gg/scoretrack/internal/adapters/mq/worker"
	"github.com/hibiki-gg/scoretrack/internal/adapters/repository"
	"github.com/hibiki-gg/scoretrack/internal/domain/convert"
	"github.com/hibiki-gg/scoretrack/internal/domain/dedupe"
	"github.com/hibiki-gg/scoretrack/internal/domain/hydrate"
	"github.com/hibiki-gg/scoretrack/internal/domain/model"
	"github.com/hibiki-gg/scoretrack/internal/domain/rating"
	"github.com/hibiki-gg/scoretrack/internal/domain/session"
	"github.com/hibiki-gg/scoretrack/pkg/logger"
	"github.com/hibiki-gg/scoretrack/pkg/metrics"
)

// Service implements the score import pipeline end to end.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	deduper   dedupe.Deduper
	jobQueue  jobqueue.Queue
	converter *convert.Converter
	hydrator  *hydrate.Hydrator
	clusterer *session.Clusterer
	roller    *rating.Roller
	pool      *workerpool.Pool

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	now         func() int64

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for insertion timestamps, for
// tests.
func WithClock(now func() int64) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service on the given store. The store's lifecycle belongs
// to the caller; the service never opens one itself.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		workerCount: runtime.NumCPU() * 2,
		queueSize:   10000,
		dedupeSize:  50000,
		now:         func() int64 { return time.Now().UnixMilli() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the pipeline components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting import service...")

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.jobQueue = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
		jobqueue.WithBufferSize(s.queueSize),
	)
	s.converter = convert.New(s.store)
	s.hydrator = hydrate.New(hydrate.WithClock(s.now))
	s.clusterer = session.New(s.store, session.WithClock(s.now))
	s.roller = rating.NewRoller(s.store)

	s.pool = workerpool.NewPool(s.workerCount, s.jobQueue, s)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "import service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)

	return nil
}

// Stop gracefully shuts down the service. Queued jobs are drained before the
// workers exit.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping import service...")

	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}

	s.started = false
	s.logger.Info(ctx, "import service stopped")
}

// Enqueue submits an import job for asynchronous processing. Returns false
// when the queue is full or closed.
func (s *Service) Enqueue(ctx context.Context, job model.ImportJob) bool {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}

	s.logger.Debug(ctx, "enqueueing import job",
		logger.String("jobID", job.JobID),
		logger.Int("userID", job.UserID),
		logger.String("importType", string(job.ImportType)),
	)

	ok := s.jobQueue.Enqueue(ctx, job)
	if ok {
		metrics.UpdateQueueSize(s.jobQueue.Len(ctx))
	}
	return ok
}

// ProcessJob runs one import batch. It implements worker.Importer; workers
// call it as they drain the queue.
func (s *Service) ProcessJob(ctx context.Context, job model.ImportJob) error {
	start := time.Now()

	result, err := s.ImportBatch(ctx, job)

	metrics.RecordBatchLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordBatchFatal()
		return err
	}

	metrics.RecordBatchProcessed()
	s.logger.Info(ctx, "import batch finished",
		logger.String("jobID", job.JobID),
		logger.Int("userID", job.UserID),
		logger.Int("imported", len(result.ScoreIDs)),
		logger.Int("failures", len(result.Failures)),
		logger.Int("sessions", len(result.SessionInfo)),
	)
	return nil
}

// QueueLen reports the current job queue depth.
func (s *Service) QueueLen(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return 0
	}
	return s.jobQueue.Len(ctx)
}

// DedupeSize reports the number of remembered score IDs.
func (s *Service) DedupeSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
