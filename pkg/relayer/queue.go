package relayer

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Illuminfti/ika-tensei-relay/internal/metrics"
	"github.com/Illuminfti/ika-tensei-relay/pkg/config"
	"github.com/Illuminfti/ika-tensei-relay/pkg/faults"
)

// ProcessFunc runs the workflow for one seal up to completion or error.
type ProcessFunc func(ctx context.Context, sealHash string) error

type workItem struct {
	sealHash string
	attempt  int
	delay    *backoff.ExponentialBackOff
}

// Queue is the bounded worker pool driving seal workflows. One seal is never
// in flight on two workers at once; the in-flight set is the admission gate,
// so duplicate event deliveries and the startup resume pass collapse into a
// single scheduled run.
type Queue struct {
	cfg     *config.PipelineConfig
	store   SealStore
	process ProcessFunc
	logger  *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	stopped  bool

	items         chan *workItem
	stopCh        chan struct{}
	cancelWorkers context.CancelFunc
	wg            sync.WaitGroup
}

// NewQueue creates a worker queue around the given process function
func NewQueue(cfg *config.PipelineConfig, store SealStore, process ProcessFunc, logger *zap.Logger) *Queue {
	return &Queue{
		cfg:      cfg,
		store:    store,
		process:  process,
		logger:   logger,
		inflight: make(map[string]struct{}),
		items:    make(chan *workItem, cfg.QueueSize),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the worker pool. Workers run on their own context so a
// caller-side cancellation does not cut off in-flight workflows; Stop
// cancels them after the drain period.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancelWorkers = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Concurrency; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.logger.Info("queue workers started", zap.Int("concurrency", q.cfg.Concurrency))
}

// Enqueue schedules a seal for processing. Returns false when the seal is
// already queued or in flight, when the queue is stopping, or when the
// buffer is full; in every case the durable record guarantees the work is
// picked up again later.
func (q *Queue) Enqueue(sealHash string) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return false
	}
	if _, ok := q.inflight[sealHash]; ok {
		q.mu.Unlock()
		return false
	}
	q.inflight[sealHash] = struct{}{}
	metrics.QueueDepth.Inc()
	q.mu.Unlock()

	select {
	case q.items <- &workItem{sealHash: sealHash}:
		return true
	default:
		q.release(sealHash)
		q.logger.Warn("queue full, dropping admission", zap.String("seal_hash", sealHash))
		return false
	}
}

// Depth returns the number of seals queued or in flight
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

// Stop refuses new admissions and waits for in-flight work up to the drain
// timeout, then cancels whatever is still running. Interrupted workflows
// are recovered from the store on the next start.
func (q *Queue) Stop(ctx context.Context) {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	close(q.stopCh)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	drainCtx, cancel := context.WithTimeout(ctx, q.cfg.DrainTimeout)
	defer cancel()

	select {
	case <-done:
		q.logger.Info("queue drained")
	case <-drainCtx.Done():
		q.logger.Warn("queue drain timed out, cancelling in-flight work")
	}

	if q.cancelWorkers != nil {
		q.cancelWorkers()
	}
	<-done
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	logger := q.logger.With(zap.Int("worker", id))

	for {
		select {
		case <-q.stopCh:
			return
		case it := <-q.items:
			q.run(ctx, logger, it)
		}
	}
}

func (q *Queue) run(ctx context.Context, logger *zap.Logger, it *workItem) {
	logger = logger.With(zap.String("seal_hash", it.sealHash), zap.Int("attempt", it.attempt))

	err := q.process(ctx, it.sealHash)
	if err == nil {
		q.release(it.sealHash)
		return
	}

	if ctx.Err() != nil {
		// Shutdown interrupted the workflow; the record resumes next start.
		q.release(it.sealHash)
		return
	}

	if !faults.Retryable(err) {
		logger.Error("workflow failed terminally", zap.Error(err))
		q.fail(ctx, it.sealHash, err)
		return
	}

	if it.attempt+1 >= q.cfg.MaxRetries {
		logger.Error("workflow exhausted retry budget", zap.Error(err))
		q.fail(ctx, it.sealHash, err)
		return
	}

	q.requeue(it, err, logger)
}

// requeue schedules the item again after an exponential delay. The in-flight
// reservation is kept across the wait so nothing else picks the seal up.
func (q *Queue) requeue(it *workItem, cause error, logger *zap.Logger) {
	if it.delay == nil {
		it.delay = backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(q.cfg.RetryBaseDelay),
			backoff.WithMaxInterval(q.cfg.RetryMaxDelay),
			backoff.WithMaxElapsedTime(0),
		)
	}
	wait := it.delay.NextBackOff()
	it.attempt++

	logger.Warn("workflow stage failed, retrying",
		zap.Error(cause),
		zap.Duration("backoff", wait))
	metrics.RetriesTotal.Inc()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		select {
		case <-q.stopCh:
			q.release(it.sealHash)
			return
		case <-time.After(wait):
		}

		// Block until a buffer slot frees up. The in-flight reservation
		// already stops anything else from picking the seal up, and a
		// dropped send here would strand the record until a restart.
		select {
		case <-q.stopCh:
			q.release(it.sealHash)
		case q.items <- it:
		}
	}()
}

func (q *Queue) fail(ctx context.Context, sealHash string, cause error) {
	defer q.release(sealHash)

	metrics.SealsFinished.WithLabelValues("failed").Inc()
	if err := q.store.MarkFailed(ctx, sealHash, cause.Error()); err != nil {
		q.logger.Error("failed to record terminal failure",
			zap.String("seal_hash", sealHash),
			zap.Error(err))
	}
}

func (q *Queue) release(sealHash string) {
	q.mu.Lock()
	if _, ok := q.inflight[sealHash]; ok {
		delete(q.inflight, sealHash)
		metrics.QueueDepth.Dec()
	}
	q.mu.Unlock()
}
