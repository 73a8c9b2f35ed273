package relayer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Illuminfti/ika-tensei-relay/internal/metrics"
	"github.com/Illuminfti/ika-tensei-relay/pkg/config"
	"github.com/Illuminfti/ika-tensei-relay/pkg/db"
	"github.com/Illuminfti/ika-tensei-relay/pkg/near"
	"github.com/Illuminfti/ika-tensei-relay/pkg/solana"
)

// originChain is the cursor key for the origin ledger.
const originChain = "near"

// OriginClient defines the interface for origin ledger interactions
type OriginClient interface {
	FetchSealEvents(ctx context.Context, afterSeq int64, limit int) ([]near.SealEvent, error)
	MarkCompleted(ctx context.Context, sealHash, destAsset string) error
}

// DestinationClient defines the interface for destination ledger interactions
type DestinationClient interface {
	VerifySeal(ctx context.Context, req *solana.VerifyRequest) error
	MintSealed(ctx context.Context, sealHash, name, uri string) (string, error)
	GetSealStatus(ctx context.Context, sealHash string) (*solana.SealStatus, error)
}

// SealSigner defines the interface for the signing network
type SealSigner interface {
	Sign(ctx context.Context, sealHash common.Hash) (string, error)
}

// SealStore defines the interface for database operations
type SealStore interface {
	CreateSealRecord(ctx context.Context, rec *db.SealRecord) (bool, error)
	GetSealRecord(ctx context.Context, sealHash string) (*db.SealRecord, error)
	GetResumable(ctx context.Context) ([]*db.SealRecord, error)
	CountByStatus(ctx context.Context) (map[db.Status]int, error)
	UpdateStatus(ctx context.Context, sealHash string, from, to db.Status) error
	SetSignature(ctx context.Context, sealHash, signature string) error
	SetDestinationAsset(ctx context.Context, sealHash, asset string) error
	MarkFailed(ctx context.Context, sealHash, errMsg string) error
	GetCursor(ctx context.Context, chain string) (int64, error)
	SetCursor(ctx context.Context, chain string, seq int64) error
}

// Engine orchestrates the migration relay: the event source feeds the queue,
// queue workers drive the pipeline, everything durable lives in the store.
type Engine struct {
	config *config.Config
	store  SealStore
	origin OriginClient
	dest   DestinationClient
	signer SealSigner
	logger *zap.Logger

	queue    *Queue
	source   *Source
	pipeline *Pipeline

	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewEngine creates a new relay engine
func NewEngine(
	cfg *config.Config,
	store SealStore,
	origin OriginClient,
	dest DestinationClient,
	signer SealSigner,
	logger *zap.Logger,
) *Engine {
	e := &Engine{
		config: cfg,
		store:  store,
		origin: origin,
		dest:   dest,
		signer: signer,
		logger: logger,
	}

	e.pipeline = NewPipeline(store, origin, dest, signer, logger)
	e.queue = NewQueue(&cfg.Pipeline, store, e.pipeline.Run, logger)
	e.source = NewSource(&cfg.Origin, origin, store, e.queue, logger)
	return e
}

// Start starts the relay engine
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("Starting relay engine")
	e.startedAt = time.Now()

	cursor, err := e.store.GetCursor(ctx, originChain)
	if err != nil {
		return fmt.Errorf("failed to load origin cursor: %w", err)
	}
	if cursor < 0 {
		cursor = e.config.Origin.StartSequence - 1
	}
	e.source.setCursor(cursor)
	metrics.OriginCursor.Set(float64(cursor))

	// Workers keep the caller's context; Stop cancels them only after the
	// drain period, so cancelling the poller never cuts off in-flight work.
	e.queue.Start(ctx)

	// Interrupted workflows continue from their recorded status before any
	// new event gets a worker.
	if err := e.resume(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.source.Run(runCtx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.resumeLoop(runCtx)
	}()

	e.logger.Info("Relay engine started", zap.Int64("origin_cursor", cursor))
	return nil
}

// Stop stops the engine: the source first so nothing new is admitted, then
// the queue gives in-flight workflows the drain period before cancelling.
func (e *Engine) Stop(ctx context.Context) {
	e.logger.Info("Stopping relay engine")

	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.queue.Stop(ctx)

	e.logger.Info("Relay engine stopped")
}

// resumeLoop periodically re-enqueues unfinished records. An admission lost
// to a full buffer gets picked up on the next pass instead of waiting for a
// restart.
func (e *Engine) resumeLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.Pipeline.ResumeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.resume(ctx); err != nil {
				e.logger.Warn("resume pass failed", zap.Error(err))
			}
		}
	}
}

func (e *Engine) resume(ctx context.Context) error {
	recs, err := e.store.GetResumable(ctx)
	if err != nil {
		return fmt.Errorf("failed to load resumable records: %w", err)
	}

	for _, rec := range recs {
		if e.queue.Enqueue(rec.SealHash) {
			e.logger.Info("resuming interrupted workflow",
				zap.String("seal_hash", rec.SealHash),
				zap.String("status", string(rec.Status)))
		}
	}
	return nil
}
