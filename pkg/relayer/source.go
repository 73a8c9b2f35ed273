package relayer

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Illuminfti/ika-tensei-relay/internal/metrics"
	"github.com/Illuminfti/ika-tensei-relay/pkg/config"
	"github.com/Illuminfti/ika-tensei-relay/pkg/db"
	"github.com/Illuminfti/ika-tensei-relay/pkg/faults"
	"github.com/Illuminfti/ika-tensei-relay/pkg/near"
	"github.com/Illuminfti/ika-tensei-relay/pkg/seal"
)

// Source polls the origin ledger for deposit events and admits them into
// the queue. Admission is idempotent end to end: the insert is a no-op for
// known seals and the queue refuses duplicates, so redelivering a page is
// harmless.
type Source struct {
	cfg      *config.OriginConfig
	origin   OriginClient
	store    SealStore
	queue    *Queue
	validate *validator.Validate
	logger   *zap.Logger

	allowed map[uint16]bool
	cursor  int64
}

// NewSource creates an event source over the origin client
func NewSource(cfg *config.OriginConfig, origin OriginClient, store SealStore, queue *Queue, logger *zap.Logger) *Source {
	allowed := make(map[uint16]bool, len(cfg.AllowedSourceChains))
	for _, id := range cfg.AllowedSourceChains {
		allowed[id] = true
	}

	return &Source{
		cfg:      cfg,
		origin:   origin,
		store:    store,
		queue:    queue,
		validate: validator.New(),
		logger:   logger,
		allowed:  allowed,
	}
}

func (s *Source) setCursor(seq int64) {
	s.cursor = seq
}

// Cursor returns the last persisted origin sequence
func (s *Source) Cursor() int64 {
	return s.cursor
}

// Run polls for deposit events until the context is cancelled
func (s *Source) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.pollOnce(ctx); err != nil {
			metrics.ErrorsTotal.WithLabelValues("source", "transient").Inc()
			s.logger.Warn("origin poll failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce fetches and admits pages until the origin has no more events.
// The cursor is persisted once per page, after the whole page is admitted;
// a crash mid-page redelivers at most one page into idempotent admission.
func (s *Source) pollOnce(ctx context.Context) error {
	for {
		events, err := s.origin.FetchSealEvents(ctx, s.cursor, s.cfg.PageSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		last := s.cursor
		for _, ev := range events {
			s.admit(ctx, ev)
			if ev.Seq > last {
				last = ev.Seq
			}
		}

		if err := s.store.SetCursor(ctx, originChain, last); err != nil {
			return fmt.Errorf("failed to persist cursor: %w", err)
		}
		s.cursor = last
		metrics.OriginCursor.Set(float64(last))

		if len(events) < s.cfg.PageSize {
			return nil
		}
	}
}

// admit validates one event and hands it to the queue. Invalid events are
// logged and counted but never stored; the contract should have rejected
// them, so their presence means a buggy or hostile endpoint.
func (s *Source) admit(ctx context.Context, ev near.SealEvent) {
	logger := s.logger.With(zap.Int64("seq", ev.Seq), zap.String("seal_hash", ev.SealHash))

	rec, err := s.check(ev)
	if err != nil {
		metrics.EventsDetected.WithLabelValues("invalid").Inc()
		metrics.ErrorsTotal.WithLabelValues("source", "validation").Inc()
		logger.Warn("rejecting origin event", zap.Error(err))
		return
	}

	created, err := s.store.CreateSealRecord(ctx, rec)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("source", "transient").Inc()
		logger.Error("failed to create seal record", zap.Error(err))
		return
	}

	if created {
		metrics.EventsDetected.WithLabelValues("admitted").Inc()
		metrics.SealsAdmitted.Inc()
		logger.Info("seal admitted",
			zap.Uint16("source_chain", ev.SourceChainID),
			zap.String("contract", ev.SourceContract),
			zap.String("token_id", ev.TokenID))
	} else {
		metrics.EventsDetected.WithLabelValues("duplicate").Inc()
		logger.Debug("seal already known")
	}

	// Enqueue either way; the in-flight set deduplicates, and a known but
	// unfinished seal deserves a worker.
	s.queue.Enqueue(rec.SealHash)
}

// check validates the event against the contract's own field limits, the
// chain allow-list, and the seal commitment. The reported hash is never
// trusted; it is recomputed from the event fields.
func (s *Source) check(ev near.SealEvent) (*db.SealRecord, error) {
	if err := s.validate.Struct(ev); err != nil {
		return nil, faults.Validation("source", "malformed event", err)
	}

	if !seal.KnownChain(ev.SourceChainID) || !s.allowed[ev.SourceChainID] {
		return nil, faults.Validation("source", "source chain not allowed",
			fmt.Errorf("chain %d", ev.SourceChainID))
	}
	if ev.DestChainID != seal.ChainSolana {
		return nil, faults.Validation("source", "unsupported destination chain",
			fmt.Errorf("chain %d", ev.DestChainID))
	}

	// The audit row stores the nonce in a signed 64-bit column.
	if ev.Nonce > math.MaxInt64 {
		return nil, faults.Validation("source", "nonce exceeds signed 64-bit range",
			fmt.Errorf("nonce %d", ev.Nonce))
	}

	pubkey, err := hexutil.Decode(ev.AttestedPubKey)
	if err != nil || len(pubkey) != 32 {
		return nil, faults.Validation("source", "malformed attested public key", err)
	}

	inputs := seal.Inputs{
		SourceChainID:  ev.SourceChainID,
		DestChainID:    ev.DestChainID,
		SourceContract: []byte(ev.SourceContract),
		TokenID:        []byte(ev.TokenID),
		Nonce:          ev.Nonce,
	}
	copy(inputs.AttestedPubKey[:], pubkey)

	computed, err := seal.Encode(inputs)
	if err != nil {
		return nil, faults.Validation("source", "failed to compute seal hash", err)
	}
	if !strings.EqualFold(computed.Hex(), ev.SealHash) {
		return nil, faults.Validation("source", "seal hash mismatch",
			fmt.Errorf("reported %s, computed %s", ev.SealHash, computed.Hex()))
	}

	return &db.SealRecord{
		SealHash:       computed.Hex(),
		SourceChainID:  ev.SourceChainID,
		DestChainID:    ev.DestChainID,
		SourceContract: []byte(ev.SourceContract),
		TokenID:        []byte(ev.TokenID),
		Nonce:          int64(ev.Nonce),
		AttestedPubKey: ev.AttestedPubKey,
		Recipient:      ev.Recipient,
		CollectionName: ev.CollectionName,
		TokenURI:       ev.TokenURI,
	}, nil
}
