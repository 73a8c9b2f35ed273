package relayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Illuminfti/ika-tensei-relay/internal/metrics"
	"github.com/Illuminfti/ika-tensei-relay/pkg/db"
	"github.com/Illuminfti/ika-tensei-relay/pkg/faults"
	"github.com/Illuminfti/ika-tensei-relay/pkg/solana"
)

// Pipeline drives one seal workflow through its stages. Every stage reads
// the durable status first and advances it through guarded updates, so a
// redelivered or resumed workflow re-enters exactly where it left off.
type Pipeline struct {
	store  SealStore
	origin OriginClient
	dest   DestinationClient
	signer SealSigner
	logger *zap.Logger
}

// NewPipeline creates a workflow pipeline
func NewPipeline(store SealStore, origin OriginClient, dest DestinationClient, signer SealSigner, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:  store,
		origin: origin,
		dest:   dest,
		signer: signer,
		logger: logger,
	}
}

// Run processes the seal from its current status to completion. Returns nil
// when the workflow reached a terminal state or was already done; any error
// is classified for the queue to act on.
func (p *Pipeline) Run(ctx context.Context, sealHash string) error {
	for {
		rec, err := p.store.GetSealRecord(ctx, sealHash)
		if err != nil {
			return faults.Transient("pipeline", "failed to load record", err)
		}
		if rec == nil {
			return faults.Invariant("pipeline", "queued seal has no record", fmt.Errorf("seal %s", sealHash))
		}

		switch rec.Status {
		case db.StatusSealed:
			err = p.store.UpdateStatus(ctx, sealHash, db.StatusSealed, db.StatusSigning)
		case db.StatusSigning:
			err = p.sign(ctx, rec)
		case db.StatusSigned:
			err = p.store.UpdateStatus(ctx, sealHash, db.StatusSigned, db.StatusVerifying)
		case db.StatusVerifying:
			err = p.verify(ctx, rec)
		case db.StatusVerified:
			err = p.store.UpdateStatus(ctx, sealHash, db.StatusVerified, db.StatusMinting)
		case db.StatusMinting:
			err = p.mint(ctx, rec)
		case db.StatusMinted:
			err = p.store.UpdateStatus(ctx, sealHash, db.StatusMinted, db.StatusClosing)
		case db.StatusClosing:
			err = p.finalize(ctx, rec)
		case db.StatusCompleted:
			return nil
		case db.StatusFailed:
			// Not ours to touch; an operator resets it for retry.
			return nil
		default:
			return faults.Invariant("pipeline", "record in unknown status", fmt.Errorf("status %s", rec.Status))
		}

		if err != nil {
			return err
		}
	}
}

func (p *Pipeline) sign(ctx context.Context, rec *db.SealRecord) error {
	defer observeStage("sign")()

	signature, err := p.signer.Sign(ctx, common.HexToHash(rec.SealHash))
	if err != nil {
		return err
	}

	if err := p.store.SetSignature(ctx, rec.SealHash, signature); err != nil {
		return faults.Transient("sign", "failed to store signature", err)
	}

	p.logger.Info("seal signed", zap.String("seal_hash", rec.SealHash))
	return nil
}

func (p *Pipeline) verify(ctx context.Context, rec *db.SealRecord) error {
	defer observeStage("verify")()

	err := p.dest.VerifySeal(ctx, &solana.VerifyRequest{
		SealHash:       rec.SealHash,
		Signature:      rec.Signature,
		AttestedPubKey: rec.AttestedPubKey,
		Recipient:      rec.Recipient,
		SourceChainID:  rec.SourceChainID,
		SourceContract: string(rec.SourceContract),
		TokenID:        string(rec.TokenID),
	})
	switch {
	case err == nil:
	case errors.Is(err, solana.ErrAlreadyVerified):
		// An earlier attempt landed; same outcome.
		p.logger.Debug("seal was already verified", zap.String("seal_hash", rec.SealHash))
	default:
		return err
	}

	if err := p.store.UpdateStatus(ctx, rec.SealHash, db.StatusVerifying, db.StatusVerified); err != nil {
		return faults.Transient("verify", "failed to advance record", err)
	}

	p.logger.Info("seal verified on destination", zap.String("seal_hash", rec.SealHash))
	return nil
}

// mint issues the reborn asset. The destination program enforces one mint
// per seal; this side makes sure a crash between the mint landing and the
// local update never produces a second mint attempt that could mask the
// first, by consulting the program's own record before minting.
func (p *Pipeline) mint(ctx context.Context, rec *db.SealRecord) error {
	defer observeStage("mint")()

	status, err := p.dest.GetSealStatus(ctx, rec.SealHash)
	if err != nil {
		return err
	}

	if rec.DestinationAsset != "" && status.AssetAddress != "" && rec.DestinationAsset != status.AssetAddress {
		return faults.Invariant("mint", "destination asset contradicts local record",
			fmt.Errorf("local %s, on-chain %s", rec.DestinationAsset, status.AssetAddress))
	}

	asset := status.AssetAddress
	if asset == "" {
		asset, err = p.dest.MintSealed(ctx, rec.SealHash, rec.CollectionName, rec.TokenURI)
		if errors.Is(err, solana.ErrAlreadyMinted) {
			// Race with our own earlier attempt; the program knows the asset.
			status, err = p.dest.GetSealStatus(ctx, rec.SealHash)
			if err != nil {
				return err
			}
			asset = status.AssetAddress
		} else if err != nil {
			return err
		}
	}
	if asset == "" {
		return faults.Invariant("mint", "mint reported done without an asset address",
			fmt.Errorf("seal %s", rec.SealHash))
	}

	if err := p.store.SetDestinationAsset(ctx, rec.SealHash, asset); err != nil {
		if errors.Is(err, db.ErrNoTransition) {
			// Asset already linked by a previous run; verify it matches.
			current, getErr := p.store.GetSealRecord(ctx, rec.SealHash)
			if getErr == nil && current != nil && current.DestinationAsset == asset {
				return nil
			}
			return faults.Invariant("mint", "destination asset contradicts local record",
				fmt.Errorf("seal %s", rec.SealHash))
		}
		return faults.Transient("mint", "failed to link destination asset", err)
	}

	p.logger.Info("reborn asset minted",
		zap.String("seal_hash", rec.SealHash),
		zap.String("asset_address", asset))
	return nil
}

func (p *Pipeline) finalize(ctx context.Context, rec *db.SealRecord) error {
	defer observeStage("finalize")()

	if err := p.origin.MarkCompleted(ctx, rec.SealHash, rec.DestinationAsset); err != nil {
		return err
	}

	if err := p.store.UpdateStatus(ctx, rec.SealHash, db.StatusClosing, db.StatusCompleted); err != nil {
		return faults.Transient("finalize", "failed to complete record", err)
	}

	metrics.SealsFinished.WithLabelValues("completed").Inc()
	p.logger.Info("migration completed",
		zap.String("seal_hash", rec.SealHash),
		zap.String("asset_address", rec.DestinationAsset))
	return nil
}

func observeStage(stage string) func() {
	start := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
