package ika

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"

	"github.com/Illuminfti/ika-tensei-relay/internal/metrics"
	"github.com/Illuminfti/ika-tensei-relay/pkg/config"
	"github.com/Illuminfti/ika-tensei-relay/pkg/faults"
	"github.com/Illuminfti/ika-tensei-relay/pkg/poll"
)

// Client is the gateway surface the coordinator drives. Satisfied by
// HTTPClient in production and by a fake in tests.
type Client interface {
	RequestPresign(ctx context.Context, req *PresignRequest) error
	PresignStatus(ctx context.Context, sessionID string) (*SessionStatus, error)
	RequestSign(ctx context.Context, req *SignRequest) error
	SignStatus(ctx context.Context, sessionID string) (*SessionStatus, error)
}

// Coordinator runs the two-phase signing flow against the Ika network. It
// holds the long-lived seed; everything session-scoped is derived fresh per
// call and wiped before returning.
type Coordinator struct {
	client Client
	cfg    *config.SignerConfig
	seed   []byte
	logger *zap.Logger
}

// NewCoordinator creates a signing coordinator from configuration
func NewCoordinator(client Client, cfg *config.SignerConfig, logger *zap.Logger) (*Coordinator, error) {
	seed, err := cfg.Seed()
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		client: client,
		cfg:    cfg,
		seed:   seed,
		logger: logger,
	}, nil
}

// Sign produces an attested signature over the 32-byte seal hash. Blocks
// until the network completes both phases or a timeout elapses; timeouts and
// failed sessions come back as retryable errors, a fresh session is cheap.
func (c *Coordinator) Sign(ctx context.Context, sealHash common.Hash) (string, error) {
	sessionID := uuid.NewString()
	logger := c.logger.With(
		zap.String("session_id", sessionID),
		zap.String("seal_hash", sealHash.Hex()))

	share, err := c.deriveShare(sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to derive session share: %w", err)
	}
	shareHex := hex.EncodeToString(share)
	zero(share)

	logger.Debug("opening presign session")
	if err := c.client.RequestPresign(ctx, &PresignRequest{
		SessionID:        sessionID,
		ParticipantShare: shareHex,
	}); err != nil {
		metrics.SigningSessions.WithLabelValues("presign", "error").Inc()
		return "", err
	}

	if _, err := c.await(ctx, sessionID, "presign", c.cfg.PresignTimeout, c.client.PresignStatus); err != nil {
		return "", err
	}

	logger.Debug("requesting signature")
	if err := c.client.RequestSign(ctx, &SignRequest{
		SessionID: sessionID,
		Message:   sealHash.Hex(),
	}); err != nil {
		metrics.SigningSessions.WithLabelValues("sign", "error").Inc()
		return "", err
	}

	status, err := c.await(ctx, sessionID, "sign", c.cfg.SignTimeout, c.client.SignStatus)
	if err != nil {
		return "", err
	}

	// 64-byte Ed25519 signature, hex, with or without the 0x prefix.
	if len(status.Signature) != 128 && len(status.Signature) != 130 {
		return "", faults.Protocol("sign", "malformed signature from network",
			fmt.Errorf("length %d", len(status.Signature)))
	}

	logger.Info("signing session completed")
	return status.Signature, nil
}

// await polls one session phase until it completes, fails or times out.
func (c *Coordinator) await(
	ctx context.Context,
	sessionID, phase string,
	timeout time.Duration,
	probe func(context.Context, string) (*SessionStatus, error),
) (*SessionStatus, error) {
	status, err := poll.WaitFor(ctx, c.cfg.PollInterval, timeout,
		func(ctx context.Context) (*SessionStatus, bool, error) {
			st, err := probe(ctx, sessionID)
			if err != nil {
				return nil, false, err
			}
			switch st.State {
			case StateCompleted:
				return st, true, nil
			case StateFailed:
				return nil, false, faults.Transient("sign", phase+" session failed", errors.New(st.Message))
			default:
				return nil, false, nil
			}
		})
	if err != nil {
		metrics.SigningSessions.WithLabelValues(phase, "error").Inc()
		if errors.Is(err, poll.ErrDeadline) {
			return nil, faults.Transient("sign", phase+" session timed out", err)
		}
		return nil, err
	}

	metrics.SigningSessions.WithLabelValues(phase, "ok").Inc()
	return status, nil
}

// deriveShare derives the session-scoped participant share from the
// long-lived seed. Deterministic per session, so nothing session-scoped
// ever needs to be stored.
func (c *Coordinator) deriveShare(sessionID string) ([]byte, error) {
	r := hkdf.New(sha256.New, c.seed, nil, []byte("ika-tensei/session/"+sessionID))
	share := make([]byte, 32)
	if _, err := io.ReadFull(r, share); err != nil {
		return nil, err
	}
	return share, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
