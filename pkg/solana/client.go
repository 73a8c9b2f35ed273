package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Illuminfti/ika-tensei-relay/pkg/config"
	"github.com/Illuminfti/ika-tensei-relay/pkg/faults"
)

// Sentinel errors for program rejections that a retrying pipeline treats as
// success. A redelivered verify or mint finding its work already done means
// an earlier attempt landed.
var (
	ErrAlreadyVerified = errors.New("seal already verified")
	ErrAlreadyMinted   = errors.New("seal already minted")
)

// Client talks to the destination gateway, which builds, signs and submits
// transactions against the rebirth program on Solana.
type Client struct {
	cfg        *config.DestinationConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new destination gateway client
func NewClient(cfg *config.DestinationConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
}

// VerifySeal submits the attested signature for on-chain verification.
// Returns ErrAlreadyVerified when a previous attempt landed.
func (c *Client) VerifySeal(ctx context.Context, req *VerifyRequest) error {
	req.Program = c.cfg.Program

	var resp verifyResponse
	if err := c.post(ctx, "/v1/seals/verify", req, &resp); err != nil {
		return err
	}
	if resp.Error == nil {
		c.logger.Debug("seal verified on destination",
			zap.String("seal_hash", req.SealHash),
			zap.String("tx_signature", resp.TxSignature))
		return nil
	}

	switch resp.Error.Code {
	case codeAlreadyVerified:
		return ErrAlreadyVerified
	case codePaused:
		return faults.Transient("verify", "rebirth program is paused", errors.New(resp.Error.Message))
	case codeInvalidSignature:
		return faults.Protocol("verify", "program rejected attested signature", errors.New(resp.Error.Message))
	case codeSupplyExhausted:
		return faults.Protocol("verify", "collection supply exhausted", errors.New(resp.Error.Message))
	default:
		return faults.Transient("verify", "gateway error", fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message))
	}
}

// MintSealed mints the reborn asset for a verified seal and returns the new
// asset address. Returns ErrAlreadyMinted when a previous attempt landed;
// callers recover the asset address via GetSealStatus.
func (c *Client) MintSealed(ctx context.Context, sealHash, name, uri string) (string, error) {
	req := MintRequest{
		Program:  c.cfg.Program,
		SealHash: sealHash,
		Name:     name,
		URI:      uri,
	}

	var resp mintResponse
	if err := c.post(ctx, "/v1/seals/mint", req, &resp); err != nil {
		return "", err
	}
	if resp.Error == nil {
		c.logger.Debug("reborn asset minted",
			zap.String("seal_hash", sealHash),
			zap.String("asset_address", resp.AssetAddress))
		return resp.AssetAddress, nil
	}

	switch resp.Error.Code {
	case codeAlreadyMinted:
		return "", ErrAlreadyMinted
	case codePaused:
		return "", faults.Transient("mint", "rebirth program is paused", errors.New(resp.Error.Message))
	case codeNotVerified:
		return "", faults.Protocol("mint", "seal not verified on destination", errors.New(resp.Error.Message))
	default:
		return "", faults.Transient("mint", "gateway error", fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message))
	}
}

// GetSealStatus reads the program's verification record for a seal. A seal
// the program has never seen reports as unverified.
func (c *Client) GetSealStatus(ctx context.Context, sealHash string) (*SealStatus, error) {
	req := statusRequest{Program: c.cfg.Program, SealHash: sealHash}

	var resp statusResponse
	if err := c.post(ctx, "/v1/seals/status", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		if resp.Error.Code == codeSealNotFound {
			return &SealStatus{}, nil
		}
		return nil, faults.Transient("verify", "gateway error", fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message))
	}
	return &SealStatus{Verified: resp.Verified, AssetAddress: resp.AssetAddress}, nil
}

func (c *Client) post(ctx context.Context, path string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RPCURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return faults.Transient("destination", "gateway request failed", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode >= 500 {
		return faults.Transient("destination", "gateway unavailable", fmt.Errorf("status %d", httpResp.StatusCode))
	}
	if httpResp.StatusCode != http.StatusOK {
		return faults.Protocol("destination", "gateway rejected request", fmt.Errorf("status %d", httpResp.StatusCode))
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return faults.Transient("destination", "failed to read gateway response", err)
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return faults.Protocol("destination", "failed to decode gateway response", err)
	}
	return nil
}
