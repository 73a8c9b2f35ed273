package near

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Illuminfti/ika-tensei-relay/pkg/config"
	"github.com/Illuminfti/ika-tensei-relay/pkg/faults"
)

// Client talks to the origin gateway, a thin JSON service fronting the
// seal-initiator contract on NEAR. Reads are indexer-backed; the complete
// call is relayed as a meta-transaction, which is safe because the contract
// method is permissionless.
type Client struct {
	cfg        *config.OriginConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new origin gateway client
func NewClient(cfg *config.OriginConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
}

// FetchSealEvents returns up to limit deposit events with seq > afterSeq,
// in ascending seq order.
func (c *Client) FetchSealEvents(ctx context.Context, afterSeq int64, limit int) ([]SealEvent, error) {
	req := eventsRequest{
		Contract: c.cfg.SealContract,
		AfterSeq: afterSeq,
		Limit:    limit,
	}

	var resp eventsResponse
	if err := c.post(ctx, "/v1/seal-events/query", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, faults.Transient("origin", "gateway error", fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message))
	}
	return resp.Events, nil
}

// MarkCompleted records the destination asset against the seal on the origin
// contract. Completing an already-completed seal is success; the workflow
// outcome is the same either way.
func (c *Client) MarkCompleted(ctx context.Context, sealHash, destAsset string) error {
	req := completeRequest{
		Contract:  c.cfg.SealContract,
		SealHash:  sealHash,
		DestAsset: destAsset,
	}

	var resp completeResponse
	if err := c.post(ctx, "/v1/seal-events/complete", req, &resp); err != nil {
		return err
	}
	if resp.Error == nil {
		return nil
	}

	switch resp.Error.Code {
	case codeAlreadyCompleted:
		c.logger.Debug("seal already completed on origin", zap.String("seal_hash", sealHash))
		return nil
	case codeNotFound:
		return faults.Protocol("origin", "seal not found on origin contract", fmt.Errorf("seal %s", sealHash))
	default:
		return faults.Transient("origin", "gateway error", fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message))
	}
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
		return faults.Transient("origin", "gateway request failed", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode >= 500 {
		return faults.Transient("origin", "gateway unavailable", fmt.Errorf("status %d", httpResp.StatusCode))
	}
	if httpResp.StatusCode != http.StatusOK {
		return faults.Protocol("origin", "gateway rejected request", fmt.Errorf("status %d", httpResp.StatusCode))
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return faults.Transient("origin", "failed to read gateway response", err)
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return faults.Protocol("origin", "failed to decode gateway response", err)
	}
	return nil
}
