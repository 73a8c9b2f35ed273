package ika

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

// HTTPClient talks to the Ika signing gateway over JSON.
type HTTPClient struct {
	cfg        *config.SignerConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient creates a new signing gateway client
func NewHTTPClient(cfg *config.SignerConfig, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
}

// RequestPresign opens a presign session
func (c *HTTPClient) RequestPresign(ctx context.Context, req *PresignRequest) error {
	var resp sessionResponse
	if err := c.post(ctx, "/v1/presign", req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return faults.Transient("sign", "presign request rejected", fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message))
	}
	return nil
}

// PresignStatus polls a presign session
func (c *HTTPClient) PresignStatus(ctx context.Context, sessionID string) (*SessionStatus, error) {
	return c.status(ctx, "/v1/presign/status", sessionID)
}

// RequestSign asks the network to sign a message under an open session
func (c *HTTPClient) RequestSign(ctx context.Context, req *SignRequest) error {
	var resp sessionResponse
	if err := c.post(ctx, "/v1/sign", req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return faults.Transient("sign", "sign request rejected", fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message))
	}
	return nil
}

// SignStatus polls a sign session
func (c *HTTPClient) SignStatus(ctx context.Context, sessionID string) (*SessionStatus, error) {
	return c.status(ctx, "/v1/sign/status", sessionID)
}

func (c *HTTPClient) status(ctx context.Context, path, sessionID string) (*SessionStatus, error) {
	req := struct {
		SessionID string `json:"session_id"`
	}{SessionID: sessionID}

	var resp sessionResponse
	if err := c.post(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, faults.Transient("sign", "status request rejected", fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message))
	}
	return &resp.SessionStatus, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return faults.Transient("sign", "gateway request failed", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode >= 500 {
		return faults.Transient("sign", "gateway unavailable", fmt.Errorf("status %d", httpResp.StatusCode))
	}
	if httpResp.StatusCode != http.StatusOK {
		return faults.Protocol("sign", "gateway rejected request", fmt.Errorf("status %d", httpResp.StatusCode))
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return faults.Transient("sign", "failed to read gateway response", err)
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return faults.Protocol("sign", "failed to decode gateway response", err)
	}
	return nil
}
