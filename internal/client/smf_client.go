package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// SMFClient handles communication with the SMF for PDU session management
// (TS 29.502).
type SMFClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewSMFClient creates a new SMF client.
func NewSMFClient(baseURL string, logger *zap.Logger) *SMFClient {
	return &SMFClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// SMContextCreateRequest asks the SMF to create a session management
// context for a UE's PDU session.
type SMContextCreateRequest struct {
	Supi         string `json:"supi"`
	PduSessionID uint8  `json:"pduSessionId"`
	Dnn          string `json:"dnn"`
	SNssai       struct {
		Sst uint8  `json:"sst"`
		Sd  string `json:"sd,omitempty"`
	} `json:"sNssai"`
	AnType      string `json:"anType"`
	N1SmMsg     []byte `json:"n1SmMsg,omitempty"`
	ServingNfID string `json:"servingNfId"`
}

// SMContextCreateResponse is the SMF's answer to context creation.
type SMContextCreateResponse struct {
	SMContextRef string `json:"smContextRef"`
	N2SmInfo     []byte `json:"n2SmInfo,omitempty"`
}

// CreateSMContext creates a session management context at the SMF.
func (c *SMFClient) CreateSMContext(ctx context.Context, req *SMContextCreateRequest) (*SMContextCreateResponse, error) {
	url := fmt.Sprintf("%s/nsmf-pdusession/v1/sm-contexts", c.baseURL)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("SMF returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out SMContextCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("SM context created",
		zap.String("supi", req.Supi),
		zap.Uint8("pdu_session_id", req.PduSessionID),
		zap.String("sm_context_ref", out.SMContextRef),
	)
	return &out, nil
}

// ReleaseSMContext releases a session management context at the SMF.
func (c *SMFClient) ReleaseSMContext(ctx context.Context, smContextRef string) error {
	url := fmt.Sprintf("%s/nsmf-pdusession/v1/sm-contexts/%s/release", c.baseURL, smContextRef)

	req, err := http.NewRequestWithContext(ctx, "POST", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SMF returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Debug("SM context released", zap.String("sm_context_ref", smContextRef))
	return nil
}
