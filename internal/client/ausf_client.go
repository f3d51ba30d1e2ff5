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

// AUSFClient handles communication with the AUSF for UE authentication
// (TS 29.509).
type AUSFClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewAUSFClient creates a new AUSF client.
func NewAUSFClient(baseURL string, logger *zap.Logger) *AUSFClient {
	return &AUSFClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// UEAuthenticationRequest initiates authentication for a UE.
type UEAuthenticationRequest struct {
	SupiOrSuci         string `json:"supiOrSuci"`
	ServingNetworkName string `json:"servingNetworkName"`
}

// UEAuthenticationResponse carries the 5G-AKA challenge from the AUSF.
type UEAuthenticationResponse struct {
	AuthType  string         `json:"authType"`
	AuthCtxID string         `json:"authCtxId"`
	AuthData  *Var5gAuthData `json:"_5gAuthData,omitempty"`
}

// Var5gAuthData carries the authentication vector challenge parameters.
type Var5gAuthData struct {
	RAND string `json:"rand"`
	AUTN string `json:"autn"`
}

// AuthConfirmationRequest confirms the RES* computed by the UE.
type AuthConfirmationRequest struct {
	ResStar string `json:"resStar"`
}

// AuthConfirmationResponse is the authentication verdict.
type AuthConfirmationResponse struct {
	AuthResult string `json:"authResult"`
	Supi       string `json:"supi,omitempty"`
	Kseaf      string `json:"kseaf,omitempty"`
}

// InitiateAuthentication initiates UE authentication with the AUSF.
func (c *AUSFClient) InitiateAuthentication(ctx context.Context, req *UEAuthenticationRequest) (*UEAuthenticationResponse, error) {
	url := fmt.Sprintf("%s/nausf-auth/v1/ue-authentications", c.baseURL)

	var out UEAuthenticationResponse
	if err := c.postJSON(ctx, url, req, &out, http.StatusCreated); err != nil {
		return nil, err
	}

	c.logger.Debug("Authentication initiated with AUSF",
		zap.String("supi_or_suci", req.SupiOrSuci),
		zap.String("auth_ctx_id", out.AuthCtxID),
	)
	return &out, nil
}

// ConfirmAuthentication sends the UE's RES* for verification.
func (c *AUSFClient) ConfirmAuthentication(ctx context.Context, authCtxID string, req *AuthConfirmationRequest) (*AuthConfirmationResponse, error) {
	url := fmt.Sprintf("%s/nausf-auth/v1/ue-authentications/%s/5g-aka-confirmation", c.baseURL, authCtxID)

	var out AuthConfirmationResponse
	if err := c.putJSON(ctx, url, req, &out, http.StatusOK); err != nil {
		return nil, err
	}

	c.logger.Debug("Authentication confirmed with AUSF",
		zap.String("auth_ctx_id", authCtxID),
		zap.String("result", out.AuthResult),
	)
	return &out, nil
}

func (c *AUSFClient) postJSON(ctx context.Context, url string, in, out interface{}, wantStatus int) error {
	return c.doJSON(ctx, "POST", url, in, out, wantStatus)
}

func (c *AUSFClient) putJSON(ctx context.Context, url string, in, out interface{}, wantStatus int) error {
	return c.doJSON(ctx, "PUT", url, in, out, wantStatus)
}

func (c *AUSFClient) doJSON(ctx context.Context, method, url string, in, out interface{}, wantStatus int) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("AUSF returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
