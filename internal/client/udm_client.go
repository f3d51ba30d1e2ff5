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

// UDMClient handles communication with the UDM for subscriber data
// management (TS 29.503).
type UDMClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewUDMClient creates a new UDM client.
func NewUDMClient(baseURL string, logger *zap.Logger) *UDMClient {
	return &UDMClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// AccessAndMobilitySubscriptionData is the AM subscription profile the AMF
// consumes during registration.
type AccessAndMobilitySubscriptionData struct {
	Gpsis             []string         `json:"gpsis,omitempty"`
	SubscribedUeAmbr  *UeAmbr          `json:"subscribedUeAmbr,omitempty"`
	Nssai             *SubscribedNssai `json:"nssai,omitempty"`
	SubscribedDnnList []string         `json:"subscribedDnnList,omitempty"`
}

// UeAmbr is the subscribed aggregate maximum bit rate.
type UeAmbr struct {
	Uplink   string `json:"uplink"`
	Downlink string `json:"downlink"`
}

// SubscribedNssai is the subscribed slice set.
type SubscribedNssai struct {
	DefaultSingleNssais []SubscribedSNssai `json:"defaultSingleNssais,omitempty"`
	SingleNssais        []SubscribedSNssai `json:"singleNssais,omitempty"`
}

// SubscribedSNssai identifies a subscribed slice.
type SubscribedSNssai struct {
	Sst uint8  `json:"sst"`
	Sd  string `json:"sd,omitempty"`
}

// GetAmData fetches the access and mobility subscription data for supi.
func (c *UDMClient) GetAmData(ctx context.Context, supi string) (*AccessAndMobilitySubscriptionData, error) {
	url := fmt.Sprintf("%s/nudm-sdm/v2/%s/am-data", c.baseURL, supi)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("UDM returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var data AccessAndMobilitySubscriptionData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("Fetched AM subscription data", zap.String("supi", supi))
	return &data, nil
}

// RegisterAmf records this AMF as the serving AMF for supi (UECM).
func (c *UDMClient) RegisterAmf(ctx context.Context, supi, nfInstanceID string) error {
	url := fmt.Sprintf("%s/nudm-uecm/v1/%s/registrations/amf-3gpp-access", c.baseURL, supi)

	body := fmt.Sprintf(`{"amfInstanceId":%q,"ratType":"NR"}`, nfInstanceID)
	req, err := http.NewRequestWithContext(ctx, "PUT", url, bytes.NewReader([]byte(body)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("UDM returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Debug("Registered as serving AMF", zap.String("supi", supi))
	return nil
}
