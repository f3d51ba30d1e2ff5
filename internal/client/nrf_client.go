// Package client holds the HTTP clients for the peer network functions
// the AMF consumes: NRF registration, AUSF authentication, UDM subscriber
// data and SMF session management.
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

	"github.com/gholtzap/amf/internal/config"
)

// NRFClient handles communication with the NRF.
type NRFClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewNRFClient creates a new NRF client.
func NewNRFClient(baseURL string, logger *zap.Logger) *NRFClient {
	return &NRFClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// NFProfile represents the NF profile registered with the NRF.
type NFProfile struct {
	NFInstanceID  string   `json:"nfInstanceId"`
	NFType        string   `json:"nfType"`
	NFStatus      string   `json:"nfStatus"`
	PLMNID        PLMNID   `json:"plmnId"`
	IPv4Addresses []string `json:"ipv4Addresses,omitempty"`
	Capacity      int      `json:"capacity,omitempty"`
	Priority      int      `json:"priority,omitempty"`
	AMFInfo       *AMFInfo `json:"amfInfo,omitempty"`
}

// PLMNID represents a PLMN identifier.
type PLMNID struct {
	MCC string `json:"mcc"`
	MNC string `json:"mnc"`
}

// AMFInfo contains AMF-specific registration information.
type AMFInfo struct {
	AMFSetID    string  `json:"amfSetId,omitempty"`
	AMFRegionID string  `json:"amfRegionId,omitempty"`
	GUAMIList   []GUAMI `json:"guamiList,omitempty"`
}

// GUAMI represents a Globally Unique AMF Identifier.
type GUAMI struct {
	PLMNID PLMNID `json:"plmnId"`
	AMFID  string `json:"amfId"`
}

// BuildProfile constructs the AMF's NF profile from configuration.
func BuildProfile(cfg *config.Config) *NFProfile {
	profile := &NFProfile{
		NFInstanceID: cfg.NF.InstanceID,
		NFType:       "AMF",
		NFStatus:     "REGISTERED",
		IPv4Addresses: []string{
			fmt.Sprintf("%s:%d", cfg.SBI.BindAddress, cfg.SBI.Port),
		},
		Capacity: int(cfg.AMF.RelativeCapacity),
		Priority: 1,
	}

	if len(cfg.AMF.PlmnSupportList) > 0 {
		profile.PLMNID = PLMNID{
			MCC: cfg.AMF.PlmnSupportList[0].PlmnID.MCC,
			MNC: cfg.AMF.PlmnSupportList[0].PlmnID.MNC,
		}
	}

	if len(cfg.AMF.GuamiList) > 0 {
		info := &AMFInfo{
			AMFSetID:    cfg.AMF.GuamiList[0].AmfSetID,
			AMFRegionID: cfg.AMF.GuamiList[0].AmfRegionID,
		}
		for _, g := range cfg.AMF.GuamiList {
			info.GUAMIList = append(info.GUAMIList, GUAMI{
				PLMNID: PLMNID{MCC: g.PlmnID.MCC, MNC: g.PlmnID.MNC},
				AMFID:  g.AmfRegionID + g.AmfSetID + g.AmfPointer,
			})
		}
		profile.AMFInfo = info
	}

	return profile
}

// Register registers the AMF with the NRF.
func (c *NRFClient) Register(ctx context.Context, profile *NFProfile) error {
	url := fmt.Sprintf("%s/nnrf-nfm/v1/nf-instances/%s", c.baseURL, profile.NFInstanceID)

	body, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", url, bytes.NewReader(body))
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
		return fmt.Errorf("NRF returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Info("Registered with NRF", zap.String("nf_instance_id", profile.NFInstanceID))
	return nil
}

// Deregister removes the AMF's registration from the NRF.
func (c *NRFClient) Deregister(ctx context.Context, nfInstanceID string) error {
	url := fmt.Sprintf("%s/nnrf-nfm/v1/nf-instances/%s", c.baseURL, nfInstanceID)

	req, err := http.NewRequestWithContext(ctx, "DELETE", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("NRF returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Info("Deregistered from NRF", zap.String("nf_instance_id", nfInstanceID))
	return nil
}

// Heartbeat sends a keep-alive to the NRF.
func (c *NRFClient) Heartbeat(ctx context.Context, nfInstanceID string) error {
	url := fmt.Sprintf("%s/nnrf-nfm/v1/nf-instances/%s/heartbeat", c.baseURL, nfInstanceID)

	req, err := http.NewRequestWithContext(ctx, "PATCH", url, nil)
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
		return fmt.Errorf("NRF returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Debug("Heartbeat sent to NRF", zap.String("nf_instance_id", nfInstanceID))
	return nil
}
