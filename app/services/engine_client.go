package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/voteflow/voteflow/models"
	"github.com/voteflow/voteflow/utils"
)

// StartCampaignRequest is the engine's launch payload
type StartCampaignRequest struct {
	Voters           models.VoterList `json:"voters_data"`
	MessageTemplate  *string          `json:"message_template"`
	PlanID           string           `json:"plan_id"`
	MaxMessages      int              `json:"max_messages"`
	PaymentReference string           `json:"payment_reference,omitempty"`
}

// CampaignEngineService drives the remote message-sending engine
type CampaignEngineService interface {
	// Start hands a verified campaign to the engine and returns its handle.
	Start(ctx context.Context, req StartCampaignRequest) (*models.CampaignHandle, error)
	// Stop asks the engine to halt a running campaign.
	Stop(ctx context.Context, campaignID string) error
	// Health reports whether the engine is reachable and ready.
	Health(ctx context.Context) bool
}

// HTTPCampaignEngineService implements CampaignEngineService over the
// engine's REST surface.
type HTTPCampaignEngineService struct {
	domain     string
	httpClient *http.Client
}

// NewHTTPCampaignEngineService creates a new HTTP-based engine client
func NewHTTPCampaignEngineService(domain string, timeout time.Duration) *HTTPCampaignEngineService {
	return &HTTPCampaignEngineService{
		domain: domain,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type startCampaignResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	CampaignID string `json:"campaign_id"`
}

func (s *HTTPCampaignEngineService) Start(ctx context.Context, req StartCampaignRequest) (*models.CampaignHandle, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal launch payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.domain+"/api/campaign/start", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("engine unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed startCampaignResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode engine response: %w", err)
	}
	if !parsed.Success || parsed.CampaignID == "" {
		return nil, fmt.Errorf("engine refused launch: %s", parsed.Message)
	}

	return &models.CampaignHandle{
		CampaignID: parsed.CampaignID,
		StartedAt:  utils.UTCNow(),
	}, nil
}

func (s *HTTPCampaignEngineService) Stop(ctx context.Context, campaignID string) error {
	url := fmt.Sprintf("%s/api/campaign/%s/stop", s.domain, campaignID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("engine unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("engine returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (s *HTTPCampaignEngineService) Health(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.domain+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// MockCampaignEngineService implements CampaignEngineService for development and testing
type MockCampaignEngineService struct {
	StartCalls   int
	StopCalls    int
	LastRequest  *StartCampaignRequest
	StoppedIDs   []string
	StartErr     error
	StopErr      error
	HealthResult bool
}

// NewMockCampaignEngineService creates a new mock engine client
func NewMockCampaignEngineService() *MockCampaignEngineService {
	return &MockCampaignEngineService{HealthResult: true}
}

func (m *MockCampaignEngineService) Start(ctx context.Context, req StartCampaignRequest) (*models.CampaignHandle, error) {
	m.StartCalls++
	m.LastRequest = &req
	if m.StartErr != nil {
		return nil, m.StartErr
	}
	return &models.CampaignHandle{
		CampaignID: "campaign_" + uuid.New().String(),
		StartedAt:  utils.UTCNow(),
	}, nil
}

func (m *MockCampaignEngineService) Stop(ctx context.Context, campaignID string) error {
	m.StopCalls++
	m.StoppedIDs = append(m.StoppedIDs, campaignID)
	return m.StopErr
}

func (m *MockCampaignEngineService) Health(ctx context.Context) bool {
	return m.HealthResult
}
