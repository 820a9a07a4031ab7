package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PaymentGatewayService verifies payment references against the gateway
// backend and locates the hosted checkout page.
type PaymentGatewayService interface {
	// Verify asks the gateway whether a payment reference settles the plan's
	// price. A false result with a nil error is a definitive rejection.
	Verify(ctx context.Context, reference, planID string, amount uint64) (bool, string, error)
	// PaymentPageURL returns the hosted checkout location for a plan.
	PaymentPageURL(planID string) string
}

// HTTPPaymentGatewayService implements PaymentGatewayService over the
// gateway's verification endpoint.
type HTTPPaymentGatewayService struct {
	domain      string
	checkoutURL string
	httpClient  *http.Client
}

// NewHTTPPaymentGatewayService creates a new HTTP-based gateway client
func NewHTTPPaymentGatewayService(domain, checkoutURL string, timeout time.Duration) *HTTPPaymentGatewayService {
	return &HTTPPaymentGatewayService{
		domain:      domain,
		checkoutURL: checkoutURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type verifyPaymentRequest struct {
	PaymentID string `json:"payment_id"`
	PlanID    string `json:"plan_id"`
	Amount    uint64 `json:"amount"`
}

type verifyPaymentResponse struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
}

func (s *HTTPPaymentGatewayService) Verify(ctx context.Context, reference, planID string, amount uint64) (bool, string, error) {
	payload, err := json.Marshal(verifyPaymentRequest{
		PaymentID: reference,
		PlanID:    planID,
		Amount:    amount,
	})
	if err != nil {
		return false, "", fmt.Errorf("failed to marshal verification payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.domain+"/api/verify-payment", bytes.NewReader(payload))
	if err != nil {
		return false, "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return false, "", fmt.Errorf("payment gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, "", fmt.Errorf("failed to read gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, "", fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed verifyPaymentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, "", fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return parsed.Verified, parsed.Message, nil
}

func (s *HTTPPaymentGatewayService) PaymentPageURL(planID string) string {
	sep := "?"
	if strings.Contains(s.checkoutURL, "?") {
		sep = "&"
	}
	return s.checkoutURL + sep + "plan=" + planID
}

// MockPaymentGatewayService implements PaymentGatewayService for development and testing
type MockPaymentGatewayService struct {
	VerifyCalls int
	Verified    bool
	Message     string
	Err         error
}

// NewMockPaymentGatewayService creates a new mock gateway client that
// verifies everything.
func NewMockPaymentGatewayService() *MockPaymentGatewayService {
	return &MockPaymentGatewayService{Verified: true, Message: "payment verified"}
}

func (m *MockPaymentGatewayService) Verify(ctx context.Context, reference, planID string, amount uint64) (bool, string, error) {
	m.VerifyCalls++
	if m.Err != nil {
		return false, "", m.Err
	}
	return m.Verified, m.Message, nil
}

func (m *MockPaymentGatewayService) PaymentPageURL(planID string) string {
	return "https://pay.example.test/checkout?plan=" + planID
}
