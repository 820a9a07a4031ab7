// Package services provides clients for the remote collaborators the
// orchestrator depends on: document extraction, the campaign engine, the
// payment gateway, and the live telemetry stream.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/voteflow/voteflow/models"
)

// ExtractionResult carries the voter records recovered from an uploaded
// document together with the extraction trace.
type ExtractionResult struct {
	Voters     models.VoterList
	TotalCount int
	WithMobile int
	Log        []string
}

// ExtractionService recovers voter contact lists from scanned documents and
// spreadsheets via the remote extraction backend.
type ExtractionService interface {
	// ExtractScan runs OCR-backed extraction on a scanned voter roll (PDF).
	ExtractScan(ctx context.Context, filename string, content []byte) (*ExtractionResult, error)
	// ParseSpreadsheet parses an Excel voter list on the backend.
	ParseSpreadsheet(ctx context.Context, filename string, content []byte) (*ExtractionResult, error)
}

// HTTPExtractionService implements ExtractionService against the extraction
// backend's multipart upload endpoints.
type HTTPExtractionService struct {
	domain     string
	httpClient *http.Client
}

// NewHTTPExtractionService creates a new HTTP-based extraction service
func NewHTTPExtractionService(domain string, timeout time.Duration) *HTTPExtractionService {
	return &HTTPExtractionService{
		domain: domain,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type extractedVoter struct {
	Name   string `json:"NAME"`
	Mobile string `json:"MOBILE"`
	Page   int    `json:"PAGE"`
}

type extractScanResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Voters     []extractedVoter `json:"voters"`
		TotalCount int              `json:"total_count"`
		WithMobile int              `json:"with_mobile"`
		Log        []string         `json:"log"`
	} `json:"data"`
}

type parseSpreadsheetResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Voters  []extractedVoter `json:"voters"`
}

func (s *HTTPExtractionService) ExtractScan(ctx context.Context, filename string, content []byte) (*ExtractionResult, error) {
	body, err := s.postFile(ctx, "/api/extract-pdf", filename, content)
	if err != nil {
		return nil, err
	}

	var parsed extractScanResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("extraction backend rejected document: %s", parsed.Message)
	}

	result := &ExtractionResult{
		Voters:     toVoterList(parsed.Data.Voters),
		TotalCount: parsed.Data.TotalCount,
		WithMobile: parsed.Data.WithMobile,
		Log:        parsed.Data.Log,
	}
	if result.TotalCount == 0 {
		result.TotalCount = len(result.Voters)
	}
	return result, nil
}

func (s *HTTPExtractionService) ParseSpreadsheet(ctx context.Context, filename string, content []byte) (*ExtractionResult, error) {
	body, err := s.postFile(ctx, "/api/upload-excel", filename, content)
	if err != nil {
		return nil, err
	}

	var parsed parseSpreadsheetResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode spreadsheet response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("extraction backend rejected spreadsheet: %s", parsed.Message)
	}

	voters := toVoterList(parsed.Voters)
	return &ExtractionResult{
		Voters:     voters,
		TotalCount: len(voters),
		WithMobile: voters.UsableCount(),
	}, nil
}

func (s *HTTPExtractionService) postFile(ctx context.Context, path, filename string, content []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart request: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.domain+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction backend returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func toVoterList(in []extractedVoter) models.VoterList {
	out := make(models.VoterList, 0, len(in))
	for _, v := range in {
		out = append(out, models.VoterContact{
			Name:   v.Name,
			Mobile: v.Mobile,
			Page:   v.Page,
		})
	}
	return out
}

// MockExtractionService implements ExtractionService for development and testing
type MockExtractionService struct {
	ScanCalls        int
	SpreadsheetCalls int
	Result           *ExtractionResult
	Err              error
}

// NewMockExtractionService creates a new mock extraction service
func NewMockExtractionService() *MockExtractionService {
	return &MockExtractionService{}
}

func (m *MockExtractionService) ExtractScan(ctx context.Context, filename string, content []byte) (*ExtractionResult, error) {
	m.ScanCalls++
	return m.mockResult(filename)
}

func (m *MockExtractionService) ParseSpreadsheet(ctx context.Context, filename string, content []byte) (*ExtractionResult, error) {
	m.SpreadsheetCalls++
	return m.mockResult(filename)
}

func (m *MockExtractionService) mockResult(filename string) (*ExtractionResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	voters := models.VoterList{
		{Name: "MOCK VOTER", Mobile: "9876543210", Page: 1},
	}
	return &ExtractionResult{
		Voters:     voters,
		TotalCount: len(voters),
		WithMobile: voters.UsableCount(),
		Log:        []string{fmt.Sprintf("mock extraction of %s", filename)},
	}, nil
}
