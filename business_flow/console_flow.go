package businessflow

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/voteflow/voteflow/app/dto"
	"github.com/voteflow/voteflow/app/services"
	"github.com/voteflow/voteflow/models"
	"github.com/voteflow/voteflow/repository"
	"github.com/voteflow/voteflow/utils"
)

// ConsoleFlow is the live campaign console: telemetry subscription, progress
// snapshots, manual stop, and voter list export.
type ConsoleFlow interface {
	// OpenTelemetry subscribes the console to a campaign's event stream.
	OpenTelemetry(ctx context.Context, operatorID, campaignID string) error
	// CloseTelemetry drops the current stream.
	CloseTelemetry(ctx context.Context)
	// Snapshot returns the current console view. draftID is optional and
	// adds the wizard state for drafts still in flight.
	Snapshot(ctx context.Context, operatorID, draftID string) (*dto.ConsoleSnapshotResponse, error)
	// StopCampaign asks the engine to halt a running campaign.
	StopCampaign(ctx context.Context, operatorID, campaignID string) error
	// ListCampaigns returns the operator's campaign history, newest first.
	ListCampaigns(ctx context.Context, operatorID string, limit, offset int) (*dto.ListCampaignsResponse, error)
	// ExportVoters renders a draft's ingested list as an Excel workbook.
	ExportVoters(ctx context.Context, operatorID, draftID string) ([]byte, string, error)
}

// ConsoleFlowImpl implements ConsoleFlow over the telemetry channel and the
// engine client.
type ConsoleFlowImpl struct {
	telemetry    *services.TelemetryChannel
	engine       services.CampaignEngineService
	wizard       WizardFlow
	campaignRepo repository.CampaignRepository

	mu         sync.Mutex
	reconciled map[string]bool
}

// NewConsoleFlow creates a new console flow
func NewConsoleFlow(
	telemetry *services.TelemetryChannel,
	engine services.CampaignEngineService,
	wizard WizardFlow,
	campaignRepo repository.CampaignRepository,
) ConsoleFlow {
	return &ConsoleFlowImpl{
		telemetry:    telemetry,
		engine:       engine,
		wizard:       wizard,
		campaignRepo: campaignRepo,
		reconciled:   make(map[string]bool),
	}
}

func (f *ConsoleFlowImpl) OpenTelemetry(ctx context.Context, operatorID, campaignID string) error {
	if _, err := f.ownedCampaign(ctx, operatorID, campaignID); err != nil {
		return err
	}
	if err := f.telemetry.Open(ctx, campaignID); err != nil {
		return NewBusinessError("TELEMETRY_UNAVAILABLE", "failed to open telemetry stream", wrapTransport(err, ErrTelemetryUnavailable))
	}
	return nil
}

func (f *ConsoleFlowImpl) CloseTelemetry(ctx context.Context) {
	f.telemetry.Close()
}

func (f *ConsoleFlowImpl) Snapshot(ctx context.Context, operatorID, draftID string) (*dto.ConsoleSnapshotResponse, error) {
	snap := f.telemetry.Snapshot()

	if snap.Completed && snap.CampaignID != "" {
		f.reconcile(ctx, snap)
	}

	logEntries := make([]dto.LogEntryDTO, 0, len(snap.Log))
	for _, entry := range snap.Log {
		logEntries = append(logEntries, dto.LogEntryDTO{
			ID:        entry.ID,
			Timestamp: entry.Timestamp.Format(time.RFC3339),
			Message:   entry.Message,
			Severity:  string(entry.Severity),
		})
	}

	resp := &dto.ConsoleSnapshotResponse{
		Message:         "console snapshot",
		ConnectionState: string(snap.State),
		CampaignID:      snap.CampaignID,
		Running:         snap.Running,
		Pairing:         snap.Pairing,
		PairingArtifact: snap.PairingArtifact,
		Counters: dto.CountersDTO{
			Total:    snap.Counters.Total,
			Sent:     snap.Counters.Sent,
			Failed:   snap.Counters.Failed,
			Skipped:  snap.Counters.Skipped,
			Progress: snap.Counters.Progress(),
		},
		Log:           logEntries,
		EngineHealthy: f.engine.Health(ctx),
	}
	if draftID != "" {
		if state, ok := f.wizard.CurrentState(operatorID, draftID); ok {
			resp.WizardState = string(state)
		}
	}
	return resp, nil
}

// reconcile writes a completed campaign's final counters back to its record
// once per campaign per process.
func (f *ConsoleFlowImpl) reconcile(ctx context.Context, snap services.TelemetrySnapshot) {
	f.mu.Lock()
	if f.reconciled[snap.CampaignID] {
		f.mu.Unlock()
		return
	}
	f.reconciled[snap.CampaignID] = true
	f.mu.Unlock()

	campaign, err := f.campaignRepo.ByCampaignID(ctx, snap.CampaignID)
	if err != nil || campaign == nil {
		return
	}
	campaign.Sent = snap.Counters.Sent
	campaign.Failed = snap.Counters.Failed
	campaign.Status = models.CampaignStatusCompleted
	campaign.CompletedAt = utils.UTCNowPtr()
	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		log.Printf("Failed to reconcile campaign %s: %v", snap.CampaignID, err)
	}
}

func (f *ConsoleFlowImpl) StopCampaign(ctx context.Context, operatorID, campaignID string) error {
	campaign, err := f.ownedCampaign(ctx, operatorID, campaignID)
	if err != nil {
		return err
	}

	if err := f.engine.Stop(ctx, campaignID); err != nil {
		return NewBusinessError("ENGINE_FAILED", "failed to stop campaign", wrapTransport(err, ErrEngineFailed))
	}

	campaign.Status = models.CampaignStatusStopped
	campaign.CompletedAt = utils.UTCNowPtr()
	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		log.Printf("Failed to record stop for campaign %s: %v", campaignID, err)
	}
	return nil
}

func (f *ConsoleFlowImpl) ListCampaigns(ctx context.Context, operatorID string, limit, offset int) (*dto.ListCampaignsResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	campaigns, err := f.campaignRepo.ListByOperator(ctx, operatorID, limit, offset)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "failed to list campaigns", err)
	}

	out := make([]dto.CampaignDTO, 0, len(campaigns))
	for _, c := range campaigns {
		row := dto.CampaignDTO{
			CampaignID: c.CampaignID,
			PlanID:     c.PlanID,
			Recipients: c.Recipients,
			Sent:       c.Sent,
			Failed:     c.Failed,
			Status:     c.Status.String(),
			StartedAt:  c.StartedAt.Format(time.RFC3339),
		}
		if c.CompletedAt != nil {
			completed := c.CompletedAt.Format(time.RFC3339)
			row.CompletedAt = &completed
		}
		out = append(out, row)
	}
	return &dto.ListCampaignsResponse{
		Message:   "campaign history",
		Campaigns: out,
	}, nil
}

func (f *ConsoleFlowImpl) ExportVoters(ctx context.Context, operatorID, draftID string) ([]byte, string, error) {
	voters, err := f.wizard.DraftVoters(ctx, operatorID, draftID)
	if err != nil {
		return nil, "", err
	}

	workbook := excelize.NewFile()
	defer workbook.Close()

	sheet := "Voters"
	index, err := workbook.NewSheet(sheet)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create worksheet: %w", err)
	}
	workbook.SetActiveSheet(index)
	if err := workbook.DeleteSheet("Sheet1"); err != nil {
		return nil, "", fmt.Errorf("failed to drop default worksheet: %w", err)
	}

	headers := []string{"Name", "Mobile", "Page"}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := workbook.SetCellValue(sheet, cell, header); err != nil {
			return nil, "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, voter := range voters {
		values := []any{voter.Name, voter.Mobile, voter.Page}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := workbook.SetCellValue(sheet, cell, value); err != nil {
				return nil, "", fmt.Errorf("failed to write row %d: %w", row+1, err)
			}
		}
	}

	buf, err := workbook.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to render workbook: %w", err)
	}

	short := draftID
	if len(short) > 8 {
		short = short[:8]
	}
	filename := fmt.Sprintf("voters_%s_%s.xlsx", short, utils.UTCNow().Format("20060102_150405"))
	return buf.Bytes(), filename, nil
}

// ownedCampaign loads a campaign record and checks the caller owns it.
func (f *ConsoleFlowImpl) ownedCampaign(ctx context.Context, operatorID, campaignID string) (*models.Campaign, error) {
	campaign, err := f.campaignRepo.ByCampaignID(ctx, campaignID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "failed to load campaign", err)
	}
	if campaign == nil || campaign.OperatorID != operatorID {
		return nil, NewBusinessError("DRAFT_NOT_FOUND", "campaign not found: "+campaignID, ErrDraftNotFound)
	}
	return campaign, nil
}
