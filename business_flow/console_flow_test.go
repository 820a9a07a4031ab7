package businessflow

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/voteflow/voteflow/app/services"
	"github.com/voteflow/voteflow/models"
	"github.com/voteflow/voteflow/utils"
)

// memoryCampaignRepo implements repository.CampaignRepository in memory
type memoryCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*models.Campaign
	nextID    uint
}

func newMemoryCampaignRepo() *memoryCampaignRepo {
	return &memoryCampaignRepo{campaigns: make(map[string]*models.Campaign)}
}

func (r *memoryCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.ID == id {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memoryCampaignRepo) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if filter.OperatorID != nil && c.OperatorID != *filter.OperatorID {
			continue
		}
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memoryCampaignRepo) Save(ctx context.Context, campaign *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	campaign.ID = r.nextID
	copied := *campaign
	r.campaigns[campaign.CampaignID] = &copied
	return nil
}

func (r *memoryCampaignRepo) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.campaigns)), nil
}

func (r *memoryCampaignRepo) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	c, _ := r.Count(ctx, filter)
	return c > 0, nil
}

func (r *memoryCampaignRepo) ByCampaignID(ctx context.Context, campaignID string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[campaignID]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (r *memoryCampaignRepo) Update(ctx context.Context, campaign *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *campaign
	r.campaigns[campaign.CampaignID] = &copied
	return nil
}

func (r *memoryCampaignRepo) ListByOperator(ctx context.Context, operatorID string, limit, offset int) ([]*models.Campaign, error) {
	return r.ByFilter(ctx, models.CampaignFilter{OperatorID: &operatorID}, "", limit, offset)
}

type noopDialer struct{}

type noopConn struct{ closed chan struct{} }

func (c *noopConn) ReadMessage() ([]byte, error) {
	<-c.closed
	return nil, context.Canceled
}

func (c *noopConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func (d *noopDialer) Dial(ctx context.Context, campaignID string) (services.TelemetryConn, error) {
	return &noopConn{closed: make(chan struct{})}, nil
}

type consoleFixture struct {
	console ConsoleFlow
	wizard  WizardFlow
	engine  *services.MockCampaignEngineService
	repo    *memoryCampaignRepo
}

func newConsoleFixture(t *testing.T) *consoleFixture {
	t.Helper()
	engine := services.NewMockCampaignEngineService()
	repo := newMemoryCampaignRepo()

	wizard := NewWizardFlow(
		NewIngestionFlow(services.NewMockExtractionService()),
		NewPaymentFlow(services.NewMockPaymentGatewayService(), NewMemoryReplayGuard(), newMemoryQuotaStore()),
		engine,
		repo,
		[]string{"op-vip"},
	)

	telemetry := services.NewTelemetryChannel(&noopDialer{}, 50)
	t.Cleanup(telemetry.Close)

	return &consoleFixture{
		console: NewConsoleFlow(telemetry, engine, wizard, repo),
		wizard:  wizard,
		engine:  engine,
		repo:    repo,
	}
}

// launchViaBypass walks a bypass draft to launch and returns draft and campaign IDs
func (fx *consoleFixture) launchViaBypass(t *testing.T) (string, string) {
	t.Helper()
	ctx := context.Background()

	draft, err := fx.wizard.CreateDraft(ctx, "op-vip", utils.ToPtr("starter"))
	require.NoError(t, err)
	_, err = fx.wizard.Ingest(ctx, "op-vip", draft.DraftID, "voters.csv", []byte(votersCSV))
	require.NoError(t, err)
	launched, err := fx.wizard.Compose(ctx, "op-vip", draft.DraftID, "hello")
	require.NoError(t, err)
	require.NotEmpty(t, launched.CampaignID)
	return draft.DraftID, launched.CampaignID
}

func TestConsoleSnapshotReportsEngineHealthAndWizardState(t *testing.T) {
	fx := newConsoleFixture(t)
	ctx := context.Background()

	draft, err := fx.wizard.CreateDraft(ctx, "op-1", nil)
	require.NoError(t, err)

	snap, err := fx.console.Snapshot(ctx, "op-1", draft.DraftID)
	require.NoError(t, err)
	assert.True(t, snap.EngineHealthy)
	assert.Equal(t, string(StatePlanSelection), snap.WizardState)
	assert.Equal(t, string(services.ConnectionIdle), snap.ConnectionState)

	fx.engine.HealthResult = false
	snap, err = fx.console.Snapshot(ctx, "op-1", "")
	require.NoError(t, err)
	assert.False(t, snap.EngineHealthy)
	assert.Empty(t, snap.WizardState)
}

func TestConsoleOpenTelemetryRequiresOwnership(t *testing.T) {
	fx := newConsoleFixture(t)
	ctx := context.Background()

	_, campaignID := fx.launchViaBypass(t)

	err := fx.console.OpenTelemetry(ctx, "op-other", campaignID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDraftNotFound)

	require.NoError(t, fx.console.OpenTelemetry(ctx, "op-vip", campaignID))

	snap, err := fx.console.Snapshot(ctx, "op-vip", "")
	require.NoError(t, err)
	assert.Equal(t, string(services.ConnectionOpen), snap.ConnectionState)
	assert.Equal(t, campaignID, snap.CampaignID)
}

func TestConsoleStopCampaign(t *testing.T) {
	fx := newConsoleFixture(t)
	ctx := context.Background()

	_, campaignID := fx.launchViaBypass(t)

	require.NoError(t, fx.console.StopCampaign(ctx, "op-vip", campaignID))
	assert.Equal(t, []string{campaignID}, fx.engine.StoppedIDs)

	record, err := fx.repo.ByCampaignID(ctx, campaignID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusStopped, record.Status)
	require.NotNil(t, record.CompletedAt)
}

func TestConsoleStopUnknownCampaign(t *testing.T) {
	fx := newConsoleFixture(t)

	err := fx.console.StopCampaign(context.Background(), "op-vip", "campaign_missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDraftNotFound)
	assert.Equal(t, 0, fx.engine.StopCalls)
}

func TestConsoleListCampaigns(t *testing.T) {
	fx := newConsoleFixture(t)
	ctx := context.Background()

	_, campaignID := fx.launchViaBypass(t)

	resp, err := fx.console.ListCampaigns(ctx, "op-vip", 0, 0)
	require.NoError(t, err)
	require.Len(t, resp.Campaigns, 1)
	assert.Equal(t, campaignID, resp.Campaigns[0].CampaignID)
	assert.Equal(t, string(models.CampaignStatusRunning), resp.Campaigns[0].Status)
	assert.Equal(t, 2, resp.Campaigns[0].Recipients)
	assert.Nil(t, resp.Campaigns[0].CompletedAt)

	// Other operators see an empty history
	resp, err = fx.console.ListCampaigns(ctx, "op-other", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, resp.Campaigns)
}

func TestConsoleExportVoters(t *testing.T) {
	fx := newConsoleFixture(t)
	ctx := context.Background()

	draftID, _ := fx.launchViaBypass(t)

	content, filename, err := fx.console.ExportVoters(ctx, "op-vip", draftID)
	require.NoError(t, err)
	assert.Contains(t, filename, ".xlsx")

	workbook, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer workbook.Close()

	rows, err := workbook.GetRows("Voters")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Name", "Mobile", "Page"}, rows[0][:3])
	assert.Equal(t, "Asha", rows[1][0])
	assert.Equal(t, "9876543210", rows[1][1])
}

func TestConsoleExportUnknownDraft(t *testing.T) {
	fx := newConsoleFixture(t)

	_, _, err := fx.console.ExportVoters(context.Background(), "op-vip", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}
