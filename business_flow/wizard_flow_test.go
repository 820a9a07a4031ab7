package businessflow

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voteflow/voteflow/app/services"
	"github.com/voteflow/voteflow/models"
	"github.com/voteflow/voteflow/utils"
)

// memoryCampaignSaver records launched campaigns for flow tests
type memoryCampaignSaver struct {
	mu    sync.Mutex
	saved []*models.Campaign
}

func (s *memoryCampaignSaver) Save(ctx context.Context, campaign *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, campaign)
	return nil
}

type wizardFixture struct {
	flow      WizardFlow
	engine    *services.MockCampaignEngineService
	gateway   *services.MockPaymentGatewayService
	quotas    *memoryQuotaStore
	campaigns *memoryCampaignSaver
}

func newWizardFixture(t *testing.T, bypassOperators ...string) *wizardFixture {
	t.Helper()
	engine := services.NewMockCampaignEngineService()
	gateway := services.NewMockPaymentGatewayService()
	quotas := newMemoryQuotaStore()
	campaigns := &memoryCampaignSaver{}

	flow := NewWizardFlow(
		NewIngestionFlow(services.NewMockExtractionService()),
		NewPaymentFlow(gateway, NewMemoryReplayGuard(), quotas),
		engine,
		campaigns,
		bypassOperators,
	)
	return &wizardFixture{
		flow:      flow,
		engine:    engine,
		gateway:   gateway,
		quotas:    quotas,
		campaigns: campaigns,
	}
}

const votersCSV = "Name,Mobile\nAsha,9876543210\nBala,9876543211\n"

func TestWizardHappyPath(t *testing.T) {
	fx := newWizardFixture(t)
	ctx := context.Background()

	draft, err := fx.flow.CreateDraft(ctx, "op-1", nil)
	require.NoError(t, err)
	assert.Equal(t, string(StatePlanSelection), draft.State)
	assert.False(t, draft.BypassPayment)

	draft, err = fx.flow.SelectPlan(ctx, "op-1", draft.DraftID, "starter")
	require.NoError(t, err)
	assert.Equal(t, string(StateIngestion), draft.State)

	draft, err = fx.flow.Ingest(ctx, "op-1", draft.DraftID, "voters.csv", []byte(votersCSV))
	require.NoError(t, err)
	assert.Equal(t, string(StateComposition), draft.State)
	assert.Equal(t, 2, draft.UsableNumbers)

	draft, err = fx.flow.Compose(ctx, "op-1", draft.DraftID, "Vote for progress")
	require.NoError(t, err)
	assert.Equal(t, string(StatePaymentPending), draft.State)

	dispatch, err := fx.flow.DispatchPayment(ctx, "op-1", draft.DraftID)
	require.NoError(t, err)
	assert.Equal(t, string(StatePaymentVerification), dispatch.State)
	assert.Contains(t, dispatch.PaymentURL, "plan=starter")

	verify, err := fx.flow.SubmitPaymentReference(ctx, "op-1", draft.DraftID, "pay_ABC123xyz9")
	require.NoError(t, err)
	assert.True(t, verify.Verified)
	assert.Equal(t, string(StateLaunched), verify.State)
	assert.NotEmpty(t, verify.CampaignID)
	require.NotNil(t, verify.StartedAt)

	assert.Equal(t, 1, fx.engine.StartCalls)
	require.NotNil(t, fx.engine.LastRequest)
	require.NotNil(t, fx.engine.LastRequest.MessageTemplate)
	assert.Equal(t, "Vote for progress", *fx.engine.LastRequest.MessageTemplate)
	assert.Equal(t, 500, fx.engine.LastRequest.MaxMessages)

	require.Len(t, fx.campaigns.saved, 1)
	assert.Equal(t, verify.CampaignID, fx.campaigns.saved[0].CampaignID)
	assert.Equal(t, "op-1", fx.campaigns.saved[0].OperatorID)
	assert.Equal(t, models.CampaignStatusRunning, fx.campaigns.saved[0].Status)
}

func TestWizardPreSelectedPlanSkipsSelection(t *testing.T) {
	fx := newWizardFixture(t)

	draft, err := fx.flow.CreateDraft(context.Background(), "op-1", utils.ToPtr("growth"))
	require.NoError(t, err)
	assert.Equal(t, string(StateIngestion), draft.State)
	assert.Equal(t, "growth", draft.PlanID)
}

func TestWizardCreateDraftUnknownPlan(t *testing.T) {
	fx := newWizardFixture(t)

	_, err := fx.flow.CreateDraft(context.Background(), "op-1", utils.ToPtr("platinum"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestWizardBypassLaunchesWithoutPayment(t *testing.T) {
	fx := newWizardFixture(t, "op-vip")
	ctx := context.Background()

	draft, err := fx.flow.CreateDraft(ctx, "op-vip", utils.ToPtr("starter"))
	require.NoError(t, err)
	assert.True(t, draft.BypassPayment)

	draft, err = fx.flow.Ingest(ctx, "op-vip", draft.DraftID, "voters.csv", []byte(votersCSV))
	require.NoError(t, err)

	draft, err = fx.flow.Compose(ctx, "op-vip", draft.DraftID, "")
	require.NoError(t, err)
	assert.Equal(t, string(StateLaunched), draft.State)
	assert.NotEmpty(t, draft.CampaignID)

	// No payment, no gateway traffic, empty template stays nil
	assert.Equal(t, 0, fx.gateway.VerifyCalls)
	require.NotNil(t, fx.engine.LastRequest)
	assert.Nil(t, fx.engine.LastRequest.MessageTemplate)
}

func TestWizardInvalidTransitions(t *testing.T) {
	fx := newWizardFixture(t)
	ctx := context.Background()

	draft, err := fx.flow.CreateDraft(ctx, "op-1", nil)
	require.NoError(t, err)

	// Cannot ingest or compose before a plan is selected
	_, err = fx.flow.Ingest(ctx, "op-1", draft.DraftID, "voters.csv", []byte(votersCSV))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = fx.flow.Compose(ctx, "op-1", draft.DraftID, "hello")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = fx.flow.DispatchPayment(ctx, "op-1", draft.DraftID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = fx.flow.SubmitPaymentReference(ctx, "op-1", draft.DraftID, "pay_ABC123xyz9")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Selecting a plan twice is not allowed either
	_, err = fx.flow.SelectPlan(ctx, "op-1", draft.DraftID, "starter")
	require.NoError(t, err)
	_, err = fx.flow.SelectPlan(ctx, "op-1", draft.DraftID, "growth")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWizardStepBack(t *testing.T) {
	fx := newWizardFixture(t)
	ctx := context.Background()

	draft, err := fx.flow.CreateDraft(ctx, "op-1", utils.ToPtr("starter"))
	require.NoError(t, err)
	assert.Equal(t, string(StateIngestion), draft.State)

	// Ingestion steps back to plan selection and clears the plan
	draft, err = fx.flow.StepBack(ctx, "op-1", draft.DraftID)
	require.NoError(t, err)
	assert.Equal(t, string(StatePlanSelection), draft.State)
	assert.Empty(t, draft.PlanID)

	// Walk forward to verification, then step back to payment pending
	draft, err = fx.flow.SelectPlan(ctx, "op-1", draft.DraftID, "starter")
	require.NoError(t, err)
	draft, err = fx.flow.Ingest(ctx, "op-1", draft.DraftID, "voters.csv", []byte(votersCSV))
	require.NoError(t, err)
	draft, err = fx.flow.Compose(ctx, "op-1", draft.DraftID, "msg")
	require.NoError(t, err)
	dispatch, err := fx.flow.DispatchPayment(ctx, "op-1", draft.DraftID)
	require.NoError(t, err)
	assert.Equal(t, string(StatePaymentVerification), dispatch.State)

	draft, err = fx.flow.StepBack(ctx, "op-1", draft.DraftID)
	require.NoError(t, err)
	assert.Equal(t, string(StatePaymentPending), draft.State)

	// Payment pending has no back edge
	_, err = fx.flow.StepBack(ctx, "op-1", draft.DraftID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWizardCancelIsSideEffectFree(t *testing.T) {
	fx := newWizardFixture(t)
	ctx := context.Background()

	draft, err := fx.flow.CreateDraft(ctx, "op-1", utils.ToPtr("starter"))
	require.NoError(t, err)
	_, err = fx.flow.Ingest(ctx, "op-1", draft.DraftID, "voters.csv", []byte(votersCSV))
	require.NoError(t, err)

	require.NoError(t, fx.flow.Cancel(ctx, "op-1", draft.DraftID))

	_, err = fx.flow.Status(ctx, "op-1", draft.DraftID)
	assert.ErrorIs(t, err, ErrDraftNotFound)

	assert.Equal(t, 0, fx.engine.StartCalls)
	assert.Equal(t, 0, fx.gateway.VerifyCalls)
	record, _ := fx.quotas.Get(ctx, "op-1")
	assert.Nil(t, record)
}

func TestWizardCancelAfterLaunchRejected(t *testing.T) {
	fx := newWizardFixture(t, "op-vip")
	ctx := context.Background()

	draft, err := fx.flow.CreateDraft(ctx, "op-vip", utils.ToPtr("starter"))
	require.NoError(t, err)
	_, err = fx.flow.Ingest(ctx, "op-vip", draft.DraftID, "voters.csv", []byte(votersCSV))
	require.NoError(t, err)
	draft, err = fx.flow.Compose(ctx, "op-vip", draft.DraftID, "")
	require.NoError(t, err)
	require.Equal(t, string(StateLaunched), draft.State)

	err = fx.flow.Cancel(ctx, "op-vip", draft.DraftID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWizardOwnershipEnforced(t *testing.T) {
	fx := newWizardFixture(t)
	ctx := context.Background()

	draft, err := fx.flow.CreateDraft(ctx, "op-1", nil)
	require.NoError(t, err)

	_, err = fx.flow.Status(ctx, "op-2", draft.DraftID)
	assert.ErrorIs(t, err, ErrDraftNotFound)

	_, err = fx.flow.SelectPlan(ctx, "op-2", draft.DraftID, "starter")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestWizardTemplateTooLong(t *testing.T) {
	fx := newWizardFixture(t)
	ctx := context.Background()

	draft, err := fx.flow.CreateDraft(ctx, "op-1", utils.ToPtr("starter"))
	require.NoError(t, err)
	_, err = fx.flow.Ingest(ctx, "op-1", draft.DraftID, "voters.csv", []byte(votersCSV))
	require.NoError(t, err)

	long := make([]byte, utils.MaxTemplateLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = fx.flow.Compose(ctx, "op-1", draft.DraftID, string(long))
	assert.ErrorIs(t, err, ErrTemplateTooLong)
}

func TestWizardFailedVerificationKeepsState(t *testing.T) {
	fx := newWizardFixture(t)
	fx.gateway.Verified = false
	fx.gateway.Message = "payment not found"
	ctx := context.Background()

	draft, err := fx.flow.CreateDraft(ctx, "op-1", utils.ToPtr("starter"))
	require.NoError(t, err)
	_, err = fx.flow.Ingest(ctx, "op-1", draft.DraftID, "voters.csv", []byte(votersCSV))
	require.NoError(t, err)
	_, err = fx.flow.Compose(ctx, "op-1", draft.DraftID, "msg")
	require.NoError(t, err)
	_, err = fx.flow.DispatchPayment(ctx, "op-1", draft.DraftID)
	require.NoError(t, err)

	verify, err := fx.flow.SubmitPaymentReference(ctx, "op-1", draft.DraftID, "pay_ABC123xyz9")
	require.NoError(t, err)
	assert.False(t, verify.Verified)
	assert.Equal(t, string(StatePaymentVerification), verify.State)
	assert.Equal(t, 0, fx.engine.StartCalls)

	// The operator can retry from the same state
	status, err := fx.flow.Status(ctx, "op-1", draft.DraftID)
	require.NoError(t, err)
	assert.Equal(t, string(StatePaymentVerification), status.State)
	assert.Equal(t, "payment not found", status.LastError)
}
