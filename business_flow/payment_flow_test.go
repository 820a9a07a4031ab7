package businessflow

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voteflow/voteflow/app/services"
	"github.com/voteflow/voteflow/models"
)

// memoryQuotaStore implements QuotaStore in memory for flow tests
type memoryQuotaStore struct {
	mu      sync.Mutex
	records map[string]*models.QuotaRecord
}

func newMemoryQuotaStore() *memoryQuotaStore {
	return &memoryQuotaStore{records: make(map[string]*models.QuotaRecord)}
}

func (s *memoryQuotaStore) Get(ctx context.Context, operatorID string) (*models.QuotaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[operatorID]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, nil
}

func (s *memoryQuotaStore) Mutate(ctx context.Context, operatorID string, fn func(current *models.QuotaRecord) (*models.QuotaRecord, error)) (*models.QuotaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *models.QuotaRecord
	if r, ok := s.records[operatorID]; ok {
		copied := *r
		current = &copied
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}
	next.OperatorID = operatorID
	s.records[operatorID] = next
	copied := *next
	return &copied, nil
}

func newTestPaymentFlow(gateway *services.MockPaymentGatewayService) (PaymentFlow, *memoryQuotaStore) {
	store := newMemoryQuotaStore()
	flow := NewPaymentFlow(gateway, NewMemoryReplayGuard(), store)
	return flow, store
}

func TestValidPaymentReference(t *testing.T) {
	assert.True(t, ValidPaymentReference("pay_ABC123xyz9"))
	assert.True(t, ValidPaymentReference("pay_aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	assert.False(t, ValidPaymentReference("pay_123"))
	assert.False(t, ValidPaymentReference("xyz_ABC123xyz9"))
	assert.False(t, ValidPaymentReference("pay_ABC123xyz9!"))
	assert.False(t, ValidPaymentReference(""))
}

func TestVerifyRejectsMalformedReferenceWithoutNetworkCall(t *testing.T) {
	gateway := services.NewMockPaymentGatewayService()
	flow, _ := newTestPaymentFlow(gateway)

	plan, _ := PlanByID("starter")
	for _, ref := range []string{"pay_123", "xyz_ABC123xyz9", ""} {
		_, err := flow.VerifyAndConsume(context.Background(), "op-1", ref, plan)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPaymentReferenceShape)
	}
	assert.Equal(t, 0, gateway.VerifyCalls)
}

func TestVerifyConsumesQuota(t *testing.T) {
	gateway := services.NewMockPaymentGatewayService()
	flow, store := newTestPaymentFlow(gateway)
	plan, _ := PlanByID("growth")

	outcome, err := flow.VerifyAndConsume(context.Background(), "op-1", "pay_ABC123xyz9", plan)
	require.NoError(t, err)
	assert.True(t, outcome.Verified)
	assert.Equal(t, 2, outcome.RemainingCampaigns)

	record, err := store.Get(context.Background(), "op-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "growth", record.PlanID)
	assert.Equal(t, 3, record.TotalCampaigns)
	assert.Equal(t, 2, record.RemainingCampaigns)
	assert.Equal(t, "pay_ABC123xyz9", record.PaymentReference)
}

func TestVerifyDecrementsExistingQuota(t *testing.T) {
	gateway := services.NewMockPaymentGatewayService()
	flow, store := newTestPaymentFlow(gateway)
	plan, _ := PlanByID("growth")

	outcome, err := flow.VerifyAndConsume(context.Background(), "op-1", "pay_AAAAAAAAAA", plan)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.RemainingCampaigns)

	outcome, err = flow.VerifyAndConsume(context.Background(), "op-1", "pay_BBBBBBBBBB", plan)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.RemainingCampaigns)

	record, _ := store.Get(context.Background(), "op-1")
	assert.Equal(t, 1, record.RemainingCampaigns)
}

func TestVerifyFloorsRemainingAtZero(t *testing.T) {
	gateway := services.NewMockPaymentGatewayService()
	flow, store := newTestPaymentFlow(gateway)
	plan, _ := PlanByID("starter")

	refs := []string{"pay_AAAAAAAAAA", "pay_BBBBBBBBBB", "pay_CCCCCCCCCC"}
	for _, ref := range refs {
		_, err := flow.VerifyAndConsume(context.Background(), "op-1", ref, plan)
		require.NoError(t, err)
	}

	record, _ := store.Get(context.Background(), "op-1")
	assert.Equal(t, 0, record.RemainingCampaigns)
}

func TestVerifyPlanSwitchReplacesRecord(t *testing.T) {
	gateway := services.NewMockPaymentGatewayService()
	flow, store := newTestPaymentFlow(gateway)

	growth, _ := PlanByID("growth")
	_, err := flow.VerifyAndConsume(context.Background(), "op-1", "pay_AAAAAAAAAA", growth)
	require.NoError(t, err)

	enterprise, _ := PlanByID("enterprise")
	outcome, err := flow.VerifyAndConsume(context.Background(), "op-1", "pay_BBBBBBBBBB", enterprise)
	require.NoError(t, err)
	assert.Equal(t, 9, outcome.RemainingCampaigns)

	record, _ := store.Get(context.Background(), "op-1")
	assert.Equal(t, "enterprise", record.PlanID)
	assert.Equal(t, 10, record.TotalCampaigns)
	assert.Equal(t, 9, record.RemainingCampaigns)
}

func TestVerifyRejectsReplayedReference(t *testing.T) {
	gateway := services.NewMockPaymentGatewayService()
	flow, store := newTestPaymentFlow(gateway)
	plan, _ := PlanByID("growth")

	_, err := flow.VerifyAndConsume(context.Background(), "op-1", "pay_AAAAAAAAAA", plan)
	require.NoError(t, err)
	assert.Equal(t, 1, gateway.VerifyCalls)

	outcome, err := flow.VerifyAndConsume(context.Background(), "op-1", "pay_AAAAAAAAAA", plan)
	require.NoError(t, err)
	assert.False(t, outcome.Verified)
	assert.Contains(t, outcome.Reason, "already used")

	// Replayed references never reach the gateway or touch the quota
	assert.Equal(t, 1, gateway.VerifyCalls)
	record, _ := store.Get(context.Background(), "op-1")
	assert.Equal(t, 2, record.RemainingCampaigns)
}

func TestVerifyGatewayRejection(t *testing.T) {
	gateway := services.NewMockPaymentGatewayService()
	gateway.Verified = false
	gateway.Message = "amount mismatch"
	flow, store := newTestPaymentFlow(gateway)
	plan, _ := PlanByID("starter")

	outcome, err := flow.VerifyAndConsume(context.Background(), "op-1", "pay_AAAAAAAAAA", plan)
	require.NoError(t, err)
	assert.False(t, outcome.Verified)
	assert.Equal(t, "amount mismatch", outcome.Reason)

	record, _ := store.Get(context.Background(), "op-1")
	assert.Nil(t, record)
}

func TestVerifyGatewayUnavailable(t *testing.T) {
	gateway := services.NewMockPaymentGatewayService()
	gateway.Err = assert.AnError
	flow, _ := newTestPaymentFlow(gateway)
	plan, _ := PlanByID("starter")

	_, err := flow.VerifyAndConsume(context.Background(), "op-1", "pay_AAAAAAAAAA", plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.True(t, IsTransportFailure(err))
}
