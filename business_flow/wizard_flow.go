package businessflow

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voteflow/voteflow/app/dto"
	"github.com/voteflow/voteflow/app/services"
	"github.com/voteflow/voteflow/models"
	"github.com/voteflow/voteflow/utils"
)

// WizardState is one step of the campaign creation flow
type WizardState string

const (
	StatePlanSelection       WizardState = "plan_selection"
	StateIngestion           WizardState = "ingestion"
	StateComposition         WizardState = "composition"
	StatePaymentPending      WizardState = "payment_pending"
	StatePaymentVerification WizardState = "payment_verification"
	StateLaunched            WizardState = "launched"
)

// campaignDraft is the in-memory state of one wizard session. Drafts are
// not persisted: an abandoned draft dies with the process, and nothing
// outside this package holds a reference to one.
type campaignDraft struct {
	id         string
	operatorID string
	state      WizardState
	plan       *models.Plan
	voters     models.VoterList
	totalRows  int
	truncated  bool
	notice     string
	message    string
	bypass     bool
	lastError  string
	busy       bool
	handle     *models.CampaignHandle
	createdAt  time.Time
}

// WizardFlow drives a campaign draft through plan selection, ingestion,
// composition, payment, and launch.
type WizardFlow interface {
	CreateDraft(ctx context.Context, operatorID string, planID *string) (*dto.DraftStatusResponse, error)
	SelectPlan(ctx context.Context, operatorID, draftID, planID string) (*dto.DraftStatusResponse, error)
	Ingest(ctx context.Context, operatorID, draftID, filename string, content []byte) (*dto.DraftStatusResponse, error)
	Compose(ctx context.Context, operatorID, draftID, message string) (*dto.DraftStatusResponse, error)
	StepBack(ctx context.Context, operatorID, draftID string) (*dto.DraftStatusResponse, error)
	DispatchPayment(ctx context.Context, operatorID, draftID string) (*dto.DispatchPaymentResponse, error)
	SubmitPaymentReference(ctx context.Context, operatorID, draftID, reference string) (*dto.VerifyPaymentResponse, error)
	Cancel(ctx context.Context, operatorID, draftID string) error
	Status(ctx context.Context, operatorID, draftID string) (*dto.DraftStatusResponse, error)
	// DraftVoters exposes a draft's ingested list for export.
	DraftVoters(ctx context.Context, operatorID, draftID string) (models.VoterList, error)
	// CurrentState reports a draft's state without touching the busy guard.
	CurrentState(operatorID, draftID string) (WizardState, bool)
}

// WizardFlowImpl implements WizardFlow over an in-memory draft registry
type WizardFlowImpl struct {
	ingestion    IngestionFlow
	payment      PaymentFlow
	engine       services.CampaignEngineService
	campaignRepo CampaignRepositorySaver
	bypassList   []string

	mu     sync.Mutex
	drafts map[string]*campaignDraft
}

// CampaignRepositorySaver is the slice of the campaign repository the
// wizard needs at launch time.
type CampaignRepositorySaver interface {
	Save(ctx context.Context, campaign *models.Campaign) error
}

// NewWizardFlow creates a new wizard flow. bypassOperators lists operator
// IDs whose campaigns launch without the payment gate.
func NewWizardFlow(
	ingestion IngestionFlow,
	payment PaymentFlow,
	engine services.CampaignEngineService,
	campaignRepo CampaignRepositorySaver,
	bypassOperators []string,
) WizardFlow {
	return &WizardFlowImpl{
		ingestion:    ingestion,
		payment:      payment,
		engine:       engine,
		campaignRepo: campaignRepo,
		bypassList:   bypassOperators,
		drafts:       make(map[string]*campaignDraft),
	}
}

func (f *WizardFlowImpl) CreateDraft(ctx context.Context, operatorID string, planID *string) (*dto.DraftStatusResponse, error) {
	draft := &campaignDraft{
		id:         uuid.New().String(),
		operatorID: operatorID,
		state:      StatePlanSelection,
		bypass:     slices.Contains(f.bypassList, operatorID),
		createdAt:  utils.UTCNow(),
	}

	if planID != nil && *planID != "" {
		plan, err := PlanByID(*planID)
		if err != nil {
			return nil, err
		}
		draft.plan = plan
		draft.state = StateIngestion
	}

	f.mu.Lock()
	f.drafts[draft.id] = draft
	f.mu.Unlock()

	return statusOf(draft, "draft created"), nil
}

func (f *WizardFlowImpl) SelectPlan(ctx context.Context, operatorID, draftID, planID string) (*dto.DraftStatusResponse, error) {
	plan, err := PlanByID(planID)
	if err != nil {
		return nil, err
	}

	draft, release, err := f.acquire(operatorID, draftID)
	if err != nil {
		return nil, err
	}
	defer release()

	if draft.state != StatePlanSelection {
		return nil, transitionError(draft.state, "select plan")
	}
	f.mu.Lock()
	draft.plan = plan
	draft.state = StateIngestion
	draft.lastError = ""
	resp := statusOf(draft, "plan selected")
	f.mu.Unlock()
	return resp, nil
}

func (f *WizardFlowImpl) Ingest(ctx context.Context, operatorID, draftID, filename string, content []byte) (*dto.DraftStatusResponse, error) {
	draft, release, err := f.acquire(operatorID, draftID)
	if err != nil {
		return nil, err
	}
	defer release()

	if draft.state != StateIngestion {
		return nil, transitionError(draft.state, "ingest voter list")
	}

	outcome, err := f.ingestion.Ingest(ctx, filename, content, draft.plan)
	if err != nil {
		f.setLastError(draft, err)
		return nil, err
	}

	f.mu.Lock()
	draft.voters = outcome.Voters
	draft.totalRows = outcome.TotalParsed
	draft.truncated = outcome.Truncated
	draft.notice = ""
	if outcome.Truncated {
		draft.notice = "voter list truncated to the plan's message limit"
	}
	draft.state = StateComposition
	draft.lastError = ""
	resp := statusOf(draft, "voter list ingested")
	f.mu.Unlock()
	return resp, nil
}

func (f *WizardFlowImpl) Compose(ctx context.Context, operatorID, draftID, message string) (*dto.DraftStatusResponse, error) {
	if len(message) > utils.MaxTemplateLength {
		return nil, NewBusinessError("TEMPLATE_TOO_LONG", "message template exceeds 1000 characters", ErrTemplateTooLong)
	}

	draft, release, err := f.acquire(operatorID, draftID)
	if err != nil {
		return nil, err
	}
	defer release()

	if draft.state != StateComposition {
		return nil, transitionError(draft.state, "compose message")
	}

	f.mu.Lock()
	draft.message = message
	draft.lastError = ""
	f.mu.Unlock()

	if draft.bypass {
		if err := f.launch(ctx, draft, ""); err != nil {
			f.setLastError(draft, err)
			return nil, err
		}
		return f.snapshotStatus(draft, "campaign launched"), nil
	}

	f.mu.Lock()
	draft.state = StatePaymentPending
	resp := statusOf(draft, "message composed")
	f.mu.Unlock()
	return resp, nil
}

func (f *WizardFlowImpl) StepBack(ctx context.Context, operatorID, draftID string) (*dto.DraftStatusResponse, error) {
	draft, release, err := f.acquire(operatorID, draftID)
	if err != nil {
		return nil, err
	}
	defer release()

	switch draft.state {
	case StateIngestion:
		f.mu.Lock()
		draft.state = StatePlanSelection
		draft.plan = nil
	case StatePaymentVerification:
		f.mu.Lock()
		draft.state = StatePaymentPending
	default:
		return nil, transitionError(draft.state, "step back")
	}
	draft.lastError = ""
	resp := statusOf(draft, "stepped back")
	f.mu.Unlock()
	return resp, nil
}

func (f *WizardFlowImpl) DispatchPayment(ctx context.Context, operatorID, draftID string) (*dto.DispatchPaymentResponse, error) {
	draft, release, err := f.acquire(operatorID, draftID)
	if err != nil {
		return nil, err
	}
	defer release()

	if draft.state != StatePaymentPending {
		return nil, transitionError(draft.state, "dispatch payment")
	}

	// The transition does not wait on the checkout page: the operator pays
	// in another tab and comes back with a reference.
	f.mu.Lock()
	draft.state = StatePaymentVerification
	draft.lastError = ""
	f.mu.Unlock()
	return &dto.DispatchPaymentResponse{
		Message:    "complete payment on the checkout page, then submit the reference",
		DraftID:    draft.id,
		State:      string(draft.state),
		PaymentURL: f.payment.PaymentPageURL(draft.plan.ID),
	}, nil
}

func (f *WizardFlowImpl) SubmitPaymentReference(ctx context.Context, operatorID, draftID, reference string) (*dto.VerifyPaymentResponse, error) {
	draft, release, err := f.acquire(operatorID, draftID)
	if err != nil {
		return nil, err
	}
	defer release()

	if draft.state != StatePaymentVerification {
		return nil, transitionError(draft.state, "submit payment reference")
	}

	outcome, err := f.payment.VerifyAndConsume(ctx, draft.operatorID, reference, draft.plan)
	if err != nil {
		f.setLastError(draft, err)
		return nil, err
	}
	if !outcome.Verified {
		f.mu.Lock()
		draft.lastError = outcome.Reason
		f.mu.Unlock()
		return &dto.VerifyPaymentResponse{
			Message:  "payment not verified",
			DraftID:  draft.id,
			State:    string(draft.state),
			Verified: false,
			Reason:   outcome.Reason,
		}, nil
	}

	if err := f.launch(ctx, draft, reference); err != nil {
		// The quota was already debited; the operator retries the launch
		// from the console rather than paying again.
		f.setLastError(draft, err)
		return nil, err
	}

	startedAt := draft.handle.StartedAt.Format(time.RFC3339)
	return &dto.VerifyPaymentResponse{
		Message:            "payment verified, campaign launched",
		DraftID:            draft.id,
		State:              string(draft.state),
		Verified:           true,
		RemainingCampaigns: outcome.RemainingCampaigns,
		CampaignID:         draft.handle.CampaignID,
		StartedAt:          &startedAt,
	}, nil
}

func (f *WizardFlowImpl) Cancel(ctx context.Context, operatorID, draftID string) error {
	draft, release, err := f.acquire(operatorID, draftID)
	if err != nil {
		return err
	}
	defer release()

	if draft.state == StateLaunched {
		return transitionError(draft.state, "cancel draft")
	}

	// Cancellation discards local state only. No quota is refunded because
	// none was consumed before launch.
	f.mu.Lock()
	delete(f.drafts, draft.id)
	f.mu.Unlock()
	return nil
}

func (f *WizardFlowImpl) Status(ctx context.Context, operatorID, draftID string) (*dto.DraftStatusResponse, error) {
	f.mu.Lock()
	draft, ok := f.drafts[draftID]
	if !ok || draft.operatorID != operatorID {
		f.mu.Unlock()
		return nil, NewBusinessError("DRAFT_NOT_FOUND", "draft not found: "+draftID, ErrDraftNotFound)
	}
	resp := statusOf(draft, "draft status")
	f.mu.Unlock()
	return resp, nil
}

func (f *WizardFlowImpl) DraftVoters(ctx context.Context, operatorID, draftID string) (models.VoterList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	draft, ok := f.drafts[draftID]
	if !ok || draft.operatorID != operatorID {
		return nil, NewBusinessError("DRAFT_NOT_FOUND", "draft not found: "+draftID, ErrDraftNotFound)
	}
	out := make(models.VoterList, len(draft.voters))
	copy(out, draft.voters)
	return out, nil
}

func (f *WizardFlowImpl) CurrentState(operatorID, draftID string) (WizardState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	draft, ok := f.drafts[draftID]
	if !ok || draft.operatorID != operatorID {
		return "", false
	}
	return draft.state, true
}

// launch hands the draft to the engine and records the campaign. Caller
// holds the draft via acquire.
func (f *WizardFlowImpl) launch(ctx context.Context, draft *campaignDraft, paymentReference string) error {
	var template *string
	if draft.message != "" {
		template = utils.ToPtr(draft.message)
	}

	handle, err := f.engine.Start(ctx, services.StartCampaignRequest{
		Voters:           draft.voters,
		MessageTemplate:  template,
		PlanID:           draft.plan.ID,
		MaxMessages:      draft.plan.MaxMessages,
		PaymentReference: paymentReference,
	})
	if err != nil {
		return NewBusinessError("ENGINE_FAILED", "campaign engine refused launch", wrapTransport(err, ErrEngineFailed))
	}

	f.mu.Lock()
	draft.handle = handle
	draft.state = StateLaunched
	f.mu.Unlock()

	campaign := &models.Campaign{
		CampaignID:      handle.CampaignID,
		OperatorID:      draft.operatorID,
		PlanID:          draft.plan.ID,
		MessageTemplate: draft.message,
		Recipients:      len(draft.voters),
		Status:          models.CampaignStatusRunning,
		StartedAt:       handle.StartedAt,
	}
	if err := f.campaignRepo.Save(ctx, campaign); err != nil {
		// The engine is already sending; a lost record costs history, not
		// delivery.
		log.Printf("Failed to persist campaign %s: %v", handle.CampaignID, err)
	}
	return nil
}

// acquire looks up a draft, checks ownership, and takes its busy guard.
// The returned release must be called once the operation finishes.
func (f *WizardFlowImpl) acquire(operatorID, draftID string) (*campaignDraft, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	draft, ok := f.drafts[draftID]
	if !ok || draft.operatorID != operatorID {
		return nil, nil, NewBusinessError("DRAFT_NOT_FOUND", "draft not found: "+draftID, ErrDraftNotFound)
	}
	if draft.busy {
		return nil, nil, NewBusinessError("DRAFT_BUSY", "another operation is in flight for this draft", ErrDraftBusy)
	}
	draft.busy = true

	release := func() {
		f.mu.Lock()
		draft.busy = false
		f.mu.Unlock()
	}
	return draft, release, nil
}

func (f *WizardFlowImpl) setLastError(draft *campaignDraft, err error) {
	f.mu.Lock()
	draft.lastError = err.Error()
	f.mu.Unlock()
}

func (f *WizardFlowImpl) snapshotStatus(draft *campaignDraft, message string) *dto.DraftStatusResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return statusOf(draft, message)
}

func transitionError(state WizardState, operation string) error {
	return NewBusinessError("INVALID_TRANSITION", "cannot "+operation+" in state "+string(state), ErrInvalidTransition)
}

func statusOf(draft *campaignDraft, message string) *dto.DraftStatusResponse {
	resp := &dto.DraftStatusResponse{
		Message:       message,
		DraftID:       draft.id,
		State:         string(draft.state),
		Contacts:      draft.totalRows,
		UsableNumbers: len(draft.voters),
		Truncated:     draft.truncated,
		Notice:        draft.notice,
		BypassPayment: draft.bypass,
		LastError:     draft.lastError,
	}
	if draft.plan != nil {
		resp.PlanID = draft.plan.ID
	}
	if draft.handle != nil {
		resp.CampaignID = draft.handle.CampaignID
		startedAt := draft.handle.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &startedAt
	}
	return resp
}
