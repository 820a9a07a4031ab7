package dto

// CreateDraftRequest starts a new campaign draft. A pre-selected plan skips
// the plan selection step.
type CreateDraftRequest struct {
	PlanID *string `json:"plan_id,omitempty" validate:"omitempty,min=1"`
}

// SelectPlanRequest picks the tier for a draft in plan selection
type SelectPlanRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// ComposeRequest sets the draft's message template. An empty template makes
// the execution engine fall back to its default message.
type ComposeRequest struct {
	Message string `json:"message" validate:"max=1000"`
}

// SubmitPaymentReferenceRequest carries the gateway reference the operator
// copied from the checkout page
type SubmitPaymentReferenceRequest struct {
	PaymentReference string `json:"payment_reference" validate:"required"`
}

// DraftStatusResponse is the canonical view of a campaign draft
type DraftStatusResponse struct {
	Message       string  `json:"message"`
	DraftID       string  `json:"draft_id"`
	State         string  `json:"state"`
	PlanID        string  `json:"plan_id,omitempty"`
	Contacts      int     `json:"contacts"`
	UsableNumbers int     `json:"usable_numbers"`
	Truncated     bool    `json:"truncated"`
	Notice        string  `json:"notice,omitempty"`
	BypassPayment bool    `json:"bypass_payment"`
	LastError     string  `json:"last_error,omitempty"`
	CampaignID    string  `json:"campaign_id,omitempty"`
	StartedAt     *string `json:"started_at,omitempty"`
}

// DispatchPaymentResponse carries the external checkout location
type DispatchPaymentResponse struct {
	Message    string `json:"message"`
	DraftID    string `json:"draft_id"`
	State      string `json:"state"`
	PaymentURL string `json:"payment_url"`
}

// VerifyPaymentResponse reports the verification outcome and, on success,
// the launched campaign handle
type VerifyPaymentResponse struct {
	Message            string  `json:"message"`
	DraftID            string  `json:"draft_id"`
	State              string  `json:"state"`
	Verified           bool    `json:"verified"`
	Reason             string  `json:"reason,omitempty"`
	RemainingCampaigns int     `json:"remaining_campaigns"`
	CampaignID         string  `json:"campaign_id,omitempty"`
	StartedAt          *string `json:"started_at,omitempty"`
}
