package handlers

import (
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/voteflow/voteflow/app/dto"
	businessflow "github.com/voteflow/voteflow/business_flow"
)

// WizardHandler handles plan catalog and campaign wizard endpoints
type WizardHandler struct {
	wizardFlow businessflow.WizardFlow
	validator  *validator.Validate
}

// NewWizardHandler creates a new wizard handler
func NewWizardHandler(wizardFlow businessflow.WizardFlow) *WizardHandler {
	return &WizardHandler{
		wizardFlow: wizardFlow,
		validator:  validator.New(),
	}
}

// ListPlans returns the service tier catalog
// @Summary List plans
// @Description Returns all purchasable campaign plans
// @Tags plans
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListPlansResponse}
// @Router /api/v1/plans [get]
func (h *WizardHandler) ListPlans(c fiber.Ctx) error {
	plans := businessflow.ListPlans()
	out := make([]dto.PlanDTO, 0, len(plans))
	for _, p := range plans {
		out = append(out, dto.PlanDTO{
			ID:            p.ID,
			Name:          p.Name,
			Price:         p.Price,
			CampaignQuota: p.CampaignQuota,
			MaxMessages:   p.MaxMessages,
			Features:      p.Features,
		})
	}
	return SuccessResponse(c, fiber.StatusOK, "plan catalog", dto.ListPlansResponse{
		Message: "plan catalog",
		Plans:   out,
	})
}

// CreateDraft starts a new campaign draft
// @Summary Create draft
// @Description Creates a campaign draft, optionally with a pre-selected plan
// @Tags wizard
// @Accept json
// @Produce json
// @Param request body dto.CreateDraftRequest true "Draft options"
// @Success 201 {object} dto.APIResponse{data=dto.DraftStatusResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/drafts [post]
func (h *WizardHandler) CreateDraft(c fiber.Ctx) error {
	var req dto.CreateDraftRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return ValidationErrorResponse(c, err)
		}
		if err := h.validator.Struct(&req); err != nil {
			return ValidationErrorResponse(c, err)
		}
	}

	resp, err := h.wizardFlow.CreateDraft(c.Context(), OperatorID(c), req.PlanID)
	if err != nil {
		return BusinessErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusCreated, resp.Message, resp)
}

// SelectPlan picks the tier for a draft
// @Summary Select plan
// @Tags wizard
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param request body dto.SelectPlanRequest true "Plan selection"
// @Success 200 {object} dto.APIResponse{data=dto.DraftStatusResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/drafts/{id}/plan [post]
func (h *WizardHandler) SelectPlan(c fiber.Ctx) error {
	var req dto.SelectPlanRequest
	if err := c.Bind().Body(&req); err != nil {
		return ValidationErrorResponse(c, err)
	}
	if err := h.validator.Struct(&req); err != nil {
		return ValidationErrorResponse(c, err)
	}

	resp, err := h.wizardFlow.SelectPlan(c.Context(), OperatorID(c), c.Params("id"), req.PlanID)
	if err != nil {
		return BusinessErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, resp.Message, resp)
}

// Ingest uploads a voter list into a draft
// @Summary Ingest voter list
// @Description Accepts a scanned roll, spreadsheet, or delimited text file
// @Tags wizard
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Draft ID"
// @Param file formData file true "Voter list file"
// @Success 200 {object} dto.APIResponse{data=dto.DraftStatusResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/drafts/{id}/voters [post]
func (h *WizardHandler) Ingest(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "file is required", "FILE_REQUIRED", nil)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "failed to open uploaded file", "FILE_UNREADABLE", nil)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "failed to read uploaded file", "FILE_UNREADABLE", nil)
	}

	resp, err := h.wizardFlow.Ingest(c.Context(), OperatorID(c), c.Params("id"), fileHeader.Filename, content)
	if err != nil {
		return BusinessErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, resp.Message, resp)
}

// Compose sets the draft's message template
// @Summary Compose message
// @Tags wizard
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param request body dto.ComposeRequest true "Message template"
// @Success 200 {object} dto.APIResponse{data=dto.DraftStatusResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/drafts/{id}/message [post]
func (h *WizardHandler) Compose(c fiber.Ctx) error {
	var req dto.ComposeRequest
	if err := c.Bind().Body(&req); err != nil {
		return ValidationErrorResponse(c, err)
	}
	if err := h.validator.Struct(&req); err != nil {
		return ValidationErrorResponse(c, err)
	}

	resp, err := h.wizardFlow.Compose(c.Context(), OperatorID(c), c.Params("id"), req.Message)
	if err != nil {
		return BusinessErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, resp.Message, resp)
}

// StepBack moves a draft one step back in the wizard
// @Summary Step back
// @Tags wizard
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} dto.APIResponse{data=dto.DraftStatusResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/drafts/{id}/back [post]
func (h *WizardHandler) StepBack(c fiber.Ctx) error {
	resp, err := h.wizardFlow.StepBack(c.Context(), OperatorID(c), c.Params("id"))
	if err != nil {
		return BusinessErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, resp.Message, resp)
}

// DispatchPayment moves the draft to verification and returns the checkout URL
// @Summary Dispatch payment
// @Tags wizard
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} dto.APIResponse{data=dto.DispatchPaymentResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/drafts/{id}/payment [post]
func (h *WizardHandler) DispatchPayment(c fiber.Ctx) error {
	resp, err := h.wizardFlow.DispatchPayment(c.Context(), OperatorID(c), c.Params("id"))
	if err != nil {
		return BusinessErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, resp.Message, resp)
}

// SubmitPaymentReference verifies the payment and launches the campaign
// @Summary Submit payment reference
// @Tags wizard
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param request body dto.SubmitPaymentReferenceRequest true "Gateway reference"
// @Success 200 {object} dto.APIResponse{data=dto.VerifyPaymentResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 422 {object} dto.APIResponse
// @Router /api/v1/drafts/{id}/payment/verify [post]
func (h *WizardHandler) SubmitPaymentReference(c fiber.Ctx) error {
	var req dto.SubmitPaymentReferenceRequest
	if err := c.Bind().Body(&req); err != nil {
		return ValidationErrorResponse(c, err)
	}
	if err := h.validator.Struct(&req); err != nil {
		return ValidationErrorResponse(c, err)
	}

	resp, err := h.wizardFlow.SubmitPaymentReference(c.Context(), OperatorID(c), c.Params("id"), req.PaymentReference)
	if err != nil {
		return BusinessErrorResponse(c, err)
	}
	if !resp.Verified {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.APIResponse{
			Success: false,
			Message: resp.Message,
			Data:    resp,
		})
	}
	return SuccessResponse(c, fiber.StatusOK, resp.Message, resp)
}

// Cancel discards a draft
// @Summary Cancel draft
// @Tags wizard
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} dto.APIResponse
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/drafts/{id} [delete]
func (h *WizardHandler) Cancel(c fiber.Ctx) error {
	if err := h.wizardFlow.Cancel(c.Context(), OperatorID(c), c.Params("id")); err != nil {
		return BusinessErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "draft cancelled", nil)
}

// Status returns the draft's current state
// @Summary Draft status
// @Tags wizard
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} dto.APIResponse{data=dto.DraftStatusResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/drafts/{id} [get]
func (h *WizardHandler) Status(c fiber.Ctx) error {
	resp, err := h.wizardFlow.Status(c.Context(), OperatorID(c), c.Params("id"))
	if err != nil {
		return BusinessErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, resp.Message, resp)
}
