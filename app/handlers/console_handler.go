package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/voteflow/voteflow/app/dto"
	businessflow "github.com/voteflow/voteflow/business_flow"
)

// ConsoleHandler handles the live campaign console endpoints
type ConsoleHandler struct {
	consoleFlow businessflow.ConsoleFlow
	validator   *validator.Validate
}

// NewConsoleHandler creates a new console handler
func NewConsoleHandler(consoleFlow businessflow.ConsoleFlow) *ConsoleHandler {
	return &ConsoleHandler{
		consoleFlow: consoleFlow,
		validator:   validator.New(),
	}
}

// OpenTelemetry subscribes the console to a campaign's event stream
// @Summary Open telemetry
// @Tags console
// @Accept json
// @Produce json
// @Param request body dto.OpenTelemetryRequest true "Campaign to follow"
// @Success 200 {object} dto.APIResponse
// @Failure 400 {object} dto.APIResponse
// @Failure 502 {object} dto.APIResponse
// @Router /api/v1/console/telemetry [post]
func (h *ConsoleHandler) OpenTelemetry(c fiber.Ctx) error {
	var req dto.OpenTelemetryRequest
	if err := c.Bind().Body(&req); err != nil {
		return ValidationErrorResponse(c, err)
	}
	if err := h.validator.Struct(&req); err != nil {
		return ValidationErrorResponse(c, err)
	}

	if err := h.consoleFlow.OpenTelemetry(c.Context(), OperatorID(c), req.CampaignID); err != nil {
		return BusinessErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "telemetry stream opened", nil)
}

// CloseTelemetry drops the current event stream
// @Summary Close telemetry
// @Tags console
// @Produce json
// @Success 200 {object} dto.APIResponse
// @Router /api/v1/console/telemetry [delete]
func (h *ConsoleHandler) CloseTelemetry(c fiber.Ctx) error {
	h.consoleFlow.CloseTelemetry(c.Context())
	return SuccessResponse(c, fiber.StatusOK, "telemetry stream closed", nil)
}

// Snapshot returns the current console view
// @Summary Console snapshot
// @Tags console
// @Produce json
// @Param draft_id query string false "Draft ID for wizard state"
// @Success 200 {object} dto.APIResponse{data=dto.ConsoleSnapshotResponse}
// @Router /api/v1/console [get]
func (h *ConsoleHandler) Snapshot(c fiber.Ctx) error {
	resp, err := h.consoleFlow.Snapshot(c.Context(), OperatorID(c), c.Query("draft_id"))
	if err != nil {
		return BusinessErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, resp.Message, resp)
}

// StopCampaign asks the engine to halt a running campaign
// @Summary Stop campaign
// @Tags console
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} dto.APIResponse
// @Failure 400 {object} dto.APIResponse
// @Failure 502 {object} dto.APIResponse
// @Router /api/v1/console/campaigns/{id}/stop [post]
func (h *ConsoleHandler) StopCampaign(c fiber.Ctx) error {
	if err := h.consoleFlow.StopCampaign(c.Context(), OperatorID(c), c.Params("id")); err != nil {
		return BusinessErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, "campaign stop requested", nil)
}

// ListCampaigns returns the operator's campaign history
// @Summary Campaign history
// @Tags console
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} dto.APIResponse{data=dto.ListCampaignsResponse}
// @Router /api/v1/console/campaigns [get]
func (h *ConsoleHandler) ListCampaigns(c fiber.Ctx) error {
	limit := fiber.Query(c, "limit", 50)
	offset := fiber.Query(c, "offset", 0)

	resp, err := h.consoleFlow.ListCampaigns(c.Context(), OperatorID(c), limit, offset)
	if err != nil {
		return BusinessErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.StatusOK, resp.Message, resp)
}

// ExportVoters downloads a draft's ingested list as an Excel workbook
// @Summary Export voters
// @Tags console
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Draft ID"
// @Success 200 {file} binary
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/console/drafts/{id}/export [get]
func (h *ConsoleHandler) ExportVoters(c fiber.Ctx) error {
	content, filename, err := h.consoleFlow.ExportVoters(c.Context(), OperatorID(c), c.Params("id"))
	if err != nil {
		return BusinessErrorResponse(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(content)
}
