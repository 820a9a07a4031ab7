// Package handlers provides HTTP request handlers for the orchestrator API
package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/voteflow/voteflow/app/dto"
	businessflow "github.com/voteflow/voteflow/business_flow"
)

// ErrorResponse sends a standardized error response
func ErrorResponse(c fiber.Ctx, statusCode int, message string, code string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: &dto.ErrorDetail{
			Code:    code,
			Details: details,
		},
	})
}

// SuccessResponse sends a standardized success response
func SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ValidationErrorResponse sends a response for request validation failures
func ValidationErrorResponse(c fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			details = append(details, formatFieldError(fieldError))
		}
		return ErrorResponse(c, fiber.StatusBadRequest, "validation failed", "VALIDATION_ERROR", details)
	}
	return ErrorResponse(c, fiber.StatusBadRequest, "invalid request body", "INVALID_BODY", nil)
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// BusinessErrorResponse maps flow errors onto HTTP status codes
func BusinessErrorResponse(c fiber.Ctx, err error) error {
	code := "INTERNAL_ERROR"
	var businessErr *businessflow.BusinessError
	if errors.As(err, &businessErr) {
		code = businessErr.Code
	}

	switch {
	case businessflow.IsValidationError(err):
		return ErrorResponse(c, fiber.StatusBadRequest, err.Error(), code, nil)
	case businessflow.IsDraftBusy(err):
		return ErrorResponse(c, fiber.StatusConflict, err.Error(), code, nil)
	case businessflow.IsRemoteRejection(err):
		return ErrorResponse(c, fiber.StatusUnprocessableEntity, err.Error(), code, nil)
	case businessflow.IsTransportFailure(err):
		return ErrorResponse(c, fiber.StatusBadGateway, err.Error(), code, nil)
	default:
		return ErrorResponse(c, fiber.StatusInternalServerError, "internal server error", code, nil)
	}
}

// OperatorID extracts the authenticated operator from request locals
func OperatorID(c fiber.Ctx) string {
	if id, ok := c.Locals("operator_id").(string); ok {
		return id
	}
	return ""
}
