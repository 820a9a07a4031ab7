package businessflow

import (
	"errors"
	"fmt"
)

// Common business flow errors
var (
	ErrPlanNotFound          = errors.New("plan not found")
	ErrDraftNotFound         = errors.New("draft not found")
	ErrDraftBusy             = errors.New("draft has an operation in flight")
	ErrInvalidTransition     = errors.New("operation not valid in current state")
	ErrUnsupportedFormat     = errors.New("unsupported file format")
	ErrFileTooLarge          = errors.New("file exceeds maximum upload size")
	ErrNoUsableContacts      = errors.New("no usable contacts in uploaded list")
	ErrTemplateTooLong       = errors.New("message template exceeds maximum length")
	ErrPaymentReferenceShape = errors.New("payment reference is malformed")
	ErrPaymentRejected       = errors.New("payment rejected by gateway")
	ErrPaymentReplayed       = errors.New("payment reference already used")
	ErrQuotaExhausted        = errors.New("campaign quota exhausted")
	ErrExtractionFailed      = errors.New("extraction backend failed")
	ErrEngineFailed          = errors.New("campaign engine failed")
	ErrGatewayUnavailable    = errors.New("payment gateway unavailable")
	ErrTelemetryUnavailable  = errors.New("telemetry stream unavailable")
)

// BusinessError represents a business logic error with context
type BusinessError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsValidationError reports failures of local checks: unknown plans, bad
// uploads, malformed references, state machine violations.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrDraftNotFound) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrNoUsableContacts) ||
		errors.Is(err, ErrTemplateTooLong) ||
		errors.Is(err, ErrPaymentReferenceShape)
}

// IsRemoteRejection reports definitive refusals by a collaborator that
// retrying with the same input will not fix.
func IsRemoteRejection(err error) bool {
	return errors.Is(err, ErrPaymentRejected) ||
		errors.Is(err, ErrPaymentReplayed) ||
		errors.Is(err, ErrQuotaExhausted)
}

// IsTransportFailure reports collaborator outages where retrying may help.
func IsTransportFailure(err error) bool {
	return errors.Is(err, ErrExtractionFailed) ||
		errors.Is(err, ErrEngineFailed) ||
		errors.Is(err, ErrGatewayUnavailable) ||
		errors.Is(err, ErrTelemetryUnavailable)
}

// IsDraftBusy reports a concurrent operation on the same draft.
func IsDraftBusy(err error) bool {
	return errors.Is(err, ErrDraftBusy)
}
