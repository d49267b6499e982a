package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/loxya/loxya/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeValidation          = "validation_error"
	ErrorCodeInvalidCredentials  = "invalid_credentials"
	ErrorCodeTOTPRequired        = "totp_required"
	ErrorCodeInvalidTOTPCode     = "invalid_totp_code"
	ErrorCodeTOTPAlreadyEnabled  = "totp_already_enabled"
	ErrorCodeTOTPNotEnabled      = "totp_not_enabled"
	ErrorCodeInvalidToken        = "invalid_token"
	ErrorCodeInvalidResetToken   = "invalid_reset_token"
	ErrorCodeUnauthorized        = "unauthorized"
	ErrorCodeAlreadyBootstrapped = "already_bootstrapped"
	ErrorCodeUserExists          = "user_exists"
	ErrorCodeNotFound            = "not_found"
	ErrorCodeRateLimited         = "rate_limit_exceeded"
	ErrorCodeServerError         = "server_error"
	ErrorCodeServiceNotAvailable = "service_unavailable"
)

// ============================================================================
// APIError
// ============================================================================

// APIError is the error body returned by every Loxya endpoint. It is used
// by handlers to write responses and by the SDK to report them.
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is a stable machine readable error code
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches APIErrors by status and code so callers can use errors.Is
// against the predefined values below.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode && e.Code == t.Code
}

// WriteError writes the error as a JSON response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
	})
}

// NewAPIError creates an APIError with a custom description.
func NewAPIError(statusCode int, code, description string) *APIError {
	return &APIError{
		StatusCode:  statusCode,
		Code:        code,
		Description: description,
	}
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	// ErrInvalidRequest is returned when the body is not valid JSON or has unknown fields.
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidCredentials is returned for an unknown identifier or a wrong password.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid credentials",
	}

	// ErrTOTPRequired is returned when the account needs a one-time code to log in.
	ErrTOTPRequired = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeTOTPRequired,
		Description: "a one-time code is required",
	}

	ErrInvalidTOTPCode = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidTOTPCode,
		Description: "invalid one-time code",
	}

	ErrTOTPAlreadyEnabled = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeTOTPAlreadyEnabled,
		Description: "two-factor authentication is already enabled",
	}

	ErrTOTPNotEnabled = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeTOTPNotEnabled,
		Description: "two-factor authentication is not enabled",
	}

	// ErrInvalidToken is returned when no valid session accompanies the request.
	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the session token is missing, invalid or expired",
	}

	ErrInvalidResetToken = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidResetToken,
		Description: "the password reset token is invalid or expired",
	}

	ErrBootstrapUnauthorized = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeUnauthorized,
		Description: "invalid bootstrap token",
	}

	ErrBootstrapAlready = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeAlreadyBootstrapped,
		Description: "the service is already bootstrapped",
	}

	ErrUserExists = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeUserExists,
		Description: "a user with this pseudo or email already exists",
	}

	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "not found",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	ErrServiceNotAvailable = &APIError{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeServiceNotAvailable,
		Description: "service not available",
	}
)

// ============================================================================
// Validation Errors
// ============================================================================

// ValidationError is returned when a request body fails field validation.
type ValidationError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Fields)
}

// WriteError writes the validation failure as a 400 response.
func (e *ValidationError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(ValidationErrorResponse{
		Code:    ErrorCodeValidation,
		Message: e.Message,
		Details: e.Fields,
	})
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into a typed error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var valErr ValidationErrorResponse
	if err := json.Unmarshal(body, &valErr); err == nil && valErr.Code == ErrorCodeValidation {
		return &ValidationError{
			StatusCode: resp.StatusCode,
			Message:    valErr.Message,
			Fields:     valErr.Details,
		}
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	code := ErrorCodeServerError
	if resp.StatusCode == http.StatusServiceUnavailable {
		code = ErrorCodeServiceNotAvailable
	}
	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        code,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
