package authsdk

import "time"

// ============================================================================
// Internal Response Types (used for JSON unmarshaling)
// ============================================================================

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	// Error is the machine readable code (e.g., "invalid_credentials")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// ValidationErrorResponse is returned when request validation fails.
type ValidationErrorResponse struct {
	// Code is always "validation_error"
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// Details contains field-specific validation errors (field name: error message)
	Details map[string]string `json:"details,omitempty"`
}

// ============================================================================
// Session Types
// ============================================================================

// LoginRequest opens a session. Identifier is either the pseudo or the email.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=191" example:"alice"`
	Password   string `json:"password" validate:"required,max=1024"`
	// OTP is required once two-factor authentication is enabled.
	OTP string `json:"otp,omitempty" validate:"omitempty,numeric,len=6" example:"123456"`
}

// SessionResponse is returned by POST /api/session.
type SessionResponse struct {
	// Token is the session JWT, to be sent as "Authorization: Bearer <token>"
	Token string `json:"token"`

	// ExpiresAt is the token expiry
	ExpiresAt time.Time `json:"expires_at"`

	User UserResponse `json:"user"`
}

// UserResponse describes the authenticated user.
type UserResponse struct {
	ID          int64  `json:"id" example:"1"`
	Pseudo      string `json:"pseudo" example:"alice"`
	Email       string `json:"email" example:"alice@example.com"`
	Group       string `json:"group" example:"member"`
	TOTPEnabled bool   `json:"totp_enabled"`
}

// ============================================================================
// Password Reset Types
// ============================================================================

// PasswordResetRequest asks for a reset token to be delivered.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email" example:"alice@example.com"`
}

// PasswordResetConfirmRequest sets a new password using a reset token.
type PasswordResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
}

// ============================================================================
// MFA Types
// ============================================================================

// TOTPEnrollResponse represents the response from TOTP enrollment.
type TOTPEnrollResponse struct {
	Secret  string `json:"secret" example:"JBSWY3DPEHPK3PXP"`
	QRCode  string `json:"qr_code" example:"otpauth://totp/Loxya:alice@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Loxya"`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}

// TOTPCodeRequest carries a 6-digit TOTP code for verify and remove.
type TOTPCodeRequest struct {
	Code string `json:"code" validate:"required,numeric,len=6" example:"123456"`
}

// ============================================================================
// Bootstrap Types
// ============================================================================

// BootstrapRequest creates the first administrator.
type BootstrapRequest struct {
	Pseudo   string `json:"pseudo" validate:"required,min=3,max=32,alphanum" example:"admin"`
	Email    string `json:"email" validate:"required,email" example:"admin@example.com"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
}

// BootstrapResponse is returned once the administrator exists.
type BootstrapResponse struct {
	AdminUserID int64 `json:"admin_user_id"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`

	// Signer indicates whether session tokens can be issued
	Signer string `json:"signer"`
}
