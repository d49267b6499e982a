package domain

// TOTPEnrollment is returned when a user starts TOTP enrolment.
type TOTPEnrollment struct {
	Secret  string // base32
	URL     string // otpauth:// URL for QR rendering
	Issuer  string
	Account string
}
