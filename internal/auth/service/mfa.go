package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/loxya/loxya/internal/auth/domain"
	"github.com/loxya/loxya/internal/auth/store"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var (
	ErrInvalidTOTPCode    = errors.New("invalid_totp_code")
	ErrTOTPNotEnabled     = errors.New("totp_not_enabled")
	ErrTOTPNotEnrolled    = errors.New("totp_not_enrolled")
	ErrTOTPAlreadyEnabled = errors.New("totp_already_enabled")
)

type MFAService struct {
	Store  store.Store
	Issuer string
}

// EnrollTOTP stores a fresh secret for user. TOTP stays disabled until
// VerifyTOTP succeeds. Re-enrolling replaces a pending secret.
func (s *MFAService) EnrollTOTP(ctx context.Context, user domain.User) (domain.TOTPEnrollment, error) {
	if user.TOTPEnabled() {
		return domain.TOTPEnrollment{}, ErrTOTPAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.TOTPEnrollment{}, fmt.Errorf("generate totp key: %w", err)
	}

	if err := s.Store.Users().UpdateTOTPSecret(ctx, user.ID, key.Secret()); err != nil {
		return domain.TOTPEnrollment{}, fmt.Errorf("store totp secret: %w", err)
	}

	return domain.TOTPEnrollment{
		Secret:  key.Secret(),
		URL:     key.URL(),
		Issuer:  s.Issuer,
		Account: user.Email,
	}, nil
}

// VerifyTOTP enables TOTP once the user proves possession of the secret.
func (s *MFAService) VerifyTOTP(ctx context.Context, userID int64, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user.TOTPEnabled() {
		return ErrTOTPAlreadyEnabled
	}
	if user.TOTPSecret == nil {
		return ErrTOTPNotEnrolled
	}
	if !totp.Validate(code, *user.TOTPSecret) {
		return ErrInvalidTOTPCode
	}
	return s.Store.Users().EnableTOTP(ctx, userID)
}

// RemoveTOTP disables TOTP after checking a current code.
func (s *MFAService) RemoveTOTP(ctx context.Context, userID int64, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !user.TOTPEnabled() {
		return ErrTOTPNotEnabled
	}
	if !totp.Validate(code, *user.TOTPSecret) {
		return ErrInvalidTOTPCode
	}
	return s.Store.Users().DisableTOTP(ctx, userID)
}
