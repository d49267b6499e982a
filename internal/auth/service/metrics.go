package service

import (
	"errors"

	"github.com/loxya/loxya/pkg/jwtx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionAuthFailures counts requests that resolved to anonymous, by reason.
	SessionAuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loxya_session_auth_failures_total",
			Help: "Session authentication failures by reason.",
		},
		[]string{"reason"},
	)

	// SessionsIssued counts tokens issued, by scope.
	SessionsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loxya_tokens_issued_total",
			Help: "Signed tokens issued by scope.",
		},
		[]string{"scope"},
	)

	// LoginAttempts counts login attempts by outcome.
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loxya_login_attempts_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

// failureReason labels an authentication error for metrics and logs.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenNotFound):
		return "no_token"
	case errors.Is(err, ErrSubjectNotFound):
		return "subject_not_found"
	default:
		return jwtx.Reason(err)
	}
}
