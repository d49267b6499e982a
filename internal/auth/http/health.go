package http

import (
	"net/http"
	"time"

	"github.com/loxya/loxya/internal/auth/store"
	"github.com/loxya/loxya/pkg/authsdk"
	"github.com/loxya/loxya/pkg/httpx"
	"github.com/loxya/loxya/pkg/slogx"
)

// LivezHandler godoc
//
//	@Summary		Liveness Check Endpoint
//	@Description	Always returns 200 OK while the process serves requests
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// SignerCheck reports whether session tokens can currently be issued.
type SignerCheck func() error

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe endpoint returning service health status and checks for critical dependencies
//	@Description	Includes uptime, version, and status of the database and the token signer
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	signer SignerCheck,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := slogx.FromContext(r.Context())
		checks := &authsdk.HealthChecks{
			Database: "ok",
			Signer:   "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			log.Warn("readiness: database unreachable", "err", err)
			checks.Database = "error"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if signer == nil {
			checks.Signer = "error"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		} else if err := signer(); err != nil {
			log.Warn("readiness: signer unusable", "err", err)
			checks.Signer = "error"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.NoCache(w)
		httpx.WriteJSON(w, statusCode, response)
	}
}
