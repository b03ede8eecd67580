package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/accounts/pkg/authsdk"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
)

// readyTimeout bounds each dependency ping.
const readyTimeout = 2 * time.Second

const checkOK = "ok"

// healthReport builds the health response bodies for one process.
type healthReport struct {
	started time.Time
	version string
}

func (h healthReport) body(status string, checks *authsdk.HealthChecks) authsdk.HealthResponse {
	return authsdk.HealthResponse{
		Status:  status,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Version: h.version,
		Checks:  checks,
	}
}

// LivezHandler godoc
//
//	@Summary		Liveness check
//	@Description	Answers 200 while the process is serving. Dependencies are not consulted.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	h := healthReport{started: startTime, version: version}
	return func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, h.body(checkOK, nil))
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness check
//	@Description	Pings the session store and the user directory. Any failing check makes the service degraded.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"every check is ok"
//	@Failure		503	{object}	authsdk.HealthResponse	"at least one check failed"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, st, users Pinger) http.HandlerFunc {
	h := healthReport{started: startTime, version: version}
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{
			Store: ping(r.Context(), st),
			Users: ping(r.Context(), users),
		}
		if checks.Store != checkOK || checks.Users != checkOK {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, h.body("degraded", checks))
			return
		}
		httpx.WriteJSON(w, http.StatusOK, h.body(checkOK, checks))
	}
}

func ping(ctx context.Context, p Pinger) string {
	if p == nil {
		return "error: not configured"
	}
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return "error: " + err.Error()
	}
	return checkOK
}
