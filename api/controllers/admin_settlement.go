package controllers

import (
	"net/http"
	"time"

	"github.com/nexusauctions/nexus-backend/api/responses"
	"github.com/nexusauctions/nexus-backend/internal/settlement"
	pkgerrors "github.com/nexusauctions/nexus-backend/pkg/errors"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
)

type settlementReportResponse struct {
	Scanned int `json:"scanned"`
	Settled int `json:"settled"`
	Expired int `json:"expired"`
	Skipped int `json:"skipped"`
}

// TriggerSettlement runs one settlement sweep on demand. The scheduled worker
// stays authoritative; this endpoint exists for moderators to converge state
// without waiting for the next tick.
func TriggerSettlement(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		report, err := svc.CloseExpired(r.Context(), time.Now().UTC())
		resp := settlementReportResponse{
			Scanned: report.Scanned,
			Settled: report.Settled,
			Expired: report.Expired,
			Skipped: report.Skipped,
		}
		if err != nil {
			// Partial sweeps still closed what they could; report the
			// progress alongside the failure.
			logg.Error(r.Context(), "manual settlement sweep finished with failures", err)
			responses.WriteSuccessStatus(w, http.StatusMultiStatus, resp)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
