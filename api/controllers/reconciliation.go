package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/parcelgrid/wallet-backend/api/responses"
	"github.com/parcelgrid/wallet-backend/api/validators"
	"github.com/parcelgrid/wallet-backend/internal/reconciliation"
	pkgerrors "github.com/parcelgrid/wallet-backend/pkg/errors"
	"github.com/parcelgrid/wallet-backend/pkg/logger"
)

type runReconciliationRequest struct {
	Gateway string `json:"gateway" validate:"required,max=64"`
	Date    string `json:"date" validate:"required"`
}

// RunReconciliation compares one UTC day of gateway confirmations against the
// ledger and persists the report.
func RunReconciliation(svc *reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req runReconciliationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "date must be YYYY-MM-DD"))
			return
		}

		report, err := svc.Run(r.Context(), validators.SanitizeString(req.Gateway, 64), date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newReportView(report))
	}
}

// ListReconciliationReports returns a gateway's recent reports, newest first.
func ListReconciliationReports(svc *reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gateway := strings.TrimSpace(r.URL.Query().Get("gateway"))
		if gateway == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "gateway query parameter is required"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 30, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reports, err := svc.ListReports(r.Context(), gateway, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]reportView, 0, len(reports))
		for i := range reports {
			views = append(views, newReportView(&reports[i]))
		}
		responses.WriteSuccess(w, views)
	}
}
