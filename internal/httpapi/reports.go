package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"tokobuning/backend/internal/domain"
)

func wantsXLSX(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("format")), "xlsx")
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	rng := domain.DashboardRange(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("range"))))
	report, err := a.service.Dashboard(r.Context(), rng)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleCashFlow(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	report, err := a.service.CashFlow(r.Context(), query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !wantsXLSX(r) {
		writeJSON(w, http.StatusOK, report)
		return
	}

	f, err := cashFlowWorkbook(report)
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	filename := fmt.Sprintf("arus-kas_%s_%s.xlsx", report.StartDate, report.EndDate)
	if err := writeWorkbook(w, filename, f); err != nil {
		a.logger.WithError(err).Warn("write cash flow workbook")
	}
}

func (a *API) handleProfitLoss(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	report, err := a.service.ProfitLoss(r.Context(), query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !wantsXLSX(r) {
		writeJSON(w, http.StatusOK, report)
		return
	}

	f, err := profitLossWorkbook(report)
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	filename := fmt.Sprintf("laba-rugi_%s_%s.xlsx", report.StartDate, report.EndDate)
	if err := writeWorkbook(w, filename, f); err != nil {
		a.logger.WithError(err).Warn("write profit loss workbook")
	}
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.LowStock(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleBestSellers(w http.ResponseWriter, r *http.Request) {
	sellers, err := a.service.BestSellers(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"best_sellers": sellers})
}

func (a *API) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := a.service.RecentActivity(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": activity})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parsePositiveLimit(query.Get("limit"), 200, 1000)
	logs, err := a.service.ListAuditLogs(r.Context(), query.Get("date"), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
