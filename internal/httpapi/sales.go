package httpapi

import (
	"net/http"
	"strings"

	"tokobuning/backend/internal/domain"
)

func (a *API) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, to, err := a.service.DateRange(query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	filter := domain.TransactionFilter{
		From:          from,
		To:            to,
		Cashier:       strings.TrimSpace(query.Get("cashier")),
		PaymentMethod: domain.PaymentMethod(strings.TrimSpace(query.Get("payment_method"))),
		Status:        domain.TxStatus(strings.TrimSpace(query.Get("status"))),
		Limit:         parsePositiveLimit(query.Get("limit"), 100, 500),
	}
	list, err := a.service.ListTransactions(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSaleRequest
	if !a.decode(w, r, &req) {
		return
	}
	txn, err := a.service.CreateSale(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": txn})
}

func (a *API) handleHoldTransaction(w http.ResponseWriter, r *http.Request) {
	var req domain.HoldRequest
	if !a.decode(w, r, &req) {
		return
	}
	txn, err := a.service.HoldTransaction(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": txn})
}

func (a *API) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := a.service.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": txn})
}

// handleReceipt returns the receipt as JSON, or as printable HTML when
// format=html.
func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := a.service.Receipt(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("format")), "html") {
		writeJSON(w, http.StatusOK, receipt)
		return
	}

	page, err := renderReceipt(receipt, a.service.Location())
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

func (a *API) handleResumeTransaction(w http.ResponseWriter, r *http.Request) {
	var req domain.ResumeRequest
	if !a.decode(w, r, &req) {
		return
	}
	txn, err := a.service.ResumeTransaction(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": txn})
}

func (a *API) handleUpdateHeldTransaction(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateHeldRequest
	if !a.decode(w, r, &req) {
		return
	}
	txn, err := a.service.UpdateHeldTransaction(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": txn})
}

func (a *API) handleCancelHeldTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := a.service.CancelHeldTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": txn})
}
