package httpapi

import (
	"net/http"
	"strings"

	"tokobuning/backend/internal/domain"
)

func (a *API) handleListDebts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	settled, err := parseOptionalBool(query.Get("settled"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	filter := domain.DebtFilter{
		Type:    domain.DebtType(strings.ToUpper(strings.TrimSpace(query.Get("type")))),
		Settled: settled,
		Search:  strings.TrimSpace(query.Get("search")),
		Limit:   parsePositiveLimit(query.Get("limit"), 100, 500),
	}
	debts, err := a.service.ListDebtCredits(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"debts": debts})
}

func (a *API) handleDebtSummary(w http.ResponseWriter, r *http.Request) {
	debtType := domain.DebtType(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("type"))))
	summary, err := a.service.DebtSummary(r.Context(), debtType)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleCreatePayable(w http.ResponseWriter, r *http.Request) {
	var req domain.PayableCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	debt, err := a.service.CreatePayable(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"debt": debt})
}

func (a *API) handleCreateReceivable(w http.ResponseWriter, r *http.Request) {
	var req domain.ReceivableCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	debt, err := a.service.CreateReceivable(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"debt": debt})
}

func (a *API) handleGetDebt(w http.ResponseWriter, r *http.Request) {
	debt, err := a.service.GetDebtCredit(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"debt": debt})
}

func (a *API) handleDebtTimeline(w http.ResponseWriter, r *http.Request) {
	timeline, err := a.service.DebtTimeline(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, timeline)
}

func (a *API) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if !a.decode(w, r, &req) {
		return
	}
	result, err := a.service.RecordPayment(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleAddAmount(w http.ResponseWriter, r *http.Request) {
	var req domain.AddAmountRequest
	if !a.decode(w, r, &req) {
		return
	}
	debt, err := a.service.AddAmount(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"debt": debt})
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := a.service.ListCustomers(r.Context(), strings.TrimSpace(r.URL.Query().Get("search")))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := a.service.GetCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerRequest
	if !a.decode(w, r, &req) {
		return
	}
	customer, err := a.service.CreateCustomer(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
}

func (a *API) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	customer, err := a.service.UpdateCustomer(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleSavingsHistory(w http.ResponseWriter, r *http.Request) {
	history, err := a.service.SavingsHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (a *API) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req domain.DepositRequest
	if !a.decode(w, r, &req) {
		return
	}
	result, err := a.service.Deposit(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req domain.WithdrawRequest
	if !a.decode(w, r, &req) {
		return
	}
	result, err := a.service.Withdraw(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleSavingsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.service.SavingsSummary(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	expenses, err := a.service.ListExpenses(r.Context(), query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

func (a *API) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseRequest
	if !a.decode(w, r, &req) {
		return
	}
	expense, err := a.service.CreateExpense(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"expense": expense})
}

func (a *API) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleGetStoreInfo(w http.ResponseWriter, r *http.Request) {
	info, err := a.service.StoreInfo(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"store": info})
}

func (a *API) handleUpdateStoreInfo(w http.ResponseWriter, r *http.Request) {
	var req domain.StoreInfoRequest
	if !a.decode(w, r, &req) {
		return
	}
	info, err := a.service.UpdateStoreInfo(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"store": info})
}
