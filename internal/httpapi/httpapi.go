package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tokobuning/backend/internal/barcode"
	"tokobuning/backend/internal/domain"
	"tokobuning/backend/internal/logging"
	"tokobuning/backend/internal/metrics"
	"tokobuning/backend/internal/service"
	"tokobuning/backend/internal/store"
	"tokobuning/backend/internal/validate"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	metrics       *metrics.Registry
	logger        logrus.FieldLogger
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

type Options struct {
	AllowedOrigin string
	Metrics       *metrics.Registry
	Logger        logrus.FieldLogger
}

func New(svc *service.Service, auth *AuthManager, opts Options) (*API, error) {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		return nil, fmt.Errorf("generate csrf secret: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		metrics:       opts.Metrics,
		logger:        logger,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}, nil
}

// csrfTokenForHour computes the hex HMAC-SHA256 token of one hour bucket.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts the current or previous hour bucket, giving a
// two-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(currentBucket))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(prevBucket)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.Handle("GET /metrics", a.metrics.Handler())
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/csrf-token", a.handleCSRFToken)
	mux.HandleFunc("GET /api/v1/users", a.requireAuth(a.handleListUsers))
	mux.HandleFunc("POST /api/v1/users", a.requireAuth(a.handleCreateUser))

	mux.HandleFunc("GET /api/v1/categories", a.requireAuth(a.handleListCategories))
	mux.HandleFunc("POST /api/v1/categories", a.requireAuth(a.handleCreateCategory))
	mux.HandleFunc("PATCH /api/v1/categories/{id}", a.requireAuth(a.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/v1/categories/{id}", a.requireAuth(a.handleDeleteCategory))
	mux.HandleFunc("GET /api/v1/suppliers", a.requireAuth(a.handleListSuppliers))
	mux.HandleFunc("POST /api/v1/suppliers", a.requireAuth(a.handleCreateSupplier))
	mux.HandleFunc("GET /api/v1/suppliers/{id}", a.requireAuth(a.handleGetSupplier))
	mux.HandleFunc("PATCH /api/v1/suppliers/{id}", a.requireAuth(a.handleUpdateSupplier))
	mux.HandleFunc("GET /api/v1/products", a.requireAuth(a.handleListProducts))
	mux.HandleFunc("POST /api/v1/products", a.requireAuth(a.handleCreateProduct))
	mux.HandleFunc("GET /api/v1/products/{id}", a.requireAuth(a.handleGetProduct))
	mux.HandleFunc("PATCH /api/v1/products/{id}", a.requireAuth(a.handleUpdateProduct))
	mux.HandleFunc("POST /api/v1/products/{id}/variants", a.requireAuth(a.handleAddVariant))
	mux.HandleFunc("GET /api/v1/variants/lookup", a.requireAuth(a.handleLookupVariant))
	mux.HandleFunc("PATCH /api/v1/variants/{id}", a.requireAuth(a.handleUpdateVariant))
	mux.HandleFunc("POST /api/v1/variants/{id}/deactivate", a.requireAuth(a.handleSetVariantActive(false)))
	mux.HandleFunc("POST /api/v1/variants/{id}/reactivate", a.requireAuth(a.handleSetVariantActive(true)))
	mux.HandleFunc("GET /api/v1/barcode/{code}", a.requireAuth(a.handleBarcodeLookup))

	mux.HandleFunc("POST /api/v1/stock/adjust", a.requireAuth(a.handleAdjustStock))
	mux.HandleFunc("POST /api/v1/stock/opname", a.requireAuth(a.handleStockOpname))
	mux.HandleFunc("GET /api/v1/stock/movements", a.requireAuth(a.handleListMovements))

	mux.HandleFunc("GET /api/v1/transactions", a.requireAuth(a.handleListTransactions))
	mux.HandleFunc("POST /api/v1/transactions", a.requireAuth(a.handleCreateSale))
	mux.HandleFunc("POST /api/v1/transactions/hold", a.requireAuth(a.handleHoldTransaction))
	mux.HandleFunc("GET /api/v1/transactions/{id}", a.requireAuth(a.handleGetTransaction))
	mux.HandleFunc("GET /api/v1/transactions/{id}/receipt", a.requireAuth(a.handleReceipt))
	mux.HandleFunc("POST /api/v1/transactions/{id}/resume", a.requireAuth(a.handleResumeTransaction))
	mux.HandleFunc("PATCH /api/v1/transactions/{id}", a.requireAuth(a.handleUpdateHeldTransaction))
	mux.HandleFunc("POST /api/v1/transactions/{id}/cancel", a.requireAuth(a.handleCancelHeldTransaction))

	mux.HandleFunc("GET /api/v1/debts", a.requireAuth(a.handleListDebts))
	mux.HandleFunc("GET /api/v1/debts/summary", a.requireAuth(a.handleDebtSummary))
	mux.HandleFunc("POST /api/v1/debts/payables", a.requireAuth(a.handleCreatePayable))
	mux.HandleFunc("POST /api/v1/debts/receivables", a.requireAuth(a.handleCreateReceivable))
	mux.HandleFunc("GET /api/v1/debts/{id}", a.requireAuth(a.handleGetDebt))
	mux.HandleFunc("GET /api/v1/debts/{id}/timeline", a.requireAuth(a.handleDebtTimeline))
	mux.HandleFunc("POST /api/v1/debts/{id}/payments", a.requireAuth(a.handleRecordPayment))
	mux.HandleFunc("POST /api/v1/debts/{id}/add-amount", a.requireAuth(a.handleAddAmount))

	mux.HandleFunc("GET /api/v1/customers", a.requireAuth(a.handleListCustomers))
	mux.HandleFunc("POST /api/v1/customers", a.requireAuth(a.handleCreateCustomer))
	mux.HandleFunc("GET /api/v1/customers/{id}", a.requireAuth(a.handleGetCustomer))
	mux.HandleFunc("PATCH /api/v1/customers/{id}", a.requireAuth(a.handleUpdateCustomer))
	mux.HandleFunc("GET /api/v1/customers/{id}/savings", a.requireAuth(a.handleSavingsHistory))
	mux.HandleFunc("POST /api/v1/savings/deposit", a.requireAuth(a.handleDeposit))
	mux.HandleFunc("POST /api/v1/savings/withdraw", a.requireAuth(a.handleWithdraw))
	mux.HandleFunc("GET /api/v1/savings/summary", a.requireAuth(a.handleSavingsSummary))

	mux.HandleFunc("GET /api/v1/expenses", a.requireAuth(a.handleListExpenses))
	mux.HandleFunc("POST /api/v1/expenses", a.requireAuth(a.handleCreateExpense))
	mux.HandleFunc("DELETE /api/v1/expenses/{id}", a.requireAuth(a.handleDeleteExpense))
	mux.HandleFunc("GET /api/v1/store-info", a.requireAuth(a.handleGetStoreInfo))
	mux.HandleFunc("PUT /api/v1/store-info", a.requireAuth(a.handleUpdateStoreInfo))

	mux.HandleFunc("GET /api/v1/reports/dashboard", a.requireAuth(a.handleDashboard))
	mux.HandleFunc("GET /api/v1/reports/cash-flow", a.requireAuth(a.handleCashFlow))
	mux.HandleFunc("GET /api/v1/reports/profit-loss", a.requireAuth(a.handleProfitLoss))
	mux.HandleFunc("GET /api/v1/reports/low-stock", a.requireAuth(a.handleLowStock))
	mux.HandleFunc("GET /api/v1/reports/best-sellers", a.requireAuth(a.handleBestSellers))
	mux.HandleFunc("GET /api/v1/reports/recent-activity", a.requireAuth(a.handleRecentActivity))
	mux.HandleFunc("GET /api/v1/audit-logs", a.requireAuth(a.handleAuditLogs))

	return a.withMiddleware(mux)
}

// requireAuth only authenticates. Capability checks happen in the service so
// every entry point enforces the same table.
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeError(w, r, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.writeError(w, r, http.StatusUnauthorized, err)
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, r, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.writeError(w, r, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless token for the X-CSRF-Token header of
// mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !a.canManageUsers(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": a.auth.ListUsers(r.Context())})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !a.canManageUsers(w, r) {
		return
	}
	var req domain.UserCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	user, err := a.auth.CreateUser(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) canManageUsers(w http.ResponseWriter, r *http.Request) bool {
	actor, ok := service.ActorFromContext(r.Context())
	if !ok || !actor.Role.Can(domain.CapManageUsers) {
		a.fail(w, r, fmt.Errorf("%w: role %s lacks %s", service.ErrForbidden, actor.Role, domain.CapManageUsers))
		return false
	}
	return true
}

// csrfExemptPaths are called before a client can fetch a token.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces the CSRF token on state-changing methods and writes the
// error response itself when the check fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		a.writeError(w, r, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		startedAt := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(startedAt)

		a.metrics.ObserveRequest(r.Method, rec.status, elapsed)
		a.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": elapsed.String(),
		}).Info("request handled")
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// decode writes a 400 and returns false when the body is not valid JSON for dest.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := decodeJSON(r, dest); err != nil {
		a.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// parseOptionalBool returns nil for an empty value.
func parseOptionalBool(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a boolean", store.ErrInvalidTransaction, raw)
	}
	return &parsed, nil
}

// statusForError maps domain failures onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound), errors.Is(err, barcode.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidTransaction),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrInsufficientPayment),
		errors.Is(err, store.ErrInsufficientBalance):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrDuplicate), errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, barcode.ErrUnavailable), errors.Is(err, service.ErrLookupDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error  string                `json:"error"`
	Fields []validate.FieldError `json:"fields,omitempty"`
	Detail map[string]any        `json:"detail,omitempty"`
}

// fail classifies err and writes it with any field or deficit detail it carries.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= 500 {
		a.writeError(w, r, status, err)
		return
	}

	body := errorResponse{Error: err.Error()}
	var verrs *validate.Errors
	if errors.As(err, &verrs) {
		body.Fields = verrs.Fields
	}
	var stockErr *store.InsufficientStockError
	var deficit *store.DeficitError
	switch {
	case errors.As(err, &stockErr):
		body.Detail = map[string]any{
			"variant_id":   stockErr.VariantID,
			"variant_name": stockErr.VariantName,
			"requested":    stockErr.Requested,
			"available":    stockErr.Available,
		}
	case errors.As(err, &deficit):
		body.Detail = map[string]any{
			"required":  deficit.Required,
			"available": deficit.Available,
			"deficit":   deficit.Deficit(),
		}
	}
	writeJSON(w, status, body)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	// 5xx bodies stay generic; the cause goes to the log only.
	msg := err.Error()
	if status >= 500 {
		logging.LogError(a.logger, "httpapi", "writeError", r.Method+" "+r.URL.Path, map[string]any{"status": status}, err)
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
