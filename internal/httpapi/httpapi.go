package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Omarrio321/ElectronicsPOS/internal/checkout"
	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/logging"
	"github.com/Omarrio321/ElectronicsPOS/internal/metrics"
	"github.com/Omarrio321/ElectronicsPOS/internal/service"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
)

const (
	maxBodyBytes      = 1 << 20
	requestTimeout    = 30 * time.Second
	busyRetryAfterSec = "1"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	metrics       *metrics.Metrics
	logger        *zap.Logger
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, m *metrics.Metrics, logger *zap.Logger, allowedOrigin string) *API {
	return &API{
		service:       svc,
		auth:          auth,
		metrics:       m,
		logger:        logging.OrNop(logger),
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
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
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(a.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(a.securityHeaders)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", a.handleHealth)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleCashier, domain.RoleAdmin))
			r.Post("/checkout", a.handleCheckout)
			r.Get("/sales/{id}", a.handleGetSale)
			r.Get("/reports", a.handleReport)
			r.Get("/products/{id}/low-stock", a.handleLowStock)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleAdmin))
			r.Get("/audit-logs", a.handleAuditLogs)
			r.Post("/products", a.handleCreateProduct)
			r.Post("/expenses", a.handleCreateExpense)
			r.Post("/expense-categories", a.handleCreateExpenseCategory)
		})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	})
	return r
}

func (a *API) requireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing bearer token"})
				return
			}

			actor, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
				return
			}
			if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
				writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden role"})
				return
			}
			next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "too many login attempts"})
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeDecodeError(w, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := decodeJSON(r, &req); err != nil {
		a.writeDecodeError(w, err)
		return
	}

	res, err := a.service.Checkout(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sale, err := a.service.GetSale(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := a.service.ReportFor(r.Context(), q.Get("type"), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	low, err := a.service.IsLowStock(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": id, "low_stock": low})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), date, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.NewProduct
	if err := decodeJSON(r, &req); err != nil {
		a.writeDecodeError(w, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (a *API) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.NewExpense
	if err := decodeJSON(r, &req); err != nil {
		a.writeDecodeError(w, err)
		return
	}
	expense, err := a.service.CreateExpense(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

func (a *API) handleCreateExpenseCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseCategory
	if err := decodeJSON(r, &req); err != nil {
		a.writeDecodeError(w, err)
		return
	}
	category, err := a.service.CreateExpenseCategory(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (a *API) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		if a.allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one zap line per request and records request metrics
// under the matched route pattern.
func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r)

		elapsed := time.Since(startedAt)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		a.metrics.ObserveRequest(route, status, elapsed)
		a.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// statusFor maps service, checkout and store errors to HTTP statuses.
func statusFor(err error) int {
	if kind, ok := checkout.KindOf(err); ok {
		switch kind {
		case checkout.KindInvalidRequest:
			return http.StatusBadRequest
		case checkout.KindInsufficientStock:
			return http.StatusConflict
		case checkout.KindBusy, checkout.KindCanceled:
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalid), errors.Is(err, domain.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrBusy), errors.Is(err, store.ErrConflict):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := map[string]any{"error": err.Error()}

	var coErr *checkout.Error
	if errors.As(err, &coErr) {
		body["kind"] = coErr.Kind.String()
		if coErr.Kind == checkout.KindInsufficientStock {
			body["product_id"] = coErr.ProductID
			body["requested"] = coErr.Requested
			body["available"] = coErr.Available
		}
		if coErr.Kind == checkout.KindBusy {
			w.Header().Set("Retry-After", busyRetryAfterSec)
		}
	}

	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		if status == http.StatusInternalServerError {
			body = map[string]any{"error": "internal server error"}
		} else {
			body["error"] = http.StatusText(status)
		}
	}
	writeJSON(w, status, body)
}

func (a *API) writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "request body too large"})
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body: " + err.Error()})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
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

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
