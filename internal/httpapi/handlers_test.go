package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/Omarrio321/ElectronicsPOS/internal/audit"
	"github.com/Omarrio321/ElectronicsPOS/internal/checkout"
	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/inventory"
	"github.com/Omarrio321/ElectronicsPOS/internal/metrics"
	"github.com/Omarrio321/ElectronicsPOS/internal/reporting"
	"github.com/Omarrio321/ElectronicsPOS/internal/sales"
	"github.com/Omarrio321/ElectronicsPOS/internal/service"
	"github.com/Omarrio321/ElectronicsPOS/internal/settings"
	"github.com/Omarrio321/ElectronicsPOS/internal/store/memory"
)

// Seeded catalog ids used below.
const (
	usbCableID = 1
	keyboardID = 6
	ssdID      = 7
)

// newTestAPI builds a full API over an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) (*API, *memory.Store) {
	t.Helper()

	repo := memory.NewSeeded(memory.WithLockTimeout(20 * time.Millisecond))
	logger := zaptest.NewLogger(t)
	rates, err := settings.ParseStatic("0.08")
	require.NoError(t, err)
	m := metrics.New("pos_test")

	coordinator := checkout.New(repo, inventory.NewLedger(repo), sales.NewStore(repo), rates,
		audit.NewStoreSink(repo), logger, checkout.WithObserver(m))
	reports := reporting.New(sales.NewStore(repo), repo, inventory.NewLedger(repo), reporting.WithLogger(logger))
	svc := service.New(repo, coordinator, reports, service.WithLogger(logger))

	auth := newTestAuth(t)
	require.NoError(t, auth.AddUser("admin", mustHashPassword(t, "admin123"), domain.RoleAdmin))
	require.NoError(t, auth.AddUser("kasir", mustHashPassword(t, "kasir123"), domain.RoleCashier))

	return New(svc, auth, m, logger, "*"), repo
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func login(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var payload domain.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	require.NotEmpty(t, payload.AccessToken)
	return payload.AccessToken
}

func do(h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandleHealth(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := do(api.Handler(), http.MethodGet, "/healthz", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["ok"])
}

func TestHandleLoginInvalidCredentials(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := do(api.Handler(), http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "admin", Password: "wrong"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutRequiresBearerToken(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := do(api.Handler(), http.MethodPost, "/api/v1/checkout", "", checkout.Request{})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutCreatesSale(t *testing.T) {
	api, repo := newTestAPI(t)
	h := api.Handler()
	token := login(t, h, "kasir", "kasir123")

	rec := do(h, http.MethodPost, "/api/v1/checkout", token, map[string]any{
		"items":          []map[string]any{{"product_id": usbCableID, "quantity": 2}},
		"payment_method": "Cash",
		"amount_paid":    "20.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res checkout.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "17.26", res.GrandTotal.String())
	require.NotNil(t, res.Sale)
	assert.Equal(t, "2.74", res.Sale.ChangeGiven.String())
	assert.Equal(t, "kasir", res.Sale.Username)

	product, err := repo.GetProduct(context.Background(), usbCableID)
	require.NoError(t, err)
	assert.Equal(t, 118, product.QuantityInStock)

	rec = do(h, http.MethodGet, "/api/v1/sales/"+strconv.FormatInt(res.SaleID, 10), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sale domain.Sale
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sale))
	assert.Equal(t, res.SaleID, sale.ID)
	assert.Equal(t, domain.PaymentCash, sale.PaymentMethod)
}

func TestCheckoutInsufficientStockIsConflict(t *testing.T) {
	api, _ := newTestAPI(t)
	h := api.Handler()
	token := login(t, h, "kasir", "kasir123")

	rec := do(h, http.MethodPost, "/api/v1/checkout", token, map[string]any{
		"items":          []map[string]any{{"product_id": ssdID, "quantity": 50}},
		"payment_method": "Card",
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "insufficient_stock", body["kind"])
	assert.EqualValues(t, ssdID, body["product_id"])
	assert.EqualValues(t, 50, body["requested"])
	assert.EqualValues(t, 12, body["available"])
}

func TestCheckoutInvalidRequestIsBadRequest(t *testing.T) {
	api, _ := newTestAPI(t)
	h := api.Handler()
	token := login(t, h, "kasir", "kasir123")

	rec := do(h, http.MethodPost, "/api/v1/checkout", token, map[string]any{
		"items":          []map[string]any{{"product_id": usbCableID, "quantity": 1}},
		"payment_method": "Bitcoin",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeBody(t, rec)["kind"])

	rec = do(h, http.MethodPost, "/api/v1/checkout", token, map[string]any{"unexpected": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutBusyIsRetryable(t *testing.T) {
	api, repo := newTestAPI(t)
	h := api.Handler()
	token := login(t, h, "kasir", "kasir123")

	ctx := context.Background()
	holder, err := repo.Begin(ctx)
	require.NoError(t, err)
	_, err = holder.LockProduct(ctx, keyboardID)
	require.NoError(t, err)
	defer func() { _ = holder.Rollback(ctx) }()

	rec := do(h, http.MethodPost, "/api/v1/checkout", token, map[string]any{
		"items":          []map[string]any{{"product_id": keyboardID, "quantity": 1}},
		"payment_method": "Card",
	})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	body := decodeBody(t, rec)
	assert.Equal(t, "busy", body["kind"])
	assert.NotContains(t, body["error"], "lock")
}

func TestGetSaleErrors(t *testing.T) {
	api, _ := newTestAPI(t)
	h := api.Handler()
	token := login(t, h, "kasir", "kasir123")

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/v1/sales/999", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/v1/sales/abc", token, nil).Code)
}

func TestLowStockEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)
	h := api.Handler()
	token := login(t, h, "kasir", "kasir123")

	rec := do(h, http.MethodGet, "/api/v1/products/"+strconv.Itoa(keyboardID)+"/low-stock", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["low_stock"])

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/v1/products/999/low-stock", token, nil).Code)
}

func TestReportEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)
	h := api.Handler()
	token := login(t, h, "kasir", "kasir123")

	rec := do(h, http.MethodPost, "/api/v1/checkout", token, map[string]any{
		"items":          []map[string]any{{"product_id": usbCableID, "quantity": 1}},
		"payment_method": "Card",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/reports?type=daily", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report domain.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, int64(1), report.OrderCount)
	assert.Equal(t, "8.63", report.Revenue.String())
	assert.Len(t, report.DailySeries, 1)

	rec = do(h, http.MethodGet, "/api/v1/reports?type=yearly", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	api, _ := newTestAPI(t)
	h := api.Handler()
	cashierToken := login(t, h, "kasir", "kasir123")
	adminToken := login(t, h, "admin", "admin123")

	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/api/v1/audit-logs", cashierToken, nil).Code)

	rec := do(h, http.MethodPost, "/api/v1/checkout", cashierToken, map[string]any{
		"items":          []map[string]any{{"product_id": usbCableID, "quantity": 1}},
		"payment_method": "Mobile Money",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/audit-logs?limit=10", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Logs []domain.AuditEvent `json:"logs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	require.Len(t, payload.Logs, 1)
	assert.Equal(t, domain.ActionCheckout, payload.Logs[0].Action)
	assert.Equal(t, "kasir", payload.Logs[0].ActorUsername)

	rec = do(h, http.MethodPost, "/api/v1/expenses", adminToken, map[string]any{
		"category_id": 1,
		"title":       "Shop rent",
		"amount":      "450.00",
		"date":        "2024-05-01",
		"status":      "paid",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(h, http.MethodPost, "/api/v1/expenses", adminToken, map[string]any{
		"category_id":  1,
		"title":        "Odd",
		"amount":       "5.00",
		"status":       "bogus",
		"expense_type": "weekly",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = do(h, http.MethodPost, "/api/v1/products", adminToken, map[string]any{
		"sku":               "EL-CAM-4K",
		"name":              "4K Webcam",
		"cost_price":        "35.00",
		"selling_price":     "79.00",
		"quantity_in_stock": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeBody(t, rec)["is_active"])

	rec = do(h, http.MethodPost, "/api/v1/expense-categories", adminToken, map[string]any{"name": "Marketing"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, domain.DefaultCategoryColor, decodeBody(t, rec)["color"])
}

func TestMetricsEndpointExposesRequestCounters(t *testing.T) {
	api, _ := newTestAPI(t)
	h := api.Handler()

	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz", "", nil).Code)

	rec := do(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `pos_test_http_requests_total{handler="/healthz",status="200"} 1`), rec.Body.String())
}
