package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"stockbook/backend/internal/domain"
	"stockbook/backend/internal/service"
	"stockbook/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.New()
	seedTestUsers(t, repo)
	seedTestLedger(t, repo)

	svc := service.New(repo, nil, time.Minute)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func seedTestUsers(t *testing.T, repo *memory.Store) {
	t.Helper()
	for _, u := range []struct{ username, password, role string }{
		{"admin", "admin123", "admin"},
		{"staff", "staff123", "staff"},
	} {
		if err := repo.CreateUser(context.Background(), domain.UserAccount{
			Username:  u.username,
			Password:  mustHashPassword(t, u.password),
			Role:      u.role,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("seed user %s: %v", u.username, err)
		}
	}
}

func seedTestLedger(t *testing.T, repo *memory.Store) {
	t.Helper()
	amount := func(s string) decimal.Decimal {
		d, err := decimal.NewFromString(s)
		if err != nil {
			t.Fatalf("bad amount %q: %v", s, err)
		}
		return d
	}

	repo.PutParty(domain.Party{ID: "cust-001", Kind: domain.PartyCustomer, Number: "CUST-001", Name: "PT Maju Jaya"})
	repo.PutOrder(domain.Order{
		ID: "so-1001", PartyID: "cust-001", OrderNumber: "SO-1001",
		Date:        time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		TotalAmount: amount("500.00"), AmountPaid: amount("500.00"), Status: "completed",
		Payments: []domain.Payment{
			{ID: "pay-001", OrderID: "so-1001", Amount: amount("300.00"), Method: "bank_transfer",
				ReferenceNumber: "TRX-8821", PaymentDate: time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)},
		},
	})
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func loginToken(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return body.AccessToken
}

func authedGet(t *testing.T, handler http.Handler, token, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	// The loginLimiter allows 5 attempts per minute.
	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "badpass",
	})

	var lastCode int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after 6 attempts, got %d", lastCode)
	}
}

func TestLedgerRequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers/cust-001/ledger", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLedgerJSON(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "staff", "staff123")

	rec := authedGet(t, handler, token, "/api/v1/customers/cust-001/ledger")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var led domain.Ledger
	if err := json.NewDecoder(rec.Body).Decode(&led); err != nil {
		t.Fatalf("decode ledger: %v", err)
	}
	if led.Party.ID != "cust-001" {
		t.Fatalf("party: %+v", led.Party)
	}
	if led.Summary.TotalTransactions != len(led.Entries) {
		t.Fatalf("summary count %d != entries %d", led.Summary.TotalTransactions, len(led.Entries))
	}
}

func TestLedgerUnknownParty(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "staff", "staff123")

	rec := authedGet(t, handler, token, "/api/v1/customers/ghost/ledger")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestLedgerBadDateRange(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "staff", "staff123")

	rec := authedGet(t, handler, token, "/api/v1/customers/cust-001/ledger?startDate=2024-02-01&endDate=2024-01-01")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", rec.Code)
	}

	rec = authedGet(t, handler, token, "/api/v1/customers/cust-001/ledger?startDate=not-a-date")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unparseable date, got %d", rec.Code)
	}
}

func TestLedgerCSVExport(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "staff", "staff123")

	rec := authedGet(t, handler, token, "/api/v1/customers/cust-001/ledger/export/csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv; charset=utf-8" {
		t.Fatalf("content type: %s", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="cust-001-ledger.csv"` {
		t.Fatalf("content disposition: %s", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte(`"Date","Type"`)) {
		t.Fatalf("body: %s", rec.Body.String())
	}
}

func TestLedgerPDFExport(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "staff", "staff123")

	rec := authedGet(t, handler, token, "/api/v1/customers/cust-001/ledger/export/pdf")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type: %s", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="cust-001-ledger.pdf"` {
		t.Fatalf("content disposition: %s", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("expected PDF body")
	}
}

func TestSupplierRouteHidesCustomers(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "staff", "staff123")

	rec := authedGet(t, handler, token, "/api/v1/suppliers/cust-001/ledger")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for kind mismatch, got %d", rec.Code)
	}
}

func TestAuditLogsAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	staffToken := loginToken(t, handler, "staff", "staff123")
	rec := authedGet(t, handler, staffToken, "/api/v1/audit-logs")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", rec.Code)
	}

	adminToken := loginToken(t, handler, "admin", "admin123")
	rec = authedGet(t, handler, adminToken, "/api/v1/audit-logs")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestListCustomers(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "staff", "staff123")

	rec := authedGet(t, handler, token, "/api/v1/customers?search=maju")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body domain.PartyListResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Parties) != 1 || body.Parties[0].ID != "cust-001" {
		t.Fatalf("parties: %+v", body.Parties)
	}
}

func TestCreateStaffAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(domain.StaffCreateRequest{Username: "newstaff", Password: "secret99"})

	staffToken := loginToken(t, handler, "staff", "staff123")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/staff", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+staffToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", rec.Code)
	}

	adminToken := loginToken(t, handler, "admin", "admin123")
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/staff", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestRequestIDEchoed(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-abc-123" {
		t.Fatalf("expected request id echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a generated request id")
	}
}
