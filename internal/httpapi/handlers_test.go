package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tokokasbon/backend/internal/cache"
	"tokokasbon/backend/internal/domain"
	"tokokasbon/backend/internal/notify"
	"tokokasbon/backend/internal/reminder"
	"tokokasbon/backend/internal/risk"
	"tokokasbon/backend/internal/service"
	"tokokasbon/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	riskEngine := risk.NewEngine(cache.NoopRiskCache{}, 5*time.Second, 2.0)
	scheduler := reminder.NewScheduler(repo, 3, 14)
	svc := service.New(repo, riskEngine, scheduler, notify.LogNotifier{}, "test-store")
	auth := NewAuthManager("test-secret-key", time.Hour, "123456", repo)

	return New(svc, auth, "*")
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

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
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

func TestHandleLoans_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleReminderRun_ForbiddenForCashier(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "cashier", "cashier123")
	csrf := fetchCSRFToken(t, api)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reminders/run", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}
}

// authorizedJSON issues an authenticated JSON request through the full handler
// chain and returns the recorder.
func authorizedJSON(t *testing.T, api *API, token string, csrf string, method string, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	dueDate := time.Now().UTC().AddDate(0, 0, 10).Format("2006-01-02")
	rec := authorizedJSON(t, api, token, csrf, http.MethodPost, "/api/v1/checkout", domain.CheckoutRequest{
		CustomerID:       "cust-seed-budi",
		IdempotencyKey:   "http-idem-1",
		PaymentKind:      "partial",
		DownPaymentCents: 1000000,
		DueDate:          dueDate,
		CartItems:        []domain.CartItem{{SKU: "SKU-BERAS-01", Qty: 1}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("checkout failed: %d %s", rec.Code, rec.Body.String())
	}

	var checkout domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&checkout); err != nil {
		t.Fatalf("decode checkout: %v", err)
	}
	if checkout.LoanID == "" {
		t.Fatalf("expected loan id in checkout response")
	}

	rec = authorizedJSON(t, api, token, csrf, http.MethodPost, "/api/v1/loans/"+checkout.LoanID+"/payments", domain.PaymentRequest{
		IdempotencyKey: "http-pay-1",
		AmountCents:    800000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("payment failed: %d %s", rec.Code, rec.Body.String())
	}

	var payResp domain.PaymentResponse
	if err := json.NewDecoder(rec.Body).Decode(&payResp); err != nil {
		t.Fatalf("decode payment: %v", err)
	}
	if payResp.Loan.RemainingCents != 5000000 {
		t.Fatalf("expected remaining 5000000, got %d", payResp.Loan.RemainingCents)
	}

	rec = authorizedJSON(t, api, token, csrf, http.MethodPost, "/api/v1/loans/"+checkout.LoanID+"/payments", domain.PaymentRequest{
		IdempotencyKey: "http-pay-over",
		AmountCents:    99999999,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for overpayment, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestMarkDefaultedRequiresManagerPIN(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	dueDate := time.Now().UTC().AddDate(0, 0, -30).Format("2006-01-02")
	rec := authorizedJSON(t, api, token, csrf, http.MethodPost, "/api/v1/checkout", domain.CheckoutRequest{
		CustomerID:     "cust-seed-sari",
		IdempotencyKey: "http-idem-default",
		PaymentKind:    "loan",
		DueDate:        dueDate,
		CartItems:      []domain.CartItem{{SKU: "SKU-MINYAK-01", Qty: 1}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("checkout failed: %d %s", rec.Code, rec.Body.String())
	}
	var checkout domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&checkout); err != nil {
		t.Fatalf("decode checkout: %v", err)
	}

	rec = authorizedJSON(t, api, token, csrf, http.MethodPost, "/api/v1/loans/"+checkout.LoanID+"/default", domain.MarkDefaultedRequest{
		Reason:     "no contact",
		ManagerPIN: "000000",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong pin, got %d", rec.Code)
	}

	rec = authorizedJSON(t, api, token, csrf, http.MethodPost, "/api/v1/loans/"+checkout.LoanID+"/default", domain.MarkDefaultedRequest{
		Reason:     "no contact for 60 days",
		ManagerPIN: "123456",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("mark defaulted failed: %d %s", rec.Code, rec.Body.String())
	}

	var body map[string]domain.Loan
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode loan: %v", err)
	}
	if body["loan"].Status != domain.LoanStatusDefaulted {
		t.Fatalf("expected defaulted status, got %s", body["loan"].Status)
	}
}

func TestReminderRunAndDispatchOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	dueDate := time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")
	rec := authorizedJSON(t, api, token, csrf, http.MethodPost, "/api/v1/checkout", domain.CheckoutRequest{
		CustomerID:     "cust-seed-budi",
		IdempotencyKey: "http-idem-rem",
		PaymentKind:    "loan",
		DueDate:        dueDate,
		CartItems:      []domain.CartItem{{SKU: "SKU-SUSU-01", Qty: 1}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("checkout failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = authorizedJSON(t, api, token, "", http.MethodPost, "/api/v1/reminders/run", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reminder run failed: %d %s", rec.Code, rec.Body.String())
	}
	var runResp domain.ReminderRunResponse
	if err := json.NewDecoder(rec.Body).Decode(&runResp); err != nil {
		t.Fatalf("decode run response: %v", err)
	}
	if runResp.MessagesScheduled != 1 {
		t.Fatalf("expected 1 scheduled reminder, got %d", runResp.MessagesScheduled)
	}

	rec = authorizedJSON(t, api, token, "", http.MethodPost, "/api/v1/reminders/dispatch", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dispatch failed: %d %s", rec.Code, rec.Body.String())
	}
	var dispatch domain.DispatchResult
	if err := json.NewDecoder(rec.Body).Decode(&dispatch); err != nil {
		t.Fatalf("decode dispatch: %v", err)
	}
	if dispatch.Dispatched != 1 || dispatch.Failed != 0 {
		t.Fatalf("expected 1 dispatched and 0 failed, got %+v", dispatch)
	}
}

func TestLoanReportCSVOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/loans?format=csv", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("loan report csv failed: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("customer_id,")) {
		t.Fatalf("expected csv header row, got %q", rec.Body.String())
	}
}

func loginAs(t *testing.T, api *API, username string, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", username, rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("expected access token, got %s", fmt.Sprintf("%+v", resp))
	}
	return resp.AccessToken
}
