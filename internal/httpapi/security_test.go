package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func fetchCSRFToken(t *testing.T, api *API) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("csrf token fetch failed: %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode csrf response: %v", err)
	}
	if body["csrf_token"] == "" {
		t.Fatalf("expected csrf_token in response")
	}
	return body["csrf_token"]
}

func loginAsAdmin(t *testing.T, api *API) string {
	t.Helper()
	return loginAs(t, api, "admin", "admin123")
}

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	checks := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	}
	for header, want := range checks {
		if got := rec.Header().Get(header); got != want {
			t.Fatalf("expected %s=%q, got %q", header, want, got)
		}
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})

	var lastCode int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated login failures, got %d", lastCode)
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	oversized := fmt.Sprintf(`{"name":"%s"}`, strings.Repeat("a", (1<<20)+1024))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/customers", strings.NewReader(oversized))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", rec.Code)
	}
}

func TestMutatingRequestWithoutCSRFTokenRejected(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	payload, _ := json.Marshal(map[string]string{"name": "Pak Joko", "phone": "+628133333333"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/customers", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf token, got %d", rec.Code)
	}
}

func TestManagerPINRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"reason":      "testing limits",
		"manager_pin": "000000",
	})

	codes := make([]int, 0, 9)
	for i := 0; i < 9; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/loan-x/default", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-CSRF-Token", csrf)
		req.RemoteAddr = "127.0.0.1:6000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	for i := 0; i < 8; i++ {
		if codes[i] != http.StatusForbidden {
			t.Fatalf("attempt %d: expected 403 for wrong pin, got %d", i+1, codes[i])
		}
	}
	if codes[8] != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on ninth pin attempt, got %d", codes[8])
	}
}

func TestParsePositiveLimitCaps(t *testing.T) {
	cases := []struct {
		raw      string
		fallback int
		max      int
		want     int
	}{
		{"", 50, 1000, 50},
		{"10", 50, 1000, 10},
		{"-3", 50, 1000, 50},
		{"junk", 50, 1000, 50},
		{"99999", 50, 1000, 1000},
	}
	for _, tc := range cases {
		if got := parsePositiveLimit(tc.raw, tc.fallback, tc.max); got != tc.want {
			t.Fatalf("parsePositiveLimit(%q)=%d, want %d", tc.raw, got, tc.want)
		}
	}
}
