package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flipfinder/backend/config"
	"github.com/flipfinder/backend/internal/domain"
	"github.com/flipfinder/backend/internal/infrastructure/cache"
	"github.com/flipfinder/backend/internal/infrastructure/store"
	"github.com/flipfinder/backend/internal/usecase"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testEmail  = "flipper@example.com"
	testKey    = "sk-live-123"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeSearcher returns canned sold items
type fakeSearcher struct {
	mu    sync.Mutex
	items []domain.SoldItem
	err   error
	calls int
}

func (f *fakeSearcher) SearchSold(ctx context.Context, query string, limit int) ([]domain.SoldItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

// fakeModel returns canned model answers
type fakeModel struct {
	enhanced string
	product  string
	err      error
}

func (f *fakeModel) EnhanceTitle(ctx context.Context, title string) (string, error) {
	return f.enhanced, f.err
}

func (f *fakeModel) AnalyzeImage(ctx context.Context, imageURL string) (string, error) {
	return f.product, f.err
}

type testServer struct {
	router   *gin.Engine
	auth     *usecase.AuthService
	accounts *store.MemoryStore
	searcher *fakeSearcher
	model    *fakeModel
}

type serverOption func(*config.Config, *[]usecase.AccountSeed)

func withRateLimit(perMinute int) serverOption {
	return func(cfg *config.Config, _ *[]usecase.AccountSeed) { cfg.RateLimit.PerIP = perMinute }
}

func withSeed(seed usecase.AccountSeed) serverOption {
	return func(_ *config.Config, seeds *[]usecase.AccountSeed) { *seeds = append(*seeds, seed) }
}

// setupTestServer wires the real services over an in-memory store and fake upstreams
func setupTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"chrome-extension://*", "http://localhost:3000"},
		},
	}
	seeds := []usecase.AccountSeed{{
		Email:           testEmail,
		SubscriptionKey: testKey,
		Plan:            "pro",
		ExpiresAt:       time.Now().Add(365 * 24 * time.Hour),
	}}
	for _, opt := range opts {
		opt(cfg, &seeds)
	}

	accounts := store.NewMemoryStore()
	searchCache := cache.NewMemoryCache(time.Minute)
	t.Cleanup(searchCache.Close)

	searcher := &fakeSearcher{}
	model := &fakeModel{}

	authService := usecase.NewAuthService(accounts, usecase.AuthServiceConfig{JWTSecret: testSecret}, zap.NewNop())
	if err := authService.SeedAccounts(context.Background(), seeds); err != nil {
		t.Fatalf("SeedAccounts() error = %v", err)
	}
	proxyService := usecase.NewProxyService(searchCache, searcher, model, accounts, usecase.ProxyServiceConfig{
		CacheTTL: time.Hour,
	}, zap.NewNop())

	handler := NewHandler(proxyService, authService, zap.NewNop())
	router := SetupRouter(cfg, handler, NewMetrics(searchCache), zap.NewNop())

	return &testServer{router: router, auth: authService, accounts: accounts, searcher: searcher, model: model}
}

func (s *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	w := s.do(http.MethodPost, "/api/auth/login",
		`{"email":"`+testEmail+`","subscriptionKey":"`+testKey+`"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login Status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal login response: %v", err)
	}
	return resp.Token
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (%s)", err, w.Body.String())
	}
	return response
}

// TestHealthCheckEndpoint tests the health check endpoint
func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		s := setupTestServer(t)

		w := s.do(http.MethodGet, "/health", "", "")
		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		response := decodeBody(t, w)
		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "flipfinder-proxy" {
			t.Errorf("service = %v, want flipfinder-proxy", response["service"])
		}
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		s := setupTestServer(t)

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			w := s.do(method, "/health", "", "")
			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

func TestLoginEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid credentials", `{"email":"Flipper@Example.com","subscriptionKey":"` + testKey + `"}`, http.StatusOK},
		{"wrong key", `{"email":"` + testEmail + `","subscriptionKey":"nope"}`, http.StatusUnauthorized},
		{"unknown email", `{"email":"nobody@example.com","subscriptionKey":"` + testKey + `"}`, http.StatusUnauthorized},
		{"missing key", `{"email":"` + testEmail + `"}`, http.StatusBadRequest},
		{"invalid email", `{"email":"not-an-email","subscriptionKey":"x"}`, http.StatusBadRequest},
		{"invalid JSON", `{invalid json}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t)
			w := s.do(http.MethodPost, "/api/auth/login", tt.body, "")
			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}

			response := decodeBody(t, w)
			if tt.wantStatus == http.StatusOK {
				if token, _ := response["token"].(string); token == "" {
					t.Error("expected token in login response")
				}
				user, _ := response["user"].(map[string]interface{})
				if user["email"] != testEmail || user["plan"] != "pro" {
					t.Errorf("user = %v, want %s on pro", user, testEmail)
				}
			} else if response["error"] == nil {
				t.Error("expected error field in response")
			}
		})
	}

	t.Run("expired subscription is forbidden", func(t *testing.T) {
		s := setupTestServer(t, withSeed(usecase.AccountSeed{
			Email:           "lapsed@example.com",
			SubscriptionKey: "sk-old",
			ExpiresAt:       time.Now().Add(-time.Hour),
		}))
		w := s.do(http.MethodPost, "/api/auth/login", `{"email":"lapsed@example.com","subscriptionKey":"sk-old"}`, "")
		if w.Code != http.StatusForbidden {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

func TestSearchEndpoint(t *testing.T) {
	soldItems := []domain.SoldItem{
		{Title: "Blue Yeti USB Microphone", Price: 80, EndTime: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{Title: "Blue Yeti Mic Blackout", Price: 90, EndTime: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)},
	}

	t.Run("returns sold items for valid request", func(t *testing.T) {
		s := setupTestServer(t)
		s.searcher.items = soldItems
		token := s.login(t)

		w := s.do(http.MethodPost, "/api/search", `{"query":"blue yeti","limit":3}`, token)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
		}

		var resp domain.SearchResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if len(resp.SoldItems) != 2 || resp.SoldItems[1].Price != 90 {
			t.Errorf("soldItems = %+v, want the two canned items", resp.SoldItems)
		}
	})

	t.Run("empty result is an empty array", func(t *testing.T) {
		s := setupTestServer(t)
		token := s.login(t)

		w := s.do(http.MethodPost, "/api/search", `{"query":"nothing sells"}`, token)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if !strings.Contains(w.Body.String(), `"soldItems":[]`) {
			t.Errorf("body = %s, want soldItems []", w.Body.String())
		}
	})

	t.Run("legacy path is routed", func(t *testing.T) {
		s := setupTestServer(t)
		s.searcher.items = soldItems
		token := s.login(t)

		w := s.do(http.MethodPost, "/api/ebay/search", `{"query":"blue yeti"}`, token)
		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("repeated search is served from cache", func(t *testing.T) {
		s := setupTestServer(t)
		s.searcher.items = soldItems
		token := s.login(t)

		s.do(http.MethodPost, "/api/search", `{"query":"blue yeti"}`, token)
		s.do(http.MethodPost, "/api/search", `{"query":"  Blue Yeti "}`, token)
		if s.searcher.calls != 1 {
			t.Errorf("upstream calls = %d, want 1", s.searcher.calls)
		}
	})

	t.Run("missing token returns 401", func(t *testing.T) {
		s := setupTestServer(t)
		w := s.do(http.MethodPost, "/api/search", `{"query":"blue yeti"}`, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("forged token returns 401", func(t *testing.T) {
		s := setupTestServer(t)
		w := s.do(http.MethodPost, "/api/search", `{"query":"blue yeti"}`, "eyJhbGciOiJIUzI1NiJ9.e30.forged")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("returns 400 for missing query", func(t *testing.T) {
		s := setupTestServer(t)
		token := s.login(t)

		w := s.do(http.MethodPost, "/api/search", `{"limit":3}`, token)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("returns 400 for out of range limit", func(t *testing.T) {
		s := setupTestServer(t)
		token := s.login(t)

		w := s.do(http.MethodPost, "/api/search", `{"query":"yeti","limit":500}`, token)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("returns 500 for upstream failure", func(t *testing.T) {
		s := setupTestServer(t)
		s.searcher.err = domain.ErrUpstreamFailure
		token := s.login(t)

		w := s.do(http.MethodPost, "/api/search", `{"query":"blue yeti"}`, token)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		if response := decodeBody(t, w); response["error"] != "Upstream service temporarily unavailable" {
			t.Errorf("error = %v, want upstream message", response["error"])
		}
	})
}

func TestQuotaEnforcement(t *testing.T) {
	s := setupTestServer(t, withSeed(usecase.AccountSeed{
		Email:           "trial@example.com",
		SubscriptionKey: "sk-trial",
		Plan:            "trial",
		ExpiresAt:       time.Now().Add(24 * time.Hour),
		UsageLimit:      2,
	}))
	s.searcher.items = []domain.SoldItem{{Title: "x", Price: 10}}

	w := s.do(http.MethodPost, "/api/auth/login", `{"email":"trial@example.com","subscriptionKey":"sk-trial"}`, "")
	token, _ := decodeBody(t, w)["token"].(string)

	for i, path := range []string{"/api/search", "/api/enhance-title"} {
		body := `{"query":"canon ae-1"}`
		if path == "/api/enhance-title" {
			body = `{"title":"canon camera"}`
		}
		if w := s.do(http.MethodPost, path, body, token); w.Code != http.StatusOK {
			t.Fatalf("call %d: Status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}

	w = s.do(http.MethodPost, "/api/search", `{"query":"canon ae-1"}`, token)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") != "" {
		t.Error("quota rejection must not carry Retry-After")
	}

	account, err := s.accounts.GetByEmail(context.Background(), "trial@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	used, _ := s.accounts.GetUsage(context.Background(), account.ID, domain.UsagePeriod(time.Now()))
	if used != 2 {
		t.Errorf("usage = %d, want 2", used)
	}
}

func TestInactiveSubscriptionToken(t *testing.T) {
	s := setupTestServer(t, withSeed(usecase.AccountSeed{
		Email:           "lapsed@example.com",
		SubscriptionKey: "sk-old",
		ExpiresAt:       time.Now().Add(-time.Hour),
	}))

	account, err := s.accounts.GetByEmail(context.Background(), "lapsed@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	token, err := s.auth.IssueToken(account)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	w := s.do(http.MethodPost, "/api/search", `{"query":"yeti"}`, token)
	if w.Code != http.StatusForbidden {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestModelEndpoints(t *testing.T) {
	t.Run("enhanced title", func(t *testing.T) {
		s := setupTestServer(t)
		s.model.enhanced = "Blue Yeti USB Microphone"
		token := s.login(t)

		w := s.do(http.MethodPost, "/api/enhance-title", `{"title":"Yeti Mic"}`, token)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response := decodeBody(t, w); response["enhancedTitle"] != "Blue Yeti USB Microphone" {
			t.Errorf("enhancedTitle = %v", response["enhancedTitle"])
		}
	})

	t.Run("no enhancement is null", func(t *testing.T) {
		s := setupTestServer(t)
		token := s.login(t)

		w := s.do(http.MethodPost, "/api/ai/enhance-title", `{"title":"stuff"}`, token)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if !strings.Contains(w.Body.String(), `"enhancedTitle":null`) {
			t.Errorf("body = %s, want enhancedTitle null", w.Body.String())
		}
	})

	t.Run("product name from image", func(t *testing.T) {
		s := setupTestServer(t)
		s.model.product = "Canon AE-1 Program"
		token := s.login(t)

		w := s.do(http.MethodPost, "/api/analyze-image", `{"imageUrl":"https://cdn.example.com/camera.jpg"}`, token)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response := decodeBody(t, w); response["productName"] != "Canon AE-1 Program" {
			t.Errorf("productName = %v", response["productName"])
		}
	})

	t.Run("invalid image URL", func(t *testing.T) {
		s := setupTestServer(t)
		token := s.login(t)

		w := s.do(http.MethodPost, "/api/ai/analyze-image", `{"imageUrl":"not a url"}`, token)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("model failure", func(t *testing.T) {
		s := setupTestServer(t)
		s.model.err = domain.ErrUpstreamFailure
		token := s.login(t)

		w := s.do(http.MethodPost, "/api/enhance-title", `{"title":"Yeti Mic"}`, token)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}

func TestRateLimitIntegration(t *testing.T) {
	s := setupTestServer(t, withRateLimit(1))

	s.do(http.MethodPost, "/api/auth/login", `{"email":"x@example.com","subscriptionKey":"k"}`, "")
	w := s.do(http.MethodPost, "/api/auth/login", `{"email":"x@example.com","subscriptionKey":"k"}`, "")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	// health is outside the limited group
	if w := s.do(http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Errorf("health Status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t)
	s.searcher.items = []domain.SoldItem{{Title: "x", Price: 10}}
	token := s.login(t)

	s.do(http.MethodPost, "/api/search", `{"query":"yeti"}`, token)
	s.do(http.MethodPost, "/api/search", `{"query":"yeti"}`, token)

	w := s.do(http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	for _, want := range []string{
		`flipfinder_request_duration_seconds_count{code="200",method="POST",path="/api/search"} 2`,
		"flipfinder_search_cache_hits_total 1",
		"flipfinder_search_cache_entries 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

// TestCORSIntegration tests CORS headers work end-to-end with full router
func TestCORSIntegration(t *testing.T) {
	t.Run("health endpoint has CORS for the extension", func(t *testing.T) {
		s := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "chrome-extension://abcdefghijklmnop")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "chrome-extension://abcdefghijklmnop" {
			t.Errorf("Access-Control-Allow-Origin = %q, want extension origin", got)
		}
		if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
			t.Errorf("Access-Control-Allow-Credentials = %q, want %q", got, "true")
		}
	})

	t.Run("preflight on a protected route needs no token", func(t *testing.T) {
		s := setupTestServer(t)

		req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNoContent)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
		}
	})
}

// TestRecoveryMiddleware tests panic recovery
func TestRecoveryMiddleware(t *testing.T) {
	s := setupTestServer(t)
	s.router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := s.do(http.MethodGet, "/panic", "", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if response := decodeBody(t, w); response["error"] != "Internal server error" {
		t.Errorf("error = %v, want Internal server error", response["error"])
	}
}

// TestJSONResponses tests that API responses are valid JSON
func TestJSONResponses(t *testing.T) {
	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"POST", "/api/search"},
		{"POST", "/api/auth/login"},
	}

	for _, endpoint := range endpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			s := setupTestServer(t)
			w := s.do(endpoint.method, endpoint.path, "", "")

			if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
				t.Errorf("Content-Type = %q, want application/json; charset=utf-8", got)
			}
			decodeBody(t, w)
		})
	}
}
