package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"layaway/internal/logging"
	"layaway/internal/metrics"
	"layaway/internal/notify"
	"layaway/internal/service"
	"layaway/internal/testutil"
	"layaway/pkg/response"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	r, _ := newTestRouterWithRedis(t)
	return r
}

func newTestRouterWithRedis(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()

	db := testutil.NewDB(t)
	mr, rdb := testutil.NewRedis(t)
	cfg := testutil.Config()
	logger := logging.Discard()

	m := metrics.New("test")
	registry := prometheus.NewRegistry()
	registry.MustRegister(m.HTTPRequests, m.HTTPLatency, m.Transitions)

	configs := service.NewConfigService(db, rdb, cfg, m, logger)
	if err := configs.Init(context.Background()); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	dispatcher := notify.NopDispatcher{CountryCode: cfg.Financing.CountryCode, Logger: logger}

	h := NewHandler(
		service.NewRequestService(db, configs, logger),
		service.NewLifecycleService(db, rdb, cfg, dispatcher, m, logger),
		service.NewTrustService(db, rdb, cfg, m, logger),
		configs,
		logger,
	)
	return SetupRouter(h, m, registry, logger), mr
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}) envelope {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("%s %s: unexpected http status %d", method, path, w.Code)
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	return env
}

func createBody(category string, total int64) gin.H {
	return gin.H{
		"customer_name":    "Ana Pérez",
		"email":            "ana@example.com",
		"phone":            "0991234567",
		"address":          "Av. Amazonas 123",
		"product_name":     "Phone X",
		"product_category": category,
		"total_amount":     total,
	}
}

func createRequest(t *testing.T, r *gin.Engine, total int64) string {
	t.Helper()
	env := do(t, r, http.MethodPost, "/api/v1/layaway/requests", createBody("phones", total))
	if env.Code != response.CodeSuccess {
		t.Fatalf("create failed: %d %s", env.Code, env.Message)
	}
	var data struct {
		ID                string `json:"id"`
		TotalWithInterest int64  `json:"total_with_interest"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	return data.ID
}

func TestLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t)
	id := createRequest(t, r, 100000)
	base := "/api/v1/admin/layaway/requests/" + id

	if env := do(t, r, http.MethodPost, base+"/deliver", nil); env.Code != response.CodeInvalidTransition {
		t.Fatalf("deliver pending: expected %d, got %d", response.CodeInvalidTransition, env.Code)
	}
	if env := do(t, r, http.MethodPost, base+"/approve", nil); env.Code != response.CodeSuccess {
		t.Fatalf("approve: %d %s", env.Code, env.Message)
	}
	if env := do(t, r, http.MethodPost, base+"/payment", gin.H{"amount": 100000}); env.Code != response.CodeSuccess {
		t.Fatalf("payment: %d %s", env.Code, env.Message)
	}
	if env := do(t, r, http.MethodPost, base+"/deliver", nil); env.Code != response.CodePreconditionFailed {
		t.Fatalf("deliver unpaid: expected %d, got %d", response.CodePreconditionFailed, env.Code)
	}
	if env := do(t, r, http.MethodPost, base+"/payment", gin.H{"amount": 5000}); env.Code != response.CodeSuccess {
		t.Fatalf("payment: %d %s", env.Code, env.Message)
	}

	env := do(t, r, http.MethodPost, base+"/deliver", nil)
	if env.Code != response.CodeSuccess {
		t.Fatalf("deliver: %d %s", env.Code, env.Message)
	}
	var delivered struct {
		Status     string `json:"status"`
		TrustStars int    `json:"trust_stars"`
	}
	if err := json.Unmarshal(env.Data, &delivered); err != nil {
		t.Fatalf("decode deliver: %v", err)
	}
	if delivered.Status != "delivered" || delivered.TrustStars != 1 {
		t.Fatalf("unexpected delivered payload: %+v", delivered)
	}

	env = do(t, r, http.MethodGet, "/api/v1/admin/layaway/trust/ANA@example.com", nil)
	var trust struct {
		SuccessCount int `json:"success_count"`
		Stars        int `json:"stars"`
	}
	if err := json.Unmarshal(env.Data, &trust); err != nil {
		t.Fatalf("decode trust: %v", err)
	}
	if trust.SuccessCount != 1 || trust.Stars != 1 {
		t.Fatalf("unexpected trust: %+v", trust)
	}

	env = do(t, r, http.MethodGet, "/api/v1/admin/layaway/history", nil)
	var history struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if history.Total != 1 {
		t.Fatalf("expected 1 history entry, got %d", history.Total)
	}
}

func TestErrorCodes(t *testing.T) {
	r := newTestRouter(t)
	id := createRequest(t, r, 1000)
	base := "/api/v1/admin/layaway/requests/" + id

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"missing fields", http.MethodPost, "/api/v1/layaway/requests", gin.H{"email": "ana@example.com"}, response.CodeParamError},
		{"category not financed", http.MethodPost, "/api/v1/layaway/requests", createBody("tablets", 1000), response.CodeCategoryNotFinanced},
		{"unknown request", http.MethodGet, "/api/v1/layaway/requests/LAY-missing", nil, response.CodeRequestNotFound},
		{"payment before approval", http.MethodPost, base + "/payment", gin.H{"amount": 100}, response.CodeInvalidTransition},
		{"refund before cancel", http.MethodPost, base + "/refund", nil, response.CodeInvalidTransition},
		{"rate out of range", http.MethodPut, "/api/v1/admin/layaway/config", gin.H{"interest_rate_percent": 41}, response.CodeInvalidConfiguration},
		{"zero payment", http.MethodPost, base + "/payment", gin.H{"amount": 0}, response.CodeParamError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := do(t, r, tt.method, tt.path, tt.body)
			if env.Code != tt.want {
				t.Fatalf("expected code %d, got %d (%s)", tt.want, env.Code, env.Message)
			}
		})
	}

	if env := do(t, r, http.MethodPost, base+"/approve", nil); env.Code != response.CodeSuccess {
		t.Fatalf("approve: %d %s", env.Code, env.Message)
	}
	if env := do(t, r, http.MethodPost, base+"/payment", gin.H{"amount": -5}); env.Code != response.CodeInvalidPayment {
		t.Fatalf("negative payment: expected %d, got %d", response.CodeInvalidPayment, env.Code)
	}
}

func TestSoftDeleteAndAuditListing(t *testing.T) {
	r := newTestRouter(t)
	id := createRequest(t, r, 1000)

	if env := do(t, r, http.MethodDelete, "/api/v1/admin/layaway/requests/"+id, nil); env.Code != response.CodeSuccess {
		t.Fatalf("delete: %d %s", env.Code, env.Message)
	}

	total := func(path string) int {
		env := do(t, r, http.MethodGet, path, nil)
		var data struct {
			Total int `json:"total"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		return data.Total
	}

	if n := total("/api/v1/admin/layaway/active"); n != 0 {
		t.Fatalf("deleted request still active: %d", n)
	}
	if n := total("/api/v1/admin/layaway/requests"); n != 1 {
		t.Fatalf("audit listing should include deleted request, got %d", n)
	}
	if env := do(t, r, http.MethodGet, "/api/v1/layaway/requests/"+id, nil); env.Code != response.CodeSuccess {
		t.Fatalf("deleted request should still be readable: %d", env.Code)
	}
}

func TestConfigMergeOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	env := do(t, r, http.MethodPut, "/api/v1/admin/layaway/config", gin.H{"allowed_categories": []string{"tablets"}})
	if env.Code != response.CodeSuccess {
		t.Fatalf("update config: %d %s", env.Code, env.Message)
	}

	env = do(t, r, http.MethodGet, "/api/v1/admin/layaway/config", nil)
	var cfg struct {
		InterestRatePercent int      `json:"interest_rate_percent"`
		AllowedCategories   []string `json:"allowed_categories"`
	}
	if err := json.Unmarshal(env.Data, &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.InterestRatePercent != 5 || len(cfg.AllowedCategories) != 1 || cfg.AllowedCategories[0] != "tablets" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	if env := do(t, r, http.MethodPost, "/api/v1/layaway/requests", createBody("tablets", 1000)); env.Code != response.CodeSuccess {
		t.Fatalf("tablets should now be financed: %d %s", env.Code, env.Message)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	// /health 已经被记录过一次
	if !strings.Contains(w.Body.String(), "test_http_requests_total") {
		t.Fatalf("metrics output missing http counter:\n%s", w.Body.String())
	}
}

func TestDeliverWithRedisDownReturnsStoreUnavailable(t *testing.T) {
	r, mr := newTestRouterWithRedis(t)
	id := createRequest(t, r, 1000)
	base := "/api/v1/admin/layaway/requests/" + id

	if env := do(t, r, http.MethodPost, base+"/approve", nil); env.Code != response.CodeSuccess {
		t.Fatalf("approve: %d %s", env.Code, env.Message)
	}
	if env := do(t, r, http.MethodPost, base+"/payment", gin.H{"amount": 1050}); env.Code != response.CodeSuccess {
		t.Fatalf("payment: %d %s", env.Code, env.Message)
	}

	mr.Close()

	env := do(t, r, http.MethodPost, base+"/deliver", nil)
	if env.Code != response.CodeStoreUnavailable {
		t.Fatalf("expected code %d, got %d (%s)", response.CodeStoreUnavailable, env.Code, env.Message)
	}
	if strings.Contains(env.Message, "dial") {
		t.Fatalf("driver error leaked to client: %s", env.Message)
	}
}

func TestUnknownRouteReturnsNotFoundCode(t *testing.T) {
	r := newTestRouter(t)
	if env := do(t, r, http.MethodGet, "/api/v1/layaway/unknown", nil); env.Code != response.CodeNotFound {
		t.Fatalf("expected code %d, got %d", response.CodeNotFound, env.Code)
	}
}
