package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"topgun/internal/auth"
	"topgun/internal/notifications"
	"topgun/internal/paygateway"
	"topgun/internal/shared/config"
	"topgun/internal/shared/database"
	"topgun/pkg/cache"

	"github.com/gin-gonic/gin"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Load()
	db := &database.DB{}
	r := NewRouter(cfg, db, cache.NewMemoryService(), auth.NewTokenService(cfg),
		paygateway.NewClient(cfg.PayGateway), notifications.NoopPublisher{})

	engine := gin.New()
	r.SetupRoutes(engine)
	if r.PaymentService() == nil {
		t.Fatal("payment service not built")
	}
	return engine
}

func TestHealthRoutes(t *testing.T) {
	engine := newTestEngine(t)

	for _, path := range []string{"/health", "/ping", "/status", "/api/v1/status"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, w.Code)
		}
	}
}

func TestFeatureRoutesMountedTwice(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/seats/paymentlist"},
		{http.MethodGet, "/api/v1/seats/paymentlist"},
		{http.MethodDelete, "/seats/cancelAll/1"},
		{http.MethodDelete, "/api/v1/seats/cancelItem/1"},
		{http.MethodGet, "/room/"},
		{http.MethodGet, "/api/v1/room/"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without a token = %d, want 401", tt.method, tt.path, w.Code)
		}
	}
}
