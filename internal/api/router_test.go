package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"

	"github.com/vikasavnish/gymledger/internal/config"
	"github.com/vikasavnish/gymledger/internal/db"
	"github.com/vikasavnish/gymledger/internal/messaging"
	"github.com/vikasavnish/gymledger/internal/metrics"
	"github.com/vikasavnish/gymledger/internal/models"
	"github.com/vikasavnish/gymledger/internal/websocket"
)

var testSecret = []byte("router-test-secret")

func newTestServer(t *testing.T, secret []byte) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Database:  config.DatabaseConfig{URL: filepath.Join(t.TempDir(), "router.db")},
		JWT:       config.JWTConfig{SecretKey: secret},
		Gym:       config.GymConfig{Name: "Test Gym", Currency: "PKR", MonthlyFee: "8", CountryCode: "92"},
		Messaging: config.MessagingConfig{Mode: config.ModeText},
	}
	log := zap.NewNop()
	database, err := db.Connect(cfg.Database, log)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			sqlDB.Close()
		}
	})

	hub := websocket.NewHub(log)
	t.Cleanup(hub.Close)
	m := metrics.New()
	svc := NewServices(database, nil, hub, messaging.NewWhatsAppClient(cfg.Messaging), m, cfg, log)
	return SetupRouter(database, svc, hub, m, cfg, log)
}

func token(t *testing.T, role string) string {
	t.Helper()
	claims := models.Claims{
		Username: "desk",
		Role:     role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + s
}

func request(router http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(nil))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestPublicEndpoints(t *testing.T) {
	router := newTestServer(t, testSecret)

	rr := request(router, "GET", "/api/health", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", rr.Code, rr.Body.String())
	}

	rr = request(router, "GET", "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Errorf("metrics = %d", rr.Code)
	}
}

func TestAuthenticatedRoutes(t *testing.T) {
	router := newTestServer(t, testSecret)

	if rr := request(router, "GET", "/api/fees?year=2024&month=5", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", rr.Code)
	}
	if rr := request(router, "GET", "/api/fees?year=2024&month=5", token(t, models.RoleStaff)); rr.Code != http.StatusOK {
		t.Errorf("staff token = %d, want 200", rr.Code)
	}
	// last-run lives under /admin but only needs authentication
	if rr := request(router, "GET", "/api/admin/schedule/last-run", token(t, models.RoleStaff)); rr.Code != http.StatusNotFound {
		t.Errorf("last-run = %d, want 404 before any run", rr.Code)
	}
}

func TestRunNowRequiresAdmin(t *testing.T) {
	router := newTestServer(t, testSecret)

	if rr := request(router, "POST", "/api/admin/schedule/run-now", token(t, models.RoleStaff)); rr.Code != http.StatusForbidden {
		t.Errorf("staff run-now = %d, want 403", rr.Code)
	}
	// The gateway has no credentials, so an authorized run fails as a client error.
	if rr := request(router, "POST", "/api/admin/schedule/run-now", token(t, models.RoleAdmin)); rr.Code != http.StatusBadRequest {
		t.Errorf("admin run-now = %d, want 400", rr.Code)
	}
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	router := newTestServer(t, nil)
	if rr := request(router, "GET", "/api/settings", ""); rr.Code != http.StatusOK {
		t.Errorf("settings without auth = %d", rr.Code)
	}
}

func TestPrintRoutes(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{
		Database:  config.DatabaseConfig{URL: filepath.Join(t.TempDir(), "routes.db")},
		Messaging: config.MessagingConfig{Mode: config.ModeText},
	}
	log := zap.NewNop()
	database, err := db.Connect(cfg.Database, log)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	hub := websocket.NewHub(log)
	m := metrics.New()
	router := SetupRouter(database, NewServices(database, nil, hub, messaging.NewWhatsAppClient(cfg.Messaging), m, cfg, log), hub, m, cfg, log)

	if err := PrintRoutes(&buf, router); err != nil {
		t.Fatalf("PrintRoutes() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"POST\t/api/payment/pay-now", "GET\t/api/fees/summary", "POST\t/api/admin/schedule/run-now"} {
		if !strings.Contains(out, want) {
			t.Errorf("routes missing %q:\n%s", want, out)
		}
	}
}
