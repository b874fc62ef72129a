package app

import (
	"testing"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/ollamamq/ollamamq/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		ListenPort:             8080,
		BackendBaseURL:         "http://localhost:11434",
		TimeoutSeconds:         30,
		ShutdownDrainSeconds:   2,
		ShutdownTimeoutSeconds: 10,
		IdleThresholdSeconds:   60,
		BridgeBufferSize:       4,
		MaxRequestSizeMB:       10,
		AllowedOrigins:         []string{"*"},
	}
}

// TestApp_ReadinessFlag_StartsAsFalse verifies readiness flag initialization.
func TestApp_ReadinessFlag_StartsAsFalse(t *testing.T) {
	app := NewApp(testConfig(), zap.NewNop())

	if app.readiness.Load() {
		t.Error("expected readiness to start as false, got true")
	}
	if app.shuttingDown.Load() {
		t.Error("expected shuttingDown to start as false, got true")
	}
}

// TestApp_ReadinessFlag_Lifecycle verifies readiness flag behavior during app lifecycle.
func TestApp_ReadinessFlag_Lifecycle(t *testing.T) {
	readiness := atomic.NewBool(false)

	if readiness.Load() {
		t.Error("expected readiness to start as false, got true")
	}

	readiness.Store(true)
	if !readiness.Load() {
		t.Error("expected readiness to be true after startup, got false")
	}

	readiness.Store(false)
	if readiness.Load() {
		t.Error("expected readiness to be false after shutdown signal, got true")
	}
}

// TestApp_ReadinessMiddleware_AcceptsHealthEndpoints verifies health/metrics
// endpoints stay reachable while readiness=false, mirroring the gate in Run.
func TestApp_ReadinessMiddleware_AcceptsHealthEndpoints(t *testing.T) {
	allowedPaths := []string{"/healthz", "/readyz", "/health", "/metrics"}
	rejectedPaths := []string{"/api/generate", "/api/chat", "/stats"}

	isAllowed := func(p string) bool {
		return p == "/healthz" || p == "/readyz" || p == "/health" || p == "/metrics"
	}

	for _, path := range allowedPaths {
		if !isAllowed(path) {
			t.Errorf("path %s should be allowed when readiness=false", path)
		}
	}
	for _, path := range rejectedPaths {
		if isAllowed(path) {
			t.Errorf("path %s should be rejected when readiness=false", path)
		}
	}
}

// TestApp_Configuration_Applied verifies app initializes with the given
// config values.
func TestApp_Configuration_Applied(t *testing.T) {
	cfg := testConfig()
	cfg.ListenPort = 9090
	cfg.ShutdownDrainSeconds = 5
	cfg.ShutdownTimeoutSeconds = 15

	app := NewApp(cfg, zap.NewNop())

	if app.config.ListenPort != 9090 {
		t.Errorf("expected ListenPort 9090, got %d", app.config.ListenPort)
	}
	if app.config.ShutdownDrainSeconds != 5 {
		t.Errorf("expected ShutdownDrainSeconds 5, got %d", app.config.ShutdownDrainSeconds)
	}
}

// TestApp_InjectDependency_CreatesHandlers verifies handler and scheduler
// initialization.
func TestApp_InjectDependency_CreatesHandlers(t *testing.T) {
	app := NewApp(testConfig(), zap.NewNop())
	app.injectDependency()

	if app.sched == nil {
		t.Error("expected scheduler to be created, got nil")
	}
	if app.reg == nil {
		t.Error("expected registry to be created, got nil")
	}

	// Expected handlers: HealthHandler, dispatch.Handler, statshttp.Handler
	expectedHandlerCount := 3
	if len(app.httpHandlers) != expectedHandlerCount {
		t.Errorf("expected %d handlers, got %d", expectedHandlerCount, len(app.httpHandlers))
	}
}

// TestApp_DrainPeriod_Duration verifies drain period calculation.
func TestApp_DrainPeriod_Duration(t *testing.T) {
	testCases := []struct {
		drainSeconds     int
		expectedDuration time.Duration
	}{
		{drainSeconds: 2, expectedDuration: 2 * time.Second},
		{drainSeconds: 5, expectedDuration: 5 * time.Second},
		{drainSeconds: 10, expectedDuration: 10 * time.Second},
	}

	for _, tc := range testCases {
		cfg := testConfig()
		cfg.ShutdownDrainSeconds = tc.drainSeconds

		app := NewApp(cfg, zap.NewNop())

		drainDuration := time.Duration(app.config.ShutdownDrainSeconds) * time.Second
		if drainDuration != tc.expectedDuration {
			t.Errorf("expected drain duration %v, got %v", tc.expectedDuration, drainDuration)
		}
	}
}
