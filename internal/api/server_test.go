package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nerrad567/pihome/internal/audit"
	"github.com/nerrad567/pihome/internal/automation"
	"github.com/nerrad567/pihome/internal/entity"
	"github.com/nerrad567/pihome/internal/gpio"
	"github.com/nerrad567/pihome/internal/infrastructure/config"
	"github.com/nerrad567/pihome/internal/infrastructure/database"
	"github.com/nerrad567/pihome/internal/infrastructure/logging"
	"github.com/nerrad567/pihome/migrations"
)

// testEnv is a Server wired to the real entity stack over in-memory SQLite.
type testEnv struct {
	srv      *Server
	handler  http.Handler
	registry *entity.Registry
	pins     *gpio.StaticReader
	hub      *Hub
}

// testServer creates a Server with every dependency backed by real
// components. GPIO reads come from a static reader.
func testServer(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	pins := gpio.NewStaticReader(nil)
	store := entity.NewSQLiteStore(db.DB)
	kinds := entity.NewKinds(pins)
	registry := entity.NewRegistry(store)
	resolver := entity.NewResolver(store, kinds)
	evaluator := automation.NewEvaluator(resolver, nil)
	if err := evaluator.RegisterSatisfied(kinds); err != nil {
		t.Fatalf("RegisterSatisfied: %v", err)
	}
	registry.SetConditionValidator(evaluator.Operators().ValidateCondition)

	wsCfg := config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	hub := NewHub(wsCfg, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	bridge := automation.NewDeviceBridge(registry, nil, hub, nil, nil)
	registry.OnChange(bridge.OnChange)
	auditRepo := audit.NewSQLiteRepository(db.DB)
	registry.OnChange(audit.NewRecorder(auditRepo, log).OnChange)
	kinds.OnSensorRead(bridge.OnSensorRead)

	engine := automation.NewEngine(registry, evaluator, nil, hub, nil, nil, automation.EngineConfig{})

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS:          wsCfg,
		Logger:      log,
		Registry:    registry,
		Resolver:    resolver,
		Evaluator:   evaluator,
		Engine:      engine,
		Audit:       auditRepo,
		DB:          db,
		ExternalHub: hub,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testEnv{srv: srv, handler: srv.Handler(), registry: registry, pins: pins, hub: hub}
}

// do performs a request against the router.
func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a JSON response body into a map.
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal %q: %v", rec.Body.String(), err)
	}
	return out
}

// wantStatus fails the test when rec has an unexpected status.
func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, want, rec.Body.String())
	}
}

// wantErrorCode checks the code field of a structured error response.
func wantErrorCode(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	var apiErr Error
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("unmarshal error body %q: %v", rec.Body.String(), err)
	}
	if apiErr.Code != want {
		t.Errorf("error code = %q, want %q (message: %s)", apiErr.Code, want, apiErr.Message)
	}
}

// ─── Construction & Health ─────────────────────────────────────────

func TestNew_RequiresDependencies(t *testing.T) {
	env := testServer(t)
	full := Deps{
		Logger:    env.srv.logger,
		Registry:  env.srv.registry,
		Resolver:  env.srv.resolver,
		Evaluator: env.srv.evaluator,
	}

	tests := []struct {
		name   string
		mutate func(d *Deps)
	}{
		{"no logger", func(d *Deps) { d.Logger = nil }},
		{"no registry", func(d *Deps) { d.Registry = nil }},
		{"no resolver", func(d *Deps) { d.Resolver = nil }},
		{"no evaluator", func(d *Deps) { d.Evaluator = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := full
			tt.mutate(&deps)
			if _, err := New(deps); err == nil {
				t.Error("New() should fail")
			}
		})
	}

	if _, err := New(full); err != nil {
		t.Errorf("New() with required deps: %v", err)
	}
}

func TestHealthCheck_NotStarted(t *testing.T) {
	env := testServer(t)
	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() should fail before Start")
	}
}

func TestHandleHealth(t *testing.T) {
	env := testServer(t)

	rec := env.do(t, http.MethodGet, "/api/v1/health", "")
	wantStatus(t, rec, http.StatusOK)

	body := decode(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["database"] != "ok" {
		t.Errorf("database = %v, want ok", body["database"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

// ─── Middleware ────────────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	env := testServer(t)

	rec := env.do(t, http.MethodGet, "/api/v1/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want client value", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sensors", nil)
	req.Header.Set("Origin", "http://panel.local")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	wantStatus(t, rec, http.StatusNoContent)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://panel.local" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	env := testServer(t)
	env.srv.cfg.CORS.AllowedOrigins = []string{"http://allowed.local"}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	env := testServer(t)
	h := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	wantStatus(t, rec, http.StatusInternalServerError)
	wantErrorCode(t, rec, ErrCodeInternal)
}

// ─── Sensors ───────────────────────────────────────────────────────

func TestSensorCRUD(t *testing.T) {
	env := testServer(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sensors", `{"label":"Hall temperature","pin":"4"}`)
	wantStatus(t, rec, http.StatusCreated)
	if !strings.HasPrefix(rec.Body.String(), `{"id":1,"created":"`) {
		t.Errorf("projection should start with id and created: %s", rec.Body.String())
	}
	created := decode(t, rec)
	if created["key"] != "Sensor/1/value" {
		t.Errorf("key = %v, want Sensor/1/value", created["key"])
	}
	if _, ok := created["value"]; ok {
		t.Error("sensor projection must not carry a live value")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/sensors/1", "")
	wantStatus(t, rec, http.StatusOK)
	if got := decode(t, rec)["label"]; got != "Hall temperature" {
		t.Errorf("label = %v", got)
	}

	rec = env.do(t, http.MethodPatch, "/api/v1/sensors/1", `{"pin":"17"}`)
	wantStatus(t, rec, http.StatusOK)
	updated := decode(t, rec)
	if updated["pin"] != "17" || updated["label"] != "Hall temperature" {
		t.Errorf("patched sensor = %v", updated)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/sensors", "")
	wantStatus(t, rec, http.StatusOK)
	if got := decode(t, rec)["count"]; got != float64(1) {
		t.Errorf("count = %v, want 1", got)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/sensors/1", "")
	wantStatus(t, rec, http.StatusNoContent)

	rec = env.do(t, http.MethodGet, "/api/v1/sensors/1", "")
	wantStatus(t, rec, http.StatusNotFound)
	wantErrorCode(t, rec, ErrCodeNotFound)
}

func TestSensorRequests_Invalid(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"non-numeric id", http.MethodGet, "/api/v1/sensors/abc", "", http.StatusBadRequest, ErrCodeBadRequest},
		{"zero id", http.MethodGet, "/api/v1/sensors/0", "", http.StatusBadRequest, ErrCodeBadRequest},
		{"malformed body", http.MethodPost, "/api/v1/sensors", `{"label":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing label", http.MethodPost, "/api/v1/sensors", `{"pin":"4"}`, http.StatusBadRequest, ErrCodeValidation},
		{"missing pin", http.MethodPost, "/api/v1/sensors", `{"label":"x"}`, http.StatusBadRequest, ErrCodeValidation},
		{"update missing", http.MethodPatch, "/api/v1/sensors/42", `{"pin":"4"}`, http.StatusNotFound, ErrCodeNotFound},
		{"delete missing", http.MethodDelete, "/api/v1/sensors/42", "", http.StatusNotFound, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			wantStatus(t, rec, tt.status)
			wantErrorCode(t, rec, tt.code)
		})
	}
}

func TestReadSensor(t *testing.T) {
	env := testServer(t)
	env.pins.Set("4", 21.5)

	env.do(t, http.MethodPost, "/api/v1/sensors", `{"label":"ok","pin":"4"}`)
	env.do(t, http.MethodPost, "/api/v1/sensors", `{"label":"broken","pin":"5"}`)

	rec := env.do(t, http.MethodGet, "/api/v1/sensors/1/value", "")
	wantStatus(t, rec, http.StatusOK)
	body := decode(t, rec)
	if body["value"] != 21.5 {
		t.Errorf("value = %v, want 21.5", body["value"])
	}
	if body["key"] != "Sensor/1/value" {
		t.Errorf("key = %v", body["key"])
	}

	// Pin 5 has no reading configured: a hardware fault, never a default.
	rec = env.do(t, http.MethodGet, "/api/v1/sensors/2/value", "")
	wantStatus(t, rec, http.StatusBadGateway)
	wantErrorCode(t, rec, ErrCodeHardware)

	rec = env.do(t, http.MethodGet, "/api/v1/sensors/9/value", "")
	wantStatus(t, rec, http.StatusNotFound)
}

// ─── Devices ───────────────────────────────────────────────────────

func TestDeviceCRUD(t *testing.T) {
	env := testServer(t)

	rec := env.do(t, http.MethodPost, "/api/v1/devices", `{"label":"Porch light","pin":"22"}`)
	wantStatus(t, rec, http.StatusCreated)
	created := decode(t, rec)
	if created["value"] != false {
		t.Errorf("value = %v, want false", created["value"])
	}
	if created["key"] != "Device/1/value" {
		t.Errorf("key = %v", created["key"])
	}

	rec = env.do(t, http.MethodPatch, "/api/v1/devices/1", `{"label":"Front porch","value":true}`)
	wantStatus(t, rec, http.StatusOK)
	updated := decode(t, rec)
	if updated["label"] != "Front porch" || updated["value"] != true {
		t.Errorf("patched device = %v", updated)
	}

	dev, err := env.registry.GetDevice(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if !dev.Value || dev.Label != "Front porch" {
		t.Errorf("stored device = %+v", dev)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/devices", "")
	wantStatus(t, rec, http.StatusOK)
	if got := decode(t, rec)["count"]; got != float64(1) {
		t.Errorf("count = %v, want 1", got)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/devices/1", "")
	wantStatus(t, rec, http.StatusNoContent)

	rec = env.do(t, http.MethodGet, "/api/v1/devices/1", "")
	wantStatus(t, rec, http.StatusNotFound)
}

func TestSetDeviceValue(t *testing.T) {
	env := testServer(t)
	env.do(t, http.MethodPost, "/api/v1/devices", `{"label":"Pump","pin":"23"}`)

	var changes []entity.Change
	env.registry.OnChange(func(_ context.Context, c entity.Change) {
		changes = append(changes, c)
	})

	rec := env.do(t, http.MethodPut, "/api/v1/devices/1/value", `{"value":true}`)
	wantStatus(t, rec, http.StatusOK)
	if got := decode(t, rec)["value"]; got != true {
		t.Errorf("value = %v, want true", got)
	}

	// Same value again: stored, but no change notification.
	rec = env.do(t, http.MethodPut, "/api/v1/devices/1/value", `{"value":true}`)
	wantStatus(t, rec, http.StatusOK)

	if len(changes) != 1 || changes[0].Op != entity.ChangeValueSet {
		t.Errorf("changes = %+v, want one value change", changes)
	}

	rec = env.do(t, http.MethodPut, "/api/v1/devices/1/value", `{}`)
	wantStatus(t, rec, http.StatusBadRequest)

	rec = env.do(t, http.MethodPut, "/api/v1/devices/7/value", `{"value":false}`)
	wantStatus(t, rec, http.StatusNotFound)
}

// ─── Rules ─────────────────────────────────────────────────────────

func TestRuleCRUD(t *testing.T) {
	env := testServer(t)

	rec := env.do(t, http.MethodPost, "/api/v1/rules",
		`{"label":"Warm","conditions":[["Sensor/1/value","GreaterThan",20],["Device/1/value","Equal",false]]}`)
	wantStatus(t, rec, http.StatusCreated)
	created := decode(t, rec)
	if created["enabled"] != true {
		t.Errorf("enabled = %v, want true by default", created["enabled"])
	}
	conditions, ok := created["conditions"].([]any)
	if !ok || len(conditions) != 2 {
		t.Fatalf("conditions = %v", created["conditions"])
	}
	first, _ := conditions[0].([]any) //nolint:errcheck // checked by length below
	if len(first) != 3 || first[0] != "Sensor/1/value" || first[1] != "GreaterThan" || first[2] != float64(20) {
		t.Errorf("first condition = %v", first)
	}

	rec = env.do(t, http.MethodPatch, "/api/v1/rules/1", `{"enabled":false}`)
	wantStatus(t, rec, http.StatusOK)
	if got := decode(t, rec)["enabled"]; got != false {
		t.Errorf("enabled = %v, want false", got)
	}

	rule, err := env.registry.GetRule(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if len(rule.Conditions) != 2 {
		t.Errorf("PATCH without conditions should keep them, got %d", len(rule.Conditions))
	}

	rec = env.do(t, http.MethodGet, "/api/v1/rules", "")
	wantStatus(t, rec, http.StatusOK)
	if got := decode(t, rec)["count"]; got != float64(1) {
		t.Errorf("count = %v, want 1", got)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/rules/1", "")
	wantStatus(t, rec, http.StatusNoContent)
	rec = env.do(t, http.MethodGet, "/api/v1/rules/1", "")
	wantStatus(t, rec, http.StatusNotFound)
}

func TestCreateRule_Invalid(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"unknown operator", `{"label":"r","conditions":[[1,"Between",2]]}`},
		{"short condition", `{"label":"r","conditions":[[1,"Equal"]]}`},
		{"operator not a string", `{"label":"r","conditions":[[1,2,3]]}`},
		{"missing label", `{"conditions":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/rules", tt.body)
			wantStatus(t, rec, http.StatusBadRequest)
		})
	}
}

func TestEvaluateRule(t *testing.T) {
	env := testServer(t)
	env.pins.Set("4", 25)

	env.do(t, http.MethodPost, "/api/v1/sensors", `{"label":"Temp","pin":"4"}`)
	rec := env.do(t, http.MethodPost, "/api/v1/rules",
		`{"label":"Warm","conditions":[["Sensor/1/value","GreaterThan",20],["Sensor/1/value","LessThan","30"]]}`)
	wantStatus(t, rec, http.StatusCreated)

	rec = env.do(t, http.MethodGet, "/api/v1/rules/1/evaluation", "")
	wantStatus(t, rec, http.StatusOK)

	var ev automation.Evaluation
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !ev.Satisfied {
		t.Error("rule should be satisfied at 25")
	}
	if ev.ID == "" {
		t.Error("evaluation should carry an id")
	}
	if len(ev.Conditions) != 2 || ev.Conditions[0].Left != float64(25) {
		t.Errorf("conditions = %+v", ev.Conditions)
	}

	env.pins.Set("4", 35)
	rec = env.do(t, http.MethodGet, "/api/v1/rules/1/evaluation", "")
	wantStatus(t, rec, http.StatusOK)
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Satisfied {
		t.Error("rule should not be satisfied at 35")
	}
}

func TestEvaluateRule_Failures(t *testing.T) {
	env := testServer(t)

	env.do(t, http.MethodPost, "/api/v1/sensors", `{"label":"Broken","pin":"9"}`)
	env.do(t, http.MethodPost, "/api/v1/rules", `{"label":"Unknown kind","conditions":[["Lamp/1/value","Equal",1]]}`)
	env.do(t, http.MethodPost, "/api/v1/rules", `{"label":"Mixed","conditions":[["abc","GreaterThan",1]]}`)
	env.do(t, http.MethodPost, "/api/v1/rules", `{"label":"Hardware","conditions":[["Sensor/1/value","Equal",1]]}`)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"unknown kind", "/api/v1/rules/1/evaluation", http.StatusUnprocessableEntity, ErrCodeEvaluationFailed},
		{"hardware fault", "/api/v1/rules/3/evaluation", http.StatusBadGateway, ErrCodeHardware},
		{"missing rule", "/api/v1/rules/99/evaluation", http.StatusNotFound, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, "")
			wantStatus(t, rec, tt.status)
			wantErrorCode(t, rec, tt.code)
		})
	}

	// Mixed operand types under an ordering operator are unsatisfied, not a failure.
	rec := env.do(t, http.MethodGet, "/api/v1/rules/2/evaluation", "")
	wantStatus(t, rec, http.StatusOK)
	if got := decode(t, rec)["satisfied"]; got != false {
		t.Errorf("mixed operands satisfied = %v, want false", got)
	}
}

func TestGetRule_EngineState(t *testing.T) {
	env := testServer(t)
	env.do(t, http.MethodPost, "/api/v1/rules", `{"label":"Always","conditions":[]}`)

	rec := env.do(t, http.MethodGet, "/api/v1/rules/1", "")
	if _, ok := decode(t, rec)["satisfied"]; ok {
		t.Error("satisfied should be absent before the engine has run")
	}

	if _, err := env.srv.engine.EvaluateAll(context.Background()); err != nil {
		t.Fatalf("EvaluateAll: %v", err)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/rules/1", "")
	wantStatus(t, rec, http.StatusOK)
	if got := decode(t, rec)["satisfied"]; got != true {
		t.Errorf("satisfied = %v, want true", got)
	}
}

func TestListOperators(t *testing.T) {
	env := testServer(t)

	rec := env.do(t, http.MethodGet, "/api/v1/rules/operators", "")
	wantStatus(t, rec, http.StatusOK)
	ops, ok := decode(t, rec)["operators"].([]any)
	if !ok || len(ops) != 6 {
		t.Errorf("operators = %v, want the 6 built-ins", ops)
	}
}

// ─── Keys ──────────────────────────────────────────────────────────

func TestResolveKey(t *testing.T) {
	env := testServer(t)
	env.pins.Set("4", 12)
	env.do(t, http.MethodPost, "/api/v1/sensors", `{"label":"Temp","pin":"4"}`)
	env.do(t, http.MethodPost, "/api/v1/devices", `{"label":"Fan","pin":"5","value":true}`)

	tests := []struct {
		name string
		path string
		want any
	}{
		{"literal", "/api/v1/keys/hello", "hello"},
		{"sensor value", "/api/v1/keys/Sensor/1/value", float64(12)},
		{"device value", "/api/v1/keys/Device/1/value", true},
		{"attribute", "/api/v1/keys/Device/1/label", "Fan"},
		{"missing record yields default", "/api/v1/keys/Sensor/9/value?default=none", "none"},
		{"non-integer id yields default", "/api/v1/keys/Sensor/x/value?default=none", "none"},
		{"unknown member yields null", "/api/v1/keys/Sensor/1/colour", nil},
		{"rule satisfied member", "/api/v1/keys/Rule/1/satisfied?default=missing", "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, "")
			wantStatus(t, rec, http.StatusOK)
			if got := decode(t, rec)["value"]; got != tt.want {
				t.Errorf("value = %v (%T), want %v", got, got, tt.want)
			}
		})
	}
}

func TestResolveKey_Entity(t *testing.T) {
	env := testServer(t)
	env.do(t, http.MethodPost, "/api/v1/devices", `{"label":"Fan","pin":"5"}`)

	rec := env.do(t, http.MethodGet, "/api/v1/keys/Device/1", "")
	wantStatus(t, rec, http.StatusOK)

	value, ok := decode(t, rec)["value"].(map[string]any)
	if !ok {
		t.Fatalf("value should be a projection: %s", rec.Body.String())
	}
	if value["key"] != "Device/1/value" || value["label"] != "Fan" {
		t.Errorf("projection = %v", value)
	}
}

func TestResolveKey_Errors(t *testing.T) {
	env := testServer(t)
	env.do(t, http.MethodPost, "/api/v1/sensors", `{"label":"Broken","pin":"9"}`)

	rec := env.do(t, http.MethodGet, "/api/v1/keys/Lamp/1/value", "")
	wantStatus(t, rec, http.StatusNotFound)
	wantErrorCode(t, rec, ErrCodeUnknownKind)

	rec = env.do(t, http.MethodGet, "/api/v1/keys/Sensor/1/value", "")
	wantStatus(t, rec, http.StatusBadGateway)
	wantErrorCode(t, rec, ErrCodeHardware)
}

// ─── Metrics ───────────────────────────────────────────────────────

func TestHandleMetrics(t *testing.T) {
	env := testServer(t)
	env.do(t, http.MethodPost, "/api/v1/sensors", `{"label":"a","pin":"1"}`)
	env.do(t, http.MethodPost, "/api/v1/devices", `{"label":"b","pin":"2"}`)
	env.do(t, http.MethodPost, "/api/v1/rules", `{"label":"on","conditions":[]}`)
	env.do(t, http.MethodPost, "/api/v1/rules", `{"label":"off","enabled":false,"conditions":[]}`)

	rec := env.do(t, http.MethodGet, "/api/v1/metrics", "")
	wantStatus(t, rec, http.StatusOK)

	var m SystemMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := EntityMetrics{Sensors: 1, Devices: 1, Rules: 2, EnabledRules: 1}
	if m.Entities != want {
		t.Errorf("entities = %+v, want %+v", m.Entities, want)
	}
	if m.MQTT.Enabled {
		t.Error("MQTT should be reported disabled")
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("goroutines should be reported")
	}
	if m.Database.OpenConnections == 0 {
		t.Error("database stats should be reported")
	}
}
