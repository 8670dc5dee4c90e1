package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/cache"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                      "4000",
		Env:                       "test",
		JWTSecret:                 "main-test-signing-secret-of-32-bytes",
		JWTIssuer:                 "clinic",
		SessionTTL:                time.Hour,
		BcryptCost:                4,
		DoctorCacheTTL:            time.Minute,
		CORSOrigins:               []string{"http://localhost:3000"},
		RateLimitRPS:              100,
		RateLimitBurst:            100,
		LoginRateLimitRPS:         1,
		LoginRateLimitBurst:       5,
		RequestTimeout:            5 * time.Second,
		BodyLimit:                 "1M",
		DefaultAppointmentMinutes: 30,
		DefaultInsurancePlanID:    1,
	}
}

func TestNewServer_RegistersRoutes(t *testing.T) {
	e := newServer(testConfig(), zerolog.Nop(), nil, cache.NopStore{})

	registered := make(map[string]bool)
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	want := []string{
		"POST /api/pacientes/cadastro",
		"POST /api/pacientes/login",
		"GET /api/pacientes/cpf/:id",
		"POST /api/pacientes/cadastro-rapido",
		"POST /api/medicos/cadastro",
		"POST /api/medicos/login",
		"GET /api/medicos",
		"POST /api/medicos",
		"POST /api/agendamentos",
		"GET /api/agendamentos",
		"PATCH /api/agendamentos/:id/status",
		"DELETE /api/agendamentos/:id",
		"GET /health",
		"GET /health/db",
	}
	for _, route := range want {
		if !registered[route] {
			t.Errorf("route %s not registered", route)
		}
	}
}

func TestNewServer_Liveness(t *testing.T) {
	e := newServer(testConfig(), zerolog.Nop(), nil, cache.NopStore{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

// Rejected sessions must be answered before a pooled connection is
// requested; the nil pool here would panic otherwise.
func TestNewServer_RejectsBeforeCheckout(t *testing.T) {
	e := newServer(testConfig(), zerolog.Nop(), nil, cache.NopStore{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/agendamentos", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["success"] != false || body["message"] == "" {
		t.Errorf("expected failure envelope, got %v", body)
	}
}

func TestNewServer_UnknownRoute(t *testing.T) {
	e := newServer(testConfig(), zerolog.Nop(), nil, cache.NopStore{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestPublicRoutesMatchRegistration(t *testing.T) {
	public := [][2]string{
		{http.MethodPost, "/api/pacientes/cadastro"},
		{http.MethodPost, "/api/pacientes/login"},
		{http.MethodGet, "/api/pacientes/cpf/:id"},
		{http.MethodPost, "/api/medicos/cadastro"},
		{http.MethodPost, "/api/medicos/login"},
	}
	for _, r := range public {
		if !auth.IsPublicRoute(r[0], r[1]) {
			t.Errorf("%s %s should be public", r[0], r[1])
		}
	}
	if auth.IsPublicRoute(http.MethodPost, "/api/pacientes/cadastro-rapido") {
		t.Error("quick registration must require a session")
	}
}

func TestMigrateCommand(t *testing.T) {
	cmd := migrateCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
		if c.Flags().Lookup("dir") == nil {
			t.Errorf("migrate %s is missing --dir", c.Name())
		}
	}
	if !names["up"] || !names["status"] {
		t.Errorf("expected up and status subcommands, got %v", names)
	}
}

func TestRunServer_FailsWithoutDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ENV", "test")

	if err := runServer(); err == nil {
		t.Fatal("expected runServer to fail without DATABASE_URL")
	}
}
