package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

func TestAudit_LogsMutation(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/agendamentos/abc", nil)
	p := auth.Principal{ID: uuid.New(), Role: auth.RolePatient}
	req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/agendamentos/:id")
	c.SetParamNames("id")
	c.SetParamValues("abc")

	handler := func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}

	if err := Audit(logger)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := decodeLog(t, &buf)
	checks := map[string]interface{}{
		"type":         "audit",
		"action":       "delete",
		"resource":     "agendamentos",
		"resource_id":  "abc",
		"principal_id": p.ID.String(),
		"role":         "patient",
		"status":       float64(200),
	}
	for k, want := range checks {
		if line[k] != want {
			t.Errorf("%s: expected %v, got %v", k, want, line[k])
		}
	}
}

func TestAudit_RecordsRejectedStatus(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/agendamentos/abc/status", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "doctors only")
	}

	if err := Audit(zerolog.New(&buf))(handler)(c); err == nil {
		t.Fatal("expected handler error to propagate")
	}
	line := decodeLog(t, &buf)
	if line["status"] != float64(http.StatusForbidden) {
		t.Errorf("expected status 403, got %v", line["status"])
	}
	if line["action"] != "update" {
		t.Errorf("expected update action, got %v", line["action"])
	}
}

func TestAudit_RecordsDomainErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"conflict", apperr.Conflict("the doctor already has an appointment at this time"), http.StatusConflict},
		{"not found", apperr.NotFound("appointment not found or not accessible"), http.StatusNotFound},
		{"forbidden", apperr.Forbidden("only doctors can change status"), http.StatusForbidden},
		{"validation", apperr.Validation("status is required"), http.StatusBadRequest},
		{"store failure", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/api/agendamentos", nil)
			c := e.NewContext(req, httptest.NewRecorder())

			err := Audit(zerolog.New(&buf))(func(c echo.Context) error { return tt.err })(c)
			if err != tt.err {
				t.Fatalf("expected handler error to propagate, got %v", err)
			}
			line := decodeLog(t, &buf)
			if line["status"] != float64(tt.want) {
				t.Errorf("expected status %d, got %v", tt.want, line["status"])
			}
		})
	}
}

func TestAudit_SkipsReads(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/agendamentos", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	Audit(zerolog.New(&buf))(func(c echo.Context) error { return nil })(c)

	if buf.Len() != 0 {
		t.Errorf("expected no audit line for GET, got %q", buf.String())
	}
}

func TestAudit_SkipsNonAPI(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	Audit(zerolog.New(&buf))(func(c echo.Context) error { return nil })(c)

	if buf.Len() != 0 {
		t.Errorf("expected no audit line outside /api, got %q", buf.String())
	}
}

func TestHttpMethodToAction(t *testing.T) {
	tests := map[string]string{
		http.MethodPost:   "create",
		http.MethodPut:    "update",
		http.MethodPatch:  "update",
		http.MethodDelete: "delete",
		http.MethodGet:    "",
		http.MethodHead:   "",
	}
	for method, want := range tests {
		if got := httpMethodToAction(method); got != want {
			t.Errorf("httpMethodToAction(%s) = %q, want %q", method, got, want)
		}
	}
}

func TestResourceFromPath(t *testing.T) {
	tests := map[string]string{
		"/api/agendamentos":          "agendamentos",
		"/api/agendamentos/1/status": "agendamentos",
		"/api/pacientes/cadastro":    "pacientes",
		"/api/medicos":               "medicos",
	}
	for path, want := range tests {
		if got := resourceFromPath(path); got != want {
			t.Errorf("resourceFromPath(%s) = %q, want %q", path, got, want)
		}
	}
}
