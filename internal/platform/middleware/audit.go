package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

// AuditEntry records who changed what. Reads are not audited.
type AuditEntry struct {
	PrincipalID string
	Role        string
	Action      string
	Resource    string
	ResourceID  string
	Route       string
	StatusCode  int
	RequestID   string
	IPAddress   string
	Timestamp   time.Time
}

// Audit emits a structured "audit" log line for every mutating /api request
// after it completes, including rejected ones, so that booking, status
// changes and deletions can be traced to an account.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			action := httpMethodToAction(req.Method)
			if action == "" || !strings.HasPrefix(req.URL.Path, "/api/") {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				switch {
				case errors.As(err, &he):
					status = he.Code
				case !c.Response().Committed:
					status = apperr.StatusCode(err)
				}
			}

			entry := AuditEntry{
				Action:     action,
				Resource:   resourceFromPath(req.URL.Path),
				ResourceID: c.Param("id"),
				Route:      c.Path(),
				StatusCode: status,
				IPAddress:  c.RealIP(),
				Timestamp:  time.Now().UTC(),
			}
			entry.RequestID, _ = c.Get("request_id").(string)
			if p, ok := auth.PrincipalFromContext(c.Request().Context()); ok {
				entry.PrincipalID = p.ID.String()
				entry.Role = p.Role.String()
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("principal_id", entry.PrincipalID).
				Str("role", entry.Role).
				Str("action", entry.Action).
				Str("resource", entry.Resource).
				Str("resource_id", entry.ResourceID).
				Str("route", entry.Route).
				Int("status", entry.StatusCode).
				Str("ip", entry.IPAddress).
				Time("at", entry.Timestamp).
				Msg("audit")

			return err
		}
	}
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return ""
}

// resourceFromPath returns the first segment after /api/, e.g. "agendamentos".
func resourceFromPath(path string) string {
	rest := strings.TrimPrefix(path, "/api/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
