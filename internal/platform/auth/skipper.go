package auth

import (
	"github.com/labstack/echo/v4"
)

// publicRoutes lists the routes reachable without a session: registration,
// login, the patient lookup used before booking, and health checks. Keys
// are "METHOD route-pattern" so that GET /api/medicos stays protected while
// POST /api/medicos/cadastro does not.
var publicRoutes = map[string]bool{
	"GET /health":                  true,
	"GET /health/db":               true,
	"POST /api/pacientes/cadastro": true,
	"POST /api/pacientes/login":    true,
	"GET /api/pacientes/cpf/:id":   true,
	"POST /api/medicos/cadastro":   true,
	"POST /api/medicos/login":      true,
}

// AuthSkipper reports whether the matched route is public.
func AuthSkipper(c echo.Context) bool {
	return IsPublicRoute(c.Request().Method, c.Path())
}

func IsPublicRoute(method, path string) bool {
	return publicRoutes[method+" "+path]
}
