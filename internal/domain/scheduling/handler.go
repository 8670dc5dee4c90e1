package scheduling

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/httpx"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the appointment routes. Every route needs a session.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/agendamentos")
	g.POST("", h.CreateAppointment)
	g.GET("", h.ListAppointments)
	g.PATCH("/:id/status", h.UpdateStatus)
	g.DELETE("/:id", h.DeleteAppointment)
}

type createAppointmentRequest struct {
	DoctorID          string `json:"doctor_id"`
	PatientNationalID string `json:"patient_national_id"`
	ScheduledAt       string `json:"scheduled_at"`
	DesiredSpecialty  string `json:"desired_specialty"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return auth.Principal{}, apperr.Auth("authentication required")
	}
	return p, nil
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req createAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.CreateAppointment(c.Request().Context(), p, CreateAppointmentInput{
		DoctorID:          req.DoctorID,
		PatientNationalID: req.PatientNationalID,
		ScheduledAt:       req.ScheduledAt,
		DesiredSpecialty:  req.DesiredSpecialty,
	})
	if err != nil {
		return err
	}
	return httpx.JSON(c, http.StatusCreated, "appointment created", httpx.Payload{
		"appointment_id": a.ID,
		"status":         a.Status,
	})
}

func (h *Handler) ListAppointments(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListAppointments(c.Request().Context(), p, ListQuery{
		DoctorID: c.QueryParam("doctor_id"),
		Status:   c.QueryParam("status"),
		Date:     c.QueryParam("date"),
	})
	if err != nil {
		return err
	}
	return httpx.JSON(c, http.StatusOK, "", httpx.Payload{"appointments": items})
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.UpdateStatus(c.Request().Context(), p, c.Param("id"), req.Status); err != nil {
		return err
	}
	return httpx.JSON(c, http.StatusOK, "appointment status updated", nil)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), p, c.Param("id")); err != nil {
		return err
	}
	return httpx.JSON(c, http.StatusOK, "appointment deleted", nil)
}
