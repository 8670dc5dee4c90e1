package identity

import (
	"net/http"
	"time"

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

// RegisterRoutes mounts the patient and doctor routes on api. loginLimit
// guards the two login routes.
func (h *Handler) RegisterRoutes(api *echo.Group, loginLimit echo.MiddlewareFunc) {
	api.POST("/pacientes/cadastro", h.RegisterPatient)
	api.POST("/pacientes/login", h.LoginPatient, loginLimit)
	api.GET("/pacientes/cpf/:id", h.FindPatientByNationalID)
	api.POST("/pacientes/cadastro-rapido", h.QuickRegisterPatient, auth.RequireRole(auth.RoleDoctor))

	api.POST("/medicos/cadastro", h.RegisterDoctor)
	api.POST("/medicos/login", h.LoginDoctor, loginLimit)
	api.GET("/medicos", h.ListDoctors)
	api.POST("/medicos", h.CreateDoctor)
}

type registerPatientRequest struct {
	Name       string `json:"name"`
	NationalID string `json:"national_id"`
	Password   string `json:"password"`
}

type patientLoginRequest struct {
	NationalID string `json:"national_id"`
	Password   string `json:"password"`
}

type quickRegisterRequest struct {
	Name       string `json:"name"`
	NationalID string `json:"national_id"`
}

type doctorRequest struct {
	Name          string        `json:"name"`
	LicenseNumber string        `json:"license_number"`
	Specialties   SpecialtyList `json:"specialties"`
	Email         string        `json:"email"`
	Password      string        `json:"password"`
}

func (r doctorRequest) input() RegisterDoctorInput {
	return RegisterDoctorInput{
		Name:          r.Name,
		LicenseNumber: r.LicenseNumber,
		Specialties:   r.Specialties,
		Email:         r.Email,
		Password:      r.Password,
	}
}

type doctorLoginRequest struct {
	LicenseNumber string `json:"license_number"`
	Password      string `json:"password"`
}

func bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var req registerPatientRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.RegisterPatient(c.Request().Context(), RegisterPatientInput{
		Name:       req.Name,
		NationalID: req.NationalID,
		Password:   req.Password,
	})
	if err != nil {
		return err
	}
	return httpx.JSON(c, http.StatusCreated, "registration successful", httpx.Payload{"patient_id": p.ID})
}

func (h *Handler) LoginPatient(c echo.Context) error {
	var req patientLoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.LoginPatient(c.Request().Context(), req.NationalID, req.Password)
	if err != nil {
		return err
	}
	return httpx.JSON(c, http.StatusOK, "login successful", httpx.Payload{
		"token":       res.Token,
		"expires_at":  res.ExpiresAt.UTC().Format(time.RFC3339),
		"name":        res.Name,
		"role":        res.Role,
		"national_id": res.NationalID,
		"id":          res.ID,
	})
}

func (h *Handler) FindPatientByNationalID(c echo.Context) error {
	p, err := h.svc.FindPatientByNationalID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return httpx.JSON(c, http.StatusOK, "", httpx.Payload{"patient": p})
}

func (h *Handler) QuickRegisterPatient(c echo.Context) error {
	var req quickRegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.QuickRegisterPatient(c.Request().Context(), req.Name, req.NationalID)
	if err != nil {
		return err
	}
	return httpx.JSON(c, http.StatusCreated, "patient registered", httpx.Payload{
		"patient_id": p.ID,
		"patient":    p.Summary(),
	})
}

func (h *Handler) RegisterDoctor(c echo.Context) error {
	var req doctorRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	d, err := h.svc.RegisterDoctor(c.Request().Context(), req.input())
	if err != nil {
		return err
	}
	return httpx.JSON(c, http.StatusCreated, "registration successful", httpx.Payload{"doctor_id": d.ID})
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var req doctorRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	d, err := h.svc.CreateDoctor(c.Request().Context(), req.input())
	if err != nil {
		return err
	}
	return httpx.JSON(c, http.StatusCreated, "doctor registered", httpx.Payload{"doctor_id": d.ID})
}

func (h *Handler) LoginDoctor(c echo.Context) error {
	var req doctorLoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.LoginDoctor(c.Request().Context(), req.LicenseNumber, req.Password)
	if err != nil {
		return err
	}
	return httpx.JSON(c, http.StatusOK, "login successful", httpx.Payload{
		"token":      res.Token,
		"expires_at": res.ExpiresAt.UTC().Format(time.RFC3339),
		"name":       res.Name,
		"role":       res.Role,
		"id":         res.ID,
	})
}

func (h *Handler) ListDoctors(c echo.Context) error {
	doctors, err := h.svc.ListDoctors(c.Request().Context())
	if err != nil {
		return err
	}
	return httpx.JSON(c, http.StatusOK, "", httpx.Payload{"doctors": doctors})
}
