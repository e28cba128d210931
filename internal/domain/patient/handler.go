package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	homeMessage  = "Patient Management System API is running"
	aboutMessage = "Patient Management System"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/", h.Home)
	g.GET("/about", h.About)

	g.GET("/view", h.ListPatients)
	g.GET("/patient/:id", h.GetPatient)
	g.GET("/sort", h.SortPatients)

	g.POST("/create", h.CreatePatient)
	g.PUT("/update/:id", h.UpdatePatient)
	g.DELETE("/delete/:id", h.DeletePatient)
}

type messageResponse struct {
	Message   string `json:"message"`
	PatientID string `json:"patient_id,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Kind   Kind         `json:"kind"`
	Detail string       `json:"detail"`
	Errors []FieldError `json:"errors,omitempty"`
}

func (h *Handler) Home(c echo.Context) error {
	return c.JSON(http.StatusOK, messageResponse{Message: homeMessage})
}

func (h *Handler) About(c echo.Context) error {
	return c.JSON(http.StatusOK, messageResponse{Message: aboutMessage})
}

func (h *Handler) ListPatients(c echo.Context) error {
	records, err := h.svc.ListPatients(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	p, err := bindPatient(c)
	if err != nil {
		return httpError(err)
	}
	if err := h.svc.CreatePatient(c.Request().Context(), p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, messageResponse{
		Message:   "Patient created successfully",
		PatientID: p.ID,
	})
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	p, err := bindPatient(c)
	if err != nil {
		return httpError(err)
	}
	if err := h.svc.UpdatePatient(c.Request().Context(), c.Param("id"), p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Patient updated successfully"})
}

func (h *Handler) DeletePatient(c echo.Context) error {
	if err := h.svc.DeletePatient(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Patient deleted successfully"})
}

func (h *Handler) SortPatients(c echo.Context) error {
	patients, err := h.svc.SortPatients(c.Request().Context(), c.QueryParam("sort_by"), c.QueryParam("order"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, patients)
}

func bindPatient(c echo.Context) (*Patient, error) {
	payload, err := DecodePayload(c.Request().Body)
	if err != nil {
		return nil, err
	}
	return payload.Record()
}

// StatusFor maps an error kind to its HTTP status code.
func StatusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// httpError converts a service error into an echo.HTTPError carrying an
// ErrorResponse. The original error stays attached for request logging.
// Errors already raised by middleware while the body was read keep their
// own status.
func httpError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	body := ErrorResponse{Kind: KindStorage, Detail: "internal server error"}
	var pe *Error
	if errors.As(err, &pe) {
		body.Kind = pe.Kind
		body.Detail = pe.Message
		body.Errors = pe.Fields
	}
	return echo.NewHTTPError(StatusFor(body.Kind), body).SetInternal(err)
}
