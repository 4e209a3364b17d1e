package connect

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/api/internal/platform/auth"
	"github.com/carelink/api/pkg/pagination"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/connect/doctors", h.SearchDoctors)
	g.POST("/connect/requests", h.RequestConnection, auth.RequireRole(auth.RolePatient))
	g.GET("/connect/requests", h.ListRequests)
	g.POST("/connect/requests/:id/confirm", h.ConfirmConnection, auth.RequireRole(auth.RoleDoctor))
}

func (h *Handler) SearchDoctors(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.service.SearchDoctors(c.Request().Context(), c.QueryParam("query"), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to search doctors")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func (h *Handler) RequestConnection(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	var input struct {
		DoctorID uuid.UUID `json:"doctor_id"`
	}
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req, err := h.service.RequestConnection(c.Request().Context(), uid, input.DoctorID)
	if err != nil {
		switch {
		case errors.Is(err, ErrDoctorNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrNotADoctor):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrRequestExists):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create connection request")
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) ListRequests(c echo.Context) error {
	ctx := c.Request().Context()
	uid := auth.UserIDFromContext(ctx)
	var (
		items []*ConnectionRequest
		err   error
	)
	if auth.RoleFromContext(ctx) == auth.RoleDoctor {
		items, err = h.service.ListForDoctor(ctx, uid, c.QueryParam("status"))
	} else {
		items, err = h.service.ListForPatient(ctx, uid)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list connection requests")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ConfirmConnection(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request ID")
	}
	var input struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req, err := h.service.ConfirmConnection(c.Request().Context(), uid, id, input.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrRequestNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrWrongDoctor):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrRequestClosed):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrCodeExpired):
			return echo.NewHTTPError(http.StatusGone, err.Error())
		case errors.Is(err, ErrCodeInvalid):
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to confirm connection")
	}
	return c.JSON(http.StatusOK, req)
}
