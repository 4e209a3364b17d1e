package location

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/api/internal/platform/auth"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/location/share", h.Share)
	g.GET("/location/active", h.ActiveShares)
	g.POST("/location/shares/:id/resolve", h.Resolve)
	g.GET("/location/shares/:id/route", h.Route)
}

func (h *Handler) Share(c echo.Context) error {
	ctx := c.Request().Context()
	uid := auth.UserIDFromContext(ctx)
	var input ShareInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	input.SenderName = auth.NameFromContext(ctx)

	share, err := h.service.Share(ctx, uid, input)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, share)
}

func (h *Handler) ActiveShares(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	shares, err := h.service.ActiveShares(c.Request().Context(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list active shares")
	}
	return c.JSON(http.StatusOK, shares)
}

func (h *Handler) Resolve(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid share ID")
	}
	share, err := h.service.Resolve(c.Request().Context(), id, uid)
	if err != nil {
		switch {
		case errors.Is(err, ErrShareNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrNotOwner):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve share")
	}
	return c.JSON(http.StatusOK, share)
}

func (h *Handler) Route(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid share ID")
	}
	fromLat, err := strconv.ParseFloat(c.QueryParam("from_lat"), 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from_lat")
	}
	fromLng, err := strconv.ParseFloat(c.QueryParam("from_lng"), 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from_lng")
	}

	route, err := h.service.Route(c.Request().Context(), uid, fromLat, fromLng, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrShareNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrNotAuthorized):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrShareNotActive):
			return echo.NewHTTPError(http.StatusGone, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute route")
	}
	return c.JSON(http.StatusOK, route)
}
