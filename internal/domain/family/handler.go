package family

import (
	"errors"
	"net/http"

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
	g.POST("/family/requests", h.SendRequest)
	g.GET("/family/requests", h.ListRequests)
	g.POST("/family/requests/:id/accept", h.AcceptRequest)
	g.POST("/family/requests/:id/reject", h.RejectRequest)
	g.GET("/family/members", h.ListMembers)
	g.PUT("/family/members/:id", h.UpdateMemberSettings)
	g.DELETE("/family/members", h.RemoveMember)
}

func (h *Handler) SendRequest(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	var input struct {
		Email        string `json:"email"`
		Relationship string `json:"relationship"`
	}
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req, err := h.service.SendRequest(c.Request().Context(), uid, input.Email, input.Relationship)
	if err != nil {
		switch {
		case errors.Is(err, ErrRecipientNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrRequestExists), errors.Is(err, ErrAlreadyMember):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrSelfRequest):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) ListRequests(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	status := c.QueryParam("status")
	var (
		items []*Request
		err   error
	)
	if c.QueryParam("direction") == "outgoing" {
		items, err = h.service.ListOutgoing(c.Request().Context(), uid, status)
	} else {
		items, err = h.service.ListIncoming(c.Request().Context(), uid, status)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list requests")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AcceptRequest(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request ID")
	}
	req, err := h.service.AcceptRequest(c.Request().Context(), id, uid)
	if err != nil {
		switch {
		case errors.Is(err, ErrRequestNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrNotRecipient):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrRequestClosed):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to accept request")
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) RejectRequest(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request ID")
	}
	req, err := h.service.RejectRequest(c.Request().Context(), id, uid)
	if err != nil {
		switch {
		case errors.Is(err, ErrRequestNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrNotRecipient):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrRequestClosed):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to reject request")
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) ListMembers(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	members, err := h.service.GetNetwork(c.Request().Context(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list members")
	}
	return c.JSON(http.StatusOK, members)
}

func (h *Handler) UpdateMemberSettings(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid member ID")
	}
	var input struct {
		AccessLevel        string `json:"access_level"`
		IsEmergencyContact bool   `json:"is_emergency_contact"`
	}
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m, err := h.service.UpdateMemberSettings(c.Request().Context(), uid, memberID, input.AccessLevel, input.IsEmergencyContact)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) RemoveMember(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	email := c.QueryParam("email")
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email query parameter is required")
	}
	if err := h.service.RemoveMember(c.Request().Context(), uid, email); err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to remove member")
	}
	return c.NoContent(http.StatusNoContent)
}
