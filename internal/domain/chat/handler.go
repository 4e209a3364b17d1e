package chat

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
	g.POST("/conversations", h.EnsureConversation)
	g.GET("/conversations", h.ListConversations)
	g.GET("/conversations/:id", h.GetConversation)
	g.GET("/conversations/:id/messages", h.ListMessages)
	g.POST("/conversations/:id/messages", h.SendMessage)
	g.POST("/conversations/:id/read", h.MarkRead)
	g.DELETE("/messages/:id", h.DeleteMessage)
}

func (h *Handler) EnsureConversation(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	var input struct {
		ParticipantID uuid.UUID `json:"participant_id"`
	}
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	conv, err := h.service.EnsureConversation(c.Request().Context(), uid, input.ParticipantID)
	if err != nil {
		if errors.Is(err, ErrNotFamily) {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, conv)
}

func (h *Handler) ListConversations(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	p := pagination.FromContext(c)
	items, total, err := h.service.ListConversations(c.Request().Context(), uid, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list conversations")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func (h *Handler) GetConversation(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	conv, err := h.service.GetConversation(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return conversationError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

func (h *Handler) ListMessages(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	p := pagination.FromContext(c)
	items, total, err := h.service.ListMessages(c.Request().Context(), c.Param("id"), uid, p.Limit, p.Offset)
	if err != nil {
		return conversationError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p))
}

func (h *Handler) SendMessage(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	var input struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	msg, err := h.service.SendMessage(c.Request().Context(), c.Param("id"), uid, input.Text)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return conversationError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *Handler) MarkRead(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	if err := h.service.MarkRead(c.Request().Context(), c.Param("id"), uid); err != nil {
		return conversationError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteMessage(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid message ID")
	}
	if c.QueryParam("scope") == "everyone" {
		err = h.service.DeleteForEveryone(c.Request().Context(), id, uid)
	} else {
		err = h.service.DeleteForMe(c.Request().Context(), id, uid)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrMessageNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrNotSender), errors.Is(err, ErrNotParticipant):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete message")
	}
	return c.NoContent(http.StatusNoContent)
}

func conversationError(err error) error {
	switch {
	case errors.Is(err, ErrConversationNotFound), errors.Is(err, ErrMessageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotParticipant):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "chat operation failed")
}
