package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/estately/internal/api/auth"
	"github.com/estately/internal/chat"
)

// ChatHandlers exposes the conversation service over HTTP. The principal
// always comes from auth.RequireAuth, never from the request body.
type ChatHandlers struct {
	service *chat.Service
}

// NewChatHandlers creates chat handlers backed by service
func NewChatHandlers(service *chat.Service) *ChatHandlers {
	return &ChatHandlers{service: service}
}

type openChatRequest struct {
	ReceiverID string `json:"receiverId"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type unreadCountResponse struct {
	Count int `json:"count"`
}

// ListChats handles GET /api/chats
func (h *ChatHandlers) ListChats(c echo.Context) error {
	chats, err := h.service.ListConversations(c.Request().Context(), auth.GetPrincipal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chats)
}

// GetChat handles GET /api/chats/:id
func (h *ChatHandlers) GetChat(c echo.Context) error {
	detail, err := h.service.GetConversation(c.Request().Context(), chat.ConversationInput{
		ConversationID: c.Param("id"),
		ActorID:        auth.GetPrincipal(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

// OpenChat handles POST /api/chats. Responds 201 when the conversation was
// created by this call and 200 when it already existed.
func (h *ChatHandlers) OpenChat(c echo.Context) error {
	var req openChatRequest
	if err := c.Bind(&req); err != nil {
		return chat.ValidationError("Invalid request body")
	}

	conv, created, err := h.service.OpenConversation(c.Request().Context(), chat.OpenConversationInput{
		ActorID:    auth.GetPrincipal(c),
		ReceiverID: req.ReceiverID,
	})
	if err != nil {
		return err
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, conv)
}

// MarkRead handles PUT /api/chats/read/:id
func (h *ChatHandlers) MarkRead(c echo.Context) error {
	conv, err := h.service.MarkRead(c.Request().Context(), chat.ConversationInput{
		ConversationID: c.Param("id"),
		ActorID:        auth.GetPrincipal(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, conv)
}

// SendMessage handles POST /api/messages/:chatId
func (h *ChatHandlers) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return chat.ValidationError("Invalid request body")
	}

	msg, err := h.service.SendMessage(c.Request().Context(), chat.SendMessageInput{
		ConversationID: c.Param("chatId"),
		ActorID:        auth.GetPrincipal(c),
		Text:           req.Text,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msg)
}

// UnreadCount handles GET /api/users/notification
func (h *ChatHandlers) UnreadCount(c echo.Context) error {
	n, err := h.service.UnreadCount(c.Request().Context(), auth.GetPrincipal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, unreadCountResponse{Count: n})
}
