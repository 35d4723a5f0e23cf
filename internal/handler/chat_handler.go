package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/service"
)

const (
	defaultChatUserName = "User"
	emptyChatPreview    = "Say hi!"
)

// Streamer serves a chat's live events over an upgraded connection.
type Streamer interface {
	Serve(c echo.Context, chatID uint64) error
}

type ChatHandler struct {
	svc    service.ChatService
	stream Streamer
}

func NewChatHandler(svc service.ChatService, stream Streamer) *ChatHandler {
	return &ChatHandler{svc: svc, stream: stream}
}

type ChatUserResponse struct {
	UID             string  `json:"id"`
	Name            string  `json:"name"`
	ProfileImageURL *string `json:"profileImageUrl"`
}

type ChatResponse struct {
	ID            uint64           `json:"id"`
	OtherUser     ChatUserResponse `json:"otherUser"`
	LastMessage   string           `json:"lastMessage"`
	LastMessageAt *string          `json:"lastMessageAt"`
	UnreadCount   int64            `json:"unreadCount"`
	CreatedAt     string           `json:"createdAt"`
	UpdatedAt     string           `json:"updatedAt"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

func toChatResponse(s service.ChatSummary) ChatResponse {
	name := s.Other.Name
	if name == "" {
		name = defaultChatUserName
	}
	resp := ChatResponse{
		ID: s.Chat.ID,
		OtherUser: ChatUserResponse{
			UID:             s.Other.UID,
			Name:            name,
			ProfileImageURL: s.Other.ProfileImageURL,
		},
		LastMessage: emptyChatPreview,
		UnreadCount: s.Unread,
		CreatedAt:   s.Chat.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   s.Chat.UpdatedAt.Format(time.RFC3339),
	}
	if s.LastMessage != nil {
		resp.LastMessage = s.LastMessage.Content
		at := s.LastMessage.SentAt.Format(time.RFC3339)
		resp.LastMessageAt = &at
	}
	return resp
}

// Contact opens the chat with a listing's owner, reusing an existing one for the pair.
func (h *ChatHandler) Contact(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	listingID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	ctx := c.Request().Context()
	chat, created, err := h.svc.ContactLister(ctx, uid, listingID)
	if err != nil {
		return serviceError(c, err, "listing not found", "failed to open chat")
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, map[string]any{"chatId": chat.ID, "created": created})
}

func (h *ChatHandler) List(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	list, err := h.svc.List(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err, "chat not found", "failed to fetch chats")
	}
	resp := make([]ChatResponse, 0, len(list))
	for _, s := range list {
		resp = append(resp, toChatResponse(s))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) Get(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	s, err := h.svc.Get(c.Request().Context(), uid, id)
	if err != nil {
		return serviceError(c, err, "chat not found", "failed to fetch chat")
	}
	return c.JSON(http.StatusOK, toChatResponse(*s))
}

// Messages returns the chat history oldest first as a bare array.
func (h *ChatHandler) Messages(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	msgs, err := h.svc.Messages(c.Request().Context(), uid, id)
	if err != nil {
		return serviceError(c, err, "chat not found", "failed to fetch messages")
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *ChatHandler) Send(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	msg, err := h.svc.Send(c.Request().Context(), uid, id, req.Content)
	if err != nil {
		return serviceError(c, err, "chat not found", "failed to send message")
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *ChatHandler) MarkRead(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	n, err := h.svc.MarkRead(c.Request().Context(), uid, id)
	if err != nil {
		return serviceError(c, err, "chat not found", "failed to mark read")
	}
	return c.JSON(http.StatusOK, map[string]int64{"updated": n})
}

// Stream upgrades to the push channel after checking the caller participates in the chat.
func (h *ChatHandler) Stream(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	if h.stream == nil {
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("unavailable", "push channel not configured"))
	}
	if _, err := h.svc.Authorize(c.Request().Context(), uid, id); err != nil {
		return serviceError(c, err, "chat not found", "failed to open stream")
	}
	return h.stream.Serve(c, id)
}
