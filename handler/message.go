package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Abdullah-608/gigpanda/middleware"
	"github.com/Abdullah-608/gigpanda/model"
	"github.com/Abdullah-608/gigpanda/pkg/logger"
	"github.com/gin-gonic/gin"
)

// EventStream is the per-user fan-out surface the handler depends on.
type EventStream interface {
	Subscribe(userID string) (int, <-chan model.Event)
	Unsubscribe(userID string, id int)
	Connected(userID string) bool
}

// PresenceTracker marks users online while they hold a stream.
type PresenceTracker interface {
	Heartbeat(ctx context.Context, userID string) error
	Offline(ctx context.Context, userID string) error
}

// Messenger is the direct-message surface the handler depends on.
type Messenger interface {
	Send(ctx context.Context, senderID, recipientID, body string) (*model.Message, error)
	Conversation(ctx context.Context, userID, otherID string, limit int) ([]model.Message, int64, error)
}

type MessageHandler struct {
	messages Messenger
	hub      EventStream
	presence PresenceTracker
}

func NewMessageHandler(messages Messenger, hub EventStream, presence PresenceTracker) *MessageHandler {
	return &MessageHandler{messages: messages, hub: hub, presence: presence}
}

// Stream handles GET /api/events: an SSE stream of the user's messages and
// notifications. Events produced while no stream is open are not replayed.
func (h *MessageHandler) Stream(c *gin.Context) {
	userID := middleware.GetUserID(c)
	ctx := c.Request.Context()

	id, ch := h.hub.Subscribe(userID)
	defer func() {
		h.hub.Unsubscribe(userID, id)
		if !h.hub.Connected(userID) {
			if err := h.presence.Offline(context.WithoutCancel(ctx), userID); err != nil {
				logger.Warn(ctx, "presence offline failed", "error", err)
			}
		}
	}()

	if err := h.presence.Heartbeat(ctx, userID); err != nil {
		logger.Warn(ctx, "presence heartbeat failed", "error", err)
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev.Payload)
			return true
		case <-heartbeat.C:
			if err := h.presence.Heartbeat(ctx, userID); err != nil {
				logger.Warn(ctx, "presence heartbeat failed", "error", err)
			}
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-ctx.Done():
			return false
		}
	})
}

type sendMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	Body        string `json:"body" binding:"required"`
}

// Send handles POST /api/messages
func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), middleware.GetUserID(c), req.RecipientID, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": msg})
}

// Conversation handles GET /api/messages/:uid
func (h *MessageHandler) Conversation(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, unread, err := h.messages.Conversation(c.Request.Context(), middleware.GetUserID(c), c.Param("uid"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": messages, "unread": unread})
}
