package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Abdullah-608/gigpanda/middleware"
	"github.com/Abdullah-608/gigpanda/model"
	"github.com/gin-gonic/gin"
)

// NotificationService is the feed surface the handler depends on.
type NotificationService interface {
	List(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
}

type NotificationHandler struct {
	notifications NotificationService
}

func NewNotificationHandler(notifications NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /api/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	notifications, err := h.notifications.List(c.Request.Context(), middleware.GetUserID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notifications": notifications})
}

// MarkRead handles POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"), middleware.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
