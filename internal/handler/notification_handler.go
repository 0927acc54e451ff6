package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/service"
)

// NotificationHandler handles notification query endpoints
type NotificationHandler struct {
	notifService *service.NotificationService
}

func NewNotificationHandler(notifService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifService: notifService}
}

// GetNotifications godoc
// @Summary Get the current user's notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (default: 20)"
// @Param offset query int false "Offset"
// @Success 200 {array} model.ChatNotification
// @Router /notifications [get]
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	var req model.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	notifications, err := h.notifService.GetNotifications(userID, req.Limit, req.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to get notifications"})
		return
	}

	c.JSON(http.StatusOK, notifications)
}

// GetUnreadCount godoc
// @Summary Count the current user's unread notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.UnreadCountResponse
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	count, err := h.notifService.GetUnreadNotificationCount(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to count notifications"})
		return
	}

	c.JSON(http.StatusOK, model.UnreadCountResponse{Count: count})
}

// MarkAsRead godoc
// @Summary Mark one notification as read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid notification ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.notifService.MarkNotificationAsRead(id, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Notification marked as read"})
}

// MarkAllAsRead godoc
// @Summary Mark all notifications as read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.SuccessResponse
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.notifService.MarkAllNotificationsAsRead(userID); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to mark notifications"})
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "All notifications marked as read"})
}

// DeleteNotification godoc
// @Summary Delete a notification
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid notification ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.notifService.DeleteNotification(id, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Notification deleted"})
}
