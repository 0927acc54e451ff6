package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/repository"
	"github.com/huddleapp/huddle/internal/service"
)

// UserHandler handles user directory and presence endpoints
type UserHandler struct {
	userRepo        *repository.UserRepository
	presenceService *service.PresenceService
}

func NewUserHandler(userRepo *repository.UserRepository, presenceService *service.PresenceService) *UserHandler {
	return &UserHandler{userRepo: userRepo, presenceService: presenceService}
}

// SearchUsers godoc
// @Summary Search users by name or email
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param q query string true "Search query"
// @Success 200 {array} model.UserSummary
// @Router /users/search [get]
func (h *UserHandler) SearchUsers(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Query parameter 'q' is required"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	users, err := h.userRepo.SearchUsers(query, userID, 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Search failed"})
		return
	}

	results := make([]model.UserSummary, 0, len(users))
	for i := range users {
		results = append(results, users[i].Summary())
	}
	c.JSON(http.StatusOK, results)
}

// RegisterDevice godoc
// @Summary Register a device push token
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.RegisterDeviceRequest true "Device registration"
// @Success 200 {object} model.SuccessResponse
// @Router /users/devices [post]
func (h *UserHandler) RegisterDevice(c *gin.Context) {
	var req model.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.userRepo.RegisterDevice(&model.UserDevice{
		UserID:     userID,
		FCMToken:   req.FCMToken,
		DeviceType: req.DeviceType,
	}); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to register device"})
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Device registered"})
}

// GetPresence godoc
// @Summary Get one user's presence
// @Tags Presence
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} model.PresenceRecord
// @Router /users/{id}/presence [get]
func (h *UserHandler) GetPresence(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	record, err := h.presenceService.GetPresence(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Presence lookup failed"})
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetOnlineUsers godoc
// @Summary Filter a set of user IDs down to those currently online
// @Tags Presence
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.OnlineUsersRequest true "User IDs to check"
// @Success 200 {array} string
// @Router /presence/online [post]
func (h *UserHandler) GetOnlineUsers(c *gin.Context) {
	var req model.OnlineUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	online, err := h.presenceService.GetOnlineUsers(c.Request.Context(), req.UserIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Presence lookup failed"})
		return
	}

	c.JSON(http.StatusOK, online)
}
