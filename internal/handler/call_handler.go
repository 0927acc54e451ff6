package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/service"
)

// CallHandler handles call signaling endpoints
type CallHandler struct {
	callService *service.CallService
}

func NewCallHandler(callService *service.CallService) *CallHandler {
	return &CallHandler{callService: callService}
}

// StartCall godoc
// @Summary Start a call in a conversation
// @Description Opens a ringing call. Fails if the conversation already has an active one.
// @Tags Calls
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.StartCallRequest true "Start call request"
// @Success 201 {object} model.ChatCall
// @Failure 409 {object} model.ErrorResponse
// @Router /calls [post]
func (h *CallHandler) StartCall(c *gin.Context) {
	var req model.StartCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	call, err := h.callService.StartCall(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, call)
}

// JoinCall godoc
// @Summary Join a ringing or ongoing call
// @Tags Calls
// @Produce json
// @Security BearerAuth
// @Param id path string true "Call ID"
// @Success 200 {object} model.ChatCall
// @Failure 409 {object} model.ErrorResponse
// @Router /calls/{id}/join [post]
func (h *CallHandler) JoinCall(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid call ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	call, err := h.callService.JoinCall(callID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, call)
}

// DeclineCall godoc
// @Summary Decline an incoming call
// @Tags Calls
// @Produce json
// @Security BearerAuth
// @Param id path string true "Call ID"
// @Success 200 {object} model.ChatCall
// @Router /calls/{id}/decline [post]
func (h *CallHandler) DeclineCall(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid call ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	call, err := h.callService.DeclineCall(userID, callID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, call)
}

// LeaveCall godoc
// @Summary Leave an ongoing call
// @Description The call keeps running while at least two participants remain.
// @Tags Calls
// @Produce json
// @Security BearerAuth
// @Param id path string true "Call ID"
// @Success 200 {object} model.ChatCall
// @Router /calls/{id}/leave [post]
func (h *CallHandler) LeaveCall(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid call ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	call, err := h.callService.LeaveCall(userID, callID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, call)
}

// EndCall godoc
// @Summary End a call for everyone
// @Tags Calls
// @Produce json
// @Security BearerAuth
// @Param id path string true "Call ID"
// @Success 200 {object} model.ChatCall
// @Router /calls/{id}/end [post]
func (h *CallHandler) EndCall(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid call ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	call, err := h.callService.EndCall(userID, callID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, call)
}

// GetActiveCall godoc
// @Summary Get the active call in a conversation
// @Tags Calls
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.ChatCall
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/{id}/call [get]
func (h *CallHandler) GetActiveCall(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	call, err := h.callService.GetActiveCall(convID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, call)
}
