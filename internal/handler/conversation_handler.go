package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/service"
)

// ConversationHandler handles conversation lifecycle endpoints
type ConversationHandler struct {
	convService *service.ConversationService
}

func NewConversationHandler(convService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{convService: convService}
}

// CreateConversation godoc
// @Summary Create a new conversation
// @Description Create a direct, group, project or workspace conversation. Direct conversations are deduplicated per pair.
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateConversationRequest true "Create conversation request"
// @Success 201 {object} model.Conversation
// @Failure 400 {object} model.ErrorResponse
// @Router /conversations [post]
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req model.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	conv, err := h.convService.CreateConversation(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// GetConversations godoc
// @Summary Get all conversations for the current user
// @Description Conversations sorted by latest activity, each with the caller's unread count.
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.ConversationResponse
// @Router /conversations [get]
func (h *ConversationHandler) GetConversations(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	conversations, err := h.convService.GetConversations(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to get conversations"})
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// GetConversation godoc
// @Summary Get a specific conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.ConversationResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/{id} [get]
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	conv, err := h.convService.GetConversation(convID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// UpdateConversation godoc
// @Summary Update conversation metadata
// @Description Change name, description or avatar. Admins only.
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.UpdateConversationRequest true "Update request"
// @Success 200 {object} model.Conversation
// @Failure 403 {object} model.ErrorResponse
// @Router /conversations/{id} [patch]
func (h *ConversationHandler) UpdateConversation(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	conv, err := h.convService.UpdateConversation(c.Request.Context(), convID, userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// AddParticipants godoc
// @Summary Add participants to a conversation
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.AddParticipantsRequest true "User IDs to add"
// @Success 200 {object} model.Conversation
// @Failure 403 {object} model.ErrorResponse
// @Router /conversations/{id}/participants [post]
func (h *ConversationHandler) AddParticipants(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.AddParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	conv, err := h.convService.AddParticipants(c.Request.Context(), convID, userID, req.UserIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// RemoveParticipant godoc
// @Summary Remove a participant (or leave a conversation)
// @Description Admins can remove others; anyone can remove themselves.
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param userId path string true "User ID to remove"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /conversations/{id}/participants/{userId} [delete]
func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.convService.RemoveParticipant(convID, userID, targetID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Participant removed"})
}

// UpdateSettings godoc
// @Summary Update the caller's per-conversation settings
// @Description Mute, notification channel toggles, pin and archive flags.
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.UpdateParticipantSettingsRequest true "Settings"
// @Success 200 {object} model.ConversationParticipant
// @Router /conversations/{id}/settings [patch]
func (h *ConversationHandler) UpdateSettings(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.UpdateParticipantSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	participant, err := h.convService.UpdateParticipantSettings(convID, userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, participant)
}
