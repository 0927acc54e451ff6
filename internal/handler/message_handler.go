package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/service"
)

// MessageHandler handles message and reaction endpoints
type MessageHandler struct {
	msgService   *service.MessageService
	reactService *service.ReactionService
}

func NewMessageHandler(msgService *service.MessageService, reactService *service.ReactionService) *MessageHandler {
	return &MessageHandler{msgService: msgService, reactService: reactService}
}

// SendMessage godoc
// @Summary Send a message to a conversation
// @Description JSON body for text messages; multipart form (payload field + files) for messages with raw attachments.
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.SendMessageRequest true "Send message request"
// @Success 201 {object} model.Message
// @Failure 400 {object} model.ErrorResponse
// @Router /conversations/{id}/messages [post]
func (h *MessageHandler) SendMessage(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.SendMessageRequest
	var files []service.FileUpload

	contentType := c.ContentType()
	if contentType == "multipart/form-data" {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid form data", Message: err.Error()})
			return
		}
		if payload := c.PostForm("payload"); payload != "" {
			if err := json.Unmarshal([]byte(payload), &req); err != nil {
				c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid payload", Message: err.Error()})
				return
			}
		}
		for _, header := range form.File["files"] {
			f, err := header.Open()
			if err != nil {
				continue
			}
			defer f.Close()
			files = append(files, service.FileUpload{
				Reader:      f,
				Size:        header.Size,
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
			})
		}
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
			return
		}
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	msg, err := h.msgService.SendMessage(c.Request.Context(), userID, convID, req, files)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// GetMessages godoc
// @Summary Get messages for a conversation
// @Description Paginated oldest-first within the page, cursor pages backwards in time.
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param before query string false "Cursor: message ID to get messages before"
// @Param limit query int false "Number of messages to return (default: 50)"
// @Success 200 {array} model.Message
// @Router /conversations/{id}/messages [get]
func (h *MessageHandler) GetMessages(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.MessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request"})
		return
	}

	var before *uuid.UUID
	if req.Before != "" {
		parsed, err := uuid.Parse(req.Before)
		if err == nil {
			before = &parsed
		}
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	messages, err := h.msgService.GetMessages(convID, userID, before, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// MarkAsRead godoc
// @Summary Mark all messages in a conversation as read
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/read [post]
func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.msgService.MarkMessagesAsRead(convID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Messages marked as read"})
}

// EditMessage godoc
// @Summary Edit a message
// @Description Only the original sender may edit. System messages are immutable.
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Param body body model.EditMessageRequest true "New content"
// @Success 200 {object} model.Message
// @Failure 403 {object} model.ErrorResponse
// @Router /messages/{id} [patch]
func (h *MessageHandler) EditMessage(c *gin.Context) {
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid message ID"})
		return
	}

	var req model.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	msg, err := h.msgService.EditMessage(msgID, req.Content, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// DeleteMessage godoc
// @Summary Delete a message
// @Description Soft delete: the message becomes a tombstone. Sender or conversation admin only.
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /messages/{id} [delete]
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid message ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	if err := h.msgService.DeleteMessage(msgID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Message deleted"})
}

// AddReaction godoc
// @Summary Add an emoji reaction to a message
// @Description Idempotent: repeating the same reaction succeeds without duplicating.
// @Tags Reactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Param body body model.AddReactionRequest true "Reaction"
// @Success 200 {object} model.Message
// @Router /messages/{id}/reactions [post]
func (h *MessageHandler) AddReaction(c *gin.Context) {
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid message ID"})
		return
	}

	var req model.AddReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	msg, err := h.reactService.AddReaction(c.Request.Context(), msgID, userID, req.Type)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// RemoveReaction godoc
// @Summary Remove an emoji reaction from a message
// @Description Removing an absent reaction is a successful no-op.
// @Tags Reactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Param type path string true "Reaction type (emoji key)"
// @Success 200 {object} model.Message
// @Router /messages/{id}/reactions/{type} [delete]
func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid message ID"})
		return
	}

	userID := c.MustGet("user_id").(uuid.UUID)
	msg, err := h.reactService.RemoveReaction(msgID, userID, c.Param("type"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}
