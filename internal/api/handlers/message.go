package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"support_chat/internal/service"
)

// MessageHandler 處理不以房間為路徑的訊息操作
type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// SendToOwnRoom 發送到呼叫者自己的房間，房間不存在時建立
func (h *MessageHandler) SendToOwnRoom(c *gin.Context) {
	caller, err := currentCaller(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var input service.MessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messageService.SendToOwnRoom(c.Request.Context(), caller, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) GetMessage(c *gin.Context) {
	caller, err := currentCaller(c)
	if err != nil {
		respondError(c, err)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	msg, err := h.messageService.GetMessage(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	caller, err := currentCaller(c)
	if err != nil {
		respondError(c, err)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.messageService.DeleteMessage(c.Request.Context(), caller, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
