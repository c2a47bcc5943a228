package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"support_chat/internal/service"
)

// RoomHandler 處理客服房間相關的請求
type RoomHandler struct {
	roomService    *service.RoomService
	messageService *service.MessageService
}

func NewRoomHandler(roomService *service.RoomService, messageService *service.MessageService) *RoomHandler {
	return &RoomHandler{roomService: roomService, messageService: messageService}
}

// ListRooms 客服取得所有房間，一般用戶只取得自己的
func (h *RoomHandler) ListRooms(c *gin.Context) {
	caller, err := currentCaller(c)
	if err != nil {
		respondError(c, err)
		return
	}

	rooms, err := h.roomService.ListRooms(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}
	if rooms == nil {
		rooms = []service.RoomView{}
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// CreateRoom 取得或建立呼叫者自己的房間
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	caller, err := currentCaller(c)
	if err != nil {
		respondError(c, err)
		return
	}

	room, err := h.roomService.FindOrCreateForUser(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// GetRoom ?messages=true 時一併回傳所有訊息
func (h *RoomHandler) GetRoom(c *gin.Context) {
	caller, err := currentCaller(c)
	if err != nil {
		respondError(c, err)
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	withMessages, _ := strconv.ParseBool(c.Query("messages"))
	room, err := h.roomService.GetRoom(c.Request.Context(), caller, roomID, withMessages)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type resolvedInput struct {
	Resolved *bool `json:"resolved" binding:"required"`
}

func (h *RoomHandler) SetResolved(c *gin.Context) {
	caller, err := currentCaller(c)
	if err != nil {
		respondError(c, err)
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input resolvedInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.roomService.SetResolved(c.Request.Context(), caller, roomID, *input.Resolved)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// ListMessages ?limit=&cursor= 分頁，回傳 {messages, next_cursor}
func (h *RoomHandler) ListMessages(c *gin.Context) {
	caller, err := currentCaller(c)
	if err != nil {
		respondError(c, err)
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	q, err := service.ParsePageQuery(c.Query("limit"), c.Query("cursor"))
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.messageService.ListMessages(c.Request.Context(), caller, roomID, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *RoomHandler) SendMessage(c *gin.Context) {
	caller, err := currentCaller(c)
	if err != nil {
		respondError(c, err)
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input service.MessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messageService.CreateMessage(c.Request.Context(), caller, roomID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

type typingInput struct {
	IsTyping bool `json:"is_typing"`
}

func (h *RoomHandler) SetTyping(c *gin.Context) {
	caller, err := currentCaller(c)
	if err != nil {
		respondError(c, err)
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var input typingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.messageService.SetTyping(c.Request.Context(), caller, roomID, input.IsTyping); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
