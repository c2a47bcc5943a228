package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"support_chat/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// token 已經驗證過，不依賴 cookie，因此不限制 origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler 訂閱房間的即時事件
type WebSocketHandler struct {
	hub            *service.Hub
	roomService    *service.RoomService
	messageService *service.MessageService
	log            zerolog.Logger
}

func NewWebSocketHandler(hub *service.Hub, roomService *service.RoomService, messageService *service.MessageService, log zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		roomService:    roomService,
		messageService: messageService,
		log:            log.With().Str("component", "websocket").Logger(),
	}
}

// HandleWebSocket 先檢查房間權限再升級連線，連線期間阻塞
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	caller, err := currentCaller(c)
	if err != nil {
		respondError(c, err)
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if _, err := h.roomService.GetRoom(c.Request.Context(), caller, roomID, false); err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已經回應了錯誤
		h.log.Debug().Err(err).Uint("room_id", roomID).Msg("upgrade failed")
		return
	}

	h.hub.Serve(conn, roomID, caller.UserID, func(isTyping bool) {
		if err := h.messageService.SetTyping(context.Background(), caller, roomID, isTyping); err != nil {
			h.log.Debug().Err(err).Uint("room_id", roomID).Msg("typing from websocket rejected")
		}
	})
}
