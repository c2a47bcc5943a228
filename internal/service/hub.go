package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"support_chat/internal/metrics"
	"support_chat/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client 代表一個 WebSocket 客戶端連接
type Client struct {
	conn   *websocket.Conn
	UserID uint
	RoomID uint
	send   chan []byte   // 待發送的事件
	done   chan struct{} // 連線結束時關閉
	once   sync.Once
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Hub 管理每個房間的 WebSocket 連線，同時是單機模式下的 Publisher
type Hub struct {
	clients map[uint]map[*Client]bool // roomID -> client
	mu      sync.RWMutex
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[uint]map[*Client]bool),
		log:     log.With().Str("component", "hub").Logger(),
	}
}

// Publish 將事件送給本機上該房間的所有連線
func (h *Hub) Publish(_ context.Context, roomID uint, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	h.Broadcast(roomID, data)
	return nil
}

// Broadcast 向房間內的所有客戶端廣播已編碼的事件；佇列已滿的客戶端會被斷線
func (h *Hub) Broadcast(roomID uint, data []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients[roomID]))
	for c := range h.clients[roomID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		case <-c.done:
		default:
			metrics.SlowConsumersDropped.Inc()
			h.log.Warn().Uint("room_id", roomID).Uint("user_id", c.UserID).Msg("send queue full, dropping client")
			h.remove(c)
		}
	}
}

// Serve 接管已升級的連線直到斷線。onTyping 處理客戶端送來的 typing-state。
func (h *Hub) Serve(conn *websocket.Conn, roomID, userID uint, onTyping func(isTyping bool)) {
	c := &Client{
		conn:   conn,
		UserID: userID,
		RoomID: roomID,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}

	h.add(c)
	defer h.remove(c)

	go h.writePump(c)
	h.readPump(c, onTyping)
}

// readPump 持續監聽客戶端訊息，目前只接受 typing-state
func (h *Hub) readPump(c *Client, onTyping func(bool)) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug().Err(err).Uint("user_id", c.UserID).Msg("websocket closed unexpectedly")
			}
			return
		}

		var event models.Event
		if err := json.Unmarshal(data, &event); err != nil {
			h.log.Debug().Err(err).Msg("message parse error")
			continue
		}
		if event.Type != models.EventTypingState || onTyping == nil {
			continue
		}

		var state models.TypingState
		if err := json.Unmarshal(event.Data, &state); err != nil {
			continue
		}
		onTyping(state.IsTyping)
	}
}

// writePump 發送事件與心跳
func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.remove(c)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}

		case <-c.done:
			return
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.RoomID] == nil {
		h.clients[c.RoomID] = make(map[*Client]bool)
	}
	h.clients[c.RoomID][c] = true
	metrics.WebSocketConnections.Inc()
	h.log.Debug().Uint("room_id", c.RoomID).Uint("user_id", c.UserID).Int("room_clients", len(h.clients[c.RoomID])).Msg("client joined")
}

// remove 可重複呼叫
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if clients, ok := h.clients[c.RoomID]; ok {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			metrics.WebSocketConnections.Dec()
		}
		if len(clients) == 0 {
			delete(h.clients, c.RoomID)
		}
	}
	h.mu.Unlock()

	c.close()
}

// RoomClients 回傳本機上指定房間的連線數
func (h *Hub) RoomClients(roomID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[roomID])
}
