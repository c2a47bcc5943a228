package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// API 是控制器需要的伺服器操作
type API interface {
	ListRooms(ctx context.Context) ([]Room, error)
	ListMessages(ctx context.Context, roomID uint, limit int, cursor *uint) (*Page, error)
	SendMessage(ctx context.Context, roomID uint, text, image string) (*Message, error)
	SetTyping(ctx context.Context, roomID uint, isTyping bool) error
	Subscribe(ctx context.Context, roomID uint) (Subscription, error)
}

// Subscription 房間即時頻道。Events 在連線中斷或 Close 後關閉。
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// APIError 伺服器回傳的非 2xx 回應
type APIError struct {
	Status  int
	Message string
	// Code 伺服器附帶的錯誤代碼，例如 CodeCursorNotFound
	Code string
}

// CodeCursorNotFound 分頁 cursor 指向的訊息已不存在
const CodeCursorNotFound = "cursor_not_found"

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: %d %s", e.Status, e.Message)
}

// Client 以 HTTP 與 WebSocket 呼叫客服聊天伺服器
type Client struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		token:   token,
	}
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login 取得 token 並在之後的請求中使用
func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/login", body, &resp); err != nil {
		return err
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return nil
}

func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var resp struct {
		Rooms []Room `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/rooms", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// OpenRoom 取得或建立自己的房間
func (c *Client) OpenRoom(ctx context.Context) (*Room, error) {
	var room Room
	if err := c.do(ctx, http.MethodPost, "/api/rooms", nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *Client) ListMessages(ctx context.Context, roomID uint, limit int, cursor *uint) (*Page, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != nil {
		q.Set("cursor", strconv.FormatUint(uint64(*cursor), 10))
	}

	path := fmt.Sprintf("/api/rooms/%d/messages", roomID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page Page
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) SendMessage(ctx context.Context, roomID uint, text, image string) (*Message, error) {
	var msg Message
	body := map[string]string{"text": text, "image": image}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/rooms/%d/messages", roomID), body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) SetTyping(ctx context.Context, roomID uint, isTyping bool) error {
	body := map[string]bool{"is_typing": isTyping}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/rooms/%d/typing", roomID), body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error, Code: e.Code}
	}

	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}

// Subscribe 連上房間的 WebSocket；ctx 結束時連線一併關閉
func (c *Client) Subscribe(ctx context.Context, roomID uint) (Subscription, error) {
	wsURL := c.baseURL
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}

	header := http.Header{}
	if token := c.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, fmt.Sprintf("%s/api/rooms/%d/ws", wsURL, roomID), header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: "subscribe rejected"}
		}
		return nil, errors.Wrap(err, "subscribe")
	}
	return newWSSubscription(ctx, conn), nil
}

type wsSubscription struct {
	conn   *websocket.Conn
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func newWSSubscription(ctx context.Context, conn *websocket.Conn) *wsSubscription {
	s := &wsSubscription{
		conn:   conn,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s
}

func (s *wsSubscription) readLoop() {
	defer close(s.events)
	for {
		var event Event
		if err := s.conn.ReadJSON(&event); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				continue
			}
			s.Close()
			return
		}
		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}

func (s *wsSubscription) Events() <-chan Event {
	return s.events
}

func (s *wsSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
