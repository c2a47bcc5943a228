package chatclient

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var ErrNoActiveRoom = errors.New("no active room")

// State 會話控制器目前所在的階段
type State int

const (
	StateIdle State = iota
	StateLoadingRooms
	StateRoomsLoaded
	StateLoadingHistory
	StateSubscribed
	StateHistoryFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingRooms:
		return "loading-rooms"
	case StateRoomsLoaded:
		return "rooms-loaded"
	case StateLoadingHistory:
		return "loading-history"
	case StateSubscribed:
		return "subscribed"
	case StateHistoryFailed:
		return "history-failed"
	}
	return "unknown"
}

type Options struct {
	// SelfID 自己的用戶 ID，自己的輸入事件不顯示
	SelfID         uint
	PageSize       int
	TypingDebounce time.Duration
	TypingTTL      time.Duration
	// OnChange 每次狀態改變後呼叫，不持有內部鎖
	OnChange func(Snapshot)
	Now      func() time.Time
	// Log 為 nil 時不輸出日誌
	Log *zerolog.Logger
}

// Snapshot 給 UI 使用的狀態快照
type Snapshot struct {
	State      State
	Rooms      []Room
	ActiveRoom uint
	Messages   []Message
	Typing     []uint
	HasMore    bool

	NoRooms      bool
	NoMessages   bool
	HistoryError error
	Disconnected bool
}

// Controller 管理一個使用中房間的歷史訊息、即時訂閱與輸入狀態。
// 拉取與推送可能送來同一則訊息，一律經過 Merge 去重。
type Controller struct {
	api  API
	opts Options
	log  zerolog.Logger

	mu           sync.Mutex
	state        State
	rooms        []Room
	active       uint
	messages     []Message
	hasMore      bool
	historyErr   error
	disconnected bool
	generation   uint64
	sub          Subscription
	typing       *TypingTracker
	typingTimer  *time.Timer
	debouncer    *Debouncer
}

func NewController(api API, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TypingDebounce <= 0 {
		opts.TypingDebounce = DefaultTypingDebounce
	}
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = DefaultTypingTTL
	}
	log := zerolog.Nop()
	if opts.Log != nil {
		log = opts.Log.With().Str("component", "chat-controller").Logger()
	}
	return &Controller{
		api:    api,
		opts:   opts,
		log:    log,
		typing: NewTypingTracker(opts.TypingTTL),
	}
}

func (c *Controller) LoadRooms(ctx context.Context) error {
	c.mu.Lock()
	if c.active == 0 {
		c.state = StateLoadingRooms
	}
	c.mu.Unlock()
	c.notify()

	rooms, err := c.api.ListRooms(ctx)

	c.mu.Lock()
	if err == nil {
		c.rooms = rooms
	}
	if c.active == 0 {
		c.state = StateRoomsLoaded
	}
	c.mu.Unlock()
	c.notify()
	return err
}

// SelectRoom 離開目前的頻道，清空訊息，先訂閱新房間再拉取最新一頁
func (c *Controller) SelectRoom(ctx context.Context, roomID uint) error {
	c.mu.Lock()
	gen := c.resetLocked()
	c.active = roomID
	c.state = StateLoadingHistory
	c.debouncer = NewDebouncer(c.opts.TypingDebounce, c.typingSender(roomID))
	c.mu.Unlock()
	c.notify()

	c.subscribe(ctx, gen, roomID)
	return c.loadLatest(ctx, gen, roomID, true)
}

// Retry 重新載入失敗的歷史訊息
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	roomID := c.active
	c.mu.Unlock()
	if roomID == 0 {
		return nil
	}
	return c.SelectRoom(ctx, roomID)
}

// LoadMore 以目前最舊一則已載入的訊息作為 cursor 往前拉取，不重新訂閱。
// 該訊息已被刪除時從畫面移除，改用下一則重試。
func (c *Controller) LoadMore(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.state != StateSubscribed || !c.hasMore {
			c.mu.Unlock()
			return nil
		}
		gen, roomID := c.generation, c.active
		var cursor *uint
		if len(c.messages) > 0 {
			oldest := c.messages[0].ID
			cursor = &oldest
		}
		c.mu.Unlock()

		page, err := c.api.ListMessages(ctx, roomID, c.opts.PageSize, cursor)

		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return nil
		}
		var apiErr *APIError
		if cursor != nil && errors.As(err, &apiErr) && apiErr.Code == CodeCursorNotFound {
			c.messages = without(c.messages, *cursor)
			c.mu.Unlock()
			continue
		}
		if err != nil {
			c.historyErr = err
		} else {
			c.historyErr = nil
			c.messages = Merge(page.Messages, c.messages)
			c.hasMore = page.NextCursor != nil
		}
		c.mu.Unlock()
		c.notify()
		return err
	}
}

// Refresh 重新拉取最新一頁並合併；斷線時先重新訂閱
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	gen, roomID, disconnected := c.generation, c.active, c.disconnected
	c.mu.Unlock()
	if roomID == 0 {
		return nil
	}

	if disconnected {
		c.subscribe(ctx, gen, roomID)
	}
	return c.loadLatest(ctx, gen, roomID, false)
}

// Send 等待伺服器回傳後才加入訊息；之後推送的同一則會被去重
func (c *Controller) Send(ctx context.Context, text, image string) (*Message, error) {
	c.mu.Lock()
	gen, roomID, debouncer := c.generation, c.active, c.debouncer
	c.mu.Unlock()
	if roomID == 0 {
		return nil, ErrNoActiveRoom
	}

	if debouncer != nil {
		debouncer.Stop()
	}

	msg, err := c.api.SendMessage(ctx, roomID, text, image)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if gen == c.generation {
		c.messages = Merge(c.messages, []Message{*msg})
	}
	c.mu.Unlock()
	c.notify()
	return msg, nil
}

// Input 在使用者每次按鍵時呼叫
func (c *Controller) Input() {
	c.mu.Lock()
	debouncer := c.debouncer
	c.mu.Unlock()
	if debouncer != nil {
		debouncer.Keystroke()
	}
}

// Close 離開目前的房間並停止所有背景工作
func (c *Controller) Close() {
	c.mu.Lock()
	c.resetLocked()
	c.active = 0
	c.state = StateRoomsLoaded
	if c.rooms == nil {
		c.state = StateIdle
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:        c.state,
		Rooms:        slices.Clone(c.rooms),
		ActiveRoom:   c.active,
		Messages:     slices.Clone(c.messages),
		Typing:       c.typing.Active(c.opts.Now()),
		HasMore:      c.hasMore,
		HistoryError: c.historyErr,
		Disconnected: c.active != 0 && c.disconnected,
	}
	s.NoRooms = c.state == StateRoomsLoaded && len(c.rooms) == 0
	s.NoMessages = c.state == StateSubscribed && len(c.messages) == 0
	return s
}

func (c *Controller) notify() {
	if c.opts.OnChange == nil {
		return
	}
	c.opts.OnChange(c.Snapshot())
}

// resetLocked 關閉目前的訂閱並清空房間狀態，回傳新的 generation
func (c *Controller) resetLocked() uint64 {
	c.generation++
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
	if c.debouncer != nil {
		go c.debouncer.Stop()
		c.debouncer = nil
	}
	c.messages = nil
	c.hasMore = false
	c.historyErr = nil
	c.disconnected = false
	c.typing.Reset()
	c.stopTypingTimerLocked()
	return c.generation
}

func (c *Controller) loadLatest(ctx context.Context, gen uint64, roomID uint, initial bool) error {
	page, err := c.api.ListMessages(ctx, roomID, c.opts.PageSize, nil)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return nil
	}
	switch {
	case err != nil && initial:
		c.state = StateHistoryFailed
		c.historyErr = err
	case err != nil:
		c.historyErr = err
	default:
		c.historyErr = nil
		c.messages = Merge(c.messages, page.Messages)
		if initial || c.state != StateSubscribed {
			c.hasMore = page.NextCursor != nil
		}
		c.state = StateSubscribed
	}
	c.mu.Unlock()
	c.notify()
	return err
}

func (c *Controller) subscribe(ctx context.Context, gen uint64, roomID uint) {
	// 訂閱的生命週期跟著房間，不跟著這次呼叫的 ctx
	sub, err := c.api.Subscribe(context.WithoutCancel(ctx), roomID)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		if sub != nil {
			sub.Close()
		}
		return
	}
	if err != nil {
		c.log.Warn().Err(err).Uint("room_id", roomID).Msg("subscribe failed")
		c.disconnected = true
		c.mu.Unlock()
		c.notify()
		return
	}
	if c.sub != nil {
		c.sub.Close()
	}
	c.sub = sub
	c.disconnected = false
	c.mu.Unlock()

	go c.consume(gen, sub)
}

func (c *Controller) consume(gen uint64, sub Subscription) {
	for event := range sub.Events() {
		c.handleEvent(gen, event)
	}

	c.mu.Lock()
	stale := gen != c.generation || c.sub != sub
	if !stale {
		c.sub = nil
		c.disconnected = true
	}
	c.mu.Unlock()
	if !stale {
		c.notify()
	}
}

func (c *Controller) handleEvent(gen uint64, event Event) {
	c.mu.Lock()
	if gen != c.generation || event.RoomID != c.active {
		c.mu.Unlock()
		return
	}

	switch event.Type {
	case EventMessageCreated:
		var msg Message
		if err := json.Unmarshal(event.Data, &msg); err != nil {
			c.log.Debug().Err(err).Msg("drop malformed message event")
			break
		}
		c.messages = Merge(c.messages, []Message{msg})
		c.typing.Set(msg.SenderID, false, c.opts.Now())
		c.touchRoomLocked(msg)

	case EventMessageDeleted:
		var deleted MessageDeleted
		if err := json.Unmarshal(event.Data, &deleted); err == nil {
			c.messages = without(c.messages, deleted.MessageID)
		}

	case EventTypingState:
		var state TypingState
		if err := json.Unmarshal(event.Data, &state); err == nil && state.SenderID != c.opts.SelfID {
			c.typing.Set(state.SenderID, state.IsTyping, c.opts.Now())
			c.armTypingTimerLocked(gen)
		}
	}
	c.mu.Unlock()
	c.notify()
}

// armTypingTimerLocked 在最早的輸入狀態失效時清除並通知 UI
func (c *Controller) armTypingTimerLocked(gen uint64) {
	c.stopTypingTimerLocked()
	next, ok := c.typing.NextExpiry()
	if !ok {
		return
	}
	delay := next.Sub(c.opts.Now())
	if delay < 0 {
		delay = 0
	}
	c.typingTimer = time.AfterFunc(delay, func() { c.expireTyping(gen) })
}

func (c *Controller) stopTypingTimerLocked() {
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
}

func (c *Controller) expireTyping(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.typing.Active(c.opts.Now())
	c.armTypingTimerLocked(gen)
	c.mu.Unlock()
	c.notify()
}

// touchRoomLocked 更新房間列表中的最後一則訊息
func (c *Controller) touchRoomLocked(msg Message) {
	for i := range c.rooms {
		if c.rooms[i].ID != msg.RoomID {
			continue
		}
		last := c.rooms[i].LastMessage
		if last != nil && (last.ID == msg.ID || last.CreatedAt.After(msg.CreatedAt)) {
			return
		}
		c.rooms[i].LastMessage = &LastMessage{
			ID:        msg.ID,
			Text:      msg.Text,
			Image:     msg.Image,
			CreatedAt: msg.CreatedAt,
			SenderID:  msg.SenderID,
		}
		c.rooms[i].MessageCount++
		if msg.CreatedAt.After(c.rooms[i].UpdatedAt) {
			c.rooms[i].UpdatedAt = msg.CreatedAt
		}
		return
	}
}

func (c *Controller) typingSender(roomID uint) func(bool) {
	return func(isTyping bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.api.SetTyping(ctx, roomID, isTyping); err != nil {
			c.log.Debug().Err(err).Uint("room_id", roomID).Bool("is_typing", isTyping).Msg("send typing state")
		}
	}
}
