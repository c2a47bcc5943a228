package chatclient

import (
	"slices"
	"sync"
	"time"
)

const (
	DefaultTypingDebounce = 2 * time.Second
	DefaultTypingTTL      = 5 * time.Second
)

// TypingTracker 記錄其他人的輸入狀態。對方斷線不會送出停止事件，
// 因此每個狀態在 ttl 之後自動失效。不是並發安全的。
type TypingTracker struct {
	ttl   time.Duration
	until map[uint]time.Time
}

func NewTypingTracker(ttl time.Duration) *TypingTracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingTracker{ttl: ttl, until: make(map[uint]time.Time)}
}

func (t *TypingTracker) Set(senderID uint, isTyping bool, now time.Time) {
	if !isTyping {
		delete(t.until, senderID)
		return
	}
	t.until[senderID] = now.Add(t.ttl)
}

// Active 回傳目前仍在輸入的發送者，順便清掉過期的
func (t *TypingTracker) Active(now time.Time) []uint {
	ids := make([]uint, 0, len(t.until))
	for id, until := range t.until {
		if !now.Before(until) {
			delete(t.until, id)
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// NextExpiry 回傳最早失效的時間，沒有人在輸入時 ok 為 false
func (t *TypingTracker) NextExpiry() (next time.Time, ok bool) {
	for _, until := range t.until {
		if !ok || until.Before(next) {
			next, ok = until, true
		}
	}
	return next, ok
}

func (t *TypingTracker) Reset() {
	clear(t.until)
}

// Debouncer 把連續的按鍵轉成輸入狀態：一串按鍵的第一下送出 true，
// 停止輸入 window 之後送出 false。send 在背景依呼叫順序執行，不阻塞按鍵。
type Debouncer struct {
	window time.Duration
	send   func(isTyping bool)

	mu     sync.Mutex
	timer  *time.Timer
	seq    uint64
	active bool
	// last 最後一次送出完成時關閉
	last chan struct{}
}

func NewDebouncer(window time.Duration, send func(isTyping bool)) *Debouncer {
	if window <= 0 {
		window = DefaultTypingDebounce
	}
	return &Debouncer{window: window, send: send}
}

func (d *Debouncer) Keystroke() {
	d.mu.Lock()
	start := !d.active
	d.active = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.window, func() { d.expire(seq) })
	if start {
		d.dispatchLocked(true)
	}
	d.mu.Unlock()
}

func (d *Debouncer) expire(seq uint64) {
	d.mu.Lock()
	if d.seq != seq || !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.timer = nil
	d.dispatchLocked(false)
	d.mu.Unlock()
}

// Stop 立即結束目前的輸入狀態，有送出 true 時補送 false（同樣在背景送出）
func (d *Debouncer) Stop() {
	d.mu.Lock()
	wasActive := d.active
	d.active = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if wasActive {
		d.dispatchLocked(false)
	}
	d.mu.Unlock()
}

// dispatchLocked 在背景送出，等前一次送完才執行，保持 true/false 的順序
func (d *Debouncer) dispatchLocked(isTyping bool) {
	prev := d.last
	done := make(chan struct{})
	d.last = done
	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		d.send(isTyping)
	}()
}
