package chatclient

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypingTrackerExpires(t *testing.T) {
	tr := NewTypingTracker(5 * time.Second)
	now := base

	tr.Set(2, true, now)
	tr.Set(3, true, now.Add(2*time.Second))
	assert.Equal(t, []uint{2, 3}, tr.Active(now.Add(4*time.Second)))

	// 沒有新的事件，五秒後自動清除
	assert.Equal(t, []uint{3}, tr.Active(now.Add(5*time.Second)))

	// 新事件會延長期限
	tr.Set(3, true, now.Add(6*time.Second))
	assert.Equal(t, []uint{3}, tr.Active(now.Add(10*time.Second)))

	tr.Set(3, false, now.Add(10*time.Second))
	assert.Empty(t, tr.Active(now.Add(10*time.Second)))
}

type typingRecorder struct {
	mu    sync.Mutex
	calls []bool
}

func (r *typingRecorder) send(isTyping bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, isTyping)
}

func (r *typingRecorder) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.calls...)
}

func TestTypingTrackerNextExpiry(t *testing.T) {
	tr := NewTypingTracker(5 * time.Second)
	_, ok := tr.NextExpiry()
	assert.False(t, ok)

	tr.Set(2, true, base.Add(time.Second))
	tr.Set(3, true, base)
	next, ok := tr.NextExpiry()
	require.True(t, ok)
	assert.Equal(t, base.Add(5*time.Second), next)
}

func TestDebouncerBurst(t *testing.T) {
	rec := &typingRecorder{}
	d := NewDebouncer(100*time.Millisecond, rec.send)

	for i := 0; i < 5; i++ {
		d.Keystroke()
		time.Sleep(5 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []bool{true}, rec.get())

	require.Eventually(t, func() bool { return len(rec.get()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []bool{true, false}, rec.get())

	// 新的一串按鍵重新送出 true，Stop 補送的 false 排在後面
	d.Keystroke()
	d.Stop()
	require.Eventually(t, func() bool { return len(rec.get()) == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, []bool{true, false, true, false}, rec.get())

	// 已經停止時不重複送出
	d.Stop()
	time.Sleep(150 * time.Millisecond)
	assert.Len(t, rec.get(), 4)
}

func TestDebouncerKeystrokeDoesNotWaitForSend(t *testing.T) {
	release := make(chan struct{})
	rec := &typingRecorder{}
	d := NewDebouncer(time.Hour, func(isTyping bool) {
		<-release
		rec.send(isTyping)
	})

	done := make(chan struct{})
	go func() {
		d.Keystroke()
		d.Keystroke()
		d.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keystroke blocked on a slow send")
	}
	assert.Empty(t, rec.get())

	close(release)
	require.Eventually(t, func() bool { return len(rec.get()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []bool{true, false}, rec.get())
}
