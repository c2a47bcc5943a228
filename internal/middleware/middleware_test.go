package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support_chat/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(j *utils.JWT) *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(j), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"id":   c.MustGet(ContextUserID),
			"role": c.MustGet(ContextUserRole),
		})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	j := utils.NewJWT("secret", time.Hour)
	r := newAuthRouter(j)
	token, err := j.GenerateToken(5, "admin")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer " + token, "", http.StatusOK},
		{"query token", "", "?token=" + token, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"id":5,"role":"admin"}`, w.Body.String())
			}
		})
	}
}

func TestMemoryLimiterFixedWindow(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 3-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC), d.ResetAt.UTC())
	assert.Equal(t, 50*time.Second, d.RetryAfter)

	// 其他 key 獨立計數
	d, err = l.Allow(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// 進入下一個窗口後重新計數
	now = now.Add(time.Minute)
	d, err = l.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (Decision, error) {
	return Decision{}, errors.New("redis down")
}

func newLimitedRouter(limiter Limiter, limit int) *gin.Engine {
	r := gin.New()
	rl := NewRateLimiter(limiter, zerolog.Nop())
	r.GET("/rooms", func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			n, _ := strconv.Atoi(id)
			c.Set(ContextUserID, uint(n))
		}
		c.Next()
	}, rl.Limit("rooms:read", limit, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func get(r http.Handler, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	r := newLimitedRouter(NewMemoryLimiter(), 2)

	assert.Equal(t, http.StatusOK, get(r, "1").Code)
	w := get(r, "1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = get(r, "1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// 不同用戶與匿名 IP 各自計數
	assert.Equal(t, http.StatusOK, get(r, "2").Code)
	assert.Equal(t, http.StatusOK, get(r, "").Code)
}

func TestRateLimiterRetryAfterUsesLimiterClock(t *testing.T) {
	l := NewMemoryLimiter()
	// 與實際時間無關，窗口還剩 7.2 秒
	l.now = func() time.Time { return time.Date(2020, 6, 1, 0, 0, 52, 800_000_000, time.UTC) }
	r := newLimitedRouter(l, 1)

	assert.Equal(t, http.StatusOK, get(r, "1").Code)
	w := get(r, "1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "8", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded","retry_after":8}`, w.Body.String())
}

func TestRateLimiterFailsOpen(t *testing.T) {
	r := newLimitedRouter(failingLimiter{}, 1)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(r, "1").Code)
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(zerolog.Nop()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, w.Header().Get(requestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(requestIDHeader))
}

// 需要真實的 redis，例如 REDIS_URL=redis://localhost:6379/0
func TestRedisLimiter(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	l := NewRedisLimiter(client)
	fixed := time.Now()
	l.now = func() time.Time { return fixed }
	key := "test:" + strconv.FormatInt(time.Now().UnixNano(), 10)
	ctx := context.Background()

	d, err := l.Allow(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}
