package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"support_chat/internal/metrics"
)

// Decision 一次限流檢查的結果
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	// RetryAfter 距離窗口重置的時間，以 limiter 自己的時鐘計算
	RetryAfter time.Duration
}

// Limiter 固定窗口計數器：每個 key 在每個窗口內最多允許 limit 次
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

func decide(count int64, limit int, now, resetAt time.Time) Decision {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    count <= int64(limit),
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		RetryAfter: resetAt.Sub(now),
	}
}

// windowBucket 回傳目前所在窗口的編號與結束時間
func windowBucket(now time.Time, window time.Duration) (int64, time.Time) {
	bucket := now.UnixNano() / int64(window)
	return bucket, time.Unix(0, (bucket+1)*int64(window))
}

// RedisLimiter 以 INCR + EXPIRE 實作，多個實例共用同一組計數
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := l.now()
	bucket, resetAt := windowBucket(now, window)
	windowKey := fmt.Sprintf("ratelimit:%s:%d", key, bucket)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, errors.Wrap(err, "rate limit incr")
	}
	return decide(incr.Val(), limit, now, resetAt), nil
}

// MemoryLimiter 單機使用，沒有設定 redis 時的替代方案
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]memoryBucket
	now     func() time.Time
}

type memoryBucket struct {
	bucket int64
	count  int64
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]memoryBucket), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := l.now()
	bucket, resetAt := windowBucket(now, window)

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b.bucket != bucket {
		b = memoryBucket{bucket: bucket}
	}
	b.count++
	l.buckets[key] = b

	// 過期的 key 順便清掉，避免 map 無限成長
	if len(l.buckets) > 10000 {
		for k, v := range l.buckets {
			if v.bucket < bucket {
				delete(l.buckets, k)
			}
		}
	}
	return decide(b.count, limit, now, resetAt), nil
}

// RateLimiter 將 Limiter 包成 gin 中間件
type RateLimiter struct {
	limiter Limiter
	log     zerolog.Logger
}

func NewRateLimiter(limiter Limiter, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		log:     log.With().Str("component", "ratelimit").Logger(),
	}
}

// Limit 依呼叫者（未驗證時依 IP）計數，超過時回傳 429。
// limiter 本身出錯時放行，只記錄錯誤。
func (rl *RateLimiter) Limit(scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := scope + ":" + clientKey(c)
		d, err := rl.limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			rl.log.Error().Err(err).Str("scope", scope).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			retryAfter := int(math.Ceil(d.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			metrics.RateLimitHits.WithLabelValues(scope).Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}

func clientKey(c *gin.Context) string {
	if id, ok := c.Get(ContextUserID); ok {
		if uid, ok := id.(uint); ok && uid != 0 {
			return "user:" + strconv.FormatUint(uint64(uid), 10)
		}
	}
	return "ip:" + c.ClientIP()
}
