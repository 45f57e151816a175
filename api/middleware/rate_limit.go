package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/angelmondragon/library-backend/api/responses"
	pkgerrors "github.com/angelmondragon/library-backend/pkg/errors"
	"github.com/angelmondragon/library-backend/pkg/logger"
	"github.com/angelmondragon/library-backend/pkg/redis"
)

// RateLimit caps requests per client IP within window. Limiter errors fail
// open so a Redis outage does not take the API down.
func RateLimit(limiter redis.RateLimiter, limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := clientIP(r)

			allowed, count, err := limiter.FixedWindowAllow(ctx, "global:ip:"+ip, int64(limit), window)
			if err != nil {
				if logg != nil {
					logg.Error(ctx, "rate_limit.unavailable", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("RateLimit-Remaining", strconv.FormatInt(remaining(int64(limit), count), 10))
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "ip", ip), "rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "Too many requests, please try again later."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remaining(limit, count int64) int64 {
	if count >= limit {
		return 0
	}
	return limit - count
}

// LocalLimiter is the in-process fallback used when Redis is not configured.
// Each scope gets a token bucket refilled at limit per window.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	now     func() time.Time
	swept   time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var _ redis.RateLimiter = (*LocalLimiter)(nil)

func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{buckets: map[string]*localBucket{}, now: time.Now}
}

// FixedWindowAllow reports whether scope may proceed. The returned count is
// the number of tokens consumed from the bucket so far.
func (l *LocalLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if limit <= 0 || window <= 0 {
		return true, 0, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now, window)
	bucket, ok := l.buckets[scope]
	if !ok {
		every := window / time.Duration(limit)
		bucket = &localBucket{limiter: rate.NewLimiter(rate.Every(every), int(limit))}
		l.buckets[scope] = bucket
	}
	bucket.lastSeen = now

	allowed := bucket.limiter.AllowN(now, 1)
	used := limit - int64(bucket.limiter.TokensAt(now))
	if !allowed {
		used = limit + 1
	}
	return allowed, used, nil
}

func (l *LocalLimiter) sweep(now time.Time, window time.Duration) {
	if now.Sub(l.swept) < window {
		return
	}
	for scope, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) >= window {
			delete(l.buckets, scope)
		}
	}
	l.swept = now
}
