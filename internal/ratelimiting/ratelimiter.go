package ratelimiting

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

const bucketIdleTTL = 30 * time.Minute

type RateLimiter interface {
	Consume(key string) bool
}

type tokenBucketRateLimiter struct {
	buckets         *ttlcache.Cache[string, *rate.Limiter]
	refillPerSecond rate.Limit
	burstSize       int
}

func (l *tokenBucketRateLimiter) Consume(key string) bool {
	bucket, _ := l.buckets.GetOrSet(key, rate.NewLimiter(l.refillPerSecond, l.burstSize))
	return bucket.Value().Allow()
}

type RefillPerSecond float64
type BurstSize int

// NewTokenBucketRateLimiter returns a limiter keeping one token bucket per key.
// Buckets idle for longer than 30 minutes are evicted. Call stop to halt eviction.
func NewTokenBucketRateLimiter(refillPerSecond RefillPerSecond, burstSize BurstSize) (limiter RateLimiter, stop func()) {
	buckets := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](bucketIdleTTL),
	)
	go buckets.Start()

	return &tokenBucketRateLimiter{
		buckets:         buckets,
		refillPerSecond: rate.Limit(refillPerSecond),
		burstSize:       int(burstSize),
	}, buckets.Stop
}

type RequestRateLimiter interface {
	Consume(r *http.Request) bool
	KeyFor(r *http.Request) string
}

type requestBasedRateLimiter struct {
	limiter RateLimiter
	keyFunc func(r *http.Request) string
}

func (l *requestBasedRateLimiter) Consume(r *http.Request) bool {
	return l.limiter.Consume(l.keyFunc(r))
}

func (l *requestBasedRateLimiter) KeyFor(r *http.Request) string {
	return l.keyFunc(r)
}

func NewRequestBasedRateLimiter(limiter RateLimiter, keyFunc func(r *http.Request) string) RequestRateLimiter {
	return &requestBasedRateLimiter{
		limiter: limiter,
		keyFunc: keyFunc,
	}
}

func IPKeyFunc(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i != -1 {
		host = host[:i]
	}
	return fmt.Sprintf("ip: %s", host)
}

func UserIDKeyFunc(r *http.Request) string {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		userID = "<missing>"
	}
	return fmt.Sprintf("user-id: %.50s", userID)
}
