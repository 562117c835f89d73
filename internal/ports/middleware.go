package ports

import (
	"log/slog"
	"net/http"

	"github.com/Amund211/catalogcache/internal/logging"
	"github.com/Amund211/catalogcache/internal/ratelimiting"
	"github.com/Amund211/catalogcache/internal/reporting"
)

func NewRateLimitMiddleware(rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	if len(middlewares) == 1 {
		return middlewares[0]
	}
	first := middlewares[0]
	rest := ComposeMiddlewares(middlewares[1:]...)
	return func(h http.HandlerFunc) http.HandlerFunc {
		return first(rest(h))
	}
}

// RequestLimits are shared by every handler built from the same MiddlewareFactory
type RequestLimits struct {
	IP     ratelimiting.RequestRateLimiter
	UserID ratelimiting.RequestRateLimiter
}

// NewRequestLimits creates per-IP and per-user token buckets. Call stop on shutdown.
func NewRequestLimits(ipRefill ratelimiting.RefillPerSecond, ipBurst ratelimiting.BurstSize, userRefill ratelimiting.RefillPerSecond, userBurst ratelimiting.BurstSize) (RequestLimits, func()) {
	ipLimiter, stopIP := ratelimiting.NewTokenBucketRateLimiter(ipRefill, ipBurst)
	// NOTE: Rate limiting based on user controlled value
	userIDLimiter, stopUserID := ratelimiting.NewTokenBucketRateLimiter(userRefill, userBurst)

	return RequestLimits{
			IP:     ratelimiting.NewRequestBasedRateLimiter(ipLimiter, ratelimiting.IPKeyFunc),
			UserID: ratelimiting.NewRequestBasedRateLimiter(userIDLimiter, ratelimiting.UserIDKeyFunc),
		}, func() {
			stopIP()
			stopUserID()
		}
}

func onLimitExceeded(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"success":false,"cause":"rate limit exceeded"}`))
}

// MiddlewareFactory builds the middleware chain for the port with the given name
type MiddlewareFactory func(portName string) func(http.HandlerFunc) http.HandlerFunc

func NewMiddlewareFactory(
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	allowedOrigins *AllowedOrigins,
	limits RequestLimits,
) MiddlewareFactory {
	return func(portName string) func(http.HandlerFunc) http.HandlerFunc {
		return ComposeMiddlewares(
			buildMetricsMiddleware(portName),
			logging.NewRequestLoggerMiddleware(rootLogger),
			sentryMiddleware,
			reporting.NewAddMetaMiddleware(portName),
			BuildCORSMiddleware(allowedOrigins),
			NewRateLimitMiddleware(limits.IP, onLimitExceeded),
			NewRateLimitMiddleware(limits.UserID, onLimitExceeded),
		)
	}
}
