package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/OpsCenterRio/COR-Backend/internal/utils"
)

// PushTokenMiddleware authenticates the calling device by its X-Push-Token
// header. There are no user accounts; the token is the device identity.
func PushTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-Push-Token"))
		if token == "" {
			http.Error(w, "Missing X-Push-Token header", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), utils.ContextPushTokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CORSMiddleware builds the CORS layer from the configured origin allow-list.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Push-Token"},
		ExposedHeaders:   []string{"X-Data-Status", "Server-Timing", "Retry-After", "Cache-Control"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// RateLimiter throttles requests per client IP with a token bucket.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.visitors[ip]
	if !ok {
		limiter = rate.NewLimiter(rl.rps, rl.burst)
		rl.visitors[ip] = limiter
	}
	return limiter
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if !rl.limiterFor(ip).Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
