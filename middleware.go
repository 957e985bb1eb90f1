package main

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"
	"golang.org/x/time/rate"
)

// getLimiter returns the limiter for key, creating it on first use.
func (app *App) getLimiter(key string) *rate.Limiter {
	app.LimiterMutex.Lock()
	defer app.LimiterMutex.Unlock()
	if lim, ok := app.LimiterMap[key]; ok {
		return lim
	}
	rps := max(app.RateLimitRPS, 1)
	lim := rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), app.RateLimitBurst)
	app.LimiterMap[key] = lim
	return lim
}

// pruneLimiters drops limiters whose bucket has refilled. A fresh limiter for
// the same key would behave identically.
func (app *App) pruneLimiters() int {
	app.LimiterMutex.Lock()
	defer app.LimiterMutex.Unlock()
	removed := 0
	for key, lim := range app.LimiterMap {
		if lim.Tokens() >= float64(lim.Burst()) {
			delete(app.LimiterMap, key)
			removed++
		}
	}
	return removed
}

// limiterKey buckets signed-in players by account so switching networks does
// not reset their budget. Everyone else is bucketed by client IP.
func limiterKey(c *gin.Context) string {
	if id, ok := identityFrom(c); ok {
		return "user:" + id.UserID
	}
	ip := c.ClientIP()
	if ip == "" {
		logWarnCtx(c.Request.Context(), "Rate limiter falling back to an empty client IP")
	}
	return "ip:" + ip
}

// rateLimitMiddleware rejects actions beyond the per-player budget. HTMX
// callers get an event so the page can show a toast.
func (app *App) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := limiterKey(c)
		if !app.getLimiter(key).Allow() {
			logInfoCtx(c.Request.Context(), "Rate limit exceeded for %s on %s", key, c.FullPath())
			if isHTMX(c) {
				c.Header("HX-Trigger", "rate-limit-exceeded")
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please slow down."})
			return
		}
		c.Next()
	}
}

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// requestIDMiddleware injects a request ID into the context for each request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.Request.Header.Get("X-Request-Id")
		if !validRequestID.MatchString(reqID) {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(c.Request.Context(), requestIDKey, reqID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-Id", reqID)
		c.Next()
	}
}

// securityHeadersMiddleware sets the headers every page response carries.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// cacheHeadersMiddleware lets browsers cache static assets in production.
// Everything else is dynamic and never cached.
func (app *App) cacheHeadersMiddleware(staticMaxAge time.Duration) gin.HandlerFunc {
	static := cachecontrol.New(cachecontrol.Config{
		Public: true,
		MaxAge: cachecontrol.Duration(staticMaxAge),
	})
	dynamic := cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	})
	return func(c *gin.Context) {
		if app.IsProduction && strings.HasPrefix(c.Request.URL.Path, "/static/") {
			static(c)
			c.Header("Vary", "Accept-Encoding")
			return
		}
		dynamic(c)
	}
}
