package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gitlab.com/yelinaung/paywatch/internal/logger"
	"gitlab.com/yelinaung/paywatch/internal/security"
	"go.opentelemetry.io/otel/trace"
)

const (
	ctxUserID       = "userID"
	ctxRequestID    = "requestID"
	headerRequestID = "X-Request-ID"
	maxRequestIDLen = 64
)

// requestID propagates a usable incoming X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logger.Log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Log.Error()
		}
		event = event.
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("request_id", c.GetString(ctxRequestID))
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			event = event.Str("trace_id", sc.TraceID().String())
		}
		if userID, ok := c.Get(ctxUserID); ok {
			if id, ok := userID.(int64); ok {
				event = event.Str("user_hash", logger.HashUserID(id))
			}
		}
		event.Msg("HTTP request")
	}
}

func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Log.Error().
			Interface("panic", recovered).
			Str("request_id", c.GetString(ctxRequestID)).
			Msg("Recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}

// cors allows the configured frontend origin and answers preflight requests.
func cors(allowedOrigin string) gin.HandlerFunc {
	allowedOrigin = strings.TrimRight(allowedOrigin, "/")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && origin == allowedOrigin {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Expose-Headers", headerRequestID)
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// userAuthMiddleware validates the bearer token and stores its user ID.
func userAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is missing"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is missing"})
			return
		}

		claims, err := security.ParseToken(secret, token)
		if err != nil {
			msg := "Token is invalid"
			if errors.Is(err, security.ErrExpiredToken) {
				msg = "Token has expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Next()
	}
}

func getUserID(c *gin.Context) int64 {
	val, ok := c.Get(ctxUserID)
	if !ok {
		return 0
	}
	id, _ := val.(int64)
	return id
}
