package interfaces

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"recruit-pipeline/domain"
	"recruit-pipeline/service"
)

const (
	ctxRequestID = "request_id"
	ctxOperator  = "operator"

	headerRequestID = "X-Request-ID"
	headerToken     = "X-Application-Token"
)

// RateLimiter is satisfied by the redis and in-memory limiters.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) bool
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func AccessLog(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"request_id": c.GetString(ctxRequestID),
		})
		if op := c.GetString(ctxOperator); op != "" {
			entry = entry.WithField("operator", op)
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	}
}

// OperatorAuth maps a bearer token to an operator name. Identity management
// lives outside this service.
func OperatorAuth(tokens map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		operator := tokens[strings.TrimSpace(token)]
		if !ok || operator == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Code: "UNAUTHORIZED", Message: "operator token required"})
			return
		}
		c.Set(ctxOperator, operator)
		c.Next()
	}
}

func RateLimit(limiter RateLimiter, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow(scope+":"+c.ClientIP(), limit, window) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{Code: domain.CodeRateLimited, Message: "too many requests, try again later"})
			return
		}
		c.Next()
	}
}

func actorOf(c *gin.Context) service.Actor {
	return service.Actor{Operator: c.GetString(ctxOperator), RequestID: c.GetString(ctxRequestID)}
}
