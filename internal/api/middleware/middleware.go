// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/patchlens/patchlens/pkg/errors"
	"github.com/patchlens/patchlens/pkg/idgen"
	"github.com/patchlens/patchlens/pkg/logger"
	"github.com/patchlens/patchlens/pkg/telemetry"
)

// LoggerConfig configures the request logging middleware.
type LoggerConfig struct {
	// AccessLog enables logging of successful requests. Failures are
	// always logged.
	AccessLog bool
}

// Logger returns a middleware that logs request outcomes and feeds the
// HTTP request metrics.
func Logger(cfg *LoggerConfig) gin.HandlerFunc {
	if cfg == nil {
		cfg = &LoggerConfig{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		telemetry.GetMetrics().RecordHTTPRequest(c.Request.Context(), c.Request.Method, route, status, elapsed.Seconds())

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("elapsed", elapsed),
		}
		if requestID, ok := c.Get("request_id"); ok {
			fields = append(fields, zap.Any("request_id", requestID))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP request rejected", fields...)
		case cfg.AccessLog:
			logger.Info("HTTP request", fields...)
		}
	}
}

// Recovery returns a middleware that converts handler panics into 500
// responses instead of dropping the connection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Handler panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.ByteString("stack", debug.Stack()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   errors.KindInternal,
					"message": "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// RequestID returns a middleware that tags every request with an id,
// honoring one supplied by the client.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.NewRequestID()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// ErrorHandler returns a middleware that renders errors attached via
// c.Error into the uniform envelope. Internal messages are hidden unless
// debug mode is on.
func ErrorHandler(debugMode bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr, ok := errors.AsAppError(err)
		if !ok {
			appErr = errors.ErrInternal("internal server error", err)
		}

		message := appErr.Message
		if appErr.HTTPStatus() >= http.StatusInternalServerError && !debugMode {
			message = "internal server error"
		}

		c.JSON(appErr.HTTPStatus(), gin.H{
			"error":   appErr.Kind,
			"message": message,
		})
	}
}

// TokenValidator verifies a bearer token and returns the authenticated
// subject.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// JWTAuth returns a middleware requiring a valid bearer token on the
// route. The subject is stored in the context under "operator".
func JWTAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   errors.KindUnauthorized,
				"message": "authorization header required",
			})
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(header, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   errors.KindUnauthorized,
				"message": "authorization header must use the Bearer scheme",
			})
			return
		}

		subject, err := validator.ValidateToken(strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			logger.Warn("Token validation failed",
				zap.String("client_ip", c.ClientIP()),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   errors.KindUnauthorized,
				"message": "invalid or expired token",
			})
			return
		}

		c.Set("operator", subject)
		c.Next()
	}
}
