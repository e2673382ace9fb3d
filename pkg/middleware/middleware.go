package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"relay/pkg/errors"
)

func LoggerMiddleware(logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		clientIP := c.ClientIP()
		method := c.Request.Method
		statusCode := c.Writer.Status()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		if raw != "" {
			path = path + "?" + raw
		}

		logFields := []interface{}{
			"status", statusCode,
			"latency", latency,
			"client_ip", clientIP,
			"method", method,
			"path", path,
		}

		if errorMessage != "" {
			logFields = append(logFields, "error", errorMessage)
		}

		if statusCode >= 500 {
			logger.Errorw("HTTP Request", logFields...)
		} else {
			logger.Infow("HTTP Request", logFields...)
		}
	}
}

func RecoveryMiddleware(logger interface {
	Errorw(msg string, keysAndValues ...interface{})
}) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		err := errors.RecoverPanic(recovered)
		logger.Errorw("Panic recovered",
			"error", err,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		c.AbortWithStatusJSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
	})
}

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}
