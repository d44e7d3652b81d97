package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderRequestID  = "X-Request-ID"
	ContextRequestID = "request_id"
)

// RequestID propagates the caller's X-Request-ID or mints a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Writer.Header().Set(HeaderRequestID, id)
		c.Next()
	}
}

// ErrorLogger logs every request and recovers from panics.
func ErrorLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				err := fmt.Errorf("%v", recovered)
				requestEvent(logger.Error(), c, start).
					Err(err).
					Bytes("stack", debug.Stack()).
					Msg("panic")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "INTERNAL_SERVER_ERROR",
						"message": "Internal Server Error",
					},
				})
				return
			}

			status := c.Writer.Status()
			switch {
			case len(c.Errors) > 0:
				ev := requestEvent(logger.Error(), c, start)
				for i, err := range c.Errors {
					ev = ev.AnErr(fmt.Sprintf("error_%d", i), err.Err)
				}
				ev.Msg("request failed")
			case status >= http.StatusInternalServerError:
				requestEvent(logger.Error(), c, start).Msg("request failed")
			case status >= http.StatusBadRequest:
				requestEvent(logger.Warn(), c, start).Msg("request rejected")
			default:
				requestEvent(logger.Info(), c, start).Msg("request")
			}
		}()

		c.Next()
	}
}

func requestEvent(ev *zerolog.Event, c *gin.Context, start time.Time) *zerolog.Event {
	return ev.
		Str("request_id", c.GetString(ContextRequestID)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("query", c.Request.URL.RawQuery).
		Int("status", c.Writer.Status()).
		Str("client_ip", c.ClientIP()).
		Int64("user_id", c.GetInt64(ContextUserID)).
		Dur("latency", time.Since(start))
}
