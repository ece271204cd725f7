package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chainsync/gateway/internal/pkg/logger"
)

const (
	HeaderRequestID  = "X-Request-ID"
	ContextRequestID = "request_id"

	maxLoggedBody = 4096
)

// RequestID returns the id assigned by RequestLogMiddleware, if any.
func RequestID(c *gin.Context) string {
	return c.GetString(ContextRequestID)
}

// RequestLogMiddleware tags each request with an X-Request-ID and writes
// one access log line when it completes. Request bodies are logged at
// debug level with credentials masked.
func RequestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.New().String()
		}
		c.Set(ContextRequestID, reqID)
		c.Header(HeaderRequestID, reqID)

		var body []byte
		if c.Request.Body != nil && c.Request.Method != http.MethodGet {
			body, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxLoggedBody+1))
			rest := c.Request.Body
			c.Request.Body = struct {
				io.Reader
				io.Closer
			}{io.MultiReader(bytes.NewReader(body), rest), rest}
		}

		c.Next()

		fields := []any{
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		logger.Info("HTTP request", fields...)
		if len(body) > 0 {
			logger.Debug("HTTP request body", "request_id", reqID, "body", redactBody(body))
		}
	}
}

func redactBody(body []byte) string {
	if len(body) > maxLoggedBody {
		return "[truncated]"
	}
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return "[redacted]"
	}
	redactValue(&data)
	out, err := json.Marshal(data)
	if err != nil {
		return "[redacted]"
	}
	return string(out)
}

func redactValue(v *interface{}) {
	switch raw := (*v).(type) {
	case map[string]interface{}:
		for key, val := range raw {
			if isSensitiveKey(key) {
				raw[key] = "***"
				continue
			}
			vv := val
			redactValue(&vv)
			raw[key] = vv
		}
	case []interface{}:
		for i, val := range raw {
			vv := val
			redactValue(&vv)
			raw[i] = vv
		}
	}
}

func isSensitiveKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "api_key", "apikey", "authorization", "token", "password", "secret":
		return true
	default:
		return false
	}
}
