package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"contentforge/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/pretty"
)

// maxLoggedBody caps the request body excerpt in access logs. Task inputs
// can carry whole prompts; the log only needs enough to identify the call.
const maxLoggedBody = 1000

// RequestLogger logs each API call with status, latency and client address.
// Mutating requests also log a compacted copy of their JSON body so task
// submissions and approval verdicts are traceable.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var body string
		if c.Request.Method == http.MethodPost {
			body = snapshotBody(c)
		}

		c.Next()

		status := c.Writer.Status()
		if status == http.StatusNotFound {
			return
		}

		ctx := c.Request.Context()
		if body != "" {
			logger.InfoCtx(ctx, "%d | %v | %s | %s %s | body: %s",
				status, time.Since(start), c.ClientIP(), c.Request.Method, c.Request.RequestURI, body)
			return
		}
		logger.InfoCtx(ctx, "%d | %v | %s | %s %s",
			status, time.Since(start), c.ClientIP(), c.Request.Method, c.Request.RequestURI)
	}
}

// snapshotBody reads the request body and puts it back for the handler.
func snapshotBody(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(raw))
	return compactBody(raw)
}

// compactBody strips whitespace from a JSON body and truncates it.
func compactBody(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	compacted := pretty.Ugly(raw)
	if len(compacted) > maxLoggedBody {
		return string(compacted[:maxLoggedBody]) + "..."
	}
	return string(compacted)
}
