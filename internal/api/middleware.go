package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// LoggingMiddleware emits one structured line per request, generalized
// from the teacher's gin.LoggerWithFormatter text formatter
// (pkg/api/router.go) into zerolog fields.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("error", c.Errors.String()).
			Msg("api request")
	}
}

// CORSMiddleware permits any origin, matching the teacher's
// pkg/api/router.go CORSMiddleware verbatim.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// ProcessTimeMiddleware stamps every response with X-Process-Time (ms)
// and X-Server, spec §4.11's ambient response headers. X-Process-Time
// can't be set with a plain post-c.Next() c.Header() call: downstream
// middleware (GzipMiddleware) may already have committed the real
// response by the time control returns here, and header mutations
// after the first Write/WriteHeader on the underlying ResponseWriter
// have no wire effect. processTimeWriter defers the stamp to just
// before that first commit instead.
func ProcessTimeMiddleware(serverName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Server", serverName)
		c.Writer = &processTimeWriter{ResponseWriter: c.Writer, start: time.Now()}
		c.Next()
	}
}

// gzipMinBytes is spec §4.11's compression floor: responses smaller
// than this are left uncompressed.
const gzipMinBytes = 1000

// GzipMiddleware compresses response bodies at or above gzipMinBytes
// when the client advertises gzip support.
func GzipMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		original := c.Writer
		buf := &bufferedWriter{ResponseWriter: original}
		c.Writer = buf
		c.Next()

		if buf.buffer.Len() < gzipMinBytes {
			_, _ = io.Copy(original, &buf.buffer)
			return
		}

		original.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(original)
		defer gz.Close()
		_, _ = gz.Write(buf.buffer.Bytes())
	}
}
