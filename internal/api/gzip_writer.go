package api

import (
	"bytes"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// bufferedWriter buffers the full response body so GzipMiddleware can
// decide, after the handler runs, whether the body cleared the
// gzipMinBytes floor before committing headers.
type bufferedWriter struct {
	gin.ResponseWriter
	buffer bytes.Buffer
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.buffer.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.buffer.WriteString(s)
}

// processTimeWriter delays the X-Process-Time header until the first
// byte actually commits to the underlying ResponseWriter, so it still
// lands even when a later middleware (GzipMiddleware's bufferedWriter)
// buffers the body and only flushes it after this middleware's own
// post-c.Next() code would otherwise have run.
type processTimeWriter struct {
	gin.ResponseWriter
	start   time.Time
	stamped bool
}

func (w *processTimeWriter) stamp() {
	if w.stamped {
		return
	}
	w.stamped = true
	w.Header().Set("X-Process-Time", strconv.FormatInt(time.Since(w.start).Milliseconds(), 10))
}

func (w *processTimeWriter) WriteHeader(code int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(code)
}

func (w *processTimeWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

func (w *processTimeWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}
