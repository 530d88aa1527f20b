package httpapi

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
)

// ResponseLogger wraps a http.ResponseWriter and records what was sent
// for the request log.
type ResponseLogger struct {
	http.ResponseWriter

	// Status is the response status code, zero if nothing was sent yet.
	Status int
	// Size is the amount of body bytes written.
	Size int64
	// Upgraded is set when the connection was taken over, eg. by a websocket.
	Upgraded bool
}

// NewResponseLogger wraps a http.ResponseWriter.
func NewResponseLogger(w http.ResponseWriter) *ResponseLogger {
	return &ResponseLogger{ResponseWriter: w}
}

// Write writes body data and counts it.
func (rl *ResponseLogger) Write(b []byte) (int, error) {
	if rl.Status == 0 {
		rl.Status = http.StatusOK
	}

	n, err := rl.ResponseWriter.Write(b)
	rl.Size += int64(n)
	return n, err
}

// WriteHeader records the first status code sent.
func (rl *ResponseLogger) WriteHeader(code int) {
	if rl.Status == 0 {
		rl.Status = code
	}
	rl.ResponseWriter.WriteHeader(code)
}

// Hijack takes over the connection, if the wrapped writer supports it.
func (rl *ResponseLogger) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rl.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response does not implement http.Hijacker")
	}

	c, b, err := hijacker.Hijack()
	if err != nil {
		return nil, nil, err
	}
	rl.Upgraded = true
	if rl.Status == 0 {
		rl.Status = http.StatusSwitchingProtocols
	}
	return c, b, nil
}

// Flush flushes buffered data, if the wrapped writer supports it.
func (rl *ResponseLogger) Flush() {
	if flusher, ok := rl.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap returns the wrapped writer for http.ResponseController.
func (rl *ResponseLogger) Unwrap() http.ResponseWriter {
	return rl.ResponseWriter
}

// LogLevel returns the level the request should be logged at.
func (rl *ResponseLogger) LogLevel() slog.Level {
	if rl.Status >= http.StatusInternalServerError {
		return slog.LevelWarn
	}
	return slog.LevelDebug
}
