package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 64
	maxCapturedError   = 4 << 10
)

const requestLogContextKey contextKey = "request_log"

// requestLog collects fields that inner handlers learn about the request,
// such as the authenticated user, for the access log line.
type requestLog struct {
	id     string
	userID int64
}

// RequestID returns the id Logging assigned to the request, if any.
func RequestID(ctx context.Context) string {
	if entry, ok := ctx.Value(requestLogContextKey).(*requestLog); ok {
		return entry.id
	}
	return ""
}

func setLogUser(ctx context.Context, userID int64) {
	if entry, ok := ctx.Value(requestLogContextKey).(*requestLog); ok {
		entry.userID = userID
	}
}

type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Logging assigns a request id and writes one access log line per request.
// The query string is never logged since it can carry an access token.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := &requestLog{id: incomingRequestID(r)}
		w.Header().Set(requestIDHeader, entry.id)

		started := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK, captureErrors: true}
		next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), requestLogContextKey, entry)))

		attrs := []any{
			"request_id", entry.id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(started).Milliseconds(),
			"client_ip", ClientIP(r),
		}
		if entry.userID != 0 {
			attrs = append(attrs, "user_id", entry.userID)
		}

		var envelope errorEnvelope
		if sw.body.Len() > 0 && json.Unmarshal(sw.body.Bytes(), &envelope) == nil && envelope.Error != nil {
			attrs = append(attrs, "error_code", envelope.Error.Code, "error_message", envelope.Error.Message)
		}

		switch {
		case sw.status >= 500:
			slog.Error("request", attrs...)
		case sw.status >= 400:
			slog.Warn("request", attrs...)
		default:
			slog.Info("request", attrs...)
		}
	})
}

// incomingRequestID keeps a caller-supplied id when it is short and printable
// and mints a fresh one otherwise.
func incomingRequestID(r *http.Request) string {
	id := r.Header.Get(requestIDHeader)
	if id == "" || len(id) > maxRequestIDLength {
		return uuid.NewString()
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return uuid.NewString()
		}
	}
	return id
}

func (sw *statusWriter) captureBody(b []byte) {
	if !sw.captureErrors || sw.status < 400 {
		return
	}
	if room := maxCapturedError - sw.body.Len(); room > 0 {
		if len(b) > room {
			b = b[:room]
		}
		sw.body.Write(b)
	}
}
