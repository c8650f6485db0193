package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-Id"
	requestsPrefix  = "/v1/requests/"
)

type requestIDContextKey struct{}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// requestIDMiddleware propagates X-Request-Id, minting one when absent.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := trimmedHeader(r, requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDContextKey{}, id)))
	})
}

// accessLogMiddleware writes one http_request line per call, tagged with the
// document request, workflow action and acting admin when present.
func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes", rec.bytesWritten,
			"remote_addr", clientKey(r),
		}
		attrs = append(attrs, workflowAttrs(r)...)

		level := slog.LevelInfo
		switch {
		case rec.statusCode >= http.StatusInternalServerError:
			level = slog.LevelError
		case rec.statusCode >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "http_request", attrs...)
	})
}

// workflowAttrs pulls the document request id and action out of
// /v1/requests/{id}[/actions/{action}] plus the actor headers.
func workflowAttrs(r *http.Request) []any {
	var attrs []any
	if rest, ok := strings.CutPrefix(r.URL.Path, requestsPrefix); ok {
		parts := strings.Split(rest, "/")
		if parts[0] != "" {
			attrs = append(attrs, "document_request_id", parts[0])
		}
		if len(parts) == 3 && parts[1] == "actions" {
			attrs = append(attrs, "action", parts[2])
		}
	}
	if actorID := trimmedHeader(r, actorIDHeader); actorID != "" {
		attrs = append(attrs, "actor_id", actorID, "actor_role", trimmedHeader(r, actorRoleHeader))
		if barangay := trimmedHeader(r, actorBarangayHeader); barangay != "" {
			attrs = append(attrs, "actor_barangay", barangay)
		}
	}
	return attrs
}

// statusRecorder captures the status and size of a response. The API serves
// only JSON and workbook downloads, so it does not forward Flusher or Hijacker.
type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}
