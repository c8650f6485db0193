package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/lgu-docflow/internal/adapters/http/openapi"
	"github.com/kirillkom/lgu-docflow/internal/config"
	"github.com/kirillkom/lgu-docflow/internal/core/domain"
	"github.com/kirillkom/lgu-docflow/internal/core/ports"
	"github.com/kirillkom/lgu-docflow/internal/observability/metrics"
)

const (
	serviceName     = "api"
	maxPayloadBytes = 64 << 10
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Router struct {
	cfg      config.Config
	workflow ports.RequestWorkflow
	reader   ports.RequestReader
	exporter ports.AuditExporter
	schema   *openapi.Document
	metrics  *metrics.HTTPServerMetrics
}

// NewRouter wires the admin API. httpMetrics may be nil.
func NewRouter(
	cfg config.Config,
	workflow ports.RequestWorkflow,
	reader ports.RequestReader,
	exporter ports.AuditExporter,
	schema *openapi.Document,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		workflow: workflow,
		reader:   reader,
		exporter: exporter,
		schema:   schema,
		metrics:  httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /v1/requests/{request_id}", rt.getRequest)
	api.HandleFunc("GET /v1/requests/{request_id}/actions", rt.listActions)
	api.HandleFunc("POST /v1/requests/{request_id}/actions/{action}", rt.performAction)
	api.HandleFunc("GET /v1/requests/{request_id}/settlement", rt.getSettlement)
	api.HandleFunc("GET /v1/requests/{request_id}/audit.xlsx", rt.exportAudit)

	var guarded http.Handler = api
	guarded = backpressureMiddleware(guarded, rt.cfg.APIMaxInFlight, defaultBackpressureWait, rt.recordThrottled)
	guarded = rateLimitMiddleware(guarded, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.recordThrottled)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPI)
	mux.Handle("/v1/", guarded)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapi.Raw())
}

func (rt *Router) getRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.authorize(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (rt *Router) listActions(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	actions, err := rt.workflow.LegalActions(r.Context(), r.PathValue("request_id"), actor)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if actions == nil {
		actions = []domain.Action{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (rt *Router) performAction(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	action, ok := domain.ParseAction(r.PathValue("action"))
	if !ok {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse action", errors.New("unknown action "+r.PathValue("action"))))
		return
	}
	payload, err := rt.decodePayload(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	updated, err := rt.workflow.Perform(r.Context(), r.PathValue("request_id"), actor, action, payload)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rt *Router) getSettlement(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.authorize(w, r)
	if !ok {
		return
	}
	settlement, err := rt.workflow.Settlement(r.Context(), req.ID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

func (rt *Router) exportAudit(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.authorize(w, r)
	if !ok {
		return
	}
	// Buffer the workbook so a failed export still gets a JSON error.
	var buf bytes.Buffer
	if err := rt.exporter.ExportAudit(r.Context(), req.ID, &buf); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="audit-`+req.ID+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// authorize resolves the actor and loads the request it wants to read,
// writing the error response itself when either step fails.
func (rt *Router) authorize(w http.ResponseWriter, r *http.Request) (*domain.DocumentRequest, bool) {
	actor, err := actorFromRequest(r)
	if err != nil {
		rt.writeError(w, r, err)
		return nil, false
	}
	req, err := rt.reader.GetByID(r.Context(), r.PathValue("request_id"))
	if err != nil {
		rt.writeError(w, r, err)
		return nil, false
	}
	if !actor.Owns(req) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "actor does not administer this request"})
		return nil, false
	}
	return req, true
}

func (rt *Router) decodePayload(r *http.Request) (domain.ActionPayload, error) {
	var payload domain.ActionPayload
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		return payload, domain.WrapError(domain.ErrInvalidInput, "read payload", err)
	}
	if len(body) > maxPayloadBytes {
		return payload, domain.WrapError(domain.ErrInvalidInput, "read payload", errors.New("payload too large"))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return payload, nil
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return payload, domain.WrapError(domain.ErrInvalidInput, "decode payload", err)
	}
	if rt.schema != nil {
		if err := rt.schema.ValidateSchema("ActionPayload", raw); err != nil {
			return payload, domain.WrapError(domain.ErrInvalidInput, "validate payload", err)
		}
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return payload, domain.WrapError(domain.ErrInvalidInput, "decode payload", err)
	}
	return payload, nil
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	resp := errorResponse{Error: err.Error()}
	if reason, ok := domain.ReasonOf(err); ok {
		resp.Reason = string(reason)
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", retryAfterSeconds(rt.cfg.OfficeCodeAttemptWindow))
	}
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		if status == http.StatusInternalServerError {
			resp.Error = "internal error"
		}
	}
	writeJSON(w, status, resp)
}

func (rt *Router) recordThrottled(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordThrottled(serviceName, reason)
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func trimmedHeader(r *http.Request, name string) string {
	return strings.TrimSpace(r.Header.Get(name))
}
