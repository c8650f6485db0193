package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
	"github.com/kirillkom/lgu-docflow/internal/observability/metrics"
)

func decodeError(t *testing.T, res *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestHealthzIsPublic(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestServesOpenAPIDocument(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "ActionPayload") {
		t.Fatalf("unexpected openapi response %d", res.Code)
	}
}

func TestGetRequestRequiresActor(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/requests/req-200", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestGetRequestByOwner(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, asCaptain(httptest.NewRequest(http.MethodGet, "/v1/requests/req-200", nil), "brgy-3"))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var got domain.DocumentRequest
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RequestNumber != "BRGY-3 2026/0200" {
		t.Fatalf("unexpected request number %q", got.RequestNumber)
	}
}

func TestGetRequestFromOtherBarangayIsForbidden(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, asCaptain(httptest.NewRequest(http.MethodGet, "/v1/requests/req-200", nil), "brgy-9"))
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
}

func TestGetRequestReturns404ForUnknownID(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, asMayor(httptest.NewRequest(http.MethodGet, "/v1/requests/missing", nil)))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestListActionsReturnsEmptyArray(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, asMayor(httptest.NewRequest(http.MethodGet, "/v1/requests/req-200/actions", nil)))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if strings.TrimSpace(res.Body.String()) != `{"actions":[]}` {
		t.Fatalf("unexpected body %s", res.Body.String())
	}
	if tr.workflow.lastActor.ID != "mun-7" || !tr.workflow.lastActor.IsMunicipalLike() {
		t.Fatalf("unexpected actor %+v", tr.workflow.lastActor)
	}
}

func TestPerformActionPassesPayload(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	updated := barangayRequest()
	updated.Status = domain.StatusBarangayApproved
	tr.workflow.performed = updated

	body := `{"notes":"documents complete","admin_edited_content":{"purpose":"scholarship"}}`
	req := asCaptain(httptest.NewRequest(http.MethodPost, "/v1/requests/req-200/actions/approve", strings.NewReader(body)), "brgy-3")
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if tr.workflow.lastAction != domain.ActionApprove {
		t.Fatalf("unexpected action %q", tr.workflow.lastAction)
	}
	if tr.workflow.lastPayload.Notes != "documents complete" || tr.workflow.lastPayload.AdminEditedContent["purpose"] != "scholarship" {
		t.Fatalf("unexpected payload %+v", tr.workflow.lastPayload)
	}
}

func TestPerformActionAcceptsEmptyBody(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	tr.workflow.performed = barangayRequest()
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, asMayor(httptest.NewRequest(http.MethodPost, "/v1/requests/req-200/actions/start_processing", nil)))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestPerformActionRejectsUnknownAction(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, asMayor(httptest.NewRequest(http.MethodPost, "/v1/requests/req-200/actions/teleport", nil)))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestPerformActionRejectsPayloadOutsideSchema(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	body := `{"note":"typo in field name"}`
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, asMayor(httptest.NewRequest(http.MethodPost, "/v1/requests/req-200/actions/approve", strings.NewReader(body))))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if tr.workflow.lastAction != "" {
		t.Fatalf("workflow must not be called for an invalid payload")
	}
}

func TestPerformActionMapsGuardFailure(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	tr.workflow.err = &domain.GuardFailure{
		Reason: domain.ReasonPaymentUnsettled,
		Action: domain.ActionMarkReady,
		Status: domain.StatusProcessing,
	}
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, asMayor(httptest.NewRequest(http.MethodPost, "/v1/requests/req-200/actions/mark_ready", nil)))
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
	if got := decodeError(t, res); got.Reason != string(domain.ReasonPaymentUnsettled) {
		t.Fatalf("expected reason in body, got %+v", got)
	}
}

func TestPerformActionSetsRetryAfterWhenThrottled(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	tr.workflow.err = domain.WrapError(domain.ErrTooManyAttempts, "verify office payment", errors.New("req-200"))
	body := `{"code":"123456"}`
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, asMayor(httptest.NewRequest(http.MethodPost, "/v1/requests/req-200/actions/verify_office_payment", strings.NewReader(body))))
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") != "3600" {
		t.Fatalf("unexpected Retry-After %q", res.Header().Get("Retry-After"))
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	tr.workflow.err = errors.New("pq: connection refused to 10.0.0.4")
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, asMayor(httptest.NewRequest(http.MethodPost, "/v1/requests/req-200/actions/approve", nil)))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if got := decodeError(t, res); got.Error != "internal error" {
		t.Fatalf("unexpected error body %+v", got)
	}
}

func TestGetSettlement(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	tr.workflow.settlement = domain.Settlement{IsPaymentSettled: true, PaymentLabel: domain.LabelNoPaymentRequired}
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, asMayor(httptest.NewRequest(http.MethodGet, "/v1/requests/req-200/settlement", nil)))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var got domain.Settlement
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.IsPaymentSettled || got.PaymentLabel != domain.LabelNoPaymentRequired {
		t.Fatalf("unexpected settlement %+v", got)
	}
}

func TestExportAuditStreamsWorkbook(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, asMayor(httptest.NewRequest(http.MethodGet, "/v1/requests/req-200/audit.xlsx", nil)))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("unexpected content type %q", res.Header().Get("Content-Type"))
	}
	if res.Body.String() != "PK-workbook" {
		t.Fatalf("unexpected body %q", res.Body.String())
	}
}

func TestExportAuditFailureReturnsJSON(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	tr.exporter.err = domain.WrapError(domain.ErrTemporary, "export audit", errors.New("db down"))
	res := httptest.NewRecorder()
	tr.handler.ServeHTTP(res, asMayor(httptest.NewRequest(http.MethodGet, "/v1/requests/req-200/audit.xlsx", nil)))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	if !strings.HasPrefix(res.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("expected json error, got %q", res.Header().Get("Content-Type"))
	}
}

func TestMetricsEndpointIsServed(t *testing.T) {
	tr := newTestRouter(t, testConfig())
	httpMetrics := metrics.NewHTTPServerMetrics("api")
	handler := NewRouter(testConfig(), tr.workflow, tr.reader, tr.exporter, nil, httpMetrics).Handler()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "docflow_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}
