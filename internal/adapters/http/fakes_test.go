package httpadapter

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/kirillkom/lgu-docflow/internal/adapters/http/openapi"
	"github.com/kirillkom/lgu-docflow/internal/config"
	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

type workflowFake struct {
	actions    []domain.Action
	performed  *domain.DocumentRequest
	settlement domain.Settlement
	err        error

	lastActor   domain.Actor
	lastAction  domain.Action
	lastPayload domain.ActionPayload
}

func (f *workflowFake) LegalActions(_ context.Context, _ string, actor domain.Actor) ([]domain.Action, error) {
	f.lastActor = actor
	return f.actions, f.err
}

func (f *workflowFake) Perform(_ context.Context, _ string, actor domain.Actor, action domain.Action, payload domain.ActionPayload) (*domain.DocumentRequest, error) {
	f.lastActor = actor
	f.lastAction = action
	f.lastPayload = payload
	if f.err != nil {
		return nil, f.err
	}
	return f.performed, nil
}

func (f *workflowFake) Settlement(context.Context, string) (domain.Settlement, error) {
	return f.settlement, f.err
}

type readerFake struct {
	requests map[string]*domain.DocumentRequest
}

func (f *readerFake) GetByID(_ context.Context, id string) (*domain.DocumentRequest, error) {
	req, ok := f.requests[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrRequestNotFound, "get request", io.EOF)
	}
	return req, nil
}

type exporterFake struct {
	body []byte
	err  error
}

func (f *exporterFake) ExportAudit(_ context.Context, _ string, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := w.Write(f.body)
	return err
}

func barangayRequest() *domain.DocumentRequest {
	return &domain.DocumentRequest{
		ID:            "req-200",
		RequestNumber: "BRGY-3 2026/0200",
		BarangayID:    "brgy-3",
		DocumentType:  domain.DocumentType{Name: "Indigency", AuthorityLevel: domain.AuthorityBarangay},
		Status:        domain.StatusPending,
		Version:       1,
	}
}

func testConfig() config.Config {
	return config.Config{OfficeCodeAttemptWindow: time.Hour}
}

type testRouter struct {
	workflow *workflowFake
	reader   *readerFake
	exporter *exporterFake
	handler  http.Handler
}

func newTestRouter(t *testing.T, cfg config.Config) *testRouter {
	t.Helper()
	doc, err := openapi.Load(context.Background())
	if err != nil {
		t.Fatalf("load openapi: %v", err)
	}
	tr := &testRouter{
		workflow: &workflowFake{},
		reader:   &readerFake{requests: map[string]*domain.DocumentRequest{"req-200": barangayRequest()}},
		exporter: &exporterFake{body: []byte("PK-workbook")},
	}
	tr.handler = NewRouter(cfg, tr.workflow, tr.reader, tr.exporter, doc, nil).Handler()
	return tr
}

func asMayor(r *http.Request) *http.Request {
	r.Header.Set(actorIDHeader, "mun-7")
	r.Header.Set(actorRoleHeader, string(domain.RoleMunicipalLike))
	r.Header.Set(actorScopeHeader, "municipal")
	return r
}

func asCaptain(r *http.Request, barangay string) *http.Request {
	r.Header.Set(actorIDHeader, "brgy-admin-3")
	r.Header.Set(actorRoleHeader, string(domain.RoleBarangayAdmin))
	r.Header.Set(actorBarangayHeader, barangay)
	return r
}
