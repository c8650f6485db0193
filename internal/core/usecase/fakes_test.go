package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kirillkom/lgu-docflow/internal/core/claimtoken"
	"github.com/kirillkom/lgu-docflow/internal/core/domain"
	"github.com/kirillkom/lgu-docflow/internal/core/workflow"
)

var testNow = time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)

type storeFake struct {
	mu       sync.Mutex
	requests map[string]*domain.DocumentRequest
	audit    []domain.AuditEntry
	saves    int

	// conflicts makes the next N saves fail as if another writer won the race.
	conflicts int
	saveErr   error
}

func newStoreFake(reqs ...*domain.DocumentRequest) *storeFake {
	s := &storeFake{requests: make(map[string]*domain.DocumentRequest)}
	for _, r := range reqs {
		s.requests[r.ID] = r.Clone()
	}
	return s
}

func (s *storeFake) GetByID(_ context.Context, id string) (*domain.DocumentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrRequestNotFound, "get request", fmt.Errorf("id=%s", id))
	}
	return req.Clone(), nil
}

func (s *storeFake) Save(_ context.Context, req *domain.DocumentRequest, expectedVersion int64, audit []domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	current, ok := s.requests[req.ID]
	if !ok {
		return domain.WrapError(domain.ErrRequestNotFound, "save request", fmt.Errorf("id=%s", req.ID))
	}
	if s.conflicts > 0 {
		s.conflicts--
		current.Version++
		return domain.WrapError(domain.ErrStoreConflict, "save request", fmt.Errorf("version moved"))
	}
	if current.Version != expectedVersion {
		return domain.WrapError(domain.ErrStoreConflict, "save request", fmt.Errorf("version %d != %d", current.Version, expectedVersion))
	}
	s.requests[req.ID] = req.Clone()
	s.audit = append(s.audit, audit...)
	s.saves++
	return nil
}

func (s *storeFake) current(id string) *domain.DocumentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id].Clone()
}

func (s *storeFake) ListByEntity(_ context.Context, entityType, entityID string) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range s.audit {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

type queueFake struct {
	jobs []domain.PDFJob
	err  error
}

func (f *queueFake) PublishPDFJob(_ context.Context, job domain.PDFJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *queueFake) SubscribePDFJobs(context.Context, func(context.Context, domain.PDFJob) error) error {
	return fmt.Errorf("not implemented")
}

type notifierFake struct {
	notices []domain.Notification
}

func (f *notifierFake) Notify(_ context.Context, notice domain.Notification) error {
	f.notices = append(f.notices, notice)
	return nil
}

func (f *notifierFake) last(event domain.NotificationEvent) (domain.Notification, bool) {
	for i := len(f.notices) - 1; i >= 0; i-- {
		if f.notices[i].Event == event {
			return f.notices[i], true
		}
	}
	return domain.Notification{}, false
}

type limiterFake struct {
	allow  bool
	calls  int
	resets int
}

func (f *limiterFake) Allow(context.Context, string) (bool, error) {
	f.calls++
	return f.allow, nil
}

func (f *limiterFake) Reset(context.Context, string) error {
	f.resets++
	f.allow = true
	return nil
}

type observerFake struct {
	outcomes  map[string]int
	conflicts int
}

func (f *observerFake) ObserveDecision(action domain.Action, outcome string) {
	if f.outcomes == nil {
		f.outcomes = make(map[string]int)
	}
	f.outcomes[string(action)+":"+outcome]++
}

func (f *observerFake) ObserveStoreConflict(domain.Action) {
	f.conflicts++
}

type harness struct {
	store    *storeFake
	queue    *queueFake
	notifier *notifierFake
	limiter  *limiterFake
	observer *observerFake
	uc       *TransitionUseCase
}

func newHarness(reqs ...*domain.DocumentRequest) *harness {
	h := &harness{
		store:    newStoreFake(reqs...),
		queue:    &queueFake{},
		notifier: &notifierFake{},
		limiter:  &limiterFake{allow: true},
		observer: &observerFake{},
	}
	engine := workflow.New(workflow.WithClock(func() time.Time { return testNow }))
	issuer := claimtoken.NewIssuer(claimtoken.DefaultLength, bcrypt.MinCost)
	h.uc = NewTransitionUseCase(h.store, engine, issuer, h.queue, h.notifier, TransitionOptions{
		Limiter:  h.limiter,
		Observer: h.observer,
		Now:      func() time.Time { return testNow },
	})
	return h
}

func pickupRequest() *domain.DocumentRequest {
	return &domain.DocumentRequest{
		ID:                  "req-100",
		RequestNumber:       "MUN-2026-0100",
		BarangayID:          "brgy-3",
		DocumentType:        domain.DocumentType{Name: "Cedula", AuthorityLevel: domain.AuthorityMunicipal},
		DeliveryMethod:      domain.DeliveryPickup,
		Status:              domain.StatusProcessing,
		OriginalFee:         3000,
		FinalFee:            3000,
		PaymentMethod:       domain.PaymentOfficeCode,
		ManualPaymentStatus: domain.ManualPaymentNone,
		OfficePaymentStatus: domain.OfficePaymentNone,
		Version:             4,
	}
}

func barangayPending() *domain.DocumentRequest {
	return &domain.DocumentRequest{
		ID:                  "req-200",
		RequestNumber:       "BRGY-2026-0200",
		BarangayID:          "brgy-3",
		DocumentType:        domain.DocumentType{Name: "Barangay Indigency", AuthorityLevel: domain.AuthorityBarangay},
		DeliveryMethod:      domain.DeliveryDigital,
		Status:              domain.StatusPending,
		OriginalFee:         0,
		PaymentMethod:       domain.PaymentNone,
		ManualPaymentStatus: domain.ManualPaymentNone,
		OfficePaymentStatus: domain.OfficePaymentNone,
		Version:             1,
	}
}

var (
	mayor        = domain.MunicipalAdmin("mun-7", "municipal")
	captainBrgy3 = domain.BarangayAdmin("brgy-admin-3", "brgy-3")
)
