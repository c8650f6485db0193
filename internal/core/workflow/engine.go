// Package workflow is the pure decision engine for document requests: it lists
// the actions an admin may take on a snapshot and computes the outcome of one.
//
// The engine performs no I/O and holds no mutable state, so one Engine may be
// shared by any number of goroutines. Side effects come back as intents for
// the caller to execute after it persists the decision.
package workflow

import (
	"time"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

type Engine struct {
	now func() time.Time
}

type Option func(*Engine)

// WithClock overrides the clock used to timestamp audit entries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settlement returns the derived payment view of req.
func (e *Engine) Settlement(req *domain.DocumentRequest) domain.Settlement {
	return Settle(req)
}

// LegalActions returns the actions actor may attempt on req, in a stable order.
// Payload-dependent checks (notes, codes) are left to Apply.
func (e *Engine) LegalActions(req *domain.DocumentRequest, actor domain.Actor) []domain.Action {
	out := make([]domain.Action, 0, len(domain.AllActions))
	if req == nil || req.Status.IsTerminal() {
		return out
	}
	for _, action := range domain.AllActions {
		if e.Check(req, actor, action) == nil {
			out = append(out, action)
		}
	}
	return out
}

// Check evaluates the transition guard for action without looking at any payload.
func (e *Engine) Check(req *domain.DocumentRequest, actor domain.Actor, action domain.Action) *domain.GuardFailure {
	if req == nil {
		return &domain.GuardFailure{Reason: domain.ReasonInvalidState, Action: action, Detail: "no request snapshot"}
	}
	r, ok := lookupRule(req.Status, action)
	if !ok {
		detail := "action not defined for status"
		if req.Status.IsTerminal() {
			detail = "request is closed"
		}
		return &domain.GuardFailure{
			Reason: domain.ReasonInvalidState,
			Action: action,
			Status: req.Status,
			Detail: detail,
		}
	}

	v := r.guard(guardInput{req: req, actor: actor, settlement: Settle(req)})
	if v.ok() {
		return nil
	}
	return &domain.GuardFailure{
		Reason: v.reason,
		Action: action,
		Status: req.Status,
		Detail: v.detail,
	}
}
