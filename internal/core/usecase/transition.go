package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kirillkom/lgu-docflow/internal/core/claimtoken"
	"github.com/kirillkom/lgu-docflow/internal/core/domain"
	"github.com/kirillkom/lgu-docflow/internal/core/ports"
	"github.com/kirillkom/lgu-docflow/internal/core/workflow"
)

const defaultConflictRetries = 3

type TransitionOptions struct {
	// Limiter throttles verify_office_payment; nil disables throttling.
	Limiter ports.AttemptLimiter
	// Observer receives decision outcomes; nil disables metrics.
	Observer ports.WorkflowObserver
	// ConflictRetries bounds re-read-and-retry on ErrStoreConflict.
	ConflictRetries int
	Now             func() time.Time
}

// TransitionUseCase runs the guard-check-and-persist cycle as one atomic unit:
// every attempt reads a fresh snapshot, asks the engine for a decision, and
// saves with a version check.
type TransitionUseCase struct {
	store    ports.RequestStore
	engine   *workflow.Engine
	issuer   *claimtoken.Issuer
	jobs     ports.JobQueue
	notifier ports.Notifier

	limiter  ports.AttemptLimiter
	observer ports.WorkflowObserver
	retries  int
	now      func() time.Time
	validate *validator.Validate
}

func NewTransitionUseCase(
	store ports.RequestStore,
	engine *workflow.Engine,
	issuer *claimtoken.Issuer,
	jobs ports.JobQueue,
	notifier ports.Notifier,
	opts TransitionOptions,
) *TransitionUseCase {
	retries := opts.ConflictRetries
	if retries <= 0 {
		retries = defaultConflictRetries
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TransitionUseCase{
		store:    store,
		engine:   engine,
		issuer:   issuer,
		jobs:     jobs,
		notifier: notifier,
		limiter:  opts.Limiter,
		observer: opts.Observer,
		retries:  retries,
		now:      now,
		validate: validator.New(),
	}
}

func (uc *TransitionUseCase) LegalActions(ctx context.Context, requestID string, actor domain.Actor) ([]domain.Action, error) {
	req, err := uc.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return uc.engine.LegalActions(req, actor), nil
}

func (uc *TransitionUseCase) Settlement(ctx context.Context, requestID string) (domain.Settlement, error) {
	req, err := uc.load(ctx, requestID)
	if err != nil {
		return domain.Settlement{}, err
	}
	return uc.engine.Settlement(req), nil
}

func (uc *TransitionUseCase) Perform(
	ctx context.Context,
	requestID string,
	actor domain.Actor,
	action domain.Action,
	payload domain.ActionPayload,
) (*domain.DocumentRequest, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "perform action", errors.New("request id is required"))
	}
	if err := uc.validate.Struct(payload); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate payload", err)
	}
	if action == domain.ActionVerifyOfficePayment {
		if err := uc.chargeAttempt(ctx, requestID, actor); err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= uc.retries; attempt++ {
		snapshot, err := uc.load(ctx, requestID)
		if err != nil {
			return nil, err
		}

		decision, err := uc.engine.Apply(snapshot, action, actor, payload)
		if err != nil {
			uc.observeRejection(action, err)
			slog.Info("transition_rejected",
				"request_id", requestID,
				"action", action,
				"actor_id", actor.ID,
				"error", err,
			)
			return nil, err
		}

		next, fx, err := uc.materialise(snapshot, decision, payload)
		if err != nil {
			return nil, err
		}

		err = uc.store.Save(ctx, next, snapshot.Version, fx.audit)
		if err == nil {
			uc.observe(action, "applied")
			if resetsOfficeCodeAttempts(action) {
				uc.resetAttempts(ctx, requestID)
			}
			uc.dispatch(ctx, fx)
			return next, nil
		}
		if !domain.IsKind(err, domain.ErrStoreConflict) {
			return nil, fmt.Errorf("save request: %w", err)
		}

		lastErr = err
		if uc.observer != nil {
			uc.observer.ObserveStoreConflict(action)
		}
		slog.Warn("transition_store_conflict",
			"request_id", requestID,
			"action", action,
			"attempt", attempt,
			"max_attempts", uc.retries,
		)
	}
	return nil, fmt.Errorf("save request after %d attempts: %w", uc.retries, lastErr)
}

// effects collects what must happen once the new snapshot is committed.
type effects struct {
	audit   []domain.AuditEntry
	pdfJobs []domain.PDFJob
	notices []domain.Notification
}

func (uc *TransitionUseCase) materialise(
	snapshot *domain.DocumentRequest,
	decision domain.Decision,
	payload domain.ActionPayload,
) (*domain.DocumentRequest, effects, error) {
	now := uc.now()
	next := snapshot.Clone()
	next.Status = decision.NextStatus
	next.Version = snapshot.Version + 1
	next.UpdatedAt = now
	if decision.Action == domain.ActionReject {
		next.RejectionReason = decision.Notes
	}
	if len(payload.AdminEditedContent) > 0 {
		if next.AdminEditedContent == nil {
			next.AdminEditedContent = make(map[string]string, len(payload.AdminEditedContent))
		}
		for k, v := range payload.AdminEditedContent {
			next.AdminEditedContent[k] = v
		}
	}

	var fx effects
	var claimCode, officeCode string
	for _, in := range decision.Intents {
		switch in.Kind {
		case domain.IntentUpdatePayment:
			applyPaymentUpdate(next, *in.Payment, now)

		case domain.IntentIssueClaimToken:
			code, token, err := uc.issuer.Issue(next.ClaimToken)
			if err != nil {
				return nil, effects{}, fmt.Errorf("issue claim token: %w", err)
			}
			next.ClaimToken = token
			claimCode = code

		case domain.IntentInvalidateClaimToken:
			next.ClaimToken = nil

		case domain.IntentRedeemClaimToken:
			// Apply already compared the candidate against this snapshot's token.
			redeemed, err := claimtoken.MarkRedeemed(next.ClaimToken, now)
			if err != nil {
				return nil, effects{}, &domain.GuardFailure{
					Reason: domain.ReasonInvalidCode,
					Action: decision.Action,
					Status: snapshot.Status,
					Detail: err.Error(),
				}
			}
			next.ClaimToken = redeemed

		case domain.IntentSendOfficeCode:
			code, hash, err := uc.issuer.NewOfficeCode()
			if err != nil {
				return nil, effects{}, fmt.Errorf("generate office code: %w", err)
			}
			next.OfficeCodeHash = hash
			officeCode = code

		case domain.IntentRequestPDFGeneration:
			fx.pdfJobs = append(fx.pdfJobs, *in.PDF)

		case domain.IntentEmitAudit:
			entry := *in.Audit
			entry.ID = uuid.NewString()
			fx.audit = append(fx.audit, entry)

		case domain.IntentNotify:
			notice := *in.Notice
			switch notice.Event {
			case domain.NoticeClaimCodeIssued:
				notice.Secret = claimCode
			case domain.NoticeOfficeCodeSent:
				notice.Secret = officeCode
			}
			fx.notices = append(fx.notices, notice)
		}
	}

	next.FinalFee = workflow.Settle(next).FinalFee
	return next, fx, nil
}

func applyPaymentUpdate(req *domain.DocumentRequest, update domain.PaymentUpdate, now time.Time) {
	if update.ManualPaymentStatus != "" {
		req.ManualPaymentStatus = update.ManualPaymentStatus
	}
	if update.OfficePaymentStatus != "" {
		req.OfficePaymentStatus = update.OfficePaymentStatus
	}
	if update.ClearProof {
		req.ManualPaymentProof = ""
	}
	if update.Notes != "" {
		req.ManualPaymentNotes = update.Notes
	}
	paid := update.ManualPaymentStatus == domain.ManualPaymentApproved ||
		update.OfficePaymentStatus == domain.OfficePaymentVerified
	if paid && req.PaidAt == nil {
		paidAt := now
		req.PaidAt = &paidAt
	}
}

// dispatch runs post-commit side effects. Failures are logged, not returned:
// the transition is already durable.
func (uc *TransitionUseCase) dispatch(ctx context.Context, fx effects) {
	for _, job := range fx.pdfJobs {
		if err := uc.jobs.PublishPDFJob(ctx, job); err != nil {
			slog.Error("pdf_job_publish_failed", "request_id", job.RequestID, "error", err)
		}
	}
	for _, notice := range fx.notices {
		if err := uc.notifier.Notify(ctx, notice); err != nil {
			slog.Error("notification_failed", "request_id", notice.RequestID, "event", notice.Event, "error", err)
		}
	}
}

func (uc *TransitionUseCase) load(ctx context.Context, requestID string) (*domain.DocumentRequest, error) {
	req, err := uc.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	return req, nil
}

// chargeAttempt counts one office-code attempt, but only for an actor the
// guard would let verify this request now. Refused callers never touch the counter.
func (uc *TransitionUseCase) chargeAttempt(ctx context.Context, requestID string, actor domain.Actor) error {
	if uc.limiter == nil {
		return nil
	}
	snapshot, err := uc.load(ctx, requestID)
	if err != nil {
		return err
	}
	if failure := uc.engine.Check(snapshot, actor, domain.ActionVerifyOfficePayment); failure != nil {
		uc.observeRejection(domain.ActionVerifyOfficePayment, failure)
		return failure
	}

	ok, err := uc.limiter.Allow(ctx, officeCodeAttemptKey(requestID))
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "check office code attempts", err)
	}
	if !ok {
		uc.observe(domain.ActionVerifyOfficePayment, "throttled")
		return domain.WrapError(domain.ErrTooManyAttempts, "verify office payment", fmt.Errorf("request %s", requestID))
	}
	return nil
}

func (uc *TransitionUseCase) resetAttempts(ctx context.Context, requestID string) {
	if uc.limiter == nil {
		return
	}
	if err := uc.limiter.Reset(ctx, officeCodeAttemptKey(requestID)); err != nil {
		slog.Warn("office_code_attempts_reset_failed", "request_id", requestID, "error", err)
	}
}

// resetsOfficeCodeAttempts reports whether a committed action starts a fresh
// attempt budget: the code was accepted or a new one was issued.
func resetsOfficeCodeAttempts(action domain.Action) bool {
	switch action {
	case domain.ActionVerifyOfficePayment, domain.ActionSendOfficeCode, domain.ActionResendOfficeCode:
		return true
	default:
		return false
	}
}

func officeCodeAttemptKey(requestID string) string {
	return "office_code_attempts:" + requestID
}

func (uc *TransitionUseCase) observe(action domain.Action, outcome string) {
	if uc.observer != nil {
		uc.observer.ObserveDecision(action, outcome)
	}
}

func (uc *TransitionUseCase) observeRejection(action domain.Action, err error) {
	reason, ok := domain.ReasonOf(err)
	if !ok {
		uc.observe(action, "error")
		return
	}
	uc.observe(action, strings.ToLower(string(reason)))
}
