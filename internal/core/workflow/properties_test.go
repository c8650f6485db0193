package workflow

import (
	"fmt"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/kirillkom/lgu-docflow/internal/core/claimtoken"
	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

// explorerState is a request snapshot plus the history the lifecycle checks need.
type explorerState struct {
	req         *domain.DocumentRequest
	visited     []domain.RequestStatus
	everSettled bool
	claimCode   string
	officeCode  string
}

func (s explorerState) key() string {
	token := "none"
	if s.req.ClaimToken != nil {
		token = fmt.Sprintf("redeemed=%v", s.req.ClaimToken.Redeemed)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%v|%v",
		s.req.Status, token, s.req.ManualPaymentStatus, s.req.OfficePaymentStatus,
		s.req.DocumentFile, s.passedThrough(domain.StatusBarangayApproved), s.everSettled)
}

func (s explorerState) passedThrough(status domain.RequestStatus) bool {
	for _, v := range s.visited {
		if v == status {
			return true
		}
	}
	return false
}

// materialise executes intents the way a caller would, against a copy.
func materialise(t *testing.T, issuer *claimtoken.Issuer, s explorerState, d domain.Decision) explorerState {
	t.Helper()
	next := explorerState{
		req:         s.req.Clone(),
		visited:     append(append([]domain.RequestStatus(nil), s.visited...), d.NextStatus),
		everSettled: s.everSettled,
		claimCode:   s.claimCode,
		officeCode:  s.officeCode,
	}
	next.req.Status = d.NextStatus
	for _, in := range d.Intents {
		switch in.Kind {
		case domain.IntentUpdatePayment:
			if in.Payment.ManualPaymentStatus != "" {
				next.req.ManualPaymentStatus = in.Payment.ManualPaymentStatus
			}
			if in.Payment.OfficePaymentStatus != "" {
				next.req.OfficePaymentStatus = in.Payment.OfficePaymentStatus
			}
			if in.Payment.ClearProof {
				next.req.ManualPaymentProof = ""
			}
		case domain.IntentIssueClaimToken:
			code, token, err := issuer.Issue(next.req.ClaimToken)
			if err != nil {
				t.Fatalf("issue token: %v", err)
			}
			next.req.ClaimToken = token
			next.claimCode = code
		case domain.IntentInvalidateClaimToken:
			next.req.ClaimToken = nil
			next.claimCode = ""
		case domain.IntentRedeemClaimToken:
			next.req.ClaimToken.Redeemed = true
		case domain.IntentSendOfficeCode:
			code, hash, err := issuer.NewOfficeCode()
			if err != nil {
				t.Fatalf("office code: %v", err)
			}
			next.req.OfficeCodeHash = hash
			next.officeCode = code
		case domain.IntentRequestPDFGeneration:
			next.req.DocumentFile = "documents/" + next.req.ID + ".pdf"
		}
	}
	if Settle(next.req).IsPaymentSettled {
		next.everSettled = true
	}
	return next
}

func explorerSeeds() []*domain.DocumentRequest {
	var seeds []*domain.DocumentRequest
	for _, authority := range []domain.AuthorityLevel{domain.AuthorityBarangay, domain.AuthorityMunicipal} {
		for _, delivery := range []domain.DeliveryMethod{domain.DeliveryDigital, domain.DeliveryPickup} {
			for _, fee := range []int64{0, 500} {
				for _, method := range []domain.PaymentMethod{domain.PaymentManualQR, domain.PaymentOfficeCode} {
					manual := domain.ManualPaymentNone
					if method == domain.PaymentManualQR && fee > 0 {
						manual = domain.ManualPaymentSubmitted
					}
					seeds = append(seeds, &domain.DocumentRequest{
						ID:                  fmt.Sprintf("req-%s-%s-%d-%s", authority, delivery, fee, method),
						RequestNumber:       "N-1",
						BarangayID:          "brgy-7",
						DocumentType:        domain.DocumentType{Name: "Certificate", AuthorityLevel: authority},
						DeliveryMethod:      delivery,
						Status:              domain.StatusPending,
						OriginalFee:         fee,
						FinalFee:            fee,
						PaymentMethod:       method,
						ManualPaymentStatus: manual,
						ManualPaymentProof:  "proof.jpg",
						OfficePaymentStatus: domain.OfficePaymentNone,
					})
				}
			}
		}
	}
	return seeds
}

func TestReachableStatesKeepLifecycleRules(t *testing.T) {
	engine := newEngine()
	issuer := claimtoken.NewIssuer(6, bcrypt.MinCost)
	actors := []domain.Actor{municipal, barangayAdmin}

	for _, seed := range explorerSeeds() {
		start := explorerState{req: seed, visited: []domain.RequestStatus{seed.Status}, everSettled: IsSettled(seed)}
		queue := []explorerState{start}
		seen := map[string]bool{start.key(): true}
		terminalReached := false

		for len(queue) > 0 {
			s := queue[0]
			queue = queue[1:]
			checkLifecycleRules(t, engine, s)
			if s.req.Status.IsTerminal() {
				terminalReached = true
			}

			for _, actor := range actors {
				for _, action := range engine.LegalActions(s.req, actor) {
					payload := domain.ActionPayload{Notes: "reviewed"}
					switch action {
					case domain.ActionMarkPickedUp:
						payload.Code = s.claimCode
					case domain.ActionVerifyOfficePayment:
						payload.Code = s.officeCode
					}
					d, err := engine.Apply(s.req, action, actor, payload)
					if err != nil {
						t.Fatalf("%s: listed action %s failed: %v", seed.ID, action, err)
					}
					next := materialise(t, issuer, s, d)
					if s.everSettled && !Settle(next.req).IsPaymentSettled {
						t.Fatalf("%s: settlement reverted by %s", seed.ID, action)
					}
					if !seen[next.key()] {
						seen[next.key()] = true
						queue = append(queue, next)
					}
				}
			}
		}
		if !terminalReached {
			t.Fatalf("%s: no terminal status reachable", seed.ID)
		}
	}
}

func checkLifecycleRules(t *testing.T, engine *Engine, s explorerState) {
	t.Helper()
	req := s.req
	if req.Status.IsTerminal() {
		for _, actor := range []domain.Actor{municipal, barangayAdmin} {
			if got := engine.LegalActions(req, actor); len(got) != 0 {
				t.Fatalf("%s: terminal %s lists %v", req.ID, req.Status, got)
			}
		}
	}
	if req.DocumentType.AuthorityLevel == domain.AuthorityBarangay && s.passedThrough(domain.StatusProcessing) &&
		!s.passedThrough(domain.StatusBarangayApproved) {
		t.Fatalf("%s: reached PROCESSING without BARANGAY_APPROVED: %v", req.ID, s.visited)
	}
	if req.DocumentType.AuthorityLevel == domain.AuthorityMunicipal {
		for _, v := range s.visited {
			if v.IsBarangayStage() {
				t.Fatalf("%s: municipal request entered %s", req.ID, v)
			}
		}
	}
	if req.DeliveryMethod == domain.DeliveryPickup && req.Status == domain.StatusReady && !req.HasActiveClaimToken() {
		t.Fatalf("%s: READY without an active claim token", req.ID)
	}
	if req.ClaimToken != nil && req.DeliveryMethod != domain.DeliveryPickup {
		t.Fatalf("%s: claim token on %s request", req.ID, req.DeliveryMethod)
	}
	settlement := Settle(req)
	if settlement.FinalFee > req.OriginalFee && req.OriginalFee > 0 {
		t.Fatalf("%s: final fee above original", req.ID)
	}
}
