package claimtoken

import (
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

func newTestIssuer() *Issuer {
	return NewIssuer(DefaultLength, bcrypt.MinCost)
}

func TestIssueProducesMaskedHashedToken(t *testing.T) {
	code, token, err := newTestIssuer().Issue(nil)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if len(code) != DefaultLength {
		t.Fatalf("expected code length %d, got %d", DefaultLength, len(code))
	}
	if code != strings.ToUpper(code) {
		t.Fatalf("expected upper-case code, got %q", code)
	}
	if token.CodeHash == "" || token.CodeHash == code {
		t.Fatalf("expected hashed code, got %q", token.CodeHash)
	}
	if token.CodeMasked != Mask(code) {
		t.Fatalf("expected masked %q, got %q", Mask(code), token.CodeMasked)
	}
	if token.Redeemed || token.IssuedAt.IsZero() {
		t.Fatalf("unexpected fresh token state: %+v", token)
	}
}

func TestIssueRefusesToOverwriteActiveToken(t *testing.T) {
	issuer := newTestIssuer()
	_, token, err := issuer.Issue(nil)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, _, err := issuer.Issue(token); !errors.Is(err, ErrActiveToken) {
		t.Fatalf("expected ErrActiveToken, got %v", err)
	}

	token.Redeemed = true
	if _, _, err := issuer.Issue(token); err != nil {
		t.Fatalf("expected re-issue after redemption, got %v", err)
	}
}

func TestMask(t *testing.T) {
	cases := map[string]string{
		"":         "",
		"A":        "*",
		"AB":       "**",
		"ABC":      "A*C",
		"K7Q2MZ4P": "K******P",
	}
	for in, want := range cases {
		if got := Mask(in); got != want {
			t.Fatalf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRedeemSucceedsOnceThenFails(t *testing.T) {
	code, token, err := newTestIssuer().Issue(nil)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	redeemed, err := Redeem(token, "  "+strings.ToLower(code)+" ", at)
	if err != nil {
		t.Fatalf("first Redeem() error = %v", err)
	}
	if !redeemed.Redeemed || redeemed.RedeemedAt == nil || !redeemed.RedeemedAt.Equal(at) {
		t.Fatalf("expected redeemed token, got %+v", redeemed)
	}
	if token.Redeemed {
		t.Fatalf("Redeem must not mutate its input")
	}

	if _, err := Redeem(redeemed, code, at); !errors.Is(err, ErrAlreadyRedeemed) {
		t.Fatalf("expected ErrAlreadyRedeemed, got %v", err)
	}
}

func TestVerifyRejectsWrongOrMissing(t *testing.T) {
	_, token, err := newTestIssuer().Issue(nil)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if err := Verify(token, "WRONGCOD"); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}
	if err := Verify(token, "   "); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch for blank code, got %v", err)
	}
	if err := Verify(nil, "ANY"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestOfficeCodeMatchesCaseInsensitive(t *testing.T) {
	code, hash, err := newTestIssuer().NewOfficeCode()
	if err != nil {
		t.Fatalf("NewOfficeCode() error = %v", err)
	}
	if !Matches(hash, " "+strings.ToLower(code)+"\n") {
		t.Fatalf("expected trimmed lower-case code to match")
	}
	if Matches(hash, code+"X") {
		t.Fatalf("expected longer code not to match")
	}
	if Matches("", code) {
		t.Fatalf("expected empty hash never to match")
	}
}

func TestActiveOnNilToken(t *testing.T) {
	var token *domain.ClaimToken
	if token.Active() {
		t.Fatalf("nil token must not be active")
	}
}

func TestMarkRedeemedSkipsHashComparison(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	token := &domain.ClaimToken{CodeHash: "not-a-bcrypt-hash", CodeMasked: "A******H"}

	redeemed, err := MarkRedeemed(token, at)
	if err != nil {
		t.Fatalf("MarkRedeemed() error = %v", err)
	}
	if !redeemed.Redeemed || !redeemed.RedeemedAt.Equal(at) || token.Redeemed {
		t.Fatalf("unexpected result %+v (input %+v)", redeemed, token)
	}
	if _, err := MarkRedeemed(redeemed, at); !errors.Is(err, ErrAlreadyRedeemed) {
		t.Fatalf("expected ErrAlreadyRedeemed, got %v", err)
	}
	if _, err := MarkRedeemed(nil, at); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}
