// Package claimtoken issues, masks and redeems one-time pickup codes and the
// office payment codes residents read out at the cashier.
//
// Only bcrypt hashes of codes are stored; plaintext codes leave this package
// once, through the notification that delivers them to the resident.
package claimtoken

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

const (
	DefaultLength = 8
	maxLength     = 32
	maskRune      = '*'
)

var (
	ErrActiveToken     = errors.New("an active claim token already exists")
	ErrNoToken         = errors.New("no claim token issued")
	ErrAlreadyRedeemed = errors.New("claim token already redeemed")
	ErrCodeMismatch    = errors.New("code does not match")
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type Issuer struct {
	length int
	cost   int
	now    func() time.Time
}

// NewIssuer builds an issuer. Non-positive length falls back to DefaultLength and
// a zero cost to bcrypt.DefaultCost.
func NewIssuer(length, cost int) *Issuer {
	if length <= 0 {
		length = DefaultLength
	}
	if length > maxLength {
		length = maxLength
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Issuer{
		length: length,
		cost:   cost,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a new token. It refuses to overwrite an active token; the
// caller must invalidate the previous one first.
func (i *Issuer) Issue(current *domain.ClaimToken) (string, *domain.ClaimToken, error) {
	if current.Active() {
		return "", nil, ErrActiveToken
	}
	code, hash, err := i.newSecret()
	if err != nil {
		return "", nil, err
	}
	return code, &domain.ClaimToken{
		CodeHash:   hash,
		CodeMasked: Mask(code),
		IssuedAt:   i.now(),
	}, nil
}

// NewOfficeCode generates an office payment code and its hash.
func (i *Issuer) NewOfficeCode() (string, string, error) {
	return i.newSecret()
}

func (i *Issuer) newSecret() (string, string, error) {
	code, err := generate(i.length)
	if err != nil {
		return "", "", fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), i.cost)
	if err != nil {
		return "", "", fmt.Errorf("hash code: %w", err)
	}
	return code, string(hash), nil
}

func generate(length int) (string, error) {
	raw := make([]byte, (length*5+7)/8)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return encoding.EncodeToString(raw)[:length], nil
}

// Mask keeps the first and last character and hides the rest, so a resident can
// recognise a code on a staff screen without reading it.
func Mask(code string) string {
	runes := []rune(code)
	switch len(runes) {
	case 0:
		return ""
	case 1, 2:
		return strings.Repeat(string(maskRune), len(runes))
	}
	return string(runes[0]) + strings.Repeat(string(maskRune), len(runes)-2) + string(runes[len(runes)-1])
}

// Normalize trims whitespace and upper-cases a candidate code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Matches compares a candidate against a stored hash. bcrypt comparison runs in
// constant time with respect to the candidate.
func Matches(hash, candidate string) bool {
	if hash == "" {
		return false
	}
	normalized := Normalize(candidate)
	if normalized == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(normalized)) == nil
}

// Verify checks candidate against token without changing it.
func Verify(token *domain.ClaimToken, candidate string) error {
	if token == nil {
		return ErrNoToken
	}
	if token.Redeemed {
		return ErrAlreadyRedeemed
	}
	if !Matches(token.CodeHash, candidate) {
		return ErrCodeMismatch
	}
	return nil
}

// Redeem verifies candidate and returns a redeemed copy of token. A redeemed
// token is inert: every later call fails with ErrAlreadyRedeemed.
func Redeem(token *domain.ClaimToken, candidate string, at time.Time) (*domain.ClaimToken, error) {
	if err := Verify(token, candidate); err != nil {
		return nil, err
	}
	return MarkRedeemed(token, at)
}

// MarkRedeemed returns a redeemed copy of a token whose code the caller has
// already verified. It skips the hash comparison.
func MarkRedeemed(token *domain.ClaimToken, at time.Time) (*domain.ClaimToken, error) {
	if token == nil {
		return nil, ErrNoToken
	}
	if token.Redeemed {
		return nil, ErrAlreadyRedeemed
	}
	out := *token
	out.Redeemed = true
	redeemedAt := at.UTC()
	out.RedeemedAt = &redeemedAt
	return &out, nil
}
