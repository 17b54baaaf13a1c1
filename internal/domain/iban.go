// Package domain contains the core business entities for Meridian Bank.
package domain

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// ibanCountryCode is the country prefix of every generated IBAN.
	ibanCountryCode = "NL"

	// ibanBankCode is the institution code of this bank.
	ibanBankCode = "MERB"

	// ibanDigits is the length of the numeric account payload.
	// The full identifier is country (2) + checksum (2) + bank code (4) + payload.
	ibanDigits = 10

	// DefaultIBANMaxAttempts bounds the collision-retry loop of
	// GenerateUnique. Collisions in a 9-digit random space are rare enough
	// that hitting this bound signals a fault, not bad luck.
	DefaultIBANMaxAttempts = 10
)

var (
	ibanModulus    = big.NewInt(97)
	ibanDigitBound = big.NewInt(10)
)

// ExistsFunc reports whether an IBAN is already taken.
type ExistsFunc func(ctx context.Context, iban string) (bool, error)

// IBANGenerator produces unique, checksum-valid account identifiers.
type IBANGenerator struct {
	// MaxAttempts bounds the uniqueness retry loop. Zero means
	// DefaultIBANMaxAttempts.
	MaxAttempts int
}

// Generate produces a single checksum-valid IBAN. The result is random and
// may collide with an existing account; use GenerateUnique when persisting.
func (g IBANGenerator) Generate() (string, error) {
	var payload strings.Builder

	// The first payload digit is fixed to zero; the remainder is uniform.
	payload.WriteByte('0')
	for i := 1; i < ibanDigits; i++ {
		n, err := rand.Int(rand.Reader, ibanDigitBound)
		if err != nil {
			return "", NewDomainError(ErrIBANGeneration, err.Error(), "")
		}
		payload.WriteByte(byte('0' + n.Int64()))
	}

	checksum, err := ibanChecksum(payload.String())
	if err != nil {
		return "", NewDomainError(ErrIBANGeneration, err.Error(), "")
	}

	raw := fmt.Sprintf("%s%02d%s%s", ibanCountryCode, checksum, ibanBankCode, payload.String())
	return formatIBAN(raw), nil
}

// GenerateUnique produces an IBAN that existsFn does not know yet.
// It retries on collision up to MaxAttempts and fails with ErrIBANGeneration
// once the budget is exhausted.
func (g IBANGenerator) GenerateUnique(ctx context.Context, existsFn ExistsFunc) (string, error) {
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultIBANMaxAttempts
	}

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		iban, err := g.Generate()
		if err != nil {
			return "", err
		}

		exists, err := existsFn(ctx, iban)
		if err != nil {
			return "", err
		}
		if !exists {
			return iban, nil
		}
	}

	return "", NewDomainError(ErrIBANGeneration, fmt.Sprintf("exhausted %d attempts", attempts), "")
}

// ValidateIBAN checks the shape and checksum of an account identifier.
// Separator dashes are ignored.
func ValidateIBAN(iban string) error {
	raw := strings.ToUpper(strings.ReplaceAll(iban, "-", ""))

	if len(raw) != 2+2+len(ibanBankCode)+ibanDigits {
		return NewDomainError(ErrIBANNotValid, "wrong length", iban)
	}
	if raw[:2] != ibanCountryCode {
		return NewDomainError(ErrIBANNotValid, "wrong country code", iban)
	}
	if raw[4:4+len(ibanBankCode)] != ibanBankCode {
		return NewDomainError(ErrIBANNotValid, "wrong bank code", iban)
	}

	payload := raw[4+len(ibanBankCode):]
	want, err := ibanChecksum(payload)
	if err != nil {
		return NewDomainError(ErrIBANNotValid, "non-numeric payload", iban)
	}

	got := fmt.Sprintf("%02d", want)
	if raw[2:4] != got {
		return NewDomainError(ErrIBANNotValid, "checksum mismatch", iban)
	}
	return nil
}

// ibanChecksum computes the two-digit ISO 7064 MOD 97-10 checksum over the
// numeric payload: append the "00" placeholder, interpret the digits as an
// integer and subtract the remainder mod 97 from 98.
func ibanChecksum(payload string) (int, error) {
	n, ok := new(big.Int).SetString(payload+"00", 10)
	if !ok {
		return 0, fmt.Errorf("payload %q is not numeric", payload)
	}
	mod := new(big.Int).Mod(n, ibanModulus)
	return 98 - int(mod.Int64()), nil
}

// formatIBAN inserts a dash every four characters for display.
func formatIBAN(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}
