// Package fingerprint builds the stable exact-duplicate key for a
// transaction from its canonicalized date, amount, vendor and
// currency.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// ErrInvalidInput marks caller data-validation failures: an invalid
// calendar date or an unrecognized currency code.
var ErrInvalidInput = errors.New("invalid fingerprint input")

// delimiter separates the canonical fields before hashing. It cannot
// appear in any field (dates and amounts never contain it, normalized
// vendors have punctuation removed, currency codes are letters), so
// field boundaries cannot collide.
const delimiter = "|"

// CanonicalDate renders a date in the unambiguous ISO calendar form.
func CanonicalDate(date time.Time) string {
	return date.Format("2006-01-02")
}

// CanonicalAmount renders an amount as a fixed-point string with
// exactly two decimal digits, so "2500.0" and "2500.00" hash the same.
func CanonicalAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// CanonicalCurrency validates code against ISO 4217 and returns the
// uppercase form.
func CanonicalCurrency(code string) (string, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("%w: unrecognized currency %q", ErrInvalidInput, code)
	}
	return unit.String(), nil
}

// Build computes the transaction fingerprint: sha256 over the
// delimiter-joined canonical fields, hex encoded. Two transactions
// with the same date, amount to the cent, normalized vendor and
// currency always produce the same fingerprint, across processes and
// restarts. The vendor must already be normalized by the caller.
func Build(date time.Time, amount decimal.Decimal, normalizedVendor, currencyCode string) (string, error) {
	if date.IsZero() {
		return "", fmt.Errorf("%w: date is not set", ErrInvalidInput)
	}
	code, err := CanonicalCurrency(currencyCode)
	if err != nil {
		return "", err
	}

	payload := strings.Join([]string{
		CanonicalDate(date),
		CanonicalAmount(amount),
		normalizedVendor,
		code,
	}, delimiter)

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:]), nil
}
