// Package domain contains the core business entities for Meridian Bank.
package domain

import (
	"github.com/shopspring/decimal"
)

// LimitsSnapshot captures the remaining spending room of an account at a
// point in time. Values are not clamped to zero: a negative value is a valid
// signal that no further spending is possible.
type LimitsSnapshot struct {
	// DailyLimitRemaining is the daily limit minus today's accumulated
	// outgoing amount.
	DailyLimitRemaining decimal.Decimal `json:"daily_limit_remaining"`

	// TransactionLimitRemaining is the per-transaction cap. It is not
	// cumulative, so it always equals the account's transaction limit.
	TransactionLimitRemaining decimal.Decimal `json:"transaction_limit_remaining"`

	// HeadroomToAbsoluteLimit is balance minus the minimum balance floor.
	HeadroomToAbsoluteLimit decimal.Decimal `json:"headroom_to_absolute_limit"`

	// MaxSpendable is the minimum of the other three: the authorization
	// bound for the next transaction.
	MaxSpendable decimal.Decimal `json:"max_spendable"`
}

// CalculateLimits computes the remaining spendable amount for an account
// given today's accumulated outgoing total. Pure function, no side effects.
func CalculateLimits(acct *Account, spentToday decimal.Decimal) LimitsSnapshot {
	daily := acct.DailyLimit.Sub(spentToday)
	perTx := acct.TransactionLimit
	headroom := acct.Headroom()

	return LimitsSnapshot{
		DailyLimitRemaining:       daily,
		TransactionLimitRemaining: perTx,
		HeadroomToAbsoluteLimit:   headroom,
		MaxSpendable:              decimal.Min(daily, perTx, headroom),
	}
}

// Allows reports whether the snapshot permits spending the given amount, and
// if not, which bound rejected it. The per-transaction cap is checked first,
// then the daily limit, then the balance floor, matching the order the
// authorization pipeline reports rejections in.
func (s LimitsSnapshot) Allows(amount decimal.Decimal) error {
	if amount.GreaterThan(s.TransactionLimitRemaining) {
		return ErrExceededTransactionLimit
	}
	if amount.GreaterThan(s.DailyLimitRemaining) {
		return ErrExceededDailyLimit
	}
	if amount.GreaterThan(s.HeadroomToAbsoluteLimit) {
		return ErrExceededAbsoluteLimit
	}
	return nil
}
