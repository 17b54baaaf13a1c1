// Package domain contains the core business entities for Meridian Bank.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClearingIBAN is the reserved identifier of the bank's own clearing account.
// It is the counterparty of every deposit and withdrawal, is excluded from
// normal ownership and access checks, and can only be created once through
// the bootstrap path.
const ClearingIBAN = "NL01-MERB-0000-0000-01"

// Account represents a monetary container owned by exactly one user.
// Its IBAN is globally unique and immutable after creation; the balance only
// changes through transaction posting, never through the update path.
type Account struct {
	// ID is the unique identifier for the account (auto-generated).
	ID int64 `json:"id"`

	// UserID is the ID of the user who owns this account.
	// Zero means no owner; the clearing account is unowned, and a regular
	// account may end up unowned when created for an unknown user while
	// strict owner checking is disabled.
	UserID int64 `json:"user_id"`

	// IBAN is the globally unique, checksum-valid account identifier.
	IBAN string `json:"iban"`

	// Name is the display name of the account.
	Name string `json:"name"`

	// Balance is the authoritative current amount.
	Balance decimal.Decimal `json:"balance"`

	// DailyLimit caps cumulative outgoing amount per calendar day.
	DailyLimit decimal.Decimal `json:"daily_limit"`

	// TransactionLimit caps the amount of any single transaction.
	TransactionLimit decimal.Decimal `json:"transaction_limit"`

	// AbsoluteLimit is the minimum balance floor. The balance must never
	// fall below it after a committed transaction.
	AbsoluteLimit decimal.Decimal `json:"absolute_limit"`

	// IsSavings marks savings accounts, which may only move money to or
	// from the same owner's accounts.
	IsSavings bool `json:"is_savings"`

	// IsActive is the soft-delete flag. Inactive accounts cannot take part
	// in transactions.
	IsActive bool `json:"is_active"`

	// CreatedAt is the timestamp when the account was opened. Immutable.
	CreatedAt time.Time `json:"created_at"`
}

// NewAccount creates a new Account with a zero balance.
// The balance at creation is always zero; seeding money happens through
// transactions against the clearing account.
func NewAccount(userID int64, iban, name string) *Account {
	return &Account{
		UserID:    userID,
		IBAN:      iban,
		Name:      name,
		Balance:   decimal.Zero,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
}

// IsClearing returns true if this is the bank's clearing account.
func (a *Account) IsClearing() bool {
	return a.IBAN == ClearingIBAN
}

// Headroom returns balance minus absolute limit: the most a single
// withdrawal could take without breaching the floor. May be negative.
func (a *Account) Headroom() decimal.Decimal {
	return a.Balance.Sub(a.AbsoluteLimit)
}
