// Package domain contains the core business entities for Meridian Bank.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType describes the direction of a money movement.
type TransactionType string

const (
	// TypeDeposit moves money from the clearing account into a customer
	// account. The source IBAN is empty on the request and resolves to the
	// clearing account.
	TypeDeposit TransactionType = "DEPOSIT"

	// TypeWithdraw moves money from a customer account to the clearing
	// account. The destination IBAN is empty on the request.
	TypeWithdraw TransactionType = "WITHDRAW"

	// TypeTransfer moves money between two customer accounts.
	TypeTransfer TransactionType = "TRANSFER"
)

// Transaction is a posted money movement. Once posted it is terminal:
// there is no reversal or edit, corrections require an opposite transaction.
type Transaction struct {
	// ID is the unique identifier for the transaction.
	ID uuid.UUID `json:"id"`

	// Type is the kind of movement.
	Type TransactionType `json:"type"`

	// FromIBAN is the debited account. Empty for deposits before
	// resolution; always set once posted.
	FromIBAN string `json:"from_iban"`

	// ToIBAN is the credited account.
	ToIBAN string `json:"to_iban"`

	// Amount is the strictly positive amount moved.
	Amount decimal.Decimal `json:"amount"`

	// Label is a short caption chosen by the initiator.
	Label string `json:"label"`

	// Description is free-form text attached to the movement.
	Description string `json:"description"`

	// PerformedBy is the ID of the user that initiated the transaction.
	PerformedBy int64 `json:"performed_by"`

	// OccurredAt is the posting timestamp.
	OccurredAt time.Time `json:"occurred_at"`
}

// NewTransaction creates a Transaction with a fresh identifier and timestamp.
func NewTransaction(txType TransactionType, fromIBAN, toIBAN string, amount decimal.Decimal, performedBy int64) *Transaction {
	return &Transaction{
		ID:          uuid.New(),
		Type:        txType,
		FromIBAN:    fromIBAN,
		ToIBAN:      toIBAN,
		Amount:      amount,
		PerformedBy: performedBy,
		OccurredAt:  time.Now().UTC(),
	}
}
