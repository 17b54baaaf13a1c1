// Package domain contains the core business entities for Meridian Bank.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same username/email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserInactive indicates the user account is disabled.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ===========================================
	// Account Errors
	// ===========================================

	// ErrAccountNotFound indicates the requested account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists indicates an account with the same IBAN exists.
	// In practice this only surfaces for the clearing-account bootstrap;
	// regular IBANs are server-generated and collision is handled by retry.
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrAccountNotAccessible indicates the caller may not act on the account.
	ErrAccountNotAccessible = errors.New("account is not accessible")

	// ErrAccountInactive indicates the account has been deactivated.
	ErrAccountInactive = errors.New("account is inactive")

	// ErrAccountAlreadyInactive indicates a deactivation of an already
	// inactive account.
	ErrAccountAlreadyInactive = errors.New("account is already inactive")

	// ErrAccountValidation indicates a create/update request broke a field rule.
	ErrAccountValidation = errors.New("account request is not valid")

	// ErrAccountNoChange indicates an update request carried nothing to update.
	ErrAccountNoChange = errors.New("no account fields to update")

	// ErrBalanceNotUpdatable indicates an attempt to change the balance
	// through the update path. Balances only move through transactions.
	ErrBalanceNotUpdatable = errors.New("balance cannot be updated directly")

	// ErrOwnerNotFound indicates the named account owner does not exist.
	// Only raised when strict owner checking is enabled.
	ErrOwnerNotFound = errors.New("account owner not found")

	// ===========================================
	// IBAN Errors
	// ===========================================

	// ErrIBANGeneration indicates IBAN generation failed, either on an
	// internal fault or after exhausting the collision-retry budget.
	ErrIBANGeneration = errors.New("iban generation failed")

	// ErrIBANNotValid indicates a malformed or checksum-invalid IBAN.
	ErrIBANNotValid = errors.New("iban is not valid")

	// ===========================================
	// Transaction Errors
	// ===========================================

	// ErrAmountNotValid indicates a non-positive or non-numeric amount.
	ErrAmountNotValid = errors.New("transaction amount is not valid")

	// ErrTypeNotValid indicates an unknown transaction type.
	ErrTypeNotValid = errors.New("transaction type is not valid")

	// ErrSavingsTransfer indicates a savings account moving money to or
	// from a different owner's account.
	ErrSavingsTransfer = errors.New("savings accounts can only transact with the same owner's accounts")

	// ErrExceededTransactionLimit indicates the amount exceeds the
	// per-transaction cap of the source account.
	ErrExceededTransactionLimit = errors.New("amount exceeds the transaction limit")

	// ErrExceededDailyLimit indicates the amount exceeds what is left of
	// the source account's daily limit.
	ErrExceededDailyLimit = errors.New("amount exceeds the remaining daily limit")

	// ErrExceededAbsoluteLimit indicates the amount would push the balance
	// below the account's minimum balance floor.
	ErrExceededAbsoluteLimit = errors.New("amount exceeds the headroom to the absolute limit")

	// ErrTransactionNotFound indicates the requested transaction does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrSameAccount indicates a transfer where both legs are the same account.
	ErrSameAccount = errors.New("source and destination account are the same")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., IBAN, username).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}
