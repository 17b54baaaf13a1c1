// Package repository defines data access interfaces for Meridian Bank.
// These interfaces abstract database operations, allowing for different
// implementations (SQLite for embedded deployments, PostgreSQL for shared
// ones, in-memory for testing) while keeping the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/meridian-bank/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// List returns all users. When withoutAccounts is true, only active
	// regular users that own no accounts are returned.
	List(ctx context.Context, withoutAccounts bool) ([]*domain.User, error)

	// ExistsByUsername checks if a user with the given username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// =============================================================================
// Account Repository
// =============================================================================

// AccountRepository defines the interface for account data access.
// Per-IBAN serialization of balance updates is the service layer's job
// (see the lock package); the repository only promises durable writes.
type AccountRepository interface {
	// Create creates a new account.
	Create(ctx context.Context, acct *domain.Account) error

	// GetByIBAN retrieves an account by its identifier.
	GetByIBAN(ctx context.Context, iban string) (*domain.Account, error)

	// ListByOwner returns all accounts owned by a user.
	ListByOwner(ctx context.Context, userID int64) ([]*domain.Account, error)

	// Search returns accounts whose name or IBAN contains the search term,
	// optionally filtered by active state and by owner (ownerID 0 = all owners).
	Search(ctx context.Context, term string, active *bool, ownerID int64) ([]*domain.Account, error)

	// Update persists the mutable fields of an existing account.
	// The balance is never written here: it moves only through
	// UpdateBalance, so a stale in-memory copy cannot revert a
	// concurrently posted transaction. Identity fields (IBAN, owner,
	// creation time) are never touched either.
	Update(ctx context.Context, acct *domain.Account) error

	// UpdateBalance sets the balance of a single account.
	UpdateBalance(ctx context.Context, iban string, balance decimal.Decimal) error

	// ExistsByIBAN checks if an account with the given identifier exists.
	ExistsByIBAN(ctx context.Context, iban string) (bool, error)
}

// =============================================================================
// Transaction Repository
// =============================================================================

// TransactionRepository defines the interface for posted-transaction access.
// Transactions are append-only: there is no update or delete.
type TransactionRepository interface {
	// Create records a posted transaction.
	Create(ctx context.Context, tx *domain.Transaction) error

	// GetByID retrieves a transaction by its identifier.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)

	// ListByAccount returns all transactions where the account is either
	// leg, newest first.
	ListByAccount(ctx context.Context, iban string) ([]*domain.Transaction, error)

	// AccumulatedOutgoing returns the sum of amounts debited from the
	// account since the given instant (normally the start of the local day).
	AccumulatedOutgoing(ctx context.Context, iban string, since time.Time) (decimal.Decimal, error)
}

// =============================================================================
// Transaction Support
// =============================================================================

// TxManager defines the interface for store transaction management.
// Balance mutation and the matching transaction record must commit together.
type TxManager interface {
	// WithTx executes the given function within a store transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories bundles all repository instances behind one handle.
type Repositories struct {
	Users        UserRepository
	Accounts     AccountRepository
	Transactions TransactionRepository
	Tx           TxManager
}

// DatabaseHealth is an interface for database health checks.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Close() error
}
