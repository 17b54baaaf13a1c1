package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/meridian-bank/internal/domain"
	"github.com/prn-tf/meridian-bank/internal/repository"
)

// accountRepository implements repository.AccountRepository for PostgreSQL.
type accountRepository struct {
	db *DB
}

// NewAccountRepository creates a new PostgreSQL account repository.
func NewAccountRepository(db *DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

// Monetary columns are selected as text and parsed into decimals so no
// precision is lost crossing the wire.
const accountColumns = `id, user_id, iban, name, balance::text, daily_limit::text, transaction_limit::text, absolute_limit::text, is_savings, is_active, created_at`

// Create creates a new account.
func (r *accountRepository) Create(ctx context.Context, acct *domain.Account) error {
	query := `
		INSERT INTO accounts (user_id, iban, name, balance, daily_limit, transaction_limit, absolute_limit, is_savings, is_active, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10)
		RETURNING id
	`

	err := r.db.conn(ctx).QueryRow(ctx, query,
		nullableID(acct.UserID),
		acct.IBAN,
		acct.Name,
		acct.Balance.String(),
		acct.DailyLimit.String(),
		acct.TransactionLimit.String(),
		acct.AbsoluteLimit.String(),
		acct.IsSavings,
		acct.IsActive,
		acct.CreatedAt,
	).Scan(&acct.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrAccountAlreadyExists, acct.IBAN)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByIBAN retrieves an account by its identifier.
func (r *accountRepository) GetByIBAN(ctx context.Context, iban string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE iban = $1`

	acct, err := scanAccount(r.db.conn(ctx).QueryRow(ctx, query, iban))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by IBAN: %w", err)
	}
	return acct, nil
}

// ListByOwner returns all accounts owned by a user.
func (r *accountRepository) ListByOwner(ctx context.Context, userID int64) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts by owner: %w", err)
	}
	defer rows.Close()

	return collectAccounts(rows)
}

// Search returns accounts whose name or IBAN contains the search term,
// optionally filtered by active state and by owner.
func (r *accountRepository) Search(ctx context.Context, term string, active *bool, ownerID int64) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`
	var args []any

	if term != "" {
		args = append(args, "%"+term+"%")
		query += fmt.Sprintf(` AND (name ILIKE $%d OR iban ILIKE $%d)`, len(args), len(args))
	}
	if active != nil {
		args = append(args, *active)
		query += fmt.Sprintf(` AND is_active = $%d`, len(args))
	}
	if ownerID != 0 {
		args = append(args, ownerID)
		query += fmt.Sprintf(` AND user_id = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search accounts: %w", err)
	}
	defer rows.Close()

	return collectAccounts(rows)
}

// Update persists the mutable fields of an existing account. The balance
// is deliberately not part of the statement: it only moves through
// UpdateBalance. Identity fields (IBAN, owner, creation time) are never
// touched.
func (r *accountRepository) Update(ctx context.Context, acct *domain.Account) error {
	query := `
		UPDATE accounts
		SET name = $1, daily_limit = $2::numeric, transaction_limit = $3::numeric, absolute_limit = $4::numeric, is_savings = $5, is_active = $6
		WHERE iban = $7
	`

	result, err := r.db.conn(ctx).Exec(ctx, query,
		acct.Name,
		acct.DailyLimit.String(),
		acct.TransactionLimit.String(),
		acct.AbsoluteLimit.String(),
		acct.IsSavings,
		acct.IsActive,
		acct.IBAN,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// UpdateBalance sets the balance of a single account.
func (r *accountRepository) UpdateBalance(ctx context.Context, iban string, balance decimal.Decimal) error {
	result, err := r.db.conn(ctx).Exec(ctx,
		`UPDATE accounts SET balance = $1::numeric WHERE iban = $2`,
		balance.String(), iban,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// ExistsByIBAN checks if an account with the given identifier exists.
func (r *accountRepository) ExistsByIBAN(ctx context.Context, iban string) (bool, error) {
	var exists bool
	err := r.db.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE iban = $1)`, iban).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check IBAN existence: %w", err)
	}
	return exists, nil
}

// scanAccount scans a single account row in accountColumns order.
func scanAccount(row rowScanner) (*domain.Account, error) {
	acct := &domain.Account{}
	var userID sql.NullInt64
	var balance, dailyLimit, txLimit, absLimit string

	err := row.Scan(
		&acct.ID,
		&userID,
		&acct.IBAN,
		&acct.Name,
		&balance,
		&dailyLimit,
		&txLimit,
		&absLimit,
		&acct.IsSavings,
		&acct.IsActive,
		&acct.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		acct.UserID = userID.Int64
	}
	if acct.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("invalid stored balance %q: %w", balance, err)
	}
	if acct.DailyLimit, err = decimal.NewFromString(dailyLimit); err != nil {
		return nil, fmt.Errorf("invalid stored daily limit %q: %w", dailyLimit, err)
	}
	if acct.TransactionLimit, err = decimal.NewFromString(txLimit); err != nil {
		return nil, fmt.Errorf("invalid stored transaction limit %q: %w", txLimit, err)
	}
	if acct.AbsoluteLimit, err = decimal.NewFromString(absLimit); err != nil {
		return nil, fmt.Errorf("invalid stored absolute limit %q: %w", absLimit, err)
	}

	return acct, nil
}

// collectAccounts drains rows into a slice.
func collectAccounts(rows pgx.Rows) ([]*domain.Account, error) {
	var accounts []*domain.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// nullableID maps the zero owner ID to NULL.
func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// Ensure accountRepository implements repository.AccountRepository.
var _ repository.AccountRepository = (*accountRepository)(nil)
