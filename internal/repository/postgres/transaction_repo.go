package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/meridian-bank/internal/domain"
	"github.com/prn-tf/meridian-bank/internal/repository"
)

// transactionRepository implements repository.TransactionRepository for
// PostgreSQL. The transactions table is append-only.
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new PostgreSQL transaction repository.
func NewTransactionRepository(db *DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `id, type, from_iban, to_iban, amount::text, label, description, performed_by, occurred_at`

// Create records a posted transaction.
func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, type, from_iban, to_iban, amount, label, description, performed_by, occurred_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)
	`

	_, err := r.db.conn(ctx).Exec(ctx, query,
		tx.ID,
		string(tx.Type),
		tx.FromIBAN,
		tx.ToIBAN,
		tx.Amount.String(),
		tx.Label,
		tx.Description,
		tx.PerformedBy,
		tx.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by its identifier.
func (r *transactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.db.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by ID: %w", err)
	}
	return tx, nil
}

// ListByAccount returns all transactions where the account is either leg,
// newest first.
func (r *transactionRepository) ListByAccount(ctx context.Context, iban string) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE from_iban = $1 OR to_iban = $1
		ORDER BY occurred_at DESC, id DESC
	`

	rows, err := r.db.conn(ctx).Query(ctx, query, iban)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// AccumulatedOutgoing returns the sum of amounts debited from the account
// since the given instant.
func (r *transactionRepository) AccumulatedOutgoing(ctx context.Context, iban string, since time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM transactions
		WHERE from_iban = $1 AND occurred_at >= $2
	`

	var total string
	err := r.db.conn(ctx).QueryRow(ctx, query, iban, since).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum outgoing transactions: %w", err)
	}

	d, err := decimal.NewFromString(total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid accumulated amount %q: %w", total, err)
	}
	return d, nil
}

// scanTransaction scans a single transaction row in transactionColumns order.
func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	tx := &domain.Transaction{}
	var txType, amount string

	err := row.Scan(
		&tx.ID,
		&txType,
		&tx.FromIBAN,
		&tx.ToIBAN,
		&amount,
		&tx.Label,
		&tx.Description,
		&tx.PerformedBy,
		&tx.OccurredAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Type = domain.TransactionType(txType)
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}

	return tx, nil
}

// Ensure transactionRepository implements repository.TransactionRepository.
var _ repository.TransactionRepository = (*transactionRepository)(nil)
