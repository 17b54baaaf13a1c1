package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/meridian-bank/internal/domain"
	"github.com/prn-tf/meridian-bank/internal/repository"
)

// transactionRepository implements repository.TransactionRepository for SQLite.
// The transactions table is append-only.
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new SQLite transaction repository.
func NewTransactionRepository(db *DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `id, type, from_iban, to_iban, amount, label, description, performed_by, occurred_at`

// Create records a posted transaction.
func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, type, from_iban, to_iban, amount, label, description, performed_by, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		tx.ID.String(),
		string(tx.Type),
		tx.FromIBAN,
		tx.ToIBAN,
		tx.Amount.String(),
		tx.Label,
		tx.Description,
		tx.PerformedBy,
		tx.OccurredAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by its identifier.
func (r *transactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id.String()))
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
		WHERE from_iban = ? OR to_iban = ?
		ORDER BY occurred_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, iban, iban)
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
// since the given instant. Amounts are decimal strings, so the sum is taken
// in Go rather than in SQL.
func (r *transactionRepository) AccumulatedOutgoing(ctx context.Context, iban string, since time.Time) (decimal.Decimal, error) {
	query := `
		SELECT amount
		FROM transactions
		WHERE from_iban = ? AND occurred_at >= ?
	`

	rows, err := r.db.QueryContext(ctx, query, iban, since.UTC().Format(time.RFC3339))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum outgoing transactions: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid stored amount %q: %w", amount, err)
		}
		total = total.Add(d)
	}

	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating amounts: %w", err)
	}

	return total, nil
}

// scanTransaction scans a single transaction row in transactionColumns order.
func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	tx := &domain.Transaction{}
	var id, txType, amount, occurredAt string

	err := row.Scan(
		&id,
		&txType,
		&tx.FromIBAN,
		&tx.ToIBAN,
		&amount,
		&tx.Label,
		&tx.Description,
		&tx.PerformedBy,
		&occurredAt,
	)
	if err != nil {
		return nil, err
	}

	if tx.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid stored transaction ID %q: %w", id, err)
	}
	tx.Type = domain.TransactionType(txType)
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	tx.OccurredAt, _ = time.Parse(time.RFC3339, occurredAt)

	return tx, nil
}

// Ensure transactionRepository implements repository.TransactionRepository.
var _ repository.TransactionRepository = (*transactionRepository)(nil)
