package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/meridian-bank/internal/auth"
	"github.com/prn-tf/meridian-bank/internal/domain"
	"github.com/prn-tf/meridian-bank/internal/lock"
	"github.com/prn-tf/meridian-bank/internal/repository"
)

// TransactionServiceConfig carries the tunables of the transaction service.
type TransactionServiceConfig struct {
	// Location defines the local day for daily-limit accounting.
	Location *time.Location

	// LockTTL is how long account locks are held before auto-expiry.
	LockTTL time.Duration

	// LockMaxRetries is how often a contended account lock is retried.
	LockMaxRetries int

	// LockRetryDelay is the pause between lock retries.
	LockRetryDelay time.Duration
}

// TransactionService posts money movements and serves transaction history.
// Posting serializes on per-account locks: the limit checks and the balance
// writes happen under the locks of both legs, so concurrent transfers cannot
// both pass a limit check that only one of them fits into.
type TransactionService struct {
	accounts     repository.AccountRepository
	transactions repository.TransactionRepository
	txManager    repository.TxManager
	locker       lock.Locker
	policy       *auth.AccessPolicy
	location     *time.Location
	lockTTL      time.Duration
	lockRetries  int
	lockDelay    time.Duration
	logger       zerolog.Logger
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(
	accounts repository.AccountRepository,
	transactions repository.TransactionRepository,
	txManager repository.TxManager,
	locker lock.Locker,
	policy *auth.AccessPolicy,
	cfg TransactionServiceConfig,
	logger zerolog.Logger,
) *TransactionService {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &TransactionService{
		accounts:     accounts,
		transactions: transactions,
		txManager:    txManager,
		locker:       locker,
		policy:       policy,
		location:     loc,
		lockTTL:      ttl,
		lockRetries:  cfg.LockMaxRetries,
		lockDelay:    cfg.LockRetryDelay,
		logger:       logger.With().Str("service", "transaction").Logger(),
	}
}

// PostTransactionInput contains the data needed to post a money movement.
type PostTransactionInput struct {
	Type        domain.TransactionType
	FromIBAN    string
	ToIBAN      string
	Amount      decimal.Decimal
	Label       string
	Description string
}

// Post authorizes and posts a transaction. On success both balances have
// moved and the transaction record is durable; on any rejection nothing
// changed.
func (s *TransactionService) Post(ctx context.Context, p *auth.Principal, input PostTransactionInput) (*domain.Transaction, error) {
	fromIBAN, toIBAN, err := resolveLegs(input)
	if err != nil {
		return nil, err
	}

	if fromIBAN == toIBAN {
		return nil, domain.NewDomainError(domain.ErrSameAccount, "", fromIBAN)
	}

	// Both balances are read, checked and written under the account locks.
	release, err := lock.AcquireAccounts(ctx, s.locker, s.lockTTL, s.lockRetries, s.lockDelay, fromIBAN, toIBAN)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.logger.Warn().Str("from", fromIBAN).Str("to", toIBAN).Msg("account lock contention")
			return nil, fmt.Errorf("%w: accounts are busy", ErrInternalError)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	defer release()

	from, err := s.loadLeg(ctx, fromIBAN)
	if err != nil {
		return nil, err
	}
	to, err := s.loadLeg(ctx, toIBAN)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, p, input.Type, from, to, input.Amount); err != nil {
		return nil, err
	}

	tx := domain.NewTransaction(input.Type, from.IBAN, to.IBAN, input.Amount, p.ID())
	tx.Label = input.Label
	tx.Description = input.Description

	err = s.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.UpdateBalance(ctx, from.IBAN, from.Balance.Sub(input.Amount)); err != nil {
			return err
		}
		if err := s.accounts.UpdateBalance(ctx, to.IBAN, to.Balance.Add(input.Amount)); err != nil {
			return err
		}
		return s.transactions.Create(ctx, tx)
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("from", from.IBAN).
			Str("to", to.IBAN).
			Str("amount", input.Amount.String()).
			Msg("failed to post transaction")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("transaction_id", tx.ID.String()).
		Str("type", string(tx.Type)).
		Str("from", tx.FromIBAN).
		Str("to", tx.ToIBAN).
		Str("amount", tx.Amount.String()).
		Int64("performed_by", tx.PerformedBy).
		Msg("transaction posted")

	return tx, nil
}

// resolveLegs fills in the clearing account for the implicit leg of deposits
// and withdrawals and validates the transaction type.
func resolveLegs(input PostTransactionInput) (fromIBAN, toIBAN string, err error) {
	switch input.Type {
	case domain.TypeDeposit:
		if input.ToIBAN == "" {
			return "", "", domain.NewDomainError(domain.ErrAccountValidation, "destination account is required", "")
		}
		return domain.ClearingIBAN, input.ToIBAN, nil

	case domain.TypeWithdraw:
		if input.FromIBAN == "" {
			return "", "", domain.NewDomainError(domain.ErrAccountValidation, "source account is required", "")
		}
		return input.FromIBAN, domain.ClearingIBAN, nil

	case domain.TypeTransfer:
		if input.FromIBAN == "" || input.ToIBAN == "" {
			return "", "", domain.NewDomainError(domain.ErrAccountValidation, "source and destination accounts are required", "")
		}
		return input.FromIBAN, input.ToIBAN, nil

	default:
		return "", "", domain.NewDomainError(domain.ErrTypeNotValid, string(input.Type), "")
	}
}

// loadLeg fetches one account of the movement.
func (s *TransactionService) loadLeg(ctx context.Context, iban string) (*domain.Account, error) {
	acct, err := s.accounts.GetByIBAN(ctx, iban)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.NewDomainError(domain.ErrAccountNotFound, "", iban)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return acct, nil
}

// authorize runs the rejection pipeline in its fixed order: account state,
// caller access, the savings rule, the amount itself, then the spending
// limits of the source. The first failing rule names the rejection.
func (s *TransactionService) authorize(ctx context.Context, p *auth.Principal, txType domain.TransactionType, from, to *domain.Account, amount decimal.Decimal) error {
	if !from.IsActive {
		return domain.NewDomainError(domain.ErrAccountInactive, "", from.IBAN)
	}
	if !to.IsActive {
		return domain.NewDomainError(domain.ErrAccountInactive, "", to.IBAN)
	}

	// The caller must be allowed to act on the customer side of the
	// movement; the clearing leg belongs to the bank.
	customerLeg := from
	if txType == domain.TypeDeposit {
		customerLeg = to
	}
	if !s.policy.CanAccessAccount(p, customerLeg) {
		return domain.NewDomainError(domain.ErrAccountNotAccessible, "", customerLeg.IBAN)
	}

	// Savings accounts only move money within the same owner's accounts.
	// Deposits and withdrawals are exempt: their clearing leg is the owner
	// moving their own cash in or out, not a third-party transfer.
	if (from.IsSavings || to.IsSavings) && !from.IsClearing() && !to.IsClearing() {
		if from.UserID != to.UserID {
			return domain.NewDomainError(domain.ErrSavingsTransfer, "", customerLeg.IBAN)
		}
	}

	if !amount.IsPositive() {
		return domain.NewDomainError(domain.ErrAmountNotValid, "amount must be positive", "")
	}

	// The bank's clearing account is not limit-checked; deposits would
	// otherwise be bounded by the bank's own configuration.
	if from.IsClearing() {
		return nil
	}

	spent, err := s.transactions.AccumulatedOutgoing(ctx, from.IBAN, startOfLocalDay(s.location))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	snapshot := domain.CalculateLimits(from, spent)
	if err := snapshot.Allows(amount); err != nil {
		return domain.NewDomainError(err, fmt.Sprintf("amount %s exceeds %s", amount, snapshot.MaxSpendable), from.IBAN)
	}

	return nil
}

// GetByID retrieves a transaction the caller is allowed to see. Regular
// users must own one of the legs; employees see everything.
func (s *TransactionService) GetByID(ctx context.Context, p *auth.Principal, id uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("transaction_id", id.String()).Msg("failed to get transaction")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !p.IsEmployee() {
		ok, err := s.ownsALeg(ctx, p, tx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrTransactionNotFound
		}
	}

	return tx, nil
}

// ListByAccount returns the transaction history of an account the caller
// may access, newest first.
func (s *TransactionService) ListByAccount(ctx context.Context, p *auth.Principal, iban string) ([]*domain.Transaction, error) {
	acct, err := s.accounts.GetByIBAN(ctx, iban)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !s.policy.CanAccessAccount(p, acct) {
		return nil, domain.NewDomainError(domain.ErrAccountNotAccessible, "", iban)
	}

	transactions, err := s.transactions.ListByAccount(ctx, iban)
	if err != nil {
		s.logger.Error().Err(err).Str("iban", iban).Msg("failed to list transactions")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return transactions, nil
}

// ownsALeg reports whether the caller owns the source or destination account
// of a posted transaction.
func (s *TransactionService) ownsALeg(ctx context.Context, p *auth.Principal, tx *domain.Transaction) (bool, error) {
	for _, iban := range []string{tx.FromIBAN, tx.ToIBAN} {
		if iban == "" || iban == domain.ClearingIBAN {
			continue
		}
		acct, err := s.accounts.GetByIBAN(ctx, iban)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				continue
			}
			return false, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		if acct.UserID == p.ID() {
			return true, nil
		}
	}
	return false, nil
}
