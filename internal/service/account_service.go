package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/meridian-bank/internal/auth"
	"github.com/prn-tf/meridian-bank/internal/domain"
	"github.com/prn-tf/meridian-bank/internal/repository"
)

// AccountServiceConfig carries the tunables of the account service.
type AccountServiceConfig struct {
	// IBANMaxAttempts bounds the unique-IBAN generation retry loop.
	IBANMaxAttempts int

	// StrictOwnerCheck rejects account creation for unknown owners instead
	// of creating the account unowned.
	StrictOwnerCheck bool

	// Location defines the local day for daily-limit accounting.
	Location *time.Location
}

// AccountService handles account lifecycle and spending-limit queries.
type AccountService struct {
	accounts     repository.AccountRepository
	users        repository.UserRepository
	transactions repository.TransactionRepository
	policy       *auth.AccessPolicy
	ibanGen      domain.IBANGenerator
	strictOwner  bool
	location     *time.Location
	logger       zerolog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(
	accounts repository.AccountRepository,
	users repository.UserRepository,
	transactions repository.TransactionRepository,
	policy *auth.AccessPolicy,
	cfg AccountServiceConfig,
	logger zerolog.Logger,
) *AccountService {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &AccountService{
		accounts:     accounts,
		users:        users,
		transactions: transactions,
		policy:       policy,
		ibanGen:      domain.IBANGenerator{MaxAttempts: cfg.IBANMaxAttempts},
		strictOwner:  cfg.StrictOwnerCheck,
		location:     loc,
		logger:       logger.With().Str("service", "account").Logger(),
	}
}

// CreateAccountInput contains the data needed to open a new account.
// The balance is not part of the input: new accounts always start at zero
// and are funded through transactions.
type CreateAccountInput struct {
	// OwnerUsername names the customer the account is opened for.
	// Required for employees; regular users always open accounts for
	// themselves and must leave it empty or use their own username.
	OwnerUsername string

	Name             string
	DailyLimit       decimal.Decimal
	TransactionLimit decimal.Decimal
	AbsoluteLimit    decimal.Decimal
	IsSavings        bool
}

// Create opens a new account with a freshly generated IBAN.
func (s *AccountService) Create(ctx context.Context, p *auth.Principal, input CreateAccountInput) (*domain.Account, error) {
	if input.Name == "" {
		return nil, domain.NewDomainError(domain.ErrAccountValidation, "name is required", "")
	}
	if input.DailyLimit.IsNegative() || input.TransactionLimit.IsNegative() {
		return nil, domain.NewDomainError(domain.ErrAccountValidation, "limits must not be negative", "")
	}

	ownerID, err := s.resolveOwner(ctx, p, input.OwnerUsername)
	if err != nil {
		return nil, err
	}

	iban, err := s.ibanGen.GenerateUnique(ctx, s.accounts.ExistsByIBAN)
	if err != nil {
		if errors.Is(err, domain.ErrIBANGeneration) {
			s.logger.Error().Err(err).Msg("iban generation exhausted its retry budget")
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	acct := domain.NewAccount(ownerID, iban, input.Name)
	acct.DailyLimit = input.DailyLimit
	acct.TransactionLimit = input.TransactionLimit
	acct.AbsoluteLimit = input.AbsoluteLimit
	acct.IsSavings = input.IsSavings

	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, domain.ErrAccountAlreadyExists) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("iban", iban).Msg("failed to create account")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("iban", acct.IBAN).
		Int64("owner_id", acct.UserID).
		Bool("is_savings", acct.IsSavings).
		Msg("account opened")

	return acct, nil
}

// resolveOwner determines who the new account belongs to. Employees must
// name the owner; regular users always open accounts for themselves.
func (s *AccountService) resolveOwner(ctx context.Context, p *auth.Principal, ownerUsername string) (int64, error) {
	if !p.IsEmployee() {
		if ownerUsername != "" && ownerUsername != p.User.Username {
			return 0, auth.ErrForbidden
		}
		return p.ID(), nil
	}

	if ownerUsername == "" {
		return 0, domain.NewDomainError(domain.ErrAccountValidation, "owner username is required", "")
	}

	owner, err := s.users.GetByUsername(ctx, ownerUsername)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			if s.strictOwner {
				return 0, domain.NewDomainError(domain.ErrOwnerNotFound, "no such user", ownerUsername)
			}
			// Historical behavior: the account is opened without an owner
			// and can be claimed later.
			s.logger.Warn().Str("owner", ownerUsername).Msg("opening account for unknown owner")
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return owner.ID, nil
}

// Bootstrap creates the bank's clearing account if it does not exist yet.
// Safe to call repeatedly.
func (s *AccountService) Bootstrap(ctx context.Context) (*domain.Account, error) {
	acct, err := s.accounts.GetByIBAN(ctx, domain.ClearingIBAN)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	acct = domain.NewAccount(0, domain.ClearingIBAN, "Meridian Bank Clearing")
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, domain.ErrAccountAlreadyExists) {
			// Raced with another bootstrap; fetch the winner's row.
			return s.accounts.GetByIBAN(ctx, domain.ClearingIBAN)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("iban", acct.IBAN).Msg("clearing account created")
	return acct, nil
}

// Get retrieves an account the caller is allowed to see.
func (s *AccountService) Get(ctx context.Context, p *auth.Principal, iban string) (*domain.Account, error) {
	return s.checkAndGetAccount(ctx, p, iban)
}

// Limits returns the remaining spending room of an account.
func (s *AccountService) Limits(ctx context.Context, p *auth.Principal, iban string) (*domain.LimitsSnapshot, error) {
	acct, err := s.checkAndGetAccount(ctx, p, iban)
	if err != nil {
		return nil, err
	}

	spent, err := s.transactions.AccumulatedOutgoing(ctx, acct.IBAN, startOfLocalDay(s.location))
	if err != nil {
		s.logger.Error().Err(err).Str("iban", iban).Msg("failed to accumulate outgoing amount")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	snapshot := domain.CalculateLimits(acct, spent)
	return &snapshot, nil
}

// UpdateAccountInput carries the fields of an account update. Nil fields are
// left untouched. Balance is present only so the attempt can be handled
// explicitly: a value equal to the stored balance is a no-op for that field,
// anything else is rejected because balances move through transactions.
type UpdateAccountInput struct {
	Name             *string
	DailyLimit       *decimal.Decimal
	TransactionLimit *decimal.Decimal
	AbsoluteLimit    *decimal.Decimal
	IsSavings        *bool
	Balance          *decimal.Decimal
}

// isEmpty reports whether nothing would change.
func (in UpdateAccountInput) isEmpty() bool {
	return in.Name == nil && in.DailyLimit == nil && in.TransactionLimit == nil &&
		in.AbsoluteLimit == nil && in.IsSavings == nil && in.Balance == nil
}

// Update applies a partial update to an account. Access is granted by
// ownership: owners and employees may change any of the updatable fields.
func (s *AccountService) Update(ctx context.Context, p *auth.Principal, iban string, input UpdateAccountInput) (*domain.Account, error) {
	if input.isEmpty() {
		return nil, domain.ErrAccountNoChange
	}

	acct, err := s.checkAndGetAccount(ctx, p, iban)
	if err != nil {
		return nil, err
	}

	if input.Balance != nil && !input.Balance.Equal(acct.Balance) {
		return nil, domain.ErrBalanceNotUpdatable
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, domain.NewDomainError(domain.ErrAccountValidation, "name must not be empty", iban)
		}
		acct.Name = *input.Name
	}
	if input.DailyLimit != nil {
		if input.DailyLimit.IsNegative() {
			return nil, domain.NewDomainError(domain.ErrAccountValidation, "daily limit must not be negative", iban)
		}
		acct.DailyLimit = *input.DailyLimit
	}
	if input.TransactionLimit != nil {
		if input.TransactionLimit.IsNegative() {
			return nil, domain.NewDomainError(domain.ErrAccountValidation, "transaction limit must not be negative", iban)
		}
		acct.TransactionLimit = *input.TransactionLimit
	}
	if input.AbsoluteLimit != nil {
		acct.AbsoluteLimit = *input.AbsoluteLimit
	}
	if input.IsSavings != nil {
		acct.IsSavings = *input.IsSavings
	}

	if err := s.accounts.Update(ctx, acct); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("iban", iban).Msg("failed to update account")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("iban", acct.IBAN).Msg("account updated")
	return acct, nil
}

// Deactivate soft-deletes an account. The row and its transaction history
// survive; the account just stops taking part in new transactions.
func (s *AccountService) Deactivate(ctx context.Context, p *auth.Principal, iban string) error {
	acct, err := s.checkAndGetAccount(ctx, p, iban)
	if err != nil {
		return err
	}

	if !acct.IsActive {
		return domain.NewDomainError(domain.ErrAccountAlreadyInactive, "", iban)
	}

	acct.IsActive = false
	if err := s.accounts.Update(ctx, acct); err != nil {
		s.logger.Error().Err(err).Str("iban", iban).Msg("failed to deactivate account")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("iban", acct.IBAN).Msg("account deactivated")
	return nil
}

// Search returns accounts matching the term. Employees search the whole
// bank; regular users only see their own accounts.
func (s *AccountService) Search(ctx context.Context, p *auth.Principal, term string, active *bool) ([]*domain.Account, error) {
	ownerID := int64(0)
	if !p.IsEmployee() {
		ownerID = p.ID()
	}

	accounts, err := s.accounts.Search(ctx, term, active, ownerID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to search accounts")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return withoutClearing(accounts), nil
}

// ListByOwner returns the accounts owned by a user. Employees may list
// anyone's; regular users only their own.
func (s *AccountService) ListByOwner(ctx context.Context, p *auth.Principal, userID int64) ([]*domain.Account, error) {
	if !s.policy.CanViewUser(p, userID) {
		return nil, auth.ErrForbidden
	}

	accounts, err := s.accounts.ListByOwner(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to list accounts")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return accounts, nil
}

// checkAndGetAccount loads an account and verifies the caller may act on it.
// The clearing account is reported as not accessible rather than not found,
// matching how inaccessible foreign accounts surface to regular users.
func (s *AccountService) checkAndGetAccount(ctx context.Context, p *auth.Principal, iban string) (*domain.Account, error) {
	acct, err := s.accounts.GetByIBAN(ctx, iban)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("iban", iban).Msg("failed to get account")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !s.policy.CanAccessAccount(p, acct) {
		return nil, domain.NewDomainError(domain.ErrAccountNotAccessible, "", iban)
	}

	return acct, nil
}

// withoutClearing filters the clearing account out of listings.
func withoutClearing(accounts []*domain.Account) []*domain.Account {
	filtered := accounts[:0]
	for _, a := range accounts {
		if !a.IsClearing() {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// startOfLocalDay returns the beginning of the current day in the given zone.
func startOfLocalDay(loc *time.Location) time.Time {
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
}
