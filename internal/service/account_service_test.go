package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/meridian-bank/internal/auth"
	"github.com/prn-tf/meridian-bank/internal/domain"
)

func newAccountService(users *MockUserRepository, accounts *MockAccountRepository, transactions *MockTransactionRepository, strict bool) *AccountService {
	return NewAccountService(accounts, users, transactions, auth.NewAccessPolicy(), AccountServiceConfig{
		StrictOwnerCheck: strict,
		Location:         time.UTC,
	}, zerolog.Nop())
}

func TestAccountService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("regular user opens own account with zero balance", func(t *testing.T) {
		users := NewMockUserRepository()
		accounts := NewMockAccountRepository()
		svc := newAccountService(users, accounts, NewMockTransactionRepository(), false)

		acct, err := svc.Create(ctx, regularPrincipal(7, "alice"), CreateAccountInput{
			Name:             "Checking",
			DailyLimit:       dec("500"),
			TransactionLimit: dec("100"),
			AbsoluteLimit:    dec("-50"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if acct.UserID != 7 {
			t.Errorf("expected owner 7, got %d", acct.UserID)
		}
		if !acct.Balance.IsZero() {
			t.Errorf("new accounts must start at zero, got %s", acct.Balance)
		}
		if err := domain.ValidateIBAN(acct.IBAN); err != nil {
			t.Errorf("generated IBAN must validate: %v", err)
		}
	})

	t.Run("regular user cannot open for someone else", func(t *testing.T) {
		svc := newAccountService(NewMockUserRepository(), NewMockAccountRepository(), NewMockTransactionRepository(), false)

		_, err := svc.Create(ctx, regularPrincipal(7, "alice"), CreateAccountInput{
			OwnerUsername: "bob",
			Name:          "Checking",
		})
		if !errors.Is(err, auth.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("employee must name an owner", func(t *testing.T) {
		svc := newAccountService(NewMockUserRepository(), NewMockAccountRepository(), NewMockTransactionRepository(), false)

		_, err := svc.Create(ctx, employeePrincipal(1, "teller"), CreateAccountInput{Name: "Checking"})
		if !errors.Is(err, domain.ErrAccountValidation) {
			t.Errorf("expected ErrAccountValidation, got %v", err)
		}
	})

	t.Run("employee opens account for named customer", func(t *testing.T) {
		users := NewMockUserRepository()
		users.users[7] = &domain.User{ID: 7, Username: "alice", Email: "alice@example.com", IsActive: true}
		svc := newAccountService(users, NewMockAccountRepository(), NewMockTransactionRepository(), false)

		acct, err := svc.Create(ctx, employeePrincipal(1, "teller"), CreateAccountInput{
			OwnerUsername: "alice",
			Name:          "Savings",
			IsSavings:     true,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if acct.UserID != 7 {
			t.Errorf("expected owner 7, got %d", acct.UserID)
		}
		if !acct.IsSavings {
			t.Error("expected a savings account")
		}
	})

	t.Run("unknown owner creates unowned account when lenient", func(t *testing.T) {
		svc := newAccountService(NewMockUserRepository(), NewMockAccountRepository(), NewMockTransactionRepository(), false)

		acct, err := svc.Create(ctx, employeePrincipal(1, "teller"), CreateAccountInput{
			OwnerUsername: "ghost",
			Name:          "Checking",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if acct.UserID != 0 {
			t.Errorf("expected unowned account, got owner %d", acct.UserID)
		}
	})

	t.Run("unknown owner rejected when strict", func(t *testing.T) {
		svc := newAccountService(NewMockUserRepository(), NewMockAccountRepository(), NewMockTransactionRepository(), true)

		_, err := svc.Create(ctx, employeePrincipal(1, "teller"), CreateAccountInput{
			OwnerUsername: "ghost",
			Name:          "Checking",
		})
		if !errors.Is(err, domain.ErrOwnerNotFound) {
			t.Errorf("expected ErrOwnerNotFound, got %v", err)
		}
	})

	t.Run("negative limits rejected", func(t *testing.T) {
		svc := newAccountService(NewMockUserRepository(), NewMockAccountRepository(), NewMockTransactionRepository(), false)

		_, err := svc.Create(ctx, regularPrincipal(7, "alice"), CreateAccountInput{
			Name:       "Checking",
			DailyLimit: dec("-1"),
		})
		if !errors.Is(err, domain.ErrAccountValidation) {
			t.Errorf("expected ErrAccountValidation, got %v", err)
		}
	})
}

func TestAccountService_Bootstrap(t *testing.T) {
	ctx := context.Background()
	accounts := NewMockAccountRepository()
	svc := newAccountService(NewMockUserRepository(), accounts, NewMockTransactionRepository(), false)

	acct, err := svc.Bootstrap(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.IBAN != domain.ClearingIBAN {
		t.Errorf("expected clearing IBAN, got %s", acct.IBAN)
	}

	// Second bootstrap returns the same account.
	again, err := svc.Bootstrap(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.ID != acct.ID {
		t.Errorf("bootstrap must be idempotent, got IDs %d and %d", acct.ID, again.ID)
	}
}

func TestAccountService_Get(t *testing.T) {
	ctx := context.Background()
	accounts := NewMockAccountRepository()
	accounts.accounts["NL11-MERB-0000-0000-01"] = &domain.Account{
		ID: 1, UserID: 7, IBAN: "NL11-MERB-0000-0000-01", Name: "Checking", IsActive: true,
	}
	accounts.accounts[domain.ClearingIBAN] = &domain.Account{
		ID: 2, IBAN: domain.ClearingIBAN, Name: "Clearing", IsActive: true,
	}
	svc := newAccountService(NewMockUserRepository(), accounts, NewMockTransactionRepository(), false)

	t.Run("owner sees own account", func(t *testing.T) {
		acct, err := svc.Get(ctx, regularPrincipal(7, "alice"), "NL11-MERB-0000-0000-01")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if acct.Name != "Checking" {
			t.Errorf("unexpected account %q", acct.Name)
		}
	})

	t.Run("stranger is rejected", func(t *testing.T) {
		_, err := svc.Get(ctx, regularPrincipal(8, "bob"), "NL11-MERB-0000-0000-01")
		if !errors.Is(err, domain.ErrAccountNotAccessible) {
			t.Errorf("expected ErrAccountNotAccessible, got %v", err)
		}
	})

	t.Run("employee sees any account", func(t *testing.T) {
		if _, err := svc.Get(ctx, employeePrincipal(1, "teller"), "NL11-MERB-0000-0000-01"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("clearing account is off-limits even for employees", func(t *testing.T) {
		_, err := svc.Get(ctx, employeePrincipal(1, "teller"), domain.ClearingIBAN)
		if !errors.Is(err, domain.ErrAccountNotAccessible) {
			t.Errorf("expected ErrAccountNotAccessible, got %v", err)
		}
	})

	t.Run("missing account", func(t *testing.T) {
		_, err := svc.Get(ctx, employeePrincipal(1, "teller"), "NL99-MERB-9999-9999-99")
		if !errors.Is(err, domain.ErrAccountNotFound) {
			t.Errorf("expected ErrAccountNotFound, got %v", err)
		}
	})
}

func TestAccountService_Limits(t *testing.T) {
	ctx := context.Background()
	accounts := NewMockAccountRepository()
	accounts.accounts["NL11-MERB-0000-0000-01"] = &domain.Account{
		ID: 1, UserID: 7, IBAN: "NL11-MERB-0000-0000-01", Name: "Checking", IsActive: true,
		Balance: dec("100"), DailyLimit: dec("200"), TransactionLimit: dec("50"), AbsoluteLimit: dec("10"),
	}
	transactions := NewMockTransactionRepository()
	transactions.transactions = append(transactions.transactions, &domain.Transaction{
		FromIBAN: "NL11-MERB-0000-0000-01", Amount: dec("120"), OccurredAt: time.Now(),
	})
	svc := newAccountService(NewMockUserRepository(), accounts, transactions, false)

	snapshot, err := svc.Limits(ctx, regularPrincipal(7, "alice"), "NL11-MERB-0000-0000-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snapshot.DailyLimitRemaining.Equal(dec("80")) {
		t.Errorf("expected daily remaining 80, got %s", snapshot.DailyLimitRemaining)
	}
	if !snapshot.MaxSpendable.Equal(dec("50")) {
		t.Errorf("expected max spendable 50, got %s", snapshot.MaxSpendable)
	}
}

func TestAccountService_Update(t *testing.T) {
	ctx := context.Background()

	newSvc := func() (*AccountService, *MockAccountRepository) {
		accounts := NewMockAccountRepository()
		accounts.accounts["NL11-MERB-0000-0000-01"] = &domain.Account{
			ID: 1, UserID: 7, IBAN: "NL11-MERB-0000-0000-01", Name: "Checking", IsActive: true,
			Balance: dec("100"), DailyLimit: dec("200"), TransactionLimit: dec("50"),
		}
		return newAccountService(NewMockUserRepository(), accounts, NewMockTransactionRepository(), false), accounts
	}

	t.Run("balance change is rejected", func(t *testing.T) {
		svc, _ := newSvc()
		bal := dec("9999")
		_, err := svc.Update(ctx, employeePrincipal(1, "teller"), "NL11-MERB-0000-0000-01", UpdateAccountInput{Balance: &bal})
		if !errors.Is(err, domain.ErrBalanceNotUpdatable) {
			t.Errorf("expected ErrBalanceNotUpdatable, got %v", err)
		}
	})

	t.Run("balance echoing the stored value is a no-op", func(t *testing.T) {
		svc, _ := newSvc()
		bal := dec("100")
		name := "Household"
		acct, err := svc.Update(ctx, regularPrincipal(7, "alice"), "NL11-MERB-0000-0000-01", UpdateAccountInput{Name: &name, Balance: &bal})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if acct.Name != "Household" {
			t.Errorf("expected rename, got %q", acct.Name)
		}
	})

	t.Run("empty update is rejected", func(t *testing.T) {
		svc, _ := newSvc()
		_, err := svc.Update(ctx, employeePrincipal(1, "teller"), "NL11-MERB-0000-0000-01", UpdateAccountInput{})
		if !errors.Is(err, domain.ErrAccountNoChange) {
			t.Errorf("expected ErrAccountNoChange, got %v", err)
		}
	})

	t.Run("owner changes own limits", func(t *testing.T) {
		svc, _ := newSvc()
		limit := dec("1000")
		acct, err := svc.Update(ctx, regularPrincipal(7, "alice"), "NL11-MERB-0000-0000-01", UpdateAccountInput{DailyLimit: &limit})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !acct.DailyLimit.Equal(dec("1000")) {
			t.Errorf("expected daily limit 1000, got %s", acct.DailyLimit)
		}
	})

	t.Run("stranger cannot update", func(t *testing.T) {
		svc, _ := newSvc()
		name := "Hijacked"
		_, err := svc.Update(ctx, regularPrincipal(8, "bob"), "NL11-MERB-0000-0000-01", UpdateAccountInput{Name: &name})
		if !errors.Is(err, domain.ErrAccountNotAccessible) {
			t.Errorf("expected ErrAccountNotAccessible, got %v", err)
		}
	})

	t.Run("employee changes limits and balance survives", func(t *testing.T) {
		svc, accounts := newSvc()
		limit := dec("75")
		acct, err := svc.Update(ctx, employeePrincipal(1, "teller"), "NL11-MERB-0000-0000-01", UpdateAccountInput{TransactionLimit: &limit})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !acct.TransactionLimit.Equal(dec("75")) {
			t.Errorf("expected transaction limit 75, got %s", acct.TransactionLimit)
		}
		if !accounts.accounts["NL11-MERB-0000-0000-01"].Balance.Equal(dec("100")) {
			t.Errorf("balance must not move through updates")
		}
	})

	t.Run("rename does not revert a concurrently posted balance", func(t *testing.T) {
		_, accounts := newSvc()
		racing := &racingAccountRepo{MockAccountRepository: accounts, balance: dec("70")}
		svc := NewAccountService(racing, NewMockUserRepository(), NewMockTransactionRepository(),
			auth.NewAccessPolicy(), AccountServiceConfig{Location: time.UTC}, zerolog.Nop())

		name := "Household"
		if _, err := svc.Update(ctx, regularPrincipal(7, "alice"), "NL11-MERB-0000-0000-01", UpdateAccountInput{Name: &name}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := accounts.accounts["NL11-MERB-0000-0000-01"]
		if !got.Balance.Equal(dec("70")) {
			t.Errorf("posted balance 70 was clobbered, store says %s", got.Balance)
		}
		if got.Name != "Household" {
			t.Errorf("expected rename, got %q", got.Name)
		}
	})
}

// racingAccountRepo posts a balance change right after the service reads the
// account, mimicking a transaction that lands between read and write.
type racingAccountRepo struct {
	*MockAccountRepository
	balance decimal.Decimal
	raced   bool
}

func (r *racingAccountRepo) GetByIBAN(ctx context.Context, iban string) (*domain.Account, error) {
	acct, err := r.MockAccountRepository.GetByIBAN(ctx, iban)
	if err == nil && !r.raced {
		r.raced = true
		_ = r.MockAccountRepository.UpdateBalance(ctx, iban, r.balance)
	}
	return acct, err
}

func TestAccountService_Deactivate(t *testing.T) {
	ctx := context.Background()
	accounts := NewMockAccountRepository()
	accounts.accounts["NL11-MERB-0000-0000-01"] = &domain.Account{
		ID: 1, UserID: 7, IBAN: "NL11-MERB-0000-0000-01", Name: "Checking", IsActive: true,
	}
	svc := newAccountService(NewMockUserRepository(), accounts, NewMockTransactionRepository(), false)

	if err := svc.Deactivate(ctx, regularPrincipal(7, "alice"), "NL11-MERB-0000-0000-01"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accounts.accounts["NL11-MERB-0000-0000-01"].IsActive {
		t.Error("account must be inactive")
	}

	err := svc.Deactivate(ctx, regularPrincipal(7, "alice"), "NL11-MERB-0000-0000-01")
	if !errors.Is(err, domain.ErrAccountAlreadyInactive) {
		t.Errorf("expected ErrAccountAlreadyInactive, got %v", err)
	}
}

func TestAccountService_Search(t *testing.T) {
	ctx := context.Background()
	accounts := NewMockAccountRepository()
	accounts.accounts["NL11-MERB-0000-0000-01"] = &domain.Account{
		ID: 1, UserID: 7, IBAN: "NL11-MERB-0000-0000-01", Name: "Alice Checking", IsActive: true,
	}
	accounts.accounts["NL22-MERB-0000-0000-02"] = &domain.Account{
		ID: 2, UserID: 8, IBAN: "NL22-MERB-0000-0000-02", Name: "Bob Checking", IsActive: true,
	}
	accounts.accounts[domain.ClearingIBAN] = &domain.Account{
		ID: 3, IBAN: domain.ClearingIBAN, Name: "Clearing", IsActive: true,
	}
	svc := newAccountService(NewMockUserRepository(), accounts, NewMockTransactionRepository(), false)

	t.Run("regular user only sees own accounts", func(t *testing.T) {
		result, err := svc.Search(ctx, regularPrincipal(7, "alice"), "Checking", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result) != 1 || result[0].UserID != 7 {
			t.Errorf("expected only alice's account, got %d results", len(result))
		}
	})

	t.Run("employee sees all but the clearing account", func(t *testing.T) {
		result, err := svc.Search(ctx, employeePrincipal(1, "teller"), "", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result) != 2 {
			t.Errorf("expected 2 accounts, got %d", len(result))
		}
		for _, a := range result {
			if a.IsClearing() {
				t.Error("clearing account must not appear in search results")
			}
		}
	})

	t.Run("active filter", func(t *testing.T) {
		inactive := false
		result, err := svc.Search(ctx, employeePrincipal(1, "teller"), "", &inactive)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result) != 0 {
			t.Errorf("expected no inactive accounts, got %d", len(result))
		}
	})
}

func TestAccountService_ListByOwner(t *testing.T) {
	ctx := context.Background()
	accounts := NewMockAccountRepository()
	accounts.accounts["NL11-MERB-0000-0000-01"] = &domain.Account{
		ID: 1, UserID: 7, IBAN: "NL11-MERB-0000-0000-01", Name: "Checking", IsActive: true,
	}
	svc := newAccountService(NewMockUserRepository(), accounts, NewMockTransactionRepository(), false)

	t.Run("self", func(t *testing.T) {
		result, err := svc.ListByOwner(ctx, regularPrincipal(7, "alice"), 7)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result) != 1 {
			t.Errorf("expected 1 account, got %d", len(result))
		}
	})

	t.Run("other user forbidden for regulars", func(t *testing.T) {
		_, err := svc.ListByOwner(ctx, regularPrincipal(8, "bob"), 7)
		if !errors.Is(err, auth.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("employee may list anyone", func(t *testing.T) {
		if _, err := svc.ListByOwner(ctx, employeePrincipal(1, "teller"), 7); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
