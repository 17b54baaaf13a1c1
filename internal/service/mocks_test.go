package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prn-tf/meridian-bank/internal/auth"
	"github.com/prn-tf/meridian-bank/internal/domain"
)

// =============================================================================
// Mock repositories
// =============================================================================

// MockUserRepository is an in-memory repository.UserRepository.
type MockUserRepository struct {
	users     map[int64]*domain.User
	nextID    int64
	createErr error
	getErr    error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[int64]*domain.User), nextID: 1}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, withoutAccounts bool) ([]*domain.User, error) {
	var result []*domain.User
	for _, u := range m.users {
		result = append(result, u)
	}
	return result, nil
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// MockAccountRepository is an in-memory repository.AccountRepository keyed
// by IBAN.
type MockAccountRepository struct {
	accounts  map[string]*domain.Account
	nextID    int64
	createErr error
	getErr    error
	updateErr error
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{accounts: make(map[string]*domain.Account), nextID: 1}
}

func (m *MockAccountRepository) Create(ctx context.Context, acct *domain.Account) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.accounts[acct.IBAN]; exists {
		return domain.ErrAccountAlreadyExists
	}
	acct.ID = m.nextID
	m.nextID++
	m.accounts[acct.IBAN] = acct
	return nil
}

func (m *MockAccountRepository) GetByIBAN(ctx context.Context, iban string) (*domain.Account, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if a, ok := m.accounts[iban]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) ListByOwner(ctx context.Context, userID int64) ([]*domain.Account, error) {
	var result []*domain.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *MockAccountRepository) Search(ctx context.Context, term string, active *bool, ownerID int64) ([]*domain.Account, error) {
	var result []*domain.Account
	for _, a := range m.accounts {
		if term != "" && !strings.Contains(a.Name, term) && !strings.Contains(a.IBAN, term) {
			continue
		}
		if active != nil && a.IsActive != *active {
			continue
		}
		if ownerID != 0 && a.UserID != ownerID {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (m *MockAccountRepository) Update(ctx context.Context, acct *domain.Account) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.accounts[acct.IBAN]
	if !ok {
		return domain.ErrAccountNotFound
	}
	// Same contract as the SQL backends: the balance column is not part
	// of the update statement.
	clone := *acct
	clone.Balance = stored.Balance
	m.accounts[acct.IBAN] = &clone
	return nil
}

func (m *MockAccountRepository) UpdateBalance(ctx context.Context, iban string, balance decimal.Decimal) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	a, ok := m.accounts[iban]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Balance = balance
	return nil
}

func (m *MockAccountRepository) ExistsByIBAN(ctx context.Context, iban string) (bool, error) {
	_, exists := m.accounts[iban]
	return exists, nil
}

// MockTransactionRepository is an in-memory repository.TransactionRepository.
type MockTransactionRepository struct {
	transactions []*domain.Transaction
	createErr    error
	sumErr       error
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{}
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	if m.createErr != nil {
		return m.createErr
	}
	clone := *tx
	m.transactions = append(m.transactions, &clone)
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	for _, tx := range m.transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) ListByAccount(ctx context.Context, iban string) ([]*domain.Transaction, error) {
	var result []*domain.Transaction
	for _, tx := range m.transactions {
		if tx.FromIBAN == iban || tx.ToIBAN == iban {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *MockTransactionRepository) AccumulatedOutgoing(ctx context.Context, iban string, since time.Time) (decimal.Decimal, error) {
	if m.sumErr != nil {
		return decimal.Zero, m.sumErr
	}
	total := decimal.Zero
	for _, tx := range m.transactions {
		if tx.FromIBAN == iban && !tx.OccurredAt.Before(since) {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

// MockTxManager runs the function without a real transaction.
type MockTxManager struct {
	beginErr error
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	return fn(ctx)
}

// =============================================================================
// Fixtures
// =============================================================================

func regularPrincipal(id int64, username string) *auth.Principal {
	return &auth.Principal{User: &domain.User{
		ID:       id,
		Username: username,
		Role:     domain.RoleRegular,
		IsActive: true,
	}}
}

func employeePrincipal(id int64, username string) *auth.Principal {
	return &auth.Principal{User: &domain.User{
		ID:       id,
		Username: username,
		Role:     domain.RoleEmployee,
		IsActive: true,
	}}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
