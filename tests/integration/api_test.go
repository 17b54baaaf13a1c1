// Package integration provides end-to-end tests for the Meridian Bank API.
// The whole stack runs in-process against a temporary SQLite database.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/meridian-bank/internal/auth"
	"github.com/prn-tf/meridian-bank/internal/cache/memory"
	"github.com/prn-tf/meridian-bank/internal/config"
	"github.com/prn-tf/meridian-bank/internal/domain"
	"github.com/prn-tf/meridian-bank/internal/handler"
	"github.com/prn-tf/meridian-bank/internal/lock"
	"github.com/prn-tf/meridian-bank/internal/metrics"
	"github.com/prn-tf/meridian-bank/internal/repository/sqlite"
	"github.com/prn-tf/meridian-bank/internal/service"
)

const testJWTSecret = "integration-test-secret-0123456789abcdef"

// envelope mirrors the API response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// newTestServer assembles the full API stack on a temporary database and
// provisions one employee.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(filepath.Join(t.TempDir(), "bank.db")), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	users := sqlite.NewUserRepository(db)
	accounts := sqlite.NewAccountRepository(db)
	transactions := sqlite.NewTransactionRepository(db)

	cache := memory.NewCache()
	t.Cleanup(cache.Stop)

	policy := auth.NewAccessPolicy()
	tokens := auth.NewTokenManager(testJWTSecret, time.Hour)

	userService := service.NewUserService(users, logger)
	accountService := service.NewAccountService(accounts, users, transactions, policy,
		service.AccountServiceConfig{IBANMaxAttempts: 10, Location: time.UTC}, logger)
	transactionService := service.NewTransactionService(accounts, transactions, db,
		lock.NewMemoryLocker(), policy,
		service.TransactionServiceConfig{Location: time.UTC}, logger)

	_, err = accountService.Bootstrap(ctx)
	require.NoError(t, err)

	_, err = userService.Register(ctx, service.RegisterInput{
		Username: "teller",
		Email:    "teller@meridian.example",
		Password: "teller-password",
		Role:     domain.RoleEmployee,
	})
	require.NoError(t, err)

	loader := auth.NewCachedUserLoader(users, cache, time.Second, logger)
	m := metrics.New()

	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:        handler.NewAuthHandler(userService, tokens, logger),
		UserHandler:        handler.NewUserHandler(userService, policy, loader, logger),
		AccountHandler:     handler.NewAccountHandler(accountService, logger),
		TransactionHandler: handler.NewTransactionHandler(transactionService, m, logger),
		AuthMiddleware:     auth.NewMiddleware(tokens, loader, logger, handler.WriteError),
		Metrics:            m,
		MetricsConfig:      config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Logger:             logger,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// call performs a JSON request against the test server.
func call(t *testing.T, srv *httptest.Server, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

// register creates a customer and returns their token.
func register(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()

	status, _ := call(t, srv, http.MethodPost, "/users", "", map[string]interface{}{
		"username": username,
		"email":    username + "@example.com",
		"password": "long-enough-password",
	})
	require.Equal(t, http.StatusCreated, status)

	return login(t, srv, username, "long-enough-password")
}

func login(t *testing.T, srv *httptest.Server, username, password string) string {
	t.Helper()

	status, env := call(t, srv, http.MethodPost, "/auth/login", "", map[string]interface{}{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, status)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func TestAccountLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	srv := newTestServer(t)
	aliceToken := register(t, srv, "alice")

	var acct domain.Account

	t.Run("CreateAccount", func(t *testing.T) {
		status, env := call(t, srv, http.MethodPost, "/accounts", aliceToken, map[string]interface{}{
			"name": "Alice Checking",
		})
		require.Equal(t, http.StatusCreated, status)
		require.NoError(t, json.Unmarshal(env.Data, &acct))
		require.NoError(t, domain.ValidateIBAN(acct.IBAN))
		require.True(t, acct.Balance.IsZero(), "new accounts start at zero")
	})

	t.Run("GetAccount", func(t *testing.T) {
		status, env := call(t, srv, http.MethodGet, "/accounts/"+acct.IBAN, aliceToken, nil)
		require.Equal(t, http.StatusOK, status)

		var got domain.Account
		require.NoError(t, json.Unmarshal(env.Data, &got))
		require.Equal(t, "Alice Checking", got.Name)
	})

	t.Run("StrangerCannotSeeIt", func(t *testing.T) {
		bobToken := register(t, srv, "bob")
		status, _ := call(t, srv, http.MethodGet, "/accounts/"+acct.IBAN, bobToken, nil)
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("OwnerRaisesOwnLimits", func(t *testing.T) {
		status, env := call(t, srv, http.MethodPut, "/accounts/"+acct.IBAN, aliceToken, map[string]interface{}{
			"daily_limit": "300",
		})
		require.Equal(t, http.StatusOK, status)

		var got domain.Account
		require.NoError(t, json.Unmarshal(env.Data, &got))
		require.Equal(t, "300", got.DailyLimit.String())
	})

	t.Run("EmployeeRaisesLimits", func(t *testing.T) {
		tellerToken := login(t, srv, "teller", "teller-password")
		status, env := call(t, srv, http.MethodPut, "/accounts/"+acct.IBAN, tellerToken, map[string]interface{}{
			"daily_limit":       "500",
			"transaction_limit": "200",
			"absolute_limit":    "0",
		})
		require.Equal(t, http.StatusOK, status)

		var got domain.Account
		require.NoError(t, json.Unmarshal(env.Data, &got))
		require.Equal(t, "500", got.DailyLimit.String())
	})

	t.Run("BalanceUpdateRejected", func(t *testing.T) {
		status, _ := call(t, srv, http.MethodPut, "/accounts/"+acct.IBAN, aliceToken, map[string]interface{}{
			"balance": "1000000",
		})
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("BalanceEchoIsIgnored", func(t *testing.T) {
		// Sending the current balance back unchanged is not an error.
		status, env := call(t, srv, http.MethodPut, "/accounts/"+acct.IBAN, aliceToken, map[string]interface{}{
			"balance": "0",
			"name":    "Alice Main",
		})
		require.Equal(t, http.StatusOK, status)

		var got domain.Account
		require.NoError(t, json.Unmarshal(env.Data, &got))
		require.Equal(t, "Alice Main", got.Name)
	})

	t.Run("Deactivate", func(t *testing.T) {
		status, _ := call(t, srv, http.MethodDelete, "/accounts/"+acct.IBAN, aliceToken, nil)
		require.Equal(t, http.StatusOK, status)

		// Idempotence is not offered: a second delete is a business error.
		status, _ = call(t, srv, http.MethodDelete, "/accounts/"+acct.IBAN, aliceToken, nil)
		require.Equal(t, http.StatusBadRequest, status)
	})
}

func TestTransactionFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	srv := newTestServer(t)
	tellerToken := login(t, srv, "teller", "teller-password")
	aliceToken := register(t, srv, "alice")
	bobToken := register(t, srv, "bob")

	openAccount := func(token, name string) domain.Account {
		status, env := call(t, srv, http.MethodPost, "/accounts", token, map[string]interface{}{
			"name": name,
		})
		require.Equal(t, http.StatusCreated, status)
		var acct domain.Account
		require.NoError(t, json.Unmarshal(env.Data, &acct))

		// Give the account spending room.
		status, _ = call(t, srv, http.MethodPut, "/accounts/"+acct.IBAN, tellerToken, map[string]interface{}{
			"daily_limit":       "1000",
			"transaction_limit": "100",
			"absolute_limit":    "0",
		})
		require.Equal(t, http.StatusOK, status)
		return acct
	}

	aliceAcct := openAccount(aliceToken, "Alice Checking")
	bobAcct := openAccount(bobToken, "Bob Checking")

	balance := func(token, iban string) string {
		status, env := call(t, srv, http.MethodGet, "/accounts/"+iban, token, nil)
		require.Equal(t, http.StatusOK, status)
		var acct domain.Account
		require.NoError(t, json.Unmarshal(env.Data, &acct))
		return acct.Balance.String()
	}

	t.Run("Deposit", func(t *testing.T) {
		status, env := call(t, srv, http.MethodPost, "/transactions", aliceToken, map[string]interface{}{
			"type":    string(domain.TypeDeposit),
			"to_iban": aliceAcct.IBAN,
			"amount":  "80",
		})
		require.Equal(t, http.StatusCreated, status)

		var tx domain.Transaction
		require.NoError(t, json.Unmarshal(env.Data, &tx))
		require.Equal(t, domain.ClearingIBAN, tx.FromIBAN)
		require.Equal(t, "80", balance(aliceToken, aliceAcct.IBAN))
	})

	t.Run("RenameKeepsBalance", func(t *testing.T) {
		status, _ := call(t, srv, http.MethodPut, "/accounts/"+aliceAcct.IBAN, aliceToken, map[string]interface{}{
			"name": "Alice Household",
		})
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "80", balance(aliceToken, aliceAcct.IBAN), "lifecycle updates must not touch the balance")
	})

	t.Run("Transfer", func(t *testing.T) {
		status, _ := call(t, srv, http.MethodPost, "/transactions", aliceToken, map[string]interface{}{
			"type":      string(domain.TypeTransfer),
			"from_iban": aliceAcct.IBAN,
			"to_iban":   bobAcct.IBAN,
			"amount":    "30",
			"label":     "rent",
		})
		require.Equal(t, http.StatusCreated, status)
		require.Equal(t, "50", balance(aliceToken, aliceAcct.IBAN))
		require.Equal(t, "30", balance(bobToken, bobAcct.IBAN))
	})

	t.Run("TransferOverTransactionLimit", func(t *testing.T) {
		status, env := call(t, srv, http.MethodPost, "/transactions", bobToken, map[string]interface{}{
			"type":      string(domain.TypeTransfer),
			"from_iban": bobAcct.IBAN,
			"to_iban":   aliceAcct.IBAN,
			"amount":    "150",
		})
		require.Equal(t, http.StatusBadRequest, status)
		require.False(t, env.Success)
		require.Equal(t, "30", balance(bobToken, bobAcct.IBAN), "rejected transfer must not move money")
	})

	t.Run("StrangerCannotSpendForeignAccount", func(t *testing.T) {
		status, _ := call(t, srv, http.MethodPost, "/transactions", bobToken, map[string]interface{}{
			"type":      string(domain.TypeTransfer),
			"from_iban": aliceAcct.IBAN,
			"to_iban":   bobAcct.IBAN,
			"amount":    "10",
		})
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("Withdraw", func(t *testing.T) {
		status, _ := call(t, srv, http.MethodPost, "/transactions", aliceToken, map[string]interface{}{
			"type":      string(domain.TypeWithdraw),
			"from_iban": aliceAcct.IBAN,
			"amount":    "20",
		})
		require.Equal(t, http.StatusCreated, status)
		require.Equal(t, "30", balance(aliceToken, aliceAcct.IBAN))
	})

	t.Run("History", func(t *testing.T) {
		status, env := call(t, srv, http.MethodGet, "/accounts/"+aliceAcct.IBAN+"/transactions", aliceToken, nil)
		require.Equal(t, http.StatusOK, status)

		var history []domain.Transaction
		require.NoError(t, json.Unmarshal(env.Data, &history))
		require.Len(t, history, 3)
	})

	t.Run("Limits", func(t *testing.T) {
		status, env := call(t, srv, http.MethodGet, "/accounts/"+aliceAcct.IBAN+"/limits", aliceToken, nil)
		require.Equal(t, http.StatusOK, status)

		var limits domain.LimitsSnapshot
		require.NoError(t, json.Unmarshal(env.Data, &limits))
		// 1000 daily minus the 30 transfer and 20 withdrawal.
		require.Equal(t, "950", limits.DailyLimitRemaining.String())
	})
}

func TestAuthentication(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	srv := newTestServer(t)

	t.Run("MissingToken", func(t *testing.T) {
		status, env := call(t, srv, http.MethodGet, "/users/me", "", nil)
		require.Equal(t, http.StatusUnauthorized, status)
		require.False(t, env.Success)
	})

	t.Run("GarbageToken", func(t *testing.T) {
		status, _ := call(t, srv, http.MethodGet, "/users/me", "not-a-jwt", nil)
		require.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		status, _ := call(t, srv, http.MethodPost, "/auth/login", "", map[string]interface{}{
			"username": "teller",
			"password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("RegularUserCannotListUsers", func(t *testing.T) {
		aliceToken := register(t, srv, "alice")
		status, _ := call(t, srv, http.MethodGet, "/users", aliceToken, nil)
		require.Equal(t, http.StatusForbidden, status)
	})

	t.Run("EmployeeListsUsers", func(t *testing.T) {
		tellerToken := login(t, srv, "teller", "teller-password")
		status, env := call(t, srv, http.MethodGet, "/users", tellerToken, nil)
		require.Equal(t, http.StatusOK, status)

		var users []domain.User
		require.NoError(t, json.Unmarshal(env.Data, &users))
		require.NotEmpty(t, users)
	})

	t.Run("DeactivatedUserIsLockedOut", func(t *testing.T) {
		victimToken := register(t, srv, "victim")

		status, env := call(t, srv, http.MethodGet, "/users/me", victimToken, nil)
		require.Equal(t, http.StatusOK, status)
		var me domain.User
		require.NoError(t, json.Unmarshal(env.Data, &me))

		tellerToken := login(t, srv, "teller", "teller-password")
		status, _ = call(t, srv, http.MethodDelete, "/users/"+strconv.FormatInt(me.ID, 10), tellerToken, nil)
		require.Equal(t, http.StatusOK, status)

		status, _ = call(t, srv, http.MethodGet, "/users/me", victimToken, nil)
		require.Equal(t, http.StatusForbidden, status, "token must stop working once the user is deactivated")
	})
}
