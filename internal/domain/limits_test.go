package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func limitsAccount() *Account {
	return &Account{
		IBAN:             "NL57-MERB-0123-4567-89",
		Balance:          dec("100"),
		DailyLimit:       dec("200"),
		TransactionLimit: dec("50"),
		AbsoluteLimit:    dec("10"),
		IsActive:         true,
	}
}

func TestCalculateLimits(t *testing.T) {
	tests := []struct {
		name         string
		spentToday   string
		wantDaily    string
		wantPerTx    string
		wantHeadroom string
		wantMax      string
	}{
		{
			name:         "nothing spent yet",
			spentToday:   "0",
			wantDaily:    "200",
			wantPerTx:    "50",
			wantHeadroom: "90",
			wantMax:      "50",
		},
		{
			name:         "daily limit nearly used up",
			spentToday:   "180",
			wantDaily:    "20",
			wantPerTx:    "50",
			wantHeadroom: "90",
			wantMax:      "20",
		},
		{
			name:         "daily limit overdrawn stays negative",
			spentToday:   "250",
			wantDaily:    "-50",
			wantPerTx:    "50",
			wantHeadroom: "90",
			wantMax:      "-50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := CalculateLimits(limitsAccount(), dec(tt.spentToday))

			assert.True(t, snap.DailyLimitRemaining.Equal(dec(tt.wantDaily)), "daily: %s", snap.DailyLimitRemaining)
			assert.True(t, snap.TransactionLimitRemaining.Equal(dec(tt.wantPerTx)), "per-tx: %s", snap.TransactionLimitRemaining)
			assert.True(t, snap.HeadroomToAbsoluteLimit.Equal(dec(tt.wantHeadroom)), "headroom: %s", snap.HeadroomToAbsoluteLimit)
			assert.True(t, snap.MaxSpendable.Equal(dec(tt.wantMax)), "max: %s", snap.MaxSpendable)
		})
	}
}

func TestCalculateLimits_NegativeHeadroom(t *testing.T) {
	acct := limitsAccount()
	acct.Balance = dec("5")

	snap := CalculateLimits(acct, decimal.Zero)
	assert.True(t, snap.HeadroomToAbsoluteLimit.Equal(dec("-5")))
	assert.True(t, snap.MaxSpendable.Equal(dec("-5")), "no clamping to zero")
}

func TestLimitsSnapshot_Allows(t *testing.T) {
	tests := []struct {
		name       string
		spentToday string
		balance    string
		amount     string
		wantErr    error
	}{
		{"within all limits", "0", "100", "40", nil},
		{"exactly at transaction limit", "0", "100", "50", nil},
		{"over transaction limit", "0", "100", "60", ErrExceededTransactionLimit},
		{"over daily limit", "180", "100", "30", ErrExceededDailyLimit},
		{"over absolute limit", "0", "15", "10", ErrExceededAbsoluteLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := limitsAccount()
			acct.Balance = dec(tt.balance)

			snap := CalculateLimits(acct, dec(tt.spentToday))
			err := snap.Allows(dec(tt.amount))

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
