package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func account(balance string, status AccountStatus) Account {
	return Account{
		ID:       "acc",
		Currency: CurrencyFCFA,
		Status:   status,
		Balance:  decimal.RequireFromString(balance),
	}
}

func TestCanDebit(t *testing.T) {
	tests := []struct {
		name    string
		account Account
		amount  string
		want    bool
	}{
		{"exact balance", account("100", AccountStatusActive), "100", true},
		{"below balance", account("100", AccountStatusActive), "99.99", true},
		{"above balance", account("100", AccountStatusActive), "100.01", false},
		{"blocked", account("100", AccountStatusBlocked), "1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanDebit(tt.account, decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestCanCredit(t *testing.T) {
	assert.True(t, CanCredit(account("0", AccountStatusActive), decimal.NewFromInt(1)))
	assert.False(t, CanCredit(account("0", AccountStatusBlocked), decimal.NewFromInt(1)))
}

func TestAdmitDebit(t *testing.T) {
	tests := []struct {
		name     string
		account  Account
		amount   string
		currency Currency
		wantErr  error
	}{
		{"ok", account("500", AccountStatusActive), "200", CurrencyFCFA, nil},
		{"zero amount", account("500", AccountStatusActive), "0", CurrencyFCFA, ErrInvalidAmount},
		{"negative amount", account("500", AccountStatusActive), "-50", CurrencyFCFA, ErrInvalidAmount},
		{"currency mismatch", account("500", AccountStatusActive), "1", CurrencyEUR, ErrCurrencyMismatch},
		{"blocked", account("500", AccountStatusBlocked), "1", CurrencyFCFA, ErrAccountBlocked},
		{"insufficient", account("500", AccountStatusActive), "500.01", CurrencyFCFA, ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AdmitDebit(tt.account, decimal.RequireFromString(tt.amount), tt.currency)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAdmitCredit(t *testing.T) {
	assert.NoError(t, AdmitCredit(account("0", AccountStatusActive), decimal.NewFromInt(10), CurrencyFCFA))
	assert.ErrorIs(t, AdmitCredit(account("0", AccountStatusBlocked), decimal.NewFromInt(10), CurrencyFCFA), ErrAccountBlocked)
	assert.ErrorIs(t, AdmitCredit(account("0", AccountStatusActive), decimal.NewFromInt(10), CurrencyUSD), ErrCurrencyMismatch)
}

func TestPolicyDoesNotMutateAccount(t *testing.T) {
	acc := account("100", AccountStatusActive)
	before := acc

	_ = AdmitDebit(acc, decimal.NewFromInt(40), CurrencyFCFA)
	assert.Equal(t, "60", ResultingBalance(acc, decimal.NewFromInt(-40)).String())
	assert.Equal(t, before, acc)
}

func TestNormalizeAmount(t *testing.T) {
	got, err := NormalizeAmount(decimal.RequireFromString("12.5"))
	assert.NoError(t, err)
	assert.Equal(t, "12.50", got.StringFixed(AmountScale))

	_, err = ParseAmount("abc")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestNormalizeAmountBounds(t *testing.T) {
	tests := []struct {
		amount string
		valid  bool
	}{
		{"0.01", true},
		{"9999999999999.99", true},
		{"99999999999.9900000", true},
		{"0", false},
		{"-1", false},
		{"0.001", false},
		{"10000000000000", false},
		{"1e20", false},
		{"1e13", false},
		{"1e100000000", false},
		{"1e-100000000", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			_, err := ParseAmount(tt.amount)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestAdmitCreditBalanceLimit(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		amount  string
		wantErr error
	}{
		{"reaches max", "9999999999998.99", "1", nil},
		{"exceeds max", "9999999999999.99", "0.01", ErrBalanceLimitExceeded},
		{"amount over max", "0", "10000000000000", ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AdmitCredit(account(tt.balance, AccountStatusActive), decimal.RequireFromString(tt.amount), CurrencyFCFA)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency("XOF")
	assert.NoError(t, err)
	assert.Equal(t, CurrencyXOF, c)

	_, err = ParseCurrency("GBP")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsRejection(ErrInsufficientFunds))
	assert.False(t, IsRejection(ErrLockTimeout))
	assert.True(t, IsInfrastructure(ErrStorageFault))
	assert.False(t, IsInfrastructure(ErrAccountBlocked))
	assert.Contains(t, KnownErrors(), ErrTransactionAlreadyProcessed)
}
