package domain

import "github.com/shopspring/decimal"

// Balance Policy: 純函式，不修改傳入的帳戶，可並行呼叫

// CanDebit 帳戶為 active 且餘額足夠
func CanDebit(account Account, amount decimal.Decimal) bool {
	return account.IsActive() && account.Balance.GreaterThanOrEqual(amount)
}

// CanCredit 帳戶為 active (凍結帳戶的入帳直接拒絕，不排隊)
func CanCredit(account Account, amount decimal.Decimal) bool {
	return account.IsActive()
}

// AdmitDebit 扣款准入判斷，回傳具體拒絕原因
func AdmitDebit(account Account, amount decimal.Decimal, currency Currency) error {
	if err := admitCommon(account, amount, currency); err != nil {
		return err
	}
	if !CanDebit(account, amount) {
		return ErrInsufficientFunds
	}
	return nil
}

// AdmitCredit 入帳准入判斷
func AdmitCredit(account Account, amount decimal.Decimal, currency Currency) error {
	if err := admitCommon(account, amount, currency); err != nil {
		return err
	}
	if !CanCredit(account, amount) {
		return ErrAccountBlocked
	}
	if !WithinBalanceLimit(ResultingBalance(account, amount)) {
		return ErrBalanceLimitExceeded
	}
	return nil
}

// ResultingBalance 准入後的餘額
func ResultingBalance(account Account, delta decimal.Decimal) decimal.Decimal {
	return account.Balance.Add(delta)
}

func admitCommon(account Account, amount decimal.Decimal, currency Currency) error {
	if !amount.IsPositive() || !WithinBalanceLimit(amount) {
		return ErrInvalidAmount
	}
	if currency != account.Currency {
		return ErrCurrencyMismatch
	}
	return account.AssertActive()
}
