package domain

import (
	"github.com/shopspring/decimal"
)

// AmountScale 金額精度：小數點後 2 位 (對應 decimal(15,2) 欄位)
const AmountScale int32 = 2

// Currency 幣別
type Currency string

const (
	CurrencyFCFA Currency = "FCFA"
	CurrencyXOF  Currency = "XOF"
	CurrencyEUR  Currency = "EUR"
	CurrencyUSD  Currency = "USD"
)

// Valid 是否為支援的幣別
func (c Currency) Valid() bool {
	switch c {
	case CurrencyFCFA, CurrencyXOF, CurrencyEUR, CurrencyUSD:
		return true
	}
	return false
}

// ParseCurrency 解析幣別字串
func ParseCurrency(s string) (Currency, error) {
	c := Currency(s)
	if !c.Valid() {
		return "", ErrInvalidCurrency
	}
	return c, nil
}

// MaxAmount 單筆金額與帳戶餘額的上限 (decimal(15,2))
var MaxAmount = decimal.RequireFromString("9999999999999.99")

// 係數與指數的範圍檢查在任何 rescale 之前進行，
// 否則像 1e100000000 這樣的值在比較或加總時會展開成巨大的整數
const (
	maxCoefficientBits = 128
	maxExponent        = 13
	minExponent        = -38
)

// NormalizeAmount 檢查金額為正數、不超過 MaxAmount 並固定精度
//
// 超過精度的位數不做四捨五入，直接視為無效金額
func NormalizeAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if !withinBounds(amount) {
		return decimal.Zero, ErrInvalidAmount
	}
	fixed := amount.Truncate(AmountScale)
	if !fixed.Equal(amount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return fixed, nil
}

// WithinBalanceLimit 餘額是否可被儲存 (不超過 MaxAmount)
func WithinBalanceLimit(balance decimal.Decimal) bool {
	return withinBounds(balance)
}

func withinBounds(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp >= maxExponent || exp < minExponent {
		return false
	}
	if d.Coefficient().BitLen() > maxCoefficientBits {
		return false
	}
	return d.Abs().LessThanOrEqual(MaxAmount)
}

// ParseAmount 解析字串金額
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return NormalizeAmount(d)
}
