package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind 帳戶類型
type AccountKind string

const (
	AccountKindChecking AccountKind = "checking"
	AccountKindSavings  AccountKind = "savings"
)

// Valid 是否為支援的帳戶類型
func (k AccountKind) Valid() bool {
	return k == AccountKindChecking || k == AccountKindSavings
}

// NumberPrefix 帳號前綴 (2 碼)
func (k AccountKind) NumberPrefix() string {
	if k == AccountKindSavings {
		return "CE"
	}
	return "CB"
}

// OpeningFee 開戶手續費
func (k AccountKind) OpeningFee() decimal.Decimal {
	if k == AccountKindSavings {
		return decimal.NewFromInt(5000)
	}
	return decimal.NewFromInt(10000)
}

// WithdrawalLimit 單筆提款上限 (僅記錄於帳戶資料，不參與准入判斷)
func (k AccountKind) WithdrawalLimit() decimal.Decimal {
	if k == AccountKindSavings {
		return decimal.NewFromInt(50000)
	}
	return decimal.NewFromInt(100000)
}

// AccountStatus 帳戶狀態
type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "active"
	AccountStatusBlocked AccountStatus = "blocked"
)

// Account 帳戶
//
// Balance 為唯一的餘額來源，只能由 Ledger 在原子單位內與交易紀錄一起變更。
// 取出的 Account 都是快照 (value)，修改它不會影響帳本。
type Account struct {
	ID              string          `json:"id"`
	Number          string          `json:"number"`
	Kind            AccountKind     `json:"kind"`
	Currency        Currency        `json:"currency"`
	Status          AccountStatus   `json:"status"`
	Balance         decimal.Decimal `json:"balance"`
	OwnerRef        string          `json:"owner_ref"`
	OpeningFee      decimal.Decimal `json:"opening_fee"`
	WithdrawalLimit decimal.Decimal `json:"withdrawal_limit"`
	// Version 每次餘額或狀態變更 +1
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive 帳戶是否可交易
func (a Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// AssertActive 交易前的狀態閘門
func (a Account) AssertActive() error {
	if !a.IsActive() {
		return ErrAccountBlocked
	}
	return nil
}
