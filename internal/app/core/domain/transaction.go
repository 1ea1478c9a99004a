package domain

import (
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxDescriptionLength 交易描述上限 (字元)
const MaxDescriptionLength = 255

// TransactionKind 交易類型
type TransactionKind string

const (
	// 存款
	TransactionKindDeposit TransactionKind = "deposit"
	// 提款
	TransactionKindWithdrawal TransactionKind = "withdrawal"
	// 轉帳
	TransactionKindTransfer TransactionKind = "transfer"
)

// TransactionStatus 交易狀態: pending -> {committed, rejected}
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCommitted TransactionStatus = "committed"
	TransactionStatusRejected  TransactionStatus = "rejected"
)

// Final 是否為終態
func (s TransactionStatus) Final() bool {
	return s == TransactionStatusCommitted || s == TransactionStatusRejected
}

// Transaction 交易紀錄
//
// 角色對應:
//
//	deposit:    Destination = 入帳帳戶
//	withdrawal: Source      = 出帳帳戶
//	transfer:   Source -> Destination
type Transaction struct {
	ID                   uuid.UUID         `json:"id"`
	Kind                 TransactionKind   `json:"kind"`
	Amount               decimal.Decimal   `json:"amount"`
	Currency             Currency          `json:"currency"`
	SourceAccountID      string            `json:"source_account_id,omitempty"`
	DestinationAccountID string            `json:"destination_account_id,omitempty"`
	Status               TransactionStatus `json:"status"`
	// Reason 被拒絕的原因 (僅 rejected)
	Reason      string    `json:"reason,omitempty"`
	Description string    `json:"description,omitempty"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// NewTransaction 建立一筆 pending 交易
//
// id 為 uuid.Nil 時自動產生
func NewTransaction(id uuid.UUID, kind TransactionKind, source, destination string, amount decimal.Decimal, currency Currency, description string) (*Transaction, error) {
	fixed, err := NormalizeAmount(amount)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, ErrDescriptionTooLong
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Transaction{
		ID:                   id,
		Kind:                 kind,
		Amount:               fixed,
		Currency:             currency,
		SourceAccountID:      source,
		DestinationAccountID: destination,
		Status:               TransactionStatusPending,
		Description:          description,
	}, nil
}

// Commit pending -> committed
func (t *Transaction) Commit(at time.Time) error {
	if t.Status.Final() {
		return ErrTransactionFinalized
	}
	t.Status = TransactionStatusCommitted
	t.ExecutedAt = at
	return nil
}

// Reject pending -> rejected
func (t *Transaction) Reject(at time.Time, reason error) error {
	if t.Status.Final() {
		return ErrTransactionFinalized
	}
	t.Status = TransactionStatusRejected
	t.ExecutedAt = at
	if reason != nil {
		t.Reason = reason.Error()
	}
	return nil
}

// Deltas 交易對各帳戶餘額的影響
func (t *Transaction) Deltas() map[string]decimal.Decimal {
	deltas := make(map[string]decimal.Decimal, 2)
	switch t.Kind {
	case TransactionKindDeposit:
		deltas[t.DestinationAccountID] = t.Amount
	case TransactionKindWithdrawal:
		deltas[t.SourceAccountID] = t.Amount.Neg()
	case TransactionKindTransfer:
		deltas[t.SourceAccountID] = t.Amount.Neg()
		deltas[t.DestinationAccountID] = t.Amount
	}
	return deltas
}

// GetLockIDs 回傳需要鎖定的帳號 ID，並確保順序以避免死鎖
func (t *Transaction) GetLockIDs() []string {
	ids := make([]string, 0, 2)
	switch t.Kind {
	case TransactionKindTransfer:
		ids = append(ids, t.SourceAccountID, t.DestinationAccountID)
	case TransactionKindDeposit:
		ids = append(ids, t.DestinationAccountID)
	case TransactionKindWithdrawal:
		ids = append(ids, t.SourceAccountID)
	}
	return SortLockIDs(ids)
}

// Involves 交易是否涉及該帳戶
func (t *Transaction) Involves(accountID string) bool {
	return t.SourceAccountID == accountID || t.DestinationAccountID == accountID
}

// SortLockIDs 去重並遞增排序，所有 Ledger 實作都以此順序取鎖
func SortLockIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
