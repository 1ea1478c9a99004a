package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Ledger 是帳務系統的儲存介面，唯一可以變更餘額與寫入交易紀錄的元件
type Ledger interface {
	// WithAccountLock 依遞增順序鎖定帳戶後執行 fn，任何結束路徑都會釋放鎖
	// 等待逾時回傳 domain.ErrLockTimeout
	WithAccountLock(ctx context.Context, ids []string, fn func(tx LedgerTx) error) error

	// GetAccount 取得帳戶快照
	GetAccount(ctx context.Context, id string) (domain.Account, error)
	// GetAccountByNumber 以帳號取得帳戶快照
	GetAccountByNumber(ctx context.Context, number string) (domain.Account, error)
	// LoadAllAccounts 載入所有帳戶快照
	LoadAllAccounts(ctx context.Context) ([]domain.Account, error)
	// ListAccountsByOwner 持有人名下的帳戶快照，依建立時間排序
	ListAccountsByOwner(ctx context.Context, ownerRef string) ([]domain.Account, error)

	// CreateAccount 新增帳戶；opening 不為 nil 時與帳戶在同一原子單位寫入
	// 帳號重複回傳 domain.ErrAccountNumberTaken
	CreateAccount(ctx context.Context, account domain.Account, opening *domain.Transaction) error

	// GetTransaction 取得單筆交易
	GetTransaction(ctx context.Context, id uuid.UUID) (domain.Transaction, error)
	// ListTransactions 帳戶交易紀錄 (來源或目的)，依執行時間新到舊；limit <= 0 表示全部
	ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error)

	// AppendRejected 記錄被拒絕的交易 (僅供稽核，不影響正確性)
	AppendRejected(ctx context.Context, tran *domain.Transaction) error
}

// LedgerTx 是 WithAccountLock 範圍內的獨占存取
type LedgerTx interface {
	// Account 讀取已鎖定帳戶的當前狀態
	Account(id string) (domain.Account, error)

	// MutateBalances 單一原子單位: 所有 delta 與交易紀錄一起生效，或全部不生效
	// 每個鎖定範圍只能呼叫一次
	MutateBalances(deltas map[string]decimal.Decimal, tran *domain.Transaction) error

	// SetStatus 變更帳戶狀態
	SetStatus(id string, status domain.AccountStatus) error
}
