package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// DefaultLockTimeout 等待帳戶鎖的預設上限
const DefaultLockTimeout = 5 * time.Second

// WAL 紀錄類型
const (
	recordAccountOpened = "account_opened"
	recordCommitted     = "committed"
	recordRejected      = "rejected"
	recordStatusChanged = "status_changed"
)

// walRecord WAL 中的單筆紀錄
type walRecord struct {
	Kind        string               `json:"kind"`
	Account     *domain.Account      `json:"account,omitempty"`
	Transaction *domain.Transaction  `json:"transaction,omitempty"`
	AccountID   string               `json:"account_id,omitempty"`
	Status      domain.AccountStatus `json:"status,omitempty"`
	At          time.Time            `json:"at,omitempty"`
}

// MutexLedger 是一個使用 per-account 鎖實現的記憶體帳本
//
// 結構:
//
//	locks: 帳戶鎖 arena，序列化同一帳戶的 read-modify-write
//	mu: 保護 map 與交易紀錄，只在套用變更時短暫持有寫鎖
//	reserved: 已保留 (寫 WAL 中) 的交易 ID，避免同一 ID 重複提交
//	wal: Write-Ahead Log，nil 表示不落地
type MutexLedger struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.Account
	numbers      map[string]string
	transactions []domain.Transaction
	txIndex      map[uuid.UUID]int
	byAccount    map[string][]int
	reserved     map[uuid.UUID]struct{}

	locks       *lockArena
	lockTimeout time.Duration
	wal         *wal.WAL
}

// Option 設定 MutexLedger
type Option func(*MutexLedger)

// WithLockTimeout 設定等待帳戶鎖的上限
func WithLockTimeout(d time.Duration) Option {
	return func(m *MutexLedger) {
		if d > 0 {
			m.lockTimeout = d
		}
	}
}

// NewMutexLedger 建立一個新的 MutexLedger 實例，並從 WAL 恢復帳本狀態
//
// 參數:
//
//	w: Write-Ahead Log 實例，可為 nil
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(w *wal.WAL, opts ...Option) (*MutexLedger, error) {
	ledger := &MutexLedger{
		accounts:    make(map[string]*domain.Account),
		numbers:     make(map[string]string),
		txIndex:     make(map[uuid.UUID]int),
		byAccount:   make(map[string][]int),
		reserved:    make(map[uuid.UUID]struct{}),
		locks:       newLockArena(),
		lockTimeout: DefaultLockTimeout,
		wal:         w,
	}
	for _, opt := range opts {
		opt(ledger)
	}
	if err := ledger.recoverFromWAL(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// recoverFromWAL 依序重放 WAL
// 只有 NewMutexLedger 呼叫，無需 Lock (單執行緒)
func (m *MutexLedger) recoverFromWAL() error {
	if m.wal == nil {
		return nil
	}
	return m.wal.ReadAll(func(jsonRaw []byte) error {
		var rec walRecord
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return err
		}
		return m.replay(&rec)
	})
}

func (m *MutexLedger) replay(rec *walRecord) error {
	switch rec.Kind {
	case recordAccountOpened:
		if rec.Account == nil {
			return fmt.Errorf("wal: %s record without account", rec.Kind)
		}
		m.insertAccount(*rec.Account, rec.Transaction)
	case recordCommitted:
		if rec.Transaction == nil {
			return fmt.Errorf("wal: %s record without transaction", rec.Kind)
		}
		deltas := rec.Transaction.Deltas()
		for id := range deltas {
			if _, ok := m.accounts[id]; !ok {
				return fmt.Errorf("wal: transaction %s references unknown account %s", rec.Transaction.ID, id)
			}
		}
		m.applyCommitted(deltas, *rec.Transaction)
	case recordRejected:
		if rec.Transaction == nil {
			return fmt.Errorf("wal: %s record without transaction", rec.Kind)
		}
		m.appendTransaction(*rec.Transaction)
	case recordStatusChanged:
		m.applyStatus(rec.AccountID, rec.Status, rec.At)
	default:
		return fmt.Errorf("wal: unknown record kind %q", rec.Kind)
	}
	return nil
}

// WithAccountLock 依遞增順序鎖定帳戶後執行 fn
func (m *MutexLedger) WithAccountLock(ctx context.Context, ids []string, fn func(tx usecase.LedgerTx) error) error {
	sorted := domain.SortLockIDs(ids)
	slots, err := m.locks.handles(sorted)
	if err != nil {
		return err
	}
	release, err := acquire(ctx, slots, m.lockTimeout)
	if err != nil {
		return err
	}
	defer release()

	locked := make(map[string]struct{}, len(sorted))
	for _, id := range sorted {
		locked[id] = struct{}{}
	}
	return fn(&lockedTx{ledger: m, locked: locked})
}

// GetAccount 取得帳戶快照
func (m *MutexLedger) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return *account, nil
}

// GetAccountByNumber 以帳號取得帳戶快照
func (m *MutexLedger) GetAccountByNumber(ctx context.Context, number string) (domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.numbers[number]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return *m.accounts[id], nil
}

// LoadAllAccounts 載入所有帳戶快照，依建立時間排序
func (m *MutexLedger) LoadAllAccounts(ctx context.Context) ([]domain.Account, error) {
	m.mu.RLock()
	out := make([]domain.Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		out = append(out, *account)
	}
	m.mu.RUnlock()

	sortByCreation(out)
	return out, nil
}

// ListAccountsByOwner 持有人名下的帳戶
func (m *MutexLedger) ListAccountsByOwner(ctx context.Context, ownerRef string) ([]domain.Account, error) {
	m.mu.RLock()
	var out []domain.Account
	for _, account := range m.accounts {
		if account.OwnerRef == ownerRef {
			out = append(out, *account)
		}
	}
	m.mu.RUnlock()

	sortByCreation(out)
	return out, nil
}

func sortByCreation(accounts []domain.Account) {
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
}

// CreateAccount 新增帳戶，帳戶與開戶存款寫入同一筆 WAL 紀錄
func (m *MutexLedger) CreateAccount(ctx context.Context, account domain.Account, opening *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[account.ID]; ok {
		return domain.ErrAccountAlreadyExists
	}
	if _, ok := m.numbers[account.Number]; ok {
		return domain.ErrAccountNumberTaken
	}

	if m.wal != nil {
		rec := walRecord{Kind: recordAccountOpened, Account: &account, Transaction: opening}
		if err := m.wal.Write(&rec); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorageFault, err)
		}
	}
	m.insertAccount(account, opening)
	return nil
}

// GetTransaction 取得單筆交易
func (m *MutexLedger) GetTransaction(ctx context.Context, id uuid.UUID) (domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.txIndex[id]
	if !ok {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	return m.transactions[i], nil
}

// ListTransactions 帳戶交易紀錄，依執行時間新到舊
func (m *MutexLedger) ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	m.mu.RLock()
	indexes := m.byAccount[accountID]
	out := make([]domain.Transaction, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, m.transactions[i])
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExecutedAt.After(out[j].ExecutedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AppendRejected 記錄被拒絕的交易 (稽核用)
func (m *MutexLedger) AppendRejected(ctx context.Context, tran *domain.Transaction) error {
	if tran.Status != domain.TransactionStatusRejected {
		return fmt.Errorf("%w: append rejected with status %q", domain.ErrStorageFault, tran.Status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txIndex[tran.ID]; ok {
		return domain.ErrTransactionAlreadyProcessed
	}
	if m.wal != nil {
		if err := m.wal.Write(&walRecord{Kind: recordRejected, Transaction: tran}); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorageFault, err)
		}
	}
	m.appendTransaction(*tran)
	return nil
}

// insertAccount 呼叫端需持有 mu 寫鎖 (或位於單執行緒的恢復流程)
func (m *MutexLedger) insertAccount(account domain.Account, opening *domain.Transaction) {
	stored := account
	m.accounts[account.ID] = &stored
	m.numbers[account.Number] = account.ID
	m.locks.register(account.ID)
	if opening != nil {
		m.appendTransaction(*opening)
	}
}

// applyCommitted 套用餘額變更並寫入交易紀錄，呼叫端需持有 mu 寫鎖
func (m *MutexLedger) applyCommitted(deltas map[string]decimal.Decimal, tran domain.Transaction) {
	for id, delta := range deltas {
		account := m.accounts[id]
		account.Balance = account.Balance.Add(delta)
		account.Version++
		account.UpdatedAt = tran.ExecutedAt
	}
	m.appendTransaction(tran)
}

func (m *MutexLedger) applyStatus(id string, status domain.AccountStatus, at time.Time) {
	account, ok := m.accounts[id]
	if !ok {
		return
	}
	account.Status = status
	account.Version++
	account.UpdatedAt = at
}

func (m *MutexLedger) appendTransaction(tran domain.Transaction) {
	m.transactions = append(m.transactions, tran)
	i := len(m.transactions) - 1
	m.txIndex[tran.ID] = i
	for _, id := range domain.SortLockIDs([]string{tran.SourceAccountID, tran.DestinationAccountID}) {
		m.byAccount[id] = append(m.byAccount[id], i)
	}
}

// lockedTx WithAccountLock 範圍內的存取
type lockedTx struct {
	ledger  *MutexLedger
	locked  map[string]struct{}
	mutated bool
}

func (t *lockedTx) checkLocked(id string) error {
	if _, ok := t.locked[id]; !ok {
		return fmt.Errorf("%w: account %s is not locked", domain.ErrStorageFault, id)
	}
	return nil
}

// Account 讀取已鎖定帳戶
func (t *lockedTx) Account(id string) (domain.Account, error) {
	if err := t.checkLocked(id); err != nil {
		return domain.Account{}, err
	}
	return t.ledger.GetAccount(context.Background(), id)
}

// MutateBalances 保留交易 ID -> 寫 WAL -> 套用
//
// WAL 寫入時只持有帳戶鎖，不持有 mu，其他帳戶的交易可同時進行
func (t *lockedTx) MutateBalances(deltas map[string]decimal.Decimal, tran *domain.Transaction) error {
	if t.mutated {
		return fmt.Errorf("%w: balances already mutated in this lock scope", domain.ErrStorageFault)
	}
	if tran == nil || tran.Status != domain.TransactionStatusCommitted {
		return fmt.Errorf("%w: transaction must be committed before it is stored", domain.ErrStorageFault)
	}
	for id := range deltas {
		if err := t.checkLocked(id); err != nil {
			return err
		}
	}

	m := t.ledger
	m.mu.Lock()
	if _, ok := m.txIndex[tran.ID]; ok {
		m.mu.Unlock()
		return domain.ErrTransactionAlreadyProcessed
	}
	if _, ok := m.reserved[tran.ID]; ok {
		m.mu.Unlock()
		return domain.ErrTransactionAlreadyProcessed
	}
	for id, delta := range deltas {
		account, ok := m.accounts[id]
		if !ok {
			m.mu.Unlock()
			return domain.ErrAccountNotFound
		}
		next := account.Balance.Add(delta)
		if next.IsNegative() {
			m.mu.Unlock()
			return domain.ErrInsufficientFunds
		}
		if !domain.WithinBalanceLimit(next) {
			m.mu.Unlock()
			return domain.ErrBalanceLimitExceeded
		}
	}
	m.reserved[tran.ID] = struct{}{}
	m.mu.Unlock()

	if m.wal != nil {
		if err := m.wal.Write(&walRecord{Kind: recordCommitted, Transaction: tran}); err != nil {
			m.mu.Lock()
			delete(m.reserved, tran.ID)
			m.mu.Unlock()
			return fmt.Errorf("%w: %w", domain.ErrStorageFault, err)
		}
	}

	m.mu.Lock()
	delete(m.reserved, tran.ID)
	m.applyCommitted(deltas, *tran)
	m.mu.Unlock()

	t.mutated = true
	return nil
}

// SetStatus 變更帳戶狀態
func (t *lockedTx) SetStatus(id string, status domain.AccountStatus) error {
	if err := t.checkLocked(id); err != nil {
		return err
	}
	m := t.ledger
	at := time.Now().UTC()
	if m.wal != nil {
		rec := walRecord{Kind: recordStatusChanged, AccountID: id, Status: status, At: at}
		if err := m.wal.Write(&rec); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStorageFault, err)
		}
	}
	m.mu.Lock()
	m.applyStatus(id, status, at)
	m.mu.Unlock()
	return nil
}

var _ usecase.Ledger = (*MutexLedger)(nil)
