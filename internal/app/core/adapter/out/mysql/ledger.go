package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
)

// MySQL 錯誤碼
const (
	errLockWaitTimeout uint16 = 1205
	errDeadlock        uint16 = 1213
	errDuplicateEntry  uint16 = 1062
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID              string          `gorm:"primaryKey;type:char(36)"`
	Number          string          `gorm:"type:varchar(32);uniqueIndex"`
	Kind            string          `gorm:"type:varchar(16)"`
	Currency        string          `gorm:"type:varchar(8)"`
	Status          string          `gorm:"type:varchar(16)"`
	Balance         decimal.Decimal `gorm:"type:decimal(15,2)"`
	OwnerRef        string          `gorm:"type:varchar(64);index"`
	OpeningFee      decimal.Decimal `gorm:"type:decimal(15,2)"`
	WithdrawalLimit decimal.Decimal `gorm:"type:decimal(15,2)"`
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	ID                   string          `gorm:"primaryKey;type:char(36)"`
	Kind                 string          `gorm:"type:varchar(16)"`
	Amount               decimal.Decimal `gorm:"type:decimal(15,2)"`
	Currency             string          `gorm:"type:varchar(8)"`
	SourceAccountID      *string         `gorm:"type:char(36);index"`
	DestinationAccountID *string         `gorm:"type:char(36);index"`
	Status               string          `gorm:"type:varchar(16);index"`
	Reason               string          `gorm:"type:varchar(255)"`
	Description          string          `gorm:"type:varchar(255)"`
	ExecutedAt           time.Time       `gorm:"index"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

// MySQLLedger 以 MySQL row lock (SELECT ... FOR UPDATE) 實作帳本
type MySQLLedger struct {
	client      *mysql.Client
	lockTimeout time.Duration
}

func NewMySQLLedger(client *mysql.Client, lockTimeout time.Duration) *MySQLLedger {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &MySQLLedger{
		client:      client,
		lockTimeout: lockTimeout,
	}
}

// AutoMigrate 建立 accounts / transactions 表
func (ledger *MySQLLedger) AutoMigrate(ctx context.Context) error {
	return ledger.client.DB().WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlTransaction{})
}

// WithAccountLock 開啟 DB transaction，依遞增順序逐一 FOR UPDATE 鎖定帳戶
// fn 回傳 error 時整個 transaction rollback
func (ledger *MySQLLedger) WithAccountLock(ctx context.Context, ids []string, fn func(tx usecase.LedgerTx) error) error {
	sorted := domain.SortLockIDs(ids)
	err := ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// InnoDB 等鎖上限 (秒)，逾時回傳 1205
		seconds := int(ledger.lockTimeout.Round(time.Second) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		if err := tx.Exec("SET SESSION innodb_lock_wait_timeout = ?", seconds).Error; err != nil {
			return err
		}

		locked := make(map[string]*sqlAccount, len(sorted))
		for _, id := range sorted {
			var row sqlAccount
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", id).
				First(&row).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAccountNotFound
			}
			if err != nil {
				return err
			}
			locked[id] = &row
		}
		return fn(&gormTx{db: tx, locked: locked})
	})
	return translateError(err)
}

// GetAccount 取得帳戶快照
func (ledger *MySQLLedger) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	var row sqlAccount
	err := ledger.client.DB().WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, translateError(err)
	}
	return row.toDomain(), nil
}

// GetAccountByNumber 以帳號取得帳戶快照
func (ledger *MySQLLedger) GetAccountByNumber(ctx context.Context, number string) (domain.Account, error) {
	var row sqlAccount
	err := ledger.client.DB().WithContext(ctx).Where("number = ?", number).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, translateError(err)
	}
	return row.toDomain(), nil
}

// LoadAllAccounts 載入所有帳戶
func (ledger *MySQLLedger) LoadAllAccounts(ctx context.Context) ([]domain.Account, error) {
	var rows []sqlAccount
	if err := ledger.client.DB().WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]domain.Account, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// ListAccountsByOwner 走 owner_ref 索引
func (ledger *MySQLLedger) ListAccountsByOwner(ctx context.Context, ownerRef string) ([]domain.Account, error) {
	var rows []sqlAccount
	err := ledger.client.DB().WithContext(ctx).
		Where("owner_ref = ?", ownerRef).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	out := make([]domain.Account, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// CreateAccount 帳戶與開戶存款在同一個 DB transaction 寫入
func (ledger *MySQLLedger) CreateAccount(ctx context.Context, account domain.Account, opening *domain.Transaction) error {
	err := ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := fromDomainAccount(account)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if opening != nil {
			tran := fromDomainTransaction(opening)
			if err := tx.Create(&tran).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if isDuplicate(err) {
		var existing sqlAccount
		if ledger.client.DB().WithContext(ctx).Where("id = ?", account.ID).First(&existing).Error == nil {
			return domain.ErrAccountAlreadyExists
		}
		return domain.ErrAccountNumberTaken
	}
	return translateError(err)
}

// GetTransaction 取得單筆交易
func (ledger *MySQLLedger) GetTransaction(ctx context.Context, id uuid.UUID) (domain.Transaction, error) {
	var row sqlTransaction
	err := ledger.client.DB().WithContext(ctx).Where("id = ?", id.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	if err != nil {
		return domain.Transaction{}, translateError(err)
	}
	return row.toDomain()
}

// ListTransactions 帳戶交易紀錄 (來源或目的)，依執行時間新到舊
func (ledger *MySQLLedger) ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	query := ledger.client.DB().WithContext(ctx).
		Where("source_account_id = ? OR destination_account_id = ?", accountID, accountID).
		Order("executed_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []sqlTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		tran, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, tran)
	}
	return out, nil
}

// AppendRejected 記錄被拒絕的交易 (不在帳戶鎖範圍內)
func (ledger *MySQLLedger) AppendRejected(ctx context.Context, tran *domain.Transaction) error {
	if tran.Status != domain.TransactionStatusRejected {
		return fmt.Errorf("%w: append rejected with status %q", domain.ErrStorageFault, tran.Status)
	}
	row := fromDomainTransaction(tran)
	err := ledger.client.DB().WithContext(ctx).Create(&row).Error
	if isDuplicate(err) {
		return domain.ErrTransactionAlreadyProcessed
	}
	return translateError(err)
}

// gormTx WithAccountLock 範圍內的存取，locked 為 FOR UPDATE 讀到的資料列
type gormTx struct {
	db      *gorm.DB
	locked  map[string]*sqlAccount
	mutated bool
}

func (t *gormTx) Account(id string) (domain.Account, error) {
	row, ok := t.locked[id]
	if !ok {
		return domain.Account{}, fmt.Errorf("%w: account %s is not locked", domain.ErrStorageFault, id)
	}
	return row.toDomain(), nil
}

// MutateBalances 更新餘額並建立交易紀錄，失敗時由外層 transaction rollback
func (t *gormTx) MutateBalances(deltas map[string]decimal.Decimal, tran *domain.Transaction) error {
	if t.mutated {
		return fmt.Errorf("%w: balances already mutated in this lock scope", domain.ErrStorageFault)
	}
	if tran == nil || tran.Status != domain.TransactionStatusCommitted {
		return fmt.Errorf("%w: transaction must be committed before it is stored", domain.ErrStorageFault)
	}

	for id, delta := range deltas {
		row, ok := t.locked[id]
		if !ok {
			return fmt.Errorf("%w: account %s is not locked", domain.ErrStorageFault, id)
		}
		next := row.Balance.Add(delta)
		if next.IsNegative() {
			return domain.ErrInsufficientFunds
		}
		if !domain.WithinBalanceLimit(next) {
			return domain.ErrBalanceLimitExceeded
		}
		err := t.db.Model(&sqlAccount{}).Where("id = ?", id).Updates(map[string]any{
			"balance":    next,
			"version":    gorm.Expr("version + 1"),
			"updated_at": tran.ExecutedAt,
		}).Error
		if err != nil {
			return err
		}
		row.Balance = next
		row.Version++
		row.UpdatedAt = tran.ExecutedAt
	}

	// 建立交易紀錄
	row := fromDomainTransaction(tran)
	if err := t.db.Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return domain.ErrTransactionAlreadyProcessed
		}
		return err
	}
	t.mutated = true
	return nil
}

func (t *gormTx) SetStatus(id string, status domain.AccountStatus) error {
	row, ok := t.locked[id]
	if !ok {
		return fmt.Errorf("%w: account %s is not locked", domain.ErrStorageFault, id)
	}
	now := time.Now().UTC()
	err := t.db.Model(&sqlAccount{}).Where("id = ?", id).Updates(map[string]any{
		"status":     string(status),
		"version":    gorm.Expr("version + 1"),
		"updated_at": now,
	}).Error
	if err != nil {
		return err
	}
	row.Status = string(status)
	row.Version++
	row.UpdatedAt = now
	return nil
}

// translateError 業務錯誤原樣回傳，等鎖逾時/死結轉為 ErrLockTimeout，其餘包裝為 ErrStorageFault
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsRejection(err) ||
		errors.Is(err, domain.ErrTransactionAlreadyProcessed) ||
		errors.Is(err, domain.ErrStorageFault) ||
		errors.Is(err, domain.ErrLockTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrLockTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && (myErr.Number == errLockWaitTimeout || myErr.Number == errDeadlock) {
		return fmt.Errorf("%w: %w", domain.ErrLockTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageFault, err)
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errDuplicateEntry
}

func (row *sqlAccount) toDomain() domain.Account {
	return domain.Account{
		ID:              row.ID,
		Number:          row.Number,
		Kind:            domain.AccountKind(row.Kind),
		Currency:        domain.Currency(row.Currency),
		Status:          domain.AccountStatus(row.Status),
		Balance:         row.Balance,
		OwnerRef:        row.OwnerRef,
		OpeningFee:      row.OpeningFee,
		WithdrawalLimit: row.WithdrawalLimit,
		Version:         row.Version,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func fromDomainAccount(account domain.Account) sqlAccount {
	return sqlAccount{
		ID:              account.ID,
		Number:          account.Number,
		Kind:            string(account.Kind),
		Currency:        string(account.Currency),
		Status:          string(account.Status),
		Balance:         account.Balance,
		OwnerRef:        account.OwnerRef,
		OpeningFee:      account.OpeningFee,
		WithdrawalLimit: account.WithdrawalLimit,
		Version:         account.Version,
		CreatedAt:       account.CreatedAt,
		UpdatedAt:       account.UpdatedAt,
	}
}

func (row *sqlTransaction) toDomain() (domain.Transaction, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: %w", domain.ErrStorageFault, err)
	}
	tran := domain.Transaction{
		ID:          id,
		Kind:        domain.TransactionKind(row.Kind),
		Amount:      row.Amount,
		Currency:    domain.Currency(row.Currency),
		Status:      domain.TransactionStatus(row.Status),
		Reason:      row.Reason,
		Description: row.Description,
		ExecutedAt:  row.ExecutedAt,
	}
	if row.SourceAccountID != nil {
		tran.SourceAccountID = *row.SourceAccountID
	}
	if row.DestinationAccountID != nil {
		tran.DestinationAccountID = *row.DestinationAccountID
	}
	return tran, nil
}

func fromDomainTransaction(tran *domain.Transaction) sqlTransaction {
	row := sqlTransaction{
		ID:          tran.ID.String(),
		Kind:        string(tran.Kind),
		Amount:      tran.Amount,
		Currency:    string(tran.Currency),
		Status:      string(tran.Status),
		Reason:      tran.Reason,
		Description: tran.Description,
		ExecutedAt:  tran.ExecutedAt,
	}
	if tran.SourceAccountID != "" {
		src := tran.SourceAccountID
		row.SourceAccountID = &src
	}
	if tran.DestinationAccountID != "" {
		dst := tran.DestinationAccountID
		row.DestinationAccountID = &dst
	}
	return row
}

var _ usecase.Ledger = (*MySQLLedger)(nil)
