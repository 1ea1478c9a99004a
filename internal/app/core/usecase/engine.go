package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// DepositRequest 存款請求
type DepositRequest struct {
	// TransactionID 呼叫端指定的冪等鍵，uuid.Nil 表示由系統產生
	TransactionID uuid.UUID
	AccountID     string
	Amount        decimal.Decimal
	// Currency 空值表示使用帳戶幣別
	Currency    domain.Currency
	Description string
}

// WithdrawalRequest 提款請求
type WithdrawalRequest struct {
	TransactionID uuid.UUID
	AccountID     string
	Amount        decimal.Decimal
	Currency      domain.Currency
	Description   string
}

// TransferRequest 轉帳請求
type TransferRequest struct {
	TransactionID        uuid.UUID
	SourceAccountID      string
	DestinationAccountID string
	Amount               decimal.Decimal
	Currency             domain.Currency
	Description          string
}

// TransactionEngine 以原子單位執行存款、提款、轉帳
//
// 流程: Registry 解析帳戶 -> Balance Policy 准入 -> Ledger 鎖定帳戶後重新准入 -> MutateBalances
type TransactionEngine struct {
	ledger          Ledger
	registry        *AccountRegistry
	logger          *zap.Logger
	auditRejections bool
	now             func() time.Time
}

// EngineOption 設定 TransactionEngine
type EngineOption func(*TransactionEngine)

// WithRejectionAudit 被拒絕的交易也寫入紀錄 (status=rejected)
func WithRejectionAudit(enabled bool) EngineOption {
	return func(e *TransactionEngine) {
		e.auditRejections = enabled
	}
}

// WithEngineClock 替換時間來源
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *TransactionEngine) {
		e.now = now
	}
}

// NewTransactionEngine 建立 TransactionEngine
func NewTransactionEngine(ledger Ledger, registry *AccountRegistry, logger *zap.Logger, opts ...EngineOption) *TransactionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &TransactionEngine{
		ledger:   ledger,
		registry: registry,
		logger:   logger.Named("engine"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Deposit 存款
func (e *TransactionEngine) Deposit(ctx context.Context, req DepositRequest) (domain.Transaction, error) {
	amount, err := domain.NormalizeAmount(req.Amount)
	if err != nil {
		return domain.Transaction{}, err
	}
	target, err := e.registry.ResolveAccount(ctx, req.AccountID)
	if err != nil {
		return domain.Transaction{}, err
	}
	currency := requestCurrency(req.Currency, target.Currency)
	tran, err := domain.NewTransaction(req.TransactionID, domain.TransactionKindDeposit, "", target.ID, amount, currency, req.Description)
	if err != nil {
		return domain.Transaction{}, err
	}
	if done, ok, err := e.lookupCommitted(ctx, req.TransactionID, tran); err != nil || ok {
		return done, err
	}
	if err := domain.AdmitCredit(target, amount, currency); err != nil {
		return domain.Transaction{}, e.reject(ctx, tran, err)
	}
	return e.execute(ctx, tran)
}

// Withdraw 提款，餘額不足時不做任何部分扣款
func (e *TransactionEngine) Withdraw(ctx context.Context, req WithdrawalRequest) (domain.Transaction, error) {
	amount, err := domain.NormalizeAmount(req.Amount)
	if err != nil {
		return domain.Transaction{}, err
	}
	source, err := e.registry.ResolveAccount(ctx, req.AccountID)
	if err != nil {
		return domain.Transaction{}, err
	}
	currency := requestCurrency(req.Currency, source.Currency)
	tran, err := domain.NewTransaction(req.TransactionID, domain.TransactionKindWithdrawal, source.ID, "", amount, currency, req.Description)
	if err != nil {
		return domain.Transaction{}, err
	}
	if done, ok, err := e.lookupCommitted(ctx, req.TransactionID, tran); err != nil || ok {
		return done, err
	}
	if err := domain.AdmitDebit(source, amount, currency); err != nil {
		return domain.Transaction{}, e.reject(ctx, tran, err)
	}
	return e.execute(ctx, tran)
}

// Transfer 轉帳，扣款與入帳為同一筆交易紀錄、同一原子單位
func (e *TransactionEngine) Transfer(ctx context.Context, req TransferRequest) (domain.Transaction, error) {
	amount, err := domain.NormalizeAmount(req.Amount)
	if err != nil {
		return domain.Transaction{}, err
	}
	source, err := e.registry.ResolveAccount(ctx, req.SourceAccountID)
	if err != nil {
		return domain.Transaction{}, err
	}
	destination, err := e.registry.ResolveAccount(ctx, req.DestinationAccountID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if source.ID == destination.ID {
		return domain.Transaction{}, domain.ErrSameAccountTransfer
	}

	currency := requestCurrency(req.Currency, source.Currency)
	tran, err := domain.NewTransaction(req.TransactionID, domain.TransactionKindTransfer, source.ID, destination.ID, amount, currency, req.Description)
	if err != nil {
		return domain.Transaction{}, err
	}
	if done, ok, err := e.lookupCommitted(ctx, req.TransactionID, tran); err != nil || ok {
		return done, err
	}
	if err := admitTransfer(source, destination, amount, currency); err != nil {
		return domain.Transaction{}, e.reject(ctx, tran, err)
	}
	return e.execute(ctx, tran)
}

// execute 鎖定帳戶 -> 以最新狀態重新准入 -> 提交
func (e *TransactionEngine) execute(ctx context.Context, tran *domain.Transaction) (domain.Transaction, error) {
	var committed domain.Transaction
	err := e.ledger.WithAccountLock(ctx, tran.GetLockIDs(), func(tx LedgerTx) error {
		if err := admitLocked(tx, tran); err != nil {
			return err
		}
		committed = *tran
		if err := committed.Commit(e.now().UTC()); err != nil {
			return err
		}
		return tx.MutateBalances(committed.Deltas(), &committed)
	})

	switch {
	case err == nil:
		e.logger.Debug("transaction committed",
			zap.String("transaction_id", committed.ID.String()),
			zap.String("kind", string(committed.Kind)),
			zap.String("amount", committed.Amount.String()),
		)
		return committed, nil
	case errors.Is(err, domain.ErrTransactionAlreadyProcessed):
		return e.existing(ctx, tran)
	case domain.IsRejection(err):
		return domain.Transaction{}, e.reject(ctx, tran, err)
	default:
		e.logger.Error("transaction failed",
			zap.String("transaction_id", tran.ID.String()),
			zap.String("kind", string(tran.Kind)),
			zap.Strings("accounts", tran.GetLockIDs()),
			zap.Error(err),
		)
		return domain.Transaction{}, err
	}
}

// reject 回傳拒絕原因；啟用稽核時另寫一筆 rejected 紀錄 (失敗只記 log)
func (e *TransactionEngine) reject(ctx context.Context, tran *domain.Transaction, reason error) error {
	e.logger.Debug("transaction rejected",
		zap.String("transaction_id", tran.ID.String()),
		zap.String("kind", string(tran.Kind)),
		zap.String("reason", reason.Error()),
	)
	if !e.auditRejections {
		return reason
	}

	// 稽核紀錄使用新的 ID，呼叫端的冪等鍵保留給成功的提交
	audit := *tran
	audit.ID = uuid.New()
	if err := audit.Reject(e.now().UTC(), reason); err != nil {
		return reason
	}
	if err := e.ledger.AppendRejected(ctx, &audit); err != nil {
		e.logger.Warn("append rejected transaction failed",
			zap.String("transaction_id", audit.ID.String()),
			zap.Error(err),
		)
	}
	return reason
}

// lookupCommitted 冪等檢查: 相同 ID 已提交且內容一致則直接回傳，內容不同則拒絕
func (e *TransactionEngine) lookupCommitted(ctx context.Context, id uuid.UUID, want *domain.Transaction) (domain.Transaction, bool, error) {
	if id == uuid.Nil {
		return domain.Transaction{}, false, nil
	}
	tran, err := e.ledger.GetTransaction(ctx, id)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return domain.Transaction{}, false, nil
	}
	if err != nil {
		return domain.Transaction{}, false, err
	}
	if !sameRequest(tran, want) {
		return domain.Transaction{}, false, domain.ErrTransactionIDConflict
	}
	return tran, tran.Status == domain.TransactionStatusCommitted, nil
}

func (e *TransactionEngine) existing(ctx context.Context, want *domain.Transaction) (domain.Transaction, error) {
	tran, err := e.ledger.GetTransaction(ctx, want.ID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if !sameRequest(tran, want) {
		return domain.Transaction{}, domain.ErrTransactionIDConflict
	}
	return tran, nil
}

// sameRequest 重送的請求必須與已存紀錄的類型、帳戶、金額、幣別一致
func sameRequest(stored domain.Transaction, want *domain.Transaction) bool {
	return stored.Kind == want.Kind &&
		stored.SourceAccountID == want.SourceAccountID &&
		stored.DestinationAccountID == want.DestinationAccountID &&
		stored.Amount.Equal(want.Amount) &&
		stored.Currency == want.Currency
}

func admitLocked(tx LedgerTx, tran *domain.Transaction) error {
	switch tran.Kind {
	case domain.TransactionKindDeposit:
		target, err := tx.Account(tran.DestinationAccountID)
		if err != nil {
			return err
		}
		return domain.AdmitCredit(target, tran.Amount, tran.Currency)
	case domain.TransactionKindWithdrawal:
		source, err := tx.Account(tran.SourceAccountID)
		if err != nil {
			return err
		}
		return domain.AdmitDebit(source, tran.Amount, tran.Currency)
	case domain.TransactionKindTransfer:
		source, err := tx.Account(tran.SourceAccountID)
		if err != nil {
			return err
		}
		destination, err := tx.Account(tran.DestinationAccountID)
		if err != nil {
			return err
		}
		return admitTransfer(source, destination, tran.Amount, tran.Currency)
	}
	return domain.ErrInvalidTransactionKind
}

func admitTransfer(source, destination domain.Account, amount decimal.Decimal, currency domain.Currency) error {
	if destination.Currency != source.Currency {
		return domain.ErrCurrencyMismatch
	}
	if err := domain.AdmitDebit(source, amount, currency); err != nil {
		return err
	}
	return domain.AdmitCredit(destination, amount, currency)
}

func requestCurrency(requested, account domain.Currency) domain.Currency {
	if requested == "" {
		return account
	}
	return requested
}
