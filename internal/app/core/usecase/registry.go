package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

const (
	// DefaultNumberAttempts 帳號碰撞時的重試上限
	DefaultNumberAttempts = 5

	numberSuffixLength = 4
	numberAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// DefaultMinOpeningBalance 最低開戶金額
var DefaultMinOpeningBalance = decimal.NewFromInt(10000)

// NumberGenerator 產生帳號候選
type NumberGenerator func(kind domain.AccountKind, now time.Time) (string, error)

// CreateAccountRequest 開戶請求
type CreateAccountRequest struct {
	Kind           domain.AccountKind
	Currency       domain.Currency
	InitialBalance decimal.Decimal
	OwnerRef       string
}

// AccountRegistry 負責帳戶的建立與查詢
type AccountRegistry struct {
	ledger     Ledger
	logger     *zap.Logger
	minOpening decimal.Decimal
	attempts   int
	numberGen  NumberGenerator
	now        func() time.Time
}

// RegistryOption 設定 AccountRegistry
type RegistryOption func(*AccountRegistry)

// WithMinOpeningBalance 設定最低開戶金額
func WithMinOpeningBalance(amount decimal.Decimal) RegistryOption {
	return func(r *AccountRegistry) {
		r.minOpening = amount
	}
}

// WithNumberAttempts 設定帳號產生重試次數
func WithNumberAttempts(n int) RegistryOption {
	return func(r *AccountRegistry) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithNumberGenerator 替換帳號產生器
func WithNumberGenerator(gen NumberGenerator) RegistryOption {
	return func(r *AccountRegistry) {
		r.numberGen = gen
	}
}

// WithRegistryClock 替換時間來源
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *AccountRegistry) {
		r.now = now
	}
}

// NewAccountRegistry 建立 AccountRegistry
func NewAccountRegistry(ledger Ledger, logger *zap.Logger, opts ...RegistryOption) *AccountRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &AccountRegistry{
		ledger:     ledger,
		logger:     logger.Named("registry"),
		minOpening: DefaultMinOpeningBalance,
		attempts:   DefaultNumberAttempts,
		numberGen:  GenerateAccountNumber,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveAccount 以 ID 取得帳戶快照
func (r *AccountRegistry) ResolveAccount(ctx context.Context, id string) (domain.Account, error) {
	account, err := r.ledger.GetAccount(ctx, id)
	if err != nil {
		r.logInfraError("resolve account failed", err, zap.String("account_id", id))
		return domain.Account{}, err
	}
	return account, nil
}

// ResolveByNumber 以帳號取得帳戶快照
func (r *AccountRegistry) ResolveByNumber(ctx context.Context, number string) (domain.Account, error) {
	account, err := r.ledger.GetAccountByNumber(ctx, number)
	if err != nil {
		r.logInfraError("resolve account by number failed", err, zap.String("number", number))
		return domain.Account{}, err
	}
	return account, nil
}

// ListByOwner 持有人名下的所有帳戶
func (r *AccountRegistry) ListByOwner(ctx context.Context, ownerRef string) ([]domain.Account, error) {
	if ownerRef == "" {
		return nil, domain.ErrOwnerRequired
	}
	accounts, err := r.ledger.ListAccountsByOwner(ctx, ownerRef)
	if err != nil {
		r.logInfraError("list accounts by owner failed", err, zap.String("owner_ref", ownerRef))
		return nil, err
	}
	return accounts, nil
}

// AssertActive 交易前的狀態閘門
func (r *AccountRegistry) AssertActive(account domain.Account) error {
	return account.AssertActive()
}

// CreateAccount 開戶
//
// 流程:
//
//	1. 驗證類型、幣別、持有人與開戶金額
//	2. 產生帳號，碰撞時重試，超過上限回傳 ErrAccountNumberExhausted
//	3. 帳戶與開戶存款在同一原子單位寫入
func (r *AccountRegistry) CreateAccount(ctx context.Context, req CreateAccountRequest) (domain.Account, error) {
	if !req.Kind.Valid() {
		return domain.Account{}, domain.ErrInvalidAccountKind
	}
	if !req.Currency.Valid() {
		return domain.Account{}, domain.ErrInvalidCurrency
	}
	if req.OwnerRef == "" {
		return domain.Account{}, domain.ErrOwnerRequired
	}
	if req.InitialBalance.IsNegative() || !domain.WithinBalanceLimit(req.InitialBalance) ||
		!req.InitialBalance.Truncate(domain.AmountScale).Equal(req.InitialBalance) {
		return domain.Account{}, domain.ErrInvalidAmount
	}
	if req.InitialBalance.LessThan(r.minOpening) {
		return domain.Account{}, domain.ErrOpeningBalanceTooLow
	}

	for attempt := 1; attempt <= r.attempts; attempt++ {
		now := r.now().UTC()
		number, err := r.numberGen(req.Kind, now)
		if err != nil {
			return domain.Account{}, err
		}

		account := domain.Account{
			ID:              uuid.NewString(),
			Number:          number,
			Kind:            req.Kind,
			Currency:        req.Currency,
			Status:          domain.AccountStatusActive,
			Balance:         req.InitialBalance,
			OwnerRef:        req.OwnerRef,
			OpeningFee:      req.Kind.OpeningFee(),
			WithdrawalLimit: req.Kind.WithdrawalLimit(),
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		var opening *domain.Transaction
		if req.InitialBalance.IsPositive() {
			opening, err = domain.NewTransaction(uuid.Nil, domain.TransactionKindDeposit, "", account.ID,
				req.InitialBalance, req.Currency, "opening deposit")
			if err != nil {
				return domain.Account{}, err
			}
			if err := opening.Commit(now); err != nil {
				return domain.Account{}, err
			}
		}

		err = r.ledger.CreateAccount(ctx, account, opening)
		if err == nil {
			r.logger.Info("account created",
				zap.String("account_id", account.ID),
				zap.String("number", account.Number),
				zap.String("kind", string(account.Kind)),
				zap.String("currency", string(account.Currency)),
			)
			return account, nil
		}
		if !errors.Is(err, domain.ErrAccountNumberTaken) {
			r.logInfraError("create account failed", err, zap.String("number", number))
			return domain.Account{}, err
		}
		r.logger.Debug("account number collision", zap.String("number", number), zap.Int("attempt", attempt))
	}
	return domain.Account{}, domain.ErrAccountNumberExhausted
}

// BlockAccount 凍結帳戶
func (r *AccountRegistry) BlockAccount(ctx context.Context, id string) (domain.Account, error) {
	return r.setStatus(ctx, id, domain.AccountStatusBlocked)
}

// UnblockAccount 解除凍結
func (r *AccountRegistry) UnblockAccount(ctx context.Context, id string) (domain.Account, error) {
	return r.setStatus(ctx, id, domain.AccountStatusActive)
}

func (r *AccountRegistry) setStatus(ctx context.Context, id string, status domain.AccountStatus) (domain.Account, error) {
	var updated domain.Account
	err := r.ledger.WithAccountLock(ctx, []string{id}, func(tx LedgerTx) error {
		if err := tx.SetStatus(id, status); err != nil {
			return err
		}
		account, err := tx.Account(id)
		if err != nil {
			return err
		}
		updated = account
		return nil
	})
	if err != nil {
		r.logInfraError("set account status failed", err, zap.String("account_id", id))
		return domain.Account{}, err
	}
	r.logger.Info("account status changed", zap.String("account_id", id), zap.String("status", string(status)))
	return updated, nil
}

func (r *AccountRegistry) logInfraError(msg string, err error, fields ...zap.Field) {
	if domain.IsInfrastructure(err) {
		r.logger.Error(msg, append(fields, zap.Error(err))...)
	}
}

// GenerateAccountNumber 前綴 2 碼 + yymmddHHMMSS + 4 碼隨機英數
func GenerateAccountNumber(kind domain.AccountKind, now time.Time) (string, error) {
	suffix := make([]byte, numberSuffixLength)
	alphabetSize := big.NewInt(int64(len(numberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		suffix[i] = numberAlphabet[n.Int64()]
	}
	return kind.NumberPrefix() + now.Format("060102150405") + string(suffix), nil
}
