package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// CoreUseCase 是核心業務邏輯層，提供給傳輸層呼叫的窄介面
type CoreUseCase struct {
	ledger     Ledger
	registry   *AccountRegistry
	engine     *TransactionEngine
	reconciler *Reconciler
}

func NewCoreUseCase(ledger Ledger, registry *AccountRegistry, engine *TransactionEngine, reconciler *Reconciler) *CoreUseCase {
	return &CoreUseCase{
		ledger:     ledger,
		registry:   registry,
		engine:     engine,
		reconciler: reconciler,
	}
}

// Deposit 存款
func (c *CoreUseCase) Deposit(ctx context.Context, req DepositRequest) (domain.Transaction, error) {
	return c.engine.Deposit(ctx, req)
}

// Withdraw 提款
func (c *CoreUseCase) Withdraw(ctx context.Context, req WithdrawalRequest) (domain.Transaction, error) {
	return c.engine.Withdraw(ctx, req)
}

// Transfer 轉帳
func (c *CoreUseCase) Transfer(ctx context.Context, req TransferRequest) (domain.Transaction, error) {
	return c.engine.Transfer(ctx, req)
}

// ResolveAccount 取得帳戶
func (c *CoreUseCase) ResolveAccount(ctx context.Context, id string) (domain.Account, error) {
	return c.registry.ResolveAccount(ctx, id)
}

// ResolveByNumber 以帳號取得帳戶
func (c *CoreUseCase) ResolveByNumber(ctx context.Context, number string) (domain.Account, error) {
	return c.registry.ResolveByNumber(ctx, number)
}

// ListAccountsByOwner 持有人名下的帳戶
func (c *CoreUseCase) ListAccountsByOwner(ctx context.Context, ownerRef string) ([]domain.Account, error) {
	return c.registry.ListByOwner(ctx, ownerRef)
}

// CreateAccount 開戶
func (c *CoreUseCase) CreateAccount(ctx context.Context, req CreateAccountRequest) (domain.Account, error) {
	return c.registry.CreateAccount(ctx, req)
}

// BlockAccount 凍結帳戶
func (c *CoreUseCase) BlockAccount(ctx context.Context, id string) (domain.Account, error) {
	return c.registry.BlockAccount(ctx, id)
}

// UnblockAccount 解除凍結
func (c *CoreUseCase) UnblockAccount(ctx context.Context, id string) (domain.Account, error) {
	return c.registry.UnblockAccount(ctx, id)
}

// GetTransaction 取得單筆交易
func (c *CoreUseCase) GetTransaction(ctx context.Context, id uuid.UUID) (domain.Transaction, error) {
	return c.ledger.GetTransaction(ctx, id)
}

// ListTransactions 帳戶交易紀錄，新到舊
func (c *CoreUseCase) ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	if _, err := c.registry.ResolveAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return c.ledger.ListTransactions(ctx, accountID, limit)
}

// Reconcile 比對餘額與交易紀錄
func (c *CoreUseCase) Reconcile(ctx context.Context) ([]Discrepancy, error) {
	return c.reconciler.Run(ctx)
}
