package usecase

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Discrepancy 帳戶餘額與交易紀錄不一致
type Discrepancy struct {
	AccountID string
	Number    string
	Stored    decimal.Decimal
	Computed  decimal.Decimal
}

// Reconciler 以已提交的交易紀錄重算每個帳戶餘額，與儲存的餘額比對
type Reconciler struct {
	ledger Ledger
	logger *zap.Logger
}

// NewReconciler 建立 Reconciler
func NewReconciler(ledger Ledger, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		ledger: ledger,
		logger: logger.Named("reconcile"),
	}
}

// Run 逐一鎖定帳戶並比對，回傳所有不一致的帳戶
func (r *Reconciler) Run(ctx context.Context) ([]Discrepancy, error) {
	accounts, err := r.ledger.LoadAllAccounts(ctx)
	if err != nil {
		r.logger.Error("load accounts failed", zap.Error(err))
		return nil, err
	}

	var found []Discrepancy
	for _, snapshot := range accounts {
		var d *Discrepancy
		err := r.ledger.WithAccountLock(ctx, []string{snapshot.ID}, func(tx LedgerTx) error {
			account, err := tx.Account(snapshot.ID)
			if err != nil {
				return err
			}
			history, err := r.ledger.ListTransactions(ctx, account.ID, 0)
			if err != nil {
				return err
			}
			computed := ComputeBalance(account.ID, history)
			if !computed.Equal(account.Balance) {
				d = &Discrepancy{
					AccountID: account.ID,
					Number:    account.Number,
					Stored:    account.Balance,
					Computed:  computed,
				}
			}
			return nil
		})
		if err != nil {
			r.logger.Error("reconcile account failed", zap.String("account_id", snapshot.ID), zap.Error(err))
			return found, err
		}
		if d != nil {
			r.logger.Error("balance diverged from history",
				zap.String("account_id", d.AccountID),
				zap.String("stored", d.Stored.String()),
				zap.String("computed", d.Computed.String()),
			)
			found = append(found, *d)
		}
	}

	r.logger.Info("reconcile finished", zap.Int("accounts", len(accounts)), zap.Int("discrepancies", len(found)))
	return found, nil
}

// ComputeBalance 已提交交易的入帳總和減出帳總和
func ComputeBalance(accountID string, history []domain.Transaction) decimal.Decimal {
	balance := decimal.Zero
	for i := range history {
		if history[i].Status != domain.TransactionStatusCommitted {
			continue
		}
		if delta, ok := history[i].Deltas()[accountID]; ok {
			balance = balance.Add(delta)
		}
	}
	return balance
}
