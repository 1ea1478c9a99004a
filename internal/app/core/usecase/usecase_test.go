package usecase_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

type fixture struct {
	ledger   *memory.MutexLedger
	registry *usecase.AccountRegistry
	engine   *usecase.TransactionEngine
	core     *usecase.CoreUseCase
}

func newFixture(t *testing.T, engineOpts ...usecase.EngineOption) *fixture {
	t.Helper()
	ledger, err := memory.NewMutexLedger(nil)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	registry := usecase.NewAccountRegistry(ledger, log, usecase.WithMinOpeningBalance(decimal.Zero))
	engine := usecase.NewTransactionEngine(ledger, registry, log, engineOpts...)
	return &fixture{
		ledger:   ledger,
		registry: registry,
		engine:   engine,
		core:     usecase.NewCoreUseCase(ledger, registry, engine, usecase.NewReconciler(ledger, log)),
	}
}

func (f *fixture) open(t *testing.T, balance string) domain.Account {
	t.Helper()
	return f.openIn(t, balance, domain.CurrencyFCFA)
}

func (f *fixture) openIn(t *testing.T, balance string, currency domain.Currency) domain.Account {
	t.Helper()
	account, err := f.core.CreateAccount(context.Background(), usecase.CreateAccountRequest{
		Kind:           domain.AccountKindChecking,
		Currency:       currency,
		InitialBalance: decimal.RequireFromString(balance),
		OwnerRef:       "customer-1",
	})
	require.NoError(t, err)
	return account
}

func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	account, err := f.core.ResolveAccount(context.Background(), id)
	require.NoError(t, err)
	return account.Balance
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
