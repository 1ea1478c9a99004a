package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

func TestReconcileClean(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.open(t, "500")
	b := f.open(t, "0")

	_, err := f.core.Transfer(ctx, usecase.TransferRequest{SourceAccountID: a.ID, DestinationAccountID: b.ID, Amount: amount("120.50")})
	require.NoError(t, err)
	_, err = f.core.Withdraw(ctx, usecase.WithdrawalRequest{AccountID: b.ID, Amount: amount("20.50")})
	require.NoError(t, err)

	found, err := f.core.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestReconcileReportsDiscrepancy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.open(t, "100")
	b := f.open(t, "50")

	// 紀錄為入帳 1，實際餘額卻加了 5
	tran, err := domain.NewTransaction(uuid.Nil, domain.TransactionKindDeposit, "", a.ID, amount("1"), domain.CurrencyFCFA, "")
	require.NoError(t, err)
	require.NoError(t, tran.Commit(time.Now().UTC()))
	err = f.ledger.WithAccountLock(ctx, []string{a.ID}, func(tx usecase.LedgerTx) error {
		return tx.MutateBalances(map[string]decimal.Decimal{a.ID: amount("5")}, tran)
	})
	require.NoError(t, err)

	found, err := f.core.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a.ID, found[0].AccountID)
	assert.Equal(t, a.Number, found[0].Number)
	assert.True(t, found[0].Stored.Equal(amount("105")))
	assert.True(t, found[0].Computed.Equal(amount("101")))
	assert.NotEqual(t, b.ID, found[0].AccountID)
}

func TestComputeBalance(t *testing.T) {
	at := time.Now()
	history := []domain.Transaction{
		{ID: uuid.New(), Kind: domain.TransactionKindDeposit, DestinationAccountID: "a", Amount: amount("100"), Status: domain.TransactionStatusCommitted, ExecutedAt: at},
		{ID: uuid.New(), Kind: domain.TransactionKindTransfer, SourceAccountID: "a", DestinationAccountID: "b", Amount: amount("30"), Status: domain.TransactionStatusCommitted, ExecutedAt: at},
		{ID: uuid.New(), Kind: domain.TransactionKindWithdrawal, SourceAccountID: "a", Amount: amount("500"), Status: domain.TransactionStatusRejected, ExecutedAt: at},
	}

	assert.True(t, usecase.ComputeBalance("a", history).Equal(amount("70")))
	assert.True(t, usecase.ComputeBalance("b", history).Equal(amount("30")))
	assert.True(t, usecase.ComputeBalance("c", history).IsZero())
}
