package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransaction(t *testing.T) {
	tran, err := NewTransaction(uuid.Nil, TransactionKindDeposit, "", "b", decimal.NewFromInt(10), CurrencyFCFA, "salary")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tran.ID)
	assert.Equal(t, TransactionStatusPending, tran.Status)
	assert.True(t, tran.ExecutedAt.IsZero())

	id := uuid.New()
	tran, err = NewTransaction(id, TransactionKindDeposit, "", "b", decimal.NewFromInt(10), CurrencyFCFA, "")
	require.NoError(t, err)
	assert.Equal(t, id, tran.ID)

	_, err = NewTransaction(uuid.Nil, TransactionKindDeposit, "", "b", decimal.NewFromInt(-50), CurrencyFCFA, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = NewTransaction(uuid.Nil, TransactionKindDeposit, "", "b", decimal.NewFromInt(1), CurrencyFCFA, strings.Repeat("é", MaxDescriptionLength+1))
	assert.ErrorIs(t, err, ErrDescriptionTooLong)
}

func TestTransactionStateMachine(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tran, err := NewTransaction(uuid.Nil, TransactionKindWithdrawal, "a", "", decimal.NewFromInt(5), CurrencyFCFA, "")
	require.NoError(t, err)
	require.NoError(t, tran.Commit(at))
	assert.Equal(t, TransactionStatusCommitted, tran.Status)
	assert.Equal(t, at, tran.ExecutedAt)

	assert.ErrorIs(t, tran.Commit(at), ErrTransactionFinalized)
	assert.ErrorIs(t, tran.Reject(at, ErrInsufficientFunds), ErrTransactionFinalized)

	rejected, err := NewTransaction(uuid.Nil, TransactionKindWithdrawal, "a", "", decimal.NewFromInt(5), CurrencyFCFA, "")
	require.NoError(t, err)
	require.NoError(t, rejected.Reject(at, ErrInsufficientFunds))
	assert.Equal(t, TransactionStatusRejected, rejected.Status)
	assert.Equal(t, ErrInsufficientFunds.Error(), rejected.Reason)
	assert.ErrorIs(t, rejected.Commit(at), ErrTransactionFinalized)
}

func TestTransactionDeltas(t *testing.T) {
	amount := decimal.NewFromInt(300000)

	deposit := Transaction{Kind: TransactionKindDeposit, DestinationAccountID: "b", Amount: amount}
	assert.Equal(t, map[string]decimal.Decimal{"b": amount}, deposit.Deltas())

	withdrawal := Transaction{Kind: TransactionKindWithdrawal, SourceAccountID: "a", Amount: amount}
	assert.Equal(t, map[string]decimal.Decimal{"a": amount.Neg()}, withdrawal.Deltas())

	transfer := Transaction{Kind: TransactionKindTransfer, SourceAccountID: "a", DestinationAccountID: "b", Amount: amount}
	deltas := transfer.Deltas()
	assert.True(t, deltas["a"].Add(deltas["b"]).IsZero())
	assert.True(t, transfer.Involves("a"))
	assert.False(t, transfer.Involves("c"))
}

func TestGetLockIDsSorted(t *testing.T) {
	ab := Transaction{Kind: TransactionKindTransfer, SourceAccountID: "b", DestinationAccountID: "a"}
	ba := Transaction{Kind: TransactionKindTransfer, SourceAccountID: "a", DestinationAccountID: "b"}
	assert.Equal(t, []string{"a", "b"}, ab.GetLockIDs())
	assert.Equal(t, ab.GetLockIDs(), ba.GetLockIDs())

	assert.Equal(t, []string{"a", "c"}, SortLockIDs([]string{"c", "", "a", "c"}))
}
