package mysql

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))
	assert.ErrorIs(t, translateError(domain.ErrInsufficientFunds), domain.ErrInsufficientFunds)
	assert.ErrorIs(t, translateError(domain.ErrTransactionAlreadyProcessed), domain.ErrTransactionAlreadyProcessed)

	lockWait := &mysqldriver.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}
	assert.ErrorIs(t, translateError(lockWait), domain.ErrLockTimeout)

	deadlock := fmt.Errorf("update: %w", &mysqldriver.MySQLError{Number: 1213, Message: "Deadlock found"})
	assert.ErrorIs(t, translateError(deadlock), domain.ErrLockTimeout)

	assert.ErrorIs(t, translateError(context.DeadlineExceeded), domain.ErrLockTimeout)
	assert.ErrorIs(t, translateError(context.Canceled), context.Canceled)

	fault := translateError(errors.New("connection refused"))
	assert.ErrorIs(t, fault, domain.ErrStorageFault)
	assert.False(t, domain.IsRejection(fault))
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicate(&mysqldriver.MySQLError{Number: 1062}))
	assert.False(t, isDuplicate(&mysqldriver.MySQLError{Number: 1205}))
	assert.False(t, isDuplicate(nil))
}

func TestTransactionRowConversion(t *testing.T) {
	tran := &domain.Transaction{
		ID:                   uuid.New(),
		Kind:                 domain.TransactionKindDeposit,
		Amount:               decimal.RequireFromString("12.34"),
		Currency:             domain.CurrencyXOF,
		DestinationAccountID: "b",
		Status:               domain.TransactionStatusCommitted,
		ExecutedAt:           time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	row := fromDomainTransaction(tran)
	assert.Nil(t, row.SourceAccountID)
	require.NotNil(t, row.DestinationAccountID)

	back, err := row.toDomain()
	require.NoError(t, err)
	assert.Equal(t, *tran, back)

	row.ID = "not-a-uuid"
	_, err = row.toDomain()
	assert.ErrorIs(t, err, domain.ErrStorageFault)
}
