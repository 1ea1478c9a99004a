package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	grpc_pkg "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	log := zaptest.NewLogger(t)

	ledger, err := memory.NewMutexLedger(nil)
	require.NoError(t, err)
	registry := usecase.NewAccountRegistry(ledger, log, usecase.WithMinOpeningBalance(decimal.Zero))
	engine := usecase.NewTransactionEngine(ledger, registry, log)
	core := usecase.NewCoreUseCase(ledger, registry, engine, usecase.NewReconciler(ledger, log))

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(grpc.UnaryInterceptor(grpc_pkg.ServerLoggingInterceptor(log)))
	RegisterLedgerServiceServer(s, NewGrpcServer(core, log))
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	pool := grpc_pkg.NewPool(grpc_pkg.WithInterceptor(grpc_pkg.LoggingInterceptor(log)))
	t.Cleanup(func() { _ = pool.Close() })
	conn, err := pool.GetConnection("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)

	again, err := pool.GetConnection("passthrough:///bufnet")
	require.NoError(t, err)
	require.Same(t, conn, again)

	return NewClient(conn)
}

func open(t *testing.T, c *Client, balance string) domain.Account {
	t.Helper()
	account, err := c.OpenAccount(context.Background(), usecase.CreateAccountRequest{
		Kind:           domain.AccountKindChecking,
		Currency:       domain.CurrencyFCFA,
		InitialBalance: decimal.RequireFromString(balance),
		OwnerRef:       "customer-1",
	})
	require.NoError(t, err)
	return account
}

func TestLedgerServiceRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	a := open(t, c, "500000")
	b := open(t, c, "0")
	assert.Equal(t, domain.AccountStatusActive, a.Status)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(500000)))

	byNumber, err := c.GetAccountByNumber(ctx, a.Number)
	require.NoError(t, err)
	assert.Equal(t, a.ID, byNumber.ID)

	_, err = c.Withdraw(ctx, usecase.WithdrawalRequest{AccountID: a.ID, Amount: decimal.NewFromInt(200000)})
	require.NoError(t, err)

	_, err = c.Withdraw(ctx, usecase.WithdrawalRequest{AccountID: a.ID, Amount: decimal.NewFromInt(400000)})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	id := uuid.New()
	tran, err := c.Transfer(ctx, usecase.TransferRequest{
		TransactionID:        id,
		SourceAccountID:      a.ID,
		DestinationAccountID: b.ID,
		Amount:               decimal.NewFromInt(300000),
		Description:          "rent",
	})
	require.NoError(t, err)
	assert.Equal(t, id, tran.ID)
	assert.Equal(t, domain.TransactionStatusCommitted, tran.Status)
	assert.Equal(t, "rent", tran.Description)

	balanceA, err := c.Balance(ctx, a.ID)
	require.NoError(t, err)
	balanceB, err := c.Balance(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, balanceA.IsZero())
	assert.True(t, balanceB.Equal(decimal.NewFromInt(300000)))

	got, err := c.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(300000)))

	history, err := c.ListTransactions(ctx, a.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	owned, err := c.ListAccounts(ctx, "customer-1")
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	_, err = c.Deposit(ctx, usecase.DepositRequest{AccountID: b.ID, Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
}

func TestLedgerServiceErrors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	a := open(t, c, "10")

	_, err := c.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = c.Deposit(ctx, usecase.DepositRequest{AccountID: a.ID, Amount: decimal.NewFromInt(-50)})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = c.Transfer(ctx, usecase.TransferRequest{SourceAccountID: a.ID, DestinationAccountID: a.ID, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrSameAccountTransfer)

	_, err = c.BlockAccount(ctx, a.ID)
	require.NoError(t, err)
	_, err = c.Deposit(ctx, usecase.DepositRequest{AccountID: a.ID, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrAccountBlocked)

	unblocked, err := c.UnblockAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusActive, unblocked.Status)

	_, err = c.GetTransaction(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	id := uuid.New()
	_, err = c.Deposit(ctx, usecase.DepositRequest{TransactionID: id, AccountID: a.ID, Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	_, err = c.Withdraw(ctx, usecase.WithdrawalRequest{TransactionID: id, AccountID: a.ID, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrTransactionIDConflict)
}

func TestServerRejectsOversizedAmount(t *testing.T) {
	log := zaptest.NewLogger(t)
	ledger, err := memory.NewMutexLedger(nil)
	require.NoError(t, err)
	registry := usecase.NewAccountRegistry(ledger, log, usecase.WithMinOpeningBalance(decimal.Zero))
	engine := usecase.NewTransactionEngine(ledger, registry, log)
	server := NewGrpcServer(usecase.NewCoreUseCase(ledger, registry, engine, usecase.NewReconciler(ledger, log)), log)
	ctx := context.Background()

	account, err := registry.CreateAccount(ctx, usecase.CreateAccountRequest{
		Kind:     domain.AccountKindChecking,
		Currency: domain.CurrencyFCFA,
		OwnerRef: "customer-1",
	})
	require.NoError(t, err)

	for _, raw := range []string{"1e100000000", "1e20", "10000000000000"} {
		req, err := structpb.NewStruct(map[string]any{
			fieldAccountID: account.ID,
			fieldAmount:    raw,
		})
		require.NoError(t, err)
		_, err = server.Deposit(ctx, req)
		assert.Equal(t, codes.InvalidArgument, status.Code(err), raw)
	}

	got, err := registry.ResolveAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{domain.ErrAccountNotFound, codes.NotFound},
		{domain.ErrInsufficientFunds, codes.FailedPrecondition},
		{domain.ErrInvalidAmount, codes.InvalidArgument},
		{domain.ErrTransactionIDConflict, codes.FailedPrecondition},
		{domain.ErrBalanceLimitExceeded, codes.FailedPrecondition},
		{domain.ErrAccountNumberExhausted, codes.ResourceExhausted},
		{fmt.Errorf("%w: %w", domain.ErrLockTimeout, context.DeadlineExceeded), codes.Unavailable},
		{context.Canceled, codes.Canceled},
		{fmt.Errorf("%w: dial tcp 10.0.0.1:3306: refused", domain.ErrStorageFault), codes.Internal},
		{errors.New("unexpected"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			st, ok := status.FromError(toStatus(tt.err))
			require.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
		})
	}

	// 儲存層細節不外洩
	st, _ := status.FromError(toStatus(fmt.Errorf("%w: dial tcp 10.0.0.1:3306: refused", domain.ErrStorageFault)))
	assert.Equal(t, domain.ErrStorageFault.Error(), st.Message())
	assert.ErrorIs(t, fromStatus(st.Err()), domain.ErrStorageFault)
}
