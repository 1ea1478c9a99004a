package grpc

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// Client LedgerService 的客戶端，錯誤會還原成 domain sentinel
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return nil, fromStatus(err)
	}
	return out, nil
}

func (c *Client) account(ctx context.Context, method string, fields map[string]any) (domain.Account, error) {
	out, err := c.invoke(ctx, method, fields)
	if err != nil {
		return domain.Account{}, err
	}
	return accountFromStruct(out)
}

func (c *Client) transaction(ctx context.Context, method string, fields map[string]any) (domain.Transaction, error) {
	out, err := c.invoke(ctx, method, fields)
	if err != nil {
		return domain.Transaction{}, err
	}
	return transactionFromStruct(out)
}

func (c *Client) OpenAccount(ctx context.Context, req usecase.CreateAccountRequest) (domain.Account, error) {
	return c.account(ctx, MethodOpenAccount, map[string]any{
		fieldKind:           string(req.Kind),
		fieldCurrency:       string(req.Currency),
		fieldInitialBalance: req.InitialBalance.String(),
		fieldOwnerRef:       req.OwnerRef,
	})
}

func (c *Client) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	return c.account(ctx, MethodGetAccount, map[string]any{fieldAccountID: id})
}

func (c *Client) GetAccountByNumber(ctx context.Context, number string) (domain.Account, error) {
	return c.account(ctx, MethodGetAccount, map[string]any{fieldNumber: number})
}

func (c *Client) BlockAccount(ctx context.Context, id string) (domain.Account, error) {
	return c.account(ctx, MethodBlockAccount, map[string]any{fieldAccountID: id})
}

func (c *Client) UnblockAccount(ctx context.Context, id string) (domain.Account, error) {
	return c.account(ctx, MethodUnblockAccount, map[string]any{fieldAccountID: id})
}

func (c *Client) Deposit(ctx context.Context, req usecase.DepositRequest) (domain.Transaction, error) {
	return c.transaction(ctx, MethodDeposit, map[string]any{
		fieldTransactionID: idString(req.TransactionID),
		fieldAccountID:     req.AccountID,
		fieldAmount:        req.Amount.String(),
		fieldCurrency:      string(req.Currency),
		fieldDescription:   req.Description,
	})
}

func (c *Client) Withdraw(ctx context.Context, req usecase.WithdrawalRequest) (domain.Transaction, error) {
	return c.transaction(ctx, MethodWithdraw, map[string]any{
		fieldTransactionID: idString(req.TransactionID),
		fieldAccountID:     req.AccountID,
		fieldAmount:        req.Amount.String(),
		fieldCurrency:      string(req.Currency),
		fieldDescription:   req.Description,
	})
}

func (c *Client) Transfer(ctx context.Context, req usecase.TransferRequest) (domain.Transaction, error) {
	return c.transaction(ctx, MethodTransfer, map[string]any{
		fieldTransactionID:        idString(req.TransactionID),
		fieldSourceAccountID:      req.SourceAccountID,
		fieldDestinationAccountID: req.DestinationAccountID,
		fieldAmount:               req.Amount.String(),
		fieldCurrency:             string(req.Currency),
		fieldDescription:          req.Description,
	})
}

func (c *Client) GetTransaction(ctx context.Context, id uuid.UUID) (domain.Transaction, error) {
	return c.transaction(ctx, MethodGetTransaction, map[string]any{fieldTransactionID: id.String()})
}

func (c *Client) ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	out, err := c.invoke(ctx, MethodListTransactions, map[string]any{
		fieldAccountID: accountID,
		fieldLimit:     limit,
	})
	if err != nil {
		return nil, err
	}
	items := out.GetFields()[fieldTransactions].GetListValue().GetValues()
	history := make([]domain.Transaction, 0, len(items))
	for _, item := range items {
		tran, err := transactionFromStruct(item.GetStructValue())
		if err != nil {
			return nil, err
		}
		history = append(history, tran)
	}
	return history, nil
}

func (c *Client) ListAccounts(ctx context.Context, ownerRef string) ([]domain.Account, error) {
	out, err := c.invoke(ctx, MethodListAccounts, map[string]any{fieldOwnerRef: ownerRef})
	if err != nil {
		return nil, err
	}
	items := out.GetFields()[fieldAccounts].GetListValue().GetValues()
	accounts := make([]domain.Account, 0, len(items))
	for _, item := range items {
		account, err := accountFromStruct(item.GetStructValue())
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Balance 取得帳戶餘額
func (c *Client) Balance(ctx context.Context, id string) (decimal.Decimal, error) {
	account, err := c.GetAccount(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
