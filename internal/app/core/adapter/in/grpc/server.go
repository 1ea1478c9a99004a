package grpc

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

type GrpcServer struct {
	core   *usecase.CoreUseCase
	logger *zap.Logger
}

func NewGrpcServer(core *usecase.CoreUseCase, logger *zap.Logger) *GrpcServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrpcServer{
		core:   core,
		logger: logger.Named("grpc"),
	}
}

func (s *GrpcServer) OpenAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	initial, err := decimalField(req, fieldInitialBalance)
	if err != nil {
		return nil, toStatus(err)
	}
	account, err := s.core.CreateAccount(ctx, usecase.CreateAccountRequest{
		Kind:           domain.AccountKind(stringField(req, fieldKind)),
		Currency:       domain.Currency(stringField(req, fieldCurrency)),
		InitialBalance: initial,
		OwnerRef:       stringField(req, fieldOwnerRef),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return accountToStruct(account)
}

// GetAccount 以 account_id 或 number 查詢
func (s *GrpcServer) GetAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var (
		account domain.Account
		err     error
	)
	if number := stringField(req, fieldNumber); number != "" {
		account, err = s.core.ResolveByNumber(ctx, number)
	} else {
		account, err = s.core.ResolveAccount(ctx, stringField(req, fieldAccountID))
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return accountToStruct(account)
}

func (s *GrpcServer) BlockAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	account, err := s.core.BlockAccount(ctx, stringField(req, fieldAccountID))
	if err != nil {
		return nil, toStatus(err)
	}
	return accountToStruct(account)
}

func (s *GrpcServer) UnblockAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	account, err := s.core.UnblockAccount(ctx, stringField(req, fieldAccountID))
	if err != nil {
		return nil, toStatus(err)
	}
	return accountToStruct(account)
}

func (s *GrpcServer) Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, amount, err := parseMovement(req)
	if err != nil {
		return nil, err
	}
	tran, err := s.core.Deposit(ctx, usecase.DepositRequest{
		TransactionID: id,
		AccountID:     stringField(req, fieldAccountID),
		Amount:        amount,
		Currency:      domain.Currency(stringField(req, fieldCurrency)),
		Description:   stringField(req, fieldDescription),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return transactionToStruct(tran)
}

func (s *GrpcServer) Withdraw(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, amount, err := parseMovement(req)
	if err != nil {
		return nil, err
	}
	tran, err := s.core.Withdraw(ctx, usecase.WithdrawalRequest{
		TransactionID: id,
		AccountID:     stringField(req, fieldAccountID),
		Amount:        amount,
		Currency:      domain.Currency(stringField(req, fieldCurrency)),
		Description:   stringField(req, fieldDescription),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return transactionToStruct(tran)
}

func (s *GrpcServer) Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, amount, err := parseMovement(req)
	if err != nil {
		return nil, err
	}
	tran, err := s.core.Transfer(ctx, usecase.TransferRequest{
		TransactionID:        id,
		SourceAccountID:      stringField(req, fieldSourceAccountID),
		DestinationAccountID: stringField(req, fieldDestinationAccountID),
		Amount:               amount,
		Currency:             domain.Currency(stringField(req, fieldCurrency)),
		Description:          stringField(req, fieldDescription),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return transactionToStruct(tran)
}

func (s *GrpcServer) GetTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuidField(req, fieldTransactionID)
	if err != nil {
		return nil, err
	}
	tran, err := s.core.GetTransaction(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return transactionToStruct(tran)
}

func (s *GrpcServer) ListTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	history, err := s.core.ListTransactions(ctx, stringField(req, fieldAccountID), intField(req, fieldLimit))
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]any, 0, len(history))
	for _, tran := range history {
		items = append(items, transactionToMap(tran))
	}
	resp, err := structpb.NewStruct(map[string]any{fieldTransactions: items})
	if err != nil {
		s.logger.Error("encode transaction history failed", zap.Error(err))
		return nil, status.Error(codes.Internal, domain.ErrStorageFault.Error())
	}
	return resp, nil
}

// ListAccounts 以 owner_ref 列出帳戶
func (s *GrpcServer) ListAccounts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accounts, err := s.core.ListAccountsByOwner(ctx, stringField(req, fieldOwnerRef))
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]any, 0, len(accounts))
	for _, account := range accounts {
		items = append(items, accountToMap(account))
	}
	resp, err := structpb.NewStruct(map[string]any{fieldAccounts: items})
	if err != nil {
		s.logger.Error("encode account list failed", zap.Error(err))
		return nil, status.Error(codes.Internal, domain.ErrStorageFault.Error())
	}
	return resp, nil
}

// parseMovement 解析共用的 transaction_id / amount 欄位
func parseMovement(req *structpb.Struct) (id uuid.UUID, amount decimal.Decimal, err error) {
	id, err = uuidField(req, fieldTransactionID)
	if err != nil {
		return id, amount, err
	}
	amount, err = decimalField(req, fieldAmount)
	if err != nil {
		return id, amount, toStatus(err)
	}
	return id, amount, nil
}

var _ LedgerServiceServer = (*GrpcServer)(nil)
