package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName gRPC 服務名稱
const ServiceName = "ledger.v1.LedgerService"

// 方法名稱
const (
	MethodOpenAccount      = "OpenAccount"
	MethodGetAccount       = "GetAccount"
	MethodListAccounts     = "ListAccounts"
	MethodBlockAccount     = "BlockAccount"
	MethodUnblockAccount   = "UnblockAccount"
	MethodDeposit          = "Deposit"
	MethodWithdraw         = "Withdraw"
	MethodTransfer         = "Transfer"
	MethodGetTransaction   = "GetTransaction"
	MethodListTransactions = "ListTransactions"
)

// LedgerServiceServer 所有方法的 request / response 皆為 structpb.Struct
type LedgerServiceServer interface {
	OpenAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListAccounts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	BlockAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UnblockAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Withdraw(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv LedgerServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// unaryHandler 將 LedgerServiceServer 的方法包成 grpc.MethodHandler
func unaryHandler(method string, call unaryCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// FullMethod 組出 "/service/method"
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ServiceDesc LedgerService 的服務描述
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodOpenAccount, Handler: unaryHandler(MethodOpenAccount, LedgerServiceServer.OpenAccount)},
		{MethodName: MethodGetAccount, Handler: unaryHandler(MethodGetAccount, LedgerServiceServer.GetAccount)},
		{MethodName: MethodListAccounts, Handler: unaryHandler(MethodListAccounts, LedgerServiceServer.ListAccounts)},
		{MethodName: MethodBlockAccount, Handler: unaryHandler(MethodBlockAccount, LedgerServiceServer.BlockAccount)},
		{MethodName: MethodUnblockAccount, Handler: unaryHandler(MethodUnblockAccount, LedgerServiceServer.UnblockAccount)},
		{MethodName: MethodDeposit, Handler: unaryHandler(MethodDeposit, LedgerServiceServer.Deposit)},
		{MethodName: MethodWithdraw, Handler: unaryHandler(MethodWithdraw, LedgerServiceServer.Withdraw)},
		{MethodName: MethodTransfer, Handler: unaryHandler(MethodTransfer, LedgerServiceServer.Transfer)},
		{MethodName: MethodGetTransaction, Handler: unaryHandler(MethodGetTransaction, LedgerServiceServer.GetTransaction)},
		{MethodName: MethodListTransactions, Handler: unaryHandler(MethodListTransactions, LedgerServiceServer.ListTransactions)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.proto",
}

// RegisterLedgerServiceServer 註冊到 grpc.Server
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
