package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "bank.v1.Bank"

const (
	MethodNewAccount    = "/" + ServiceName + "/NewAccount"
	MethodGetAccount    = "/" + ServiceName + "/GetAccount"
	MethodDeleteAccount = "/" + ServiceName + "/DeleteAccount"
	MethodListAccounts  = "/" + ServiceName + "/ListAccounts"
	MethodDeposit       = "/" + ServiceName + "/Deposit"
	MethodWithdraw      = "/" + ServiceName + "/Withdraw"
	MethodBalance       = "/" + ServiceName + "/Balance"
)

type BankServer interface {
	NewAccount(context.Context, *AccountReq) (*AccountRes, error)
	GetAccount(context.Context, *AccountReq) (*AccountRes, error)
	DeleteAccount(context.Context, *AccountReq) (*Empty, error)
	ListAccounts(context.Context, *ListReq) (*ListRes, error)
	Deposit(context.Context, *AmountReq) (*Empty, error)
	Withdraw(context.Context, *AmountReq) (*Empty, error)
	Balance(context.Context, *AccountReq) (*BalanceRes, error)
}

// ServiceDesc is written by hand; messages travel with the json codec.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BankServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("NewAccount", BankServer.NewAccount),
		unary("GetAccount", BankServer.GetAccount),
		unary("DeleteAccount", BankServer.DeleteAccount),
		unary("ListAccounts", BankServer.ListAccounts),
		unary("Deposit", BankServer.Deposit),
		unary("Withdraw", BankServer.Withdraw),
		unary("Balance", BankServer.Balance),
	},
	Metadata: "bank/v1/bank.proto",
}

func unary[Req, Res any](name string, call func(BankServer, context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, icpt grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if icpt == nil {
				return call(srv.(BankServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return icpt(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(BankServer), ctx, req.(*Req))
			})
		},
	}
}
