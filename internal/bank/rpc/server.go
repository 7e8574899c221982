package rpc

import (
	"context"

	"google.golang.org/grpc"
	"gopherbazaar.com/internal/bank"
)

// Server exposes a bank.Service over grpc.
type Server struct {
	svc bank.Service
}

func NewServer(svc bank.Service) *Server {
	return &Server{svc: svc}
}

// Register attaches s to gs.
func (s *Server) Register(gs grpc.ServiceRegistrar) {
	gs.RegisterService(&ServiceDesc, s)
}

func (s *Server) NewAccount(ctx context.Context, in *AccountReq) (*AccountRes, error) {
	acc, err := s.svc.NewAccount(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	return &AccountRes{ID: acc.ID()}, nil
}

func (s *Server) GetAccount(ctx context.Context, in *AccountReq) (*AccountRes, error) {
	acc, err := s.svc.Lookup(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	return &AccountRes{ID: acc.ID()}, nil
}

func (s *Server) DeleteAccount(ctx context.Context, in *AccountReq) (*Empty, error) {
	if err := s.svc.DeleteAccount(ctx, in.ID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *Server) ListAccounts(ctx context.Context, _ *ListReq) (*ListRes, error) {
	ids, err := s.svc.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	return &ListRes{IDs: ids}, nil
}

func (s *Server) Deposit(ctx context.Context, in *AmountReq) (*Empty, error) {
	acc, err := s.svc.Lookup(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if err := acc.Deposit(ctx, in.Amount); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *Server) Withdraw(ctx context.Context, in *AmountReq) (*Empty, error) {
	acc, err := s.svc.Lookup(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if err := acc.Withdraw(ctx, in.Amount); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *Server) Balance(ctx context.Context, in *AccountReq) (*BalanceRes, error) {
	acc, err := s.svc.Lookup(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	bal, err := acc.Balance(ctx)
	if err != nil {
		return nil, err
	}
	return &BalanceRes{ID: in.ID, Balance: bal}, nil
}
