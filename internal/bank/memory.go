package bank

import (
	"context"
	"slices"
	"sync"

	"github.com/shopspring/decimal"
)

// Memory is an in-process ledger.
type Memory struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[string]decimal.Decimal)}
}

func (m *Memory) NewAccount(_ context.Context, id string) (Account, error) {
	if err := CheckID(id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[id]; ok {
		return nil, ErrExists
	}
	m.balances[id] = decimal.Zero
	return &memAccount{m: m, id: id}, nil
}

func (m *Memory) Lookup(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[id]; !ok {
		return nil, ErrNotFound
	}
	return &memAccount{m: m, id: id}, nil
}

func (m *Memory) DeleteAccount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[id]; !ok {
		return ErrNotFound
	}
	delete(m.balances, id)
	return nil
}

func (m *Memory) ListAccounts(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.balances))
	for id := range m.balances {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

type memAccount struct {
	m  *Memory
	id string
}

func (a *memAccount) ID() string { return a.id }

func (a *memAccount) Withdraw(_ context.Context, amount decimal.Decimal) error {
	if err := CheckAmount(amount); err != nil {
		return err
	}
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	bal, ok := a.m.balances[a.id]
	if !ok {
		return ErrNotFound
	}
	if bal.LessThan(amount) {
		return ErrRejected
	}
	a.m.balances[a.id] = bal.Sub(amount)
	return nil
}

func (a *memAccount) Deposit(_ context.Context, amount decimal.Decimal) error {
	if err := CheckAmount(amount); err != nil {
		return err
	}
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	bal, ok := a.m.balances[a.id]
	if !ok {
		return ErrNotFound
	}
	a.m.balances[a.id] = bal.Add(amount)
	return nil
}

func (a *memAccount) Balance(context.Context) (decimal.Decimal, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	bal, ok := a.m.balances[a.id]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	return bal, nil
}
