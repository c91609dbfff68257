// Package ledger provides an in-memory implementation of domain.Treasury.
// It is the payment backend for standalone mode and for tests; production
// deployments use the Postgres-backed treasury instead.
package ledger

import (
	"context"
	"sync"

	"github.com/oddsworks/bigsmall/internal/domain"
)

// Ledger tracks the house balance and per-account balances in memory. Bettor
// accounts are open-ended sources: Collect never fails on funds, matching the
// model where stake arrives with the bid request itself.
type Ledger struct {
	mu       sync.Mutex
	house    int64
	accounts map[string]int64
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{accounts: make(map[string]int64)}
}

// Balance returns the current house balance.
func (l *Ledger) Balance(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.house, nil
}

// AccountBalance returns the funds credited to a single account.
func (l *Ledger) AccountBalance(account string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[account]
}

// Collect moves amount from the bettor's account into the house account.
func (l *Ledger) Collect(ctx context.Context, from string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[from] -= amount
	l.house += amount
	return nil
}

// Transact runs fn against a staged view of the ledger. Payments made through
// the transaction apply only when fn returns nil.
func (l *Ledger) Transact(ctx context.Context, fn func(tx domain.TreasuryTx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &memTx{house: l.house, credits: make(map[string]int64)}
	if err := fn(tx); err != nil {
		return err
	}

	l.house = tx.house
	for account, amount := range tx.credits {
		l.accounts[account] += amount
	}
	return nil
}

// memTx stages payments against a copy of the house balance.
type memTx struct {
	house   int64
	credits map[string]int64
}

func (tx *memTx) Balance(ctx context.Context) (int64, error) {
	return tx.house, nil
}

func (tx *memTx) Pay(ctx context.Context, to string, amount int64) error {
	if amount > tx.house {
		return domain.ErrInsufficientBalance
	}
	tx.house -= amount
	tx.credits[to] += amount
	return nil
}

// Compile-time interface check.
var _ domain.Treasury = (*Ledger)(nil)
