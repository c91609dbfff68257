package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddsworks/bigsmall/internal/domain"
)

// houseAccount is the account that holds collected stakes and retained fees.
const houseAccount = "house"

// Treasury implements domain.Treasury on the accounts table. Transact maps
// onto a database transaction with the house row locked, so a batch of
// payments commits or rolls back as one unit.
type Treasury struct {
	pool *pgxpool.Pool
}

// NewTreasury creates a Treasury backed by the given connection pool.
func NewTreasury(pool *pgxpool.Pool) *Treasury {
	return &Treasury{pool: pool}
}

// Balance returns the house balance. A missing row means no funds have ever
// been collected.
func (t *Treasury) Balance(ctx context.Context) (int64, error) {
	var balance int64
	err := t.pool.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE account = $1`, houseAccount,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: house balance: %w", err)
	}
	return balance, nil
}

// Collect moves amount from the bettor's account into the house account.
func (t *Treasury) Collect(ctx context.Context, from string, amount int64) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin collect: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := adjust(ctx, tx, from, -amount); err != nil {
		return fmt.Errorf("postgres: debit %s: %w", from, err)
	}
	if err := adjust(ctx, tx, houseAccount, amount); err != nil {
		return fmt.Errorf("postgres: credit house: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit collect: %w", err)
	}
	return nil
}

// Transact runs fn inside a database transaction with the house row locked
// for update. Payments made through the TreasuryTx commit only when fn
// returns nil.
func (t *Treasury) Transact(ctx context.Context, fn func(tx domain.TreasuryTx) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin treasury tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the house row so concurrent batches serialize. The upsert
	// creates it on first use.
	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (account, balance) VALUES ($1, 0)
		ON CONFLICT (account) DO NOTHING`, houseAccount)
	if err != nil {
		return fmt.Errorf("postgres: ensure house account: %w", err)
	}

	var balance int64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE account = $1 FOR UPDATE`, houseAccount,
	).Scan(&balance)
	if err != nil {
		return fmt.Errorf("postgres: lock house account: %w", err)
	}

	ttx := &pgTreasuryTx{tx: tx, house: balance}
	if err := fn(ttx); err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE accounts SET balance = $1, updated_at = NOW() WHERE account = $2`,
		ttx.house, houseAccount)
	if err != nil {
		return fmt.Errorf("postgres: update house balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit treasury tx: %w", err)
	}
	return nil
}

// pgTreasuryTx is the transactional view handed to Transact callbacks. The
// house balance is tracked in memory against the locked row and written back
// once at commit.
type pgTreasuryTx struct {
	tx    pgx.Tx
	house int64
}

func (t *pgTreasuryTx) Balance(ctx context.Context) (int64, error) {
	return t.house, nil
}

func (t *pgTreasuryTx) Pay(ctx context.Context, to string, amount int64) error {
	if amount > t.house {
		return domain.ErrInsufficientBalance
	}
	if err := adjust(ctx, t.tx, to, amount); err != nil {
		return fmt.Errorf("postgres: credit %s: %w", to, err)
	}
	t.house -= amount
	return nil
}

// adjust applies a signed delta to an account, creating the row on first use.
func adjust(ctx context.Context, tx pgx.Tx, account string, delta int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO accounts (account, balance) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET
			balance = accounts.balance + EXCLUDED.balance,
			updated_at = NOW()`,
		account, delta)
	return err
}

var _ domain.Treasury = (*Treasury)(nil)
