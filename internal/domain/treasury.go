package domain

import "context"

// Treasury is the injected payment capability. The round manager never
// assumes how funds actually move; it only requires that each call either
// fully succeeds or fails with an error, and that a batch of payments made
// through Transact applies atomically.
type Treasury interface {
	// Balance returns the funds currently held by the house account.
	Balance(ctx context.Context) (int64, error)

	// Collect moves amount from the bettor's account into the house account.
	// It is called once per accepted bid, before the bid is recorded.
	Collect(ctx context.Context, from string, amount int64) error

	// Transact runs fn against a transactional view of the treasury. Payments
	// made through the TreasuryTx are applied only if fn returns nil; any
	// error rolls every payment in the batch back.
	Transact(ctx context.Context, fn func(tx TreasuryTx) error) error
}

// TreasuryTx is the transactional view handed to Transact callbacks.
type TreasuryTx interface {
	// Balance returns the house balance as seen inside the transaction,
	// reflecting payments already made through this TreasuryTx.
	Balance(ctx context.Context) (int64, error)

	// Pay moves amount from the house account to the given recipient. It
	// returns ErrInsufficientBalance when the house cannot cover the amount.
	Pay(ctx context.Context, to string, amount int64) error
}
