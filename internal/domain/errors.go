package domain

import "errors"

var (
	ErrRoundNotFound       = errors.New("round not found")
	ErrRoundAlreadyActive  = errors.New("a round is already active")
	ErrInvalidRoundState   = errors.New("invalid round state")
	ErrBelowMinimumStake   = errors.New("bid amount below minimum stake")
	ErrInvalidDiceValue    = errors.New("dice value out of range")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrPaymentFailed       = errors.New("payment failed")
	ErrBidNotFound         = errors.New("bid not found")
	ErrRateLimited         = errors.New("rate limited")
	ErrLockHeld            = errors.New("lock already held")
	ErrNotFound            = errors.New("not found")
)
