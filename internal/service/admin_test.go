package service

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/oddsworks/bigsmall/internal/domain"
)

func TestSetFeePercent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, GameConfig{FeePercent: 5})
	round := f.openRound(t)

	check.Nil(t, f.svc.SetFeePercent(ctx, testAuthority, 20))

	bid, err := f.svc.PlaceBid(ctx, "alice", round.ID, domain.SideBig, 100)
	check.Nil(t, err)
	check.Equal(t, int64(80), bid.Stake)
}

func TestSetFeePercentValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, GameConfig{})

	check.NotNil(t, f.svc.SetFeePercent(ctx, testAuthority, -1))
	check.NotNil(t, f.svc.SetFeePercent(ctx, testAuthority, 101))
	check.True(t, errors.Is(f.svc.SetFeePercent(ctx, "mallory", 10), domain.ErrUnauthorized))
}

func TestTransferAuthority(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, GameConfig{})

	check.Nil(t, f.svc.TransferAuthority(ctx, testAuthority, "successor"))

	// The old authority no longer holds the capability.
	_, err := f.svc.CreateRound(ctx, testAuthority)
	check.True(t, errors.Is(err, domain.ErrUnauthorized))

	_, err = f.svc.CreateRound(ctx, "successor")
	check.Nil(t, err)
}

func TestTransferAuthorityValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, GameConfig{})

	check.NotNil(t, f.svc.TransferAuthority(ctx, testAuthority, ""))
	check.True(t, errors.Is(f.svc.TransferAuthority(ctx, "mallory", "successor"), domain.ErrUnauthorized))
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, GameConfig{FeePercent: 10})
	round := f.openRound(t)

	// 200 collected, 180 held in pools, 20 retained.
	_, err := f.svc.PlaceBid(ctx, "alice", round.ID, domain.SideBig, 100)
	check.Nil(t, err)
	_, err = f.svc.PlaceBid(ctx, "bob", round.ID, domain.SideSmall, 100)
	check.Nil(t, err)

	// Withdrawal amount must be strictly below the retained balance.
	err = f.svc.Withdraw(ctx, testAuthority, "payee", 20)
	check.True(t, errors.Is(err, domain.ErrInsufficientBalance))

	check.Nil(t, f.svc.Withdraw(ctx, testAuthority, "payee", 19))
	check.Equal(t, int64(19), f.treasury.AccountBalance("payee"))

	bal, err := f.svc.GetBalance(ctx)
	check.Nil(t, err)
	check.Equal(t, int64(1), bal.Retained)
}

func TestWithdrawValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, GameConfig{})

	check.NotNil(t, f.svc.Withdraw(ctx, testAuthority, "payee", 0))
	check.NotNil(t, f.svc.Withdraw(ctx, testAuthority, "payee", -5))
	check.True(t, errors.Is(f.svc.Withdraw(ctx, "mallory", "payee", 10), domain.ErrUnauthorized))
}
