package service

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/oddsworks/bigsmall/internal/domain"
)

func TestGetCurrentRoundNoneOpen(t *testing.T) {
	f := newFixture(t, GameConfig{})
	_, err := f.svc.GetCurrentRound(context.Background())
	check.True(t, errors.Is(err, domain.ErrRoundNotFound))
}

func TestGetRoundUnknown(t *testing.T) {
	f := newFixture(t, GameConfig{})
	f.openRound(t)
	_, err := f.svc.GetRound(context.Background(), 42)
	check.True(t, errors.Is(err, domain.ErrRoundNotFound))
}

func TestGetRoundSnapshotIsIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, GameConfig{})
	round := f.openRound(t)

	_, err := f.svc.PlaceBid(ctx, "alice", round.ID, domain.SideBig, 100)
	check.Nil(t, err)

	snap, err := f.svc.GetRound(ctx, round.ID)
	check.Nil(t, err)
	snap.Bids[0].Stake = 1
	snap.BigPool = 1

	again, err := f.svc.GetRound(ctx, round.ID)
	check.Nil(t, err)
	check.Equal(t, int64(100), again.Bids[0].Stake)
	check.Equal(t, int64(100), again.BigPool)
}

func TestFinishedRoundQueryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, GameConfig{})
	round := f.openRound(t)

	_, err := f.svc.PlaceBid(ctx, "alice", round.ID, domain.SideBig, 100)
	check.Nil(t, err)
	_, err = f.svc.PlaceBid(ctx, "bob", round.ID, domain.SideSmall, 100)
	check.Nil(t, err)
	_, err = f.svc.EqualizeBids(ctx, testAuthority, round.ID)
	check.Nil(t, err)
	_, err = f.svc.ProcessRound(ctx, testAuthority, 5, 5, 5)
	check.Nil(t, err)

	first, err := f.svc.GetRound(ctx, round.ID)
	check.Nil(t, err)
	second, err := f.svc.GetRound(ctx, round.ID)
	check.Nil(t, err)
	check.Equal(t, first, second)
}

func TestGetBid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, GameConfig{})
	round := f.openRound(t)

	_, err := f.svc.PlaceBid(ctx, "alice", round.ID, domain.SideBig, 100)
	check.Nil(t, err)

	detail, err := f.svc.GetBid(ctx, round.ID, 1)
	check.Nil(t, err)
	check.Equal(t, "alice", detail.Bid.Bettor)
	check.Equal(t, domain.SideBig, detail.Bid.Side)
	check.False(t, detail.Finished)

	_, err = f.svc.GetBid(ctx, round.ID, 2)
	check.True(t, errors.Is(err, domain.ErrBidNotFound))

	_, err = f.svc.PlaceBid(ctx, "bob", round.ID, domain.SideSmall, 100)
	check.Nil(t, err)
	_, err = f.svc.EqualizeBids(ctx, testAuthority, round.ID)
	check.Nil(t, err)
	_, err = f.svc.ProcessRound(ctx, testAuthority, 6, 6, 6)
	check.Nil(t, err)

	detail, err = f.svc.GetBid(ctx, round.ID, 1)
	check.Nil(t, err)
	check.True(t, detail.Finished)
	check.True(t, detail.Bid.Won)
}

func TestGetBalanceExcludesHeldStake(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, GameConfig{FeePercent: 10})
	round := f.openRound(t)

	_, err := f.svc.PlaceBid(ctx, "alice", round.ID, domain.SideBig, 100)
	check.Nil(t, err)
	_, err = f.svc.PlaceBid(ctx, "bob", round.ID, domain.SideSmall, 100)
	check.Nil(t, err)

	bal, err := f.svc.GetBalance(ctx)
	check.Nil(t, err)
	check.Equal(t, int64(200), bal.Total)
	check.Equal(t, int64(180), bal.Held)
	check.Equal(t, int64(20), bal.Retained)
}
