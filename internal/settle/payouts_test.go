package settle

import (
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/oddsworks/bigsmall/internal/domain"
)

func TestComputePayouts_BigResult(t *testing.T) {
	bids := []domain.Bid{
		{ID: 1, Bettor: "alice", Side: domain.SideBig, Stake: 50},
		{ID: 2, Bettor: "bob", Side: domain.SideSmall, Stake: 50},
	}

	payouts := ComputePayouts(domain.ResultBig, bids)

	check.Equal(t, 2, len(payouts))
	check.Equal(t, int64(1), payouts[0].BidID)
	check.Equal(t, int64(100), payouts[0].Amount)
	check.True(t, payouts[0].Won)
	check.Equal(t, int64(2), payouts[1].BidID)
	check.Equal(t, int64(0), payouts[1].Amount)
	check.False(t, payouts[1].Won)
}

func TestComputePayouts_SmallResult(t *testing.T) {
	bids := []domain.Bid{
		{ID: 1, Bettor: "alice", Side: domain.SideBig, Stake: 70},
		{ID: 2, Bettor: "bob", Side: domain.SideSmall, Stake: 30},
		{ID: 3, Bettor: "carol", Side: domain.SideSmall, Stake: 40},
	}

	payouts := ComputePayouts(domain.ResultSmall, bids)

	check.False(t, payouts[0].Won)
	check.Equal(t, int64(0), payouts[0].Amount)
	check.True(t, payouts[1].Won)
	check.Equal(t, int64(60), payouts[1].Amount)
	check.True(t, payouts[2].Won)
	check.Equal(t, int64(80), payouts[2].Amount)
}

func TestComputePayouts_ZeroStakeWinner(t *testing.T) {
	// A bid fully refunded during equalization still wins on a matching
	// result but is owed nothing.
	bids := []domain.Bid{
		{ID: 1, Bettor: "alice", Side: domain.SideBig, Stake: 0},
	}

	payouts := ComputePayouts(domain.ResultBig, bids)

	check.True(t, payouts[0].Won)
	check.Equal(t, int64(0), payouts[0].Amount)
}

func TestComputePayouts_InsertionOrder(t *testing.T) {
	bids := []domain.Bid{
		{ID: 1, Bettor: "a", Side: domain.SideSmall, Stake: 10},
		{ID: 2, Bettor: "b", Side: domain.SideSmall, Stake: 20},
		{ID: 3, Bettor: "c", Side: domain.SideSmall, Stake: 30},
	}

	payouts := ComputePayouts(domain.ResultSmall, bids)

	for i, p := range payouts {
		check.Equal(t, int64(i+1), p.BidID)
	}
}
