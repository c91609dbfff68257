package settle

import (
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/oddsworks/bigsmall/internal/domain"
)

func TestEqualize_BalancedPoolsNoRefunds(t *testing.T) {
	bids := []domain.Bid{
		{ID: 1, Bettor: "alice", Side: domain.SideBig, Stake: 100},
		{ID: 2, Bettor: "bob", Side: domain.SideSmall, Stake: 100},
	}

	newBig, newSmall, refunds := Equalize(100, 100, bids)

	check.Equal(t, int64(100), newBig)
	check.Equal(t, int64(100), newSmall)
	check.Equal(t, 0, len(refunds))
}

func TestEqualize_MostRecentBidRefundedFirst(t *testing.T) {
	// Three big-side bids of 100 each against a small pool of 100. The
	// deficit of 200 must be peeled off bids 3 and 2, leaving bid 1 intact.
	bids := []domain.Bid{
		{ID: 1, Bettor: "alice", Side: domain.SideBig, Stake: 100},
		{ID: 2, Bettor: "bob", Side: domain.SideBig, Stake: 100},
		{ID: 3, Bettor: "carol", Side: domain.SideBig, Stake: 100},
		{ID: 4, Bettor: "dave", Side: domain.SideSmall, Stake: 100},
	}

	newBig, newSmall, refunds := Equalize(300, 100, bids)

	check.Equal(t, int64(100), newBig)
	check.Equal(t, int64(100), newSmall)

	check.Equal(t, 2, len(refunds))
	check.Equal(t, int64(3), refunds[0].BidID)
	check.Equal(t, int64(100), refunds[0].Amount)
	check.Equal(t, "carol", refunds[0].Bettor)
	check.Equal(t, int64(2), refunds[1].BidID)
	check.Equal(t, int64(100), refunds[1].Amount)
}

func TestEqualize_PartialRefundOnLastBid(t *testing.T) {
	// Deficit of 50 is covered by partially refunding the latest big bid.
	bids := []domain.Bid{
		{ID: 1, Bettor: "alice", Side: domain.SideBig, Stake: 100},
		{ID: 2, Bettor: "bob", Side: domain.SideBig, Stake: 100},
		{ID: 3, Bettor: "carol", Side: domain.SideSmall, Stake: 150},
	}

	newBig, newSmall, refunds := Equalize(200, 150, bids)

	check.Equal(t, int64(150), newBig)
	check.Equal(t, int64(150), newSmall)
	check.Equal(t, 1, len(refunds))
	check.Equal(t, int64(2), refunds[0].BidID)
	check.Equal(t, int64(50), refunds[0].Amount)
}

func TestEqualize_SmallSideHeavy(t *testing.T) {
	bids := []domain.Bid{
		{ID: 1, Bettor: "alice", Side: domain.SideSmall, Stake: 80},
		{ID: 2, Bettor: "bob", Side: domain.SideBig, Stake: 30},
		{ID: 3, Bettor: "carol", Side: domain.SideSmall, Stake: 40},
	}

	newBig, newSmall, refunds := Equalize(30, 120, bids)

	check.Equal(t, int64(30), newBig)
	check.Equal(t, int64(30), newSmall)

	// Deficit 90: bid 3 refunds its full 40, bid 1 covers the remaining 50.
	check.Equal(t, 2, len(refunds))
	check.Equal(t, int64(3), refunds[0].BidID)
	check.Equal(t, int64(40), refunds[0].Amount)
	check.Equal(t, int64(1), refunds[1].BidID)
	check.Equal(t, int64(50), refunds[1].Amount)
}

func TestEqualize_SkipsZeroStakeBids(t *testing.T) {
	bids := []domain.Bid{
		{ID: 1, Bettor: "alice", Side: domain.SideBig, Stake: 60},
		{ID: 2, Bettor: "bob", Side: domain.SideBig, Stake: 0},
		{ID: 3, Bettor: "carol", Side: domain.SideSmall, Stake: 40},
	}

	newBig, newSmall, refunds := Equalize(60, 40, bids)

	check.Equal(t, int64(40), newBig)
	check.Equal(t, int64(40), newSmall)
	check.Equal(t, 1, len(refunds))
	check.Equal(t, int64(1), refunds[0].BidID)
	check.Equal(t, int64(20), refunds[0].Amount)
}

func TestEqualize_DoesNotMutateInput(t *testing.T) {
	bids := []domain.Bid{
		{ID: 1, Bettor: "alice", Side: domain.SideBig, Stake: 100},
		{ID: 2, Bettor: "bob", Side: domain.SideSmall, Stake: 40},
	}

	_, _, _ = Equalize(100, 40, bids)

	check.Equal(t, int64(100), bids[0].Stake)
	check.Equal(t, int64(40), bids[1].Stake)
}

func TestEqualize_PoolConservation(t *testing.T) {
	// Refunded amounts plus the new totals must equal the old totals.
	bids := []domain.Bid{
		{ID: 1, Bettor: "a", Side: domain.SideBig, Stake: 37},
		{ID: 2, Bettor: "b", Side: domain.SideSmall, Stake: 11},
		{ID: 3, Bettor: "c", Side: domain.SideBig, Stake: 52},
		{ID: 4, Bettor: "d", Side: domain.SideSmall, Stake: 9},
		{ID: 5, Bettor: "e", Side: domain.SideBig, Stake: 4},
	}

	newBig, newSmall, refunds := Equalize(93, 20, bids)

	var refunded int64
	for _, r := range refunds {
		refunded += r.Amount
	}
	check.Equal(t, int64(93+20), newBig+newSmall+refunded)
	check.Equal(t, newBig, newSmall)
}
