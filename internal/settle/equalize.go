package settle

import "github.com/oddsworks/bigsmall/internal/domain"

// Refund is one stake reduction produced by Equalize.
type Refund struct {
	BidID  int64
	Bettor string
	Amount int64
}

// Equalize computes the partial refunds that bring the two stake pools into
// balance before the outcome is known. The heavier pool is reduced by exactly
// the difference between the totals; the lighter pool is untouched.
//
// Refunds are peeled off the heavy side walking bids in reverse insertion
// order: the most recently placed bid absorbs the deficit first, so earlier
// bettors keep their full stake whenever later bids can cover the imbalance.
// This ordering is a deliberate policy and changes who bears the refund when
// individual stakes are smaller than their share of the deficit.
//
// The input bids are not mutated; each Refund names the bid to reduce.
func Equalize(bigTotal, smallTotal int64, bids []domain.Bid) (newBig, newSmall int64, refunds []Refund) {
	if bigTotal == smallTotal {
		return bigTotal, smallTotal, nil
	}

	heavy := domain.SideBig
	deficit := bigTotal - smallTotal
	if smallTotal > bigTotal {
		heavy = domain.SideSmall
		deficit = smallTotal - bigTotal
	}

	remaining := deficit
	for i := len(bids) - 1; i >= 0 && remaining > 0; i-- {
		bid := bids[i]
		if bid.Side != heavy {
			continue
		}

		refund := remaining
		if bid.Stake < refund {
			refund = bid.Stake
		}
		if refund == 0 {
			continue
		}

		remaining -= refund
		refunds = append(refunds, Refund{
			BidID:  bid.ID,
			Bettor: bid.Bettor,
			Amount: refund,
		})
	}

	refunded := deficit - remaining
	if heavy == domain.SideBig {
		return bigTotal - refunded, smallTotal, refunds
	}
	return bigTotal, smallTotal - refunded, refunds
}
