package settle

import "github.com/oddsworks/bigsmall/internal/domain"

// Payout is the settlement outcome for a single bid.
type Payout struct {
	BidID  int64
	Bettor string
	Amount int64
	Won    bool
}

// ComputePayouts allocates winnings for a processed round. A bid wins iff its
// side matches the result; winners are paid twice their held stake (their own
// stake back plus an equal amount funded from the losing pool), losers get
// nothing. Payouts are independent per bid, so the insertion-order walk only
// fixes emission sequencing.
func ComputePayouts(result domain.Result, bids []domain.Bid) []Payout {
	payouts := make([]Payout, 0, len(bids))
	for _, bid := range bids {
		won := (result == domain.ResultBig && bid.Side == domain.SideBig) ||
			(result == domain.ResultSmall && bid.Side == domain.SideSmall)

		var amount int64
		if won {
			amount = 2 * bid.Stake
		}
		payouts = append(payouts, Payout{
			BidID:  bid.ID,
			Bettor: bid.Bettor,
			Amount: amount,
			Won:    won,
		})
	}
	return payouts
}
