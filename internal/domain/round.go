// Package domain defines the core types of the big/small settlement engine:
// rounds, bids, pools, events, and the collaborator interfaces (stores,
// treasury, event bus) that the service layer depends on.
package domain

import "time"

// Side is the outcome class a bid is staked on.
type Side string

const (
	SideBig   Side = "big"
	SideSmall Side = "small"
)

// Valid reports whether s is one of the two playable sides.
func (s Side) Valid() bool {
	return s == SideBig || s == SideSmall
}

// Result is the outcome classification of a processed round. It stays
// Undetermined until the dice are recorded.
type Result string

const (
	ResultUndetermined Result = "undetermined"
	ResultBig          Result = "big"
	ResultSmall        Result = "small"
)

// RoundState is the lifecycle state of a round.
type RoundState string

const (
	StateWaitingForBids RoundState = "waiting_for_bids"
	StateEqualizing     RoundState = "equalizing"
	StateEqualized      RoundState = "equalized"
	StateProcessing     RoundState = "processing"
	StatePayingWinners  RoundState = "paying_winners"
	StateFinished       RoundState = "finished"
)

// Bid is a single stake on one side of a round. IDs are sequential within a
// round starting at 1; insertion order is the order bids were placed. Stake
// is net of the platform fee and only ever decreases (equalization refunds).
type Bid struct {
	ID       int64     `json:"id"`
	Bettor   string    `json:"bettor"`
	Side     Side      `json:"side"`
	Stake    int64     `json:"stake"`
	Won      bool      `json:"won"`
	PlacedAt time.Time `json:"placed_at"`
}

// Round is one complete betting-and-settlement cycle. Pool totals are the
// running sums of currently-held stake per side; dice, total pips, and result
// are written exactly once when the round is processed.
type Round struct {
	ID         int64      `json:"id"`
	State      RoundState `json:"state"`
	Result     Result     `json:"result"`
	Dice       [3]int     `json:"dice"`
	TotalPips  int        `json:"total_pips"`
	BigPool    int64      `json:"big_pool"`
	SmallPool  int64      `json:"small_pool"`
	Bids       []Bid      `json:"bids"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// BidByID returns the bid with the given id. Bid ids are assigned densely
// from 1 in insertion order, so the lookup is positional.
func (r *Round) BidByID(id int64) (Bid, bool) {
	if id < 1 || id > int64(len(r.Bids)) {
		return Bid{}, false
	}
	return r.Bids[id-1], true
}

// NextBidID returns the id that the next recorded bid will receive.
func (r *Round) NextBidID() int64 {
	return int64(len(r.Bids)) + 1
}

// HeldStake is the total stake currently held across both pools.
func (r *Round) HeldStake() int64 {
	return r.BigPool + r.SmallPool
}

// Finished reports whether the round has reached its terminal state.
func (r *Round) Finished() bool {
	return r.State == StateFinished
}

// Clone returns a deep copy of the round. State-mutating operations work on a
// clone and swap it in only after every external payment has succeeded, which
// is what makes a mid-operation payment failure roll back cleanly.
func (r *Round) Clone() *Round {
	cp := *r
	cp.Bids = make([]Bid, len(r.Bids))
	copy(cp.Bids, r.Bids)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}
