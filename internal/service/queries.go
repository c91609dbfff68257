package service

import (
	"context"
	"fmt"

	"github.com/oddsworks/bigsmall/internal/domain"
)

// BidDetail is the read model returned by GetBid.
type BidDetail struct {
	RoundID  int64      `json:"round_id"`
	Bid      domain.Bid `json:"bid"`
	Finished bool       `json:"finished"`
}

// Stats is the aggregate read model returned by Stats.
type Stats struct {
	TotalRounds    int64 `json:"total_rounds"`
	CurrentRoundID int64 `json:"current_round_id,omitempty"`
}

// Balance is the treasury read model returned by GetBalance. Held is the
// stake committed to the open round's pools; Retained is what the authority
// may withdraw without touching funds owed to bettors.
type Balance struct {
	Total    int64 `json:"total"`
	Held     int64 `json:"held"`
	Retained int64 `json:"retained"`
}

// GetCurrentRound returns a snapshot of the open round.
func (s *RoundService) GetCurrentRound(ctx context.Context) (*domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, domain.ErrRoundNotFound
	}
	return s.current.Clone(), nil
}

// GetRound returns the round with the given id, whether open or archived.
func (s *RoundService) GetRound(ctx context.Context, id int64) (*domain.Round, error) {
	s.mu.RLock()
	if s.current != nil && s.current.ID == id {
		round := s.current.Clone()
		s.mu.RUnlock()
		return round, nil
	}
	s.mu.RUnlock()

	round, err := s.rounds.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: get round %d: %w", id, err)
	}
	return &round, nil
}

// GetBid returns a single bid along with whether its round has finished.
func (s *RoundService) GetBid(ctx context.Context, roundID, bidID int64) (BidDetail, error) {
	round, err := s.GetRound(ctx, roundID)
	if err != nil {
		return BidDetail{}, err
	}
	bid, ok := round.BidByID(bidID)
	if !ok {
		return BidDetail{}, domain.ErrBidNotFound
	}
	return BidDetail{
		RoundID:  roundID,
		Bid:      bid,
		Finished: round.Finished(),
	}, nil
}

// Stats returns aggregate counters. Round ids are dense, so the sequence
// high-water mark doubles as the total round count.
func (s *RoundService) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{TotalRounds: s.lastID}
	if s.current != nil {
		st.CurrentRoundID = s.current.ID
	}
	return st, nil
}

// GetBalance returns the treasury position. Stake held in the open round's
// pools belongs to bettors until settlement and is excluded from Retained.
func (s *RoundService) GetBalance(ctx context.Context) (Balance, error) {
	total, err := s.treasury.Balance(ctx)
	if err != nil {
		return Balance{}, fmt.Errorf("service: treasury balance: %w", err)
	}

	s.mu.RLock()
	var held int64
	if s.current != nil {
		held = s.current.HeldStake()
	}
	s.mu.RUnlock()

	return Balance{
		Total:    total,
		Held:     held,
		Retained: total - held,
	}, nil
}
