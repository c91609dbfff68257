// Package service implements the round manager: the single-writer state
// machine that owns the open round, accepts bids, runs equalization and
// settlement, and emits the event feed.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oddsworks/bigsmall/internal/domain"
	"github.com/oddsworks/bigsmall/internal/settle"
)

const (
	// eventsChannel is the pub/sub channel live consumers subscribe to.
	eventsChannel = "rounds"
	// eventsStream is the durable stream events are appended to.
	eventsStream = "rounds:events"

	// mutationLockKey serializes state mutations across replicas when a
	// lock manager is configured.
	mutationLockKey = "rounds:mutate"
	mutationLockTTL = 10 * time.Second
)

// GameConfig holds the tunable parameters of the round manager.
type GameConfig struct {
	// MinStake is the exclusive lower bound on a bid amount: a bid must
	// strictly exceed it to be accepted.
	MinStake int64

	// FeePercent is the platform fee in whole percent, deducted from each
	// accepted bid before the stake is recorded. Integer math, truncating.
	FeePercent int64

	// Authority is the account permitted to create and advance rounds and
	// run administrative operations.
	Authority string

	// BidRateLimit and BidRateWindow bound how many bids a single bettor
	// may place per window. Zero disables rate limiting.
	BidRateLimit  int
	BidRateWindow time.Duration
}

// RoundService owns the currently open round and drives it through its
// lifecycle. All mutations run one at a time behind the write lock; queries
// take the read lock and see consistent snapshots. The bus, audit store,
// rate limiter and lock manager are optional and may be nil.
type RoundService struct {
	mu      sync.RWMutex
	current *domain.Round
	lastID  int64

	feePercent int64
	authority  string

	cfg      GameConfig
	treasury domain.Treasury
	rounds   domain.RoundStore
	audit    domain.AuditStore
	bus      domain.EventBus
	limiter  domain.RateLimiter
	locks    domain.LockManager
	logger   *slog.Logger
}

// NewRoundService creates a RoundService. treasury, rounds and logger are
// required; audit, bus, limiter and locks may be nil.
func NewRoundService(
	treasury domain.Treasury,
	rounds domain.RoundStore,
	audit domain.AuditStore,
	bus domain.EventBus,
	limiter domain.RateLimiter,
	locks domain.LockManager,
	cfg GameConfig,
	logger *slog.Logger,
) *RoundService {
	return &RoundService{
		feePercent: cfg.FeePercent,
		authority:  cfg.Authority,
		cfg:        cfg,
		treasury:   treasury,
		rounds:     rounds,
		audit:      audit,
		bus:        bus,
		limiter:    limiter,
		locks:      locks,
		logger:     logger,
	}
}

// Restore seeds the round id sequence from the archive so that ids keep
// ascending across restarts. Call once before serving traffic.
func (s *RoundService) Restore(ctx context.Context) error {
	count, err := s.rounds.Count(ctx)
	if err != nil {
		return fmt.Errorf("service: restore round sequence: %w", err)
	}
	s.mu.Lock()
	s.lastID = count
	s.mu.Unlock()
	return nil
}

// CreateRound opens a new round in WaitingForBids. It fails with
// ErrRoundAlreadyActive while any round is still in progress; once the
// engine is running, new rounds are opened automatically as each one
// finishes, so this is normally only called to bootstrap round 1.
func (s *RoundService) CreateRound(ctx context.Context, actor string) (*domain.Round, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}

	var round *domain.Round
	err := s.withLock(ctx, func() error {
		if s.current != nil {
			return domain.ErrRoundAlreadyActive
		}
		round = s.openNextRound(ctx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return round.Clone(), nil
}

// openNextRound allocates the next id, installs a fresh round as current,
// and emits RoundCreated. Callers must hold the write lock.
func (s *RoundService) openNextRound(ctx context.Context) *domain.Round {
	s.lastID++
	round := &domain.Round{
		ID:        s.lastID,
		State:     domain.StateWaitingForBids,
		Result:    domain.ResultUndetermined,
		CreatedAt: time.Now().UTC(),
	}
	s.current = round

	s.logger.InfoContext(ctx, "service: round created",
		slog.Int64("round_id", round.ID),
	)
	s.emit(ctx, domain.EventRoundCreated, map[string]any{
		"round_id": round.ID,
	})
	return round
}

// PlaceBid records a stake on one side of the given round. The full amount
// is collected from the bettor; the platform fee is deducted and the net
// stake is what enters the pool and what equalization and payouts operate on.
func (s *RoundService) PlaceBid(ctx context.Context, bettor string, roundID int64, side domain.Side, amount int64) (domain.Bid, error) {
	if !side.Valid() {
		return domain.Bid{}, fmt.Errorf("service: place bid: unknown side %q", side)
	}
	if err := s.allowBid(ctx, bettor); err != nil {
		return domain.Bid{}, err
	}

	var bid domain.Bid
	err := s.withLock(ctx, func() error {
		round, err := s.activeRound(roundID)
		if err != nil {
			return err
		}
		if round.State != domain.StateWaitingForBids {
			return domain.ErrInvalidRoundState
		}
		if amount <= s.cfg.MinStake {
			return domain.ErrBelowMinimumStake
		}

		fee := amount * s.feePercent / 100
		netStake := amount - fee

		if err := s.treasury.Collect(ctx, bettor, amount); err != nil {
			return fmt.Errorf("service: collect stake: %w", err)
		}

		bid = domain.Bid{
			ID:       round.NextBidID(),
			Bettor:   bettor,
			Side:     side,
			Stake:    netStake,
			PlacedAt: time.Now().UTC(),
		}
		round.Bids = append(round.Bids, bid)
		if side == domain.SideBig {
			round.BigPool += netStake
		} else {
			round.SmallPool += netStake
		}

		s.logger.InfoContext(ctx, "service: bid placed",
			slog.Int64("round_id", round.ID),
			slog.Int64("bid_id", bid.ID),
			slog.String("bettor", bettor),
			slog.String("side", string(side)),
			slog.Int64("net_stake", netStake),
			slog.Int64("fee", fee),
		)
		s.emit(ctx, domain.EventBidPlaced, map[string]any{
			"round_id":  round.ID,
			"bid_id":    bid.ID,
			"bettor":    bettor,
			"side":      side,
			"net_stake": netStake,
			"fee":       fee,
		})
		return nil
	})
	if err != nil {
		return domain.Bid{}, err
	}
	return bid, nil
}

// EqualizeBids brings the two pools into balance by refunding the excess on
// the heavy side, most recent bid first. Refund payments apply atomically:
// a failed payment aborts the operation and leaves the round untouched.
func (s *RoundService) EqualizeBids(ctx context.Context, actor string, roundID int64) (*domain.Round, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}

	var result *domain.Round
	err := s.withLock(ctx, func() error {
		round, err := s.activeRound(roundID)
		if err != nil {
			return err
		}
		if round.State != domain.StateWaitingForBids {
			return domain.ErrInvalidRoundState
		}

		next := round.Clone()
		next.State = domain.StateEqualizing

		if next.BigPool == 0 && next.SmallPool == 0 {
			next.State = domain.StateEqualized
			s.current = next
			result = next
			s.emitEqualized(ctx, next)
			return nil
		}

		newBig, newSmall, refunds := settle.Equalize(next.BigPool, next.SmallPool, next.Bids)

		if len(refunds) > 0 {
			err := s.treasury.Transact(ctx, func(tx domain.TreasuryTx) error {
				for _, r := range refunds {
					if err := tx.Pay(ctx, r.Bettor, r.Amount); err != nil {
						return fmt.Errorf("refund bid %d: %w", r.BidID, err)
					}
				}
				return nil
			})
			if err != nil {
				s.logger.ErrorContext(ctx, "service: equalize refunds aborted",
					slog.Int64("round_id", round.ID),
					slog.String("error", err.Error()),
				)
				return fmt.Errorf("service: equalize round %d: %w: %w", round.ID, domain.ErrPaymentFailed, err)
			}
		}

		for _, r := range refunds {
			next.Bids[r.BidID-1].Stake -= r.Amount
		}
		next.BigPool = newBig
		next.SmallPool = newSmall
		next.State = domain.StateEqualized
		s.current = next
		result = next

		for _, r := range refunds {
			s.emit(ctx, domain.EventEqualizeRefund, map[string]any{
				"round_id": next.ID,
				"bid_id":   r.BidID,
				"bettor":   r.Bettor,
				"amount":   r.Amount,
			})
		}
		s.emitEqualized(ctx, next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

func (s *RoundService) emitEqualized(ctx context.Context, round *domain.Round) {
	s.logger.InfoContext(ctx, "service: round equalized",
		slog.Int64("round_id", round.ID),
		slog.Int64("big_pool", round.BigPool),
		slog.Int64("small_pool", round.SmallPool),
	)
	s.emit(ctx, domain.EventRoundEqualized, map[string]any{
		"round_id":   round.ID,
		"state":      round.State,
		"big_pool":   round.BigPool,
		"small_pool": round.SmallPool,
	})
}

// ProcessRound records the supplied dice on the active round, classifies the
// outcome, pays every winning bid double its held stake, finishes the round,
// and opens the next one. Winner payments apply atomically; a failed payment
// aborts the operation and leaves the round in Equalized.
//
// When either pool is empty there is no opposing action, so the round
// finishes immediately with no payouts.
func (s *RoundService) ProcessRound(ctx context.Context, actor string, d1, d2, d3 int) (*domain.Round, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	if !settle.ValidDie(d1) || !settle.ValidDie(d2) || !settle.ValidDie(d3) {
		return nil, domain.ErrInvalidDiceValue
	}

	var result *domain.Round
	err := s.withLock(ctx, func() error {
		round := s.current
		if round == nil {
			return domain.ErrRoundNotFound
		}
		if round.State != domain.StateEqualized {
			return domain.ErrInvalidRoundState
		}

		next := round.Clone()
		next.State = domain.StateProcessing
		next.Dice = [3]int{d1, d2, d3}
		next.TotalPips, next.Result = settle.Classify(d1, d2, d3)

		if next.BigPool == 0 || next.SmallPool == 0 {
			s.finishRound(ctx, next)
			result = next
			return nil
		}

		next.State = domain.StatePayingWinners
		payouts := settle.ComputePayouts(next.Result, next.Bids)

		err := s.treasury.Transact(ctx, func(tx domain.TreasuryTx) error {
			for _, p := range payouts {
				if !p.Won || p.Amount == 0 {
					continue
				}
				if err := tx.Pay(ctx, p.Bettor, p.Amount); err != nil {
					return fmt.Errorf("pay bid %d: %w", p.BidID, err)
				}
			}
			return nil
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "service: winner payouts aborted",
				slog.Int64("round_id", round.ID),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("service: process round %d: %w: %w", round.ID, domain.ErrPaymentFailed, err)
		}

		for _, p := range payouts {
			if !p.Won {
				continue
			}
			next.Bids[p.BidID-1].Won = true
			s.emit(ctx, domain.EventWinnerPaid, map[string]any{
				"round_id": next.ID,
				"bid_id":   p.BidID,
				"bettor":   p.Bettor,
				"amount":   p.Amount,
			})
		}

		s.finishRound(ctx, next)
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

// finishRound moves the round to its terminal state, archives it, emits
// RoundProcessed, and opens the next round. Callers must hold the write
// lock. Archive failures are logged, not surfaced: payments have already
// committed, so the round must still advance.
func (s *RoundService) finishRound(ctx context.Context, round *domain.Round) {
	now := time.Now().UTC()
	round.State = domain.StateFinished
	round.FinishedAt = &now

	if err := s.rounds.Archive(ctx, *round); err != nil {
		s.logger.ErrorContext(ctx, "service: archive round",
			slog.Int64("round_id", round.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "service: round processed",
		slog.Int64("round_id", round.ID),
		slog.String("result", string(round.Result)),
		slog.Int("total_pips", round.TotalPips),
	)
	s.emit(ctx, domain.EventRoundProcessed, map[string]any{
		"round_id":   round.ID,
		"state":      round.State,
		"result":     round.Result,
		"dice":       round.Dice,
		"total_pips": round.TotalPips,
	})

	s.current = nil
	s.openNextRound(ctx)
}

// activeRound resolves a round id against the current round. Ids below the
// sequence are historical and therefore finished; ids above it are unknown.
// Callers must hold the write lock.
func (s *RoundService) activeRound(roundID int64) (*domain.Round, error) {
	if s.current != nil && s.current.ID == roundID {
		return s.current, nil
	}
	if roundID >= 1 && roundID <= s.lastID {
		return nil, domain.ErrInvalidRoundState
	}
	return nil, domain.ErrRoundNotFound
}

// allowBid applies the per-bettor rate limit when a limiter is configured.
func (s *RoundService) allowBid(ctx context.Context, bettor string) error {
	if s.limiter == nil || s.cfg.BidRateLimit <= 0 {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, "bid:"+bettor, s.cfg.BidRateLimit, s.cfg.BidRateWindow)
	if err != nil {
		// Degrade open on limiter outage; bids are still serialized by
		// the state machine lock.
		s.logger.WarnContext(ctx, "service: rate limiter unavailable",
			slog.String("bettor", bettor),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}

// authorize checks the actor against the configured authority.
func (s *RoundService) authorize(actor string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if actor != s.authority {
		return domain.ErrUnauthorized
	}
	return nil
}

// withLock serializes a mutation: first across replicas through the lock
// manager when one is configured, then locally through the write lock.
func (s *RoundService) withLock(ctx context.Context, fn func() error) error {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, mutationLockKey, mutationLockTTL)
		if err != nil {
			return fmt.Errorf("service: acquire mutation lock: %w", err)
		}
		defer unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// emit publishes an event envelope to the bus, appends it to the durable
// stream, and records it in the audit log. All sinks are best effort: a
// failed emission is logged and never fails the enclosing operation.
func (s *RoundService) emit(ctx context.Context, eventType string, detail map[string]any) {
	ev := domain.NewEvent(eventType, detail)
	payload, err := ev.Marshal()
	if err != nil {
		s.logger.WarnContext(ctx, "service: marshal event",
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, eventsChannel, payload); err != nil {
			s.logger.WarnContext(ctx, "service: publish event",
				slog.String("type", eventType),
				slog.String("error", err.Error()),
			)
		}
		if err := s.bus.StreamAppend(ctx, eventsStream, payload); err != nil {
			s.logger.WarnContext(ctx, "service: append event",
				slog.String("type", eventType),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.audit != nil {
		if err := s.audit.Log(ctx, eventType, detail); err != nil {
			s.logger.WarnContext(ctx, "service: audit event",
				slog.String("type", eventType),
				slog.String("error", err.Error()),
			)
		}
	}
}
