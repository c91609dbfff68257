package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddsworks/bigsmall/internal/domain"
)

// RoundStore implements domain.RoundStore using PostgreSQL. Rounds are
// written once, at the moment they finish, together with their bids in a
// single transaction.
type RoundStore struct {
	pool *pgxpool.Pool
}

// NewRoundStore creates a new RoundStore backed by the given connection pool.
func NewRoundStore(pool *pgxpool.Pool) *RoundStore {
	return &RoundStore{pool: pool}
}

// Archive persists a finished round and all of its bids atomically. Re-runs
// for the same round id replace the previous copy, which makes the archive
// step safe to repeat.
func (s *RoundStore) Archive(ctx context.Context, round domain.Round) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin archive round %d: %w", round.ID, err)
	}
	defer tx.Rollback(ctx)

	const upsertRound = `
		INSERT INTO rounds (id, state, result, dice, total_pips, big_pool, small_pool, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			result = EXCLUDED.result,
			dice = EXCLUDED.dice,
			total_pips = EXCLUDED.total_pips,
			big_pool = EXCLUDED.big_pool,
			small_pool = EXCLUDED.small_pool,
			finished_at = EXCLUDED.finished_at`
	dice := []int16{int16(round.Dice[0]), int16(round.Dice[1]), int16(round.Dice[2])}
	_, err = tx.Exec(ctx, upsertRound,
		round.ID, round.State, round.Result, dice, round.TotalPips,
		round.BigPool, round.SmallPool, round.CreatedAt, round.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: archive round %d: %w", round.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM bids WHERE round_id = $1`, round.ID); err != nil {
		return fmt.Errorf("postgres: clear bids for round %d: %w", round.ID, err)
	}

	const insertBid = `
		INSERT INTO bids (round_id, bid_id, bettor, side, stake, won, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, bid := range round.Bids {
		_, err := tx.Exec(ctx, insertBid,
			round.ID, bid.ID, bid.Bettor, bid.Side, bid.Stake, bid.Won, bid.PlacedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: archive bid %d of round %d: %w", bid.ID, round.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit archive round %d: %w", round.ID, err)
	}
	return nil
}

// GetByID returns the archived round with the given id, bids included.
func (s *RoundStore) GetByID(ctx context.Context, id int64) (domain.Round, error) {
	const query = `
		SELECT id, state, result, dice, total_pips, big_pool, small_pool, created_at, finished_at
		FROM rounds WHERE id = $1`

	round, err := scanRound(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Round{}, domain.ErrRoundNotFound
		}
		return domain.Round{}, fmt.Errorf("postgres: get round %d: %w", id, err)
	}

	bids, err := s.bidsForRound(ctx, id)
	if err != nil {
		return domain.Round{}, err
	}
	round.Bids = bids
	return round, nil
}

// ListFinishedBetween returns rounds finished in [since, until), ordered by
// id ascending. Bids are not loaded; use GetByID for full detail.
func (s *RoundStore) ListFinishedBetween(ctx context.Context, since, until time.Time) ([]domain.Round, error) {
	const query = `
		SELECT id, state, result, dice, total_pips, big_pool, small_pool, created_at, finished_at
		FROM rounds
		WHERE finished_at >= $1 AND finished_at < $2
		ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query, since, until)
	if err != nil {
		return nil, fmt.Errorf("postgres: list finished rounds: %w", err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan round: %w", err)
		}
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list finished rounds rows: %w", err)
	}
	return rounds, nil
}

// Count returns the number of archived rounds.
func (s *RoundStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rounds`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count rounds: %w", err)
	}
	return count, nil
}

func (s *RoundStore) bidsForRound(ctx context.Context, roundID int64) ([]domain.Bid, error) {
	const query = `
		SELECT bid_id, bettor, side, stake, won, placed_at
		FROM bids WHERE round_id = $1
		ORDER BY bid_id ASC`

	rows, err := s.pool.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load bids for round %d: %w", roundID, err)
	}
	defer rows.Close()

	var bids []domain.Bid
	for rows.Next() {
		var b domain.Bid
		if err := rows.Scan(&b.ID, &b.Bettor, &b.Side, &b.Stake, &b.Won, &b.PlacedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load bids rows: %w", err)
	}
	return bids, nil
}

// scanRound reads one rounds row. The dice array column unpacks into the
// fixed three-element array on the domain type.
func scanRound(row pgx.Row) (domain.Round, error) {
	var (
		round domain.Round
		dice  []int16
	)
	err := row.Scan(
		&round.ID, &round.State, &round.Result, &dice, &round.TotalPips,
		&round.BigPool, &round.SmallPool, &round.CreatedAt, &round.FinishedAt,
	)
	if err != nil {
		return domain.Round{}, err
	}
	for i := 0; i < len(dice) && i < 3; i++ {
		round.Dice[i] = int(dice[i])
	}
	return round, nil
}

var _ domain.RoundStore = (*RoundStore)(nil)
