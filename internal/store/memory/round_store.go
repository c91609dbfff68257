// Package memory provides in-memory store implementations used by
// standalone mode and by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oddsworks/bigsmall/internal/domain"
)

// RoundStore keeps archived rounds in a map. Rounds are stored by value, so
// callers cannot mutate the archive through returned copies.
type RoundStore struct {
	mu     sync.RWMutex
	rounds map[int64]domain.Round
}

// NewRoundStore creates an empty RoundStore.
func NewRoundStore() *RoundStore {
	return &RoundStore{rounds: make(map[int64]domain.Round)}
}

// Archive stores a finished round, replacing any previous copy with the
// same id.
func (s *RoundStore) Archive(ctx context.Context, round domain.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[round.ID] = *round.Clone()
	return nil
}

// GetByID returns the archived round with the given id.
func (s *RoundStore) GetByID(ctx context.Context, id int64) (domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	round, ok := s.rounds[id]
	if !ok {
		return domain.Round{}, domain.ErrRoundNotFound
	}
	return *round.Clone(), nil
}

// ListFinishedBetween returns rounds finished in [since, until), ordered by
// id ascending.
func (s *RoundStore) ListFinishedBetween(ctx context.Context, since, until time.Time) ([]domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Round
	for _, round := range s.rounds {
		if round.FinishedAt == nil {
			continue
		}
		at := *round.FinishedAt
		if at.Before(since) || !at.Before(until) {
			continue
		}
		out = append(out, *round.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Count returns the number of archived rounds.
func (s *RoundStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rounds)), nil
}

var _ domain.RoundStore = (*RoundStore)(nil)
