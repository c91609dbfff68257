package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/oddsworks/bigsmall/internal/domain"
	"github.com/oddsworks/bigsmall/internal/ledger"
	"github.com/oddsworks/bigsmall/internal/store/memory"
)

const testAuthority = "authority"

// recordingBus captures published payloads in order.
type recordingBus struct {
	mu       sync.Mutex
	payloads [][]byte
	appends  [][]byte
}

func (b *recordingBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *recordingBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appends = append(b.appends, payload)
	return nil
}

// recordingAudit captures logged events in order.
type recordingAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *recordingAudit) Log(ctx context.Context, event string, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, domain.AuditEntry{Event: event, Detail: detail})
	return nil
}

func (a *recordingAudit) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out, nil
}

// events returns the logged event names in order.
func (a *recordingAudit) events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, len(a.entries))
	for i, e := range a.entries {
		names[i] = e.Event
	}
	return names
}

// denyLimiter rejects every request.
type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return false, nil
}

// failingTreasury wraps a real ledger but fails every Transact, simulating a
// payment backend outage mid-settlement.
type failingTreasury struct {
	*ledger.Ledger
}

var errTreasuryDown = errors.New("treasury down")

func (t *failingTreasury) Transact(ctx context.Context, fn func(tx domain.TreasuryTx) error) error {
	return errTreasuryDown
}

// fixture bundles a service wired with in-memory collaborators.
type fixture struct {
	svc      *RoundService
	treasury *ledger.Ledger
	rounds   *memory.RoundStore
	audit    *recordingAudit
	bus      *recordingBus
}

func newFixture(t *testing.T, cfg GameConfig) *fixture {
	t.Helper()
	if cfg.Authority == "" {
		cfg.Authority = testAuthority
	}
	f := &fixture{
		treasury: ledger.New(),
		rounds:   memory.NewRoundStore(),
		audit:    &recordingAudit{},
		bus:      &recordingBus{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewRoundService(f.treasury, f.rounds, f.audit, f.bus, nil, nil, cfg, logger)
	return f
}

// openRound creates round 1 for tests that need an active round.
func (f *fixture) openRound(t *testing.T) *domain.Round {
	t.Helper()
	round, err := f.svc.CreateRound(context.Background(), testAuthority)
	if err != nil {
		t.Fatalf("create round: %v", err)
	}
	return round
}
