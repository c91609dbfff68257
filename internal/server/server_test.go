package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"

	"github.com/oddsworks/bigsmall/internal/domain"
	"github.com/oddsworks/bigsmall/internal/ledger"
	"github.com/oddsworks/bigsmall/internal/server/handler"
	"github.com/oddsworks/bigsmall/internal/service"
	"github.com/oddsworks/bigsmall/internal/store/memory"
)

const testAdminToken = "test-admin-token"

// memAudit is an in-memory AuditStore for exercising the audit endpoint.
type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *memAudit) Log(ctx context.Context, event string, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, domain.AuditEntry{
		ID:        int64(len(a.entries) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (a *memAudit) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditEntry, 0, len(a.entries))
	for i := len(a.entries) - 1; i >= 0; i-- {
		if len(out) == opts.Limit {
			break
		}
		out = append(out, a.entries[i])
	}
	return out, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	audit := &memAudit{}
	cfg := service.GameConfig{
		MinStake:   100,
		FeePercent: 5,
		Authority:  "authority",
	}
	svc := service.NewRoundService(ledger.New(), memory.NewRoundStore(), audit, nil, nil, nil, cfg, logger)

	handlers := Handlers{
		Health: handler.NewHealthHandler(logger),
		Rounds: handler.NewRoundHandler(svc, logger),
		Bids:   handler.NewBidHandler(svc, logger),
		Admin:  handler.NewAdminHandler(svc, cfg.Authority, logger),
		Status: handler.NewStatusHandler(svc, "standalone", logger),
		Audit:  handler.NewAuditHandler(audit, logger),
	}

	srv := NewServer(Config{Port: 0, AdminToken: testAdminToken}, handlers, nil, nil, logger)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("decode response %q: %v", data, err)
		}
	}
	return resp, decoded
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts, http.MethodGet, "/api/health", "", nil)
	check.Equal(t, http.StatusOK, resp.StatusCode)
	check.Equal(t, "ok", body["status"])
}

func TestAdminRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/rounds", "", nil)
	check.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/rounds", "wrong-token", nil)
	check.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/rounds", testAdminToken, nil)
	check.Equal(t, http.StatusCreated, resp.StatusCode)
	check.Equal(t, float64(1), body["id"].(float64))
}

func TestRoundLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/rounds", testAdminToken, nil)
	check.Equal(t, http.StatusCreated, resp.StatusCode)

	// Bets on both sides; 5% fee leaves 190 on each.
	resp, body := doJSON(t, ts, http.MethodPost, "/api/rounds/1/bids", "", map[string]any{
		"bettor": "alice", "side": "big", "amount": 200,
	})
	check.Equal(t, http.StatusCreated, resp.StatusCode)
	bid := body["bid"].(map[string]any)
	check.Equal(t, float64(190), bid["stake"].(float64))

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/rounds/1/bids", "", map[string]any{
		"bettor": "bob", "side": "small", "amount": 200,
	})
	check.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = doJSON(t, ts, http.MethodPost, "/api/rounds/1/equalize", testAdminToken, nil)
	check.Equal(t, http.StatusOK, resp.StatusCode)
	check.Equal(t, "equalized", body["state"])

	resp, body = doJSON(t, ts, http.MethodPost, "/api/rounds/process", testAdminToken, map[string]any{
		"dice": []int{6, 5, 4},
	})
	check.Equal(t, http.StatusOK, resp.StatusCode)
	check.Equal(t, "finished", body["state"])
	check.Equal(t, "big", body["result"])

	// The next round opens automatically.
	resp, body = doJSON(t, ts, http.MethodGet, "/api/rounds/current", "", nil)
	check.Equal(t, http.StatusOK, resp.StatusCode)
	check.Equal(t, float64(2), body["id"].(float64))

	// The finished round stays queryable, as does its winning bid.
	resp, body = doJSON(t, ts, http.MethodGet, "/api/rounds/1", "", nil)
	check.Equal(t, http.StatusOK, resp.StatusCode)
	check.Equal(t, "finished", body["state"])

	resp, body = doJSON(t, ts, http.MethodGet, "/api/rounds/1/bids/1", "", nil)
	check.Equal(t, http.StatusOK, resp.StatusCode)
	check.Equal(t, true, body["finished"])
	check.Equal(t, true, body["bid"].(map[string]any)["won"])
}

func TestErrorStatusMapping(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/rounds", testAdminToken, nil)
	check.Equal(t, http.StatusCreated, resp.StatusCode)

	// Opening a second round while one is active conflicts.
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/rounds", testAdminToken, nil)
	check.Equal(t, http.StatusConflict, resp.StatusCode)

	// Bid at (not above) the minimum stake is rejected.
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/rounds/1/bids", "", map[string]any{
		"bettor": "alice", "side": "big", "amount": 100,
	})
	check.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown side.
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/rounds/1/bids", "", map[string]any{
		"bettor": "alice", "side": "sideways", "amount": 200,
	})
	check.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown round.
	resp, _ = doJSON(t, ts, http.MethodGet, "/api/rounds/99", "", nil)
	check.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Processing before equalization conflicts.
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/rounds/process", testAdminToken, map[string]any{
		"dice": []int{1, 2, 3},
	})
	check.Equal(t, http.StatusConflict, resp.StatusCode)

	// Dice out of range.
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/rounds/1/equalize", testAdminToken, nil)
	check.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/rounds/process", testAdminToken, map[string]any{
		"dice": []int{0, 5, 4},
	})
	check.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatsAndBalanceEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/rounds", testAdminToken, nil)
	check.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/rounds/1/bids", "", map[string]any{
		"bettor": "alice", "side": "big", "amount": 200,
	})
	check.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodGet, "/api/stats", "", nil)
	check.Equal(t, http.StatusOK, resp.StatusCode)
	check.Equal(t, "standalone", body["mode"])
	check.Equal(t, float64(1), body["total_rounds"].(float64))
	check.Equal(t, float64(1), body["current_round_id"].(float64))

	resp, body = doJSON(t, ts, http.MethodGet, "/api/balance", "", nil)
	check.Equal(t, http.StatusOK, resp.StatusCode)
	check.Equal(t, float64(200), body["total"].(float64))
	check.Equal(t, float64(190), body["held"].(float64))
	check.Equal(t, float64(10), body["retained"].(float64))
}

func TestAdminFeeAndWithdraw(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/rounds", testAdminToken, nil)
	check.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPut, "/api/admin/fee", testAdminToken, map[string]any{
		"fee_percent": 10,
	})
	check.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/rounds/1/bids", "", map[string]any{
		"bettor": "alice", "side": "big", "amount": 200,
	})
	check.Equal(t, http.StatusCreated, resp.StatusCode)
	check.Equal(t, float64(180), body["bid"].(map[string]any)["stake"].(float64))

	// Retained is 20; withdrawing all of it is rejected, one less succeeds.
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/admin/withdraw", testAdminToken, map[string]any{
		"receiver": "payout", "amount": 20,
	})
	check.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/admin/withdraw", testAdminToken, map[string]any{
		"receiver": "payout", "amount": 19,
	})
	check.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuditEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodGet, "/api/audit", "", nil)
	check.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/rounds", testAdminToken, nil)
	check.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/audit?limit=10", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	raw, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /api/audit: %v", err)
	}
	defer raw.Body.Close()
	check.Equal(t, http.StatusOK, raw.StatusCode)

	var body struct {
		Entries []domain.AuditEntry `json:"entries"`
	}
	check.Nil(t, json.NewDecoder(raw.Body).Decode(&body))
	check.Equal(t, 1, len(body.Entries))
	check.Equal(t, "round_created", body.Entries[0].Event)
}

func TestTransferAuthorityEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/admin/authority", testAdminToken, map[string]any{
		"authority": "successor",
	})
	check.Equal(t, http.StatusOK, resp.StatusCode)
	check.Equal(t, "successor", body["authority"])

	// The admin surface keeps working as the new authority.
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/rounds", testAdminToken, nil)
	check.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestUnknownRoutes(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/nope", "/api/rounds/abc"} {
		resp, err := ts.Client().Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
		}
	}
}
