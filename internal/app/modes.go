package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oddsworks/bigsmall/internal/domain"
	"github.com/oddsworks/bigsmall/internal/notify"
	"github.com/oddsworks/bigsmall/internal/server"
	"github.com/oddsworks/bigsmall/internal/server/handler"
	"github.com/oddsworks/bigsmall/internal/server/ws"
	"github.com/oddsworks/bigsmall/internal/service"
)

// eventsChannel is the pub/sub channel the round manager publishes on. The
// WebSocket hub and the notification relay both consume it.
const eventsChannel = "rounds"

// ServerMode runs the engine against Postgres and Redis: the round manager,
// the HTTP + WebSocket API, the notification relay, and the optional S3 cold
// archive, all under one errgroup.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	svc, err := a.buildRoundService(ctx, deps)
	if err != nil {
		return err
	}

	// WebSocket hub bridges the event feed to browser clients.
	hub := ws.NewHub(deps.EventBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	// Notification relay forwards engine events to Telegram/Discord.
	if deps.EventBus != nil && deps.Notifier != nil {
		relay := notify.NewRelay(deps.EventBus, deps.Notifier, eventsChannel, a.logger)
		g.Go(func() error {
			return relay.Run(ctx)
		})
	}

	// S3 cold archive.
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}

	a.startHTTPServer(ctx, g, deps, svc, hub)

	return g.Wait()
}

// StandaloneMode runs the engine entirely in memory: no Postgres, no Redis,
// no event feed. Useful for local play and development.
func (a *App) StandaloneMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting standalone mode")

	g, ctx := errgroup.WithContext(ctx)

	svc, err := a.buildRoundService(ctx, deps)
	if err != nil {
		return err
	}

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}

	a.startHTTPServer(ctx, g, deps, svc, nil)

	return g.Wait()
}

// buildRoundService constructs the round manager, restores its id sequence
// from the archive, and opens the first round if none is active.
func (a *App) buildRoundService(ctx context.Context, deps *Dependencies) (*service.RoundService, error) {
	cfg := service.GameConfig{
		MinStake:      a.cfg.Game.MinStake,
		FeePercent:    a.cfg.Game.FeePercent,
		Authority:     a.cfg.Game.Authority,
		BidRateLimit:  a.cfg.Game.BidRateLimit,
		BidRateWindow: a.cfg.Game.BidRateWindow.Duration,
	}

	svc := service.NewRoundService(
		deps.Treasury,
		deps.Rounds,
		deps.Audit,
		deps.EventBus,
		deps.RateLimiter,
		deps.LockManager,
		cfg,
		a.logger,
	)

	if err := svc.Restore(ctx); err != nil {
		return nil, fmt.Errorf("app: restore round manager: %w", err)
	}

	// The open round lives in memory, so a restart always starts without
	// one. Open it here so the engine accepts bids immediately.
	round, err := svc.CreateRound(ctx, a.cfg.Game.Authority)
	switch {
	case err == nil:
		a.logger.InfoContext(ctx, "opened round",
			slog.Int64("round_id", round.ID),
		)
	case errors.Is(err, domain.ErrRoundAlreadyActive):
		// Another replica got there first.
	default:
		return nil, fmt.Errorf("app: open first round: %w", err)
	}

	return svc, nil
}

// startHTTPServer registers the API routes and runs the server under the
// errgroup, shutting it down gracefully when the context is cancelled.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	svc *service.RoundService,
	hub *ws.Hub,
) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled")
		return
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Rounds: handler.NewRoundHandler(svc, a.logger),
		Bids:   handler.NewBidHandler(svc, a.logger),
		Admin:  handler.NewAdminHandler(svc, a.cfg.Game.Authority, a.logger),
		Status: handler.NewStatusHandler(svc, a.cfg.Mode, a.logger),
	}
	if deps.Audit != nil {
		handlers.Audit = handler.NewAuditHandler(deps.Audit, a.logger)
	}
	if deps.BlobReader != nil {
		handlers.Archive = handler.NewArchiveHandler(deps.BlobReader, deps.ArchivePrefix, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		AdminToken:  deps.AdminToken,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
