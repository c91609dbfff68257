package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/oddsworks/bigsmall/internal/blob/s3"
	"github.com/oddsworks/bigsmall/internal/cache/redis"
	"github.com/oddsworks/bigsmall/internal/config"
	"github.com/oddsworks/bigsmall/internal/crypto"
	"github.com/oddsworks/bigsmall/internal/domain"
	"github.com/oddsworks/bigsmall/internal/ledger"
	"github.com/oddsworks/bigsmall/internal/notify"
	"github.com/oddsworks/bigsmall/internal/store/memory"
	"github.com/oddsworks/bigsmall/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	Treasury domain.Treasury
	Rounds   domain.RoundStore
	Audit    domain.AuditStore

	// Redis-backed collaborators (nil in standalone mode).
	EventBus    domain.EventBus
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	// Blob storage (nil unless the S3 archive is enabled).
	Archiver      *s3blob.Archiver
	BlobReader    domain.BlobReader
	ArchivePrefix string

	// Notifications
	Notifier *notify.Notifier

	// AdminToken guards the authority's HTTP routes. Empty disables auth.
	AdminToken string
}

// needsBackends returns true for modes that dial Postgres and Redis.
// Standalone mode runs entirely in memory.
func needsBackends(mode string) bool {
	return strings.ToLower(mode) == "server"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Admin token (raw config value or encrypted keystore) ---
	if cfg.Auth.AdminToken != "" || cfg.Auth.KeystorePath != "" {
		token, err := crypto.LoadToken(crypto.TokenConfig{
			RawToken:     cfg.Auth.AdminToken,
			KeystorePath: cfg.Auth.KeystorePath,
			Password:     cfg.Auth.KeystorePassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("wire: admin token: %w", err)
		}
		deps.AdminToken = token
	} else {
		logger.Warn("wire: no admin token configured, authority routes are unauthenticated")
	}

	if needsBackends(cfg.Mode) {
		// --- PostgreSQL ---
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Treasury = postgres.NewTreasury(pool)
		deps.Rounds = postgres.NewRoundStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)

		// --- Redis ---
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.EventBus = redis.NewEventBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
	} else {
		// Standalone: everything in memory, single process.
		deps.Treasury = ledger.New()
		deps.Rounds = memory.NewRoundStore()
	}

	// --- S3 round archive ---
	if cfg.S3.Enabled {
		if deps.Rounds == nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3 archive requires a round store")
		}
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.Rounds,
			deps.Audit,
			cfg.S3.ArchivePrefix,
			cfg.S3.ArchiveInterval.Duration,
			logger,
		)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.ArchivePrefix = cfg.S3.ArchivePrefix
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
