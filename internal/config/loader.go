package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BIGSMALL_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BIGSMALL_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Game ──
	setInt64(&cfg.Game.MinStake, "BIGSMALL_GAME_MIN_STAKE")
	setInt64(&cfg.Game.FeePercent, "BIGSMALL_GAME_FEE_PERCENT")
	setStr(&cfg.Game.Authority, "BIGSMALL_GAME_AUTHORITY")
	setInt(&cfg.Game.BidRateLimit, "BIGSMALL_GAME_BID_RATE_LIMIT")
	setDuration(&cfg.Game.BidRateWindow, "BIGSMALL_GAME_BID_RATE_WINDOW")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BIGSMALL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BIGSMALL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BIGSMALL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BIGSMALL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BIGSMALL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BIGSMALL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BIGSMALL_POSTGRES_SSLMODE")
	setStr(&cfg.Postgres.SSLMode, "BIGSMALL_POSTGRES_SSL_MODE") // compatibility alias
	setInt(&cfg.Postgres.PoolMaxConns, "BIGSMALL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BIGSMALL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BIGSMALL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BIGSMALL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BIGSMALL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BIGSMALL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BIGSMALL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BIGSMALL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BIGSMALL_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "BIGSMALL_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BIGSMALL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BIGSMALL_S3_REGION")
	setStr(&cfg.S3.Bucket, "BIGSMALL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BIGSMALL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BIGSMALL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BIGSMALL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BIGSMALL_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.ArchivePrefix, "BIGSMALL_S3_ARCHIVE_PREFIX")
	setDuration(&cfg.S3.ArchiveInterval, "BIGSMALL_S3_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BIGSMALL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BIGSMALL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BIGSMALL_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "BIGSMALL_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "BIGSMALL_SERVER_RATE_WINDOW")

	// ── Auth ──
	setStr(&cfg.Auth.AdminToken, "BIGSMALL_AUTH_ADMIN_TOKEN")
	setStr(&cfg.Auth.KeystorePath, "BIGSMALL_AUTH_KEYSTORE_PATH")
	setStr(&cfg.Auth.KeystorePassword, "BIGSMALL_AUTH_KEYSTORE_PASSWORD")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BIGSMALL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BIGSMALL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BIGSMALL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BIGSMALL_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BIGSMALL_MODE")
	setStr(&cfg.LogLevel, "BIGSMALL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
