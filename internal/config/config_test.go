package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	check.Nil(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "cluster"
	cfg.Game.FeePercent = 150
	cfg.Game.Authority = ""
	cfg.Server.Port = 0

	err := cfg.Validate()
	check.NotNil(t, err)
	msg := err.Error()
	check.True(t, strings.Contains(msg, "unknown mode"))
	check.True(t, strings.Contains(msg, "fee_percent"))
	check.True(t, strings.Contains(msg, "authority"))
	check.True(t, strings.Contains(msg, "server: port"))
}

func TestStandaloneSkipsBackendChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "standalone"
	cfg.Postgres.Host = ""
	cfg.Postgres.Database = ""
	cfg.Redis.Addr = ""
	check.Nil(t, cfg.Validate())
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "standalone"

[game]
min_stake = 250
fee_percent = 10
authority = "house"
bid_rate_window = "30s"

[server]
port = 9090
`
	check.Nil(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv("BIGSMALL_GAME_FEE_PERCENT", "20")
	t.Setenv("BIGSMALL_REDIS_ADDR", "redis:6380")
	t.Setenv("BIGSMALL_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	check.Nil(t, err)
	check.Nil(t, cfg.Validate())

	// File values override defaults.
	check.Equal(t, "standalone", cfg.Mode)
	check.Equal(t, int64(250), cfg.Game.MinStake)
	check.Equal(t, "house", cfg.Game.Authority)
	check.Equal(t, 30*time.Second, cfg.Game.BidRateWindow.Duration)
	check.Equal(t, 9090, cfg.Server.Port)

	// Env values override the file.
	check.Equal(t, int64(20), cfg.Game.FeePercent)
	check.Equal(t, "redis:6380", cfg.Redis.Addr)
	check.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)

	// Untouched fields keep their defaults.
	check.Equal(t, "localhost", cfg.Postgres.Host)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Redis.Password = "hunter2"
	cfg.S3.SecretKey = "hunter2"
	cfg.Auth.AdminToken = "hunter2"

	red := RedactedConfig(&cfg)
	check.Equal(t, "***", red.Postgres.Password)
	check.Equal(t, "***", red.Redis.Password)
	check.Equal(t, "***", red.S3.SecretKey)
	check.Equal(t, "***", red.Auth.AdminToken)

	// The original is untouched.
	check.Equal(t, "hunter2", cfg.Postgres.Password)

	// Mutating the redacted copy's slices must not leak back.
	red.Notify.Events[0] = "changed"
	check.Equal(t, "round_processed", cfg.Notify.Events[0])
}
