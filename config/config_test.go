package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  debug: true\n"))
	require.NoError(t, err)

	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, 5002, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Game.CreaturesPerPlayer)
	assert.Equal(t, 10*time.Minute, cfg.Game.TeamSubmitTTL)
	assert.Equal(t, 30*time.Minute, cfg.Game.MatchIdleTimeout)
	assert.Equal(t, time.Minute, cfg.Game.ReapInterval)
	assert.Equal(t, 72*time.Hour, cfg.Security.JWTTTLH)
	assert.Equal(t, 30*time.Second, cfg.Cache.LocalGCInterval)
	assert.Equal(t, 256, cfg.Cache.LocalPubSubBuf)
	assert.Empty(t, cfg.Cache.RedisAddr)
}

func TestLoad_FileValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9000
  admin_key: lobby-key
cache:
  redis_addr: "127.0.0.1:6379"
game:
  creatures_per_player: 5
  rng_seed: 42
  team_submit_ttl: 90s
security:
  jwt_secret: s3cret
  allowed_origins: ["https://crayon.example"]
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "lobby-key", cfg.Server.AdminKey)
	assert.Equal(t, "127.0.0.1:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 5, cfg.Game.CreaturesPerPlayer)
	assert.Equal(t, int64(42), cfg.Game.RNGSeed)
	assert.Equal(t, 90*time.Second, cfg.Game.TeamSubmitTTL)
	assert.Equal(t, "s3cret", cfg.Security.JWTSecret)
	assert.Equal(t, []string{"https://crayon.example"}, cfg.Security.AllowedOrigins)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CRAYON_SECURITY_JWT_SECRET", "from-env")
	t.Setenv("CRAYON_SERVER_PORT", "7777")

	cfg, err := Load(writeConfig(t, "security:\n  jwt_secret: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Security.JWTSecret)
	assert.Equal(t, 7777, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_AdminAndWSLimits(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  admin_allow_ips: ["10.0.0.0/8", "127.0.0.1"]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.AdminAllowIPs)
	assert.Equal(t, 20.0, cfg.Security.WSMessageRPS)
	assert.Equal(t, 40, cfg.Security.WSMessageBurst)
}
