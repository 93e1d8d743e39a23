package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	var (
		addr = "localhost:8080"
		dsn  = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
		key  = "c29tZV9zZWNyZXQ="
		orig = []string{"http://localhost:3000"}
	)

	tcases := []struct {
		name   string
		addr   string
		driver string
		dsn    string
		key    string
		orig   []string
		err    bool
	}{
		{
			name:   "valid config",
			addr:   addr,
			driver: DriverPostgres,
			dsn:    dsn,
			key:    key,
			orig:   orig,
		},
		{
			name:   "sqlite driver",
			addr:   addr,
			driver: DriverSqlite,
			dsn:    "file::memory:",
			key:    key,
			orig:   orig,
		},
		{
			name:   "unknown driver",
			addr:   addr,
			driver: "mongo",
			dsn:    dsn,
			key:    key,
			err:    true,
		},
		{
			name:   "empty address",
			addr:   "",
			driver: DriverPostgres,
			dsn:    dsn,
			key:    key,
			err:    true,
		},
		{
			name:   "empty DSN",
			addr:   addr,
			driver: DriverPostgres,
			dsn:    "",
			key:    key,
			err:    true,
		},
		{
			name:   "empty signing key",
			addr:   addr,
			driver: DriverPostgres,
			dsn:    dsn,
			key:    "",
			err:    true,
		},
		{
			name:   "invalid signing key",
			addr:   addr,
			driver: DriverPostgres,
			dsn:    dsn,
			key:    "not base64!",
			err:    true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := NewConfig(tc.addr, tc.driver, tc.dsn, tc.key, tc.orig)
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			require.NoError(t, err, "expected no error for config: %s", tc.name)

			assert.Equal(t, tc.addr, config.ServerAddr, "expected server address to match")
			assert.Equal(t, tc.driver, config.DatabaseDriver, "expected driver to match")
			assert.Equal(t, tc.dsn, config.DatabaseDSN, "expected database DSN to match")
			assert.Equal(t, tc.orig, config.AllowedOrigins, "expected allowed origins to match")
			assert.Equal(t, []byte("some_secret"), config.SigningKey, "expected signing key to be decoded")
		})
	}
}

func TestNewConfig_DefaultDriver(t *testing.T) {
	cfg, err := NewConfig("localhost:8000", "", "dsn", "c29tZV9zZWNyZXQ=", nil)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, 5*time.Minute, cfg.ProfileCacheTTL)
}

func Test_decodeSigningKey(t *testing.T) {
	tcases := []struct {
		name         string
		base64Secret string
		expectedKey  []byte
		expectError  bool
	}{
		{
			name:         "valid base64 secret",
			base64Secret: "c29tZV9zZWNyZXQ=",
			expectedKey:  []byte("some_secret"),
		},
		{
			name:         "invalid base64 secret",
			base64Secret: "invalid_base64",
			expectError:  true,
		},
		{
			name:         "empty base64 secret",
			base64Secret: "",
			expectError:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := decodeSigningSecret(tc.base64Secret)
			if tc.expectError {
				assert.Error(t, err, "expected error for base64 secret: %s", tc.base64Secret)
				return
			}
			assert.NoError(t, err, "expected no error for base64 secret: %s", tc.base64Secret)
			assert.Equal(t, tc.expectedKey, key)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("file values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flashchat.yaml")
		contents := `
server:
  addr: ":9000"
  allowed_origins:
    - http://a.example
    - http://b.example
database:
  driver: sqlite
  dsn: "file::memory:?cache=shared"
  migrate: false
auth:
  signing_key: c29tZV9zZWNyZXQ=
redis:
  addr: localhost:6379
  profile_ttl: 30s
hub:
  enforce_chat_membership: true
relay:
  server_broadcast: true
notify:
  on_message: true
`
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, ":9000", cfg.ServerAddr)
		assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
		assert.Equal(t, DriverSqlite, cfg.DatabaseDriver)
		assert.Equal(t, "file::memory:?cache=shared", cfg.DatabaseDSN)
		assert.False(t, cfg.Migrate)
		assert.Equal(t, "localhost:6379", cfg.RedisAddr)
		assert.Equal(t, 30*time.Second, cfg.ProfileCacheTTL)
		assert.True(t, cfg.EnforceChatMembership)
		assert.True(t, cfg.ServerBroadcast)
		assert.True(t, cfg.NotifyOnMessage)
	})

	t.Run("env overrides defaults", func(t *testing.T) {
		t.Setenv("FLASHCHAT_AUTH_SIGNING_KEY", "c29tZV9zZWNyZXQ=")
		t.Setenv("FLASHCHAT_SERVER_ADDR", ":7000")
		t.Setenv("FLASHCHAT_SERVER_ALLOWED_ORIGINS", "http://x.example,http://y.example")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, ":7000", cfg.ServerAddr)
		assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
		assert.True(t, cfg.Migrate)
		assert.Equal(t, []string{"http://x.example", "http://y.example"}, cfg.AllowedOrigins)
		assert.False(t, cfg.EnforceChatMembership)
		assert.Empty(t, cfg.RedisAddr)
	})

	t.Run("overrides win over env", func(t *testing.T) {
		t.Setenv("FLASHCHAT_AUTH_SIGNING_KEY", "c29tZV9zZWNyZXQ=")
		t.Setenv("FLASHCHAT_SERVER_ADDR", ":7000")

		cfg, err := Load("",
			Override{Key: "server.addr", Value: ":7100"},
			Override{Key: "database.dsn", Value: "postgres://flag"},
		)
		require.NoError(t, err)
		assert.Equal(t, ":7100", cfg.ServerAddr)
		assert.Equal(t, "postgres://flag", cfg.DatabaseDSN)
	})

	t.Run("missing signing key", func(t *testing.T) {
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
