package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"

	envPrefix = "FLASHCHAT"
)

type Config struct {
	ServerAddr     string
	DatabaseDriver string
	DatabaseDSN    string
	Migrate        bool
	SigningKey     []byte
	AllowedOrigins []string

	// RedisAddr is optional. When empty, profile lookups always go to the store.
	RedisAddr       string
	ProfileCacheTTL time.Duration

	EnforceChatMembership bool
	ServerBroadcast       bool
	NotifyOnMessage       bool
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("empty secret")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDriver, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	switch databaseDriver {
	case DriverPostgres, DriverSqlite:
	case "":
		databaseDriver = DriverPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", databaseDriver)
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:      serverAddr,
		DatabaseDriver:  databaseDriver,
		DatabaseDSN:     databaseDSN,
		SigningKey:      signingKey,
		AllowedOrigins:  allowedOrigins,
		ProfileCacheTTL: 5 * time.Minute,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "localhost:8000")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable")
	v.SetDefault("database.migrate", true)
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.profile_ttl", "5m")
	v.SetDefault("hub.enforce_chat_membership", false)
	v.SetDefault("relay.server_broadcast", false)
	v.SetDefault("notify.on_message", false)
}

// Override sets a single key with the highest precedence, the way an
// explicitly passed command line flag does.
type Override struct {
	Key   string
	Value any
}

// Load reads configuration from defaults, an optional YAML file at path,
// FLASHCHAT_* environment variables and overrides, in increasing order of
// precedence.
func Load(path string, overrides ...Override) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	for _, o := range overrides {
		v.Set(o.Key, o.Value)
	}

	cfg, err := NewConfig(
		v.GetString("server.addr"),
		v.GetString("database.driver"),
		v.GetString("database.dsn"),
		v.GetString("auth.signing_key"),
		splitOrigins(v.GetStringSlice("server.allowed_origins")),
	)
	if err != nil {
		return nil, err
	}

	cfg.Migrate = v.GetBool("database.migrate")
	cfg.RedisAddr = v.GetString("redis.addr")
	if ttl := v.GetDuration("redis.profile_ttl"); ttl > 0 {
		cfg.ProfileCacheTTL = ttl
	}
	cfg.EnforceChatMembership = v.GetBool("hub.enforce_chat_membership")
	cfg.ServerBroadcast = v.GetBool("relay.server_broadcast")
	cfg.NotifyOnMessage = v.GetBool("notify.on_message")

	return cfg, nil
}

// splitOrigins accepts both YAML lists and comma separated env values.
func splitOrigins(in []string) []string {
	var out []string
	for _, s := range in {
		for _, o := range strings.Split(s, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}
