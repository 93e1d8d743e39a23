package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/flashchat/internal/api"
	"github.com/npezzotti/flashchat/internal/cache"
	"github.com/npezzotti/flashchat/internal/config"
	"github.com/npezzotti/flashchat/internal/database"
	"github.com/npezzotti/flashchat/internal/notify"
	"github.com/npezzotti/flashchat/internal/relay"
	"github.com/npezzotti/flashchat/internal/server"
	"github.com/npezzotti/flashchat/internal/stats"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	configPath     string
	addr           string
	driver         string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
)

// flagOverrides turns the flags present on the command line into config
// overrides so unset flags never mask file or environment values.
func flagOverrides() []config.Override {
	keys := map[string]string{
		"addr":            "server.addr",
		"driver":          "database.driver",
		"dsn":             "database.dsn",
		"signing-key":     "auth.signing_key",
		"allowed-origins": "server.allowed_origins",
	}

	var overrides []config.Override
	flag.Visit(func(f *flag.Flag) {
		key, ok := keys[f.Name]
		if !ok {
			return
		}
		var value any = f.Value.String()
		if f.Name == "allowed-origins" {
			value = []string(allowedOrigins)
		}
		overrides = append(overrides, config.Override{Key: key, Value: value})
	})
	return overrides
}

func newProfileCache(ctx context.Context, logger *log.Logger, cfg *config.Config, su *stats.StatsUpdater) cache.ProfileCache {
	if cfg.RedisAddr == "" {
		return cache.NopProfileCache{}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	rc := cache.NewRedisProfileCache(client, cache.DefaultPrefix, cfg.ProfileCacheTTL)
	if err := rc.Ping(ctx); err != nil {
		logger.Printf("redis unavailable at %s, profile cache disabled: %v", cfg.RedisAddr, err)
		client.Close()
		return cache.NopProfileCache{}
	}

	logger.Printf("profile cache enabled at %s", cfg.RedisAddr)
	su.Publish("ProfileCache", func() any { return rc.Stats() })
	return rc
}

func main() {
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&driver, "driver", config.DriverPostgres, "database driver (postgres or sqlite)")
	flag.StringVar(&dsn, "dsn", "", "database connection string")
	flag.StringVar(&signingKey, "signing-key", "", "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[flashchat] ", log.LstdFlags)

	cfg, err := config.Load(configPath, flagOverrides()...)
	if err != nil {
		logger.Fatal("config:", err)
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, cfg.Migrate)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	hub := server.NewHub(logger, statsUpdater)

	var checker server.MembershipChecker
	if cfg.EnforceChatMembership {
		checker = db
	}
	router := server.NewRouter(logger)
	server.RegisterRoomHandlers(router, hub, checker)

	profiles := cache.NewProfileResolver(db, newProfileCache(ctx, logger, cfg, statsUpdater), logger)
	notifier := notify.NewDispatcher(logger, db, profiles, hub, statsUpdater)
	rl := relay.NewRelay(logger, db, profiles, hub, notifier, statsUpdater, relay.Options{
		ServerBroadcast:   cfg.ServerBroadcast,
		NotifyOnMessage:   cfg.NotifyOnMessage,
		RequireMembership: cfg.EnforceChatMembership,
	})
	rl.RegisterHandlers(router)

	app := api.NewApp(mux, logger, db, hub, router, profiles, notifier, rl, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := app.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Println("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Println("server:", err)
	}

	logger.Println("shutdown complete")
}
