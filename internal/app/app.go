// Package app wires the engine's services from configuration. Both binaries
// build their graph here so the API server and the back-office share one
// construction order.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evetabi/furbito/internal/config"
	"github.com/evetabi/furbito/internal/events"
	"github.com/evetabi/furbito/internal/feed"
	"github.com/evetabi/furbito/internal/lock"
	"github.com/evetabi/furbito/internal/market"
	"github.com/evetabi/furbito/internal/metrics"
	"github.com/evetabi/furbito/internal/notify"
	"github.com/evetabi/furbito/internal/odds"
	"github.com/evetabi/furbito/internal/repository"
	"github.com/evetabi/furbito/internal/service"
	"github.com/evetabi/furbito/internal/store"
	"github.com/evetabi/furbito/internal/store/memstore"
	"github.com/evetabi/furbito/internal/ws"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options selects the optional parts of the graph.
type Options struct {
	// Memory uses the in-process store instead of PostgreSQL.
	Memory bool
	// MigrationsDir is applied on start when set (PostgreSQL only).
	MigrationsDir string
	// WithHub creates the WebSocket hub and wires it as broadcaster.
	WithHub bool
	// Registerer receives the metrics; nil uses a private registry.
	Registerer prometheus.Registerer
}

// App holds the constructed services.
type App struct {
	Cfg      *config.Config
	Log      *zap.Logger
	Store    store.Store
	Metrics  *metrics.Metrics
	Hub      *ws.Hub
	Locker   lock.Locker
	Feed     feed.Provider
	Notifier *notify.Dispatcher

	Auth       *service.AuthService
	Bets       *service.BetService
	Events     *service.EventService
	Accounts   *service.AccountService
	Stats      *service.StatsService
	Settlement *service.SettlementService
	Sync       *service.SyncService // nil when no feed is configured

	closers []func() error
}

// New builds the graph. Optional backends (Redis, Kafka, Telegram) fall back
// to local implementations when unconfigured.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	a := &App{Cfg: cfg, Log: log}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	a.Metrics = metrics.New(reg)

	// ── 1. Store ──────────────────────────────────────────────────────────────
	if opts.Memory {
		a.Store = memstore.New()
		log.Warn("using in-memory store; data is lost on exit")
	} else {
		db, err := openDB(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if opts.MigrationsDir != "" {
			if err := runMigrations(ctx, db, opts.MigrationsDir, log); err != nil {
				a.Close()
				return nil, err
			}
		}
		a.Store = repository.NewPostgresStore(db)
		log.Info("database connected")
	}

	// ── 2. Redis: feed cache and job lock ─────────────────────────────────────
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable; using local lock and uncached feed", zap.Error(err))
			_ = rdb.Close()
			rdb = nil
		} else {
			a.closers = append(a.closers, rdb.Close)
		}
	}
	if rdb != nil {
		a.Locker = lock.NewRedisLocker(rdb)
	} else {
		a.Locker = lock.NewLocal()
	}

	// ── 3. Feed ───────────────────────────────────────────────────────────────
	var fp feed.Provider = feed.Static{}
	if cfg.Sync.FeedPath != "" {
		fp = feed.FileProvider{Path: cfg.Sync.FeedPath}
		if rdb != nil {
			fp = feed.NewCachedProvider(fp, rdb, cfg.Sync.CacheTTL, log)
		}
	}
	a.Feed = fp

	// ── 4. Publisher ──────────────────────────────────────────────────────────
	var pub events.Publisher = events.Nop{}
	if cfg.Kafka.Brokers != "" {
		pub = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		log.Info("publishing domain events", zap.String("topic", cfg.Kafka.Topic))
	}
	a.closers = append(a.closers, pub.Close)

	// ── 5. Notifications ──────────────────────────────────────────────────────
	var sender notify.Sender = notify.LogSender{Log: log}
	if cfg.Notify.TelegramToken != "" {
		tg, err := notify.NewTelegramSender(cfg.Notify.TelegramToken)
		if err != nil {
			log.Warn("telegram unavailable; notifications are logged", zap.Error(err))
		} else {
			sender = tg
		}
	}
	a.Notifier = notify.NewDispatcher(a.Store, sender, cfg.Notify.Timeout, log, a.Metrics)

	// ── 6. Services (order matters for injection) ─────────────────────────────
	hooks := service.Hooks{Publisher: pub, Notifier: a.Notifier, Metrics: a.Metrics, Log: log}
	gen := market.NewGenerator(odds.NewPricer(odds.Config(cfg.Odds)))

	a.Settlement = service.NewSettlementService(a.Store, hooks)
	a.Events = service.NewEventService(a.Store, gen, fp, a.Settlement, hooks)
	a.Bets = service.NewBetService(a.Store, cfg, hooks)
	a.Auth = service.NewAuthService(a.Store, cfg, hooks)
	a.Accounts = service.NewAccountService(a.Store, cfg, hooks)
	a.Stats = service.NewStatsService(a.Store, gen.Pricer(), fp)
	if cfg.Sync.FeedPath != "" {
		a.Sync = service.NewSyncService(a.Store, a.Events, fp, cfg.Sync, hooks)
	}

	// ── 7. WebSocket hub ──────────────────────────────────────────────────────
	if opts.WithHub {
		a.Hub = ws.NewHub(a.Auth, cfg.Server.Origins(), log, a.Metrics)
		a.Events.SetBroadcaster(a.Hub)
		a.Settlement.SetBroadcaster(a.Hub)
	}

	return a, nil
}

// Close waits for pending notifications and releases backends in reverse
// order of creation.
func (a *App) Close() error {
	if a.Notifier != nil {
		a.Notifier.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// ──────────────────────────────────────────────────────────────────────────────
// Database
// ──────────────────────────────────────────────────────────────────────────────

func openDB(ctx context.Context, cfg config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("app: database connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// runMigrations reads all *.sql files from dir, sorted by name, and executes
// them sequentially. Idempotent: SQL files use IF NOT EXISTS.
func runMigrations(ctx context.Context, db *sqlx.DB, dir string, log *zap.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("runMigrations: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("runMigrations: read %q: %w", f, err)
		}
		if _, err = db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("runMigrations: exec %q: %w", f, err)
		}
		log.Info("migration applied", zap.String("file", filepath.Base(f)))
	}
	return nil
}
