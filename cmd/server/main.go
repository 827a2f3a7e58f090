/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rewards server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize logging and Sentry
  3. Open the database and apply migrations
  4. Build notifier, cache, file storage, directory and sessions
  5. Create the rewards service and API handler
  6. Start the directory sync scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -addr    HTTP listen address (overrides HTTP_ADDR)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  See config/config.go. The important ones:
    DB_DRIVER, DATABASE_URL      sqlite (default) or postgres
    SESSION_SECRET, SESSION_KEY  required in prod; random per run otherwise
    LDAP_URL, LDAP_BIND_DN, ...  directory; without it members use dev login
    AMQP_URL                     notifications queue; logged when unset
    REDIS_ADDR                   leaderboard cache; in-process when unset
    SENTRY_DSN                   error reporting

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close notifier and database connection
  5. Flush Sentry

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment variables
  - store/sqldb/sqldb.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/recognition-engine/api"
	"github.com/warp/recognition-engine/auth"
	"github.com/warp/recognition-engine/cache"
	"github.com/warp/recognition-engine/config"
	"github.com/warp/recognition-engine/directory"
	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/logging"
	"github.com/warp/recognition-engine/metrics"
	"github.com/warp/recognition-engine/notify"
	"github.com/warp/recognition-engine/observability"
	"github.com/warp/recognition-engine/rewards"
	"github.com/warp/recognition-engine/storage"
	"github.com/warp/recognition-engine/store/sqldb"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer lg.Closer()
	log := lg.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, cfg.Release)
	if err != nil {
		log.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	if err := run(cfg, log); err != nil {
		observability.CaptureErr(err)
		log.Error("server failed", zap.Error(err))
		flush()
		lg.Closer()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	clock := generic.SystemClock{}

	// Database
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBTimeout)
	defer cancel()
	db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	// Notifications
	var next generic.Notifier = notify.NewLogger(log, clock)
	if cfg.AMQPURL != "" {
		pub := notify.NewPublisher(cfg.AMQPURL, cfg.NotifyQueue, log, clock)
		defer pub.Close()
		next = pub
	}
	notifier := notify.NewReporting(next, observability.CaptureWithTags)

	// Leaderboard cache
	var lbCache cache.Leaderboard = cache.NewMemory(cfg.CacheTTL, clock)
	if cfg.RedisAddr != "" {
		rdb := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		defer rdb.Close()
		lbCache = cache.NewRedis(rdb, cfg.CacheTTL, log)
	}

	files, err := storage.NewFiles(cfg.UploadDir, log)
	if err != nil {
		return fmt.Errorf("upload dir: %w", err)
	}

	// Directory
	var dir directory.Directory = directory.NewStatic()
	if cfg.LDAP.Enabled() {
		lc := directory.LDAPConfig{
			URL:          cfg.LDAP.URL,
			BindDN:       cfg.LDAP.BindDN,
			BindPassword: cfg.LDAP.BindPassword,
			BaseDN:       cfg.LDAP.BaseDN,
		}
		if err := lc.Validate(); err != nil {
			return err
		}
		dir = directory.NewLDAP(lc, log)
	} else {
		log.Warn("LDAP_URL not set, members can only sign in through dev login")
	}
	syncer := directory.NewSyncer(dir, db, directory.SyncConfig{
		BatchSize:  cfg.SyncBatchSize,
		BatchDelay: cfg.SyncBatchDelay,
	}, log, clock)

	sessions, err := newSessions(cfg, log, clock)
	if err != nil {
		return err
	}

	workflow := generic.NewWorkflow(generic.WorkflowConfig{
		Store:     db,
		Notifier:  notifier,
		Logger:    log,
		Clock:     clock,
		Metrics:   metrics.Workflow{},
		ClientURL: cfg.ClientURL,
	})
	svc := rewards.NewService(rewards.Config{
		Store:    db,
		Workflow: workflow,
		Files:    files,
		Cache:    lbCache,
		Logger:   log,
		Clock:    clock,
	})

	scheduler := api.NewSyncScheduler(syncer, log)
	if cfg.LDAP.Enabled() {
		scheduler.Interval = cfg.SyncInterval
	}
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(api.Options{
		Service:      svc,
		Login:        auth.NewLogin(db, dir, sessions, log),
		Sessions:     sessions,
		Files:        files,
		Syncer:       syncer,
		Scheduler:    scheduler,
		DB:           db,
		Logger:       log,
		CookieName:   cfg.CookieName,
		SecureCookie: cfg.Production(),
		DevLogin:     !cfg.Production(),
		CORSOrigins:  cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Env), zap.String("db", cfg.DBDriver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.Stringer("signal", sig))
	}

	scheduler.Stop()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*sqldb.Store, error) {
	if cfg.DBDriver == "postgres" {
		return sqldb.Open(ctx, "pgx", cfg.DatabaseURL, log)
	}
	return sqldb.Open(ctx, "sqlite3", cfg.DBPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", log)
}

// newSessions uses the configured secrets. Outside prod a missing secret is
// replaced with a random one, so sessions do not survive a restart.
func newSessions(cfg *config.Config, log *zap.Logger, clock generic.Clock) (*auth.Sessions, error) {
	secret, key := cfg.SessionSecret, cfg.SessionKey
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("SESSION_SECRET not set, using a random secret")
	}
	if key == "" {
		key = strings.ReplaceAll(uuid.NewString(), "-", "")
		log.Warn("SESSION_KEY not set, using a random key")
	}
	return auth.NewSessions(secret, key, cfg.SessionTTL, clock)
}
