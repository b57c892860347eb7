package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/sundayezeilo/shortlinker/internal/accesslog"
	"github.com/sundayezeilo/shortlinker/internal/config"
	"github.com/sundayezeilo/shortlinker/internal/metrics"
	"github.com/sundayezeilo/shortlinker/internal/server"
	"github.com/sundayezeilo/shortlinker/internal/shortener"
)

// App holds the application dependencies and configuration.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DBPool    *pgxpool.Pool
	SQLite    *shortener.SQLiteSource
	AccessLog *accesslog.Cache
	Server    *server.Server
	Handler   *shortener.Handler
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"storage_driver", cfg.Storage.Driver,
		"storage_dir", cfg.Storage.Dir,
	)

	a := &App{Config: cfg, Logger: logger}

	reg := metrics.NewRegistry()
	collector := metrics.New(reg, cfg.Metrics.Namespace)
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = metrics.Handler(reg)
	}

	src, err := a.openSource(ctx)
	if err != nil {
		return nil, err
	}
	if err := src.Init(ctx); err != nil {
		a.closeDB()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// The logs directory lives under the storage dir for both drivers.
	accessLog, err := accesslog.New(accesslog.Config{
		Dir:           shortener.LogsDir(cfg.Storage.Dir),
		IdleThreshold: cfg.AccessLog.IdleThreshold,
		SweepInterval: cfg.AccessLog.SweepInterval,
		Logger:        logger,
		Stats:         collector,
	})
	if err != nil {
		a.closeDB()
		return nil, fmt.Errorf("failed to create access log: %w", err)
	}
	accessLog.Start()
	a.AccessLog = accessLog

	// Setup application dependencies
	repo := shortener.NewRepository(src, &shortener.RepositoryConfig{
		CacheTTL: cfg.Storage.CacheTTL,
	})
	svc := shortener.NewService(repo, accessLog, &shortener.ServiceConfig{
		Logger: logger,
		Stats:  collector,
	})
	a.Handler = shortener.NewHandler(shortener.HandlerConfig{
		Service: svc,
		Logger:  logger,
	})

	// Create server
	a.Server = server.New(cfg, logger, a.Handler, metricsHandler)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"metrics_enabled", cfg.Metrics.Enabled,
		"sweep_interval", cfg.AccessLog.SweepInterval.String(),
		"idle_threshold", cfg.AccessLog.IdleThreshold.String(),
	)

	return a, nil
}

// openSource builds the record source for the configured driver.
func (a *App) openSource(ctx context.Context) (shortener.Source, error) {
	cfg := a.Config
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		dbPool, err := connectDatabase(ctx, cfg, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DBPool = dbPool
		return shortener.NewPostgresSource(dbPool), nil
	case config.StorageDriverSQLite:
		// A local database file is created inside the storage dir by default.
		if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage dir: %w", err)
		}
		a.Logger.Info("opening sqlite database",
			"driver", shortener.SQLiteDriverName(cfg.Storage.SQLiteDSN()),
		)
		src, err := shortener.OpenSQLiteSource(ctx, cfg.Storage.SQLiteDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		a.SQLite = src
		return src, nil
	default:
		return shortener.NewFileSource(cfg.Storage.Dir, cfg.Storage.Format), nil
	}
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting",
		"host", a.Config.Server.Host,
		"port", a.Config.Server.Port,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	var errs []error
	if a.AccessLog != nil {
		if err := a.AccessLog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close access log: %w", err))
		} else {
			a.Logger.Info("access log closed")
		}
	}

	a.closeDB()

	return errors.Join(errs...)
}

func (a *App) closeDB() {
	if a.DBPool != nil {
		a.DBPool.Close()
		a.DBPool = nil
		a.Logger.Info("database connection closed")
	}
	if a.SQLite != nil {
		if err := a.SQLite.Close(); err != nil {
			a.Logger.Error("failed to close sqlite database", "error", err.Error())
		}
		a.SQLite = nil
		a.Logger.Info("sqlite database closed")
	}
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// connectDatabase establishes a connection to the PostgreSQL database.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Set pool configuration
	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}
