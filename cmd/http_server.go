package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/claims-management/internal"
	"github.com/frahmantamala/claims-management/internal/auth"
	"github.com/frahmantamala/claims-management/internal/claim"
	claimPostgres "github.com/frahmantamala/claims-management/internal/claim/postgres"
	"github.com/frahmantamala/claims-management/internal/core/events"
	"github.com/frahmantamala/claims-management/internal/document"
	"github.com/frahmantamala/claims-management/internal/metrics"
	"github.com/frahmantamala/claims-management/internal/report"
	"github.com/frahmantamala/claims-management/internal/transport/middleware"
	"github.com/frahmantamala/claims-management/internal/transport/rest"
	"github.com/frahmantamala/claims-management/internal/transport/swagger"
	"github.com/frahmantamala/claims-management/internal/user"
	userPostgres "github.com/frahmantamala/claims-management/internal/user/postgres"
	"github.com/frahmantamala/claims-management/pkg/logger"
	"github.com/frahmantamala/claims-management/pkg/password"
)

const shutdownTimeout = 30 * time.Second

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Router   *chi.Mux
	EventBus *events.EventBus
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		deps.Logger.Error("failed to set up routes", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		if err := deps.EventBus.Drain(ctx); err != nil {
			deps.Logger.Error("Event handlers did not finish", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config
	lg := deps.Logger

	hasher := password.NewHasher(cfg.Security.BCryptCost)
	tokens := auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.AccessTokenDuration)

	docs, err := document.NewLocalStore(cfg.Storage.DocumentsDir, lg)
	if err != nil {
		return fmt.Errorf("document store: %w", err)
	}

	userRepo := userPostgres.NewUserRepository(deps.Gorm)
	userService := user.NewService(userRepo, hasher, lg)
	authService := auth.NewService(userRepo, hasher, tokens, lg)
	claimService := claim.NewService(
		claimPostgres.NewClaimRepository(deps.Gorm),
		docs,
		deps.EventBus,
		lg,
		claim.WithMaxDocumentSize(cfg.Storage.MaxDocumentSize),
	)

	routeDeps := rest.Dependencies{
		DB:             deps.DB,
		Logger:         lg,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AuthHandler:    auth.NewHandler(authService),
		RBAC:           auth.NewRBAC(lg),
		UserHandler:    user.NewHandler(userService),
		ClaimHandler:   claim.NewHandler(claimService, cfg.Storage.MaxDocumentSize),
		ReportHandler:  report.NewHandler(claimService),
		LoginLimiter:   middleware.NewRateLimiter(cfg.Security.LoginRatePerSecond, cfg.Security.LoginBurst, lg),
	}

	if cfg.Observability.Metrics.Enabled {
		recorder := metrics.NewRecorder()
		recorder.Subscribe(deps.EventBus)
		if err := recorder.RegisterDB(deps.DB.DB, "postgres"); err != nil {
			return fmt.Errorf("register db metrics: %w", err)
		}
		routeDeps.Metrics = recorder
		routeDeps.MetricsPath = cfg.Observability.Metrics.Path
	}

	if path := cfg.Server.OpenAPISpecPath; path != "" {
		spec, err := swagger.LoadSpec(context.Background(), path)
		if err != nil {
			lg.Warn("OpenAPI spec not served", "path", path, "error", err)
		} else {
			routeDeps.Spec = spec
		}
	}

	subscribeReviewAlerts(deps.EventBus, lg)
	rest.RegisterAllRoutes(deps.Router, routeDeps)
	return nil
}

// subscribeReviewAlerts logs a warning for every claim that needs manual review.
func subscribeReviewAlerts(bus *events.EventBus, lg *slog.Logger) {
	bus.Subscribe(events.EventTypeClaimSubmitted, func(ctx context.Context, event events.Event) error {
		e, ok := event.(*events.ClaimSubmittedEvent)
		if !ok || !e.NeedsManualReview {
			return nil
		}
		lg.Warn("claim flagged for manual review",
			"claim_id", e.ClaimID,
			"lecturer_id", e.LecturerID,
			"total_amount", e.TotalAmount.StringFixed(2))
		return nil
	})
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	lg := logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := initGorm(db, config.Observability.Logging.Level)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	return &Dependencies{
		Config:   config,
		DB:       db,
		Gorm:     gdb,
		Router:   chi.NewRouter(),
		EventBus: events.NewEventBus(lg),
		Logger:   lg,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm opens gorm on top of the sqlx pool so both share connections.
func initGorm(db *sqlx.DB, level string) (*gorm.DB, error) {
	gormLog := gormlogger.Default.LogMode(gormlogger.Error)
	if level == "debug" {
		gormLog = gormlogger.Default.LogMode(gormlogger.Info)
	}

	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
}
