package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/alexanderramin/timeclock/internal/cli"
	"github.com/alexanderramin/timeclock/internal/cli/formatter"
	"github.com/alexanderramin/timeclock/internal/clock"
	"github.com/alexanderramin/timeclock/internal/config"
	"github.com/alexanderramin/timeclock/internal/db"
	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/alexanderramin/timeclock/internal/logging"
	"github.com/alexanderramin/timeclock/internal/repository"
	"github.com/alexanderramin/timeclock/internal/service"
	"github.com/alexanderramin/timeclock/internal/telemetry"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := parseBootstrap(os.Args[1:])

	defaultDB, err := config.DefaultDBPath()
	if err != nil {
		return err
	}
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = os.Getenv("TIMECLOCK_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(filepath.Dir(defaultDB), "config.toml")
	}

	cfg, err := config.Load(configPath, config.Default(defaultDB))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.DBPath != "" {
		cfg.Database.Path = opts.DBPath
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	logger, err := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	formatter.SetColor(!opts.NoColor && os.Getenv("NO_COLOR") == "" &&
		(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())))

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	// Open database
	database, err := db.OpenDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Wire repositories
	itemRepo := repository.NewSQLiteWorkItemRepo(database)
	sessionRepo := repository.NewSQLiteSessionRepo(database)
	auditRepo := repository.NewSQLiteAuditRepo(database)
	grantRepo := repository.NewSQLiteGrantRepo(database)

	// Wire unit of work for transactional operations
	uow := db.NewSQLiteUnitOfWork(database)

	clk := clock.System{}
	observer := service.NewLogUseCaseObserver(logger)
	retry := service.DefaultRetryPolicy()
	retry.MaxTries = cfg.Sweeper.RetryMaxTries

	// Wire collaborators and services
	authz := service.NewStoreGrants(grantRepo, clk)
	limiter := service.NewConcurrencyLimiter(itemRepo, authz, service.PoolCaps{
		domain.PoolWork:   cfg.Limits.WorkCap,
		domain.PoolReview: cfg.Limits.ReviewCap,
	})
	engine := service.NewSessionEngine(uow, clk, limiter, service.NewStoreAssignments(itemRepo), authz,
		service.EngineOptions{SkewTolerance: cfg.Clock.SkewTolerance.Std(), Logger: logger},
		observer,
	)
	auditor := service.NewAuditor(itemRepo, uow, clk, logger, observer)
	sweeper := service.NewStalenessSweeper(engine, itemRepo, auditor, service.NewLogNotifier(logger), clk,
		service.SweeperConfig{
			Interval:        cfg.Sweeper.Interval.Std(),
			AlertThresholds: cfg.Sweeper.Thresholds(),
			AutoCloseAfter:  cfg.Sweeper.AutoCloseAfter.Std(),
			AuditEvery:      cfg.Sweeper.AuditEvery,
			Retry:           retry,
		},
		logger,
		observer,
	)

	app := &cli.App{
		Engine:  engine,
		Limiter: limiter,
		Queries: service.NewTimerQueries(itemRepo, sessionRepo, auditRepo, clk),
		Items:   service.NewItemService(itemRepo, uow, clk, observer),
		Grants:  service.NewGrantService(grantRepo, clk, observer),
		Authz:   authz,
		Auditor: auditor,
		Sweeper: sweeper,
		Clock:   clk,
		Retry:   retry,
		Logger:  logger,
	}

	// Execute root command
	rootCmd := cli.NewRootCmd(app)
	return rootCmd.ExecuteContext(ctx)
}

// parseBootstrap reads the flags needed before the services exist. Anything
// else, including malformed values, is left for cobra to report.
func parseBootstrap(args []string) cli.BootstrapOptions {
	var opts cli.BootstrapOptions
	fs := pflag.NewFlagSet("timeclock", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	cli.BindBootstrapFlags(fs, &opts)
	_ = fs.Parse(args)
	return opts
}
