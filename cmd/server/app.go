package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/tasktracker/internal/api"
	"github.com/phrazzld/tasktracker/internal/batch"
	"github.com/phrazzld/tasktracker/internal/bot"
	"github.com/phrazzld/tasktracker/internal/config"
	"github.com/phrazzld/tasktracker/internal/extraction"
	"github.com/phrazzld/tasktracker/internal/generation"
	"github.com/phrazzld/tasktracker/internal/ledger"
	"github.com/phrazzld/tasktracker/internal/observability"
	"github.com/phrazzld/tasktracker/internal/platform/gemini"
	"github.com/phrazzld/tasktracker/internal/platform/openai"
	"github.com/phrazzld/tasktracker/internal/platform/postgres"
	"github.com/phrazzld/tasktracker/internal/platform/sheets"
	"github.com/phrazzld/tasktracker/internal/platform/telegram"
	"github.com/phrazzld/tasktracker/internal/scheduler"
	"github.com/phrazzld/tasktracker/internal/service/auth"
	"github.com/phrazzld/tasktracker/internal/service/prioritization"
	"github.com/phrazzld/tasktracker/internal/staff"
	"github.com/phrazzld/tasktracker/internal/store"
	"github.com/phrazzld/tasktracker/internal/task"
)

const (
	hourlyPassJob = "hourly_pass"
	recountJob    = "recount"
	metricsPrefix = "tasktracker"
)

// application holds the shared dependencies and owns their shutdown.
type application struct {
	config   *config.Config
	logger   *slog.Logger
	db       *sql.DB
	location *time.Location
	metrics  *observability.Metrics

	stores     store.Stores
	staffStore store.StaffStore
	ledger     ledger.Ledger

	prioritizer *prioritization.Service
	processor   *batch.Processor
	telegram    *telegram.Client
	bot         *bot.Bot
	tokens      *auth.JWTService

	taskRunner *task.TaskRunner
	scheduler  *scheduler.Scheduler
}

// newApplication wires every component. Nothing is started.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Scheduler.Timezone, err)
	}

	app := &application{
		config:   cfg,
		logger:   logger,
		db:       db,
		location: loc,
		metrics:  observability.NewMetrics(metricsPrefix),
	}

	app.stores = store.Stores{
		Messages: postgres.NewPostgresMessageStore(db, logger),
		Tasks:    postgres.NewPostgresTaskStore(db, logger),
		Pending:  postgres.NewPostgresPendingStore(db, logger),
	}
	app.staffStore = postgres.NewPostgresStaffStore(db, logger)

	app.ledger, err = newLedger(ctx, cfg.Ledger, logger)
	if err != nil {
		return nil, err
	}
	projects, err := ledger.NewProjects(cfg.Ledger.DefaultProject, cfg.Ledger.ChatProjects)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger.chat_projects: %w", err)
	}

	completer, err := newCompleter(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	extractor, err := extraction.NewClient(completer, extractionConfig(cfg.LLM, loc),
		logger.With("component", "extraction"), extraction.WithRecorder(app.metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction client: %w", err)
	}

	enforcer := prioritization.NewEnforcer(app.ledger, cfg.Capacity.ImportantCap, logger, app.metrics)
	app.prioritizer, err = prioritization.NewService(
		app.stores,
		&store.SQLTransactor{DB: db, Stores: app.stores},
		app.ledger,
		enforcer,
		projects,
		logger,
		app.metrics,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prioritization service: %w", err)
	}

	app.telegram = telegram.NewClient(cfg.Telegram, logger)
	prompter := bot.NewPrompter(app.telegram, logger)

	app.processor = batch.NewProcessor(
		app.stores.Messages,
		app.stores.Tasks,
		extractor,
		app.prioritizer,
		prompter,
		logger,
		batch.WithWindow(time.Duration(cfg.Scheduler.WindowMinutes)*time.Minute),
		batch.WithObserver(app.metrics),
	)

	app.taskRunner = task.NewTaskRunner(task.TaskRunnerConfig{
		WorkerCount: cfg.Worker.Count,
		QueueSize:   cfg.Worker.QueueSize,
	}, logger)

	app.bot, err = bot.New(bot.Deps{
		Sender:    app.telegram,
		Decider:   app.prioritizer,
		Processor: app.processor,
		Jobs:      app.taskRunner,
		Staff:     staff.NewChecker(logger, staff.NewStatic(cfg.Staff.Usernames, cfg.Staff.UserIDs), app.staffStore),
		Messages:  app.stores.Messages,
		Tasks:     app.stores.Tasks,
		Prompter:  prompter,
		Observer:  app.metrics,
		Location:  loc,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	app.tokens, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.scheduler = scheduler.New(loc, logger)
	if err := app.registerJobs(); err != nil {
		return nil, err
	}

	logger.Info("application initialized",
		"timezone", loc.String(),
		"window_minutes", cfg.Scheduler.WindowMinutes,
		"jobs", app.scheduler.Jobs())
	return app, nil
}

func (app *application) registerJobs() error {
	err := app.scheduler.Register(hourlyPassJob, app.config.Scheduler.HourlySchedule, func(ctx context.Context) error {
		_, err := app.processor.RunHourlyPass(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to schedule hourly pass: %w", err)
	}
	if app.config.Capacity.RecountSchedule == "" {
		return nil
	}
	err = app.scheduler.Register(recountJob, app.config.Capacity.RecountSchedule, func(ctx context.Context) error {
		_, err := app.prioritizer.Recount(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to schedule recount: %w", err)
	}
	return nil
}

func (app *application) router() http.Handler {
	handler := api.NewAdminHandler(app.taskRunner, app.processor, app.prioritizer, app.staffStore, app.logger)
	return api.NewRouter(api.RouterConfig{
		Handler:        handler,
		Tokens:         app.tokens,
		Metrics:        app.metrics.Handler(),
		AllowedOrigins: app.config.Server.AllowedOrigins,
		Logger:         app.logger,
	})
}

// Run serves until ctx is cancelled or a component fails, then shuts down.
func (app *application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.taskRunner.Start()
	app.scheduler.Start()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		app.logger.Info("starting admin server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("admin server: %w", err)
		}
	}()
	go func() {
		app.logger.Info("starting telegram update loop")
		err := telegram.Poll(ctx, app.telegram, app.bot.HandleUpdate, app.logger.With("component", "poller"))
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("update loop: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("shutting down")
	case runErr = <-errCh:
		app.logger.Error("component failed, shutting down", "error", runErr)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("admin server shutdown failed", "error", err)
	}
	if err := app.scheduler.Stop(shutdownCtx); err != nil {
		app.logger.Error("scheduler shutdown failed", "error", err)
	}
	app.cleanup()
	return runErr
}

// cleanup stops the task runner and closes the database.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}

func newLedger(ctx context.Context, cfg config.LedgerConfig, logger *slog.Logger) (ledger.Ledger, error) {
	switch cfg.Backend {
	case "memory":
		logger.Warn("using in-memory task ledger; rows are lost on restart")
		return ledger.NewMemory(), nil
	case "sheets":
		l, err := sheets.New(ctx, cfg, logger.With("component", "ledger"))
		if err != nil {
			return nil, fmt.Errorf("failed to open spreadsheet ledger: %w", err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

func newCompleter(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (generation.Completer, error) {
	log := logger.With("component", "completer", "provider", cfg.Provider)
	switch cfg.Provider {
	case "gemini":
		c, err := gemini.NewCompleter(ctx, log, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini completer: %w", err)
		}
		return c, nil
	case "openai":
		c, err := openai.NewCompleter(cfg, nil, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai completer: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", generation.ErrInvalidConfig, cfg.Provider)
	}
}

func extractionConfig(cfg config.LLMConfig, loc *time.Location) extraction.Config {
	return extraction.Config{
		MaxAttempts:        cfg.MaxAttempts,
		BaseDelay:          seconds(cfg.BaseDelaySeconds),
		MaxJitter:          seconds(cfg.MaxJitterSeconds),
		Timeout:            time.Duration(cfg.TimeoutSeconds) * time.Second,
		Location:           loc,
		PromptTemplatePath: cfg.PromptTemplatePath,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
