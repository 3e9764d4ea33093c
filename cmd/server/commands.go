package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/phrazzld/tasktracker/internal/service/auth"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "tasktracker",
		Short:         "Extracts tasks from team chats and tracks their priority",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a config file (default ./config.yaml)")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newProcessCommand(opts),
		newRecountCommand(opts),
		newTokenCommand(opts),
	)
	return root
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the scheduler and the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, log, err := bootstrap(opts)
			if err != nil {
				return err
			}
			db, err := setupAppDatabase(ctx, cfg, log)
			if err != nil {
				return err
			}
			if migrate {
				if err := runMigrations(ctx, db, "up", log); err != nil {
					_ = db.Close()
					return err
				}
			}

			app, err := newApplication(ctx, cfg, log, db)
			if err != nil {
				_ = db.Close()
				return err
			}
			return app.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|redo|reset|status|version]",
		Short:     "Manage the database schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			cfg, log, err := bootstrap(opts)
			if err != nil {
				return err
			}
			db, err := setupAppDatabase(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			return runMigrations(cmd.Context(), db, command, log)
		},
	}
}

func newProcessCommand(opts *rootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "process [flags] -- CHAT_ID",
		Short: "Extract tasks from one chat now and send the priority prompts",
		Long: "Without --days the trailing window of unprocessed messages is used. " +
			"With --days every message of the last N days is re-parsed. " +
			"Group chat ids are negative, so pass them after --.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || chatID == 0 {
				return fmt.Errorf("invalid chat id %q", args[0])
			}
			if days < 0 {
				return errors.New("--days cannot be negative")
			}
			return withApplication(cmd.Context(), opts, func(ctx context.Context, app *application) error {
				if days == 0 {
					res, err := app.processor.ProcessChatNow(ctx, chatID)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "chat %d: %d messages, %d tasks\n", chatID, res.Messages, res.Tasks())
					return nil
				}
				until := time.Now().UTC()
				since := until.Add(-time.Duration(days) * 24 * time.Hour)
				res, err := app.processor.ProcessChatRange(ctx, chatID, since, until)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "chat %d: %d messages in %d days, %d tasks\n", chatID, res.Messages, days, res.Tasks())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "re-parse the last N days")
	return cmd
}

func newRecountCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recount",
		Short: "Downgrade important ledger rows until the capacity holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), opts, func(ctx context.Context, app *application) error {
				rows, err := app.prioritizer.Recount(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d rows downgraded\n", len(rows))
				for _, r := range rows {
					fmt.Fprintf(cmd.OutOrStdout(), "  row %d: %s\n", r.Index, r.Description)
				}
				return nil
			})
		},
	}
}

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := bootstrap(opts)
			if err != nil {
				return err
			}
			svc, err := auth.NewJWTService(cfg.Auth)
			if err != nil {
				return err
			}
			token, err := svc.GenerateToken(cmd.Context(), subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject, logged with every admin request")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

// withApplication builds the full application for a one-shot command.
func withApplication(ctx context.Context, opts *rootOptions, fn func(ctx context.Context, app *application) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := bootstrap(opts)
	if err != nil {
		return err
	}
	db, err := setupAppDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	app, err := newApplication(ctx, cfg, log, db)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer app.cleanup()
	return fn(ctx, app)
}
