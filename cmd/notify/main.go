// Command notify is the athletics reminder CLI.
//
// Usage:
//
//	athletics-notify run
//	athletics-notify run --dry-run
//	athletics-notify run --respect-quiet-hours
//	athletics-notify ledger summary
//	athletics-notify ledger schema
//	athletics-notify window --date 2026-10-16 --time "7:00 PM"
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/athletics-notify/internal/athletics"
	"github.com/albapepper/athletics-notify/internal/claim"
	"github.com/albapepper/athletics-notify/internal/config"
	"github.com/albapepper/athletics-notify/internal/db"
	"github.com/albapepper/athletics-notify/internal/delivery"
	"github.com/albapepper/athletics-notify/internal/eligibility"
	"github.com/albapepper/athletics-notify/internal/email"
	"github.com/albapepper/athletics-notify/internal/ledger"
	"github.com/albapepper/athletics-notify/internal/push"
	"github.com/albapepper/athletics-notify/internal/scheduler"

	_ "time/tzdata"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "athletics-notify",
		Short:        "Athletics game reminder CLI",
		SilenceUsage: true,
	}
	root.AddCommand(runCmd())
	root.AddCommand(ledgerCmd())
	root.AddCommand(windowCmd())
	return root
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	var dryRun, respectQuiet bool
	var workers int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one notification pass now",
		Long: "Run one notification pass. Quiet hours are ignored unless " +
			"--respect-quiet-hours is set, which suits an external cron.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				loc := cfg.Location()

				var store ledger.Store
				var emailSender delivery.EmailSender
				var pushSender delivery.PushSender
				if dryRun {
					store = ledger.NewMemoryStore()
					emailSender = dryRunEmail(logger)
					pushSender = dryRunPush(logger)
				} else {
					pg := ledger.NewPGStore(pool)
					if err := pg.EnsureSchema(ctx); err != nil {
						return err
					}
					store = pg
					var err error
					if emailSender, pushSender, err = buildSenders(ctx, cfg, loc); err != nil {
						return err
					}
				}

				if workers <= 0 {
					workers = cfg.DeliveryWorkers
				}
				orch := delivery.New(
					athletics.NewRepository(pool),
					claim.New(store, claim.WithStaleAfter(cfg.StaleAfter), claim.WithLogger(logger)),
					emailSender, pushSender,
					delivery.Options{Location: loc, Workers: workers, Logger: logger},
				)
				sched, err := scheduler.New(scheduler.Options{
					Spec:     cfg.ScheduleSpec,
					Location: loc,
					Quiet:    eligibility.QuietHours{Start: cfg.QuietStartHour, End: cfg.QuietEndHour},
					Run:      orch.RunPass,
					Logger:   logger,
				})
				if err != nil {
					return err
				}

				var result delivery.PassResult
				if respectQuiet {
					var ran bool
					if result, ran = sched.Trigger(ctx, delivery.TriggerScheduled); !ran {
						return nil
					}
				} else {
					result = sched.RunManual(ctx)
				}

				logger.Info("Notification pass finished", "dry_run", dryRun, "summary", result.Summary())
				for _, e := range result.Errors {
					logger.Warn("Pass error", "error", e)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log reminders instead of sending; use an in-memory ledger")
	cmd.Flags().BoolVar(&respectQuiet, "respect-quiet-hours", false, "Skip the pass during quiet hours")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent deliveries (default DELIVERY_WORKERS)")
	return cmd
}

// buildSenders returns the configured transports. A channel with no
// configuration is returned as a nil interface, which disables it.
func buildSenders(ctx context.Context, cfg *config.Config, loc *time.Location) (delivery.EmailSender, delivery.PushSender, error) {
	var es delivery.EmailSender
	if s := email.NewSender(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailFrom,
		SiteURL:  cfg.SiteURL,
	}, loc, logger); s != nil {
		es = s
	}

	var ps delivery.PushSender
	fcm, err := push.NewFCMSender(ctx, cfg.FirebaseCredentialsFile, logger)
	if err != nil {
		return nil, nil, err
	}
	if fcm != nil {
		ps = fcm
	}
	return es, ps, nil
}

func dryRunEmail(l *slog.Logger) delivery.EmailSender {
	return delivery.EmailFunc(func(_ context.Context, kind ledger.Kind, sub athletics.Subscriber, game athletics.Game) (bool, error) {
		l.Info("Would send email", "kind", kind, "to", sub.Email, "game", game.Matchup(), "date", game.Date.Format("2006-01-02"))
		return true, nil
	})
}

func dryRunPush(l *slog.Logger) delivery.PushSender {
	return delivery.PushFunc(func(_ context.Context, token, title, body string, _ map[string]string) (bool, error) {
		l.Info("Would send push", "token_suffix", tokenSuffix(token), "title", title, "body", body)
		return true, nil
	})
}

func tokenSuffix(token string) string {
	if len(token) <= 6 {
		return token
	}
	return "…" + token[len(token)-6:]
}

// --------------------------------------------------------------------------
// ledger command
// --------------------------------------------------------------------------

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or initialize the notification ledger",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Print record counts per kind and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				counts, err := ledger.NewPGStore(pool).Summary(ctx, time.Now().Add(-cfg.StaleAfter))
				if err != nil {
					return err
				}
				return printCounts(cmd.OutOrStdout(), counts)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Create the ledger table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if err := ledger.NewPGStore(pool).EnsureSchema(ctx); err != nil {
					return err
				}
				logger.Info("Ledger schema ready")
				return nil
			})
		},
	})
	return cmd
}

func printCounts(w io.Writer, counts []ledger.Count) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tSTATUS\tTOTAL\tSTALE")
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", c.Kind, c.Status, c.Total, c.Stale)
	}
	return tw.Flush()
}

// --------------------------------------------------------------------------
// window command
// --------------------------------------------------------------------------

func windowCmd() *cobra.Command {
	var date, clock, at, tz string
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Show which reminder windows a game falls in",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("timezone %q: %w", tz, err)
			}
			day, err := time.ParseInLocation("2006-01-02", date, loc)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}
			now := time.Now()
			if at != "" {
				if now, err = time.ParseInLocation("2006-01-02 15:04", at, loc); err != nil {
					return fmt.Errorf("--now: %w", err)
				}
			}

			g := athletics.Game{Date: day, TimeText: clock}
			return printWindows(cmd.OutOrStdout(), g, now, loc)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Game date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&clock, "time", "", `Game time text, e.g. "7:00 PM" (blank means TBA)`)
	cmd.Flags().StringVar(&at, "now", "", `Evaluate at this local time ("YYYY-MM-DD HH:MM") instead of now`)
	cmd.Flags().StringVar(&tz, "tz", envOr("REMINDER_TIMEZONE", "America/New_York"), "Reference timezone")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func printWindows(w io.Writer, g athletics.Game, now time.Time, loc *time.Location) error {
	start := eligibility.StartTime(g, loc)
	fmt.Fprintf(w, "now:         %s\n", now.In(loc).Format("Mon Jan 2 2006 3:04 PM MST"))
	fmt.Fprintf(w, "start:       %s\n", start.Format("Mon Jan 2 2006 3:04 PM MST"))
	fmt.Fprintf(w, "hours until: %.2f\n", eligibility.HoursUntil(g, now, loc))

	windows := eligibility.Windows(g, now, loc)
	if len(windows) == 0 {
		fmt.Fprintln(w, "windows:     none")
		return nil
	}
	for _, win := range windows {
		fmt.Fprintf(w, "window:      %s (email kind %s, push kind %s)\n", win,
			ledger.KindFor(win, ledger.ChannelEmail), ledger.KindFor(win, ledger.ChannelPush))
	}
	return nil
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// withDB handles config loading, DB connection, and context cancellation.
func withDB(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
