package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"github.com/AnmolBhardwaj/StockWatcher/internal/pipeline"
	"github.com/AnmolBhardwaj/StockWatcher/internal/store"
	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
	"github.com/AnmolBhardwaj/StockWatcher/pkg/utils"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withApp builds the app for the given stage, runs fn, and closes it.
func withApp(upTo stage, fn func(ctx context.Context, a *app) error) error {
	a, err := buildApp(cfg, upTo)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("closing store", zap.Error(cerr))
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()
	return fn(ctx, a)
}

// --- Run Command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full cycle: scan, news, persist, audit and dispatch",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		if now := utils.NowIST(); !force && !utils.IsTradingDay(now) {
			logger.Info("not an NSE trading day, skipping cycle (use --force to override)",
				zap.String("date", utils.FormatDateIST(now)))
			return nil
		}

		upTo := stageDispatch
		if dryRun {
			upTo = stageOracle
		}
		return withApp(upTo, func(ctx context.Context, a *app) error {
			res, err := a.pipeline.RunCycle(ctx, dryRun)
			if res != nil {
				printSnapshots(res.Snapshots)
				printNews(res.News)
				if res.PersistErr != nil {
					fmt.Printf("⚠️  state not persisted: %v\n", res.PersistErr)
				}
				if res.Audit != nil {
					printAudit(res.Audit, dryRun)
				}
			}
			return err
		})
	},
}

// --- Scan Command ---

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan watchlist prices and persist the snapshot set",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(stageCollect, func(ctx context.Context, a *app) error {
			set, err := a.pipeline.Scan(ctx)
			if err != nil {
				return err
			}
			printSnapshots(set)
			return nil
		})
	},
}

// --- News Command ---

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Collect strategic news into the persisted buffer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(stageCollect, func(ctx context.Context, a *app) error {
			rep, err := a.pipeline.News(ctx)
			if err != nil {
				return err
			}
			printNews(rep)
			return nil
		})
	},
}

// --- Audit Command ---

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Score the stored state with the oracle and dispatch the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		upTo := stageDispatch
		if dryRun {
			upTo = stageOracle
		}
		return withApp(upTo, func(ctx context.Context, a *app) error {
			res, err := a.pipeline.AuditStored(ctx, dryRun)
			if res != nil {
				printAudit(res, dryRun)
			}
			return err
		})
	},
}

// --- Payload Command ---

var payloadCmd = &cobra.Command{
	Use:   "payload",
	Short: "Print the oracle payload composed from the stored state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(stageCompose, func(ctx context.Context, a *app) error {
			st, err := a.store.LoadLatest(ctx)
			if err != nil {
				return err
			}
			p, err := a.pipeline.Compose(st)
			if err != nil {
				return err
			}
			fmt.Println(p.Text())
			return nil
		})
	},
}

// --- State Command ---

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the persisted snapshot set and news buffer as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		color, _ := cmd.Flags().GetBool("color")
		return withApp(stageCollect, func(ctx context.Context, a *app) error {
			raw, err := store.Export(ctx, a.store)
			if err != nil {
				return err
			}
			out := pretty.Pretty(raw)
			if color {
				out = pretty.Color(out, nil)
			}
			_, err = os.Stdout.Write(out)
			return err
		})
	},
}

func init() {
	runCmd.Flags().Bool("force", false, "run even when the NSE is closed for the day")
	runCmd.Flags().Bool("dry-run", false, "score but do not dispatch to Telegram")
	auditCmd.Flags().Bool("dry-run", false, "score but do not dispatch to Telegram")
	stateCmd.Flags().Bool("color", false, "colorize JSON output")
}

// ── Output ──

func printSnapshots(set models.SnapshotSet) {
	symbols := make([]string, 0, len(set.Tickers))
	for s := range set.Tickers {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	fmt.Printf("📈 Snapshots %s (%d/%d available)\n", set.Date, set.AvailableCount(), set.Len())
	for _, s := range symbols {
		t := set.Tickers[s]
		if !t.IsAvailable() {
			fmt.Printf("  %-14s UNAVAILABLE  %s\n", s, t.Reason)
			continue
		}
		p := t.Snapshot
		bull := "below EMA50"
		if p.IsStructuralBull {
			bull = "above EMA50"
		}
		fmt.Printf("  %-14s %10.2f  EMA50 %10.2f  %-12s %s\n", s, p.Price, p.EMA50, bull, p.MarketStructure)
	}
}

func printNews(r pipeline.NewsReport) {
	fmt.Printf("📰 News: %d feeds ok, %d seen, %d accepted (%d critical), %d duplicates, %d evicted\n",
		r.FeedsOK, r.Seen, r.Accepted, r.Critical, r.Duplicates, r.Evicted)
	for _, f := range r.FeedsFailed {
		fmt.Printf("  ⚠️  feed unavailable: %s\n", f)
	}
}

func printAudit(r *pipeline.AuditResult, dryRun bool) {
	if r.Report != "" {
		fmt.Println(r.Report)
	}
	if !r.Validation.OK() {
		for _, w := range r.Validation.Warnings {
			fmt.Printf("⚠️  %s\n", w)
		}
	}
	switch {
	case dryRun:
		fmt.Printf("🧪 dry run via %s, nothing dispatched\n", r.Provider)
	case r.Dispatched:
		fmt.Printf("✅ dispatched via %s: %d chunks delivered, %d plain fallbacks, %d failed\n",
			r.Provider, r.Delivery.Delivered, r.Delivery.Fallbacks, r.Delivery.Failed)
	}
}
