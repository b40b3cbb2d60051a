package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oceanobs/chanharvest/internal/alert"
	"github.com/oceanobs/chanharvest/internal/config"
	"github.com/oceanobs/chanharvest/internal/engine"
	"github.com/oceanobs/chanharvest/internal/feed"
	"github.com/oceanobs/chanharvest/internal/gates"
	"github.com/oceanobs/chanharvest/internal/metrics"
	"github.com/oceanobs/chanharvest/internal/observability"
	"github.com/oceanobs/chanharvest/internal/publish"
	"github.com/oceanobs/chanharvest/internal/runlock"
	"github.com/oceanobs/chanharvest/internal/transform"
	"github.com/oceanobs/chanharvest/pkg/types"
)

const runLockKey = "harvest"

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Harvest all outstanding chunks for every configured qc level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarvest()
		},
	}
}

func runHarvest() error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.Log)

	if err := os.MkdirAll(cfg.Dirs.Work, 0o775); err != nil {
		return fmt.Errorf("creating work dir: %w", err)
	}

	// host-local exclusion first: a second invocation while one runs is
	// normal and exits cleanly
	guard := runlock.New(filepath.Join(cfg.Dirs.Work, "chanharvest.pid"), logger)
	if err := guard.Acquire(); err != nil {
		if errors.Is(err, runlock.ErrAlreadyRunning) {
			logger.Info("another instance is running, nothing to do", "detail", err.Error())
			return nil
		}
		return err
	}
	defer guard.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var shutdownTelemetry func(context.Context) error
	if cfg.Observability != nil {
		shutdownTelemetry, err = observability.Init(ctx, *cfg.Observability, logger)
		if err != nil {
			return fmt.Errorf("telemetry init: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTelemetry(sctx)
		}()
	}

	st, err := newStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer func() { _ = st.Stop(context.Background()) }()

	// cross-host exclusion on top of the pid file
	lockTTL, _ := time.ParseDuration(cfg.Harvest.LockTTL)
	acquired, err := st.AcquireLock(ctx, runLockKey, lockTTL)
	if err != nil {
		return fmt.Errorf("acquiring run lock: %w", err)
	}
	if !acquired {
		logger.Info("run lock held by another host, nothing to do")
		return nil
	}
	defer func() { _ = st.ReleaseLock(context.Background(), runLockKey) }()

	dispatcher, err := alert.NewDispatcher(cfg.Alerts, logger)
	if err != nil {
		return fmt.Errorf("creating alert sinks: %w", err)
	}

	publisher := publish.New(cfg.Dirs, logger)

	// admission guard: a saturated pickup directory means downstream ingest
	// is behind, and harvesting more would only grow the pile
	backlog, err := publisher.Backlog()
	if err != nil {
		return err
	}
	if backlog >= cfg.Harvest.BacklogLimit {
		metrics.RunsAborted.Add(1)
		logger.Warn("incoming backlog over limit, run aborted",
			"backlog", backlog, "limit", cfg.Harvest.BacklogLimit)
		dispatcher.Dispatch(types.Alert{
			Level: types.AlertLevelWarning,
			Message: fmt.Sprintf("harvest skipped: %d files pending in incoming (limit %d)",
				backlog, cfg.Harvest.BacklogLimit),
			Timestamp: time.Now().UTC(),
		})
		return nil
	}

	client, err := feed.NewClient(cfg.Feed, logger)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Config{
		WorkDir:          cfg.Dirs.Work,
		QCLevels:         cfg.Feed.QCLevels,
		Workers:          cfg.Harvest.Workers,
		SkipFailedChunks: cfg.Harvest.SkipFailedChunks,
	}, st, client, client, transform.Normalize, gates.Default(), publisher,
		dispatcher.AlertFunc(), logger)

	runCtx, span := observability.StartRunSpan(ctx)
	report, err := eng.Run(runCtx)
	if err != nil {
		span.End()
		return fmt.Errorf("run aborted: %w", err)
	}
	observability.RecordRun(runCtx, report)
	span.End()

	if err := st.PutRunReport(ctx, report); err != nil {
		logger.Error("storing run report", "run_id", report.RunID, "error", err)
	}

	printRunReport(report)

	if allLevelsSkipped(report) {
		return fmt.Errorf("catalog unavailable for every qc level")
	}
	return nil
}

// allLevelsSkipped reports whether every level of the run failed its catalog
// fetch. A run that harvested nothing at all should fail loudly.
func allLevelsSkipped(report types.RunReport) bool {
	if len(report.Levels) == 0 {
		return false
	}
	for _, lr := range report.Levels {
		if lr.CatalogError == "" {
			return false
		}
	}
	return true
}

func printRunReport(report types.RunReport) {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Run %s finished in %s\n",
		report.RunID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	for _, lr := range report.Levels {
		if lr.CatalogError != "" {
			color.Red("  qc%d: catalog unavailable, level skipped", lr.QCLevel)
			continue
		}
		line := fmt.Sprintf("  qc%d: %d channels, %d up to date, %d published, %d no data",
			lr.QCLevel, lr.Channels, lr.UpToDate, lr.Published, lr.NoData)
		if lr.Failed > 0 || lr.Aborted > 0 {
			line += color.YellowString(", %d failed, %d aborted", lr.Failed, lr.Aborted)
		}
		fmt.Println(line)
	}
}
