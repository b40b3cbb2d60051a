package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oceanobs/chanharvest/internal/config"
	"github.com/oceanobs/chanharvest/internal/store"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var runLimit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-channel watermarks and recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(runLimit)
		},
	}
	cmd.Flags().IntVar(&runLimit, "runs", 5, "Number of recent runs to show")
	return cmd
}

func runStatus(runLimit int) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := newStore(cfg, newLogger(cfg.Log))
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer func() { _ = st.Stop(ctx) }()

	for _, qc := range cfg.Feed.QCLevels {
		if err := showWatermarks(ctx, st, qc); err != nil {
			return err
		}
	}
	return showRecentRuns(ctx, st, runLimit)
}

func showWatermarks(ctx context.Context, st store.Store, qcLevel int) error {
	watermarks, err := st.ListWatermarks(ctx, qcLevel)
	if err != nil {
		return fmt.Errorf("listing watermarks: %w", err)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("QC level %d:\n", qcLevel)
	if len(watermarks) == 0 {
		fmt.Println("  no channels harvested yet")
		fmt.Println()
		return nil
	}

	for _, wm := range watermarks {
		age := time.Since(wm.CoveredThrough)
		covered := wm.CoveredThrough.Format("2006-01-02")
		if age > 60*24*time.Hour {
			covered = color.YellowString("%s (%.0fd behind)", covered, age.Hours()/24)
		}
		fmt.Printf("  channel %-10s covered through %s\n", wm.ChannelID, covered)
	}
	fmt.Println()
	return nil
}

func showRecentRuns(ctx context.Context, st store.Store, limit int) error {
	runs, err := st.ListRunReports(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Println("Recent runs:")
	if len(runs) == 0 {
		fmt.Println("  none recorded")
		return nil
	}

	for _, run := range runs {
		var published, failed int
		catalogErrors := false
		for _, lr := range run.Levels {
			published += lr.Published
			failed += lr.Failed
			if lr.CatalogError != "" {
				catalogErrors = true
			}
		}

		status := color.GreenString("OK")
		switch {
		case catalogErrors:
			status = color.RedString("CATALOG ERROR")
		case failed > 0:
			status = color.YellowString("PARTIAL")
		}
		fmt.Printf("  %s  %s  %d published, %d failed  %s\n",
			run.StartedAt.Format(time.RFC3339), run.RunID, published, failed, status)
	}
	return nil
}
