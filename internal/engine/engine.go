// Package engine drives the incremental harvest: for every qc level it
// fetches the channel catalog, plans the outstanding chunks per channel, and
// runs each chunk through download, transform, validation and publication.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/oceanobs/chanharvest/internal/feed"
	"github.com/oceanobs/chanharvest/internal/gates"
	"github.com/oceanobs/chanharvest/internal/metrics"
	"github.com/oceanobs/chanharvest/internal/planner"
	"github.com/oceanobs/chanharvest/internal/series"
	"github.com/oceanobs/chanharvest/internal/store"
	"github.com/oceanobs/chanharvest/pkg/types"
)

// CatalogFetcher lists the harvestable channels at one qc level.
type CatalogFetcher interface {
	FetchCatalog(ctx context.Context, qcLevel int) ([]types.ChannelRecord, error)
}

// Downloader fetches one chunk of channel data.
type Downloader interface {
	Download(ctx context.Context, workDir string, chunk types.Chunk, qcLevel int) feed.DownloadResult
}

// TransformFunc normalizes a raw artifact for publication.
type TransformFunc func(artifact types.Artifact, ds *series.Dataset, ch types.ChannelRecord, qcLevel int) (types.Artifact, error)

// Publisher finalizes validated artifacts and quarantines rejects.
type Publisher interface {
	Publish(artifact types.Artifact) (types.Artifact, error)
	Reject(artifact types.Artifact, reason string) (types.Artifact, error)
}

// Config carries the engine's run parameters.
type Config struct {
	WorkDir  string
	QCLevels []int
	// Workers bounds concurrent channels within a level. Chunks of one
	// channel always run sequentially.
	Workers int
	// SkipFailedChunks lets a channel continue past a failed chunk instead
	// of aborting. The watermark then stays pinned at the first failure, so
	// chunks after it are re-downloaded on every run until the failure
	// clears.
	SkipFailedChunks bool
}

// Engine orchestrates one harvest run.
type Engine struct {
	cfg       Config
	store     store.Store
	catalog   CatalogFetcher
	download  Downloader
	transform TransformFunc
	chain     *gates.Chain
	publisher Publisher
	alertFn   func(types.Alert)
	logger    *slog.Logger
}

// New creates an engine. A nil alertFn disables alerting.
func New(cfg Config, st store.Store, catalog CatalogFetcher, dl Downloader,
	tf TransformFunc, chain *gates.Chain, pub Publisher,
	alertFn func(types.Alert), logger *slog.Logger) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if alertFn == nil {
		alertFn = func(types.Alert) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:       cfg,
		store:     st,
		catalog:   catalog,
		download:  dl,
		transform: tf,
		chain:     chain,
		publisher: pub,
		alertFn:   alertFn,
		logger:    logger,
	}
}

// Run executes one full harvest over every configured qc level and returns
// the run report. Levels are processed in order; a catalog failure skips
// that level and is recorded, never propagated.
func (e *Engine) Run(ctx context.Context) (types.RunReport, error) {
	report := types.RunReport{
		RunID:     ulid.Make().String(),
		StartedAt: time.Now().UTC(),
	}
	e.logger.Info("run started", "run_id", report.RunID, "qc_levels", e.cfg.QCLevels)

	for _, qc := range e.cfg.QCLevels {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Levels = append(report.Levels, e.runLevel(ctx, qc))
	}

	report.FinishedAt = time.Now().UTC()
	e.logger.Info("run finished", "run_id", report.RunID,
		"duration", report.FinishedAt.Sub(report.StartedAt).String())
	return report, nil
}

// runLevel harvests every channel of one qc level.
func (e *Engine) runLevel(ctx context.Context, qcLevel int) types.LevelReport {
	lr := types.LevelReport{QCLevel: qcLevel}

	channels, err := e.catalog.FetchCatalog(ctx, qcLevel)
	if err != nil {
		metrics.CatalogErrors.Add(1)
		lr.CatalogError = err.Error()
		e.logger.Error("catalog fetch failed, skipping level", "qc_level", qcLevel, "error", err)
		e.alertFn(types.Alert{
			Level:     types.AlertLevelError,
			QCLevel:   qcLevel,
			Message:   fmt.Sprintf("catalog fetch failed, level skipped: %v", err),
			Timestamp: time.Now().UTC(),
		})
		return lr
	}
	lr.Channels = len(channels)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for _, ch := range channels {
		g.Go(func() error {
			stats := e.processChannel(gctx, qcLevel, ch)
			mu.Lock()
			lr.UpToDate += stats.upToDate
			lr.ChunksPlanned += stats.planned
			lr.Published += stats.published
			lr.NoData += stats.noData
			lr.Failed += stats.failed
			lr.Aborted += stats.aborted
			mu.Unlock()
			return nil
		})
	}
	// workers never return errors; failures are isolated per channel
	_ = g.Wait()

	e.logger.Info("level finished", "qc_level", qcLevel,
		"channels", lr.Channels, "published", lr.Published,
		"no_data", lr.NoData, "failed", lr.Failed, "aborted", lr.Aborted)
	return lr
}

type channelStats struct {
	upToDate  int
	planned   int
	published int
	noData    int
	failed    int
	aborted   int
}

// processChannel works through one channel's outstanding chunks in order.
// A panic anywhere inside is confined to this channel.
func (e *Engine) processChannel(ctx context.Context, qcLevel int, ch types.ChannelRecord) (stats channelStats) {
	defer func() {
		if r := recover(); r != nil {
			stats.aborted++
			metrics.ChannelsAborted.Add(1)
			e.logger.Error("channel panicked", "channel", ch.ID, "qc_level", qcLevel, "panic", r)
			e.alertFn(types.Alert{
				Level:     types.AlertLevelError,
				ChannelID: ch.ID,
				QCLevel:   qcLevel,
				Message:   fmt.Sprintf("channel processing panicked: %v", r),
				Timestamp: time.Now().UTC(),
			})
		}
	}()

	wm, err := e.store.GetWatermark(ctx, ch.ID, qcLevel)
	if err != nil {
		stats.aborted++
		metrics.ChannelsAborted.Add(1)
		e.logger.Error("watermark read failed", "channel", ch.ID, "qc_level", qcLevel, "error", err)
		return stats
	}

	chunks := planner.Plan(ch, wm)
	if len(chunks) == 0 {
		stats.upToDate++
		return stats
	}
	stats.planned = len(chunks)

	// pinned flips on the first failed chunk: later successes still publish
	// but may not move the watermark past the hole
	pinned := false
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			stats.aborted++
			return stats
		}

		outcome := e.processChunk(ctx, qcLevel, ch, chunk)
		switch outcome.Kind {
		case types.OutcomeSuccess:
			stats.published++
			metrics.ChunksDownloaded.Add(1)
			metrics.ArtifactsPublished.Add(1)
		case types.OutcomeNoData:
			stats.noData++
			metrics.ChunksNoData.Add(1)
		case types.OutcomeEmptySeries:
			metrics.ChunksEmpty.Add(1)
		}

		if outcome.Kind.Advances() {
			if pinned {
				continue
			}
			if err := e.store.AdvanceWatermark(ctx, ch.ID, qcLevel, chunk.End); err != nil {
				// stop here so the chunk is retried rather than skipped
				stats.aborted++
				metrics.ChannelsAborted.Add(1)
				e.logger.Error("watermark advance failed", "channel", ch.ID,
					"qc_level", qcLevel, "error", err)
				return stats
			}
			metrics.WatermarksAdvanced.Add(1)
			continue
		}

		stats.failed++
		metrics.ChunksFailed.Add(1)
		e.alertFn(types.Alert{
			Level:     types.AlertLevelWarning,
			ChannelID: ch.ID,
			QCLevel:   qcLevel,
			Message: fmt.Sprintf("chunk %s to %s failed: %s: %s",
				chunk.Start.Format(time.RFC3339), chunk.End.Format(time.RFC3339),
				outcome.Kind, outcome.Reason),
			Timestamp: time.Now().UTC(),
		})

		if e.cfg.SkipFailedChunks {
			pinned = true
			continue
		}
		stats.aborted++
		metrics.ChannelsAborted.Add(1)
		e.logger.Warn("channel aborted", "channel", ch.ID, "qc_level", qcLevel,
			"kind", outcome.Kind, "reason", outcome.Reason)
		return stats
	}
	return stats
}

// processChunk runs one chunk through the full pipeline and classifies the
// result. The artifact's temp directory is always reclaimed before return.
func (e *Engine) processChunk(ctx context.Context, qcLevel int, ch types.ChannelRecord, chunk types.Chunk) types.ChunkOutcome {
	res := e.download.Download(ctx, e.cfg.WorkDir, chunk, qcLevel)
	if res.Kind != types.OutcomeSuccess {
		return types.ChunkOutcome{Kind: res.Kind, Reason: res.Reason}
	}

	artifact, err := e.transform(res.Artifact, res.Dataset, ch, qcLevel)
	if err != nil {
		discard(res.Artifact)
		return types.ChunkOutcome{Kind: types.OutcomeTransformError, Reason: err.Error()}
	}

	vr := e.chain.Validate(artifact, res.Dataset)
	if !vr.Passed {
		if _, err := e.publisher.Reject(artifact, vr.Reason); err != nil {
			e.logger.Error("quarantine failed", "channel", ch.ID, "error", err)
			discard(artifact)
		}
		metrics.ArtifactsRejected.Add(1)
		return types.ChunkOutcome{
			Kind:   types.OutcomeGateFailure,
			Gate:   vr.FailedGate,
			Reason: vr.Reason,
		}
	}
	artifact.Stage = types.StageValidated

	if _, err := e.publisher.Publish(artifact); err != nil {
		discard(artifact)
		return types.ChunkOutcome{Kind: types.OutcomePublishFailure, Reason: err.Error()}
	}
	return types.ChunkOutcome{Kind: types.OutcomeSuccess}
}

// discard reclaims an artifact's per-chunk temp directory.
func discard(a types.Artifact) {
	if a.LocalPath != "" {
		_ = os.RemoveAll(filepath.Dir(a.LocalPath))
	}
}
