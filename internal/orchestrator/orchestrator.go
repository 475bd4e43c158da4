// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

// Package orchestrator sequences the background sync pipeline.
//
// A run walks four strictly ordered phases: sources (importers produce
// raw work items), snapshots (the aggregator folds them into daily
// parents), compaction (summaries are refreshed on the rollups), and
// complete. Each transition is written to the status store and published
// on the progress bus, so any number of observers converge on the same
// state. At most one run is in flight per orchestrator; concurrent
// triggers observe "ignored", never a second phase sequence. A run
// cancelled mid-flight records an abort instead of a completion, keeping
// last_sync_at truthful.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mhuang-dev/worklogd/internal/aggregate"
	"github.com/mhuang-dev/worklogd/internal/config"
	"github.com/mhuang-dev/worklogd/internal/database"
	"github.com/mhuang-dev/worklogd/internal/llm"
	"github.com/mhuang-dev/worklogd/internal/logging"
	"github.com/mhuang-dev/worklogd/internal/metrics"
	"github.com/mhuang-dev/worklogd/internal/models"
	"github.com/mhuang-dev/worklogd/internal/sources"
)

// Orchestrator runs the background sync pipeline for one user.
type Orchestrator struct {
	db         *database.DB
	importers  []sources.Importer
	aggregator *aggregate.Aggregator
	summarizer llm.Summarizer
	bus        *ProgressBus
	userID     string

	interval     time.Duration
	pollInterval time.Duration
	lookbackDays int

	running atomic.Bool
}

// New creates an orchestrator.
func New(db *database.DB, importers []sources.Importer, aggregator *aggregate.Aggregator,
	summarizer llm.Summarizer, bus *ProgressBus, syncCfg *config.SyncConfig, lookbackDays int) *Orchestrator {
	return &Orchestrator{
		db:           db,
		importers:    importers,
		aggregator:   aggregator,
		summarizer:   summarizer,
		bus:          bus,
		userID:       syncCfg.UserID,
		interval:     syncCfg.Interval,
		pollInterval: syncCfg.StatusPollInterval,
		lookbackDays: lookbackDays,
	}
}

// Trigger starts a run in the background. Returns false without side
// effects when a run is already in flight.
func (o *Orchestrator) Trigger(ctx context.Context) bool {
	if !o.running.CompareAndSwap(false, true) {
		metrics.SyncRunsRejected.Inc()
		logging.Debug().Msg("Sync trigger ignored, run already in flight")
		return false
	}
	go func() {
		defer o.running.Store(false)
		o.runPipeline(context.WithoutCancel(ctx))
	}()
	return true
}

// RunOnce executes a full run synchronously. Returns false when a run is
// already in flight.
func (o *Orchestrator) RunOnce(ctx context.Context) bool {
	if !o.running.CompareAndSwap(false, true) {
		metrics.SyncRunsRejected.Inc()
		return false
	}
	defer o.running.Store(false)
	o.runPipeline(ctx)
	return true
}

// Running reports whether a run is in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Status returns the stored status record, the single source of truth
// that all observers poll.
func (o *Orchestrator) Status(ctx context.Context) (*models.BackgroundSyncStatus, error) {
	return o.db.GetSyncStatus(ctx, o.userID)
}

func (o *Orchestrator) runPipeline(ctx context.Context) {
	start := time.Now()

	// Phase 1: sources. A failing importer is collected, not fatal; the
	// rest of the pipeline works with whatever was imported.
	o.enterPhase(ctx, models.PhaseSources, "")
	imported := 0
	var sourceFailures []string
	for _, imp := range o.importers {
		n, err := imp.Import(ctx)
		imported += n
		if err != nil {
			metrics.SyncErrors.WithLabelValues(models.PhaseSources).Inc()
			logging.Warn().Err(err).Str("importer", imp.Name()).Msg("Source import failed")
			sourceFailures = append(sourceFailures, fmt.Sprintf("%s: %v", imp.Name(), err))
		}
	}

	// A cancelled run stops between phases; the work already done stays,
	// the status row records the abort instead of a completion.
	if err := ctx.Err(); err != nil {
		o.abortRun(ctx, start, err)
		return
	}

	// Phase 2: snapshots. Fold the day's raw items into aggregate parents.
	o.enterPhase(ctx, models.PhaseSnapshots, fmt.Sprintf("imported %d items", imported))
	aggResp, err := o.aggregator.Run(ctx, o.scope())
	if err != nil {
		metrics.SyncErrors.WithLabelValues(models.PhaseSnapshots).Inc()
		logging.Warn().Err(err).Msg("Aggregation finished with errors")
	}

	// Phase 3: compaction. Refresh rollup descriptions via the summarizer.
	o.enterPhase(ctx, models.PhaseCompaction, "")
	compacted, err := o.compact(ctx)
	if err != nil {
		metrics.SyncErrors.WithLabelValues(models.PhaseCompaction).Inc()
		logging.Warn().Err(err).Msg("Compaction finished with errors")
	}

	if err := ctx.Err(); err != nil {
		o.abortRun(ctx, start, err)
		return
	}

	result := fmt.Sprintf("imported %d items, %d groups, %d summaries refreshed",
		imported, groupCount(aggResp), compacted)
	notification := ""
	if len(sourceFailures) > 0 {
		notification = fmt.Sprintf("%d source(s) failed: %s",
			len(sourceFailures), strings.Join(sourceFailures, "; "))
	}
	if err := o.db.SetSyncComplete(ctx, o.userID, result, notification); err != nil {
		logging.Error().Err(err).Msg("Failed to record sync completion")
	}
	o.publish(models.PhaseComplete, result)

	metrics.RecordSyncRun(time.Since(start), imported, nil, "")
	logging.Info().
		Int("imported", imported).
		Int("compacted", compacted).
		Str("notification", notification).
		Dur("took", time.Since(start)).
		Msg("Background sync run complete")
}

// abortRun records a cancelled run. The status write uses a detached
// context so the cancellation that killed the run cannot also suppress
// its own failure record. last_sync_at keeps its previous value.
func (o *Orchestrator) abortRun(ctx context.Context, start time.Time, cause error) {
	metrics.RecordSyncRun(time.Since(start), 0, cause, "aborted")
	if err := o.db.SetSyncFailed(context.WithoutCancel(ctx), o.userID,
		fmt.Sprintf("run aborted: %v", cause)); err != nil {
		logging.Error().Err(err).Msg("Failed to record aborted sync run")
	}
	logging.Warn().Err(cause).Dur("took", time.Since(start)).Msg("Background sync run aborted")
}

// compact regenerates descriptions of aggregate parents in the scope
// window from their children's titles.
func (o *Orchestrator) compact(ctx context.Context) (int, error) {
	from, to := o.window()
	items, err := o.db.ListWorkItems(ctx, o.userID, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to list items for compaction: %w", err)
	}

	compacted := 0
	for _, item := range items {
		if item.Source != models.SourceAggregated || item.SyncedToTempo {
			continue
		}
		children, err := o.db.ListChildren(ctx, item.ID)
		if err != nil {
			return compacted, fmt.Errorf("failed to list children of %s: %w", item.ID, err)
		}
		titles := make([]string, 0, len(children))
		for _, c := range children {
			titles = append(titles, c.Title)
		}
		summary, err := o.summarizer.Summarize(ctx, item.ProjectPath, titles)
		if err != nil || summary == "" || summary == item.Description {
			continue
		}
		item.Description = summary
		if err := o.db.UpsertWorkItem(ctx, item); err != nil {
			return compacted, fmt.Errorf("failed to store summary for %s: %w", item.ID, err)
		}
		compacted++
	}
	return compacted, nil
}

// enterPhase records the transition and notifies subscribers.
func (o *Orchestrator) enterPhase(ctx context.Context, phase, detail string) {
	if err := o.db.SetSyncRunning(ctx, o.userID, phase); err != nil {
		logging.Error().Err(err).Str("phase", phase).Msg("Failed to record sync phase")
	}
	o.publish(phase, detail)
}

func (o *Orchestrator) publish(phase, detail string) {
	if err := o.bus.Publish(models.SyncProgress{Phase: phase, Detail: detail}); err != nil {
		logging.Warn().Err(err).Str("phase", phase).Msg("Failed to publish progress event")
	}
}

func (o *Orchestrator) scope() *models.AggregateRequest {
	from, to := o.window()
	return &models.AggregateRequest{StartDate: from, EndDate: to}
}

func (o *Orchestrator) window() (string, string) {
	now := time.Now()
	to := now.Format(models.DateFormat)
	from := "0000-01-01"
	if o.lookbackDays > 0 {
		from = now.AddDate(0, 0, -o.lookbackDays).Format(models.DateFormat)
	}
	return from, to
}

func groupCount(resp *models.AggregateResponse) int {
	if resp == nil {
		return 0
	}
	return resp.AggregatedCount
}

// Serve implements suture.Service: periodic runs on the sync interval and
// a status poll that logs drift for external observers. Returns when ctx
// is cancelled.
func (o *Orchestrator) Serve(ctx context.Context) error {
	var runCh <-chan time.Time
	if o.interval > 0 {
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()
		runCh = ticker.C
	}

	var pollCh <-chan time.Time
	if o.pollInterval > 0 {
		poller := time.NewTicker(o.pollInterval)
		defer poller.Stop()
		pollCh = poller.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-runCh:
			if !o.RunOnce(ctx) {
				logging.Debug().Msg("Periodic sync skipped, run already in flight")
			}
		case <-pollCh:
			// Re-broadcast the stored phase so observers attached after a
			// transition still converge on the current state.
			status, err := o.Status(ctx)
			if err != nil {
				logging.Warn().Err(err).Msg("Status poll failed")
				continue
			}
			if status.Running && status.Phase != "" {
				o.publish(status.Phase, "status poll")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (o *Orchestrator) String() string {
	return "background-sync-orchestrator"
}
