package workers

import (
	"chat-presence/observability"
	"context"
	"log/slog"
	"time"
)

type ProcessSampler interface {
	GetLatest() observability.ProcessStats
}

// ReporterWorker logs a one-line summary of the engine tables, the emitter
// and the process on every tick, and once more when stopped.
type ReporterWorker struct {
	log        *slog.Logger
	snapshots  observability.Snapshotter
	process    ProcessSampler
	broadcasts observability.BroadcastStats
	interval   time.Duration
}

func NewReporterWorker(log *slog.Logger, snapshots observability.Snapshotter,
	process ProcessSampler, broadcasts observability.BroadcastStats, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{
		log:        log,
		snapshots:  snapshots,
		process:    process,
		broadcasts: broadcasts,
		interval:   interval,
	}
}

func (w *ReporterWorker) Run(ctx context.Context) error {
	startTime := time.Now()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report(startTime)
			return nil
		case <-ticker.C:
			w.report(startTime)
		}
	}
}

func (w *ReporterWorker) report(startTime time.Time) {
	snapshot := w.snapshots.Snapshot()
	stats := w.process.GetLatest()
	w.log.Info("Engine stats",
		"uptime", time.Since(startTime).Round(time.Second).String(),
		"users", len(snapshot.Users),
		"online", snapshot.OnlineCount(),
		"channels", len(snapshot.Channels),
		"messages", snapshot.Messages,
		"offline_pending", snapshot.PendingCount(),
		"broadcasts_pending", w.broadcasts.Pending(),
		"broadcasts_dropped", w.broadcasts.Dropped(),
		"sink_failures", w.broadcasts.Failures(),
		"rss_bytes", stats.RSSBytes,
		"alloc_mb", stats.AllocMemMb)
}
