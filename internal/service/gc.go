package service

import (
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/earchibald/brainbridge/internal/dedupe"
)

// GCSweepSchedule runs the idempotence-store eviction every 10 minutes,
// comfortably above dedupe.DefaultTTL so idle periods don't let the
// store grow unbounded between inbound events.
const GCSweepSchedule = "*/10 * * * *"

// GCSweeper periodically evicts expired entries from background stores
// that otherwise only evict lazily on access, using robfig/cron for the
// schedule (the same library the rest of the pack reaches for recurring
// jobs).
type GCSweeper struct {
	cron    *cron.Cron
	dedupe  *dedupe.Store
	metrics *Metrics
	logger  *slog.Logger
}

// NewGCSweeper builds a sweeper for dedupeStore. metrics may be nil.
func NewGCSweeper(dedupeStore *dedupe.Store, metrics *Metrics, logger *slog.Logger) *GCSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &GCSweeper{
		cron:    cron.New(),
		dedupe:  dedupeStore,
		metrics: metrics,
		logger:  logger.With("component", "gc_sweeper"),
	}
}

// Start schedules the sweep and returns once registration succeeds.
func (g *GCSweeper) Start() error {
	_, err := g.cron.AddFunc(GCSweepSchedule, g.sweep)
	if err != nil {
		return err
	}
	g.cron.Start()
	return nil
}

// Stop cancels the schedule and waits for any in-flight sweep to finish.
func (g *GCSweeper) Stop() {
	<-g.cron.Stop().Done()
}

func (g *GCSweeper) sweep() {
	if g.dedupe == nil {
		return
	}
	g.dedupe.Evict()
	size := g.dedupe.Len()
	g.logger.Debug("gc sweep complete", "dedupe_store_size", size)
	if g.metrics != nil {
		g.metrics.DedupeStoreSize.Set(float64(size))
	}
}
