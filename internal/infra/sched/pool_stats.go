package sched

import (
	"context"
	"time"

	"coupon-marketplace/internal/infra/logging"
	"coupon-marketplace/internal/infra/metrics"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

// PoolStats is the subset of pgxpool.Stat exported as gauges.
type PoolStats struct {
	Total int32
	Idle  int32
	InUse int32
}

// StatsFunc samples the current pool state.
type StatsFunc func() PoolStats

// PgxPoolStats samples a live pgx pool.
func PgxPoolStats(pool *pgxpool.Pool) StatsFunc {
	return func() PoolStats {
		s := pool.Stat()
		return PoolStats{Total: s.TotalConns(), Idle: s.IdleConns(), InUse: s.AcquiredConns()}
	}
}

// PoolStatsReporter periodically publishes connection pool gauges.
type PoolStatsReporter struct {
	interval time.Duration
	sample   StatsFunc
	publish  func(total, idle, inUse int32)
	log      *zerolog.Logger
}

func NewPoolStatsReporter(interval time.Duration, sample StatsFunc, logger *zerolog.Logger) *PoolStatsReporter {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}
	repLog := logger.With().Str("component", "PoolStatsReporter").Logger()
	return &PoolStatsReporter{
		interval: interval,
		sample:   sample,
		publish:  metrics.SetDBPoolStats,
		log:      &repLog,
	}
}

// Run reports once immediately and then on every tick until ctx is done.
func (r *PoolStatsReporter) Run(ctx context.Context) error {
	r.log.Info().Dur("interval", r.interval).Msg("Starting pool stats reporter")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.report()
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("Stopping pool stats reporter")
			return ctx.Err()
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *PoolStatsReporter) report() {
	s := r.sample()
	r.publish(s.Total, s.Idle, s.InUse)
	r.log.Debug().Int32("total", s.Total).Int32("idle", s.Idle).Int32("in_use", s.InUse).Msg("pool stats")
}
