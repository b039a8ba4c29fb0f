package domain

import "sync/atomic"

// Stats счётчики приёма отчётов, отдаются через /stats
type Stats struct {
	accepted          atomic.Int64
	rejected          atomic.Int64
	storeFailures     atomic.Int64
	cacheFailures     atomic.Int64
	broadcastFailures atomic.Int64
	summaryRefreshes  atomic.Int64
	summaryFailures   atomic.Int64
}

type StatsSnapshot struct {
	Accepted          int64 `json:"accepted"`
	Rejected          int64 `json:"rejected"`
	StoreFailures     int64 `json:"store_failures"`
	CacheFailures     int64 `json:"cache_failures"`
	BroadcastFailures int64 `json:"broadcast_failures"`
	SummaryRefreshes  int64 `json:"summary_refreshes"`
	SummaryFailures   int64 `json:"summary_failures"`
}

func (s *Stats) CacheFailed()     { s.cacheFailures.Add(1) }
func (s *Stats) BroadcastFailed() { s.broadcastFailures.Add(1) }

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Accepted:          s.accepted.Load(),
		Rejected:          s.rejected.Load(),
		StoreFailures:     s.storeFailures.Load(),
		CacheFailures:     s.cacheFailures.Load(),
		BroadcastFailures: s.broadcastFailures.Load(),
		SummaryRefreshes:  s.summaryRefreshes.Load(),
		SummaryFailures:   s.summaryFailures.Load(),
	}
}
