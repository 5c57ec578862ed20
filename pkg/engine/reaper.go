package engine

import (
	"context"
	"time"
)

// heartbeatLoop advances the lease on every ticket this replica is running.
// One bulk update per tick regardless of how many tickets are in flight.
func (e *Engine) heartbeatLoop(ctx context.Context) {
	defer e.loopWG.Done()

	ticker := time.NewTicker(e.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.beatOnce(ctx)
		}
	}
}

func (e *Engine) beatOnce(ctx context.Context) {
	ids := e.InFlight()
	if len(ids) == 0 {
		return
	}

	updated, err := e.store.Tickets.UpdateHeartbeats(ctx, ids, e.workerID)
	if err != nil {
		e.logger.Warn("Heartbeat update failed", "tickets", len(ids), "error", err)
		return
	}
	if int(updated) < len(ids) {
		// Some rows are no longer ours: cancelled, or reclaimed by a peer
		// after a heartbeat gap. Their tasks will find out when they next
		// touch the row.
		e.logger.Warn("Heartbeat skipped tickets this replica no longer owns",
			"expected", len(ids), "updated", updated)
	}
}

// reaperLoop scans for in-flight tickets whose owner stopped heartbeating
// and returns them to their queues. Every replica runs the scan; the
// skip-locked reclaim keeps concurrent reapers from double-processing.
func (e *Engine) reaperLoop(ctx context.Context) {
	defer e.loopWG.Done()

	ticker := time.NewTicker(e.cfg.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.reapOnce(ctx); err != nil {
				e.logger.Error("Reclaim scan failed", "error", err)
			}
		}
	}
}

// reapOnce reclaims every ticket whose heartbeat is strictly older than the
// stale threshold. A heartbeat exactly at the threshold is still live.
func (e *Engine) reapOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-e.cfg.StaleThreshold)
	reclaimed, err := e.store.Tickets.ReclaimStale(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, r := range reclaimed {
		e.metrics.ReclaimsTotal.Inc()
		e.logger.Warn("Reclaimed stale ticket",
			"ticket_id", r.ID,
			"from_state", r.FromState,
			"to_state", r.ToState,
			"lapsed_worker", r.WorkerID)
	}
	return nil
}
