package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/forgeworks/swarm/pkg/models"
)

// unblockDependents promotes blocked tickets in the completed ticket's
// session whose prerequisites are now all satisfied. Errors are logged, not
// returned: the merge is already durable, and the cascade re-runs on every
// later merge in the session, so a missed promotion heals itself.
func (x *Executor) unblockDependents(ctx context.Context, completed *models.Ticket) {
	log := x.logger.With("ticket_id", completed.ID, "session_id", completed.DesignSessionID)

	blocked, err := x.store.Tickets.ListBlockedBySession(ctx, completed.DesignSessionID)
	if err != nil {
		log.Error("Cascade scan failed", "error", err)
		return
	}

	for _, cand := range blocked {
		if !cand.DependsOnTicket(completed.ID) {
			continue
		}

		states, err := x.store.Tickets.StatesByIDs(ctx, cand.DependsOn)
		if err != nil {
			log.Error("Cascade dependency lookup failed", "blocked_id", cand.ID, "error", err)
			continue
		}

		var pending []string
		for _, dep := range cand.DependsOn {
			state, ok := states[dep]
			if !ok {
				pending = append(pending, dep+"=missing")
				continue
			}
			if !state.IsTerminalSuccess() {
				pending = append(pending, fmt.Sprintf("%s=%s", dep, state))
			}
		}
		if len(pending) > 0 {
			sort.Strings(pending)
			log.Debug("Dependent still blocked", "blocked_id", cand.ID, "pending", pending)
			continue
		}

		promoted, err := x.store.Tickets.Unblock(ctx, cand.ID, completed.ID)
		if err != nil {
			log.Error("Failed to unblock dependent", "blocked_id", cand.ID, "error", err)
			continue
		}
		if promoted == nil {
			// A concurrent cascade for a sibling dependency won the race.
			continue
		}
		x.metrics.UnblocksTotal.Inc()
		log.Info("Unblocked dependent ticket", "blocked_id", cand.ID, "title", promoted.Title)
	}
}
