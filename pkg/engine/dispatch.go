package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/forgeworks/swarm/pkg/models"
)

// Dispatch outcomes that mean "nothing to do right now" rather than a fault.
var (
	errNoTicketsAvailable = errors.New("no tickets available")
	errAtCapacity         = errors.New("engine at max concurrent tickets")
)

// dispatchLoop polls the queues and starts tasks until stopped.
func (e *Engine) dispatchLoop(ctx context.Context) {
	defer e.loopWG.Done()

	e.logger.Info("Dispatcher started")
	for {
		select {
		case <-e.stopCh:
			e.logger.Info("Dispatcher shutting down")
			return
		case <-ctx.Done():
			e.logger.Info("Context cancelled, dispatcher shutting down")
			return
		default:
			if err := e.pollAndDispatch(ctx); err != nil {
				if errors.Is(err, errNoTicketsAvailable) || errors.Is(err, errAtCapacity) {
					e.sleep(e.pollInterval())
					continue
				}
				e.logger.Error("Dispatch failed", "error", err)
				e.sleep(time.Second) // Brief backoff on error
			}
		}
	}
}

// pollAndDispatch fills free slots from the two queues: the ready queue for
// forge work first, then the review queue for sentinel work. Both claims are
// conditional updates, so racing replicas split the queues between them
// without ever sharing a ticket.
func (e *Engine) pollAndDispatch(ctx context.Context) error {
	if e.freeSlots() <= 0 {
		return errAtCapacity
	}

	dispatched := 0

	// Forge queue: oldest ready ticket first, at most ClaimBatchLimit per
	// tick so one replica cannot drain a burst by itself.
	for dispatched < e.cfg.ClaimBatchLimit && e.freeSlots() > 0 {
		t, err := e.store.Tickets.ClaimNextReady(ctx, e.workerID, models.AgentForge)
		if err != nil {
			return err
		}
		if t == nil {
			break
		}
		e.metrics.ClaimsTotal.WithLabelValues(string(taskForge)).Inc()
		e.logger.Info("Ticket claimed", "ticket_id", t.ID, "title", t.Title)
		e.startTask(ctx, t, taskForge)
		dispatched++
	}

	// Review queue: list candidates stalest-first, then claim each one
	// individually. A nil claim means another reviewer won that row.
	if free := e.freeSlots(); free > 0 {
		candidates, err := e.store.Tickets.ListReviewQueue(ctx, models.AgentSentinel, free)
		if err != nil {
			return err
		}
		for _, c := range candidates {
			if e.freeSlots() <= 0 {
				break
			}
			t, err := e.store.Tickets.ClaimForReview(ctx, c.ID, e.workerID)
			if err != nil {
				return err
			}
			if t == nil {
				continue
			}
			e.metrics.ClaimsTotal.WithLabelValues(string(taskReview)).Inc()
			e.logger.Info("Ticket claimed for review", "ticket_id", t.ID, "title", t.Title)
			e.startTask(ctx, t, taskReview)
			dispatched++
		}
	}

	if dispatched == 0 {
		return errNoTicketsAvailable
	}
	return nil
}

// sleep waits for the given duration or until stop is signalled.
func (e *Engine) sleep(d time.Duration) {
	select {
	case <-e.stopCh:
	case <-time.After(d):
	}
}

// pollInterval returns the poll duration with jitter.
func (e *Engine) pollInterval() time.Duration {
	base := e.cfg.PollInterval
	jitter := e.cfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	// Range: [base - jitter, base + jitter]
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}
